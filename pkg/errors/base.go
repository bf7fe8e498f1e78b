package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// OK represents a successful operation.
var OK = Register(&Errno{
	Code:     0,
	HTTP:     http.StatusOK,
	GRPCCode: codes.OK,
	Message:  "Success",
})

// Common errors shared by all services.
var (
	// ErrBadRequest indicates a malformed request.
	ErrBadRequest = Register(New(MakeCode(ServiceCommon, CategoryRequest, 0), http.StatusBadRequest, codes.InvalidArgument, "Bad request"))

	// ErrInvalidParam indicates an invalid parameter.
	ErrInvalidParam = Register(New(MakeCode(ServiceCommon, CategoryRequest, 1), http.StatusBadRequest, codes.InvalidArgument, "Invalid parameter"))

	// ErrMissingParam indicates a missing required parameter.
	ErrMissingParam = Register(New(MakeCode(ServiceCommon, CategoryRequest, 2), http.StatusBadRequest, codes.InvalidArgument, "Missing required parameter"))

	// ErrNotFound indicates the resource is not found.
	ErrNotFound = Register(New(MakeCode(ServiceCommon, CategoryResource, 0), http.StatusNotFound, codes.NotFound, "Resource not found"))

	// ErrRouteNotFound indicates the route is not found.
	ErrRouteNotFound = Register(New(MakeCode(ServiceCommon, CategoryResource, 4), http.StatusNotFound, codes.NotFound, "Route not found"))

	// ErrInternal indicates an internal server error.
	ErrInternal = Register(New(MakeCode(ServiceCommon, CategoryInternal, 0), http.StatusInternalServerError, codes.Internal, "Internal server error"))

	// ErrTimeout indicates operation timeout.
	ErrTimeout = Register(New(MakeCode(ServiceCommon, CategoryTimeout, 0), http.StatusGatewayTimeout, codes.DeadlineExceeded, "Operation timeout"))

	// ErrServiceUnavailable indicates the service is unavailable.
	ErrServiceUnavailable = Register(New(MakeCode(ServiceCommon, CategoryNetwork, 1), http.StatusServiceUnavailable, codes.Unavailable, "Service unavailable"))

	// ErrConfigInvalid indicates invalid configuration.
	ErrConfigInvalid = Register(New(MakeCode(ServiceCommon, CategoryConfig, 2), http.StatusInternalServerError, codes.Internal, "Invalid configuration"))
)
