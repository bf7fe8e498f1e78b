package errors

import "google.golang.org/grpc/codes"

// Classification service errors (service code 20).
var (
	// Request errors (category 01)
	ErrClassifierEmptySummary = Register(New(MakeCode(ServiceClassifier, CategoryRequest, 1), 400, codes.InvalidArgument, "Summary text is empty"))
	ErrClassifierEmptyLabel   = Register(New(MakeCode(ServiceClassifier, CategoryRequest, 2), 400, codes.InvalidArgument, "Document label is empty"))
	ErrClassifierBadThreshold = Register(New(MakeCode(ServiceClassifier, CategoryRequest, 3), 400, codes.InvalidArgument, "Threshold must be within [0,1]"))

	// Resource errors (category 04)
	ErrClassifierRecordNotFound = Register(New(MakeCode(ServiceClassifier, CategoryResource, 1), 404, codes.NotFound, "Labeled record not found"))

	// Extraction and pipeline errors (category 07)
	ErrClassifierExtraction = Register(New(MakeCode(ServiceClassifier, CategoryInternal, 1), 500, codes.Internal, "Triplet extraction failed"))
	ErrClassifierPipeline   = Register(New(MakeCode(ServiceClassifier, CategoryInternal, 2), 500, codes.Internal, "Classification pipeline failed"))
	ErrClassifierEvaluation = Register(New(MakeCode(ServiceClassifier, CategoryInternal, 3), 500, codes.Internal, "Evaluation failed"))

	// Store errors (category 08)
	ErrClassifierStore             = Register(New(MakeCode(ServiceClassifier, CategoryStore, 1), 500, codes.Internal, "Vector store operation failed"))
	ErrClassifierDimensionMismatch = Register(New(MakeCode(ServiceClassifier, CategoryStore, 2), 500, codes.InvalidArgument, "Vector dimension mismatch"))

	// Cache errors (category 09)
	ErrClassifierCache = Register(New(MakeCode(ServiceClassifier, CategoryCache, 1), 500, codes.Internal, "Result cache operation failed"))

	// Provider errors (category 10)
	ErrClassifierProviderUnavailable = Register(New(MakeCode(ServiceClassifier, CategoryNetwork, 1), 503, codes.Unavailable, "Extraction provider unavailable"))

	// Timeout errors (category 11)
	ErrClassifierTimeout = Register(New(MakeCode(ServiceClassifier, CategoryTimeout, 1), 408, codes.DeadlineExceeded, "Classification timeout"))
)
