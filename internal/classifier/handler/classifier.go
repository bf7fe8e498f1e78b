// Package handler provides HTTP handlers for the classifier service.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/triplet-classifier/internal/classifier/biz"
	"github.com/kart-io/triplet-classifier/internal/classifier/metrics"
	"github.com/kart-io/triplet-classifier/internal/model"
	apperrors "github.com/kart-io/triplet-classifier/pkg/errors"
)

// ClassifierHandler handles classification HTTP requests.
type ClassifierHandler struct {
	service *biz.Service
}

// NewClassifierHandler creates a handler on the service facade.
func NewClassifierHandler(service *biz.Service) *ClassifierHandler {
	return &ClassifierHandler{service: service}
}

// SuccessResponse is the standard success envelope.
type SuccessResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func ok(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, SuccessResponse{Code: 0, Message: "success", Data: data})
}

func fail(c *gin.Context, err error) {
	e := apperrors.FromError(err)
	c.JSON(e.HTTPStatus(), ErrorResponse{Code: e.Code, Message: e.Message})
}

// ClassifyRequest carries one summary to classify.
type ClassifyRequest struct {
	Summary string `json:"summary" binding:"required"`
}

// Classify classifies one document summary.
func (h *ClassifierHandler) Classify(c *gin.Context) {
	var req ClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: apperrors.ErrBadRequest.Code, Message: err.Error()})
		return
	}

	result, err := h.service.Classify(c.Request.Context(), req.Summary)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, result)
}

// IngestRequest carries one labeled sample to store.
type IngestRequest struct {
	Summary string `json:"summary" binding:"required"`
	DocType string `json:"doc_type" binding:"required"`
	DocCode string `json:"doc_code" binding:"required"`
}

// IngestResponse returns the id of the stored record.
type IngestResponse struct {
	ID string `json:"id"`
}

// Ingest stores one labeled sample.
func (h *ClassifierHandler) Ingest(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: apperrors.ErrBadRequest.Code, Message: err.Error()})
		return
	}

	id, err := h.service.Ingest(c.Request.Context(), model.Sample{
		Summary: req.Summary,
		DocType: req.DocType,
		DocCode: req.DocCode,
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, IngestResponse{ID: id})
}

// IngestBatchRequest carries multiple labeled samples.
type IngestBatchRequest struct {
	Samples []model.Sample `json:"samples" binding:"required,min=1"`
}

// IngestBatch stores labeled samples concurrently. Per-sample failures are
// reported inline, not as a request failure.
func (h *ClassifierHandler) IngestBatch(c *gin.Context) {
	var req IngestBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: apperrors.ErrBadRequest.Code, Message: err.Error()})
		return
	}

	results, err := h.service.IngestBatch(c.Request.Context(), req.Samples)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, results)
}

// EvaluateRequest carries labeled samples to score.
type EvaluateRequest struct {
	Samples []model.Sample `json:"samples"`
}

// Evaluate classifies every sample and reports exact-match accuracy.
func (h *ClassifierHandler) Evaluate(c *gin.Context) {
	var req EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: apperrors.ErrBadRequest.Code, Message: err.Error()})
		return
	}

	result, err := h.service.Evaluate(c.Request.Context(), req.Samples)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, result)
}

// NeighborsRequest carries a summary for a diagnostic nearest-neighbor
// lookup.
type NeighborsRequest struct {
	Summary string `json:"summary" binding:"required"`
	K       int    `json:"k"`
}

// Neighbors returns the k nearest labeled records for a summary.
func (h *ClassifierHandler) Neighbors(c *gin.Context) {
	var req NeighborsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: apperrors.ErrBadRequest.Code, Message: err.Error()})
		return
	}
	if req.K <= 0 {
		req.K = 5
	}

	neighbors, err := h.service.Neighbors(c.Request.Context(), req.Summary, req.K)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, neighbors)
}

// DeleteRecord removes one labeled record by id.
func (h *ClassifierHandler) DeleteRecord(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: apperrors.ErrMissingParam.Code, Message: "record id is required"})
		return
	}

	if err := h.service.DeleteRecord(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	ok(c, nil)
}

// Stats reports store size, runtime counters and cache state.
func (h *ClassifierHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, stats)
}

// Metrics exposes counters in Prometheus text format.
func (h *ClassifierHandler) Metrics(c *gin.Context) {
	c.Data(http.StatusOK, "text/plain; version=0.0.4; charset=utf-8", []byte(metrics.Get().Export()))
}

// Healthz is the liveness probe.
func (h *ClassifierHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
