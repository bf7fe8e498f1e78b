// Package router wires the classifier HTTP routes.
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/triplet-classifier/internal/classifier/handler"
)

// Register attaches the classifier routes to the engine.
func Register(engine *gin.Engine, h *handler.ClassifierHandler) {
	engine.GET("/healthz", h.Healthz)
	engine.GET("/metrics", h.Metrics)

	v1 := engine.Group("/v1")
	{
		classifier := v1.Group("/classifier")
		{
			classifier.POST("/classify", h.Classify)
			classifier.POST("/ingest", h.Ingest)
			classifier.POST("/ingest/batch", h.IngestBatch)
			classifier.POST("/evaluate", h.Evaluate)
			classifier.POST("/neighbors", h.Neighbors)
			classifier.DELETE("/records/:id", h.DeleteRecord)
			classifier.GET("/stats", h.Stats)
		}
	}

	logger.Info("HTTP routes registered")
}
