package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/changerisk/internal/pkg/response"
	"github.com/xxxsen/changerisk/internal/retriever"
)

type HealthHandler struct {
	index *retriever.Index
}

func NewHealthHandler(index *retriever.Index) *HealthHandler {
	return &HealthHandler{index: index}
}

func (h *HealthHandler) Get(c *gin.Context) {
	response.Success(c, gin.H{
		"status":          "ok",
		"records":         h.index.Len(),
		"dimension":       h.index.Dimension(),
		"embedding_model": h.index.ModelName(),
	})
}
