package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/changerisk/internal/ai"
	"github.com/xxxsen/changerisk/internal/middleware"
	appErr "github.com/xxxsen/changerisk/internal/pkg/errors"
	"github.com/xxxsen/changerisk/internal/pkg/response"
	"github.com/xxxsen/changerisk/internal/prompt"
	"github.com/xxxsen/changerisk/internal/retriever"
)

const invalidInputMessage = "Invalid input. Please provide 'Change Subject' and 'Change description'."

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	requestID, _ := c.Get(middleware.RequestIDKey)
	logger := logutil.GetLogger(c.Request.Context()).With(
		zap.Any("request_id", requestID),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	var (
		tplErr *prompt.TemplateError
		vecErr *retriever.DegenerateVectorError
		extErr *ai.ExternalServiceError
	)
	switch {
	case appErr.IsInvalid(err):
		logger.Warn("request rejected")
		response.Error(c, http.StatusBadRequest, err.Error())
	case errors.As(err, &tplErr):
		logger.Error("render prompt template failed")
		response.Error(c, http.StatusInternalServerError, "failed to build analysis prompt")
	case errors.As(err, &vecErr):
		logger.Error("similarity search failed")
		response.Error(c, http.StatusInternalServerError, "failed to compare with past changes")
	case errors.As(err, &extErr), errors.Is(err, ai.ErrUnavailable):
		logger.Error("external service call failed")
		response.Error(c, http.StatusInternalServerError, "analysis service unavailable")
	default:
		logger.Error("request failed")
		response.Error(c, http.StatusInternalServerError, "internal error")
	}
}
