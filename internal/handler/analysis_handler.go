package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/changerisk/internal/model"
	"github.com/xxxsen/changerisk/internal/pkg/response"
	"github.com/xxxsen/changerisk/internal/service"
)

type AnalysisHandler struct {
	analysis *service.AnalysisService
}

func NewAnalysisHandler(analysis *service.AnalysisService) *AnalysisHandler {
	return &AnalysisHandler{analysis: analysis}
}

const (
	fieldChangeSubject     = "Change Subject"
	fieldChangeDescription = "Change description"
	fieldTopK              = "top_k"
)

type analyzeResponse struct {
	Analysis           string   `json:"analysis"`
	PotentialForError  string   `json:"potential_for_error,omitempty"`
	SimilarPastChanges []string `json:"similar_past_changes,omitempty"`
}

type similarItem struct {
	ID          string  `json:"id"`
	Subject     string  `json:"subject"`
	Description string  `json:"description"`
	Score       float64 `json:"score"`
}

type similarResponse struct {
	Items []similarItem `json:"items"`
}

// decodeBody reads a JSON object keeping its exact keys. Key lookup is case
// sensitive, unlike struct binding.
func decodeBody(c *gin.Context) (map[string]json.RawMessage, bool) {
	raw, err := c.GetRawData()
	if err != nil {
		return nil, false
	}
	var body map[string]json.RawMessage
	if err := json.Unmarshal(raw, &body); err != nil || body == nil {
		return nil, false
	}
	return body, true
}

func stringField(body map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := body[key]
	if !ok {
		return "", false
	}
	var value *string
	if err := json.Unmarshal(raw, &value); err != nil || value == nil {
		return "", false
	}
	return *value, true
}

func (h *AnalysisHandler) bindChange(c *gin.Context) (model.ChangeRecord, map[string]json.RawMessage, bool) {
	body, ok := decodeBody(c)
	if !ok {
		response.Error(c, http.StatusBadRequest, invalidInputMessage)
		return model.ChangeRecord{}, nil, false
	}
	subject, okSubject := stringField(body, fieldChangeSubject)
	description, okDescription := stringField(body, fieldChangeDescription)
	if !okSubject || !okDescription {
		response.Error(c, http.StatusBadRequest, invalidInputMessage)
		return model.ChangeRecord{}, nil, false
	}
	change, err := h.analysis.ValidateChange(subject, description)
	if err != nil {
		handleError(c, err)
		return model.ChangeRecord{}, nil, false
	}
	return change, body, true
}

func (h *AnalysisHandler) Analyze(c *gin.Context) {
	change, _, ok := h.bindChange(c)
	if !ok {
		return
	}
	res, err := h.analysis.Analyze(c.Request.Context(), change)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, analyzeResponse{
		Analysis:           res.Analysis,
		PotentialForError:  res.Summary.PotentialForError,
		SimilarPastChanges: res.Summary.SimilarPastChanges,
	})
}

func (h *AnalysisHandler) Similar(c *gin.Context) {
	change, body, ok := h.bindChange(c)
	if !ok {
		return
	}
	var topK int
	if raw, exists := body[fieldTopK]; exists {
		if err := json.Unmarshal(raw, &topK); err != nil || topK < 0 {
			response.Error(c, http.StatusBadRequest, "top_k must be a positive integer")
			return
		}
	}
	items, err := h.analysis.Similar(c.Request.Context(), change, topK)
	if err != nil {
		handleError(c, err)
		return
	}
	out := similarResponse{Items: make([]similarItem, 0, len(items))}
	for _, item := range items {
		out.Items = append(out.Items, similarItem{
			ID:          item.Record.ID,
			Subject:     item.Record.Subject,
			Description: item.Record.Description,
			Score:       item.Score,
		})
	}
	response.Success(c, out)
}
