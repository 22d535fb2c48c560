package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ayush630/clinical-bert-api/internal/usecase"
)

// API identity reported by the root endpoint
const (
	APIName    = "Clinical Assertion Negation BERT API"
	APIVersion = "1.0.0"
)

// PredictionHandler handles classification requests
type PredictionHandler struct {
	predictionUC usecase.PredictionUsecase
}

// NewPredictionHandler creates a new prediction handler
func NewPredictionHandler(predictionUC usecase.PredictionUsecase) *PredictionHandler {
	return &PredictionHandler{predictionUC: predictionUC}
}

// RootInfo is the service index returned by GET /
type RootInfo struct {
	Message   string            `json:"message"`
	Version   string            `json:"version"`
	Endpoints map[string]string `json:"endpoints"`
}

// Root handles GET /
func (h *PredictionHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, RootInfo{
		Message: APIName,
		Version: APIVersion,
		Endpoints: map[string]string{
			"predict":       "/predict",
			"predict_batch": "/predict/batch",
			"health":        "/health",
			"docs":          "/docs",
		},
	})
}

// Predict handles POST /predict
func (h *PredictionHandler) Predict(c *gin.Context) {
	var input usecase.PredictInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondDetail(c, http.StatusUnprocessableEntity, ValidationDetail(err))
		return
	}

	result, err := h.predictionUC.Predict(c.Request.Context(), requestID(c), &input)
	if err != nil {
		HandlePredictionError(c, "Prediction failed", err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// PredictBatch handles POST /predict/batch
func (h *PredictionHandler) PredictBatch(c *gin.Context) {
	var input usecase.BatchPredictInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondDetail(c, http.StatusUnprocessableEntity, ValidationDetail(err))
		return
	}

	result, err := h.predictionUC.PredictBatch(c.Request.Context(), requestID(c), &input)
	if err != nil {
		HandlePredictionError(c, "Batch prediction failed", err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ListPredictions handles GET /api/v1/predictions
func (h *PredictionHandler) ListPredictions(c *gin.Context) {
	query := ParseRecordQuery(c)

	output, err := h.predictionUC.ListRecords(c.Request.Context(), query.Label, query.Limit, query.Offset)
	if err != nil {
		HandleUsecaseError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, output)
}

// GetPrediction handles GET /api/v1/predictions/:id
func (h *PredictionHandler) GetPrediction(c *gin.Context) {
	id, err := predictionID(c)
	if err != nil {
		HandleInvalidUUID(c, "prediction id")
		return
	}

	output, err := h.predictionUC.GetRecord(c.Request.Context(), id)
	if err != nil {
		HandleUsecaseError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, output)
}
