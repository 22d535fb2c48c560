package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayush630/clinical-bert-api/internal/usecase"
)

// envelope mirrors Response with a typed data field
type envelope[T any] struct {
	Success bool       `json:"success"`
	Data    *T         `json:"data"`
	Error   *ErrorInfo `json:"error"`
	Meta    *MetaInfo  `json:"meta"`
}

func serve(requestID string, h gin.HandlerFunc) *httptest.ResponseRecorder {
	router := gin.New()
	router.GET("/records", func(c *gin.Context) {
		if requestID != "" {
			c.Set("request_id", requestID)
		}
		h(c)
	})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/records", http.NoBody))
	return w
}

func TestRespondSuccess_RecordList(t *testing.T) {
	recordID := uuid.New()
	list := &usecase.PredictionRecordListOutput{
		Records: []*usecase.PredictionRecordOutput{{
			ID:             recordID,
			RequestID:      "req-42",
			Mode:           "batch",
			BatchIndex:     1,
			SentenceLength: 30,
			Label:          "ABSENT",
			Score:          0.97,
			ModelID:        "bvanaken/clinical-assertion-negation-bert",
		}},
		Total:   3,
		Limit:   1,
		Offset:  1,
		HasMore: true,
	}

	w := serve("req-42", func(c *gin.Context) {
		respondSuccess(c, http.StatusOK, list)
	})

	assert.Equal(t, http.StatusOK, w.Code)

	var body envelope[usecase.PredictionRecordListOutput]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Nil(t, body.Error)
	require.NotNil(t, body.Data)
	assert.Equal(t, int64(3), body.Data.Total)
	assert.True(t, body.Data.HasMore)
	require.Len(t, body.Data.Records, 1)
	assert.Equal(t, recordID, body.Data.Records[0].ID)
	assert.Equal(t, "ABSENT", body.Data.Records[0].Label)
	assert.Equal(t, 1, body.Data.Records[0].BatchIndex)
	assert.Equal(t, "req-42", body.Meta.RequestID)
}

func TestRespondSuccess_SingleRecord(t *testing.T) {
	record := &usecase.PredictionRecordOutput{
		ID:        uuid.New(),
		Mode:      "single",
		Label:     "CONDITIONAL",
		Score:     0.61,
		CreatedAt: "2026-10-19T08:00:00Z",
	}

	w := serve("", func(c *gin.Context) {
		respondSuccess(c, http.StatusOK, record)
	})

	var body envelope[usecase.PredictionRecordOutput]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotNil(t, body.Data)
	assert.Equal(t, record.ID, body.Data.ID)
	assert.Equal(t, "CONDITIONAL", body.Data.Label)
	assert.InDelta(t, 0.61, body.Data.Score, 1e-9)

	// Without the middleware a request id is still generated.
	_, err := uuid.Parse(body.Meta.RequestID)
	assert.NoError(t, err)
	_, err = time.Parse(time.RFC3339, body.Meta.Timestamp)
	assert.NoError(t, err)
}

func TestRespondError_RecordEndpoints(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"missing record", usecase.ErrPredictionNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"audit log disabled", usecase.ErrAuditDisabled, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
		{"database failure", errors.New("connection reset"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve("req-err", func(c *gin.Context) {
				mapped := MapUsecaseError(tt.err)
				respondError(c, mapped.StatusCode, mapped.Code, mapped.Message)
			})

			assert.Equal(t, tt.wantStatus, w.Code)

			var body envelope[usecase.PredictionRecordOutput]
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.False(t, body.Success)
			assert.Nil(t, body.Data)
			require.NotNil(t, body.Error)
			assert.Equal(t, tt.wantCode, body.Error.Code)
			assert.Equal(t, "req-err", body.Meta.RequestID)
			assert.NotContains(t, w.Body.String(), "connection reset")
		})
	}
}

func TestRespondDetail(t *testing.T) {
	tests := []struct {
		name   string
		status int
		detail string
	}{
		{"model not loaded", http.StatusServiceUnavailable, "Model not loaded"},
		{"empty sentence", http.StatusUnprocessableEntity, "sentence: field required"},
		{"inference failure", http.StatusInternalServerError, "Prediction failed: forward pass: timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve("", func(c *gin.Context) {
				respondDetail(c, tt.status, tt.detail)
			})

			assert.Equal(t, tt.status, w.Code)

			var body DetailResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.detail, body.Detail)
			assert.NotContains(t, w.Body.String(), "success")
		})
	}
}
