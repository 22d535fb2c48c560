package handler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Paging bounds of the prediction log listing
const (
	DefaultRecordLimit = 20
	MaxRecordLimit     = 100
)

// RecordQuery is the query string of GET /api/v1/predictions
type RecordQuery struct {
	Label  string
	Limit  int
	Offset int
}

// ParseRecordQuery reads label, limit and offset. Missing or out-of-range
// paging values fall back to the defaults and limit is capped at MaxRecordLimit.
func ParseRecordQuery(c *gin.Context) RecordQuery {
	q := RecordQuery{
		Label: strings.TrimSpace(c.Query("label")),
		Limit: DefaultRecordLimit,
	}
	if limit, err := strconv.Atoi(c.Query("limit")); err == nil && limit > 0 {
		q.Limit = min(limit, MaxRecordLimit)
	}
	if offset, err := strconv.Atoi(c.Query("offset")); err == nil && offset > 0 {
		q.Offset = offset
	}
	return q
}

// predictionID parses the :id segment of a prediction record route
func predictionID(c *gin.Context) (uuid.UUID, error) {
	raw := c.Param("id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid prediction id %q: %w", raw, err)
	}
	return id, nil
}
