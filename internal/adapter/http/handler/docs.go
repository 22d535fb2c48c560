package handler

import (
	_ "embed"
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-yaml"
)

//go:embed openapi.yaml
var openAPISpec []byte

var (
	openAPIOnce sync.Once
	openAPIJSON []byte
	openAPIErr  error
)

// OpenAPIDocument returns the API description as JSON
func OpenAPIDocument() ([]byte, error) {
	openAPIOnce.Do(func() {
		openAPIJSON, openAPIErr = yaml.YAMLToJSON(openAPISpec)
		if openAPIErr != nil {
			openAPIErr = fmt.Errorf("convert openapi document: %w", openAPIErr)
		}
	})
	return openAPIJSON, openAPIErr
}

// Docs handles GET /docs
func Docs(c *gin.Context) {
	doc, err := OpenAPIDocument()
	if err != nil {
		_ = c.Error(err)
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "documentation unavailable")
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", doc)
}

// DocsYAML handles GET /docs/openapi.yaml
func DocsYAML(c *gin.Context) {
	c.Data(http.StatusOK, "application/yaml; charset=utf-8", openAPISpec)
}
