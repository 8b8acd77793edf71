package api

import (
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mitraverify/verify-engine/internal/models"
	"github.com/mitraverify/verify-engine/internal/services"
)

const apiVersion = "0.1.0"

var allowedImageTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

// Handlers holds the HTTP handlers for the verification API.
type Handlers struct {
	service *services.VerifyService
	logger  *slog.Logger
}

// NewHandlers constructs the handler set.
func NewHandlers(service *services.VerifyService, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{service: service, logger: logger}
}

// RegisterRoutes binds all routes onto the router.
func (h *Handlers) RegisterRoutes(router *gin.Engine) {
	router.POST("/verify", h.Verify)
	router.POST("/verify/text", h.VerifyText)
	router.POST("/verify/image", h.VerifyImage)
	router.POST("/verify/batch", h.VerifyBatch)
	router.GET("/stats", h.Stats)
	router.GET("/health", h.Health)
	router.GET("/health/detailed", h.DetailedHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// Verify handles multipart requests carrying text, an image, or both.
func (h *Handlers) Verify(c *gin.Context) {
	text := c.PostForm("text")

	fileHeader, err := c.FormFile("file")
	hasFile := err == nil && fileHeader != nil

	if text == "" && !hasFile {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Either text or file must be provided"})
		return
	}

	var imagePath string
	if hasFile {
		imagePath, err = h.saveUpload(fileHeader)
		if err != nil {
			status := http.StatusInternalServerError
			if strings.Contains(err.Error(), "Unsupported file type") {
				status = http.StatusBadRequest
			}
			c.JSON(status, gin.H{"detail": err.Error()})
			return
		}
		defer os.Remove(imagePath)
	}

	result := h.service.Verify(c.Request.Context(), models.AnalysisRequest{Text: text, ImagePath: imagePath})
	c.JSON(http.StatusOK, result)
}

// VerifyText handles the text-only variant.
func (h *Handlers) VerifyText(c *gin.Context) {
	text := strings.TrimSpace(c.PostForm("text"))
	if text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Text content is required"})
		return
	}

	result := h.service.Verify(c.Request.Context(), models.AnalysisRequest{Text: text})
	c.JSON(http.StatusOK, result)
}

// VerifyImage handles the image-only variant.
func (h *Handlers) VerifyImage(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil || fileHeader == nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Image file is required"})
		return
	}

	imagePath, err := h.saveUpload(fileHeader)
	if err != nil {
		status := http.StatusInternalServerError
		if strings.Contains(err.Error(), "Unsupported file type") {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"detail": err.Error()})
		return
	}
	defer os.Remove(imagePath)

	result := h.service.Verify(c.Request.Context(), models.AnalysisRequest{ImagePath: imagePath})
	c.JSON(http.StatusOK, result)
}

type batchItem struct {
	Text string `json:"text"`
}

// VerifyBatch analyzes a JSON array of text items sequentially.
func (h *Handlers) VerifyBatch(c *gin.Context) {
	var items []batchItem
	if err := c.ShouldBindJSON(&items); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Request body must be a JSON array of {text} items"})
		return
	}
	if len(items) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Batch must contain at least one item"})
		return
	}
	if len(items) > 32 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Batch size is limited to 32 items"})
		return
	}

	requests := make([]models.AnalysisRequest, 0, len(items))
	for _, item := range items {
		requests = append(requests, models.AnalysisRequest{Text: item.Text})
	}

	results := h.service.BatchVerify(c.Request.Context(), requests)
	c.JSON(http.StatusOK, gin.H{"results": results, "total": len(results)})
}

// Stats reports operational metadata and evidence corpus aggregates.
func (h *Handlers) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":              "operational",
		"supported_languages": []string{"en", "hi"},
		"supported_formats":   append([]string{"text"}, allowedImageTypes...),
		"evidence_corpus":     h.service.CorpusStats(),
		"model_info": gin.H{
			"image_model":     "perceptual_hashing",
			"embedding_model": "weaviate/nearText",
		},
	})
}

// Health is the basic liveness probe.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   apiVersion,
	})
}

// DetailedHealth probes each component and reports degraded status when any
// collaborator is unhealthy.
func (h *Handlers) DetailedHealth(c *gin.Context) {
	start := time.Now()
	components := h.service.ComponentHealth(c.Request.Context())

	overall := "healthy"
	statuses := make(map[string]string, len(components))
	for _, component := range components {
		statuses[component.Name] = component.Status
		if component.Status != "healthy" {
			overall = "degraded"
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":        overall,
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
		"version":       apiVersion,
		"response_time": fmt.Sprintf("%.3fs", time.Since(start).Seconds()),
		"components":    statuses,
	})
}

// saveUpload validates the upload's content type and writes it to a temp
// file. The caller removes the file after analysis.
func (h *Handlers) saveUpload(fileHeader *multipart.FileHeader) (string, error) {
	contentType := fileHeader.Header.Get("Content-Type")
	if !isAllowedImageType(contentType) {
		return "", fmt.Errorf("Unsupported file type. Allowed: %s", strings.Join(allowedImageTypes, ", "))
	}

	src, err := fileHeader.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	suffix := filepath.Ext(fileHeader.Filename)
	if suffix == "" {
		suffix = ".jpg"
	}
	dst, err := os.CreateTemp("", "mitraverify-*"+suffix)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(dst.Name())
		return "", fmt.Errorf("write upload: %w", err)
	}
	return dst.Name(), nil
}

func isAllowedImageType(contentType string) bool {
	for _, allowed := range allowedImageTypes {
		if contentType == allowed {
			return true
		}
	}
	return false
}
