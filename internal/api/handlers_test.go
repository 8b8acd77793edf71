package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mitraverify/verify-engine/internal/engine"
	"github.com/mitraverify/verify-engine/internal/models"
	"github.com/mitraverify/verify-engine/internal/services"
)

type stubTextProducer struct {
	signal models.TextSignal
}

func (s *stubTextProducer) Analyze(ctx context.Context, text string) models.TextSignal {
	return s.signal
}

type stubImageProducer struct {
	signal models.ImageSignal
}

func (s *stubImageProducer) Analyze(path string) models.ImageSignal {
	return s.signal
}

type stubEvidence struct{}

func (stubEvidence) Stats() models.CorpusStats {
	return models.CorpusStats{TotalItems: 3, ByVerdict: map[string]int{"false": 3}}
}

func (stubEvidence) Count() int { return 3 }

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	fusion := engine.NewFusionEngine(nil,
		&stubTextProducer{signal: models.TextSignal{Label: models.TextLabelReliable, Confidence: 0.8}},
		&stubImageProducer{signal: models.ImageSignal{Verdict: models.ImageVerdictAuthentic, Confidence: 0.6}},
		nil)
	service := services.NewVerifyService(nil, fusion, stubEvidence{}, nil, 0, 5*time.Second)

	router := gin.New()
	NewHandlers(service, nil).RegisterRoutes(router)
	return router
}

func multipartBody(t *testing.T, fields map[string]string, fileField, fileName, fileType string, fileContent []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if fileField != "" {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", `form-data; name="`+fileField+`"; filename="`+fileName+`"`)
		header.Set("Content-Type", fileType)
		part, err := writer.CreatePart(header)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		if _, err := part.Write(fileContent); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func TestVerifyRequiresContent(t *testing.T) {
	router := newTestRouter(t)
	body, contentType := multipartBody(t, nil, "", "", "", nil)

	req := httptest.NewRequest(http.MethodPost, "/verify", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Either text or file must be provided") {
		t.Fatalf("unexpected error body: %s", rec.Body.String())
	}
}

func TestVerifyTextContent(t *testing.T) {
	router := newTestRouter(t)
	body, contentType := multipartBody(t, map[string]string{"text": "a reliable claim"}, "", "", "", nil)

	req := httptest.NewRequest(http.MethodPost, "/verify", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var result models.FusionResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.OverallVerdict != models.VerdictReliable {
		t.Fatalf("expected reliable verdict, got %s", result.OverallVerdict)
	}
	if result.VerificationID == "" {
		t.Fatalf("expected verification id")
	}
}

func TestVerifyRejectsUnsupportedFileType(t *testing.T) {
	router := newTestRouter(t)
	body, contentType := multipartBody(t, nil, "file", "notes.txt", "text/plain", []byte("hello"))

	req := httptest.NewRequest(http.MethodPost, "/verify", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Unsupported file type") {
		t.Fatalf("unexpected error body: %s", rec.Body.String())
	}
}

func TestVerifyImageUpload(t *testing.T) {
	router := newTestRouter(t)
	body, contentType := multipartBody(t, nil, "file", "photo.png", "image/png", []byte("png-bytes"))

	req := httptest.NewRequest(http.MethodPost, "/verify/image", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var result models.FusionResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.ImageSignal == nil {
		t.Fatalf("expected image signal in result")
	}
	if result.OverallVerdict != models.VerdictReliable {
		t.Fatalf("expected reliable verdict from authentic image, got %s", result.OverallVerdict)
	}
}

func TestVerifyTextEndpointRequiresText(t *testing.T) {
	router := newTestRouter(t)
	body, contentType := multipartBody(t, map[string]string{"text": "   "}, "", "", "", nil)

	req := httptest.NewRequest(http.MethodPost, "/verify/text", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Text content is required") {
		t.Fatalf("unexpected error body: %s", rec.Body.String())
	}
}

func TestVerifyImageEndpointRequiresFile(t *testing.T) {
	router := newTestRouter(t)
	body, contentType := multipartBody(t, nil, "", "", "", nil)

	req := httptest.NewRequest(http.MethodPost, "/verify/image", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Image file is required") {
		t.Fatalf("unexpected error body: %s", rec.Body.String())
	}
}

func TestVerifyBatch(t *testing.T) {
	router := newTestRouter(t)
	payload := `[{"text": "first claim"}, {"text": "second claim"}]`

	req := httptest.NewRequest(http.MethodPost, "/verify/batch", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var response struct {
		Results []models.FusionResult `json:"results"`
		Total   int                   `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if response.Total != 2 || len(response.Results) != 2 {
		t.Fatalf("expected 2 results, got total=%d len=%d", response.Total, len(response.Results))
	}
}

func TestVerifyBatchRejectsEmpty(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/verify/batch", strings.NewReader(`[]`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestVerifyBatchRejectsOversized(t *testing.T) {
	router := newTestRouter(t)
	items := make([]string, 33)
	for i := range items {
		items[i] = `{"text": "claim"}`
	}
	payload := "[" + strings.Join(items, ",") + "]"

	req := httptest.NewRequest(http.MethodPost, "/verify/batch", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var response map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if response["status"] != "healthy" {
		t.Fatalf("expected healthy, got %v", response["status"])
	}
	if response["version"] != apiVersion {
		t.Fatalf("expected version %s, got %v", apiVersion, response["version"])
	}
}

func TestDetailedHealth(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health/detailed", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var response struct {
		Status     string            `json:"status"`
		Components map[string]string `json:"components"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if response.Status != "healthy" {
		t.Fatalf("expected healthy, got %s", response.Status)
	}
	if response.Components["evidence_retriever"] != "healthy" {
		t.Fatalf("expected healthy evidence retriever, got %q", response.Components["evidence_retriever"])
	}
}

func TestStats(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var response struct {
		Status             string             `json:"status"`
		SupportedLanguages []string           `json:"supported_languages"`
		EvidenceCorpus     models.CorpusStats `json:"evidence_corpus"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if response.Status != "operational" {
		t.Fatalf("expected operational, got %s", response.Status)
	}
	if len(response.SupportedLanguages) != 2 {
		t.Fatalf("expected 2 supported languages, got %v", response.SupportedLanguages)
	}
	if response.EvidenceCorpus.TotalItems != 3 {
		t.Fatalf("expected corpus stats passthrough, got %+v", response.EvidenceCorpus)
	}
}
