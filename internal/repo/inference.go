package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mitraverify/verify-engine/internal/models"
)

// Prediction is the raw two-class output of the text classification model.
type Prediction struct {
	Label         models.TextLabel   `json:"label"`
	Probabilities map[string]float64 `json:"probabilities"`
}

// Confidence returns the probability assigned to the predicted label.
func (p Prediction) Confidence() float64 {
	if v, ok := p.Probabilities[string(p.Label)]; ok {
		return v
	}
	return 0.5
}

// InferenceClient calls an external text-classification inference service.
// The model is a black box: it returns a label and a probability pair; all
// interpretation happens in the analyzers package.
type InferenceClient struct {
	baseURL     string
	predictPath string
	modelName   string
	httpClient  *http.Client
}

// NewInferenceClient constructs a client for the inference service. An empty
// base URL yields a neutral synthetic prior so the lexical heuristics drive
// the verdict (useful for local development without a model server).
func NewInferenceClient(baseURL, predictPath, modelName string, timeout time.Duration) *InferenceClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if predictPath == "" {
		predictPath = "/v1/models/text-classifier:predict"
	}
	return &InferenceClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		predictPath: predictPath,
		modelName:   modelName,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// ModelName reports the configured model identifier.
func (c *InferenceClient) ModelName() string {
	return c.modelName
}

// Predict classifies the text as reliable or misinformation.
func (c *InferenceClient) Predict(ctx context.Context, text string) (Prediction, error) {
	if c.baseURL == "" {
		return syntheticPrediction(), nil
	}

	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return Prediction{}, fmt.Errorf("marshal predict request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.predictPath, bytes.NewReader(payload))
	if err != nil {
		return Prediction{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Prediction{}, fmt.Errorf("inference request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return Prediction{}, fmt.Errorf("inference service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var pred Prediction
	if err := json.NewDecoder(resp.Body).Decode(&pred); err != nil {
		return Prediction{}, fmt.Errorf("decode prediction: %w", err)
	}
	if pred.Label != models.TextLabelReliable && pred.Label != models.TextLabelMisinformation {
		return Prediction{}, fmt.Errorf("unexpected label %q from inference service", pred.Label)
	}
	if len(pred.Probabilities) == 0 {
		pred.Probabilities = map[string]float64{
			string(models.TextLabelReliable):       0.5,
			string(models.TextLabelMisinformation): 0.5,
		}
	}
	return pred, nil
}

func syntheticPrediction() Prediction {
	return Prediction{
		Label: models.TextLabelReliable,
		Probabilities: map[string]float64{
			string(models.TextLabelReliable):       0.5,
			string(models.TextLabelMisinformation): 0.5,
		},
	}
}
