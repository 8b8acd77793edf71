package analyzers

import (
	"context"
	"log/slog"
	"strings"

	"github.com/mitraverify/verify-engine/internal/models"
	"github.com/mitraverify/verify-engine/internal/repo"
)

// Classifier is the black-box text classification model behind the producer.
type Classifier interface {
	Predict(ctx context.Context, text string) (repo.Prediction, error)
}

// Lexical indicators used to correct raw model probabilities. The underlying
// model is not fine-tuned for misinformation, so keyword evidence is allowed
// to adjust confidence and, when strong enough, flip the predicted label.
var (
	misinfoKeywords = []string{
		"fake", "hoax", "conspiracy", "secret", "hidden", "exposed", "truth",
		"lie", "cover-up", "scandal", "shocking", "urgent", "warning",
	}
	reliableKeywords = []string{
		"study", "research", "evidence", "data", "analysis", "expert",
		"scientist", "doctor", "professor", "university", "official",
	}
)

// Text-signal confidence bounds: the producer is never absolutely certain.
const (
	minTextConfidence = 0.10
	maxTextConfidence = 0.95
)

// TextAnalyzer wraps the classifier and applies lexical confidence
// adjustment before the prediction is trusted by fusion.
type TextAnalyzer struct {
	classifier Classifier
	modelName  string
	logger     *slog.Logger
}

// NewTextAnalyzer constructs the text signal producer.
func NewTextAnalyzer(classifier Classifier, modelName string, logger *slog.Logger) *TextAnalyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &TextAnalyzer{classifier: classifier, modelName: modelName, logger: logger}
}

// Analyze classifies the text and returns the adjusted signal. Classifier
// failures degrade to an error-state signal with zero confidence.
func (a *TextAnalyzer) Analyze(ctx context.Context, text string) models.TextSignal {
	language := DetectLanguage(text)
	if !IsSupportedLanguage(language) {
		a.logger.Warn("unsupported language detected", slog.String("language", language))
	}

	pred, err := a.classifier.Predict(ctx, strings.TrimSpace(text))
	if err != nil {
		a.logger.Error("text classification failed", slog.Any("error", err))
		return models.TextSignal{
			Label:      models.TextLabelError,
			Confidence: 0,
			Language:   language,
			Error:      err.Error(),
		}
	}

	rawLabel := pred.Label
	rawConfidence := pred.Confidence()

	label, confidence := adjustPrediction(text, rawLabel, rawConfidence)

	signal := models.TextSignal{
		Label:      label,
		Confidence: confidence,
		Probabilities: map[string]float64{
			string(models.TextLabelReliable):       reliableProbability(label, confidence),
			string(models.TextLabelMisinformation): misinfoProbability(label, confidence),
		},
		Language:    language,
		Explanation: explainText(label, confidence),
		ModelUsed:   a.modelName,
		RawOutput: &models.RawModelOutput{
			Label:         rawLabel,
			Confidence:    rawConfidence,
			Probabilities: pred.Probabilities,
		},
	}

	a.logger.Info("text analysis completed",
		slog.String("prediction", string(signal.Label)),
		slog.Float64("confidence", signal.Confidence),
		slog.String("language", language))
	return signal
}

// adjustPrediction applies the lexical heuristic. Flip thresholds are
// asymmetric on purpose: two or more contradicting keywords flip the label,
// a single one only softens confidence.
func adjustPrediction(text string, label models.TextLabel, confidence float64) (models.TextLabel, float64) {
	lower := strings.ToLower(text)

	misinfoCount := countKeywords(lower, misinfoKeywords)
	reliableCount := countKeywords(lower, reliableKeywords)

	adjustment := 0.0

	switch {
	case misinfoCount > reliableCount && misinfoCount > 0:
		if label == models.TextLabelMisinformation {
			adjustment += 0.1 + float64(misinfoCount)*0.05
		} else if misinfoCount >= 2 {
			label = models.TextLabelMisinformation
			adjustment += 0.2
		} else {
			adjustment -= 0.1
		}
	case reliableCount > misinfoCount && reliableCount > 0:
		if label == models.TextLabelReliable {
			adjustment += 0.1 + float64(reliableCount)*0.05
		} else if reliableCount >= 2 {
			label = models.TextLabelReliable
			adjustment += 0.2
		} else {
			adjustment -= 0.1
		}
	}

	if len(strings.Fields(text)) < 5 {
		adjustment -= 0.1
	}

	if capsRatio(text) > 0.3 {
		if label == models.TextLabelMisinformation {
			adjustment += 0.1
		} else {
			adjustment -= 0.05
		}
	}

	confidence += adjustment
	if confidence < minTextConfidence {
		confidence = minTextConfidence
	}
	if confidence > maxTextConfidence {
		confidence = maxTextConfidence
	}
	return label, confidence
}

func countKeywords(lower string, keywords []string) int {
	count := 0
	for _, keyword := range keywords {
		if strings.Contains(lower, keyword) {
			count++
		}
	}
	return count
}

func reliableProbability(label models.TextLabel, confidence float64) float64 {
	if label == models.TextLabelReliable {
		return confidence
	}
	return 1.0 - confidence
}

func misinfoProbability(label models.TextLabel, confidence float64) float64 {
	if label == models.TextLabelMisinformation {
		return confidence
	}
	return 1.0 - confidence
}

// explainText buckets the final confidence into a short rationale. The text
// depends only on label and confidence, not on which heuristic fired.
func explainText(label models.TextLabel, confidence float64) string {
	if label == models.TextLabelMisinformation {
		switch {
		case confidence > 0.8:
			return "High confidence detection of misinformation patterns in the text."
		case confidence > 0.6:
			return "Moderate confidence detection of potential misinformation."
		default:
			return "Low confidence detection of possible misinformation patterns."
		}
	}
	switch {
	case confidence > 0.8:
		return "High confidence that the text appears reliable."
	case confidence > 0.6:
		return "Moderate confidence that the text appears reliable."
	default:
		return "Low confidence assessment - text may need further verification."
	}
}
