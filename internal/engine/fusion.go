package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mitraverify/verify-engine/internal/metrics"
	"github.com/mitraverify/verify-engine/internal/models"
)

// TextProducer yields the text signal for a request.
type TextProducer interface {
	Analyze(ctx context.Context, text string) models.TextSignal
}

// ImageProducer yields the image signal for a request.
type ImageProducer interface {
	Analyze(path string) models.ImageSignal
}

// EvidenceRetriever returns ranked prior fact-checks for a claim.
type EvidenceRetriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]models.EvidenceItem, error)
}

// Fallback explanation when no signal produced a rationale sentence.
const noIndicatorsExplanation = "Analysis completed but no clear indicators found"

// Evidence contribution uses fixed contract constants rather than values
// derived from similarity scores.
const (
	evidenceEscalationConfidence = 0.7
	evidenceDowngradeCap         = 0.6
	evidenceTopK                 = 2
)

// FusionEngine reconciles the text, image, and evidence signals into one
// verdict with a calibrated confidence and a human-readable rationale.
type FusionEngine struct {
	logger   *slog.Logger
	text     TextProducer
	image    ImageProducer
	evidence EvidenceRetriever
}

// NewFusionEngine constructs the engine. Any producer may be nil; absent
// producers simply never contribute a signal.
func NewFusionEngine(logger *slog.Logger, text TextProducer, image ImageProducer, evidence EvidenceRetriever) *FusionEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &FusionEngine{logger: logger, text: text, image: image, evidence: evidence}
}

// Analyze runs the producers for the supplied modalities and fuses their
// outputs. Producer failures degrade to absent signals; only an internal
// engine failure yields an error verdict.
func (e *FusionEngine) Analyze(ctx context.Context, req models.AnalysisRequest) models.FusionResult {
	start := time.Now()

	result := models.FusionResult{
		VerificationID: uuid.NewString(),
		OverallVerdict: models.VerdictUnknown,
		Evidence:       []models.EvidenceItem{},
		CreatedAt:      start.UTC(),
	}

	if req.Text != "" && e.text != nil {
		signal := e.text.Analyze(ctx, req.Text)
		result.TextSignal = &signal

		if signal.Label == models.TextLabelError {
			metrics.ObserveSignalError("text")
		} else if e.evidence != nil {
			evidence, err := e.evidence.Retrieve(ctx, req.Text, evidenceTopK)
			if err != nil {
				e.logger.Warn("evidence retrieval failed", slog.Any("error", err))
				metrics.ObserveSignalError("evidence")
				evidence = nil
			}
			if evidence != nil {
				result.Evidence = evidence
			}
		}
	}

	if req.ImagePath != "" && e.image != nil {
		signal := e.image.Analyze(req.ImagePath)
		result.ImageSignal = &signal
		if signal.Verdict == models.ImageVerdictError {
			metrics.ObserveSignalError("image")
		}
	}

	e.fuse(&result)

	result.ProcessingTime = time.Since(start).Seconds()
	e.logger.Info("content analysis completed",
		slog.String("verdict", string(result.OverallVerdict)),
		slog.Float64("confidence", result.Confidence))
	return result
}

// fuse applies the reconciliation algorithm. Ordering is significant: text
// sets the baseline, image can escalate toward misinformation or fill in an
// unknown baseline, and evidence can escalate from unknown or downgrade from
// reliable. Once any signal raises suspicion no later step relaxes it.
func (e *FusionEngine) fuse(result *models.FusionResult) {
	verdict := models.VerdictUnknown
	confidence := 0.5
	var explanations []string

	// Text contribution.
	if ts := result.TextSignal; ts != nil && ts.Label != models.TextLabelError && ts.Label != "" {
		textConf := ts.Confidence
		if ts.Label == models.TextLabelMisinformation {
			verdict = models.VerdictMisinformation
			confidence = textConf
			explanations = append(explanations,
				fmt.Sprintf("Text analysis indicates misinformation with %.1f%% confidence", textConf*100))
		} else {
			verdict = models.VerdictReliable
			confidence = textConf
			explanations = append(explanations,
				fmt.Sprintf("Text analysis indicates reliable content with %.1f%% confidence", textConf*100))
		}
		if len(ts.Explanation) > 10 {
			explanations = append(explanations, fmt.Sprintf("Analysis details: %s", ts.Explanation))
		}
	}

	// Image contribution. Manipulation evidence can override reliability, but
	// authenticity never overrides a misinformation call.
	if is := result.ImageSignal; is != nil && is.Verdict != models.ImageVerdictError {
		imageConf := is.Confidence
		switch is.Verdict {
		case models.ImageVerdictManipulated:
			if verdict == models.VerdictReliable {
				verdict = models.VerdictNeedsVerification
				confidence = min(confidence, imageConf)
				explanations = append(explanations,
					fmt.Sprintf("Image analysis suggests potential manipulation with %.1f%% confidence", imageConf*100))
			} else {
				verdict = models.VerdictMisinformation
				confidence = max(confidence, imageConf)
				explanations = append(explanations,
					fmt.Sprintf("Image analysis confirms potential manipulation with %.1f%% confidence", imageConf*100))
			}
		case models.ImageVerdictAuthentic:
			if verdict == models.VerdictUnknown {
				verdict = models.VerdictReliable
				confidence = imageConf
				explanations = append(explanations,
					fmt.Sprintf("Image analysis indicates authentic content with %.1f%% confidence", imageConf*100))
			} else if verdict == models.VerdictReliable {
				confidence = max(confidence, imageConf)
				explanations = append(explanations,
					fmt.Sprintf("Image analysis confirms authentic content with %.1f%% confidence", imageConf*100))
			}
		}
	}

	// Evidence contribution.
	if len(result.Evidence) > 0 {
		debunked := 0
		for _, item := range result.Evidence {
			if item.Verdict == models.EvidenceVerdictFalse {
				debunked++
			}
		}
		if debunked > 0 {
			if verdict == models.VerdictUnknown {
				verdict = models.VerdictLikelyMisinformation
				confidence = evidenceEscalationConfidence
			} else if verdict == models.VerdictReliable {
				verdict = models.VerdictNeedsVerification
				confidence = min(confidence, evidenceDowngradeCap)
			}
			explanations = append(explanations,
				fmt.Sprintf("Found %d similar debunked claims in evidence database", debunked))
		}
	}

	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	result.OverallVerdict = verdict
	result.Confidence = confidence
	if len(explanations) > 0 {
		result.Explanation = strings.Join(explanations, " ")
	} else {
		result.Explanation = noIndicatorsExplanation
	}
}

// BatchAnalyze processes requests sequentially and independently. A failure
// in one request produces an error entry for that position without aborting
// the rest of the batch.
func (e *FusionEngine) BatchAnalyze(ctx context.Context, requests []models.AnalysisRequest) []models.FusionResult {
	results := make([]models.FusionResult, 0, len(requests))
	for _, req := range requests {
		results = append(results, e.analyzeIsolated(ctx, req))
	}
	return results
}

func (e *FusionEngine) analyzeIsolated(ctx context.Context, req models.AnalysisRequest) (result models.FusionResult) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("batch analysis item failed", slog.Any("panic", r))
			result = models.FusionResult{
				OverallVerdict: models.VerdictError,
				Confidence:     0,
				Evidence:       []models.EvidenceItem{},
				Error:          fmt.Sprintf("%v", r),
			}
		}
	}()
	return e.Analyze(ctx, req)
}
