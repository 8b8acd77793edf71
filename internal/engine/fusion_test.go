package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mitraverify/verify-engine/internal/models"
)

type fakeTextProducer struct {
	signal models.TextSignal
	calls  int
	panics map[int]bool
}

func (f *fakeTextProducer) Analyze(ctx context.Context, text string) models.TextSignal {
	f.calls++
	if f.panics[f.calls] {
		panic("classifier exploded")
	}
	return f.signal
}

type fakeImageProducer struct {
	signal models.ImageSignal
}

func (f *fakeImageProducer) Analyze(path string) models.ImageSignal {
	return f.signal
}

type fakeRetriever struct {
	items []models.EvidenceItem
	err   error
}

func (f *fakeRetriever) Retrieve(ctx context.Context, query string, topK int) ([]models.EvidenceItem, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.items, nil
}

func textSignal(label models.TextLabel, confidence float64) models.TextSignal {
	return models.TextSignal{Label: label, Confidence: confidence}
}

func imageSignal(verdict models.ImageVerdict, confidence float64) models.ImageSignal {
	return models.ImageSignal{Verdict: verdict, Confidence: confidence}
}

func TestFuseNoSignalBaseline(t *testing.T) {
	e := NewFusionEngine(nil, nil, nil, nil)

	result := e.Analyze(context.Background(), models.AnalysisRequest{})

	if result.OverallVerdict != models.VerdictUnknown {
		t.Fatalf("expected unknown verdict, got %s", result.OverallVerdict)
	}
	if result.Confidence != 0.5 {
		t.Fatalf("expected baseline confidence 0.5, got %f", result.Confidence)
	}
	if result.Explanation != noIndicatorsExplanation {
		t.Fatalf("expected fallback explanation, got %q", result.Explanation)
	}
}

func TestFuseTextSetsBaseline(t *testing.T) {
	e := NewFusionEngine(nil,
		&fakeTextProducer{signal: textSignal(models.TextLabelMisinformation, 0.85)},
		nil,
		&fakeRetriever{})

	result := e.Analyze(context.Background(), models.AnalysisRequest{Text: "some claim"})

	if result.OverallVerdict != models.VerdictMisinformation {
		t.Fatalf("expected misinformation, got %s", result.OverallVerdict)
	}
	if result.Confidence != 0.85 {
		t.Fatalf("expected confidence 0.85, got %f", result.Confidence)
	}
	if !strings.Contains(result.Explanation, "misinformation") {
		t.Fatalf("explanation missing text rationale: %q", result.Explanation)
	}
}

func TestFuseConflictDowngradesToNeedsVerification(t *testing.T) {
	e := NewFusionEngine(nil,
		&fakeTextProducer{signal: textSignal(models.TextLabelReliable, 0.9)},
		&fakeImageProducer{signal: imageSignal(models.ImageVerdictManipulated, 0.7)},
		&fakeRetriever{})

	result := e.Analyze(context.Background(), models.AnalysisRequest{Text: "claim", ImagePath: "x.png"})

	if result.OverallVerdict != models.VerdictNeedsVerification {
		t.Fatalf("expected needs_verification, got %s", result.OverallVerdict)
	}
	// Conflict resolves pessimistically: min of the two confidences.
	if result.Confidence != 0.7 {
		t.Fatalf("expected min confidence 0.7, got %f", result.Confidence)
	}
}

func TestFuseAgreementEscalatesToMisinformation(t *testing.T) {
	e := NewFusionEngine(nil,
		&fakeTextProducer{signal: textSignal(models.TextLabelMisinformation, 0.6)},
		&fakeImageProducer{signal: imageSignal(models.ImageVerdictManipulated, 0.8)},
		&fakeRetriever{})

	result := e.Analyze(context.Background(), models.AnalysisRequest{Text: "claim", ImagePath: "x.png"})

	if result.OverallVerdict != models.VerdictMisinformation {
		t.Fatalf("expected misinformation, got %s", result.OverallVerdict)
	}
	// Agreement resolves optimistically toward flagging: max of the two.
	if result.Confidence != 0.8 {
		t.Fatalf("expected max confidence 0.8, got %f", result.Confidence)
	}
}

func TestFuseManipulationAloneFlagsMisinformation(t *testing.T) {
	e := NewFusionEngine(nil, nil,
		&fakeImageProducer{signal: imageSignal(models.ImageVerdictManipulated, 0.75)},
		nil)

	result := e.Analyze(context.Background(), models.AnalysisRequest{ImagePath: "x.png"})

	if result.OverallVerdict != models.VerdictMisinformation {
		t.Fatalf("expected misinformation, got %s", result.OverallVerdict)
	}
	if result.Confidence != 0.75 {
		t.Fatalf("expected confidence 0.75, got %f", result.Confidence)
	}
}

func TestFuseAuthenticImageFillsUnknownBaseline(t *testing.T) {
	e := NewFusionEngine(nil, nil,
		&fakeImageProducer{signal: imageSignal(models.ImageVerdictAuthentic, 0.6)},
		nil)

	result := e.Analyze(context.Background(), models.AnalysisRequest{ImagePath: "x.png"})

	if result.OverallVerdict != models.VerdictReliable {
		t.Fatalf("expected reliable, got %s", result.OverallVerdict)
	}
	if result.Confidence != 0.6 {
		t.Fatalf("expected confidence 0.6, got %f", result.Confidence)
	}
}

func TestFuseMonotonicSuspicion(t *testing.T) {
	// Authenticity never overrides a misinformation call.
	e := NewFusionEngine(nil,
		&fakeTextProducer{signal: textSignal(models.TextLabelMisinformation, 0.9)},
		&fakeImageProducer{signal: imageSignal(models.ImageVerdictAuthentic, 0.95)},
		&fakeRetriever{})

	result := e.Analyze(context.Background(), models.AnalysisRequest{Text: "claim", ImagePath: "x.png"})

	if result.OverallVerdict != models.VerdictMisinformation {
		t.Fatalf("expected misinformation to stick, got %s", result.OverallVerdict)
	}
	if result.Confidence != 0.9 {
		t.Fatalf("expected confidence 0.9, got %f", result.Confidence)
	}
}

func TestFuseEvidenceEscalatesFromUnknown(t *testing.T) {
	result := models.FusionResult{
		Evidence: []models.EvidenceItem{
			{Claim: "known hoax", Verdict: models.EvidenceVerdictFalse, Similarity: 0.9},
		},
	}

	e := NewFusionEngine(nil, nil, nil, nil)
	e.fuse(&result)

	if result.OverallVerdict != models.VerdictLikelyMisinformation {
		t.Fatalf("expected likely_misinformation, got %s", result.OverallVerdict)
	}
	if result.Confidence != 0.7 {
		t.Fatalf("expected fixed confidence 0.7, got %f", result.Confidence)
	}
	if !strings.Contains(result.Explanation, "1 similar debunked claims") {
		t.Fatalf("expected debunked-claims rationale, got %q", result.Explanation)
	}
}

func TestFuseEvidenceDowngradesReliable(t *testing.T) {
	e := NewFusionEngine(nil,
		&fakeTextProducer{signal: textSignal(models.TextLabelReliable, 0.9)},
		nil,
		&fakeRetriever{items: []models.EvidenceItem{
			{Claim: "debunked", Verdict: models.EvidenceVerdictFalse, Similarity: 0.8},
			{Claim: "confirmed", Verdict: "true", Similarity: 0.5},
		}})

	result := e.Analyze(context.Background(), models.AnalysisRequest{Text: "claim"})

	if result.OverallVerdict != models.VerdictNeedsVerification {
		t.Fatalf("expected needs_verification, got %s", result.OverallVerdict)
	}
	if result.Confidence != 0.6 {
		t.Fatalf("expected confidence capped at 0.6, got %f", result.Confidence)
	}
}

func TestFuseEvidenceWithoutFalseItemsChangesNothing(t *testing.T) {
	e := NewFusionEngine(nil,
		&fakeTextProducer{signal: textSignal(models.TextLabelReliable, 0.8)},
		nil,
		&fakeRetriever{items: []models.EvidenceItem{
			{Claim: "confirmed", Verdict: "true", Similarity: 0.9},
		}})

	result := e.Analyze(context.Background(), models.AnalysisRequest{Text: "claim"})

	if result.OverallVerdict != models.VerdictReliable {
		t.Fatalf("expected reliable, got %s", result.OverallVerdict)
	}
	if result.Confidence != 0.8 {
		t.Fatalf("expected confidence 0.8, got %f", result.Confidence)
	}
}

func TestFuseConfidenceClamped(t *testing.T) {
	for _, conf := range []float64{-0.5, 0.0, 0.5, 1.0, 1.5} {
		result := models.FusionResult{
			TextSignal: &models.TextSignal{Label: models.TextLabelMisinformation, Confidence: conf},
		}
		e := NewFusionEngine(nil, nil, nil, nil)
		e.fuse(&result)
		if result.Confidence < 0 || result.Confidence > 1 {
			t.Fatalf("confidence %f escaped [0,1] for input %f", result.Confidence, conf)
		}
	}
}

func TestFuseErrorSignalsAreSkipped(t *testing.T) {
	e := NewFusionEngine(nil,
		&fakeTextProducer{signal: models.TextSignal{Label: models.TextLabelError, Confidence: 0}},
		&fakeImageProducer{signal: models.ImageSignal{Verdict: models.ImageVerdictError, Confidence: 0}},
		&fakeRetriever{})

	result := e.Analyze(context.Background(), models.AnalysisRequest{Text: "claim", ImagePath: "x.png"})

	if result.OverallVerdict != models.VerdictUnknown {
		t.Fatalf("error signals must not force a verdict, got %s", result.OverallVerdict)
	}
	if result.Explanation != noIndicatorsExplanation {
		t.Fatalf("expected fallback explanation, got %q", result.Explanation)
	}
	if len(result.Evidence) != 0 {
		t.Fatalf("evidence must not be retrieved after a text error")
	}
}

func TestAnalyzeEvidenceFailureDegradesToEmpty(t *testing.T) {
	e := NewFusionEngine(nil,
		&fakeTextProducer{signal: textSignal(models.TextLabelReliable, 0.8)},
		nil,
		&fakeRetriever{err: errors.New("vector store down")})

	result := e.Analyze(context.Background(), models.AnalysisRequest{Text: "claim"})

	if result.OverallVerdict != models.VerdictReliable {
		t.Fatalf("evidence failure must not fail the request, got %s", result.OverallVerdict)
	}
	if len(result.Evidence) != 0 {
		t.Fatalf("expected empty evidence after retrieval failure")
	}
}

func TestBatchIsolation(t *testing.T) {
	producer := &fakeTextProducer{
		signal: textSignal(models.TextLabelReliable, 0.8),
		panics: map[int]bool{2: true},
	}
	e := NewFusionEngine(nil, producer, nil, &fakeRetriever{})

	requests := []models.AnalysisRequest{
		{Text: "first"},
		{Text: "second"},
		{Text: "third"},
	}
	results := e.BatchAnalyze(context.Background(), requests)

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[1].OverallVerdict != models.VerdictError {
		t.Fatalf("expected error verdict for failed item, got %s", results[1].OverallVerdict)
	}
	if results[1].Confidence != 0 {
		t.Fatalf("expected zero confidence for failed item, got %f", results[1].Confidence)
	}
	for _, i := range []int{0, 2} {
		if results[i].OverallVerdict != models.VerdictReliable {
			t.Fatalf("result %d affected by sibling failure: %s", i, results[i].OverallVerdict)
		}
	}
}

func TestFuseAppendsProducerExplanation(t *testing.T) {
	e := NewFusionEngine(nil,
		&fakeTextProducer{signal: models.TextSignal{
			Label:       models.TextLabelMisinformation,
			Confidence:  0.9,
			Explanation: "High confidence detection of misinformation patterns in the text.",
		}},
		nil,
		&fakeRetriever{})

	result := e.Analyze(context.Background(), models.AnalysisRequest{Text: "claim"})

	if !strings.Contains(result.Explanation, "Analysis details:") {
		t.Fatalf("expected producer explanation to be appended, got %q", result.Explanation)
	}
}
