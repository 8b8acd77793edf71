package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mitraverify/verify-engine/internal/cache"
	"github.com/mitraverify/verify-engine/internal/engine"
	"github.com/mitraverify/verify-engine/internal/metrics"
	"github.com/mitraverify/verify-engine/internal/models"
	"github.com/mitraverify/verify-engine/internal/utils"
)

// EvidenceInfo exposes the corpus operations needed by operational endpoints.
type EvidenceInfo interface {
	Stats() models.CorpusStats
	Count() int
}

// VerifyService fronts the fusion engine with per-request deadlines, result
// caching, and latency/outcome observation.
type VerifyService struct {
	logger         *slog.Logger
	engine         *engine.FusionEngine
	evidence       EvidenceInfo
	cacheProvider  cache.Provider
	resultTTL      time.Duration
	requestTimeout time.Duration
	latencies      *utils.LatencyTracker
}

// NewVerifyService constructs the service facade.
func NewVerifyService(logger *slog.Logger, fusionEngine *engine.FusionEngine, evidence EvidenceInfo, cacheProvider cache.Provider, resultTTL, requestTimeout time.Duration) *VerifyService {
	if logger == nil {
		logger = slog.Default()
	}
	if cacheProvider == nil {
		cacheProvider = cache.NoopProvider{}
	}
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}
	return &VerifyService{
		logger:         logger,
		engine:         fusionEngine,
		evidence:       evidence,
		cacheProvider:  cacheProvider,
		resultTTL:      resultTTL,
		requestTimeout: requestTimeout,
		latencies:      utils.NewLatencyTracker(1024),
	}
}

// Verify analyzes one request under the configured deadline. Text-only
// requests are served from cache when possible; image paths are ephemeral
// uploads and never cached. An engine failure surfaces as an error-verdict
// result rather than a dropped request.
func (s *VerifyService) Verify(ctx context.Context, req models.AnalysisRequest) (result models.FusionResult) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("verification failed", slog.Any("panic", r))
			result = models.FusionResult{
				OverallVerdict: models.VerdictError,
				Confidence:     0,
				Evidence:       []models.EvidenceItem{},
				Error:          fmt.Sprintf("%v", r),
			}
		}
	}()
	return s.verify(ctx, req)
}

func (s *VerifyService) verify(ctx context.Context, req models.AnalysisRequest) models.FusionResult {
	ctx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	defer cancel()

	cacheKey := ""
	if s.resultTTL > 0 && req.Text != "" && req.ImagePath == "" {
		cacheKey = resultCacheKey(req.Text)
		if data, err := s.cacheProvider.Get(ctx, cacheKey); err == nil {
			var cached models.FusionResult
			if err := json.Unmarshal(data, &cached); err == nil {
				return cached
			}
		}
	}

	start := time.Now()
	result := s.engine.Analyze(ctx, req)
	duration := time.Since(start)

	outcome := metrics.OutcomeSuccess
	if result.OverallVerdict == models.VerdictError {
		outcome = metrics.OutcomeError
	}
	metrics.ObserveVerification(duration, outcome, string(result.OverallVerdict))

	s.latencies.Observe(duration)
	if count := s.latencies.Count(); count >= 20 && count%20 == 0 {
		p95 := s.latencies.Percentile(95)
		s.logger.Info("verification latency", slog.Duration("p95", p95), slog.Int("samples", count))
	}

	if cacheKey != "" && result.OverallVerdict != models.VerdictError {
		if payload, err := json.Marshal(result); err == nil {
			_ = s.cacheProvider.Set(ctx, cacheKey, payload, s.resultTTL)
		}
	}

	return result
}

// BatchVerify analyzes requests sequentially with per-item isolation: a
// failure in one request yields an error entry for that position only.
func (s *VerifyService) BatchVerify(ctx context.Context, requests []models.AnalysisRequest) []models.FusionResult {
	results := make([]models.FusionResult, 0, len(requests))
	for _, req := range requests {
		results = append(results, s.Verify(ctx, req))
	}
	return results
}

// CorpusStats reports evidence corpus aggregates for /stats.
func (s *VerifyService) CorpusStats() models.CorpusStats {
	if s.evidence == nil {
		return models.CorpusStats{}
	}
	return s.evidence.Stats()
}

// ComponentHealth probes each collaborator and reports per-component status.
func (s *VerifyService) ComponentHealth(ctx context.Context) []models.ComponentHealth {
	components := make([]models.ComponentHealth, 0, 3)

	textStatus := "healthy"
	probe := s.engine.Analyze(ctx, models.AnalysisRequest{Text: "Test message"})
	if probe.TextSignal == nil || probe.TextSignal.Label == models.TextLabelError {
		textStatus = "unhealthy"
	}
	components = append(components, models.ComponentHealth{Name: "text_analyzer", Status: textStatus})

	// The image analyzer holds no remote dependency worth probing.
	components = append(components, models.ComponentHealth{Name: "image_analyzer", Status: "healthy"})

	evidenceStatus := "healthy"
	if s.evidence == nil || s.evidence.Count() == 0 {
		evidenceStatus = "unhealthy"
	}
	components = append(components, models.ComponentHealth{Name: "evidence_retriever", Status: evidenceStatus})

	return components
}

// LatencyP95 returns the current p95 verification latency.
func (s *VerifyService) LatencyP95() time.Duration {
	if s.latencies == nil {
		return 0
	}
	return s.latencies.Percentile(95)
}

func resultCacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "verify:text:" + hex.EncodeToString(sum[:16])
}
