package repo

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mitraverify/verify-engine/internal/cache"
	"github.com/mitraverify/verify-engine/internal/models"
	"github.com/mitraverify/verify-engine/internal/utils"
)

// EvidenceRepo retrieves prior fact-checks that are semantically similar to a
// claim. When a Weaviate endpoint is configured it queries the vector store;
// otherwise it falls back to a local JSON corpus with token-overlap scoring.
type EvidenceRepo struct {
	endpoint   string
	apiKey     string
	corpusPath string
	threshold  float64
	httpClient *http.Client
	cache      cache.Provider
	cacheTTL   time.Duration

	mu     sync.Mutex
	corpus []models.EvidenceItem
}

// NewEvidenceRepo constructs the evidence repository and loads the local
// corpus. A missing corpus file is seeded with a small starter set so the
// service remains usable out of the box.
func NewEvidenceRepo(endpoint, apiKey, corpusPath string, threshold float64, timeout time.Duration, cacheProvider cache.Provider, cacheTTL time.Duration) (*EvidenceRepo, error) {
	if cacheProvider == nil {
		cacheProvider = cache.NoopProvider{}
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if threshold <= 0 {
		threshold = 0.3
	}

	r := &EvidenceRepo{
		endpoint:   strings.TrimRight(endpoint, "/"),
		apiKey:     apiKey,
		corpusPath: corpusPath,
		threshold:  threshold,
		httpClient: &http.Client{Timeout: timeout},
		cache:      cacheProvider,
		cacheTTL:   cacheTTL,
	}

	if err := r.loadCorpus(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *EvidenceRepo) loadCorpus() error {
	if r.corpusPath == "" {
		r.corpus = starterCorpus()
		return nil
	}

	data, err := os.ReadFile(r.corpusPath)
	if os.IsNotExist(err) {
		r.corpus = starterCorpus()
		return r.persistCorpusLocked()
	}
	if err != nil {
		return utils.NewAppError("evidence.load", "read evidence corpus", err)
	}
	if err := json.Unmarshal(data, &r.corpus); err != nil {
		return utils.NewAppError("evidence.load", "parse evidence corpus", err)
	}
	return nil
}

// Retrieve returns up to topK fact-checks above the similarity threshold,
// ordered by descending similarity.
func (r *EvidenceRepo) Retrieve(ctx context.Context, query string, topK int) ([]models.EvidenceItem, error) {
	if topK <= 0 {
		topK = 3
	}

	cacheKey := ""
	if r.cacheTTL > 0 {
		cacheKey = evidenceCacheKey(query, topK)
		if data, err := r.cache.Get(ctx, cacheKey); err == nil {
			var cached []models.EvidenceItem
			if err := json.Unmarshal(data, &cached); err == nil {
				return cached, nil
			}
		}
	}

	var results []models.EvidenceItem
	if r.endpoint != "" {
		remote, err := r.retrieveWeaviate(ctx, query, topK)
		if err == nil {
			results = remote
		} else {
			results = r.retrieveLocal(query, topK)
		}
	} else {
		results = r.retrieveLocal(query, topK)
	}

	if cacheKey != "" && len(results) > 0 {
		if payload, err := json.Marshal(results); err == nil {
			_ = r.cache.Set(ctx, cacheKey, payload, r.cacheTTL)
		}
	}

	return results, nil
}

func (r *EvidenceRepo) retrieveWeaviate(ctx context.Context, query string, topK int) ([]models.EvidenceItem, error) {
	concepts, err := json.Marshal([]string{query})
	if err != nil {
		return nil, err
	}

	gql := map[string]interface{}{
		"query": fmt.Sprintf(`{
          Get {
            FactCheck(
              limit: %d
              nearText: {concepts: %s}
            ) {
              claim
              verdict
              source
              url
              explanation
              language
              _additional { id certainty }
            }
          }
        }`, topK, concepts),
	}

	payload, err := json.Marshal(gql)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint+"/v1/graphql", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("weaviate returned %d", resp.StatusCode)
	}

	var response struct {
		Data struct {
			Get struct {
				FactCheck []struct {
					Claim       string `json:"claim"`
					Verdict     string `json:"verdict"`
					Source      string `json:"source"`
					URL         string `json:"url"`
					Explanation string `json:"explanation"`
					Language    string `json:"language"`
					Additional  struct {
						ID        string  `json:"id"`
						Certainty float64 `json:"certainty"`
					} `json:"_additional"`
				} `json:"FactCheck"`
			} `json:"Get"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, err
	}

	results := make([]models.EvidenceItem, 0, len(response.Data.Get.FactCheck))
	for _, rec := range response.Data.Get.FactCheck {
		if rec.Additional.Certainty <= r.threshold {
			continue
		}
		results = append(results, models.EvidenceItem{
			ID:          rec.Additional.ID,
			Claim:       rec.Claim,
			Verdict:     rec.Verdict,
			Similarity:  rec.Additional.Certainty,
			Source:      rec.Source,
			URL:         rec.URL,
			Explanation: rec.Explanation,
			Language:    rec.Language,
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	return results, nil
}

func (r *EvidenceRepo) retrieveLocal(query string, topK int) []models.EvidenceItem {
	r.mu.Lock()
	corpus := append([]models.EvidenceItem(nil), r.corpus...)
	r.mu.Unlock()

	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return nil
	}

	scored := make([]models.EvidenceItem, 0, len(corpus))
	for _, item := range corpus {
		sim := jaccard(queryTokens, tokenize(item.Claim))
		if sim > r.threshold {
			item.Similarity = sim
			scored = append(scored, item)
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})
	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored
}

// Add appends a fact-check to the corpus and rewrites the corpus file. Writes
// are serialized under the repo mutex; callers in a concurrent environment
// share this single writer.
func (r *EvidenceRepo) Add(claim, verdict, explanation, source, url, language string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.corpus = append(r.corpus, models.EvidenceItem{
		ID:          fmt.Sprintf("evidence_%03d", len(r.corpus)+1),
		Claim:       claim,
		Verdict:     verdict,
		Explanation: explanation,
		Source:      source,
		URL:         url,
		Language:    language,
	})
	return r.persistCorpusLocked()
}

func (r *EvidenceRepo) persistCorpusLocked() error {
	if r.corpusPath == "" {
		return nil
	}
	if dir := filepath.Dir(r.corpusPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create corpus dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(r.corpus, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal evidence corpus: %w", err)
	}
	if err := os.WriteFile(r.corpusPath, data, 0o644); err != nil {
		return fmt.Errorf("write evidence corpus: %w", err)
	}
	return nil
}

// Stats aggregates the corpus by verdict and language.
func (r *EvidenceRepo) Stats() models.CorpusStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := models.CorpusStats{
		TotalItems: len(r.corpus),
		ByVerdict:  make(map[string]int),
		ByLanguage: make(map[string]int),
	}
	for _, item := range r.corpus {
		stats.ByVerdict[item.Verdict]++
		if item.Language != "" {
			stats.ByLanguage[item.Language]++
		}
	}
	return stats
}

// Count returns the number of corpus records.
func (r *EvidenceRepo) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.corpus)
}

func evidenceCacheKey(query string, topK int) string {
	sum := sha256.Sum256([]byte(query))
	return fmt.Sprintf("evidence:%d:%s", topK, hex.EncodeToString(sum[:12]))
}

func tokenize(text string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, field := range strings.Fields(strings.ToLower(text)) {
		token := strings.Trim(field, ".,;:!?\"'()[]")
		if len(token) > 2 {
			tokens[token] = struct{}{}
		}
	}
	return tokens
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for token := range a {
		if _, ok := b[token]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func starterCorpus() []models.EvidenceItem {
	return []models.EvidenceItem{
		{
			ID:          "sample_001",
			Claim:       "COVID-19 vaccines contain microchips",
			Verdict:     models.EvidenceVerdictFalse,
			Explanation: "This is a conspiracy theory. COVID-19 vaccines do not contain microchips or tracking devices.",
			Source:      "WHO Fact Check",
			URL:         "https://www.who.int/news-room/feature-stories/detail/vaccines-and-microchips",
			Language:    "en",
		},
		{
			ID:          "sample_002",
			Claim:       "5G towers cause COVID-19",
			Verdict:     models.EvidenceVerdictFalse,
			Explanation: "There is no scientific evidence linking 5G technology to COVID-19 or any health issues.",
			Source:      "CDC",
			URL:         "https://www.cdc.gov/coronavirus/2019-ncov/science/science-briefs/5g-mobile-networks-COVID-19.html",
			Language:    "en",
		},
		{
			ID:          "sample_003",
			Claim:       "कोविड-19 वैक्सीन में माइक्रोचिप हैं",
			Verdict:     models.EvidenceVerdictFalse,
			Explanation: "यह एक साजिश सिद्धांत है। कोविड-19 वैक्सीन में माइक्रोचिप या ट्रैकिंग डिवाइस नहीं होते।",
			Source:      "WHO Fact Check",
			URL:         "https://www.who.int/news-room/feature-stories/detail/vaccines-and-microchips",
			Language:    "hi",
		},
	}
}
