package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config captures the settings required to boot the verification engine.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Inference InferenceConfig `yaml:"inference"`
	Evidence  EvidenceConfig  `yaml:"evidence"`
	Images    ImagesConfig    `yaml:"images"`
	Logging   LoggingConfig   `yaml:"logging"`
	Cache     CacheConfig     `yaml:"cache"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	RateLimitRPS    float64       `yaml:"rateLimitRPS"`
	RateLimitBurst  int           `yaml:"rateLimitBurst"`
}

// InferenceConfig configures access to the text-classification service.
type InferenceConfig struct {
	BaseURL     string        `yaml:"baseURL"`
	PredictPath string        `yaml:"predictPath"`
	ModelName   string        `yaml:"modelName"`
	Timeout     time.Duration `yaml:"timeout"`
}

// EvidenceConfig configures the fact-check evidence store.
type EvidenceConfig struct {
	WeaviateEndpoint string        `yaml:"weaviateEndpoint"`
	WeaviateAPIKey   string        `yaml:"weaviateAPIKey"`
	CorpusPath       string        `yaml:"corpusPath"`
	Threshold        float64       `yaml:"threshold"`
	Timeout          time.Duration `yaml:"timeout"`
}

// ImagesConfig controls the image forensics producer.
type ImagesConfig struct {
	HashRegistryPath string `yaml:"hashRegistryPath"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// CacheConfig controls Redis-backed caching of verification results.
type CacheConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Addr        string        `yaml:"addr"`
	Username    string        `yaml:"username"`
	Password    string        `yaml:"password"`
	DB          int           `yaml:"db"`
	DialTimeout time.Duration `yaml:"dialTimeout"`
	ResultTTL   time.Duration `yaml:"resultTTL"`
	EvidenceTTL time.Duration `yaml:"evidenceTTL"`
}

// Load initialises Config from a YAML file, a .env file when present, and
// environment overrides.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	if path == "" {
		path = os.Getenv("MITRAVERIFY_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":8080",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
			RequestTimeout:  30 * time.Second,
			RateLimitRPS:    20,
			RateLimitBurst:  40,
		},
		Inference: InferenceConfig{
			PredictPath: "/v1/models/text-classifier:predict",
			ModelName:   "google/muril-base-cased",
			Timeout:     10 * time.Second,
		},
		Evidence: EvidenceConfig{
			CorpusPath: "data/evidence_corpus.json",
			Threshold:  0.3,
			Timeout:    5 * time.Second,
		},
		Images: ImagesConfig{
			HashRegistryPath: "data/image_hashes.txt",
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
		Cache: CacheConfig{
			Enabled:     false,
			DialTimeout: 2 * time.Second,
			ResultTTL:   5 * time.Minute,
			EvidenceTTL: 2 * time.Minute,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MITRAVERIFY_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("MITRAVERIFY_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("MITRAVERIFY_REQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.RequestTimeout = d
		}
	}
	if v := os.Getenv("MITRAVERIFY_INFERENCE_URL"); v != "" {
		cfg.Inference.BaseURL = v
	}
	if v := os.Getenv("MITRAVERIFY_INFERENCE_MODEL"); v != "" {
		cfg.Inference.ModelName = v
	}
	if v := os.Getenv("MITRAVERIFY_WEAVIATE_URL"); v != "" {
		cfg.Evidence.WeaviateEndpoint = v
	}
	if v := os.Getenv("MITRAVERIFY_WEAVIATE_API_KEY"); v != "" {
		cfg.Evidence.WeaviateAPIKey = v
	}
	if v := os.Getenv("MITRAVERIFY_EVIDENCE_CORPUS"); v != "" {
		cfg.Evidence.CorpusPath = v
	}
	if v := os.Getenv("MITRAVERIFY_HASH_REGISTRY"); v != "" {
		cfg.Images.HashRegistryPath = v
	}
	if v := os.Getenv("MITRAVERIFY_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("MITRAVERIFY_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("MITRAVERIFY_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("MITRAVERIFY_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("MITRAVERIFY_CACHE_USERNAME"); v != "" {
		cfg.Cache.Username = v
	}
	if v := os.Getenv("MITRAVERIFY_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("MITRAVERIFY_CACHE_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Cache.DB = db
		}
	}
	if v := os.Getenv("MITRAVERIFY_CACHE_RESULT_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.ResultTTL = d
		}
	}
	if v := os.Getenv("MITRAVERIFY_CACHE_EVIDENCE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.EvidenceTTL = d
		}
	}
}
