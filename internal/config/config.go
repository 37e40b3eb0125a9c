// Package config loads and validates the match engine's YAML
// configuration: pool sizing, the ANN recall/quality knob, cache tuning,
// pipeline weights and toggles, pagination, and the expected embedding
// dimension.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// PoolConfig sizes the relational connection pool.
type PoolConfig struct {
	Min     int           `yaml:"min" validate:"gte=0"`
	Max     int           `yaml:"max" validate:"required,gtefield=Min"`
	Timeout time.Duration `yaml:"timeout" validate:"required"`
	MaxIdle int           `yaml:"max_idle" validate:"gte=0"`
}

// ANNConfig tunes the approximate-nearest-neighbor index's recall/quality
// tradeoff. Exactly one of Probes (IVF-flat) or EfSearch (HNSW) applies,
// depending on the deployed index type; both may be set for a dual-index
// rollout, in which case the DAL passes both through.
type ANNConfig struct {
	Probes   int `yaml:"probes" validate:"gte=0"`
	EfSearch int `yaml:"ef_search" validate:"gte=0"`
}

// CacheConfig mirrors cache.DefaultTTL/cache.DefaultSoftCap's config knobs.
type CacheConfig struct {
	TTLSeconds int `yaml:"ttl_seconds" validate:"gte=0"`
	SoftCap    int `yaml:"soft_cap" validate:"gte=0"`
}

// PipelineWeights blends the cross-encoder and retrieval scores during
// reranking; see rerank.Config.
type PipelineWeights struct {
	Cross    float64 `yaml:"cross" validate:"gte=0,lte=1"`
	Retrieve float64 `yaml:"retrieve" validate:"gte=0,lte=1"`
}

// PipelineConfig toggles and tunes the optional reranking/explanation
// stages.
type PipelineConfig struct {
	TopKRetrieve     int             `yaml:"top_k_retrieve" validate:"gte=0"`
	TopKFinal        int             `yaml:"top_k_final" validate:"gte=0"`
	Weights          PipelineWeights `yaml:"weights"`
	EnableRerank     bool            `yaml:"enable_rerank"`
	EnableExplain    bool            `yaml:"enable_explain"`
	EnableSkillGraph bool            `yaml:"enable_skill_graph"`
}

// PaginationConfig bounds how deep into a result set a caller may page.
type PaginationConfig struct {
	MaxOffset int `yaml:"max_offset" validate:"gte=0"`
}

// EmbeddingConfig declares the dimension every compared embedding must
// share; see model.Embedding.Dimension.
type EmbeddingConfig struct {
	Dimension int `yaml:"dimension" validate:"required,gt=0"`
}

// DatabaseConfig mirrors internal/database.Config's YAML-loadable shape.
type DatabaseConfig struct {
	Host            string        `yaml:"host" validate:"required"`
	Port            int           `yaml:"port" validate:"required,gte=1,lte=65535"`
	User            string        `yaml:"user" validate:"required"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database" validate:"required"`
	SSLMode         string        `yaml:"ssl_mode"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// RedisConfig locates the blacklist store's Redis backend.
type RedisConfig struct {
	Addr     string `yaml:"addr" validate:"required"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" validate:"gte=0"`
}

// RerankerConfig locates the optional cross-encoder HTTP endpoint; left
// zero-valued, the pipeline falls back to a no-op encoder.
type RerankerConfig struct {
	Endpoint string        `yaml:"endpoint"`
	Timeout  time.Duration `yaml:"timeout"`
}

// LoggingConfig controls the shared logrus logger's verbosity and format.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=json text"`
}

// Config is the root configuration document.
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Reranker   RerankerConfig   `yaml:"reranker"`
	Pool       PoolConfig       `yaml:"pool"`
	ANN        ANNConfig        `yaml:"ann"`
	Cache      CacheConfig      `yaml:"cache"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Pagination PaginationConfig `yaml:"pagination"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// Default returns the configuration with every documented default
// applied; Load starts from this and overlays the YAML document on top.
func Default() *Config {
	return &Config{
		Pool: PoolConfig{
			Min:     2,
			Max:     25,
			Timeout: 5 * time.Second,
			MaxIdle: 5,
		},
		Cache: CacheConfig{
			TTLSeconds: 300,
			SoftCap:    1000,
		},
		Pipeline: PipelineConfig{
			TopKRetrieve: 100,
			TopKFinal:    25,
			Weights: PipelineWeights{
				Cross:    0.7,
				Retrieve: 0.3,
			},
		},
		Reranker: RerankerConfig{
			Timeout: 2 * time.Second,
		},
		Pagination: PaginationConfig{
			MaxOffset: 1500,
		},
		Embedding: EmbeddingConfig{
			Dimension: 1024,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads and parses the YAML file at path on top of Default, then
// validates the result.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New()

func validateConfig(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Pipeline.Weights.Cross+cfg.Pipeline.Weights.Retrieve != 1.0 &&
		(cfg.Pipeline.Weights.Cross != 0 || cfg.Pipeline.Weights.Retrieve != 0) {
		return fmt.Errorf("invalid configuration: pipeline.weights.cross + pipeline.weights.retrieve must equal 1.0")
	}
	return nil
}
