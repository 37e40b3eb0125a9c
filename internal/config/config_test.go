package config

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Config", func() {
	var (
		tempDir    string
		configFile string
	)

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "config-test")
		Expect(err).NotTo(HaveOccurred())
		configFile = filepath.Join(tempDir, "config.yaml")
	})

	AfterEach(func() {
		os.RemoveAll(tempDir)
	})

	Describe("Load", func() {
		Context("when config file exists with valid content", func() {
			BeforeEach(func() {
				validConfig := `
database:
  host: "db.internal"
  port: 5432
  user: "matchengine"
  database: "jobs_matching"
  ssl_mode: "require"

redis:
  addr: "redis.internal:6379"
  db: 2

pool:
  min: 5
  max: 50
  timeout: 10s
  max_idle: 10

ann:
  probes: 16

cache:
  ttl_seconds: 120
  soft_cap: 2000

pipeline:
  top_k_retrieve: 100
  top_k_final: 25
  weights:
    cross: 0.7
    retrieve: 0.3
  enable_rerank: true
  enable_explain: true

pagination:
  max_offset: 1500

embedding:
  dimension: 1536

logging:
  level: "debug"
  format: "text"
`
				err := os.WriteFile(configFile, []byte(validConfig), 0644)
				Expect(err).NotTo(HaveOccurred())
			})

			It("should load configuration successfully", func() {
				cfg, err := Load(configFile)
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg).NotTo(BeNil())

				Expect(cfg.Database.Host).To(Equal("db.internal"))
				Expect(cfg.Database.Port).To(Equal(5432))
				Expect(cfg.Redis.Addr).To(Equal("redis.internal:6379"))
				Expect(cfg.Redis.DB).To(Equal(2))

				Expect(cfg.Pool.Min).To(Equal(5))
				Expect(cfg.Pool.Max).To(Equal(50))
				Expect(cfg.Pool.Timeout).To(Equal(10 * time.Second))

				Expect(cfg.ANN.Probes).To(Equal(16))

				Expect(cfg.Cache.TTLSeconds).To(Equal(120))
				Expect(cfg.Cache.SoftCap).To(Equal(2000))

				Expect(cfg.Pipeline.TopKRetrieve).To(Equal(100))
				Expect(cfg.Pipeline.TopKFinal).To(Equal(25))
				Expect(cfg.Pipeline.Weights.Cross).To(Equal(0.7))
				Expect(cfg.Pipeline.Weights.Retrieve).To(Equal(0.3))
				Expect(cfg.Pipeline.EnableRerank).To(BeTrue())
				Expect(cfg.Pipeline.EnableExplain).To(BeTrue())

				Expect(cfg.Pagination.MaxOffset).To(Equal(1500))
				Expect(cfg.Embedding.Dimension).To(Equal(1536))

				Expect(cfg.Logging.Level).To(Equal("debug"))
				Expect(cfg.Logging.Format).To(Equal("text"))
			})
		})

		Context("when config file has minimal content", func() {
			BeforeEach(func() {
				minimalConfig := `
database:
  host: "localhost"
  port: 5432
  user: "matchengine"
  database: "jobs_matching"

redis:
  addr: "localhost:6379"
`
				err := os.WriteFile(configFile, []byte(minimalConfig), 0644)
				Expect(err).NotTo(HaveOccurred())
			})

			It("should load with defaults for missing values", func() {
				cfg, err := Load(configFile)
				Expect(err).NotTo(HaveOccurred())

				Expect(cfg.Database.Host).To(Equal("localhost"))
				Expect(cfg.Cache.TTLSeconds).To(Equal(300))
				Expect(cfg.Cache.SoftCap).To(Equal(1000))
				Expect(cfg.Pipeline.TopKRetrieve).To(Equal(100))
				Expect(cfg.Pipeline.TopKFinal).To(Equal(25))
				Expect(cfg.Pagination.MaxOffset).To(Equal(1500))
				Expect(cfg.Embedding.Dimension).To(Equal(1024))
				Expect(cfg.Logging.Level).To(Equal("info"))
			})
		})

		Context("when config file does not exist", func() {
			It("should return an error", func() {
				_, err := Load("/nonexistent/config.yaml")
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("failed to read config file"))
			})
		})

		Context("when config file has invalid YAML", func() {
			BeforeEach(func() {
				invalidConfig := `
database:
  host: "localhost"
  invalid_yaml: [
`
				err := os.WriteFile(configFile, []byte(invalidConfig), 0644)
				Expect(err).NotTo(HaveOccurred())
			})

			It("should return an error", func() {
				_, err := Load(configFile)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("failed to parse config file"))
			})
		})

		Context("when required database fields are missing", func() {
			BeforeEach(func() {
				missingConfig := `
redis:
  addr: "localhost:6379"
`
				err := os.WriteFile(configFile, []byte(missingConfig), 0644)
				Expect(err).NotTo(HaveOccurred())
			})

			It("should return a validation error", func() {
				_, err := Load(configFile)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("invalid configuration"))
			})
		})
	})

	Describe("validateConfig", func() {
		var cfg *Config

		BeforeEach(func() {
			cfg = Default()
			cfg.Database = DatabaseConfig{
				Host:     "localhost",
				Port:     5432,
				User:     "matchengine",
				Database: "jobs_matching",
			}
			cfg.Redis = RedisConfig{Addr: "localhost:6379"}
		})

		Context("when config is valid", func() {
			It("should pass validation", func() {
				Expect(validateConfig(cfg)).To(Succeed())
			})
		})

		Context("when the embedding dimension is zero", func() {
			BeforeEach(func() {
				cfg.Embedding.Dimension = 0
			})

			It("should return a validation error", func() {
				err := validateConfig(cfg)
				Expect(err).To(HaveOccurred())
			})
		})

		Context("when pool max is below pool min", func() {
			BeforeEach(func() {
				cfg.Pool.Min = 10
				cfg.Pool.Max = 5
			})

			It("should return a validation error", func() {
				err := validateConfig(cfg)
				Expect(err).To(HaveOccurred())
			})
		})

		Context("when pipeline weights do not sum to one", func() {
			BeforeEach(func() {
				cfg.Pipeline.Weights = PipelineWeights{Cross: 0.9, Retrieve: 0.3}
			})

			It("should return a validation error", func() {
				err := validateConfig(cfg)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("must equal 1.0"))
			})
		})
	})
})
