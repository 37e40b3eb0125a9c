// Command matchengine is the composition root for the match engine core:
// it loads configuration, wires the database pool, blacklist store, cache,
// optional reranker and optional skill taxonomy into a single
// pipeline.Pipeline, and then blocks until asked to shut down. The
// HTTP/RPC surface that would actually accept requests is an external
// collaborator per the configuration's documented scope and is not built
// here; this binary exists so that surface has a single, fully-wired
// Pipeline to import.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/jordigilh/matchengine/internal/config"
	"github.com/jordigilh/matchengine/internal/database"
	"github.com/jordigilh/matchengine/pkg/matchengine/blacklist"
	"github.com/jordigilh/matchengine/pkg/matchengine/cache"
	"github.com/jordigilh/matchengine/pkg/matchengine/dal"
	"github.com/jordigilh/matchengine/pkg/matchengine/explain"
	"github.com/jordigilh/matchengine/pkg/matchengine/pipeline"
	"github.com/jordigilh/matchengine/pkg/matchengine/rerank"
	sharederrors "github.com/jordigilh/matchengine/pkg/shared/errors"
	sharedhttp "github.com/jordigilh/matchengine/pkg/shared/http"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the match engine configuration file")
	flag.Parse()

	logger := logrus.New()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.WithError(err).Fatal("failed to load configuration")
	}
	configureLogger(logger, cfg.Logging)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	p, closeFn, err := buildPipeline(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to build pipeline")
	}
	defer closeFn()

	logger.WithField("embedding_dimension", cfg.Embedding.Dimension).Info("match engine pipeline ready")

	<-ctx.Done()
	logger.Info("shutdown signal received, draining")
}

func configureLogger(logger *logrus.Logger, cfg config.LoggingConfig) {
	if level, err := logrus.ParseLevel(cfg.Level); err == nil {
		logger.SetLevel(level)
	}
	if cfg.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
}

// buildPipeline wires every pipeline.Pipeline dependency from cfg. The
// returned closeFn releases the database pool's underlying connections;
// callers should defer it.
func buildPipeline(cfg *config.Config, logger *logrus.Logger) (*pipeline.Pipeline, func(), error) {
	pool, err := dal.NewConnectionPool(toDatabaseConfig(cfg), dal.ANNConfig{
		Probes:   cfg.ANN.Probes,
		EfSearch: cfg.ANN.EfSearch,
	}, logger)
	if err != nil {
		return nil, nil, sharederrors.FailedToWithDetails("build connection pool", "database", cfg.Database.Host, err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	p := &pipeline.Pipeline{
		DAL:          pool,
		Cache:        cache.New(secondsToDuration(cfg.Cache.TTLSeconds), cfg.Cache.SoftCap),
		Blacklist:    blacklist.NewStore(redisClient, logger),
		CrossEncoder: buildCrossEncoder(cfg.Reranker),
		RerankConfig: rerank.Config{
			TopKRetrieve:       cfg.Pipeline.TopKRetrieve,
			TopKRerank:         cfg.Pipeline.TopKFinal,
			CrossEncoderWeight: cfg.Pipeline.Weights.Cross,
			BiEncoderWeight:    cfg.Pipeline.Weights.Retrieve,
		},
		Taxonomy:          explain.NewTaxonomy(),
		Logger:            logger,
		ExpectedDimension: cfg.Embedding.Dimension,
	}

	closeFn := func() {
		if err := redisClient.Close(); err != nil {
			logger.WithError(err).Warn("failed to close redis client cleanly")
		}
		if err := pool.Close(); err != nil {
			logger.WithError(err).Warn("failed to close database pool cleanly")
		}
	}
	return p, closeFn, nil
}

func toDatabaseConfig(cfg *config.Config) *database.Config {
	return &database.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Pool.Max,
		MaxIdleConns:    cfg.Pool.MaxIdle,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	}
}

func buildCrossEncoder(cfg config.RerankerConfig) rerank.CrossEncoder {
	if cfg.Endpoint == "" {
		return rerank.NoopCrossEncoder{}
	}
	client := sharedhttp.NewClient(sharedhttp.RerankerClientConfig(cfg.Timeout))
	return rerank.NewHTTPCrossEncoder(client, cfg.Endpoint)
}

func secondsToDuration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}
