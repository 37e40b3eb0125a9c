package dal

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/jordigilh/matchengine/internal/database"
)

// ANNConfig tunes the approximate-nearest-neighbor index's recall/quality
// tradeoff; it is applied as a transaction-local setting immediately
// before the vector similarity query and never leaks across requests.
// Zero fields are left unset so a dual-index rollout can set either,
// both, or neither.
type ANNConfig struct {
	Probes   int
	EfSearch int
}

// ConnectionStats snapshots the pool's current health for observability
// endpoints; Available is false until a pool has actually been built.
type ConnectionStats struct {
	Available           bool
	MaxOpenConnections  int
	OpenConnections     int
	InUse               int
	Idle                int
	WaitCount           int64
	WaitDuration        time.Duration
	AverageResponseTime time.Duration
	FailedConnections   int64
	HealthCheckFailures int64
	LastHealthCheck     time.Time
	IsHealthy           bool
}

// ConnectionPool wraps a *sql.DB with a retrier and a circuit breaker so
// query callers never talk to database/sql directly.
type ConnectionPool struct {
	db      *sql.DB
	logger  *logrus.Logger
	retrier *DatabaseRetrier
	breaker *gobreaker.CircuitBreaker
	ann     ANNConfig

	mu                  sync.Mutex
	failedConnections   int64
	healthCheckFailures int64
	lastHealthCheck     time.Time
	isHealthy           bool
}

// NewConnectionPool opens a pooled connection per config and wires it with
// a retrier and a circuit breaker. It returns an error if config is nil or
// if database.Connect rejects the config or fails to connect.
func NewConnectionPool(config *database.Config, ann ANNConfig, logger *logrus.Logger) (*ConnectionPool, error) {
	if config == nil {
		return nil, fmt.Errorf("database configuration is required")
	}

	db, err := database.Connect(config, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build connection pool: %w", err)
	}

	breakerSettings := gobreaker.Settings{
		Name:        "matchengine-dal",
		MaxRequests: 5,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	}

	return &ConnectionPool{
		db:        db,
		logger:    logger,
		retrier:   NewDatabaseRetrier(logger),
		breaker:   gobreaker.NewCircuitBreaker(breakerSettings),
		ann:       ann,
		isHealthy: true,
	}, nil
}

// Execute runs query through the retrier and circuit breaker, returning
// whatever query returns.
func (p *ConnectionPool) Execute(ctx context.Context, opName string, query func(ctx context.Context, db *sql.DB) (any, error)) (any, error) {
	result, err := p.breaker.Execute(func() (any, error) {
		return p.retrier.ExecuteDBOperation(ctx, opName, func(ctx context.Context, attempt int) (any, error) {
			return query(ctx, p.db)
		})
	})
	if err != nil {
		p.mu.Lock()
		p.failedConnections++
		p.mu.Unlock()
		return nil, err
	}
	return result, nil
}

// ExecuteReadOnly runs query inside a single read-only transaction,
// applying the pool's ANNConfig as a transaction-local setting immediately
// beforehand. The transaction is committed on success and rolled back on
// any error, including one returned by query itself; SET LOCAL's scope
// ends with the transaction, so the ANN setting never leaks onto the
// pooled connection for a later, unrelated request.
func (p *ConnectionPool) ExecuteReadOnly(ctx context.Context, opName string, query func(ctx context.Context, tx *sql.Tx) (any, error)) (any, error) {
	return p.Execute(ctx, opName, func(ctx context.Context, db *sql.DB) (any, error) {
		tx, err := db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
		if err != nil {
			return nil, err
		}

		result, err := p.runInTx(ctx, tx, query)
		if err != nil {
			_ = tx.Rollback()
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		return result, nil
	})
}

func (p *ConnectionPool) runInTx(ctx context.Context, tx *sql.Tx, query func(ctx context.Context, tx *sql.Tx) (any, error)) (any, error) {
	if p.ann.Probes > 0 {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL ivfflat.probes = %d", p.ann.Probes)); err != nil {
			return nil, err
		}
	}
	if p.ann.EfSearch > 0 {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL hnsw.ef_search = %d", p.ann.EfSearch)); err != nil {
			return nil, err
		}
	}
	return query(ctx, tx)
}

// Ping checks connectivity and updates the health-check bookkeeping.
func (p *ConnectionPool) Ping(ctx context.Context) error {
	err := p.db.PingContext(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastHealthCheck = time.Now()
	if err != nil {
		p.healthCheckFailures++
		p.isHealthy = false
		return err
	}
	p.isHealthy = true
	return nil
}

// Stats reports the pool's current DB-level stats plus the bookkeeping
// this wrapper tracks.
func (p *ConnectionPool) Stats() *ConnectionStats {
	dbStats := p.db.Stats()

	p.mu.Lock()
	defer p.mu.Unlock()

	return &ConnectionStats{
		Available:           true,
		MaxOpenConnections:  dbStats.MaxOpenConnections,
		OpenConnections:     dbStats.OpenConnections,
		InUse:               dbStats.InUse,
		Idle:                dbStats.Idle,
		WaitCount:           dbStats.WaitCount,
		WaitDuration:        dbStats.WaitDuration,
		FailedConnections:   p.failedConnections,
		HealthCheckFailures: p.healthCheckFailures,
		LastHealthCheck:     p.lastHealthCheck,
		IsHealthy:           p.isHealthy,
	}
}

// Close releases the underlying pool.
func (p *ConnectionPool) Close() error {
	return p.db.Close()
}
