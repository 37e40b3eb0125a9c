// Package blacklist loads the job identifiers a candidate should never see
// again: jobs the user already applied to, and jobs presently in their
// cooling-off period. Both sets are stored in Redis as plain string sets;
// either lookup soft-fails to an empty slice so a Redis outage degrades the
// match quality rather than failing the request.
package blacklist

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	internalerrors "github.com/jordigilh/matchengine/internal/errors"
	"github.com/jordigilh/matchengine/pkg/matchengine/model"
)

// appliedJobsKeyPrefix and cooledJobsKey are the Redis set keys. Applied
// jobs are scoped per user; cooled jobs are a single global set.
const (
	appliedJobsKeyPrefix = "applied_jobs:"
	cooledJobsKey        = "cooled_jobs"
)

// Store reads blacklist sets from Redis.
type Store struct {
	client *redis.Client
	logger *logrus.Logger
}

// NewStore builds a Store over an already-constructed Redis client.
func NewStore(client *redis.Client, logger *logrus.Logger) *Store {
	return &Store{client: client, logger: logger}
}

// AppliedJobs returns the job identifiers userID has already applied to.
// Any Redis error is logged and swallowed; callers receive an empty slice
// rather than a failed match request.
func (s *Store) AppliedJobs(ctx context.Context, userID string) []string {
	key := appliedJobsKeyPrefix + userID
	ids, err := s.client.SMembers(ctx, key).Result()
	if err != nil {
		s.logError("retrieve applied jobs", err, logrus.Fields{"user_id": userID})
		return []string{}
	}
	return ids
}

// CooledJobs returns the job identifiers presently in their cooling-off
// period. Any Redis error is logged and swallowed.
func (s *Store) CooledJobs(ctx context.Context) []string {
	ids, err := s.client.SMembers(ctx, cooledJobsKey).Result()
	if err != nil {
		s.logError("retrieve cooled jobs", err, nil)
		return []string{}
	}
	return ids
}

// Load fetches both sets and combines them into a model.BlacklistSet. It
// never returns an error: a Redis failure on either side yields an empty
// slice for that side, consistent with AppliedJobs/CooledJobs.
func (s *Store) Load(ctx context.Context, userID string) model.BlacklistSet {
	return model.BlacklistSet{
		Applied: s.AppliedJobs(ctx, userID),
		Cooled:  s.CooledJobs(ctx),
	}
}

func (s *Store) logError(op string, err error, fields logrus.Fields) {
	wrapped := internalerrors.NewCache(op, err)
	if s.logger == nil {
		return
	}
	entry := s.logger.WithError(wrapped)
	if fields != nil {
		entry = entry.WithFields(fields)
	}
	entry.Warn(fmt.Sprintf("blacklist: %s failed, degrading to empty set", op))
}
