// Package retriever chooses and executes a retrieval path over the DAL:
// a cheap fallback fetch for tiny candidate sets, or the full vector
// similarity query otherwise.
package retriever

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/jordigilh/matchengine/pkg/matchengine/filter"
	"github.com/jordigilh/matchengine/pkg/matchengine/model"
)

// FallbackThreshold is the candidate-count boundary at or below which
// min-max normalization is numerically meaningless and the fallback path
// is used instead: count <= 5 → fallback, count == 6 → vector.
const FallbackThreshold = 5

// MaxOffset is the deep-pagination clamp: offsets beyond this are reset to
// zero and a warning is logged.
const MaxOffset = 1500

// DAL is the subset of the Data Access Layer the retriever depends on.
type DAL interface {
	Count(ctx context.Context, compiled *filter.Compiled) (int, error)
	FallbackFetch(ctx context.Context, compiled *filter.Compiled, limit int) ([]model.CandidateRow, error)
	VectorSimilarityFetch(ctx context.Context, compiled *filter.Compiled, embedding model.Embedding, limit, offset int) ([]model.CandidateRow, error)
}

// Result is the retriever's output: the candidate rows plus the total
// count of candidates passing the filters (before limit/offset), useful
// when the caller requested a total count.
type Result struct {
	Rows       []model.CandidateRow
	TotalCount int
}

// Retrieve runs the count-then-branch algorithm: count the filtered
// candidates, take the fallback path at FallbackThreshold or below, the
// vector path otherwise. Offsets beyond MaxOffset are clamped to zero.
func Retrieve(ctx context.Context, dal DAL, compiled *filter.Compiled, embedding model.Embedding, limit, offset int, logger *logrus.Logger) (*Result, error) {
	if offset > MaxOffset {
		if logger != nil {
			logger.WithField("requested_offset", offset).Warn("offset exceeds maximum, clamping to 0")
		}
		offset = 0
	}

	count, err := dal.Count(ctx, compiled)
	if err != nil {
		return nil, err
	}

	if count <= FallbackThreshold {
		rows, err := dal.FallbackFetch(ctx, compiled, limit)
		if err != nil {
			return nil, err
		}
		return &Result{Rows: rows, TotalCount: count}, nil
	}

	rows, err := dal.VectorSimilarityFetch(ctx, compiled, embedding, limit, offset)
	if err != nil {
		return nil, err
	}
	return &Result{Rows: rows, TotalCount: count}, nil
}
