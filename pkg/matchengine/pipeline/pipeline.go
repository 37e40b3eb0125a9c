// Package pipeline composes the match engine's stages into the single
// request lifecycle: blacklist assembly, cache lookup, retrieval, optional
// reranking, calibration/projection, optional explanation, and cache
// population.
package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	internalerrors "github.com/jordigilh/matchengine/internal/errors"
	"github.com/jordigilh/matchengine/pkg/matchengine/blacklist"
	"github.com/jordigilh/matchengine/pkg/matchengine/cache"
	"github.com/jordigilh/matchengine/pkg/matchengine/calibrate"
	"github.com/jordigilh/matchengine/pkg/matchengine/explain"
	"github.com/jordigilh/matchengine/pkg/matchengine/filter"
	"github.com/jordigilh/matchengine/pkg/matchengine/model"
	"github.com/jordigilh/matchengine/pkg/matchengine/rerank"
	"github.com/jordigilh/matchengine/pkg/matchengine/retriever"
	sharedlogging "github.com/jordigilh/matchengine/pkg/shared/logging"
	sharedmath "github.com/jordigilh/matchengine/pkg/shared/math"
)

// Persister optionally records a response alongside the request that
// produced it. No concrete implementation ships: the teacher's dependency
// surface carries no document-store driver, and no other pack repository
// exercises one either, so this stays an interface seam a caller can wire
// to whatever secondary store it has.
type Persister interface {
	SaveMatches(ctx context.Context, resumeID string, response model.MatchResponse) error
}

// Pipeline holds every stage dependency the orchestrator composes.
type Pipeline struct {
	DAL          retriever.DAL
	Cache        *cache.Cache
	Blacklist    *blacklist.Store
	CrossEncoder rerank.CrossEncoder
	RerankConfig rerank.Config
	Taxonomy     *explain.Taxonomy
	Persister    Persister
	Logger       *logrus.Logger

	// RetrievalSoftDeadline, if nonzero, skips reranking when retrieval
	// alone has already consumed this much of the request's budget.
	RetrievalSoftDeadline time.Duration

	// ExpectedDimension, if nonzero, is the embedding length every résumé
	// and job embedding must share. A nonzero résumé embedding of a
	// different length is a fatal input error, not a soft degrade: mixing
	// dimensions would silently corrupt every downstream distance
	// calculation.
	ExpectedDimension int
}

// Process runs the full request lifecycle described by §4.6/§5 and
// returns the outbound response.
func (p *Pipeline) Process(ctx context.Context, req model.MatchRequest) (*model.MatchResponse, error) {
	dimension := req.Resume.Embedding.Dimension()
	if dimension == 0 {
		return &model.MatchResponse{Jobs: []model.JobMatch{}}, nil
	}
	if p.ExpectedDimension > 0 && dimension != p.ExpectedDimension {
		return nil, internalerrors.NewValidation("résumé embedding dimension mismatch").
			WithDetailsf("expected %d, got %d", p.ExpectedDimension, dimension)
	}

	offset := req.Offset
	if offset > retriever.MaxOffset {
		if p.Logger != nil {
			p.Logger.WithField("requested_offset", offset).Warn("offset exceeds maximum allowed value, resetting to 0")
		}
		offset = 0
	}

	if err := checkCancelled(ctx, "blacklist fetch"); err != nil {
		return nil, err
	}
	blacklistSet := p.fetchBlacklist(ctx, req.Resume.UserID)

	fingerprint := cache.Fingerprint(req.Resume.UserID, offset, req.Limit, req.Location, req.Keywords, req.Experience, blacklistSet)

	if req.Flags.UseCache {
		if err := checkCancelled(ctx, "cache lookup"); err != nil {
			return nil, err
		}
		if cached, ok := p.Cache.Get(fingerprint); ok {
			return &cached, nil
		}
	}

	compiled, err := filter.Compile(req.Location, req.Keywords, req.Experience, blacklistSet.Union())
	if err != nil {
		return nil, err
	}

	if err := checkCancelled(ctx, "candidate retrieval"); err != nil {
		return nil, err
	}
	retrievalStart := time.Now()
	result, err := retriever.Retrieve(ctx, p.DAL, compiled, req.Resume.Embedding, req.Limit, offset, p.Logger)
	if err != nil {
		return nil, err
	}
	retrievalElapsed := time.Since(retrievalStart)

	rows := result.Rows
	if req.Flags.EnableRerank && len(rows) > p.rerankConfig().TopKRerank && !p.softDeadlineExceeded(retrievalElapsed) {
		if err := checkCancelled(ctx, "reranker call"); err != nil {
			return nil, err
		}
		rows = p.rerankWithRecovery(ctx, req, rows)
	}

	jobs := make([]model.JobMatch, 0, len(rows))
	for _, row := range rows {
		jm, ok := calibrate.Project(row, p.Logger)
		if !ok {
			continue
		}
		if req.Flags.EnableExplain {
			job := row.Job
			job.Skills = jm.Skills
			explanation := explain.Explain(req.Resume, job, row.Location, row.Country, jm.Score, p.Taxonomy)
			jm.Explanation = &explanation
		}
		jobs = append(jobs, jm)
	}

	p.logScoreDistribution(jobs)

	response := model.MatchResponse{Jobs: jobs}
	if req.Flags.IncludeTotalCount {
		total := result.TotalCount
		response.TotalCount = &total
	}

	if req.Flags.Save && p.Persister != nil {
		if err := p.Persister.SaveMatches(ctx, req.Resume.UserID, response); err != nil && p.Logger != nil {
			p.Logger.WithError(err).Warn("pipeline: failed to persist match results")
		}
	}

	if req.Flags.UseCache {
		if err := checkCancelled(ctx, "cache population"); err != nil {
			return nil, err
		}
		p.Cache.Set(fingerprint, response)
	}

	return &response, nil
}

// fetchBlacklist concurrently fetches applied and cooled jobs; the
// sequential dependency in the original is unnecessary since neither
// fetch depends on the other's result. Both already soft-fail internally,
// so the errgroup here buys concurrency, not error propagation.
func (p *Pipeline) fetchBlacklist(ctx context.Context, userID string) model.BlacklistSet {
	if p.Blacklist == nil {
		return model.BlacklistSet{}
	}

	var applied, cooled []string
	g, gctx := errgroup.WithContext(ctx)
	if userID != "" {
		g.Go(func() error {
			applied = p.Blacklist.AppliedJobs(gctx, userID)
			return nil
		})
	}
	g.Go(func() error {
		cooled = p.Blacklist.CooledJobs(gctx)
		return nil
	})
	_ = g.Wait()

	return model.BlacklistSet{Applied: applied, Cooled: cooled}
}

func (p *Pipeline) rerankConfig() rerank.Config {
	if p.RerankConfig == (rerank.Config{}) {
		return rerank.DefaultConfig()
	}
	return p.RerankConfig
}

func (p *Pipeline) softDeadlineExceeded(elapsed time.Duration) bool {
	return p.RetrievalSoftDeadline > 0 && elapsed > p.RetrievalSoftDeadline
}

// rerankWithRecovery reranks rows, recovering to the original order on
// any failure: a timed-out or erroring reranker is a soft failure per
// §4.7, not a request failure.
func (p *Pipeline) rerankWithRecovery(ctx context.Context, req model.MatchRequest, rows []model.CandidateRow) []model.CandidateRow {
	encoder := p.CrossEncoder
	if encoder == nil {
		encoder = rerank.NoopCrossEncoder{}
	}

	queryText := strings.Join(req.Resume.Metadata.Skills, ", ")
	reranked, err := rerank.Rerank(ctx, encoder, p.rerankConfig(), queryText, rows)
	if err != nil {
		signal := internalerrors.NewDowngradeSignal("reranker", err)
		if p.Logger != nil {
			p.Logger.WithError(signal).Warn("pipeline: reranking failed, proceeding with unreranked candidates")
		}
		return rows
	}
	return reranked
}

// logScoreDistribution logs the mean and standard deviation of the final
// projected scores, so a flattening or bimodal distribution is visible in
// structured logs without standing up a metrics backend (out of scope).
func (p *Pipeline) logScoreDistribution(jobs []model.JobMatch) {
	if p.Logger == nil || len(jobs) == 0 {
		return
	}
	scores := make([]float64, len(jobs))
	for i, jm := range jobs {
		scores[i] = jm.Score
	}
	mean := sharedmath.Mean(scores)
	stddev := sharedmath.StandardDeviation(scores)
	fields := sharedlogging.MetricsFields("score_distribution", "match_score_mean", mean).
		Custom("match_score_stddev", stddev).
		Count(len(scores))
	p.Logger.WithFields(fields.ToLogrus()).Debug("pipeline: final match score distribution")
}

func checkCancelled(ctx context.Context, op string) error {
	if ctx.Err() != nil {
		return internalerrors.NewCancelled(op)
	}
	return nil
}
