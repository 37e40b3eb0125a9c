// Package rerank implements the second stage of retrieve-then-rerank: a
// cross-encoder scores the top candidates from vector retrieval against
// the résumé text, and its score is blended with the retrieval score to
// produce the final ranking. The blended result is written to
// model.CandidateRow.FinalScore, not CompositeScore, since it already lives
// in calibrated percentage space and must not be run through the
// calibrator's distance curve a second time.
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/jordigilh/matchengine/pkg/matchengine/calibrate"
	"github.com/jordigilh/matchengine/pkg/matchengine/model"
)

// Config mirrors the retrieve-then-rerank tuning knobs: how many candidates
// from the vector path are sent to the cross-encoder, how many survive
// into the final response, and how the two scores are blended.
type Config struct {
	TopKRetrieve      int
	TopKRerank        int
	CrossEncoderWeight float64
	BiEncoderWeight    float64
}

// DefaultConfig matches the reranking defaults: retrieve up to 100
// candidates, rerank down to 25, weighting the cross-encoder score over
// the bi-encoder (retrieval) score 0.7/0.3.
func DefaultConfig() Config {
	return Config{
		TopKRetrieve:       100,
		TopKRerank:         25,
		CrossEncoderWeight: 0.7,
		BiEncoderWeight:    0.3,
	}
}

// CrossEncoder scores (query, candidate) pairs. pairs[i] is (query,
// candidateTexts[i]); the returned slice has one score per input pair, in
// the same order.
type CrossEncoder interface {
	Score(ctx context.Context, query string, candidateTexts []string) ([]float64, error)
}

// NoopCrossEncoder returns zero for every candidate, so the blend reduces
// to BiEncoderWeight times the calibrated retrieval score and the retrieval
// order is kept. It is the default when no cross-encoder endpoint is
// configured.
type NoopCrossEncoder struct{}

func (NoopCrossEncoder) Score(_ context.Context, _ string, candidateTexts []string) ([]float64, error) {
	return make([]float64, len(candidateTexts)), nil
}

// HTTPCrossEncoder calls an out-of-process cross-encoder inference
// endpoint over HTTP. The endpoint is expected to accept a JSON body of
// {"query": ..., "candidates": [...]}  and respond with {"scores": [...]}.
type HTTPCrossEncoder struct {
	Client   *http.Client
	Endpoint string
}

func NewHTTPCrossEncoder(client *http.Client, endpoint string) *HTTPCrossEncoder {
	return &HTTPCrossEncoder{Client: client, Endpoint: endpoint}
}

type crossEncoderRequest struct {
	Query      string   `json:"query"`
	Candidates []string `json:"candidates"`
}

type crossEncoderResponse struct {
	Scores []float64 `json:"scores"`
}

func (h *HTTPCrossEncoder) Score(ctx context.Context, query string, candidateTexts []string) ([]float64, error) {
	if len(candidateTexts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(crossEncoderRequest{Query: query, Candidates: candidateTexts})
	if err != nil {
		return nil, fmt.Errorf("rerank: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("rerank: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank: call cross-encoder: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rerank: cross-encoder returned status %d", resp.StatusCode)
	}

	var out crossEncoderResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("rerank: decode response: %w", err)
	}
	if len(out.Scores) != len(candidateTexts) {
		return nil, fmt.Errorf("rerank: expected %d scores, got %d", len(candidateTexts), len(out.Scores))
	}
	return out.Scores, nil
}

// candidateText is the text a candidate is scored against; the job
// description is the closest analogue to the Python source's
// candidate_text_key="description" default.
func candidateText(row model.CandidateRow) string {
	return row.Job.Description
}

// Rerank scores up to cfg.TopKRetrieve candidates (already sorted by
// retrieval score on entry) against queryText with the cross-encoder,
// blends the two scores, and returns the top cfg.TopKRerank sorted
// descending by the blended score. Candidates beyond TopKRetrieve are
// dropped before scoring, matching the two-stage retrieve-then-rerank
// contract: the cross-encoder only ever sees the highest-retrieval-score
// slice.
func Rerank(ctx context.Context, encoder CrossEncoder, cfg Config, queryText string, candidates []model.CandidateRow) ([]model.CandidateRow, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	retrieveN := cfg.TopKRetrieve
	if retrieveN <= 0 || retrieveN > len(candidates) {
		retrieveN = len(candidates)
	}
	top := candidates[:retrieveN]

	texts := make([]string, len(top))
	for i, c := range top {
		texts[i] = candidateText(c)
	}

	scores, err := encoder.Score(ctx, queryText, texts)
	if err != nil {
		return nil, err
	}

	blended := make([]model.CandidateRow, len(top))
	for i, c := range top {
		c.CrossScore = scores[i]
		c.Reranked = true
		c.FinalScore = cfg.CrossEncoderWeight*scores[i] + cfg.BiEncoderWeight*retrievalScore(c)
		blended[i] = c
	}

	sort.SliceStable(blended, func(i, j int) bool {
		return blended[i].FinalScore > blended[j].FinalScore
	})

	rerankN := cfg.TopKRerank
	if rerankN <= 0 || rerankN > len(blended) {
		rerankN = len(blended)
	}
	for i := range blended[:rerankN] {
		blended[i].RetrievalRank = i + 1
	}
	return blended[:rerankN], nil
}

// retrievalScore is the bi-encoder side of the blend: the raw composite
// distance from the vector similarity query is lower-is-better, so it is
// run through the same calibration curve used for the final displayed
// score before blending with the (higher-is-better) cross-encoder score.
func retrievalScore(c model.CandidateRow) float64 {
	return calibrate.Score(c.CompositeScore)
}
