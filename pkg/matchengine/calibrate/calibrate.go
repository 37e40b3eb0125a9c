// Package calibrate turns a raw composite distance into a user-facing
// match percentage and projects a candidate row into a Job Match.
package calibrate

import (
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jordigilh/matchengine/pkg/matchengine/model"
)

// Score maps a raw score in [0, 2] (and beyond) into a calibrated
// percentage in [0, 1], via the piecewise curve:
//
//	score <= 0.7            -> 1.0000
//	0.7  < score <= 0.9      -> 0.999 - 0.095*(score-0.7)
//	0.9  < score <= 0.95     -> 0.98  - 1.6  *(score-0.9)
//	0.95 < score <= 2.0      -> max(0.9 - 0.857*(score-0.95), 0)
//	score > 2.0              -> 0.0000
//
// The result is rounded to four decimal places and clamped to [0, 1]; the
// function is monotonically non-increasing in score.
func Score(score float64) float64 {
	var pct float64
	switch {
	case score <= 0.7:
		pct = 1.0
	case score <= 0.9:
		pct = 0.999 - 0.095*(score-0.7)
	case score <= 0.95:
		pct = 0.98 - 1.6*(score-0.9)
	case score <= 2.0:
		pct = math.Max(0.9-0.857*(score-0.95), 0.0)
	default:
		pct = 0.0
	}

	return clampPercentage(pct)
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// clampPercentage rounds and clamps a value already expressed in [0, 1]
// percentage space, without running it through Score's distance curve.
func clampPercentage(pct float64) float64 {
	pct = round4(pct)
	if pct < 0 {
		return 0
	}
	if pct > 1 {
		return 1
	}
	return pct
}

// ParseSkills parses the `{a,b,"c d"}` array-literal or plain
// comma-separated storage formats into an ordered list with quotes
// stripped and whitespace trimmed. A nil/empty value parses to an empty,
// non-nil list.
func ParseSkills(raw string) []string {
	value := strings.TrimSpace(raw)
	if value == "" {
		return []string{}
	}
	if strings.HasPrefix(value, "{") && strings.HasSuffix(value, "}") {
		value = value[1 : len(value)-1]
	}
	if value == "" {
		return []string{}
	}

	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		p = strings.Trim(p, `"'`)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// SerializeSkills is ParseSkills' inverse in the PostgreSQL array-literal
// direction, used only to exercise the parse(serialize(parse(x))) ==
// parse(x) idempotence property in tests.
func SerializeSkills(skills []string) string {
	if len(skills) == 0 {
		return "{}"
	}
	quoted := make([]string, len(skills))
	for i, s := range skills {
		if strings.ContainsAny(s, ", ") {
			quoted[i] = `"` + s + `"`
		} else {
			quoted[i] = s
		}
	}
	return "{" + strings.Join(quoted, ",") + "}"
}

// Project builds a Job Match from a candidate row. It discards rows
// lacking an identifier or title, logging a warning, and returns false in
// that case.
func Project(row model.CandidateRow, logger *logrus.Logger) (model.JobMatch, bool) {
	if row.Job.ID == uuid.Nil || row.Job.Title == "" {
		if logger != nil {
			logger.WithField("job_id", row.Job.ID).Warn("discarding candidate row missing identifier or title")
		}
		return model.JobMatch{}, false
	}

	score := Score(row.CompositeScore)
	if row.Reranked {
		// row.FinalScore is already calibrated percentage space, produced by
		// blending the cross-encoder score with the calibrated retrieval
		// score; running it through Score a second time would reinterpret
		// it as a raw distance and invert it.
		score = clampPercentage(row.FinalScore)
	}

	return model.JobMatch{
		ID:               row.Job.ID.String(),
		Title:            row.Job.Title,
		Description:      row.Job.Description,
		ShortDescription: row.Job.ShortDescription,
		Field:            row.Job.Field,
		Experience:       row.Job.Experience,
		Skills:           ParseSkills(row.SkillsRaw),
		Country:          row.Country.Name,
		City:             row.Location.City,
		CompanyName:      row.Company.Name,
		CompanyLogo:      row.Company.Logo,
		Score:            score,
		PostedDate:       row.Job.PostedDate,
		State:            row.Job.State,
	}, true
}
