package dal

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	internalerrors "github.com/jordigilh/matchengine/internal/errors"
	"github.com/jordigilh/matchengine/pkg/matchengine/filter"
	"github.com/jordigilh/matchengine/pkg/matchengine/model"
)

// embeddingLiteral renders an embedding as pgvector's text input format
// ("[v1,v2,...]"), since the pool talks to pgvector through the pgx
// stdlib driver rather than a vector-aware codec.
func embeddingLiteral(e model.Embedding) string {
	parts := make([]string, len(e))
	for i, v := range e {
		parts[i] = strconv.FormatFloat(float64(v), 'g', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

const candidateColumns = `
	jobs.id AS job_id, jobs.title AS job_title, jobs.description AS job_description,
	jobs.short_description AS job_short_description, jobs.field AS job_field,
	jobs.experience AS job_experience, jobs.skills_required AS job_skills_required,
	jobs.workplace_type AS job_workplace_type, jobs.posted_date AS job_posted_date,
	jobs.job_state AS job_job_state, jobs.apply_link AS job_apply_link,
	jobs.company_id AS job_company_id, jobs.location_id AS job_location_id,
	companies.id AS company_id, companies.company_name AS company_name, companies.logo AS company_logo,
	locations.id AS location_id, locations.city AS location_city,
	locations.country_id AS location_country_id,
	locations.latitude AS location_latitude, locations.longitude AS location_longitude,
	countries.id AS country_id, countries.country_name AS country_name`

const joinClause = `
	FROM jobs
	JOIN companies ON companies.id = jobs.company_id
	JOIN locations ON locations.id = jobs.location_id
	JOIN countries ON countries.id = locations.country_id`

// Count returns the number of jobs passing the compiled predicate; the
// Candidate Retriever uses it to choose between the fallback and vector
// retrieval paths.
func (p *ConnectionPool) Count(ctx context.Context, compiled *filter.Compiled) (int, error) {
	query := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", joinClause, compiled.SQL())

	result, err := p.Execute(ctx, "count_jobs", func(ctx context.Context, db *sql.DB) (any, error) {
		var count int
		if err := db.QueryRowContext(ctx, query, compiled.Params...).Scan(&count); err != nil {
			return nil, classify(err)
		}
		return count, nil
	})
	if err != nil {
		return 0, err
	}
	return result.(int), nil
}

// FallbackFetch runs the plain join under the compiled predicate with a
// literal zero score, applying limit but no offset.
func (p *ConnectionPool) FallbackFetch(ctx context.Context, compiled *filter.Compiled, limit int) ([]model.CandidateRow, error) {
	limitIdx := len(compiled.Params) + 1
	query := fmt.Sprintf(
		"SELECT %s, 0.0 AS composite_score %s WHERE %s LIMIT $%d",
		candidateColumns, joinClause, compiled.SQL(), limitIdx)

	params := append(append([]any{}, compiled.Params...), limit)

	result, err := p.Execute(ctx, "fallback_fetch", func(ctx context.Context, db *sql.DB) (any, error) {
		rows, err := db.QueryContext(ctx, query, params...)
		if err != nil {
			return nil, classify(err)
		}
		defer rows.Close()
		return scanCandidates(rows)
	})
	if err != nil {
		return nil, err
	}
	return result.([]model.CandidateRow), nil
}

// VectorSimilarityFetch runs the single-pass composite-similarity query:
// L2, cosine, and negated inner-product distances against embedding, each
// min-max normalized over the filtered set via MIN(...)/MAX(...) OVER()
// window functions (a zero range skips that term rather than dividing by
// zero), combined with fixed weights (0.4/0.4/0.2), ordered ascending by
// that composite distance (best match first), limited and offset. Predicate parameters are bound exactly once; the
// embedding parameter is bound once and referenced at each of its three
// operator positions. The query runs inside ExecuteReadOnly's transaction,
// which applies the pool's ANNConfig as a transaction-local setting
// immediately beforehand.
func (p *ConnectionPool) VectorSimilarityFetch(ctx context.Context, compiled *filter.Compiled, embedding model.Embedding, limit, offset int) ([]model.CandidateRow, error) {
	embeddingIdx := len(compiled.Params) + 1
	limitIdx := embeddingIdx + 1
	offsetIdx := limitIdx + 1

	query := fmt.Sprintf(`
WITH distances AS (
	SELECT %s,
		(jobs.embedding <-> $%d) AS l2,
		(jobs.embedding <=> $%d) AS cosine,
		(jobs.embedding <#> $%d) AS inner_product
	%s
	WHERE %s
),
bounds AS (
	SELECT distances.*,
		MIN(l2) OVER () AS min_l2, MAX(l2) OVER () AS max_l2,
		MIN(cosine) OVER () AS min_cosine, MAX(cosine) OVER () AS max_cosine,
		MIN(inner_product) OVER () AS min_ip, MAX(inner_product) OVER () AS max_ip
	FROM distances
)
SELECT job_id, job_title, job_description, job_short_description, job_field,
	job_experience, job_skills_required, job_workplace_type, job_posted_date,
	job_job_state, job_apply_link, job_company_id, job_location_id,
	company_id, company_name, company_logo,
	location_id, location_city, location_country_id, location_latitude, location_longitude,
	country_id, country_name,
	(0.4 * CASE WHEN max_l2 - min_l2 = 0 THEN 0 ELSE (l2 - min_l2) / (max_l2 - min_l2) END) +
	(0.4 * CASE WHEN max_cosine - min_cosine = 0 THEN 0 ELSE (cosine - min_cosine) / (max_cosine - min_cosine) END) +
	(0.2 * CASE WHEN max_ip - min_ip = 0 THEN 0 ELSE (inner_product - min_ip) / (max_ip - min_ip) END)
		AS composite_score
FROM bounds
ORDER BY composite_score ASC
LIMIT $%d OFFSET $%d`, candidateColumns, embeddingIdx, embeddingIdx, embeddingIdx, joinClause, compiled.SQL(), limitIdx, offsetIdx)

	params := append(append([]any{}, compiled.Params...), embeddingLiteral(embedding), limit, offset)

	result, err := p.ExecuteReadOnly(ctx, "vector_similarity_fetch", func(ctx context.Context, tx *sql.Tx) (any, error) {
		rows, err := tx.QueryContext(ctx, query, params...)
		if err != nil {
			return nil, classify(err)
		}
		defer rows.Close()
		return scanCandidates(rows)
	})
	if err != nil {
		return nil, err
	}
	return result.([]model.CandidateRow), nil
}

func scanCandidates(rows *sql.Rows) ([]model.CandidateRow, error) {
	var out []model.CandidateRow
	for rows.Next() {
		var (
			c                model.CandidateRow
			skills           sql.NullString
			description      sql.NullString
			shortDescription sql.NullString
			field            sql.NullString
			experience       sql.NullString
			workplaceType    sql.NullString
			applyLink        sql.NullString
			logo             sql.NullString
			lat, lon         sql.NullFloat64
		)
		if err := rows.Scan(
			&c.Job.ID, &c.Job.Title, &description, &shortDescription, &field,
			&experience, &skills, &workplaceType, &c.Job.PostedDate,
			&c.Job.State, &applyLink, &c.Job.CompanyID, &c.Job.LocationID,
			&c.Company.ID, &c.Company.Name, &logo,
			&c.Location.ID, &c.Location.City, &c.Location.CountryID, &lat, &lon,
			&c.Country.ID, &c.Country.Name,
			&c.CompositeScore,
		); err != nil {
			return nil, internalerrors.NewFatalDB("scan_candidate_row", err)
		}

		c.Job.Description = description.String
		c.Job.ShortDescription = shortDescription.String
		c.Job.Field = field.String
		c.Job.Experience = model.ExperienceLevel(experience.String)
		c.Job.WorkplaceType = workplaceType.String
		c.Job.ApplyLink = applyLink.String
		c.Company.Logo = logo.String
		c.SkillsRaw = skills.String
		if lat.Valid {
			v := lat.Float64
			c.Location.Latitude = &v
		}
		if lon.Valid {
			v := lon.Float64
			c.Location.Longitude = &v
		}

		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, internalerrors.NewFatalDB("iterate_candidate_rows", err)
	}
	return out, nil
}

// classify maps a driver error to the DAL's error taxonomy: connection
// loss is transient and retried by the caller's Retrier, everything else
// surfaces as fatal.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if IsRetryableError(err) {
		return internalerrors.NewTransientDB("query_execution", err)
	}
	return internalerrors.NewFatalDB("query_execution", err)
}
