// Package model holds the domain entities shared across the match engine:
// jobs and their joined company/location data as read from storage, the
// résumé and request shapes accepted from callers, and the Job Match
// records projected back out.
package model

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// ExperienceLevel is the canonical experience-level enumeration. Unknown
// tokens are dropped by the filter compiler rather than rejected outright.
type ExperienceLevel string

const (
	ExperienceIntern    ExperienceLevel = "Intern"
	ExperienceEntry     ExperienceLevel = "Entry"
	ExperienceMid       ExperienceLevel = "Mid"
	ExperienceExecutive ExperienceLevel = "Executive"
)

// ValidExperienceLevels preserves enumeration order for rule evaluation.
var ValidExperienceLevels = []ExperienceLevel{
	ExperienceIntern, ExperienceEntry, ExperienceMid, ExperienceExecutive,
}

func (e ExperienceLevel) Valid() bool {
	for _, v := range ValidExperienceLevels {
		if v == e {
			return true
		}
	}
	return false
}

// JobState is the lifecycle state of a Job Record.
type JobState string

const (
	JobStateActive  JobState = "Active"
	JobStateFilled  JobState = "Filled"
	JobStateExpired JobState = "Expired"
)

// RemoteCity is the literal city token that matches any city filter.
const RemoteCity = "remote"

// USAAlias is the country token that canonicalizes to CanonicalUSA.
const USAAlias = "USA"

// CanonicalUSA is the canonical country name USAAlias maps to.
const CanonicalUSA = "United States"

// Embedding is a fixed-length dense vector produced externally and
// consumed read-only by the match engine.
type Embedding []float32

// Dimension reports len(e); a nil embedding has dimension 0.
func (e Embedding) Dimension() int {
	return len(e)
}

// Company is the Company Record.
type Company struct {
	ID   uuid.UUID
	Name string
	Logo string
}

// Country is the Country Record.
type Country struct {
	ID   uuid.UUID
	Name string
}

// Location is the Location Record. A nil Latitude or Longitude means the
// record must be treated as non-matching for distance filters unless City
// equals RemoteCity.
type Location struct {
	ID        uuid.UUID
	City      string
	CountryID uuid.UUID
	Latitude  *float64
	Longitude *float64
}

// Job is the immutable-during-request Job Record.
type Job struct {
	ID               uuid.UUID
	Title            string
	Description      string
	ShortDescription string
	Field            string
	Experience       ExperienceLevel
	Skills           []string
	WorkplaceType    string
	PostedDate       time.Time
	State            JobState
	ApplyLink        string
	CompanyID        uuid.UUID
	LocationID       uuid.UUID
	Embedding        Embedding
}

// LocationFilter narrows results to a country, a city, or a geospatial
// radius. Exactly one of KilometerRadius/MeterRadius is canonical when a
// radius is supplied; RadiusMeters() resolves it.
type LocationFilter struct {
	Country         string
	City            string
	Latitude        *float64
	Longitude       *float64
	KilometerRadius *float64
	MeterRadius     *float64
}

// RadiusMeters resolves the canonical radius in meters, or nil if none was
// supplied.
func (f *LocationFilter) RadiusMeters() *float64 {
	if f == nil {
		return nil
	}
	if f.MeterRadius != nil {
		return f.MeterRadius
	}
	if f.KilometerRadius != nil {
		m := *f.KilometerRadius * 1000
		return &m
	}
	return nil
}

// HasGeo reports whether latitude, longitude, and a radius are all present.
func (f *LocationFilter) HasGeo() bool {
	return f != nil && f.Latitude != nil && f.Longitude != nil && f.RadiusMeters() != nil
}

// ResumeMetadata carries the ambient résumé attributes the Explainer reads
// (never sent to the DAL or used for filtering).
type ResumeMetadata struct {
	Skills           []string
	ExperienceLevel  ExperienceLevel
	PreferredCity    string
	PreferredCountry string
}

// Resume is the caller-supplied résumé: an embedding to match against job
// embeddings, plus optional identity and metadata.
type Resume struct {
	UserID    string
	Embedding Embedding
	Metadata  ResumeMetadata
}

// BlacklistSet is the per-request union of applied and cooled job
// identifiers.
type BlacklistSet struct {
	Applied []string
	Cooled  []string
}

// Union returns the sorted, de-duplicated identifier list used both for
// the DAL's "not in" predicate and for fingerprinting.
func (b BlacklistSet) Union() []string {
	seen := make(map[string]struct{}, len(b.Applied)+len(b.Cooled))
	for _, id := range b.Applied {
		seen[id] = struct{}{}
	}
	for _, id := range b.Cooled {
		seen[id] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// RequestFlags toggles optional pipeline stages per request.
type RequestFlags struct {
	UseCache         bool
	Save             bool
	IncludeTotalCount bool
	EnableRerank     bool
	EnableExplain    bool
}

// MatchRequest is the inbound request shape described in the external
// interfaces: résumé, filters, pagination, and flags.
type MatchRequest struct {
	Resume     Resume
	Location   *LocationFilter
	Keywords   []string
	Experience []ExperienceLevel
	Offset     int
	Limit      int
	Flags      RequestFlags
}

// CandidateRow is a job joined with its company, location, and country,
// plus the vector path's CompositeScore (zero on the fallback path). The
// DAL does not fill L2Distance, CosineDistance or InnerProduct on either
// path; they stay zero.
type CandidateRow struct {
	Job            Job
	Company        Company
	Location       Location
	Country        Country
	L2Distance     float64
	CosineDistance float64
	InnerProduct   float64
	CompositeScore float64
	RetrievalRank  int
	CrossScore     float64

	// Reranked marks a row whose blended cross-encoder/bi-encoder score has
	// already been produced in calibrated [0,1] percentage space by the
	// reranker; FinalScore then carries that value directly rather than
	// CompositeScore, since CompositeScore's calibration curve expects a raw
	// retrieval distance, not an already-calibrated percentage.
	Reranked   bool
	FinalScore float64

	// SkillsRaw is the storage-format skills literal as scanned from
	// jobs.skills_required; calibrate.Project parses it into JobMatch.Skills,
	// and the pipeline hands that list to the Explainer as Job.Skills.
	SkillsRaw string
}

// JobMatch is the externally visible projected record. apply_link and
// portal are intentionally excluded from this shape.
type JobMatch struct {
	ID               string
	Title            string
	Description      string
	ShortDescription string
	Field            string
	Experience       ExperienceLevel
	Skills           []string
	Country          string
	City             string
	CompanyName      string
	CompanyLogo      string
	Score            float64
	PostedDate       time.Time
	State            JobState
	Explanation      *Explanation
}

// MatchResponse is the outbound response shape.
type MatchResponse struct {
	Jobs       []JobMatch
	TotalCount *int
}

// MatchStrength is the Explainer's overall verdict tag.
type MatchStrength string

const (
	MatchStrengthStrong   MatchStrength = "Strong"
	MatchStrengthModerate MatchStrength = "Moderate"
	MatchStrengthWeak     MatchStrength = "Weak"
	MatchStrengthMissing  MatchStrength = "Missing"
)

// SkillMatch is the skill-match section of an Explanation.
type SkillMatch struct {
	Direct         []string
	MissingRequired []string
	RelatedByGraph []string
	Bonus          []string
}

// ExperienceMatch is the experience-match section of an Explanation.
type ExperienceMatch struct {
	Required  ExperienceLevel
	Candidate ExperienceLevel
	Verdict   string
}

// LocationMatch is the location-match section of an Explanation.
type LocationMatch struct {
	JobLocation       string
	CandidateLocation string
	Remote            bool
	Strength          string
}

// Explanation is the Explainer's structured, human-readable output for a
// single match.
type Explanation struct {
	Skill      SkillMatch
	Experience ExperienceMatch
	Location   LocationMatch
	Strength   MatchStrength
	Highlights []string
	Concerns   []string
}
