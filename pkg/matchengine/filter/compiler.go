// Package filter compiles a typed match request into predicate fragments
// and a positionally-bound parameter list. It performs no I/O: every
// fragment is pre-templated so no user-influenced value is ever
// concatenated into SQL text.
package filter

import (
	"fmt"
	"strings"

	"github.com/jordigilh/matchengine/internal/errors"
	"github.com/jordigilh/matchengine/pkg/matchengine/model"
)

// Compiled is the output of Compile: an ordered list of predicate
// fragments, ANDed together, plus the positionally-bound parameters those
// fragments reference ($1, $2, ... in fragment text).
type Compiled struct {
	Fragments []string
	Params    []any
}

// SQL joins the compiled fragments with AND, suitable for a WHERE clause.
func (c *Compiled) SQL() string {
	return strings.Join(c.Fragments, " AND ")
}

const baseFragment = "embedding IS NOT NULL"

// Compile produces the predicate fragments and parameter list for a
// request's location filter, keyword list, experience subset, and
// blacklist set. It always emits the base "embedding is present" fragment.
func Compile(loc *model.LocationFilter, keywords []string, experience []model.ExperienceLevel, blacklist []string) (*Compiled, error) {
	c := &Compiled{Fragments: []string{baseFragment}}

	if err := compileLocation(c, loc); err != nil {
		return nil, err
	}
	compileKeywords(c, keywords)
	compileExperience(c, experience)
	compileBlacklist(c, blacklist)

	return c, nil
}

func (c *Compiled) bind(v any) int {
	c.Params = append(c.Params, v)
	return len(c.Params)
}

func compileLocation(c *Compiled, loc *model.LocationFilter) error {
	if loc == nil {
		return nil
	}

	if loc.Country != "" {
		if loc.Country == model.USAAlias {
			c.Fragments = append(c.Fragments, fmt.Sprintf("countries.country_name = '%s'", model.CanonicalUSA))
		} else {
			idx := c.bind(loc.Country)
			c.Fragments = append(c.Fragments, fmt.Sprintf("countries.country_name = $%d", idx))
		}
	}

	hasGeo := loc.HasGeo()

	if loc.City != "" && !hasGeo {
		cityIdx := c.bind(loc.City)
		c.Fragments = append(c.Fragments, fmt.Sprintf(
			"(locations.city = $%d OR locations.city = '%s')", cityIdx, model.RemoteCity))
	}

	if loc.Latitude != nil && loc.Longitude != nil {
		radius := loc.RadiusMeters()
		if radius == nil {
			return nil
		}
		if *radius <= 0 {
			return errors.NewValidation("location radius must be greater than zero")
		}

		latIdx := c.bind(*loc.Latitude)
		lonIdx := c.bind(*loc.Longitude)
		radIdx := c.bind(*radius)
		c.Fragments = append(c.Fragments, fmt.Sprintf(
			"(locations.city = '%s' OR ST_DWithin(locations.geog, ST_MakePoint($%d, $%d)::geography, $%d))",
			model.RemoteCity, lonIdx, latIdx, radIdx))
	}

	return nil
}

func compileKeywords(c *Compiled, keywords []string) {
	if len(keywords) == 0 {
		return
	}

	disjuncts := make([]string, 0, len(keywords))
	for _, phrase := range keywords {
		phrase = strings.TrimSpace(phrase)
		if phrase == "" {
			continue
		}

		terms := []string{phrase}
		tokens := strings.Fields(phrase)
		if len(tokens) > 1 {
			terms = append(terms, tokens...)
		}

		termDisjuncts := make([]string, 0, len(terms))
		for _, term := range terms {
			idx := c.bind("%" + term + "%")
			termDisjuncts = append(termDisjuncts, fmt.Sprintf(
				"(jobs.title ILIKE $%d OR jobs.description ILIKE $%d)", idx, idx))
		}
		disjuncts = append(disjuncts, "("+strings.Join(termDisjuncts, " OR ")+")")
	}

	if len(disjuncts) > 0 {
		c.Fragments = append(c.Fragments, "("+strings.Join(disjuncts, " OR ")+")")
	}
}

func compileExperience(c *Compiled, experience []model.ExperienceLevel) {
	retained := make([]model.ExperienceLevel, 0, len(experience))
	for _, level := range experience {
		if level.Valid() {
			retained = append(retained, level)
		}
	}
	if len(retained) == 0 {
		return
	}

	disjuncts := make([]string, 0, len(retained))
	for _, level := range retained {
		idx := c.bind(string(level))
		disjuncts = append(disjuncts, fmt.Sprintf("jobs.experience = $%d", idx))
	}
	c.Fragments = append(c.Fragments, "("+strings.Join(disjuncts, " OR ")+")")
}

func compileBlacklist(c *Compiled, blacklist []string) {
	if len(blacklist) == 0 {
		return
	}
	idx := c.bind(blacklist)
	c.Fragments = append(c.Fragments, fmt.Sprintf("jobs.id != ALL($%d)", idx))
}
