// Package explain generates the human-readable breakdown attached to each
// job match: which skills lined up or are missing, how the candidate's
// experience level compares to what the role requires, and whether the
// location is a fit.
package explain

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jordigilh/matchengine/pkg/matchengine/model"
)

const relatedSkillThreshold = 0.3

// experienceRank orders ExperienceLevel for above/below comparisons; an
// unrecognized level ranks as Mid, matching the original source's
// "unknown defaults to mid" fallback.
func experienceRank(level model.ExperienceLevel) int {
	for i, v := range model.ValidExperienceLevels {
		if v == level {
			return i
		}
	}
	return 2
}

// Explain builds the full Explanation for a single job match: skills,
// experience, and location sections, an overall strength tag, and
// highlights/concerns. The one-line summary generateSummary also produces
// is not part of the returned Explanation.
func Explain(resume model.Resume, job model.Job, location model.Location, country model.Country, overallScore float64, taxonomy *Taxonomy) model.Explanation {
	skill := explainSkills(resume.Metadata.Skills, job.Skills, taxonomy)
	experience := explainExperience(resume.Metadata.ExperienceLevel, job.Experience)
	loc := explainLocation(resume.Metadata.PreferredCity, resume.Metadata.PreferredCountry, location.City, country.Name, job.WorkplaceType)

	strength := scoreToStrength(overallScore)
	_, highlights, concerns := generateSummary(skill, experience, loc, overallScore)

	return model.Explanation{
		Skill:      skill,
		Experience: experience,
		Location:   loc,
		Strength:   strength,
		Highlights: highlights,
		Concerns:   concerns,
	}
}

func explainSkills(resumeSkills, jobSkills []string, taxonomy *Taxonomy) model.SkillMatch {
	resumeSet := toSet(resumeSkills)
	jobSet := toSet(jobSkills)

	matched := intersect(resumeSet, jobSet)
	missing := difference(jobSet, resumeSet)
	bonus := difference(resumeSet, jobSet)

	type related struct {
		resumeSkill string
		jobSkill    string
		similarity  float64
	}
	var relatedSkills []related
	if taxonomy != nil {
		for r := range resumeSet {
			if _, inJob := jobSet[r]; inJob {
				continue
			}
			for j := range jobSet {
				if _, inResume := resumeSet[j]; inResume {
					continue
				}
				if sim := taxonomy.ComputeSkillSimilarity(r, j); sim > relatedSkillThreshold {
					relatedSkills = append(relatedSkills, related{resumeSkill: r, jobSkill: j, similarity: sim})
				}
			}
		}
		sort.Slice(relatedSkills, func(i, j int) bool { return relatedSkills[i].similarity > relatedSkills[j].similarity })
		if len(relatedSkills) > 5 {
			relatedSkills = relatedSkills[:5]
		}
	}

	relatedByGraph := make([]string, 0, len(relatedSkills))
	for _, r := range relatedSkills {
		relatedByGraph = append(relatedByGraph, fmt.Sprintf("%s~%s", r.resumeSkill, r.jobSkill))
	}

	sort.Strings(matched)
	sort.Strings(missing)
	sort.Strings(bonus)
	if len(bonus) > 5 {
		bonus = bonus[:5]
	}

	return model.SkillMatch{
		Direct:          matched,
		MissingRequired: missing,
		RelatedByGraph:  relatedByGraph,
		Bonus:           bonus,
	}
}

func explainExperience(resumeLevel, jobLevel model.ExperienceLevel) model.ExperienceMatch {
	resumeRank := experienceRank(resumeLevel)
	jobRank := experienceRank(jobLevel)

	var verdict string
	switch {
	case resumeRank >= jobRank:
		verdict = "meets or exceeds requirement"
	case resumeRank == jobRank-1:
		verdict = "slightly below requirement"
	default:
		verdict = "below requirement"
	}

	return model.ExperienceMatch{
		Required:  jobLevel,
		Candidate: resumeLevel,
		Verdict:   verdict,
	}
}

func explainLocation(candidateCity, candidateCountry, jobCity, jobCountry, workplaceType string) model.LocationMatch {
	remote := strings.EqualFold(workplaceType, model.RemoteCity) || strings.EqualFold(jobCity, model.RemoteCity)

	jobLocation := strings.TrimSpace(jobCity + ", " + jobCountry)
	candidateLocation := strings.TrimSpace(candidateCity + ", " + candidateCountry)

	var strength string
	switch {
	case remote:
		strength = "strong"
	case strings.EqualFold(candidateCity, jobCity) && strings.EqualFold(candidateCountry, jobCountry):
		strength = "strong"
	case strings.EqualFold(candidateCountry, jobCountry):
		strength = "moderate"
	default:
		strength = "weak"
	}

	return model.LocationMatch{
		JobLocation:       jobLocation,
		CandidateLocation: candidateLocation,
		Remote:            remote,
		Strength:          strength,
	}
}

func scoreToStrength(score float64) model.MatchStrength {
	switch {
	case score >= 0.8:
		return model.MatchStrengthStrong
	case score >= 0.5:
		return model.MatchStrengthModerate
	case score >= 0.2:
		return model.MatchStrengthWeak
	default:
		return model.MatchStrengthMissing
	}
}

func generateSummary(skill model.SkillMatch, experience model.ExperienceMatch, location model.LocationMatch, overallScore float64) (string, []string, []string) {
	var highlights, concerns []string

	if len(skill.Direct) > 0 {
		highlights = append(highlights, fmt.Sprintf("Matches %d required skills: %s", len(skill.Direct), joinTop(skill.Direct, 3)))
	}
	if len(skill.Bonus) > 0 {
		highlights = append(highlights, fmt.Sprintf("Brings additional skills: %s", joinTop(skill.Bonus, 3)))
	}
	if len(skill.MissingRequired) > 0 {
		concerns = append(concerns, fmt.Sprintf("Missing %d required skills: %s", len(skill.MissingRequired), joinTop(skill.MissingRequired, 3)))
	}

	switch experience.Verdict {
	case "meets or exceeds requirement":
		highlights = append(highlights, fmt.Sprintf("Experience level (%s) meets requirements", experience.Candidate))
	case "below requirement":
		concerns = append(concerns, fmt.Sprintf("Experience level may be below requirement (%s)", experience.Required))
	}

	switch {
	case location.Remote:
		highlights = append(highlights, "Remote work available")
	case location.Strength == "strong":
		highlights = append(highlights, fmt.Sprintf("Location matches: %s", location.JobLocation))
	case location.Strength == "weak":
		concerns = append(concerns, fmt.Sprintf("Location mismatch: job in %s", location.JobLocation))
	}

	var summary string
	switch {
	case overallScore >= 0.8:
		summary = "Strong match with aligned skills and qualifications."
	case overallScore >= 0.6:
		summary = "Good match with some areas for consideration."
	case overallScore >= 0.4:
		summary = "Partial match - review specific requirements carefully."
	default:
		summary = "Limited match - significant gaps in requirements."
	}

	return summary, highlights, concerns
}

func joinTop(items []string, n int) string {
	if len(items) > n {
		items = items[:n]
	}
	return strings.Join(items, ", ")
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[strings.ToLower(strings.TrimSpace(item))] = struct{}{}
	}
	return set
}

func intersect(a, b map[string]struct{}) []string {
	out := make([]string, 0)
	for k := range a {
		if _, ok := b[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

func difference(a, b map[string]struct{}) []string {
	out := make([]string, 0)
	for k := range a {
		if _, ok := b[k]; !ok {
			out = append(out, k)
		}
	}
	return out
}
