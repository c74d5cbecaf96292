package analyzer

import "codereviewsvc/pkg/review"

var securityWeights = map[review.Severity]float64{
	review.SeverityCritical: 15,
	review.SeverityHigh:     10,
	review.SeverityMedium:   5,
	review.SeverityLow:      2,
}

var performanceWeights = map[review.Severity]float64{
	review.SeverityCritical: 10,
	review.SeverityHigh:     7,
	review.SeverityMedium:   4,
	review.SeverityLow:      1,
}

var aiWeights = map[review.Severity]float64{
	review.SeverityCritical: 8,
	review.SeverityHigh:     5,
	review.SeverityMedium:   3,
	review.SeverityLow:      1,
}

const styleWeight = 0.5

// qualityScore implements the deterministic scoring function from
// spec §4.5.5: start at 100, deduct per-issue weights by severity,
// clamp to [0, 100].
func qualityScore(r *review.Report) float64 {
	score := 100.0
	for _, issue := range r.Security {
		score -= securityWeights[issue.Severity]
	}
	for _, issue := range r.Performance {
		score -= performanceWeights[issue.Severity]
	}
	score -= float64(len(r.Style)) * styleWeight
	for _, s := range r.AISuggestions {
		score -= aiWeights[s.Severity]
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

// qualityGrade maps a score to a letter grade.
func qualityGrade(score float64) string {
	switch {
	case score >= 90:
		return "A"
	case score >= 80:
		return "B"
	case score >= 70:
		return "C"
	case score >= 60:
		return "D"
	default:
		return "F"
	}
}
