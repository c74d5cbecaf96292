package analyzer

import "codereviewsvc/pkg/review"

// bucketFor implements the category-to-bucket routing table from
// spec §4.5.4. This routing is part of the contract and must be
// covered by tests.
func bucketFor(category review.IssueCategory) string {
	switch category {
	case review.CategoryConcurrency, review.CategoryReliability:
		return "security"
	case review.CategoryMemoryLeak, review.CategoryObservability, review.CategoryTestability:
		return "performance"
	case review.CategoryDesign:
		return "style"
	case review.CategorySecurity:
		return "security"
	case review.CategoryPerformance:
		return "performance"
	default:
		return "style"
	}
}
