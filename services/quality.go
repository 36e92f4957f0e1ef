package services

import (
	"fmt"
	"math"

	"playstore-etl/models"
)

// CheckApps scans canonical apps and returns one message per violation.
// It never modifies its input.
func CheckApps(apps []*models.App) []string {
	issues := []string{}
	for i, a := range apps {
		if a == nil {
			issues = append(issues, fmt.Sprintf("Row %d: missing record", i))
			continue
		}
		if a.AppID == "" || a.Title == "" {
			issues = append(issues, fmt.Sprintf("Row %d: missing primary fields", i))
		}
		if a.Rating != nil && (math.IsNaN(*a.Rating) || math.IsInf(*a.Rating, 0)) {
			issues = append(issues, fmt.Sprintf("Row %d: rating not numeric", i))
		}
	}
	return issues
}

// CheckReviews scans canonical reviews and returns one message per violation.
// Score is an *int, so a non-integer score never reaches this check: the
// normalizer reports it as a Diagnostic in quality_report.json instead.
func CheckReviews(reviews []*models.Review) []string {
	issues := []string{}
	for i, r := range reviews {
		if r == nil {
			issues = append(issues, fmt.Sprintf("Row %d: missing record", i))
			continue
		}
		if r.ReviewID == "" || r.AppID == "" {
			issues = append(issues, fmt.Sprintf("Row %d: missing ids", i))
		}
		if r.Score != nil && (*r.Score < 1 || *r.Score > 5) {
			issues = append(issues, fmt.Sprintf("Row %d: score %d out of range [1,5]", i, *r.Score))
		}
	}
	return issues
}
