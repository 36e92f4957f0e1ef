package models

// ReviewMetrics holds the per-app review aggregates of the flattened analytics table.
type ReviewMetrics struct {
	TotalReviews     int     `json:"total_reviews"`
	AvgScore         float64 `json:"avg_score"`
	FiveStar         int     `json:"5_star"`
	FourStar         int     `json:"4_star"`
	ThreeStar        int     `json:"3_star"`
	TwoStar          int     `json:"2_star"`
	OneStar          int     `json:"1_star"`
	TotalThumbsUp    int     `json:"total_thumbs_up"`
	ReviewsWithReply int     `json:"reviews_with_reply"`
	ReplyRate        float64 `json:"reply_rate"`
}

// AppMetrics is an app joined with its review aggregates.
type AppMetrics struct {
	App
	ReviewMetrics ReviewMetrics `json:"review_metrics"`
}

// QualityReport is the advisory output of the quality checks for one run.
type QualityReport struct {
	RunID        string       `json:"run_id"`
	AppIssues    []string     `json:"app_issues"`
	ReviewIssues []string     `json:"review_issues"`
	Diagnostics  []Diagnostic `json:"diagnostics"`
}

// InsightReport holds the computed summary over one pipeline run.
type InsightReport struct {
	TotalApps         int
	TotalReviews      int
	AppsWithReviews   int
	AverageScore      float64
	BestRated         []*AppMetrics
	WorstRated        []*AppMetrics
	HighestVolume     []*AppMetrics
	LowestVolume      []*AppMetrics
	HistoryRows       int
	CurrentVersions   int
	ClosedVersions    int
	QualityIssues     int
	ReviewsByCategory map[string]int
}
