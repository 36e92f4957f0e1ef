package services

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mattn/go-runewidth"

	"playstore-etl/models"
	"playstore-etl/utils"
)

const topN = 5

type InsightService struct {
	logger *utils.Logger
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

// Generate summarises the flattened analytics and history of one run.
func (s *InsightService) Generate(totalApps int, metrics []*models.AppMetrics, history []*models.HistoryRecord, qualityIssues int) *models.InsightReport {
	report := &models.InsightReport{
		TotalApps:         totalApps,
		AppsWithReviews:   len(metrics),
		QualityIssues:     qualityIssues,
		HistoryRows:       len(history),
		ReviewsByCategory: make(map[string]int),
	}

	for _, h := range history {
		if h.CurrentFlag {
			report.CurrentVersions++
		} else {
			report.ClosedVersions++
		}
	}

	if len(metrics) == 0 {
		return report
	}

	var scoreTotal float64
	for _, m := range metrics {
		report.TotalReviews += m.ReviewMetrics.TotalReviews
		scoreTotal += m.ReviewMetrics.AvgScore * float64(m.ReviewMetrics.TotalReviews)
		category := unknownDimension
		if m.Category != nil && *m.Category != "" {
			category = *m.Category
		}
		report.ReviewsByCategory[category] += m.ReviewMetrics.TotalReviews
	}
	if report.TotalReviews > 0 {
		report.AverageScore = round2(scoreTotal / float64(report.TotalReviews))
	}

	byScore := append([]*models.AppMetrics(nil), metrics...)
	sort.SliceStable(byScore, func(i, j int) bool {
		return byScore[i].ReviewMetrics.AvgScore > byScore[j].ReviewMetrics.AvgScore
	})
	report.BestRated = head(byScore, topN)
	report.WorstRated = tail(byScore, topN)

	byVolume := append([]*models.AppMetrics(nil), metrics...)
	sort.SliceStable(byVolume, func(i, j int) bool {
		return byVolume[i].ReviewMetrics.TotalReviews > byVolume[j].ReviewMetrics.TotalReviews
	})
	report.HighestVolume = head(byVolume, topN)
	report.LowestVolume = tail(byVolume, topN)

	s.logger.Debug("[insights] %d apps with reviews, %d reviews", report.AppsWithReviews, report.TotalReviews)
	return report
}

func (s *InsightService) Print(r *models.InsightReport) {
	sep := strings.Repeat("═", 60)
	thin := strings.Repeat("─", 60)

	fmt.Printf("\n\033[1;35m%s\033[0m\n", sep)
	fmt.Printf("\033[1;35m  📊 PLAY STORE PIPELINE INSIGHTS\033[0m\n")
	fmt.Printf("\033[1;35m%s\033[0m\n\n", sep)

	fmt.Printf("\033[1;33m  Overview\033[0m\n")
	fmt.Printf("  %s\n", thin)
	fmt.Printf("  Apps in snapshot       : \033[1m%d\033[0m\n", r.TotalApps)
	fmt.Printf("  Apps with reviews      : \033[1m%d\033[0m\n", r.AppsWithReviews)
	fmt.Printf("  Reviews (joined)       : \033[1m%d\033[0m\n", r.TotalReviews)
	fmt.Printf("  Average review score   : \033[1m%.2f\033[0m\n", r.AverageScore)
	fmt.Printf("  Quality issues         : \033[1m%d\033[0m\n", r.QualityIssues)
	fmt.Println()

	fmt.Printf("\033[1;33m  App History (SCD2)\033[0m\n")
	fmt.Printf("  %s\n", thin)
	fmt.Printf("  Versions stored : %d\n", r.HistoryRows)
	fmt.Printf("  Current         : %d\n", r.CurrentVersions)
	fmt.Printf("  Closed          : %d\n", r.ClosedVersions)
	fmt.Println()

	printRanking("Best Performing (avg review score)", thin, r.BestRated, func(m *models.AppMetrics) string {
		return fmt.Sprintf("\033[1;32m%.2f ★\033[0m  (%d reviews)", m.ReviewMetrics.AvgScore, m.ReviewMetrics.TotalReviews)
	})
	printRanking("Worst Performing (avg review score)", thin, r.WorstRated, func(m *models.AppMetrics) string {
		return fmt.Sprintf("\033[1;31m%.2f ★\033[0m  (%d reviews)", m.ReviewMetrics.AvgScore, m.ReviewMetrics.TotalReviews)
	})
	printRanking("Highest Review Volume", thin, r.HighestVolume, func(m *models.AppMetrics) string {
		return fmt.Sprintf("%d reviews", m.ReviewMetrics.TotalReviews)
	})
	printRanking("Lowest Review Volume", thin, r.LowestVolume, func(m *models.AppMetrics) string {
		return fmt.Sprintf("%d reviews", m.ReviewMetrics.TotalReviews)
	})

	fmt.Printf("\033[1;33m  Reviews by Category\033[0m\n")
	fmt.Printf("  %s\n", thin)
	if len(r.ReviewsByCategory) == 0 {
		fmt.Printf("  No category data\n")
	} else {
		type catCount struct {
			cat   string
			count int
		}
		var cats []catCount
		for cat, cnt := range r.ReviewsByCategory {
			cats = append(cats, catCount{cat, cnt})
		}
		sort.Slice(cats, func(i, j int) bool {
			if cats[i].count != cats[j].count {
				return cats[i].count > cats[j].count
			}
			return cats[i].cat < cats[j].cat
		})
		for _, cc := range cats {
			fmt.Printf("  %s %d\n", pad(truncate(cc.cat, 28), 30), cc.count)
		}
	}

	fmt.Printf("\n\033[1;35m%s\033[0m\n\n", sep)
}

func printRanking(title, thin string, rows []*models.AppMetrics, value func(*models.AppMetrics) string) {
	fmt.Printf("\033[1;33m  %s\033[0m\n", title)
	fmt.Printf("  %s\n", thin)
	if len(rows) == 0 {
		fmt.Printf("  No reviewed apps found\n")
	}
	for i, m := range rows {
		fmt.Printf("  \033[1m%d.\033[0m %s %s\n", i+1, pad(truncate(m.Title, 38), 40), value(m))
	}
	fmt.Println()
}

func head(rows []*models.AppMetrics, n int) []*models.AppMetrics {
	if len(rows) > n {
		return rows[:n]
	}
	return rows
}

// tail returns the last n rows, last row first.
func tail(rows []*models.AppMetrics, n int) []*models.AppMetrics {
	start := len(rows) - n
	if start < 0 {
		start = 0
	}
	out := make([]*models.AppMetrics, 0, len(rows)-start)
	for i := len(rows) - 1; i >= start; i-- {
		out = append(out, rows[i])
	}
	return out
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

// truncate and pad measure display width, so CJK and emoji titles line up.
func truncate(s string, max int) string {
	return runewidth.Truncate(s, max, "...")
}

func pad(s string, width int) string {
	return runewidth.FillRight(s, width)
}
