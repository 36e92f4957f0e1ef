package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"playstore-etl/models"
)

var metricsHeader = []string{
	"app_id", "title", "developer", "category", "rating", "ratings_count", "installs", "price", "free",
	"total_reviews", "avg_score", "5_star", "4_star", "3_star", "2_star", "1_star",
	"total_thumbs_up", "reviews_with_reply", "reply_rate",
}

// CSVWriter exports the flattened analytics table as CSV.
type CSVWriter struct {
	file   *os.File
	writer *csv.Writer
}

// NewCSVWriter creates (or truncates) the CSV file at the given path and
// writes the header row. Intermediate directories are created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(metricsHeader); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()

	return &CSVWriter{file: f, writer: w}, nil
}

// WriteMetrics appends one row per analytics record.
func (c *CSVWriter) WriteMetrics(rows []*models.AppMetrics) error {
	for _, m := range rows {
		rm := m.ReviewMetrics
		row := []string{
			m.AppID,
			m.Title,
			m.Developer,
			optional(m.Category),
			optionalFloat(m.Rating),
			strconv.Itoa(m.RatingsCount),
			m.Installs,
			strconv.FormatFloat(m.Price, 'f', 2, 64),
			strconv.FormatBool(m.Free),
			strconv.Itoa(rm.TotalReviews),
			strconv.FormatFloat(rm.AvgScore, 'f', 4, 64),
			strconv.Itoa(rm.FiveStar),
			strconv.Itoa(rm.FourStar),
			strconv.Itoa(rm.ThreeStar),
			strconv.Itoa(rm.TwoStar),
			strconv.Itoa(rm.OneStar),
			strconv.Itoa(rm.TotalThumbsUp),
			strconv.Itoa(rm.ReviewsWithReply),
			strconv.FormatFloat(rm.ReplyRate, 'f', 4, 64),
		}
		if err := c.writer.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.writer.Flush()
	return c.file.Close()
}

func optional(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optionalFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}
