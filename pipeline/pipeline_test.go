package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"playstore-etl/config"
	"playstore-etl/models"
	"playstore-etl/storage"
	"playstore-etl/utils"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	rawDir := filepath.Join(dir, "raw")
	require.NoError(t, os.MkdirAll(rawDir, 0755))
	return &config.Config{
		RawDataDir:       rawDir,
		ProcessedDataDir: filepath.Join(dir, "processed"),
		AppsRawFile:      filepath.Join(rawDir, "apps_metadata.json"),
		ReviewsRawFile:   filepath.Join(rawDir, "apps_reviews.json"),
	}
}

func writeRaw(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func newTestPipeline(cfg *config.Config, now time.Time, runID string) *Pipeline {
	p := New(cfg, utils.Discard())
	p.Now = func() time.Time { return now }
	p.NewRunID = func() string { return runID }
	return p
}

func TestRunTwiceIsStable(t *testing.T) {
	cfg := testConfig(t)
	writeRaw(t, cfg.AppsRawFile, `[{"appId":"a1","title":"Notes AI","developer":"Acme","genre":"Productivity","score":4.2}]`)
	writeRaw(t, cfg.ReviewsRawFile, `{"reviewId":"r1","appId":"a1","content":"good","score":4,"at":"2024-03-02T10:00:00Z"}`+"\n")

	first := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	res1, err := newTestPipeline(cfg, first, "run-1").Run(context.Background())
	require.NoError(t, err)
	res2, err := newTestPipeline(cfg, first.Add(24*time.Hour), "run-2").Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, res2.Apps, 1)
	assert.Len(t, res2.Reviews, 1)
	assert.Len(t, res2.History, len(res1.History))
	assert.True(t, res2.History[0].CurrentFlag)
	assert.True(t, res2.History[0].StartDate.Equal(first), "unchanged version keeps its start date")

	var dimApps []*models.DimApp
	require.NoError(t, storage.LoadJSON(cfg.ProcessedPath(config.DimAppsFile), &dimApps))
	require.Len(t, dimApps, 1)
	assert.Equal(t, "a1", dimApps[0].AppID)

	for _, name := range []string{
		config.AppsCleanFile, config.ReviewsCleanFile, config.AppsHistoryFile, config.AppsMetricsFile,
		config.DimAppsFile, config.DimCategoriesFile, config.DimDevelopersFile, config.DimDateFile,
		config.FactReviewsFile, config.QualityReportFile, config.AppsMetricsCSVFile,
	} {
		assert.FileExists(t, cfg.ProcessedPath(name))
	}
}

func TestRunVersionsChangedApps(t *testing.T) {
	cfg := testConfig(t)
	writeRaw(t, cfg.AppsRawFile, `[{"appId":"a1","title":"Notes"},{"appId":"a2","title":"Gone soon"}]`)
	day := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	_, err := newTestPipeline(cfg, day, "run-1").Run(context.Background())
	require.NoError(t, err)

	writeRaw(t, cfg.AppsRawFile, `[{"appId":"a1","title":"Notes Pro"}]`)
	res, err := newTestPipeline(cfg, day.Add(time.Hour), "run-2").Run(context.Background())
	require.NoError(t, err)

	require.Len(t, res.History, 3)
	current := 0
	for _, h := range res.History {
		if h.CurrentFlag {
			current++
			assert.Equal(t, "Notes Pro", h.Attributes["title"])
		} else {
			require.NotNil(t, h.EndDate)
			assert.True(t, h.EndDate.Equal(day.Add(time.Hour)))
		}
	}
	assert.Equal(t, 1, current)
}

func TestRunMergesIncrementalReviews(t *testing.T) {
	cfg := testConfig(t)
	writeRaw(t, cfg.AppsRawFile, `[{"appId":"a1","title":"Notes"}]`)
	writeRaw(t, cfg.ReviewsRawFile, `[{"reviewId":"r1","appId":"a1","content":"ok","score":3}]`)
	_, err := newTestPipeline(cfg, time.Now(), "run-1").Run(context.Background())
	require.NoError(t, err)

	writeRaw(t, cfg.ReviewsRawFile, `[{"reviewId":"r1","appId":"a1","content":"better","score":5},{"reviewId":"r2","appId":"a1","content":"new","score":4}]`)
	res, err := newTestPipeline(cfg, time.Now(), "run-2").Run(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Reviews, 2)
	assert.Equal(t, "r1", res.Reviews[0].ReviewID)
	assert.Equal(t, "better", res.Reviews[0].Content)
	require.Len(t, res.Metrics, 1)
	assert.Equal(t, 2, res.Metrics[0].ReviewMetrics.TotalReviews)
	assert.Equal(t, 4.5, res.Metrics[0].ReviewMetrics.AvgScore)
}

func TestRunWithMissingSources(t *testing.T) {
	cfg := testConfig(t)

	res, err := newTestPipeline(cfg, time.Now(), "run-1").Run(context.Background())

	require.NoError(t, err)
	assert.Empty(t, res.Apps)
	assert.Empty(t, res.Reviews)
	assert.Empty(t, res.History)
	assert.FileExists(t, cfg.ProcessedPath(config.QualityReportFile))
}

func TestRunAppendsSupplementalCSV(t *testing.T) {
	cfg := testConfig(t)
	writeRaw(t, cfg.AppsRawFile, `[{"appId":"a1","title":"Notes"}]`)
	cfg.SupplementalAppsCSV = filepath.Join(cfg.RawDataDir, "extra_apps.csv")
	writeRaw(t, cfg.SupplementalAppsCSV, "app_id,name,rating,ratings_count\na2,Scribe,4.5,120\n")

	res, err := newTestPipeline(cfg, time.Now(), "run-1").Run(context.Background())

	require.NoError(t, err)
	require.Len(t, res.Apps, 2)
	assert.Equal(t, "Scribe", res.Apps[1].Title)
	assert.Equal(t, 120, res.Apps[1].RatingsCount)
}

func TestRunReportsQualityAndDiagnostics(t *testing.T) {
	cfg := testConfig(t)
	writeRaw(t, cfg.AppsRawFile, `[{"appId":"a1","title":"Notes"},{"title":"no id"}]`)
	writeRaw(t, cfg.ReviewsRawFile, `[{"reviewId":"r1","appId":"a1","content":"x","score":6}]`)

	res, err := newTestPipeline(cfg, time.Now(), "run-q").Run(context.Background())
	require.NoError(t, err)

	var report models.QualityReport
	require.NoError(t, storage.LoadJSON(cfg.ProcessedPath(config.QualityReportFile), &report))
	assert.Equal(t, "run-q", report.RunID)
	assert.Len(t, report.ReviewIssues, 1)
	require.NotEmpty(t, report.Diagnostics)
	assert.True(t, report.Diagnostics[0].Dropped)
	assert.Equal(t, 1, res.QualityIssues())
}

func TestRunLoadsSQLiteWarehouse(t *testing.T) {
	cfg := testConfig(t)
	cfg.WarehouseDriver = "sqlite"
	cfg.SQLitePath = filepath.Join(t.TempDir(), "warehouse.db")
	writeRaw(t, cfg.AppsRawFile, `[{"appId":"a1","title":"Notes"}]`)
	writeRaw(t, cfg.ReviewsRawFile, `[{"reviewId":"r1","appId":"a1","content":"x","score":5},{"reviewId":"r2","appId":"zz","content":"orphan"}]`)

	_, err := newTestPipeline(cfg, time.Now(), "run-1").Run(context.Background())
	require.NoError(t, err)

	wh, err := storage.NewSQLiteWarehouse(cfg.SQLitePath, utils.Discard())
	require.NoError(t, err)
	defer wh.Close()

	n, err := wh.CountRows(context.Background(), "fact_reviews")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = wh.CountRows(context.Background(), "etl_runs")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRunFailsOnBadWarehouseDriver(t *testing.T) {
	cfg := testConfig(t)
	cfg.WarehouseDriver = "oracle"

	_, err := newTestPipeline(cfg, time.Now(), "run-1").Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline: warehouse:")
}
