package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"playstore-etl/config"
	"playstore-etl/models"
	"playstore-etl/services"
	"playstore-etl/storage"
	"playstore-etl/utils"
)

// Pipeline runs one batch: ingest raw records, normalize them, merge reviews
// with the previous run, version the app snapshot, derive the analytics
// outputs and persist everything.
type Pipeline struct {
	cfg        *config.Config
	logger     *utils.Logger
	normalizer *services.Normalizer

	// Now and NewRunID are replaceable for deterministic runs.
	Now      func() time.Time
	NewRunID func() string
}

// Result carries everything one run produced.
type Result struct {
	RunID     string
	StartedAt time.Time
	Apps      []*models.App
	Reviews   []*models.Review
	History   []*models.HistoryRecord
	Metrics   []*models.AppMetrics
	Schema    *models.StarSchema
	Quality   *models.QualityReport
}

// QualityIssues counts the advisory issues found by the quality checks.
func (r *Result) QualityIssues() int {
	if r.Quality == nil {
		return 0
	}
	return len(r.Quality.AppIssues) + len(r.Quality.ReviewIssues)
}

// New creates a Pipeline for cfg.
func New(cfg *config.Config, logger *utils.Logger) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		logger:     logger,
		normalizer: services.NewNormalizer(logger),
		Now:        func() time.Time { return time.Now().UTC() },
		NewRunID:   func() string { return uuid.New().String() },
	}
}

// Run executes the pipeline once. Outputs written before a failing stage are
// left in place.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	res := &Result{RunID: p.NewRunID(), StartedAt: p.Now()}
	p.logger.Info("[pipeline] Run %s started", res.RunID)

	store, err := storage.NewJSONStore(p.cfg.ProcessedDataDir)
	if err != nil {
		return nil, fmt.Errorf("pipeline: output: %w", err)
	}

	// Ingest
	rawApps, err := p.loadSource(p.cfg.AppsRawFile, p.cfg.SupplementalAppsCSV)
	if err != nil {
		return nil, fmt.Errorf("pipeline: ingest apps: %w", err)
	}
	rawReviews, err := p.loadSource(p.cfg.ReviewsRawFile, p.cfg.SupplementalReviewsCSV)
	if err != nil {
		return nil, fmt.Errorf("pipeline: ingest reviews: %w", err)
	}

	// Normalize
	apps, appDiags := p.normalizer.NormalizeApps(rawApps)
	incoming, reviewDiags := p.normalizer.NormalizeReviews(rawReviews)
	diags := append(appDiags, reviewDiags...)
	p.logDiagnostics(diags)
	res.Apps = apps

	// Merge with the reviews of the previous run
	var prior []*models.Review
	if err := loadPrior(store, config.ReviewsCleanFile, &prior); err != nil {
		return nil, fmt.Errorf("pipeline: load prior reviews: %w", err)
	}
	res.Reviews = services.MergeReviews(prior, incoming)
	p.logger.Info("[pipeline] Reviews merged: %d prior + %d incoming → %d", len(prior), len(incoming), len(res.Reviews))

	// Version the app snapshot
	var history []*models.HistoryRecord
	if err := loadPrior(store, config.AppsHistoryFile, &history); err != nil {
		return nil, fmt.Errorf("pipeline: load history: %w", err)
	}
	res.History = services.UpdateHistory(history, services.AppAttributes(apps), services.AppKeyField, res.StartedAt)
	p.logger.Info("[pipeline] History rows: %d → %d", len(history), len(res.History))

	// Derive
	res.Metrics = services.BuildAppMetrics(apps, res.Reviews)
	res.Schema = services.BuildStarSchema(apps, res.Reviews)
	res.Quality = &models.QualityReport{
		RunID:        res.RunID,
		AppIssues:    services.CheckApps(apps),
		ReviewIssues: services.CheckReviews(res.Reviews),
		Diagnostics:  diags,
	}
	if res.Quality.Diagnostics == nil {
		res.Quality.Diagnostics = []models.Diagnostic{}
	}
	if n := res.QualityIssues(); n > 0 {
		p.logger.Warn("[quality] %d issues found", n)
		for _, issue := range res.Quality.AppIssues {
			p.logger.Debug("[quality] apps: %s", issue)
		}
		for _, issue := range res.Quality.ReviewIssues {
			p.logger.Debug("[quality] reviews: %s", issue)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("pipeline: cancelled: %w", err)
	}

	// Persist
	if err := p.persist(store, res); err != nil {
		return nil, fmt.Errorf("pipeline: persist: %w", err)
	}
	if err := p.loadWarehouse(ctx, res); err != nil {
		return nil, fmt.Errorf("pipeline: warehouse: %w", err)
	}

	p.logger.Info("[pipeline] Run %s finished: %d apps, %d reviews, %d history rows",
		res.RunID, len(res.Apps), len(res.Reviews), len(res.History))
	return res, nil
}

// loadSource reads the primary raw file and appends the optional supplemental
// CSV. Missing files are logged and treated as empty.
func (p *Pipeline) loadSource(path, supplementalCSV string) ([]models.Record, error) {
	records, err := storage.LoadRecords(path, p.logger)
	if errors.Is(err, storage.ErrSourceNotFound) {
		p.logger.Warn("[pipeline] Source %s not found, continuing with no records", path)
		records, err = nil, nil
	}
	if err != nil {
		return nil, err
	}

	if supplementalCSV == "" {
		return records, nil
	}
	extra, err := storage.LoadCSV(supplementalCSV)
	if errors.Is(err, storage.ErrSourceNotFound) {
		p.logger.Warn("[pipeline] Supplemental source %s not found, skipping", supplementalCSV)
		return records, nil
	}
	if err != nil {
		return nil, err
	}
	p.logger.Info("[pipeline] Appended %d records from %s", len(extra), supplementalCSV)
	return append(records, extra...), nil
}

func (p *Pipeline) logDiagnostics(diags []models.Diagnostic) {
	if len(diags) == 0 {
		return
	}
	p.logger.Warn("[normalizer] %d records dropped or degraded", len(diags))
	for _, d := range diags {
		p.logger.Debug("[normalizer] %s", d)
	}
}

func (p *Pipeline) persist(store *storage.JSONStore, res *Result) error {
	docs := []struct {
		name string
		v    any
	}{
		{config.AppsCleanFile, res.Apps},
		{config.ReviewsCleanFile, res.Reviews},
		{config.AppsHistoryFile, res.History},
		{config.AppsMetricsFile, res.Metrics},
		{config.DimAppsFile, res.Schema.DimApps},
		{config.DimCategoriesFile, res.Schema.DimCategories},
		{config.DimDevelopersFile, res.Schema.DimDevelopers},
		{config.DimDateFile, res.Schema.DimDates},
		{config.FactReviewsFile, res.Schema.FactReviews},
		{config.QualityReportFile, res.Quality},
	}
	for _, d := range docs {
		if err := store.Save(d.name, d.v); err != nil {
			return err
		}
	}

	csvWriter, err := storage.NewCSVWriter(p.cfg.ProcessedPath(config.AppsMetricsCSVFile))
	if err != nil {
		return err
	}
	if err := exportMetrics(csvWriter, res.Metrics); err != nil {
		return err
	}

	p.logger.Info("[pipeline] Wrote %d documents to %s", len(docs)+1, p.cfg.ProcessedDataDir)
	return nil
}

// exportMetrics writes rows and always closes w.
func exportMetrics(w storage.MetricsWriter, rows []*models.AppMetrics) error {
	if err := w.WriteMetrics(rows); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func (p *Pipeline) loadWarehouse(ctx context.Context, res *Result) error {
	wh, err := storage.OpenWarehouse(p.cfg, p.logger)
	if err != nil {
		return err
	}
	if wh == nil {
		p.logger.Debug("[pipeline] No warehouse configured")
		return nil
	}
	defer wh.Close()

	run := storage.RunInfo{
		RunID:         res.RunID,
		StartedAt:     res.StartedAt,
		Apps:          len(res.Apps),
		Reviews:       len(res.Reviews),
		QualityIssues: res.QualityIssues(),
	}
	return wh.Load(ctx, run, res.Schema, res.History)
}

// loadPrior decodes a document written by an earlier run. A missing document
// leaves v untouched.
func loadPrior(store *storage.JSONStore, name string, v any) error {
	err := store.Load(name, v)
	if errors.Is(err, storage.ErrSourceNotFound) {
		return nil
	}
	return err
}
