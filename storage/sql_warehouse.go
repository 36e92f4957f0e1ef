package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"playstore-etl/models"
	"playstore-etl/utils"
)

const batchSize = 50

// dialect captures the few differences between the supported SQL backends.
type dialect struct {
	driver      string
	placeholder func(n int) string
}

var (
	postgresDialect = dialect{driver: "postgres", placeholder: func(n int) string { return fmt.Sprintf("$%d", n) }}
	sqliteDialect   = dialect{driver: "sqlite", placeholder: func(int) string { return "?" }}
)

// migrations run in order on every open. The DDL sticks to types both
// PostgreSQL and SQLite accept.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS dim_categories (
		category_key  INTEGER PRIMARY KEY,
		category_name TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS dim_developers (
		developer_key  INTEGER PRIMARY KEY,
		developer_name TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS dim_apps (
		app_key        INTEGER PRIMARY KEY,
		app_id         TEXT NOT NULL,
		title          TEXT NOT NULL,
		developer      TEXT NOT NULL,
		category       TEXT NOT NULL,
		rating         DOUBLE PRECISION,
		ratings_count  INTEGER NOT NULL DEFAULT 0,
		installs       TEXT NOT NULL DEFAULT '0',
		price          DOUBLE PRECISION NOT NULL DEFAULT 0,
		free           BOOLEAN NOT NULL,
		content_rating TEXT,
		released       TEXT,
		updated        TEXT,
		version        TEXT,
		category_key   INTEGER NOT NULL REFERENCES dim_categories(category_key),
		developer_key  INTEGER NOT NULL REFERENCES dim_developers(developer_key)
	)`,
	`CREATE TABLE IF NOT EXISTS dim_date (
		date_key    INTEGER PRIMARY KEY,
		date        TEXT NOT NULL,
		year        INTEGER NOT NULL,
		month       INTEGER NOT NULL,
		quarter     INTEGER NOT NULL,
		day         INTEGER NOT NULL,
		day_of_week TEXT NOT NULL,
		is_weekend  BOOLEAN NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS fact_reviews (
		review_id              TEXT NOT NULL,
		app_key                INTEGER REFERENCES dim_apps(app_key),
		developer_key          INTEGER REFERENCES dim_developers(developer_key),
		date_key               INTEGER REFERENCES dim_date(date_key),
		rating                 INTEGER,
		thumbs_up_count        INTEGER NOT NULL DEFAULT 0,
		content                TEXT NOT NULL DEFAULT '',
		review_created_version TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS app_history (
		app_id       TEXT NOT NULL,
		attributes   TEXT NOT NULL,
		start_date   TIMESTAMPTZ NOT NULL,
		end_date     TIMESTAMPTZ,
		current_flag BOOLEAN NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS etl_runs (
		run_id         TEXT PRIMARY KEY,
		started_at     TIMESTAMPTZ NOT NULL,
		apps           INTEGER NOT NULL,
		reviews        INTEGER NOT NULL,
		history_rows   INTEGER NOT NULL,
		quality_issues INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_fact_reviews_app  ON fact_reviews(app_key)`,
	`CREATE INDEX IF NOT EXISTS idx_fact_reviews_date ON fact_reviews(date_key)`,
	`CREATE INDEX IF NOT EXISTS idx_app_history_app   ON app_history(app_id, current_flag)`,
}

// reloadOrder lists the regenerated tables, facts first so deletes never
// violate a reference.
var reloadOrder = []string{"fact_reviews", "dim_apps", "dim_date", "dim_categories", "dim_developers", "app_history"}

// SQLWarehouse loads the star schema and the app history into a SQL database.
// Each Load replaces the previous contents in a single transaction.
type SQLWarehouse struct {
	db     *sql.DB
	d      dialect
	logger *utils.Logger
}

// NewPostgresWarehouse opens a connection to PostgreSQL, runs schema
// migrations, and returns a ready-to-use SQLWarehouse.
func NewPostgresWarehouse(dsn string, logger *utils.Logger) (*SQLWarehouse, error) {
	db, err := sql.Open(postgresDialect.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		logger.Warn("[warehouse] PostgreSQL not ready (attempt %d/10): %v", i+1, err)
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	return newSQLWarehouse(db, postgresDialect, logger)
}

// NewSQLiteWarehouse opens (or creates) a SQLite database file. Use
// ":memory:" for a throwaway database.
func NewSQLiteWarehouse(path string, logger *utils.Logger) (*SQLWarehouse, error) {
	db, err := sql.Open(sqliteDialect.driver, path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// One connection: every pooled connection to ":memory:" would be a new database.
	db.SetMaxOpenConns(1)

	return newSQLWarehouse(db, sqliteDialect, logger)
}

func newSQLWarehouse(db *sql.DB, d dialect, logger *utils.Logger) (*SQLWarehouse, error) {
	w := &SQLWarehouse{db: db, d: d, logger: logger}
	if err := w.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: migrate: %w", d.driver, err)
	}
	return w, nil
}

func (w *SQLWarehouse) migrate() error {
	for _, stmt := range migrations {
		if _, err := w.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Load truncates the regenerated tables and writes the new star schema and
// history, then records the run in etl_runs.
func (w *SQLWarehouse) Load(ctx context.Context, run RunInfo, schema *models.StarSchema, history []*models.HistoryRecord) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", w.d.driver, err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range reloadOrder {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("%s: clear %s: %w", w.d.driver, table, err)
		}
	}

	if err := w.insertRows(ctx, tx, "dim_categories", []string{"category_key", "category_name"}, categoryRows(schema.DimCategories)); err != nil {
		return err
	}
	if err := w.insertRows(ctx, tx, "dim_developers", []string{"developer_key", "developer_name"}, developerRows(schema.DimDevelopers)); err != nil {
		return err
	}
	if err := w.insertRows(ctx, tx, "dim_apps", dimAppColumns, dimAppRows(schema.DimApps)); err != nil {
		return err
	}
	if err := w.insertRows(ctx, tx, "dim_date", dimDateColumns, dimDateRows(schema.DimDates)); err != nil {
		return err
	}
	if err := w.insertRows(ctx, tx, "fact_reviews", factColumns, factRows(schema.FactReviews)); err != nil {
		return err
	}
	histRows, err := historyRows(history)
	if err != nil {
		return err
	}
	if err := w.insertRows(ctx, tx, "app_history", []string{"app_id", "attributes", "start_date", "end_date", "current_flag"}, histRows); err != nil {
		return err
	}
	if err := w.insertRows(ctx, tx, "etl_runs",
		[]string{"run_id", "started_at", "apps", "reviews", "history_rows", "quality_issues"},
		[][]any{{run.RunID, run.StartedAt.UTC(), run.Apps, run.Reviews, len(history), run.QualityIssues}},
	); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", w.d.driver, err)
	}
	w.logger.Info("[warehouse] Loaded %d apps, %d facts, %d history rows into %s",
		len(schema.DimApps), len(schema.FactReviews), len(history), w.d.driver)
	return nil
}

// CountRows returns the number of rows in a warehouse table.
func (w *SQLWarehouse) CountRows(ctx context.Context, table string) (int, error) {
	var n int
	if err := w.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("%s: count %s: %w", w.d.driver, table, err)
	}
	return n, nil
}

func (w *SQLWarehouse) Close() error {
	return w.db.Close()
}

func (w *SQLWarehouse) insertRows(ctx context.Context, tx *sql.Tx, table string, columns []string, rows [][]any) error {
	for i := 0; i < len(rows); i += batchSize {
		end := i + batchSize
		if end > len(rows) {
			end = len(rows)
		}
		if err := w.insertBatch(ctx, tx, table, columns, rows[i:end]); err != nil {
			return fmt.Errorf("%s: insert %s: %w", w.d.driver, table, err)
		}
	}
	return nil
}

func (w *SQLWarehouse) insertBatch(ctx context.Context, tx *sql.Tx, table string, columns []string, batch [][]any) error {
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]any, 0, len(batch)*len(columns))

	n := 0
	for _, row := range batch {
		ph := make([]string, len(columns))
		for j := range columns {
			n++
			ph[j] = w.d.placeholder(n)
		}
		valueStrings = append(valueStrings, "("+strings.Join(ph, ",")+")")
		valueArgs = append(valueArgs, row...)
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		table, strings.Join(columns, ", "), strings.Join(valueStrings, ","))
	_, err := tx.ExecContext(ctx, query, valueArgs...)
	return err
}

var dimAppColumns = []string{
	"app_key", "app_id", "title", "developer", "category", "rating", "ratings_count", "installs",
	"price", "free", "content_rating", "released", "updated", "version", "category_key", "developer_key",
}

var dimDateColumns = []string{"date_key", "date", "year", "month", "quarter", "day", "day_of_week", "is_weekend"}

var factColumns = []string{
	"review_id", "app_key", "developer_key", "date_key", "rating", "thumbs_up_count", "content", "review_created_version",
}

func categoryRows(dims []*models.DimCategory) [][]any {
	rows := make([][]any, 0, len(dims))
	for _, d := range dims {
		rows = append(rows, []any{d.CategoryKey, d.CategoryName})
	}
	return rows
}

func developerRows(dims []*models.DimDeveloper) [][]any {
	rows := make([][]any, 0, len(dims))
	for _, d := range dims {
		rows = append(rows, []any{d.DeveloperKey, d.DeveloperName})
	}
	return rows
}

func dimAppRows(dims []*models.DimApp) [][]any {
	rows := make([][]any, 0, len(dims))
	for _, d := range dims {
		rows = append(rows, []any{
			d.AppKey, d.AppID, d.Title, d.Developer, d.Category, nullable(d.Rating), d.RatingsCount, d.Installs,
			d.Price, d.Free, nullable(d.ContentRating), nullable(d.Released), nullable(d.Updated), nullable(d.Version),
			d.CategoryKey, d.DeveloperKey,
		})
	}
	return rows
}

func dimDateRows(dims []*models.DimDate) [][]any {
	rows := make([][]any, 0, len(dims))
	for _, d := range dims {
		rows = append(rows, []any{d.DateKey, d.Date, d.Year, d.Month, d.Quarter, d.Day, d.DayOfWeek, d.IsWeekend})
	}
	return rows
}

func factRows(facts []*models.FactReview) [][]any {
	rows := make([][]any, 0, len(facts))
	for _, f := range facts {
		rows = append(rows, []any{
			f.ReviewID, nullable(f.AppKey), nullable(f.DeveloperKey), nullable(f.DateKey), nullable(f.Rating),
			f.ThumbsUpCount, f.Content, nullable(f.Version),
		})
	}
	return rows
}

func historyRows(history []*models.HistoryRecord) ([][]any, error) {
	rows := make([][]any, 0, len(history))
	for _, h := range history {
		attrs, err := json.Marshal(h.Attributes)
		if err != nil {
			return nil, fmt.Errorf("history: encode attributes: %w", err)
		}
		var end any
		if h.EndDate != nil {
			end = h.EndDate.UTC()
		}
		rows = append(rows, []any{h.Key("app_id"), string(attrs), h.StartDate.UTC(), end, h.CurrentFlag})
	}
	return rows, nil
}

// nullable turns a nil pointer into a SQL NULL and dereferences the rest.
func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
