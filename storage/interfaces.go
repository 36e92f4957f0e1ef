package storage

import (
	"context"
	"fmt"
	"time"

	"playstore-etl/config"
	"playstore-etl/models"
	"playstore-etl/utils"
)

// RunInfo identifies one pipeline run in the warehouse.
type RunInfo struct {
	RunID         string
	StartedAt     time.Time
	Apps          int
	Reviews       int
	QualityIssues int
}

// Warehouse is the interface any analytics sink must satisfy.
type Warehouse interface {
	Load(ctx context.Context, run RunInfo, schema *models.StarSchema, history []*models.HistoryRecord) error
	Close() error
}

// MetricsWriter is the interface for exporting the flattened analytics table.
type MetricsWriter interface {
	WriteMetrics(rows []*models.AppMetrics) error
	Close() error
}

// OpenWarehouse returns the warehouse selected by cfg.WarehouseDriver, or nil
// when no warehouse is configured.
func OpenWarehouse(cfg *config.Config, logger *utils.Logger) (Warehouse, error) {
	switch cfg.WarehouseDriver {
	case "", "none":
		return nil, nil
	case "postgres":
		return NewPostgresWarehouse(cfg.DSN(), logger)
	case "sqlite":
		return NewSQLiteWarehouse(cfg.SQLitePath, logger)
	default:
		return nil, fmt.Errorf("storage: unknown warehouse driver %q", cfg.WarehouseDriver)
	}
}
