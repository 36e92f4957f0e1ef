package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"playstore-etl/config"
	"playstore-etl/pipeline"
	"playstore-etl/scraper/playstore"
	"playstore-etl/services"
	"playstore-etl/utils"
)

func main() {
	extract := flag.Bool("extract", false, "scrape the Play Store into the raw data files before processing")
	skipPipeline := flag.Bool("skip-pipeline", false, "stop after extraction")
	flag.Parse()

	cfg := config.Load()
	logger := utils.NewLogger(utils.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("=== Play Store ETL starting ===")
	logger.Info("Config: raw dir %s | processed dir %s | warehouse %q",
		cfg.RawDataDir, cfg.ProcessedDataDir, cfg.WarehouseDriver)

	if *extract {
		scraper := playstore.New(cfg, logger)
		apps, reviews, err := scraper.Scrape(ctx)
		if err != nil {
			logger.Error("Play Store scrape failed: %v", err)
			os.Exit(1)
		}
		if err := playstore.SaveRaw(cfg, apps, reviews); err != nil {
			logger.Error("Saving raw data failed: %v", err)
			os.Exit(1)
		}
		logger.Info("Raw data saved: %s, %s", cfg.AppsRawFile, cfg.ReviewsRawFile)
	}

	if *skipPipeline {
		return
	}

	result, err := pipeline.New(cfg, logger).Run(ctx)
	if err != nil {
		logger.Error("Pipeline failed: %v", err)
		os.Exit(1)
	}

	insightSvc := services.NewInsightService(logger)
	report := insightSvc.Generate(len(result.Apps), result.Metrics, result.History, result.QualityIssues())
	insightSvc.Print(report)

	fmt.Printf("  Done. Run %s → %s\n\n", result.RunID, cfg.ProcessedDataDir)
}
