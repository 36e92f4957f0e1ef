package playstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/sony/gobreaker"

	"playstore-etl/config"
	"playstore-etl/models"
	"playstore-etl/storage"
	"playstore-etl/utils"
)

const baseURL = "https://play.google.com/store"

// Scraper collects raw app metadata and reviews from the Play Store web UI.
// Records keep the field names the page exposes; the normalizer maps them.
type Scraper struct {
	cfg     *config.Config
	logger  *utils.Logger
	pool    *utils.WorkerPool
	seen    *utils.KeySet
	retry   *utils.RetryConfig
	breaker *gobreaker.CircuitBreaker

	mu      sync.Mutex
	apps    []models.Record
	reviews []models.Record
}

// New creates a ready-to-use Play Store Scraper.
func New(cfg *config.Config, logger *utils.Logger) *Scraper {
	return &Scraper{
		cfg:    cfg,
		logger: logger,
		pool:   utils.NewWorkerPool(cfg.MaxConcurrency, cfg.RateLimitMs),
		seen:   utils.NewKeySet(),
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
		},
		breaker: newBreaker(cfg.BreakerMaxFailures, logger),
	}
}

// newBreaker opens after maxFailures consecutive page failures and probes
// again after a cool-down, so a blocked session stops hammering the site.
func newBreaker(maxFailures int, logger *utils.Logger) *gobreaker.CircuitBreaker {
	if maxFailures < 1 {
		maxFailures = 1
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "playstore",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= uint32(maxFailures)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("[playstore] Circuit %s: %s → %s", name, from, to)
		},
	})
}

// Scrape searches for cfg.SearchQuery and collects every app found together
// with its reviews.
func (s *Scraper) Scrape(ctx context.Context) ([]models.Record, []models.Record, error) {
	s.logger.Info("[playstore] Starting scrape: query %q, up to %d apps, %d reviews/app",
		s.cfg.SearchQuery, s.cfg.MaxApps, s.cfg.MaxReviewsPerApp)

	chromeBin := s.cfg.ChromeBin
	if chromeBin == "" {
		chromeBin = findChromeBinary()
	}
	s.logger.Info("[playstore] Using browser binary: %s", chromeBin)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", s.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("lang", s.cfg.PlayLang),
		chromedp.UserAgent("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 "+
			"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelBrowser()

	ids, err := s.searchApps(browserCtx)
	if err != nil {
		return nil, nil, fmt.Errorf("playstore: search: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil, fmt.Errorf("playstore: search %q returned no apps", s.cfg.SearchQuery)
	}
	s.logger.Info("[playstore] Found %d apps", len(ids))

	for _, id := range ids {
		appID := id
		s.pool.Submit(func() {
			s.scrapeApp(browserCtx, appID)
		})
	}
	s.pool.Wait()

	s.logger.Info("[playstore] Scrape complete: %d apps, %d reviews", len(s.apps), len(s.reviews))
	return s.apps, s.reviews, nil
}

// SaveRaw writes the apps as a JSON array and the reviews as JSON lines, the
// two raw formats the pipeline ingests.
func SaveRaw(cfg *config.Config, apps, reviews []models.Record) error {
	if err := storage.SaveJSON(cfg.AppsRawFile, apps); err != nil {
		return fmt.Errorf("playstore: save apps: %w", err)
	}
	if err := storage.SaveJSONLines(cfg.ReviewsRawFile, reviews); err != nil {
		return fmt.Errorf("playstore: save reviews: %w", err)
	}
	return nil
}

func (s *Scraper) scrapeApp(browserCtx context.Context, appID string) {
	details, err := s.fetchDetails(browserCtx, appID)
	if err != nil {
		s.logger.Warn("[playstore] Details failed for %s: %v", appID, err)
		return
	}
	app := details.record(appID)

	reviews, err := s.fetchReviews(browserCtx, appID, details.name())
	if err != nil {
		s.logger.Warn("[playstore] Reviews failed for %s: %v", appID, err)
	}

	s.mu.Lock()
	s.apps = append(s.apps, app)
	s.reviews = append(s.reviews, reviews...)
	s.mu.Unlock()

	s.logger.Debug("[playstore] %s: %d reviews", appID, len(reviews))
}

// guarded runs one page visit through the circuit breaker and the retry policy.
func (s *Scraper) guarded(ctx context.Context, name string, visit func() error) error {
	_, err := s.breaker.Execute(func() (interface{}, error) {
		return nil, s.retry.Do(ctx, name, visit)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%s skipped: %w", name, err)
	}
	return err
}

func (s *Scraper) searchApps(browserCtx context.Context) ([]string, error) {
	var hrefs []string

	err := s.guarded(browserCtx, "search", func() error {
		ctx, cancel := chromedp.NewContext(browserCtx)
		defer cancel()
		ctx, cancelTimeout := context.WithTimeout(ctx, 60*time.Second)
		defer cancelTimeout()

		return chromedp.Run(ctx,
			chromedp.Navigate(searchURL(s.cfg.SearchQuery, s.cfg.PlayLang, s.cfg.PlayCountry)),
			chromedp.Sleep(4*time.Second),
			chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
			chromedp.Sleep(2*time.Second),
			chromedp.Evaluate(`Array.from(document.querySelectorAll('a[href*="/store/apps/details?id="]')).map(function(a){return a.href;})`, &hrefs),
		)
	})
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, href := range hrefs {
		id := parseAppID(href)
		if id == "" || !s.seen.Add(id) {
			continue
		}
		ids = append(ids, id)
		if s.cfg.MaxApps > 0 && len(ids) >= s.cfg.MaxApps {
			break
		}
	}
	return ids, nil
}

func (s *Scraper) fetchDetails(browserCtx context.Context, appID string) (pageDetails, error) {
	var details pageDetails

	err := s.guarded(browserCtx, "details "+appID, func() error {
		ctx, cancel := chromedp.NewContext(browserCtx)
		defer cancel()
		ctx, cancelTimeout := context.WithTimeout(ctx, 60*time.Second)
		defer cancelTimeout()

		if err := chromedp.Run(ctx,
			chromedp.Navigate(detailURL(appID, s.cfg.PlayLang, s.cfg.PlayCountry)),
			chromedp.Sleep(3*time.Second),
			chromedp.Evaluate(detailsScript, &details),
		); err != nil {
			return fmt.Errorf("chromedp details: %w", err)
		}
		if details.name() == "" {
			return fmt.Errorf("details %s: %w", appID, utils.ErrPermanent)
		}
		return nil
	})
	if err != nil {
		return pageDetails{}, err
	}
	return details, nil
}

func (s *Scraper) fetchReviews(browserCtx context.Context, appID, appName string) ([]models.Record, error) {
	var cards []reviewCard

	err := s.guarded(browserCtx, "reviews "+appID, func() error {
		ctx, cancel := chromedp.NewContext(browserCtx)
		defer cancel()
		ctx, cancelTimeout := context.WithTimeout(ctx, 3*time.Minute)
		defer cancelTimeout()

		return chromedp.Run(ctx,
			chromedp.Navigate(detailURL(appID, s.cfg.PlayLang, s.cfg.PlayCountry)),
			chromedp.Sleep(3*time.Second),
			chromedp.Evaluate(openReviewsScript, nil),
			chromedp.Sleep(2*time.Second),
			chromedp.Evaluate(scrollReviewsScript(s.cfg.MaxReviewsPerApp), nil, awaitPromise),
			chromedp.Evaluate(reviewsScript, &cards),
		)
	})
	if err != nil {
		return nil, err
	}

	out := make([]models.Record, 0, len(cards))
	for _, c := range cards {
		if s.cfg.MaxReviewsPerApp > 0 && len(out) >= s.cfg.MaxReviewsPerApp {
			break
		}
		out = append(out, c.record(appID, appName))
	}
	return out, nil
}

func searchURL(query, lang, country string) string {
	q := url.Values{}
	q.Set("q", query)
	q.Set("c", "apps")
	q.Set("hl", lang)
	q.Set("gl", country)
	return baseURL + "/search?" + q.Encode()
}

func detailURL(appID, lang, country string) string {
	q := url.Values{}
	q.Set("id", appID)
	q.Set("hl", lang)
	q.Set("gl", country)
	return baseURL + "/apps/details?" + q.Encode()
}

// parseAppID extracts the package name from a details link, or "".
func parseAppID(href string) string {
	u, err := url.Parse(href)
	if err != nil || u.Path != "/store/apps/details" {
		return ""
	}
	return u.Query().Get("id")
}

// findChromeBinary locates Chrome/Chromium binary.
func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
