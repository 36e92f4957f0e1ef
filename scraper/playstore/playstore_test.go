package playstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"playstore-etl/config"
	"playstore-etl/models"
	"playstore-etl/services"
	"playstore-etl/storage"
	"playstore-etl/utils"
)

func TestURLs(t *testing.T) {
	assert.Equal(t, "https://play.google.com/store/search?c=apps&gl=us&hl=en&q=AI+note+taking",
		searchURL("AI note taking", "en", "us"))
	assert.Equal(t, "https://play.google.com/store/apps/details?gl=de&hl=de&id=com.example.notes",
		detailURL("com.example.notes", "de", "de"))
}

func TestParseAppID(t *testing.T) {
	tests := []struct {
		href string
		want string
	}{
		{"https://play.google.com/store/apps/details?id=com.example.notes&hl=en", "com.example.notes"},
		{"https://play.google.com/store/apps/dev?id=123", ""},
		{"::not a url", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseAppID(tt.href), tt.href)
	}
}

func TestParseHelpers(t *testing.T) {
	assert.Equal(t, 4, parseStars("Rated 4 stars out of five stars"))
	assert.Equal(t, 0, parseStars("no rating"))

	counts := map[string]int{
		"1,234":                               1234,
		"12.3K reviews":                       12300,
		"5M+":                                 5000000,
		"12 people found this review helpful": 12,
	}
	for in, want := range counts {
		got, ok := parseCount(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := parseCount("")
	assert.False(t, ok)

	assert.Equal(t, "2024-03-02T00:00:00Z", parseReviewDate("March 2, 2024"))
	assert.Equal(t, "2. März 2024", parseReviewDate("2. März 2024"))
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
	}{
		{"Install", 0},
		{"", 0},
		{"0", 0},
		{"$4.99 Buy", 4.99},
		{"$12.5", 12.5},
		{"2,50 €", 2.5},
		{"€1,99", 1.99},
		{"$1,200.50", 1200.50},
		{"$1,299.99", 1299.99},
		{"₩12,000", 12000},
		{"1.234,56 €", 1234.56},
		{"R$ 1.000", 1000},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, parsePrice(tt.raw), 1e-9, "parsePrice(%q)", tt.raw)
	}
}

func TestDetailsNameFeedsReviews(t *testing.T) {
	details := pageDetails{Title: "  Notes AI\n"}
	card := reviewCard{ReviewID: "gp:2", Content: "ok"}

	rec := card.record("com.example.notes", details.name())

	assert.Equal(t, "Notes AI", details.name())
	assert.Equal(t, "Notes AI", rec["app_name"])
	assert.Equal(t, "Notes AI", details.record("com.example.notes")["title"])
	assert.Empty(t, pageDetails{Title: "   "}.name())
}

func TestScrapedRecordsNormalize(t *testing.T) {
	details := pageDetails{Title: " Notes AI ", Developer: "Acme", Genre: "Productivity", Score: "4.4", Ratings: "1.2K", Installs: "100K+", Price: "0"}
	card := reviewCard{ReviewID: "gp:1", UserName: "Ann", Stars: "Rated 5 stars out of five stars", Date: "March 2, 2024", Content: "Great", Helpful: "3"}

	n := services.NewNormalizer(utils.Discard())
	apps, appDiags := n.NormalizeApps([]models.Record{details.record("com.example.notes")})
	reviews, reviewDiags := n.NormalizeReviews([]models.Record{card.record("com.example.notes", "Notes AI")})

	assert.Empty(t, appDiags)
	assert.Empty(t, reviewDiags)
	require.Len(t, apps, 1)
	assert.Equal(t, "Notes AI", apps[0].Title)
	assert.Equal(t, 1200, apps[0].RatingsCount)
	require.NotNil(t, apps[0].Rating)
	assert.Equal(t, 4.4, *apps[0].Rating)
	assert.True(t, apps[0].Free)

	require.Len(t, reviews, 1)
	require.NotNil(t, reviews[0].Score)
	assert.Equal(t, 5, *reviews[0].Score)
	assert.Equal(t, 3, reviews[0].ThumbsUpCount)
	require.NotNil(t, reviews[0].At)
	assert.Equal(t, 2024, reviews[0].At.Year())
}

func TestGuardedOpensBreaker(t *testing.T) {
	cfg := &config.Config{MaxConcurrency: 1, MaxRetries: 1, BreakerMaxFailures: 2}
	s := New(cfg, utils.Discard())
	boom := errors.New("blocked")
	calls := 0
	visit := func() error { calls++; return boom }

	assert.ErrorIs(t, s.guarded(context.Background(), "p1", visit), boom)
	assert.ErrorIs(t, s.guarded(context.Background(), "p2", visit), boom)
	err := s.guarded(context.Background(), "p3", visit)

	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, calls, "open breaker must not run the visit")
}

func TestSaveRawRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		AppsRawFile:    filepath.Join(dir, "apps_metadata.json"),
		ReviewsRawFile: filepath.Join(dir, "apps_reviews.json"),
	}
	apps := []models.Record{{"appId": "a1", "title": "One"}}
	reviews := []models.Record{{"reviewId": "r1", "appId": "a1", "content": "x"}, {"reviewId": "r2", "appId": "a1", "content": "y"}}

	require.NoError(t, SaveRaw(cfg, apps, reviews))

	gotApps, err := storage.LoadRecords(cfg.AppsRawFile, utils.Discard())
	require.NoError(t, err)
	assert.Len(t, gotApps, 1)
	gotReviews, err := storage.LoadRecords(cfg.ReviewsRawFile, utils.Discard())
	require.NoError(t, err)
	assert.Len(t, gotReviews, 2)
}
