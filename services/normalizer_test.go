package services

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"playstore-etl/models"
	"playstore-etl/utils"
)

func newTestNormalizer() *Normalizer { return NewNormalizer(utils.Discard()) }

func TestNormalizeAppsScore(t *testing.T) {
	n := newTestNormalizer()
	apps, _ := n.NormalizeApps([]models.Record{
		{"appId": "zero", "title": "Zero", "score": 0},
		{"appId": "four", "title": "Four", "score": 4},
		{"appId": "str", "title": "Str", "score": "3.5"},
		{"appId": "none", "title": "None", "score": nil},
	})
	require.Len(t, apps, 4)

	assert.Nil(t, apps[0].Rating)
	require.NotNil(t, apps[1].Rating)
	assert.Equal(t, 4.0, *apps[1].Rating)
	require.NotNil(t, apps[2].Rating)
	assert.Equal(t, 3.5, *apps[2].Rating)
	assert.Nil(t, apps[3].Rating)
}

func TestNormalizeAppsKeyAliases(t *testing.T) {
	n := newTestNormalizer()
	apps, diags := n.NormalizeApps([]models.Record{
		{"app_id": "a1", "name": "  Note   Taker ", "genre": "Productivity", "ratings": "1,200", "price": "2.99", "free": false},
		{"appId": "a2", "title": "Second", "category": "Tools", "ratings_count": 5.0, "developer_id": "dev-2"},
	})
	require.Len(t, apps, 2)
	assert.Empty(t, diags)

	assert.Equal(t, "a1", apps[0].AppID)
	assert.Equal(t, "Note Taker", apps[0].Title)
	assert.Equal(t, "Productivity", *apps[0].Category)
	assert.Equal(t, 1200, apps[0].RatingsCount)
	assert.Equal(t, 2.99, apps[0].Price)
	assert.False(t, apps[0].Free)
	assert.Equal(t, unknownDeveloper, apps[0].Developer)
	assert.Equal(t, "0", apps[0].Installs)

	assert.Equal(t, "Tools", *apps[1].Category)
	assert.Equal(t, 5, apps[1].RatingsCount)
	assert.Equal(t, "dev-2", *apps[1].DeveloperID)
	assert.True(t, apps[1].Free)
	assert.Equal(t, 0.0, apps[1].Price)
}

func TestNormalizeAppsDropsMissingRequiredFields(t *testing.T) {
	n := newTestNormalizer()
	apps, diags := n.NormalizeApps([]models.Record{
		{"appId": "", "title": "No id"},
		{"appId": "a1"},
		{"title": "Only title"},
		{"appId": "a2", "title": "Kept"},
		{"appId": "a2", "title": "Duplicate"},
	})
	require.Len(t, apps, 1)
	assert.Equal(t, "Kept", apps[0].Title)

	require.Len(t, diags, 4)
	for _, d := range diags {
		assert.True(t, d.Dropped)
	}
	assert.Equal(t, 4, diags[3].Index)
}

func TestNormalizeAppsDegradesBadNumbers(t *testing.T) {
	n := newTestNormalizer()
	apps, diags := n.NormalizeApps([]models.Record{
		{"appId": "a1", "title": "Bad", "score": "great", "ratings": "many", "price": "free", "installs": 1000},
	})
	require.Len(t, apps, 1)
	a := apps[0]
	assert.Nil(t, a.Rating)
	assert.Equal(t, 0, a.RatingsCount)
	assert.Equal(t, 0.0, a.Price)
	assert.Equal(t, "1000", a.Installs)

	fields := map[string]bool{}
	for _, d := range diags {
		assert.False(t, d.Dropped)
		fields[d.Field] = true
	}
	assert.Equal(t, map[string]bool{"rating": true, "ratings_count": true, "price": true}, fields)
}

func TestNormalizeAppsJSONNumbers(t *testing.T) {
	var raw []models.Record
	require.NoError(t, json.Unmarshal([]byte(`[{"appId":"a1","title":"T","score":4.25,"ratings":31,"updated":1700000000}]`), &raw))

	apps, _ := newTestNormalizer().NormalizeApps(raw)
	require.Len(t, apps, 1)
	assert.Equal(t, 4.25, *apps[0].Rating)
	assert.Equal(t, 31, apps[0].RatingsCount)
	assert.Equal(t, "1700000000", *apps[0].Updated)
}

func TestNormalizeReviewsAliasesAndDrops(t *testing.T) {
	n := newTestNormalizer()
	reviews, diags := n.NormalizeReviews([]models.Record{
		{"reviewId": "r1", "app_id": "a1", "content": "ok", "score": 5},
		{"review_id": "r2", "appId": "a1", "comments": "fine", "score": "4.0"},
		{"review_id": "r3", "app": "a2", "review_text": ""},
		{"review_id": "r4", "app_id": "a1", "content": nil},
		{"review_id": "r5", "content": "orphan"},
	})
	require.Len(t, reviews, 3)

	assert.Equal(t, "r1", reviews[0].ReviewID)
	assert.Equal(t, 5, *reviews[0].Score)
	assert.Equal(t, anonymousUser, reviews[0].UserName)

	assert.Equal(t, "a1", reviews[1].AppID)
	assert.Equal(t, "fine", reviews[1].Content)
	assert.Equal(t, 4, *reviews[1].Score)

	assert.Equal(t, "a2", reviews[2].AppID)
	assert.Equal(t, "", reviews[2].Content, "empty content is kept")

	dropped := 0
	for _, d := range diags {
		if d.Dropped {
			dropped++
		}
	}
	assert.Equal(t, 2, dropped)
}

func TestNormalizeReviewsScoreAndThumbs(t *testing.T) {
	n := newTestNormalizer()
	reviews, diags := n.NormalizeReviews([]models.Record{
		{"reviewId": "r1", "app_id": "a1", "content": "x", "score": 0, "thumbsUpCount": "lots"},
		{"reviewId": "r2", "app_id": "a1", "content": "x", "score": "bad", "thumbsUpCount": 12},
		{"reviewId": "r3", "app_id": "a1", "content": "x", "score": 6.7},
	})
	require.Len(t, reviews, 3)

	assert.Nil(t, reviews[0].Score)
	assert.Equal(t, 0, reviews[0].ThumbsUpCount)
	assert.Nil(t, reviews[1].Score)
	assert.Equal(t, 12, reviews[1].ThumbsUpCount)
	require.NotNil(t, reviews[2].Score)
	assert.Equal(t, 6, *reviews[2].Score, "out-of-range scores are kept for the quality checks")

	require.Len(t, diags, 1)
	assert.Equal(t, "score", diags[0].Field)
}

func TestNormalizeReviewsTimestamps(t *testing.T) {
	n := newTestNormalizer()
	reviews, _ := n.NormalizeReviews([]models.Record{
		{"reviewId": "z", "app_id": "a1", "content": "x", "at": "2024-03-09T10:15:00Z"},
		{"reviewId": "naive", "app_id": "a1", "content": "x", "at": "2024-03-09T10:15:00"},
		{"reviewId": "offset", "app_id": "a1", "content": "x", "at": "2024-03-09T12:15:00+02:00"},
		{"reviewId": "bad", "app_id": "a1", "content": "x", "at": "yesterday"},
		{"reviewId": "missing", "app_id": "a1", "content": "x"},
	})
	require.Len(t, reviews, 5)

	want := time.Date(2024, 3, 9, 10, 15, 0, 0, time.UTC)
	for _, r := range reviews[:3] {
		require.NotNil(t, r.At, r.ReviewID)
		assert.True(t, want.Equal(*r.At), "%s: got %v", r.ReviewID, r.At)
	}
	assert.Nil(t, reviews[3].At)
	assert.Nil(t, reviews[4].At)
}
