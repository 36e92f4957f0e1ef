package services

import (
	"strings"
	"unicode"

	"playstore-etl/models"
	"playstore-etl/utils"
)

// Key aliases accepted for each canonical field, in resolution order.
var (
	appIDKeys         = []string{"appId", "app_id"}
	appTitleKeys      = []string{"title", "name"}
	developerKeys     = []string{"developer"}
	developerIDKeys   = []string{"developerId", "developer_id"}
	categoryKeys      = []string{"genre", "category"}
	appRatingKeys     = []string{"score", "rating"}
	ratingsCountKeys  = []string{"ratings", "ratings_count"}
	installsKeys      = []string{"installs"}
	priceKeys         = []string{"price"}
	freeKeys          = []string{"free"}
	contentRatingKeys = []string{"contentRating", "content_rating"}

	reviewIDKeys     = []string{"reviewId", "review_id"}
	reviewAppIDKeys  = []string{"app_id", "appId", "app"}
	reviewBodyKeys   = []string{"content", "comments", "review_text"}
	appNameKeys      = []string{"app_name", "appName"}
	userNameKeys     = []string{"userName", "user_name"}
	reviewScoreKeys  = []string{"score", "rating"}
	thumbsUpKeys     = []string{"thumbsUpCount", "thumbs_up_count"}
	createdVerKeys   = []string{"reviewCreatedVersion", "review_created_version"}
	reviewAtKeys     = []string{"at", "timestamp"}
	replyContentKeys = []string{"replyContent", "reply_content"}
	repliedAtKeys    = []string{"repliedAt", "replied_at"}
)

const (
	unknownDeveloper = "Unknown"
	anonymousUser    = "Anonymous"
)

// Normalizer maps drifting raw records onto the canonical app and review shapes.
type Normalizer struct {
	logger *utils.Logger
}

// NewNormalizer creates a Normalizer with the given logger.
func NewNormalizer(logger *utils.Logger) *Normalizer {
	return &Normalizer{logger: logger}
}

// NormalizeApps returns one canonical App per raw record that has both an id and
// a title. Records without them are dropped; duplicate ids keep the first
// occurrence. Every drop and every degraded field is reported as a Diagnostic.
func (n *Normalizer) NormalizeApps(raw []models.Record) ([]*models.App, []models.Diagnostic) {
	result := make([]*models.App, 0, len(raw))
	var diags []models.Diagnostic
	seen := make(map[string]struct{}, len(raw))

	for i, r := range raw {
		id := lookupString(r, appIDKeys...)
		title := normaliseText(lookupString(r, appTitleKeys...))
		if id == "" || title == "" {
			diags = append(diags, models.Diagnostic{Index: i, RecordID: id, Reason: "missing app id or title", Dropped: true})
			continue
		}
		if _, dup := seen[id]; dup {
			diags = append(diags, models.Diagnostic{Index: i, RecordID: id, Reason: "duplicate app id in snapshot", Dropped: true})
			continue
		}
		seen[id] = struct{}{}

		fd := fieldDiagnostics{index: i, id: id}
		app := &models.App{
			AppID:         id,
			Title:         title,
			Developer:     normaliseText(lookupString(r, developerKeys...)),
			DeveloperID:   lookupOptionalString(r, developerIDKeys...),
			Category:      lookupOptionalString(r, categoryKeys...),
			Rating:        fd.rating(r),
			RatingsCount:  fd.nonNegativeInt(r, "ratings_count", ratingsCountKeys),
			Installs:      lookupString(r, installsKeys...),
			Price:         fd.price(r),
			Free:          true,
			ContentRating: lookupOptionalString(r, contentRatingKeys...),
			Released:      lookupOptionalString(r, "released"),
			Updated:       lookupOptionalString(r, "updated"),
			Version:       lookupOptionalString(r, "version"),
			Description:   stringify(r["description"]),
			Summary:       stringify(r["summary"]),
		}
		if app.Developer == "" {
			app.Developer = unknownDeveloper
		}
		if app.Installs == "" {
			app.Installs = "0"
		}
		if v, _, ok := lookup(r, freeKeys...); ok {
			app.Free = toBool(v, true)
		}

		diags = append(diags, fd.diags...)
		result = append(result, app)
	}

	n.logger.Info("[normalizer] Apps %d → %d (dropped %d)", len(raw), len(result), len(raw)-len(result))
	return result, diags
}

// NormalizeReviews returns one canonical Review per raw record that has an app
// id and a non-null body. An empty body is kept.
func (n *Normalizer) NormalizeReviews(raw []models.Record) ([]*models.Review, []models.Diagnostic) {
	result := make([]*models.Review, 0, len(raw))
	var diags []models.Diagnostic

	for i, r := range raw {
		id := lookupString(r, reviewIDKeys...)
		appID := lookupString(r, reviewAppIDKeys...)
		body, _, hasBody := lookup(r, reviewBodyKeys...)
		if appID == "" || !hasBody {
			diags = append(diags, models.Diagnostic{Index: i, RecordID: id, Reason: "missing app id or content", Dropped: true})
			continue
		}

		fd := fieldDiagnostics{index: i, id: id}
		review := &models.Review{
			ReviewID:             id,
			AppID:                appID,
			AppName:              lookupString(r, appNameKeys...),
			UserName:             normaliseText(lookupString(r, userNameKeys...)),
			Content:              contentString(body),
			Score:                fd.score(r),
			ThumbsUpCount:        fd.thumbsUp(r),
			ReviewCreatedVersion: lookupOptionalString(r, createdVerKeys...),
			ReplyContent:         lookupOptionalString(r, replyContentKeys...),
			RepliedAt:            lookupOptionalString(r, repliedAtKeys...),
		}
		if review.UserName == "" {
			review.UserName = anonymousUser
		}
		if v, _, ok := lookup(r, reviewAtKeys...); ok {
			if t, ok := models.ParseTimestamp(stringify(v)); ok {
				utc := t.UTC()
				review.At = &utc
			} else {
				fd.add("at", "unparsable timestamp")
			}
		}

		diags = append(diags, fd.diags...)
		result = append(result, review)
	}

	n.logger.Info("[normalizer] Reviews %d → %d (dropped %d)", len(raw), len(result), len(raw)-len(result))
	return result, diags
}

// fieldDiagnostics collects degraded-field diagnostics for a single raw record.
type fieldDiagnostics struct {
	index int
	id    string
	diags []models.Diagnostic
}

func (f *fieldDiagnostics) add(field, reason string) {
	f.diags = append(f.diags, models.Diagnostic{Index: f.index, RecordID: f.id, Field: field, Reason: reason})
}

// rating treats falsy values as missing and rejects values outside 0–5.
func (f *fieldDiagnostics) rating(r models.Record) *float64 {
	v, _, ok := lookup(r, appRatingKeys...)
	if !ok || isFalsy(v) {
		return nil
	}
	val, err := toFloat(v)
	if err != nil {
		f.add("rating", err.Error())
		return nil
	}
	if val < 0 || val > 5 {
		f.add("rating", "outside 0–5")
		return nil
	}
	return &val
}

func (f *fieldDiagnostics) nonNegativeInt(r models.Record, field string, keys []string) int {
	v, _, ok := lookup(r, keys...)
	if !ok || isFalsy(v) {
		return 0
	}
	n, err := toInt(v)
	if err != nil {
		f.add(field, err.Error())
		return 0
	}
	if n < 0 {
		f.add(field, "negative")
		return 0
	}
	return n
}

func (f *fieldDiagnostics) price(r models.Record) float64 {
	v, _, ok := lookup(r, priceKeys...)
	if !ok || isFalsy(v) {
		return 0
	}
	p, err := toFloat(v)
	if err != nil {
		f.add("price", err.Error())
		return 0
	}
	if p < 0 {
		f.add("price", "negative")
		return 0
	}
	return p
}

// score keeps out-of-range integers so the quality checks can report them.
func (f *fieldDiagnostics) score(r models.Record) *int {
	v, _, ok := lookup(r, reviewScoreKeys...)
	if !ok || isFalsy(v) {
		return nil
	}
	s, err := toInt(v)
	if err != nil {
		f.add("score", err.Error())
		return nil
	}
	return &s
}

func (f *fieldDiagnostics) thumbsUp(r models.Record) int {
	v, _, ok := lookup(r, thumbsUpKeys...)
	if !ok {
		return 0
	}
	n, err := toInt(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func contentString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return stringify(v)
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r)
	})
	return strings.Join(fields, " ")
}
