package services

import (
	"time"

	"playstore-etl/models"
)

const unknownDimension = "Unknown"

// BuildStarSchema derives the dimension and fact tables from a canonical app
// snapshot and the merged review set.
//
// Category and developer keys are 1-based in first-seen order over apps, with
// "Unknown" standing in for missing names. app_key is the app's position. Every
// review yields a fact row; its keys stay nil when the app is unknown or the
// review has no timestamp.
func BuildStarSchema(apps []*models.App, reviews []*models.Review) *models.StarSchema {
	schema := &models.StarSchema{
		DimApps:       make([]*models.DimApp, 0, len(apps)),
		DimCategories: []*models.DimCategory{},
		DimDevelopers: []*models.DimDeveloper{},
		DimDates:      []*models.DimDate{},
		FactReviews:   make([]*models.FactReview, 0, len(reviews)),
	}

	categoryKeys := make(map[string]int)
	developerKeys := make(map[string]int)

	for i, a := range apps {
		category := unknownDimension
		if a.Category != nil && *a.Category != "" {
			category = *a.Category
		}
		developer := a.Developer
		if developer == "" {
			developer = unknownDimension
		}

		catKey, ok := categoryKeys[category]
		if !ok {
			catKey = len(schema.DimCategories) + 1
			categoryKeys[category] = catKey
			schema.DimCategories = append(schema.DimCategories, &models.DimCategory{CategoryKey: catKey, CategoryName: category})
		}
		devKey, ok := developerKeys[developer]
		if !ok {
			devKey = len(schema.DimDevelopers) + 1
			developerKeys[developer] = devKey
			schema.DimDevelopers = append(schema.DimDevelopers, &models.DimDeveloper{DeveloperKey: devKey, DeveloperName: developer})
		}

		schema.DimApps = append(schema.DimApps, &models.DimApp{
			AppKey:        i + 1,
			AppID:         a.AppID,
			Title:         a.Title,
			Developer:     developer,
			Category:      category,
			Rating:        a.Rating,
			RatingsCount:  a.RatingsCount,
			Installs:      a.Installs,
			Price:         a.Price,
			Free:          a.Free,
			ContentRating: a.ContentRating,
			Released:      a.Released,
			Updated:       a.Updated,
			Version:       a.Version,
			CategoryKey:   catKey,
			DeveloperKey:  devKey,
		})
	}

	dateKeys := make(map[string]int)
	for _, r := range reviews {
		if r.At == nil {
			continue
		}
		day := r.At.UTC().Format(time.DateOnly)
		if _, ok := dateKeys[day]; ok {
			continue
		}
		key := len(schema.DimDates) + 1
		dateKeys[day] = key
		schema.DimDates = append(schema.DimDates, newDimDate(key, r.At.UTC()))
	}

	for _, r := range reviews {
		fact := &models.FactReview{
			ReviewID:      r.ReviewID,
			Rating:        r.Score,
			ThumbsUpCount: r.ThumbsUpCount,
			Content:       r.Content,
			Version:       r.ReviewCreatedVersion,
		}
		if dim := findDimApp(schema.DimApps, r.AppID); dim != nil {
			appKey, devKey := dim.AppKey, dim.DeveloperKey
			fact.AppKey = &appKey
			fact.DeveloperKey = &devKey
		}
		if r.At != nil {
			dateKey := dateKeys[r.At.UTC().Format(time.DateOnly)]
			fact.DateKey = &dateKey
		}
		schema.FactReviews = append(schema.FactReviews, fact)
	}

	return schema
}

// findDimApp is a linear scan; dim_apps is one row per app in the snapshot.
func findDimApp(dims []*models.DimApp, appID string) *models.DimApp {
	for _, d := range dims {
		if d.AppID == appID {
			return d
		}
	}
	return nil
}

func newDimDate(key int, t time.Time) *models.DimDate {
	wd := t.Weekday()
	return &models.DimDate{
		DateKey:   key,
		Date:      t.Format(time.DateOnly),
		Year:      t.Year(),
		Month:     int(t.Month()),
		Quarter:   (int(t.Month())-1)/3 + 1,
		Day:       t.Day(),
		DayOfWeek: wd.String(),
		IsWeekend: wd == time.Saturday || wd == time.Sunday,
	}
}
