package services

import (
	"time"

	"playstore-etl/models"
)

func ptr[T any](v T) *T { return &v }

func review(id, appID string, score int) *models.Review {
	r := &models.Review{ReviewID: id, AppID: appID, Content: "text " + id, UserName: anonymousUser}
	if score != 0 {
		r.Score = ptr(score)
	}
	return r
}

func reviewAt(id, appID string, at time.Time) *models.Review {
	r := review(id, appID, 4)
	r.At = &at
	return r
}

func app(id, title, developer string, category *string) *models.App {
	return &models.App{AppID: id, Title: title, Developer: developer, Category: category, Installs: "0", Free: true}
}
