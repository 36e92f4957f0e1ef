package models

import (
	"encoding/json"
	"time"
)

// App is the canonical app metadata record.
type App struct {
	AppID         string   `json:"app_id"`
	Title         string   `json:"title"`
	Developer     string   `json:"developer"`
	DeveloperID   *string  `json:"developer_id"`
	Category      *string  `json:"category"`
	Rating        *float64 `json:"rating"`
	RatingsCount  int      `json:"ratings_count"`
	Installs      string   `json:"installs"`
	Price         float64  `json:"price"`
	Free          bool     `json:"free"`
	ContentRating *string  `json:"content_rating"`
	Released      *string  `json:"released"`
	Updated       *string  `json:"updated"`
	Version       *string  `json:"version"`
	Description   string   `json:"description"`
	Summary       string   `json:"summary"`
}

// Attributes returns the app as a flat attribute map using its JSON field names.
func (a *App) Attributes() Attributes {
	b, err := json.Marshal(a)
	if err != nil {
		return Attributes{}
	}
	attrs := Attributes{}
	if err := json.Unmarshal(b, &attrs); err != nil {
		return Attributes{}
	}
	return attrs
}

// Review is the canonical review record. ReviewID is the natural key.
type Review struct {
	ReviewID             string     `json:"review_id"`
	AppID                string     `json:"app_id"`
	AppName              string     `json:"app_name"`
	UserName             string     `json:"user_name"`
	Content              string     `json:"content"`
	Score                *int       `json:"score"`
	ThumbsUpCount        int        `json:"thumbs_up_count"`
	ReviewCreatedVersion *string    `json:"review_created_version"`
	At                   *time.Time `json:"at"`
	ReplyContent         *string    `json:"reply_content"`
	RepliedAt            *string    `json:"replied_at"`
}
