package models

// DimApp is one row of dim_apps. AppKey is positional and 1-based.
type DimApp struct {
	AppKey        int      `json:"app_key"`
	AppID         string   `json:"app_id"`
	Title         string   `json:"title"`
	Developer     string   `json:"developer"`
	Category      string   `json:"category"`
	Rating        *float64 `json:"rating"`
	RatingsCount  int      `json:"ratings_count"`
	Installs      string   `json:"installs"`
	Price         float64  `json:"price"`
	Free          bool     `json:"free"`
	ContentRating *string  `json:"content_rating"`
	Released      *string  `json:"released"`
	Updated       *string  `json:"updated"`
	Version       *string  `json:"version"`
	CategoryKey   int      `json:"category_key"`
	DeveloperKey  int      `json:"developer_key"`
}

type DimCategory struct {
	CategoryKey  int    `json:"category_key"`
	CategoryName string `json:"category_name"`
}

type DimDeveloper struct {
	DeveloperKey  int    `json:"developer_key"`
	DeveloperName string `json:"developer_name"`
}

// DimDate is one calendar day seen in review timestamps.
type DimDate struct {
	DateKey   int    `json:"date_key"`
	Date      string `json:"date"`
	Year      int    `json:"year"`
	Month     int    `json:"month"`
	Quarter   int    `json:"quarter"`
	Day       int    `json:"day"`
	DayOfWeek string `json:"day_of_week"`
	IsWeekend bool   `json:"is_weekend"`
}

// FactReview is one row of fact_reviews. Foreign keys are nil when the review
// references an unknown app or carries no parseable timestamp.
type FactReview struct {
	ReviewID      string  `json:"review_id"`
	AppKey        *int    `json:"app_key"`
	DeveloperKey  *int    `json:"developer_key"`
	DateKey       *int    `json:"date_key"`
	Rating        *int    `json:"rating"`
	ThumbsUpCount int     `json:"thumbs_up_count"`
	Content       string  `json:"content"`
	Version       *string `json:"review_created_version"`
}

// StarSchema bundles the five tables produced by one build.
type StarSchema struct {
	DimApps       []*DimApp
	DimCategories []*DimCategory
	DimDevelopers []*DimDeveloper
	DimDates      []*DimDate
	FactReviews   []*FactReview
}
