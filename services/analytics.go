package services

import "playstore-etl/models"

// BuildAppMetrics aggregates reviews per app and joins the aggregates onto the
// app records. Reviews whose app id matches no app are dropped, and apps
// without reviews produce no row. Rows follow the first review of each app.
func BuildAppMetrics(apps []*models.App, reviews []*models.Review) []*models.AppMetrics {
	byID := make(map[string]*models.App, len(apps))
	for _, a := range apps {
		byID[a.AppID] = a
	}

	aggregates := make(map[string]*reviewAggregate)
	var order []string
	for _, r := range reviews {
		agg, ok := aggregates[r.AppID]
		if !ok {
			agg = &reviewAggregate{}
			aggregates[r.AppID] = agg
			order = append(order, r.AppID)
		}
		agg.add(r)
	}

	out := make([]*models.AppMetrics, 0, len(order))
	for _, appID := range order {
		app, ok := byID[appID]
		if !ok {
			continue
		}
		out = append(out, &models.AppMetrics{
			App:           *app,
			ReviewMetrics: aggregates[appID].metrics(),
		})
	}
	return out
}

type reviewAggregate struct {
	m        models.ReviewMetrics
	scoreSum int
}

func (a *reviewAggregate) add(r *models.Review) {
	a.m.TotalReviews++
	if r.Score != nil && *r.Score >= 1 && *r.Score <= 5 {
		a.scoreSum += *r.Score
		switch *r.Score {
		case 5:
			a.m.FiveStar++
		case 4:
			a.m.FourStar++
		case 3:
			a.m.ThreeStar++
		case 2:
			a.m.TwoStar++
		case 1:
			a.m.OneStar++
		}
	}
	a.m.TotalThumbsUp += r.ThumbsUpCount
	if r.ReplyContent != nil && *r.ReplyContent != "" {
		a.m.ReviewsWithReply++
	}
}

// metrics divides by all reviews, including unscored and out-of-range ones.
func (a *reviewAggregate) metrics() models.ReviewMetrics {
	m := a.m
	if m.TotalReviews > 0 {
		m.AvgScore = float64(a.scoreSum) / float64(m.TotalReviews)
		m.ReplyRate = float64(m.ReviewsWithReply) / float64(m.TotalReviews)
	}
	return m
}
