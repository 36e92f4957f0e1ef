package playstore

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/cdproto/runtime"

	"playstore-etl/models"
)

// pageDetails is what detailsScript extracts from an app page. Numbers stay
// as page text and are parsed on the Go side.
type pageDetails struct {
	Title         string `json:"title"`
	Developer     string `json:"developer"`
	DeveloperID   string `json:"developerId"`
	Genre         string `json:"genre"`
	Score         string `json:"score"`
	Ratings       string `json:"ratings"`
	Installs      string `json:"installs"`
	Price         string `json:"price"`
	ContentRating string `json:"contentRating"`
	Updated       string `json:"updated"`
	Version       string `json:"version"`
	Description   string `json:"description"`
	Summary       string `json:"summary"`
}

// name is the display title, also stored on each review as app_name.
func (d pageDetails) name() string {
	return strings.TrimSpace(d.Title)
}

func (d pageDetails) record(appID string) models.Record {
	rec := models.Record{
		"appId":         appID,
		"title":         d.name(),
		"developer":     d.Developer,
		"developerId":   d.DeveloperID,
		"genre":         d.Genre,
		"installs":      d.Installs,
		"contentRating": d.ContentRating,
		"updated":       d.Updated,
		"version":       d.Version,
		"description":   d.Description,
		"summary":       d.Summary,
	}
	if score, err := strconv.ParseFloat(strings.TrimSpace(d.Score), 64); err == nil {
		rec["score"] = score
	}
	if n, ok := parseCount(d.Ratings); ok {
		rec["ratings"] = n
	}
	price := parsePrice(d.Price)
	rec["price"] = price
	rec["free"] = price == 0
	return rec
}

// reviewCard is one review as rendered in the reviews dialog.
type reviewCard struct {
	ReviewID     string `json:"reviewId"`
	UserName     string `json:"userName"`
	Stars        string `json:"stars"`
	Date         string `json:"date"`
	Content      string `json:"content"`
	Helpful      string `json:"helpful"`
	ReplyContent string `json:"replyContent"`
	RepliedAt    string `json:"repliedAt"`
}

func (c reviewCard) record(appID, appName string) models.Record {
	rec := models.Record{
		"reviewId":      c.ReviewID,
		"appId":         appID,
		"app_name":      appName,
		"userName":      c.UserName,
		"content":       c.Content,
		"thumbsUpCount": 0,
	}
	if stars := parseStars(c.Stars); stars > 0 {
		rec["score"] = stars
	}
	if n, ok := parseCount(c.Helpful); ok {
		rec["thumbsUpCount"] = n
	}
	if c.Date != "" {
		rec["at"] = parseReviewDate(c.Date)
	}
	if c.ReplyContent != "" {
		rec["replyContent"] = c.ReplyContent
		rec["repliedAt"] = parseReviewDate(c.RepliedAt)
	}
	return rec
}

var (
	starsRegexp = regexp.MustCompile(`(\d)(?:\.\d+)?\s+star`)
	countRegexp = regexp.MustCompile(`(?i)(\d[\d,]*(?:\.\d+)?)\s*([KMB])?\b`)
	priceRegexp = regexp.MustCompile(`\d[\d.,]*`)
)

// parseStars reads the star count from an aria label such as
// "Rated 4 stars out of five stars". It returns 0 when absent.
func parseStars(label string) int {
	m := starsRegexp.FindStringSubmatch(label)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

// parseCount reads the first abbreviated count in s: "1,234" -> 1234,
// "12.3K reviews" -> 12300, "5M+" -> 5000000.
func parseCount(s string) (int, bool) {
	m := countRegexp.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return 0, false
	}
	switch strings.ToUpper(m[2]) {
	case "K":
		f *= 1e3
	case "M":
		f *= 1e6
	case "B":
		f *= 1e9
	}
	return int(f + 0.5), true
}

var separatorStripper = strings.NewReplacer(".", "", ",", "")

// parsePrice returns 0 for "Install", "Free" or an empty price. The last
// separator is the decimal point when two digits follow it, or one digit
// after a "."; every other separator groups thousands.
func parsePrice(s string) float64 {
	m := strings.TrimRight(priceRegexp.FindString(s), ".,")
	if m == "" {
		return 0
	}
	if i := strings.LastIndexAny(m, ".,"); i >= 0 {
		frac := len(m) - i - 1
		if frac == 2 || (m[i] == '.' && frac == 1) {
			m = separatorStripper.Replace(m[:i]) + "." + m[i+1:]
		} else {
			m = separatorStripper.Replace(m)
		}
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0
	}
	return f
}

// parseReviewDate turns the displayed date ("March 2, 2024") into RFC 3339.
// Dates in other locales are passed through for the normalizer to report.
func parseReviewDate(s string) string {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"January 2, 2006", "2 January 2006", "Jan 2, 2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Format(time.RFC3339)
		}
	}
	return s
}

func awaitPromise(p *runtime.EvaluateParams) *runtime.EvaluateParams {
	return p.WithAwaitPromise(true)
}

// detailsScript prefers the page's JSON-LD block and falls back to the DOM.
const detailsScript = `
(function() {
	var r = {title:'', developer:'', developerId:'', genre:'', score:'', ratings:'', installs:'',
	         price:'', contentRating:'', updated:'', version:'', description:'', summary:''};

	var ld = document.querySelector('script[type="application/ld+json"]');
	if (ld) {
		try {
			var d = JSON.parse(ld.textContent);
			r.title = d.name || '';
			r.genre = d.applicationCategory || '';
			r.contentRating = d.contentRating || '';
			if (d.author) r.developer = d.author.name || '';
			if (d.aggregateRating) {
				r.score = String(d.aggregateRating.ratingValue || '');
				r.ratings = String(d.aggregateRating.ratingCount || '');
			}
			if (d.offers && d.offers.length) r.price = String(d.offers[0].price || '');
			r.description = d.description || '';
		} catch (e) {}
	}

	if (!r.title) {
		var h1 = document.querySelector('h1 span') || document.querySelector('h1');
		if (h1) r.title = h1.innerText.trim();
	}
	var dev = document.querySelector('a[href*="/store/apps/dev"]');
	if (dev) {
		if (!r.developer) r.developer = dev.innerText.trim();
		var m = dev.href.match(/[?&]id=([^&]+)/);
		if (m) r.developerId = decodeURIComponent(m[1]);
	}
	if (!r.genre) {
		var cat = document.querySelector('a[href*="/store/apps/category/"]');
		if (cat) r.genre = cat.innerText.trim();
	}

	var stats = document.querySelectorAll('div.ClM7O, div.wVqUob');
	for (var i = 0; i < stats.length; i++) {
		var t = stats[i].innerText;
		if (/downloads/i.test(t)) r.installs = t.split('\n')[0].trim();
		if (!r.ratings && /reviews/i.test(t)) r.ratings = t;
	}

	var summary = document.querySelector('meta[name="description"]');
	if (summary) r.summary = summary.getAttribute('content') || '';
	if (!r.description) {
		var desc = document.querySelector('div[data-g-id="description"]');
		if (desc) r.description = desc.innerText.trim();
	}

	var labels = document.querySelectorAll('div.q078ud');
	for (var j = 0; j < labels.length; j++) {
		var value = labels[j].nextElementSibling ? labels[j].nextElementSibling.innerText.trim() : '';
		if (/updated on/i.test(labels[j].innerText)) r.updated = value;
		if (/^version$/i.test(labels[j].innerText.trim())) r.version = value;
	}
	return r;
})()`

// openReviewsScript opens the "See all reviews" dialog.
const openReviewsScript = `
(function() {
	var buttons = document.querySelectorAll('button, div[role="button"]');
	for (var i = 0; i < buttons.length; i++) {
		var label = (buttons[i].getAttribute('aria-label') || buttons[i].innerText || '').toLowerCase();
		if (label.indexOf('see all reviews') >= 0) { buttons[i].click(); return true; }
	}
	return false;
})()`

// scrollReviewsScript scrolls the reviews dialog until limit cards are loaded
// or no new cards appear.
func scrollReviewsScript(limit int) string {
	return fmt.Sprintf(`
new Promise(function(resolve) {
	var limit = %d, stale = 0, last = 0;
	var pane = document.querySelector('div[role="dialog"] div.fysCi') ||
	           document.querySelector('div[role="dialog"] [jsname]') ||
	           document.scrollingElement;
	var timer = setInterval(function() {
		pane.scrollTop = pane.scrollHeight;
		var n = document.querySelectorAll('div[role="dialog"] header[data-review-id]').length;
		stale = (n === last) ? stale + 1 : 0;
		last = n;
		if ((limit > 0 && n >= limit) || stale >= 5) { clearInterval(timer); resolve(n); }
	}, 800);
})`, limit)
}

const reviewsScript = `
(function() {
	var out = [];
	var headers = document.querySelectorAll('div[role="dialog"] header[data-review-id]');
	for (var i = 0; i < headers.length; i++) {
		var h = headers[i];
		var card = h.parentElement;
		var text = function(sel, root) { var el = (root || card).querySelector(sel); return el ? el.innerText.trim() : ''; };
		var stars = h.querySelector('div[role="img"][aria-label]');
		var reply = card.querySelector('div.ocpBU');
		out.push({
			reviewId:     h.getAttribute('data-review-id') || '',
			userName:     text('div.X5PpBb'),
			stars:        stars ? stars.getAttribute('aria-label') : '',
			date:         text('span.bp9Aid'),
			content:      text('div.h3YV2d'),
			helpful:      text('div.AJTPZc'),
			replyContent: reply ? text('div.ras4vb', reply) : '',
			repliedAt:    reply ? text('div.I9Jtec', reply) : ''
		});
	}
	return out;
})()`
