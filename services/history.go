package services

import (
	"reflect"
	"time"

	"playstore-etl/models"
)

// AppKeyField is the natural key of the app history.
const AppKeyField = "app_id"

// AppAttributes converts a canonical snapshot into the attribute rows
// UpdateHistory consumes.
func AppAttributes(apps []*models.App) []models.Attributes {
	out := make([]models.Attributes, 0, len(apps))
	for _, a := range apps {
		out = append(out, a.Attributes())
	}
	return out
}

// UpdateHistory applies a type-2 slowly-changing-dimension update and returns
// the new history. existing is not modified; rows that get closed are copied.
//
//   - an active row whose key is missing from incoming is closed at now
//   - an incoming row with a new key is appended as the current version
//   - an incoming row whose attributes differ from its active row closes that
//     row and is appended as the new current version
//
// Only the attributes present on the incoming row are compared, so a column
// that exists only in history never causes a new version. Running the update
// twice with the same incoming rows and now appends nothing the second time.
// Incoming rows without a key are ignored; for repeated keys the last one wins.
func UpdateHistory(existing []*models.HistoryRecord, incoming []models.Attributes, keyField string, now time.Time) []*models.HistoryRecord {
	out := make([]*models.HistoryRecord, len(existing), len(existing)+len(incoming))
	copy(out, existing)

	// active maps a key to the index in out of its current version.
	active := make(map[string]int)
	for i, row := range out {
		if row == nil || !row.CurrentFlag {
			continue
		}
		key := row.Key(keyField)
		if prev, ok := active[key]; ok {
			out[prev] = closeRow(out[prev], now)
		}
		active[key] = i
	}

	incomingByKey := make(map[string]models.Attributes, len(incoming))
	incomingOrder := make([]string, 0, len(incoming))
	for _, attrs := range incoming {
		key := models.AttributeKey(attrs, keyField)
		if key == "" {
			continue
		}
		if _, ok := incomingByKey[key]; !ok {
			incomingOrder = append(incomingOrder, key)
		}
		incomingByKey[key] = attrs
	}

	for key, idx := range active {
		if _, ok := incomingByKey[key]; !ok {
			out[idx] = closeRow(out[idx], now)
		}
	}

	for _, key := range incomingOrder {
		attrs := incomingByKey[key]
		idx, ok := active[key]
		if !ok {
			out = append(out, newVersion(attrs, now))
			continue
		}
		if attributesChanged(out[idx].Attributes, attrs) {
			out[idx] = closeRow(out[idx], now)
			out = append(out, newVersion(attrs, now))
		}
	}
	return out
}

// closeRow returns a closed copy of row. An end date already set is kept, and
// rows that are already closed are returned unchanged.
func closeRow(row *models.HistoryRecord, now time.Time) *models.HistoryRecord {
	if row.EndDate != nil && !row.CurrentFlag {
		return row
	}
	closed := row.Clone()
	if closed.EndDate == nil {
		end := now
		closed.EndDate = &end
	}
	closed.CurrentFlag = false
	return closed
}

func newVersion(attrs models.Attributes, now time.Time) *models.HistoryRecord {
	rec := &models.HistoryRecord{
		Attributes:  make(models.Attributes, len(attrs)),
		StartDate:   now,
		CurrentFlag: true,
	}
	for k, v := range attrs {
		if isBookkeeping(k) {
			continue
		}
		rec.Attributes[k] = v
	}
	return rec
}

// attributesChanged compares the keys of incoming against old.
func attributesChanged(old, incoming models.Attributes) bool {
	for k, v := range incoming {
		if isBookkeeping(k) {
			continue
		}
		if !reflect.DeepEqual(old[k], v) {
			return true
		}
	}
	return false
}

func isBookkeeping(k string) bool {
	return k == models.StartDateField || k == models.EndDateField || k == models.CurrentFlagField
}
