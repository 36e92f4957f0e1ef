package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// SCD2 bookkeeping columns. They never take part in change detection.
const (
	StartDateField   = "start_date"
	EndDateField     = "end_date"
	CurrentFlagField = "current_flag"
)

// HistoryRecord is one version of a record in a type-2 slowly changing
// dimension. EndDate is nil while the version is current.
type HistoryRecord struct {
	Attributes  Attributes
	StartDate   time.Time
	EndDate     *time.Time
	CurrentFlag bool
}

// Key renders the attribute named field as a string, or "" when absent.
func (h *HistoryRecord) Key(field string) string {
	return AttributeKey(h.Attributes, field)
}

// Clone returns a copy that shares no maps or pointers with h.
func (h *HistoryRecord) Clone() *HistoryRecord {
	out := &HistoryRecord{
		Attributes:  make(Attributes, len(h.Attributes)),
		StartDate:   h.StartDate,
		CurrentFlag: h.CurrentFlag,
	}
	for k, v := range h.Attributes {
		out.Attributes[k] = v
	}
	if h.EndDate != nil {
		end := *h.EndDate
		out.EndDate = &end
	}
	return out
}

// MarshalJSON writes the record flat: attributes and bookkeeping side by side.
func (h HistoryRecord) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(h.Attributes)+3)
	for k, v := range h.Attributes {
		flat[k] = v
	}
	flat[StartDateField] = h.StartDate.Format(time.RFC3339Nano)
	if h.EndDate != nil {
		flat[EndDateField] = h.EndDate.Format(time.RFC3339Nano)
	} else {
		flat[EndDateField] = nil
	}
	flat[CurrentFlagField] = h.CurrentFlag
	return json.Marshal(flat)
}

// UnmarshalJSON reads the flat document form written by MarshalJSON.
func (h *HistoryRecord) UnmarshalJSON(b []byte) error {
	var flat map[string]any
	if err := json.Unmarshal(b, &flat); err != nil {
		return err
	}

	rec := HistoryRecord{Attributes: Attributes{}}
	for k, v := range flat {
		switch k {
		case StartDateField:
			s, _ := v.(string)
			t, ok := ParseTimestamp(s)
			if !ok {
				return fmt.Errorf("history: invalid %s %v", StartDateField, v)
			}
			rec.StartDate = t
		case EndDateField:
			if v == nil {
				continue
			}
			s, _ := v.(string)
			t, ok := ParseTimestamp(s)
			if !ok {
				return fmt.Errorf("history: invalid %s %v", EndDateField, v)
			}
			rec.EndDate = &t
		case CurrentFlagField:
			rec.CurrentFlag, _ = v.(bool)
		default:
			rec.Attributes[k] = v
		}
	}
	*h = rec
	return nil
}

// AttributeKey renders attrs[field] as a string key, or "" when absent or nil.
func AttributeKey(attrs Attributes, field string) string {
	v, ok := attrs[field]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
