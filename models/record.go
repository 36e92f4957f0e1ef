package models

import "fmt"

// Record is a loosely-typed raw document as handed over by the extractor or a
// supplemental CSV source. Key names drift between sources.
type Record map[string]any

// Attributes is the flat attribute view of a canonical record. Values are JSON
// primitives only (nil, bool, float64, string) so that freshly built rows
// compare equal to rows read back from a persisted document.
type Attributes map[string]any

// Diagnostic describes a raw record that was dropped, or a field that was
// degraded to a default, while normalizing a batch.
type Diagnostic struct {
	Index    int    `json:"index"`
	RecordID string `json:"record_id,omitempty"`
	Field    string `json:"field,omitempty"`
	Reason   string `json:"reason"`
	Dropped  bool   `json:"dropped"`
}

func (d Diagnostic) String() string {
	action := "degraded"
	if d.Dropped {
		action = "dropped"
	}
	if d.Field == "" {
		return fmt.Sprintf("row %d (%s) %s: %s", d.Index, d.RecordID, action, d.Reason)
	}
	return fmt.Sprintf("row %d (%s) %s %s: %s", d.Index, d.RecordID, action, d.Field, d.Reason)
}
