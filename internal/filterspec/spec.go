package filterspec

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Mandatory entry names.
const (
	DateRange  = "date_range"
	FarmID     = "farm_id"
	Parity     = "parity"
	ProteinPct = "protein_pct"

	sampleDateField = "sample_date"
)

// Bound is an optional numeric limit. A nil *Bound encodes as JSON null.
type Bound float64

// NewBound returns a set bound.
func NewBound(v float64) *Bound {
	b := Bound(v)
	return &b
}

// ParseBound reads form input. Empty or non-numeric text gives an unset
// bound, never zero.
func ParseBound(text string) *Bound {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return NewBound(v)
}

// Float returns the bound value and whether it is set.
func (b *Bound) Float() (float64, bool) {
	if b == nil {
		return 0, false
	}
	return float64(*b), true
}

func (b *Bound) String() string {
	if b == nil {
		return "unset"
	}
	return strconv.FormatFloat(float64(*b), 'f', -1, 64)
}

// Kind selects which members an entry carries on the wire.
type Kind int

const (
	KindRange Kind = iota
	KindDates
	KindSet
)

// Entry is one filter of a Spec.
type Entry struct {
	Kind               Kind
	Field              string
	Enabled            bool
	Required           bool
	Min                *Bound
	Max                *Bound
	Allowed            []string
	StartDate          string
	EndDate            string
	IncludeNullAsMatch *bool
}

type rangeWire struct {
	Field              string `json:"field"`
	Enabled            bool   `json:"enabled"`
	Required           bool   `json:"required"`
	Min                *Bound `json:"min"`
	Max                *Bound `json:"max"`
	IncludeNullAsMatch *bool  `json:"include_null_as_match,omitempty"`
}

type datesWire struct {
	Field     string `json:"field"`
	Enabled   bool   `json:"enabled"`
	Required  bool   `json:"required"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type setWire struct {
	Field    string   `json:"field"`
	Enabled  bool     `json:"enabled"`
	Required bool     `json:"required"`
	Allowed  []string `json:"allowed"`
}

// MarshalJSON emits only the members that belong to the entry's kind.
// Range entries always carry min and max, null when unset.
func (e Entry) MarshalJSON() ([]byte, error) {
	switch e.Kind {
	case KindDates:
		return json.Marshal(datesWire{Field: e.Field, Enabled: e.Enabled, Required: e.Required, StartDate: e.StartDate, EndDate: e.EndDate})
	case KindSet:
		allowed := e.Allowed
		if allowed == nil {
			allowed = []string{}
		}
		return json.Marshal(setWire{Field: e.Field, Enabled: e.Enabled, Required: e.Required, Allowed: allowed})
	default:
		return json.Marshal(rangeWire{
			Field:              e.Field,
			Enabled:            e.Enabled,
			Required:           e.Required,
			Min:                e.Min,
			Max:                e.Max,
			IncludeNullAsMatch: e.IncludeNullAsMatch,
		})
	}
}

// Spec maps filter names to entries. It is built fresh per submission and
// not modified afterwards.
type Spec map[string]Entry

// Names returns the entry names in sorted order.
func (s Spec) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Optional returns the names of entries with required=false.
func (s Spec) Optional() []string {
	var names []string
	for _, name := range s.Names() {
		if !s[name].Required {
			names = append(names, name)
		}
	}
	return names
}

// JSON encodes the filter set for the filters form field.
func (s Spec) JSON() (json.RawMessage, error) {
	data, err := json.Marshal(map[string]Entry(s))
	if err != nil {
		return nil, err
	}
	return data, nil
}

// IsMandatory reports whether name is one of the always-present entries.
func IsMandatory(name string) bool {
	switch name {
	case DateRange, FarmID, Parity, ProteinPct:
		return true
	default:
		return false
	}
}
