package filterspec

import (
	"sort"
	"strconv"
	"strings"

	"herdscreen/internal/api"
)

// Toggle is the form state of one optional filter, keyed by its field.
type Toggle struct {
	Enabled bool
	Min     string
	Max     string
}

// Form is the user-entered filter state. Numeric inputs stay raw text; the
// builder does not validate them.
type Form struct {
	StartDate          string
	EndDate            string
	FarmIDs            []string
	ParityMin          string
	ParityMax          string
	ProteinMin         string
	ProteinMax         string
	IncludeNullAsMatch bool
	Toggles            map[string]Toggle
}

// Build turns form state into a Spec. The four mandatory entries are always
// present with required=true. Each server-declared optional definition whose
// toggle is enabled adds a required=false range entry keyed by its field.
// Definitions whose field collides with a mandatory entry are ignored.
func Build(form Form, defs map[string]api.FilterDefinition) Spec {
	includeNull := form.IncludeNullAsMatch
	spec := Spec{
		DateRange: {
			Kind:      KindDates,
			Field:     sampleDateField,
			Enabled:   true,
			Required:  true,
			StartDate: strings.TrimSpace(form.StartDate),
			EndDate:   strings.TrimSpace(form.EndDate),
		},
		FarmID: {
			Kind:     KindSet,
			Field:    FarmID,
			Enabled:  true,
			Required: true,
			Allowed:  append([]string{}, form.FarmIDs...),
		},
		Parity: {
			Kind:     KindRange,
			Field:    Parity,
			Enabled:  true,
			Required: true,
			Min:      ParseBound(form.ParityMin),
			Max:      ParseBound(form.ParityMax),
		},
		ProteinPct: {
			Kind:               KindRange,
			Field:              ProteinPct,
			Enabled:            true,
			Required:           true,
			Min:                ParseBound(form.ProteinMin),
			Max:                ParseBound(form.ProteinMax),
			IncludeNullAsMatch: &includeNull,
		},
	}

	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		field := FieldOf(name, defs[name])
		if IsMandatory(field) {
			continue
		}
		toggle, ok := form.Toggles[field]
		if !ok || !toggle.Enabled {
			continue
		}
		spec[field] = Entry{
			Kind:     KindRange,
			Field:    field,
			Enabled:  true,
			Required: false,
			Min:      ParseBound(toggle.Min),
			Max:      ParseBound(toggle.Max),
		}
	}
	return spec
}

// FieldOf returns the definition's field, defaulting to its name.
func FieldOf(name string, def api.FilterDefinition) string {
	if field := strings.TrimSpace(def.Field); field != "" {
		return field
	}
	return name
}

// FormFromStatistics seeds a form with the data's own ranges and every farm
// id selected.
func FormFromStatistics(stats api.DataStatistics) Form {
	var form Form
	if stats.DateRange != nil {
		form.StartDate = stats.DateRange.Lower()
		form.EndDate = stats.DateRange.Upper()
	}
	if stats.ProteinRange != nil {
		form.ProteinMin = formatOptional(stats.ProteinRange.Min)
		form.ProteinMax = formatOptional(stats.ProteinRange.Max)
	}
	if stats.ParityRange != nil {
		form.ParityMin = formatOptional(stats.ParityRange.Min)
		form.ParityMax = formatOptional(stats.ParityRange.Max)
	}
	form.FarmIDs = append([]string(nil), stats.FarmIDs...)
	return form
}

// DefaultToggles returns the toggle state the server declares: enabled
// definitions are on and prefilled with their declared limits.
func DefaultToggles(defs map[string]api.FilterDefinition) map[string]Toggle {
	toggles := make(map[string]Toggle, len(defs))
	for name, def := range defs {
		field := FieldOf(name, def)
		if IsMandatory(field) {
			continue
		}
		toggles[field] = Toggle{
			Enabled: def.Enabled,
			Min:     formatOptional(def.Min),
			Max:     formatOptional(def.Max),
		}
	}
	return toggles
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
