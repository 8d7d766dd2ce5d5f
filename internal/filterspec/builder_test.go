package filterspec_test

import (
	"encoding/json"
	"strings"
	"testing"

	"pgregory.net/rapid"

	"herdscreen/internal/api"
	"herdscreen/internal/filterspec"
)

func TestBuildMandatoryEntries(t *testing.T) {
	spec := filterspec.Build(filterspec.Form{
		StartDate:          "2024-01-01",
		EndDate:            "2024-06-30",
		FarmIDs:            []string{"F01"},
		ParityMin:          "1",
		ParityMax:          "",
		ProteinMin:         "2.8",
		ProteinMax:         "abc",
		IncludeNullAsMatch: true,
	}, nil)

	data, err := spec.JSON()
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	var decoded map[string]map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if len(decoded) != 4 {
		t.Fatalf("expected 4 entries, got %v", spec.Names())
	}
	for name, entry := range decoded {
		if entry["required"] != true || entry["enabled"] != true {
			t.Fatalf("%s should be required and enabled: %v", name, entry)
		}
	}

	dates := decoded["date_range"]
	if dates["field"] != "sample_date" || dates["start_date"] != "2024-01-01" || dates["end_date"] != "2024-06-30" {
		t.Fatalf("unexpected date_range %v", dates)
	}
	if _, ok := dates["min"]; ok {
		t.Fatalf("date_range should not carry min: %v", dates)
	}

	farms := decoded["farm_id"]["allowed"].([]any)
	if len(farms) != 1 || farms[0] != "F01" {
		t.Fatalf("unexpected farm allow-list %v", farms)
	}

	parity := decoded["parity"]
	if parity["min"] != 1.0 {
		t.Fatalf("parity min = %v", parity["min"])
	}
	if v, ok := parity["max"]; !ok || v != nil {
		t.Fatalf("empty parity max should be an explicit null, got %v (present=%v)", v, ok)
	}

	protein := decoded["protein_pct"]
	if protein["min"] != 2.8 || protein["max"] != nil || protein["include_null_as_match"] != true {
		t.Fatalf("unexpected protein entry %v", protein)
	}
}

func TestBuildEmptyFarmListIsArray(t *testing.T) {
	data, err := filterspec.Build(filterspec.Form{}, nil).JSON()
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	if !strings.Contains(string(data), `"allowed":[]`) {
		t.Fatalf("expected empty allow-list array, got %s", data)
	}
}

func TestBuildOptionalEntries(t *testing.T) {
	defs := map[string]api.FilterDefinition{
		"scc":         {Field: "somatic_cell_count"},
		"fat_pct":     {},
		"protein_pct": {Field: "protein_pct"},
	}
	form := filterspec.Form{Toggles: map[string]filterspec.Toggle{
		"somatic_cell_count": {Enabled: true, Min: "", Max: "400"},
		"fat_pct":            {Enabled: false, Min: "3"},
		"protein_pct":        {Enabled: true, Min: "9"},
	}}

	spec := filterspec.Build(form, defs)

	scc, ok := spec["somatic_cell_count"]
	if !ok {
		t.Fatalf("enabled optional filter missing: %v", spec.Names())
	}
	if scc.Required || scc.Min != nil || scc.Max.String() != "400" {
		t.Fatalf("unexpected optional entry %+v", scc)
	}
	if _, ok := spec["fat_pct"]; ok {
		t.Fatal("disabled optional filter must be absent")
	}
	if !spec["protein_pct"].Required || spec["protein_pct"].Min != nil {
		t.Fatalf("mandatory protein entry was overridden: %+v", spec["protein_pct"])
	}
	if got := spec.Optional(); len(got) != 1 || got[0] != "somatic_cell_count" {
		t.Fatalf("Optional() = %v", got)
	}
}

func TestBuildCopiesFormSlices(t *testing.T) {
	form := filterspec.Form{FarmIDs: []string{"F01", "F02"}}
	spec := filterspec.Build(form, nil)
	form.FarmIDs[0] = "changed"
	if spec[filterspec.FarmID].Allowed[0] != "F01" {
		t.Fatal("spec must not share form state")
	}
}

func TestParseBound(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "unset"},
		{"  ", "unset"},
		{"abc", "unset"},
		{"NaN", "unset"},
		{"Inf", "unset"},
		{"0", "0"},
		{" 3.25 ", "3.25"},
		{"-1", "-1"},
	}
	for _, tt := range tests {
		if got := filterspec.ParseBound(tt.in).String(); got != tt.want {
			t.Fatalf("ParseBound(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestFormFromStatistics(t *testing.T) {
	pmin, pmax, qmin, qmax := 2.5, 4.1, 1.0, 8.0
	form := filterspec.FormFromStatistics(api.DataStatistics{
		DateRange:    &api.DateBounds{Min: "2024-01-01", Max: "2024-06-30"},
		ProteinRange: &api.NumberRange{Min: &pmin, Max: &pmax},
		ParityRange:  &api.NumberRange{Min: &qmin, Max: &qmax},
		FarmIDs:      []string{"F01", "F02"},
	})
	if form.StartDate != "2024-01-01" || form.EndDate != "2024-06-30" {
		t.Fatalf("unexpected dates %+v", form)
	}
	if form.ProteinMin != "2.5" || form.ProteinMax != "4.1" || form.ParityMin != "1" || form.ParityMax != "8" {
		t.Fatalf("unexpected ranges %+v", form)
	}
	if len(form.FarmIDs) != 2 {
		t.Fatalf("unexpected farm ids %v", form.FarmIDs)
	}

	empty := filterspec.FormFromStatistics(api.DataStatistics{})
	if empty.StartDate != "" || empty.ProteinMin != "" {
		t.Fatalf("missing statistics should leave the form blank: %+v", empty)
	}
}

func TestDefaultToggles(t *testing.T) {
	limit := 500.0
	toggles := filterspec.DefaultToggles(map[string]api.FilterDefinition{
		"scc":    {Field: "somatic_cell_count", Enabled: true, Max: &limit},
		"parity": {Enabled: true},
	})
	if len(toggles) != 1 {
		t.Fatalf("mandatory definitions should be skipped: %v", toggles)
	}
	if got := toggles["somatic_cell_count"]; !got.Enabled || got.Max != "500" || got.Min != "" {
		t.Fatalf("unexpected toggle %+v", got)
	}
}

func TestBuildProperties(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		fields := rapid.SliceOfNDistinct(rapid.StringMatching(`[a-z]{1,8}`), 0, 6, func(s string) string { return s }).Draw(rt, "fields")
		defs := map[string]api.FilterDefinition{}
		toggles := map[string]filterspec.Toggle{}
		for _, field := range fields {
			useName := rapid.Bool().Draw(rt, "name-is-field")
			if useName {
				defs[field] = api.FilterDefinition{}
			} else {
				defs["def_"+field] = api.FilterDefinition{Field: field}
			}
			if rapid.Bool().Draw(rt, "has-toggle") {
				toggles[field] = filterspec.Toggle{
					Enabled: rapid.Bool().Draw(rt, "enabled"),
					Min:     rapid.SampledFrom([]string{"", "1", "x", "2.5"}).Draw(rt, "min"),
					Max:     rapid.SampledFrom([]string{"", "9", "y"}).Draw(rt, "max"),
				}
			}
		}
		form := filterspec.Form{
			ParityMin:  rapid.SampledFrom([]string{"", "1", "one"}).Draw(rt, "parity-min"),
			ProteinMax: rapid.SampledFrom([]string{"", "4.5", "?"}).Draw(rt, "protein-max"),
			Toggles:    toggles,
		}

		spec := filterspec.Build(form, defs)

		for _, name := range []string{filterspec.DateRange, filterspec.FarmID, filterspec.Parity, filterspec.ProteinPct} {
			entry, ok := spec[name]
			if !ok || !entry.Required || !entry.Enabled {
				rt.Fatalf("mandatory entry %s missing or not required: %+v", name, entry)
			}
		}
		for _, field := range fields {
			if filterspec.IsMandatory(field) {
				continue
			}
			entry, present := spec[field]
			want := toggles[field].Enabled
			if present != want {
				rt.Fatalf("optional %s present=%v, toggle enabled=%v", field, present, want)
			}
			if present && entry.Required {
				rt.Fatalf("optional %s marked required", field)
			}
		}
		if len(spec) != 4+len(spec.Optional()) {
			rt.Fatalf("unexpected extra entries: %v", spec.Names())
		}
		if _, err := spec.JSON(); err != nil {
			rt.Fatalf("JSON: %v", err)
		}
	})
}
