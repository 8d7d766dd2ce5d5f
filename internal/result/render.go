package result

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"herdscreen/internal/api"
)

// NotAvailable is rendered for a ratio that cannot be computed.
const NotAvailable = "n/a"

const cowCountNote = "Cow counts are unique farm id + management id pairs. " +
	"Filter rate = matching cows / all cows x 100%."

// Shape names the result variant a fragment was rendered from.
type Shape string

const (
	ShapeLegacy  Shape = "legacy"
	ShapeCurrent Shape = "current"
)

// Stat is one labeled figure.
type Stat struct {
	Label   string `json:"label"`
	Value   string `json:"value"`
	Caption string `json:"caption,omitempty"`
}

// Fragment is a rendered result.
type Fragment struct {
	Shape    Shape  `json:"shape"`
	Stats    []Stat `json:"stats"`
	Note     string `json:"note,omitempty"`
	Message  string `json:"message,omitempty"`
	Download string `json:"download_url,omitempty"`
}

// DownloadEnabled reports whether the fragment offers a download.
func (f Fragment) DownloadEnabled() bool {
	return strings.TrimSpace(f.Download) != ""
}

// Value returns the value of the stat with the given label.
func (f Fragment) Value(label string) (string, bool) {
	for _, s := range f.Stats {
		if s.Label == label {
			return s.Value, true
		}
	}
	return "", false
}

// Stat labels.
const (
	LabelOriginal   = "All data"
	LabelRange      = "Filter scope"
	LabelFinal      = "Filter result"
	LabelRate       = "Filter rate"
	LabelTotalRows  = "Original rows"
	LabelMatchRows  = "Matching rows"
	LabelRetainRate = "Retention rate"
)

var printer = message.NewPrinter(language.English)

// Render builds a fragment from either result shape. A nil result renders
// an empty fragment.
func Render(r api.JobResult) Fragment {
	switch v := r.(type) {
	case api.LegacyResult:
		return renderLegacy(v)
	case *api.LegacyResult:
		if v == nil {
			return Fragment{}
		}
		return renderLegacy(*v)
	case api.CurrentResult:
		return renderCurrent(v)
	case *api.CurrentResult:
		if v == nil {
			return Fragment{}
		}
		return renderCurrent(*v)
	default:
		return Fragment{}
	}
}

func renderLegacy(r api.LegacyResult) Fragment {
	return Fragment{
		Shape: ShapeLegacy,
		Stats: []Stat{
			{Label: LabelTotalRows, Value: Count(r.TotalRows), Caption: "total rows"},
			{Label: LabelMatchRows, Value: Count(r.FilteredRows), Caption: "rows matching the filters"},
			{Label: LabelRetainRate, Value: Ratio(r.FilteredRows, r.TotalRows), Caption: "rows retained"},
		},
		Message:  r.Text(),
		Download: r.Download(),
	}
}

func renderCurrent(r api.CurrentResult) Fragment {
	rate := strings.TrimSpace(r.FilterRate.String())
	if rate == "" {
		rate = NotAvailable
	} else {
		rate += "%"
	}
	return Fragment{
		Shape: ShapeCurrent,
		Stats: []Stat{
			{Label: LabelOriginal, Value: Count(r.OriginalCowCount), Caption: "cows across all uploaded files"},
			{Label: LabelRange, Value: Count(r.RangeCowCount), Caption: "cows in the selected files"},
			{Label: LabelFinal, Value: Count(r.FinalCowCount), Caption: "cows matching the filters"},
			{Label: LabelRate, Value: rate, Caption: "matching share of all data"},
		},
		Note:     cowCountNote,
		Message:  r.Text(),
		Download: r.Download(),
	}
}

// Count formats n with thousands separators.
func Count(n int64) string {
	return printer.Sprintf("%d", n)
}

// Ratio formats part/total as a percentage with one decimal, or NotAvailable
// when total is zero.
func Ratio(part, total int64) string {
	if total == 0 {
		return NotAvailable
	}
	pct := float64(part) / float64(total) * 100
	return strconv.FormatFloat(pct, 'f', 1, 64) + "%"
}

// Text renders the fragment as plain lines.
func (f Fragment) Text() string {
	var b strings.Builder
	width := 0
	for _, s := range f.Stats {
		if len(s.Label) > width {
			width = len(s.Label)
		}
	}
	for _, s := range f.Stats {
		fmt.Fprintf(&b, "%-*s  %s\n", width, s.Label, s.Value)
	}
	if f.Note != "" {
		b.WriteString(f.Note)
		b.WriteByte('\n')
	}
	if f.DownloadEnabled() {
		fmt.Fprintf(&b, "Download: %s\n", f.Download)
	}
	return b.String()
}
