package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// JobResult is the outcome of a filter job. It is either a LegacyResult
// (single-file /api/filter) or a CurrentResult (multi-file
// /api/filter/batch). Use DecodeJobResult at the boundary and a type switch
// when rendering.
type JobResult interface {
	// Download returns the relative or absolute URL of the filtered workbook,
	// or "" when the server produced none.
	Download() string
	// Succeeded mirrors the body's success flag.
	Succeeded() bool
	// Text is the server's message, possibly empty.
	Text() string

	jobResult()
}

// envelope holds the members both shapes share.
type envelope struct {
	Success     *bool  `json:"success,omitempty"`
	Message     string `json:"message,omitempty"`
	Detail      string `json:"detail,omitempty"`
	DownloadURL string `json:"download_url,omitempty"`
}

func (e envelope) Download() string { return e.DownloadURL }

// Succeeded treats a missing success member as success; only an explicit
// false marks a logical failure.
func (e envelope) Succeeded() bool { return e.Success == nil || *e.Success }

func (e envelope) Text() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Detail
}

// LegacyResult is the single-file result shape.
type LegacyResult struct {
	envelope
	TotalRows    int64 `json:"total_rows"`
	FilteredRows int64 `json:"filtered_rows"`
}

func (LegacyResult) jobResult() {}

// CurrentResult is the multi-file result shape. FilterRate keeps the
// server's literal number text.
type CurrentResult struct {
	envelope
	OriginalCowCount int64       `json:"original_cow_count"`
	RangeCowCount    int64       `json:"range_cow_count"`
	FinalCowCount    int64       `json:"final_cow_count"`
	FilterRate       json.Number `json:"filter_rate"`
}

func (CurrentResult) jobResult() {}

// NewLegacyResult builds a successful legacy result; used by tests and the
// fake backend.
func NewLegacyResult(total, filtered int64, downloadURL string) LegacyResult {
	ok := true
	return LegacyResult{
		envelope:     envelope{Success: &ok, DownloadURL: downloadURL},
		TotalRows:    total,
		FilteredRows: filtered,
	}
}

// NewCurrentResult builds a successful current result.
func NewCurrentResult(original, inRange, final int64, rate, downloadURL string) CurrentResult {
	ok := true
	return CurrentResult{
		envelope:         envelope{Success: &ok, DownloadURL: downloadURL},
		OriginalCowCount: original,
		RangeCowCount:    inRange,
		FinalCowCount:    final,
		FilterRate:       json.Number(rate),
	}
}

var ErrEmptyResult = errors.New("empty job result body")

// DecodeJobResult decodes a filter response body once, discriminating the
// shape by the presence of original_cow_count.
func DecodeJobResult(data []byte) (JobResult, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyResult
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("decode job result: %w", err)
	}

	dec := func(target any) error {
		d := json.NewDecoder(bytes.NewReader(data))
		d.UseNumber()
		return d.Decode(target)
	}

	if _, ok := probe["original_cow_count"]; ok {
		var res CurrentResult
		if err := dec(&res); err != nil {
			return nil, fmt.Errorf("decode job result: %w", err)
		}
		return res, nil
	}
	var res LegacyResult
	if err := dec(&res); err != nil {
		return nil, fmt.Errorf("decode job result: %w", err)
	}
	return res, nil
}
