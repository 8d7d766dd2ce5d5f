// Package api defines the wire-format types of the screening backend's HTTP
// API.
//
// Every endpoint the CLI consumes has a DTO here, named after the resource it
// carries (ProgressSnapshot, FileInfo, DataStatistics, ...). JSON tags use the
// backend's snake_case spelling. Optional members are pointers or omitempty
// strings so "absent" and "zero" stay distinguishable where it matters.
//
// # Job results
//
// The filter endpoints return one of two shapes: the legacy single-file shape
// (total_rows, filtered_rows) or the current multi-file shape
// (original_cow_count, range_cow_count, final_cow_count, filter_rate).
// DecodeJobResult discriminates them once, by the presence of
// original_cow_count, into the sealed JobResult interface. Renderers then use
// a type switch instead of probing fields.
package api
