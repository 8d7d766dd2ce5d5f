// Package filterspec builds the filter specification sent with a filter job.
//
// Build is a pure function of the form state and the server's filter
// definitions. It always emits the date range, farm allow-list, parity range
// and protein range entries, and adds one optional range entry per enabled
// toggle. Range bounds that are empty or not numbers are sent as null. The
// server validates everything else.
package filterspec
