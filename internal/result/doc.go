// Package result turns a decoded filter job result into a display fragment:
// labeled counts, the filter rate, and the download link when the server
// produced one. It never performs I/O.
package result
