// Package batch coordinates long-running submissions against the backend:
// batch and single-file filter jobs and file uploads.
//
// A Coordinator admits one submission at a time, both inside the process and
// across processes sharing a state directory. Batch jobs start the progress
// monitor after a short delay, and every exit path stops the monitor and
// hides the busy indicator exactly once. Failures are reported as
// services.SubmissionError with the server's reason or a generic fallback,
// and each submission is recorded in the local journal.
package batch
