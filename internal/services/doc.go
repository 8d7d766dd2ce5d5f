// Package services holds the error taxonomy and request-context helpers shared
// by every component that talks to the screening backend.
//
// Failures fall into four kinds: connectivity problems (retried or tolerated),
// local validation errors (raised before a request is sent), submission errors
// (the server rejected or failed a job), and partial batch failures (some
// uploads succeeded). Wrap tags an error with one of the sentinel markers so
// callers can classify it with errors.Is.
package services
