// Package probe gates session start on the backend being reachable.
//
// Run polls GET /health on a fixed interval with no backoff and no attempt
// limit, since the backend is a local companion service expected to come up
// within seconds. Each attempt is cancelled after the probe timeout. Status
// text distinguishes a timeout, a non-OK status and a backend that is not
// listening yet.
package probe
