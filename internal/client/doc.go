// Package client is the HTTP client for the screening backend.
//
// Each endpoint has one method. Short metadata calls are bounded by the
// client timeout; the filter, upload and download calls run until their
// context ends, since a batch job can take minutes. Every request carries an
// X-Request-ID header, taken from the context when services.WithRequestID set
// one.
//
// Transport failures are wrapped with services.ErrConnectivity. Non-2xx
// replies return *StatusError with the decoded {detail} body, which callers
// turn into the user-facing error kind that fits their operation.
package client
