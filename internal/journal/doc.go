// Package journal keeps a local SQLite record of the jobs this client
// submitted: which files, which filters, how the job ended, and where the
// result can be downloaded. It backs the history command and is written by the
// batch coordinator around every submission.
//
// The schema is embedded and versioned through a schema_version table. A
// mismatch returns ErrSchemaMismatch rather than migrating. Writes retry
// briefly on SQLITE_BUSY because two CLI processes may share the file.
package journal
