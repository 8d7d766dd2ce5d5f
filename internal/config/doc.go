// Package config loads, normalizes, and validates herdscreen configuration.
//
// Configuration lives in a TOML file (~/.config/herdscreen/config.toml or
// ./herdscreen.toml). Load applies repository defaults, expands "~" paths,
// honours the HERDSCREEN_URL override, and rejects values the client cannot
// work with. Timing values are stored as integer milliseconds and exposed as
// time.Duration through accessor methods so callers never do the conversion
// themselves.
package config
