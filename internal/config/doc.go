// Package config loads, normalizes, and validates the shiftsync TOML
// configuration.
//
// Load resolves the file location (explicit path, ~/.config/shiftsync, then
// ./shiftsync.toml), overlays it on Default, expands ~ in paths, applies
// environment fallbacks for secrets, and validates every section. Packages
// receive the resulting *Config and use its helpers (DatabasePath, Location,
// Backoff) rather than re-deriving values.
package config
