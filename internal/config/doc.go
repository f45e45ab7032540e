// Package config loads, normalizes, and validates capturesync configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// CAPTURESYNC_NOTES_DIR and GOOGLE_APPLICATION_CREDENTIALS. The Config type
// centralizes every knob the daemon and CLI need so the notes tree, state
// directory, and remote credentials are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
