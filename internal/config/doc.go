// Package config loads, normalizes, and validates lockersync configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// LOCKER_OAUTH_TOKEN. The Config type centralizes every knob the CLI and the
// upload pipeline need so locker credentials, retry policy, and tool locations
// are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
