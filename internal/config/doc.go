// Package config loads, normalizes, and validates m4bsweep configuration.
//
// Values are layered: repository defaults, then an optional TOML file, then
// M4BSWEEP_* environment variables, then command-line overrides. The result
// is a single Config value built once at startup and handed to the pipeline
// by value, so nothing downstream reads ambient process state.
//
// Always obtain settings through this package so downstream code receives
// expanded paths, canonical bitrate strings, and clear validation errors.
package config
