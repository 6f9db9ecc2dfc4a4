// Package config loads, normalizes, and validates logvault's TOML
// configuration.
package config
