// Package config loads and validates the drivesync TOML configuration.
// Load applies defaults, expands ~ paths, and normalizes every value so
// the rest of the program never re-checks them.
package config
