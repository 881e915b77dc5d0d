// Package config loads, validates, and defaults clipstream daemon
// configuration from TOML.
package config
