// Package config loads, validates, and normalizes the emblem daemon
// configuration from TOML.
package config
