// Package config loads cadence settings from TOML, .env and the environment.
package config
