// Package config loads and validates the TOML configuration for the
// lockline daemon and CLI.
//
// Configuration resolution order: an explicit --config path, then
// ~/.config/lockline/config.toml, then ./lockline.toml, then built-in
// defaults.
package config
