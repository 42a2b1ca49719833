// Package config loads lfcore's JSON configuration. Zero fields take the
// defaults from DefaultConfig, so a file only needs the values it changes.
package config
