package config

import "errors"

// Theme engine modes.
const (
	ThemeModeKeyword = "keyword"
	ThemeModeCluster = "cluster"
	ThemeModeBoth    = "both"
)

var errInvalidConfig = errors.New("invalid config")
