// Package config provides configuration structures and utilities for iconscan.
// It defines the run options for checking icon declarations, the optional
// YAML file with per-site headers and cookies, and report preferences.
package config
