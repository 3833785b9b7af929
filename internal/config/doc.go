// Package config loads and validates the daemon's YAML settings: HTTP listen
// address, alarm state file, location provider tuning, place lookup
// credentials, and the optional Redis event fan-out.
package config
