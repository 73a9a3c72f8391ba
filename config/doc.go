// Package config loads kantodex configuration.
//
// Sources are applied in order, later ones winning:
//
//  1. Default()
//  2. an optional TOML (.toml) or YAML (.yaml, .yml) file, after strict
//     ${VAR} expansion
//  3. KANTODEX_* environment variables
//
// The result is checked by Validate before Load returns it.
//
// Example file:
//
//	[server]
//	addr = ":8000"
//	cors_origins = ["http://localhost:5173"]
//
//	[upstream]
//	timeout = "30s"
//	max_attempts = 2
//
//	[cache]
//	list_ttl = "1h"
//
//	[observe]
//	log_level = "debug"
//	metrics_exporter = "prometheus"
package config
