// Package config handles configuration loading for coven-execd.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${EXECD_JWT_SECRET}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	cooldown:
//	  ttl: "5m"
//	registry:
//	  sweep_interval: "10m"
//	  max_age: "24h"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8080"
//
// Database:
//
//	database:
//	  path: "/var/lib/coven/execd.db"
//
// Authentication:
//
//	auth:
//	  jwt_secret: "${EXECD_JWT_SECRET}"
//
// Post-kill cooldown:
//
//	cooldown:
//	  ttl: "5m"
//	  max_entries: 10000
//
// Registry maintenance:
//
//	registry:
//	  sweep_interval: "10m"
//	  max_age: "24h"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
package config
