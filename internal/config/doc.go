// Package config handles configuration loading for agora-gateway.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from AGORA_CONFIG environment variable
//  2. ./config.yaml (current directory)
//  3. ~/.config/agora/gateway.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	ledger:
//	  path: "${AGORA_LEDGER_PATH}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	server:
//	  shutdown_timeout: "10s"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8080"
//	  name: "agora-gateway"
//	  shutdown_timeout: "10s"
//
// Audit ledger:
//
//	ledger:
//	  path: "/var/lib/agora/agora.db"
//
// Documentation resources (optional directory overriding the embedded docs):
//
//	docs:
//	  dir: "/etc/agora/docs"
//	  watch: true
//
// Startup fixtures (optional):
//
//	seed:
//	  path: "/etc/agora/seed.toml"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Validation
//
// Load() validates:
//
//   - Server address presence
//   - Ledger path presence
//   - Logging level and format values
//   - Duration format validity
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load("/etc/agora/gateway.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Or start from defaults:
//
//	cfg := config.Default()
package config
