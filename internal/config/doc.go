// Package config handles configuration loading for coven-notes.
//
// # Configuration File
//
// The file is located by:
//
//  1. Path from the COVEN_NOTES_CONFIG environment variable
//  2. ~/.config/coven/notes.yaml (the platform user config dir)
//
// Files ending in .toml are read as TOML; anything else is YAML. The keys are
// the same in both formats.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${COVEN_NOTES_JWT_SECRET}"
//
// Unset variables expand to the empty string.
//
// # Configuration Sections
//
//	server:
//	  http_addr: "127.0.0.1:8080"  # required unless tailscale is enabled
//	  shutdown_timeout: "10s"
//
//	auth:
//	  jwt_secret: "..."            # required, at least 32 bytes
//	  validity_days: 7             # 1..65535; token and session lifetime
//	  cookie_secure: false         # mark the auth cookie Secure
//
//	users:
//	  hash_cost: 10                # bcrypt cost
//
//	logging:
//	  level: "info"                # debug, info, warn, error
//	  format: "text"               # text, json
//
//	tailscale:
//	  enabled: false
//	  hostname: "notes"
//	  auth_key: "${TS_AUTHKEY}"
//	  state_dir: ""
//	  ephemeral: false
package config
