// Package config loads and validates bridge configuration.
//
// Sources, in ascending precedence:
//   - compiled defaults
//   - an optional YAML tuning file (with ${VAR} expansion)
//   - environment variables (credentials and endpoints), optionally
//     populated from a .env file
//
// Credentials are never given defaults; their absence is fatal at startup.
package config
