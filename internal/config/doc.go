// Package config defines the lobbysync client configuration.
//
//   - spec.go: ClientConfig and its sections
//   - default.go: default values
//   - verify.go: validation
//   - sanitize.go: credential masking for display
//   - convert.go: per-component configuration
//   - load.go: loading through internal/infra/confloader
//
// Example file:
//
//	service:
//	  base_url: https://lobby.example.com/v1
//	  credential: Bearer abc123
//	push:
//	  enabled: true
//	  url: wss://lobby.example.com/v1/lobbies/{lobby}/events
//	refresh:
//	  interval: 5s
//	log:
//	  level: debug
package config
