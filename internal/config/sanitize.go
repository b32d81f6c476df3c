package config

import (
	"slices"

	"github.com/yndnr/lobbysync-go/internal/telemetry/logger"
)

// Sanitize returns a copy of the config with the credential masked, for
// logging or display.
func Sanitize(cfg *ClientConfig) *ClientConfig {
	sanitized := *cfg
	sanitized.Reconcile.TrackedFields = slices.Clone(cfg.Reconcile.TrackedFields)
	if sanitized.Service.Credential != "" {
		sanitized.Service.Credential = logger.RedactString(sanitized.Service.Credential)
	}
	return &sanitized
}
