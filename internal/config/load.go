package config

import (
	"fmt"

	"github.com/yndnr/lobbysync-go/internal/infra/confloader"
)

// Load builds the configuration from defaults, the file at path (optional),
// LOBBYSYNC_ environment variables and overrides, then verifies it.
func Load(path string, overrides map[string]any) (*ClientConfig, error) {
	cfg := Default()
	loader := confloader.NewLoader(
		confloader.WithConfigFile(path),
		confloader.WithOverrides(overrides),
	)
	if err := loader.Load(cfg); err != nil {
		return nil, err
	}
	if err := Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
