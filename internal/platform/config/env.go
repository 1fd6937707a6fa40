// Package config holds shared configuration helpers for service entry
// points. Services declare their settings as structs with env tags and load
// them through ParseEnv.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// ParseEnv populates target from environment variables using its env struct
// tags.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
