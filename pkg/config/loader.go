// Package config reads typed configuration from the process environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Load populates cfg from environment variables declared through `env` struct
// tags. cfg must be a pointer to a struct; defaults come from `envDefault`
// tags and list values split on the tag's `envSeparator`.
func Load(cfg any) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("read environment: %w", err)
	}
	return nil
}
