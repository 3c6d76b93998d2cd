package app

import (
	"fmt"
	"strings"

	"github.com/charlesng35/adboard/pkg/crypto"
)

const jwtSecretBytes = 48

// ApplyRuntimeDefaults fills settings that have no safe static default. It
// returns which keys were generated so callers can log the event without
// exposing values.
//
// A generated JWT secret only suits local development: tokens minted by the
// identity provider will not verify against it.
func ApplyRuntimeDefaults(cfg *Config) (map[string]bool, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	generated := make(map[string]bool)

	if strings.TrimSpace(cfg.Auth.JWT.Secret) == "" {
		secret, err := crypto.GenerateToken(jwtSecretBytes)
		if err != nil {
			return nil, fmt.Errorf("generate jwt secret: %w", err)
		}
		cfg.Auth.JWT.Secret = secret
		generated["auth.jwt.secret"] = true
	}

	if strings.TrimSpace(cfg.Maintenance.Schedule) == "" {
		cfg.Maintenance.Schedule = "@every 15m"
		generated["maintenance.schedule"] = true
	}

	return generated, nil
}
