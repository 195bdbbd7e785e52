package config

import (
	"encoding/json"
	"fmt"
	"os"

	"gridbot/grid"
	"gridbot/logger"
)

// LoadStrategies reads per-symbol grid configurations from a JSON file.
// Invalid entries are logged and skipped; an empty result is an error
// since the engine would have nothing to do.
func LoadStrategies(path string) ([]grid.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read strategies: %w", err)
	}

	var raw []grid.Config
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse strategies: %w", err)
	}

	seen := make(map[string]bool)
	var out []grid.Config
	for i := range raw {
		cfg := raw[i]
		cfg.SetDefaults()
		if err := cfg.Validate(); err != nil {
			logger.Warnf("[Config] skipping strategy %d (%s): %v", i, cfg.Symbol, err)
			continue
		}
		if seen[cfg.Symbol] {
			logger.Warnf("[Config] duplicate strategy for %s, keeping first", cfg.Symbol)
			continue
		}
		seen[cfg.Symbol] = true
		out = append(out, cfg)
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("no valid strategies in %s", path)
	}
	return out, nil
}
