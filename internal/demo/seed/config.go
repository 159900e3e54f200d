package seed

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Config struct {
	OutputDir string
	Brands    int
	Days      int
	Start     time.Time
	Seed      int64
}

func DefaultConfig() Config {
	return Config{
		OutputDir: "data",
		Brands:    5,
		Days:      30,
		Start:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Seed:      42,
	}
}

func LoadConfigFromEnv(lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	cfg := DefaultConfig()
	if raw, ok := lookup("INSIGHTSFLOW_DEMO_OUTPUT_DIR"); ok {
		cfg.OutputDir = strings.TrimSpace(raw)
	}
	if err := applyInt(lookup, "INSIGHTSFLOW_DEMO_BRANDS", &cfg.Brands); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "INSIGHTSFLOW_DEMO_DAYS", &cfg.Days); err != nil {
		return Config{}, err
	}
	if raw, ok := lookup("INSIGHTSFLOW_DEMO_START"); ok && strings.TrimSpace(raw) != "" {
		start, err := time.Parse(time.DateOnly, strings.TrimSpace(raw))
		if err != nil {
			return Config{}, fmt.Errorf("invalid INSIGHTSFLOW_DEMO_START: %w", err)
		}
		cfg.Start = start
	}
	if raw, ok := lookup("INSIGHTSFLOW_DEMO_SEED"); ok && strings.TrimSpace(raw) != "" {
		seed, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid INSIGHTSFLOW_DEMO_SEED: %w", err)
		}
		cfg.Seed = seed
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if strings.TrimSpace(c.OutputDir) == "" {
		return fmt.Errorf("INSIGHTSFLOW_DEMO_OUTPUT_DIR is required")
	}
	if c.Brands <= 0 {
		return fmt.Errorf("INSIGHTSFLOW_DEMO_BRANDS must be > 0")
	}
	if c.Days <= 0 {
		return fmt.Errorf("INSIGHTSFLOW_DEMO_DAYS must be > 0")
	}
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}
