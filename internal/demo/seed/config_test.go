package seed

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfigFromEnv(mapLookup(nil))
	if err != nil {
		t.Fatalf("LoadConfigFromEnv() error = %v", err)
	}
	if cfg.OutputDir != "data" || cfg.Brands != 5 || cfg.Days != 30 || cfg.Seed != 42 {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	cfg, err := LoadConfigFromEnv(mapLookup(map[string]string{
		"INSIGHTSFLOW_DEMO_OUTPUT_DIR": "/tmp/kpi",
		"INSIGHTSFLOW_DEMO_BRANDS":     "3",
		"INSIGHTSFLOW_DEMO_DAYS":       "7",
		"INSIGHTSFLOW_DEMO_START":      "2024-06-01",
		"INSIGHTSFLOW_DEMO_SEED":       "9",
	}))
	if err != nil {
		t.Fatalf("LoadConfigFromEnv() error = %v", err)
	}
	if cfg.OutputDir != "/tmp/kpi" || cfg.Brands != 3 || cfg.Days != 7 || cfg.Seed != 9 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if !cfg.Start.Equal(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("start = %v", cfg.Start)
	}
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"INSIGHTSFLOW_DEMO_BRANDS": "0",
		"INSIGHTSFLOW_DEMO_DAYS":   "x",
		"INSIGHTSFLOW_DEMO_START":  "06/01/2024",
		"INSIGHTSFLOW_DEMO_SEED":   "abc",
	}
	for key, value := range cases {
		if _, err := LoadConfigFromEnv(mapLookup(map[string]string{key: value})); err == nil {
			t.Fatalf("expected error for %s=%s", key, value)
		}
	}
}

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}
