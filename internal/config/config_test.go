package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	t.Setenv("PAWDIARY_CONFIG", filepath.Join(t.TempDir(), "config.json"))
	t.Setenv("OPENAI_API_KEY", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Quota.MaxDaily != 5 {
		t.Errorf("quota maxDaily = %d, want 5", cfg.Quota.MaxDaily)
	}
	if len(cfg.Providers) == 0 || cfg.Providers[0].Name != "openai" {
		t.Errorf("default providers = %+v", cfg.Providers)
	}
	if len(cfg.Categories) == 0 {
		t.Error("no default categories")
	}
	universe := cfg.CategoryUniverse()
	if _, ok := universe["weather"]; !ok {
		t.Error("default universe missing weather category")
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := `{
		"quota": {"mode": "preselect", "maxDaily": 3},
		"engine": {"workers": 8},
		"claimed": [{"category": "keepsake", "name": "birthday"}]
	}`
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PAWDIARY_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Quota.Mode != "preselect" || cfg.Quota.MaxDaily != 3 {
		t.Errorf("quota = %+v", cfg.Quota)
	}
	if cfg.Engine.Workers != 8 {
		t.Errorf("workers = %d, want 8", cfg.Engine.Workers)
	}
	pairs := cfg.ClaimedPairs()
	if len(pairs) != 1 || pairs[0] != [2]string{"keepsake", "birthday"} {
		t.Errorf("claimed pairs = %v", pairs)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"gateway": {"port": 9000}}`), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PAWDIARY_CONFIG", path)
	t.Setenv("PAWDIARY_GATEWAY_PORT", "9100")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Gateway.Port != 9100 {
		t.Errorf("gateway port = %d, want 9100 (env wins over file)", cfg.Gateway.Port)
	}
}

func TestLoadSubstitutesEnvReferences(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := `{"providers": [{"name": "primary", "apiKey": "${PAW_TEST_KEY}", "enabled": true}]}`
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PAWDIARY_CONFIG", path)
	t.Setenv("PAW_TEST_KEY", "sk-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.Providers) != 1 || cfg.Providers[0].APIKey != "sk-secret" {
		t.Errorf("providers = %+v, want substituted api key", cfg.Providers)
	}
}

func TestSaveRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	t.Setenv("PAWDIARY_CONFIG", path)

	cfg := DefaultConfig()
	cfg.Gateway.Port = 9200
	if err := Save(cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read saved config: %v", err)
	}
	var round Config
	if err := json.Unmarshal(data, &round); err != nil {
		t.Fatalf("saved config is not valid JSON: %v", err)
	}
	if round.Gateway.Port != 9200 {
		t.Errorf("roundtripped port = %d, want 9200", round.Gateway.Port)
	}
}
