package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.API.BaseURL != "http://localhost:5000" {
		t.Fatalf("unexpected base url %q", cfg.API.BaseURL)
	}
	if cfg.API.Timeout != 10*time.Second {
		t.Fatalf("unexpected timeout %s", cfg.API.Timeout)
	}
	if !cfg.AllowsExtension("sprint.DOCX") || cfg.AllowsExtension("notes.pdf") {
		t.Fatalf("unexpected extension handling: %v", cfg.Ingest.Extensions)
	}
}

func TestFromYAMLKeepsDefaultsForMissingKeys(t *testing.T) {
	cfg, err := FromYAML([]byte("api:\n  base_url: https://sprint.example.com\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.API.BaseURL != "https://sprint.example.com" {
		t.Fatalf("base url not applied: %q", cfg.API.BaseURL)
	}
	if cfg.Log.Level != "info" || cfg.API.Timeout != 10*time.Second {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"relative url": "api:\n  base_url: /api\n",
		"bad scheme":   "api:\n  base_url: ftp://host\n",
		"zero timeout": "api:\n  timeout: 0s\n",
		"bad level":    "log:\n  level: loud\n",
		"bad format":   "log:\n  format: xml\n",
		"bad ext":      "ingest:\n  extensions: [docx]\n",
	}
	for name, doc := range cases {
		if _, err := FromYAML([]byte(doc)); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestLoadOptional(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadOptional(dir)
	if err != nil {
		t.Fatalf("load optional: %v", err)
	}
	if cfg.API.BaseURL == "" {
		t.Fatalf("expected defaults when file is missing")
	}
	if _, err := Load(dir); err == nil {
		t.Fatalf("expected error for missing config")
	}
	if err := os.WriteFile(filepath.Join(dir, "smartsprint.yml"), []byte("log:\n  level: debug\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err = Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("level not loaded: %q", cfg.Log.Level)
	}
}
