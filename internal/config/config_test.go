package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Identity.Name != "Repour" {
		t.Errorf("expected identity name Repour, got %q", cfg.Identity.Name)
	}
	if cfg.Identity.Email != "<>" {
		t.Errorf("expected identity email <>, got %q", cfg.Identity.Email)
	}
	if !cfg.IsProduction() {
		t.Error("default mode should be production")
	}
	if cfg.ListenAddr() != "127.0.0.1:7331" {
		t.Errorf("unexpected listen address %s", cfg.ListenAddr())
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "repour-config-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	path := filepath.Join(tmpDir, "config.toml")
	content := `mode = "devel"
git_username = "builder"
git_url_internal_template = "git+ssh://internal.example.com"

[scm.git]
user_name = "Capture Bot"
user_email = "capture@example.com"

[bind]
port = 8080

[log]
level = "debug"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	v := viper.New()
	SetDefaults(v)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		t.Fatalf("failed to read config: %v", err)
	}

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.IsProduction() {
		t.Error("devel mode should not be production")
	}
	if cfg.Identity.Name != "Capture Bot" || cfg.Identity.Email != "capture@example.com" {
		t.Errorf("unexpected identity %+v", cfg.Identity)
	}
	if cfg.GitUsername != "builder" {
		t.Errorf("expected git_username builder, got %q", cfg.GitUsername)
	}
	if cfg.Bind.Port != 8080 || cfg.Bind.Address != "127.0.0.1" {
		t.Errorf("unexpected bind %+v", cfg.Bind)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected debug level, got %q", cfg.Log.Level)
	}

	tmpl, err := cfg.RequireInternalURLTemplate()
	if err != nil {
		t.Fatalf("RequireInternalURLTemplate failed: %v", err)
	}
	if tmpl != "git+ssh://internal.example.com" {
		t.Errorf("unexpected template %q", tmpl)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value any
	}{
		{name: "unknown mode", key: "mode", value: "staging"},
		{name: "port out of range", key: "bind.port", value: 70000},
		{name: "bad log level", key: "log.level", value: "loud"},
		{name: "empty identity", key: "scm.git.user_name", value: ""},
		{name: "relative workspace root", key: "workspace_root", value: "work"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			SetDefaults(v)
			v.Set(tt.key, tt.value)

			_, err := Load(v)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestRequireInternalURLTemplateMissing(t *testing.T) {
	_, err := Default().RequireInternalURLTemplate()
	if !errors.Is(err, ErrMissingSetting) {
		t.Errorf("expected ErrMissingSetting, got %v", err)
	}
}
