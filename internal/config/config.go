package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"
)

var (
	ErrInvalidConfig  = errors.New("invalid config")
	ErrMissingSetting = errors.New("missing config setting")
)

// Mode values for the deployment mode setting
const (
	ModeProd  = "prod"
	ModeDevel = "devel"
)

// Config is the process-wide configuration, loaded once and never mutated
type Config struct {
	Identity            Identity
	Mode                string
	GitUsername         string
	InternalURLTemplate string
	// WorkspaceRoot confines the directories HTTP clients may name. Empty
	// allows any directory.
	WorkspaceRoot string
	Bind          Bind
	Log           Log
}

// File mirrors the layout of config.toml
type File struct {
	Mode                string  `toml:"mode"`
	GitUsername         string  `toml:"git_username"`
	InternalURLTemplate string  `toml:"git_url_internal_template"`
	WorkspaceRoot       string  `toml:"workspace_root"`
	SCM                 FileSCM `toml:"scm"`
	Bind                Bind    `toml:"bind"`
	Log                 Log     `toml:"log"`
}

// FileSCM is the [scm] table of config.toml
type FileSCM struct {
	Git Identity `toml:"git"`
}

// Identity is the author and committer of every capture commit
type Identity struct {
	Name  string `toml:"user_name"`
	Email string `toml:"user_email"`
}

// Bind is the address the HTTP server listens on
type Bind struct {
	Address string `toml:"address"`
	Port    int    `toml:"port"`
}

// Log configures the logger
type Log struct {
	Level string `toml:"level"`
	Path  string `toml:"path"`
}

// SetDefaults registers default values for every setting
func SetDefaults(v *viper.Viper) {
	v.SetDefault("scm.git.user_name", "Repour")
	v.SetDefault("scm.git.user_email", "<>")
	v.SetDefault("mode", ModeProd)
	v.SetDefault("git_username", "")
	v.SetDefault("git_url_internal_template", "")
	v.SetDefault("workspace_root", "")
	v.SetDefault("bind.address", "127.0.0.1")
	v.SetDefault("bind.port", 7331)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.path", "")
}

// Load builds a validated Config from v
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Identity: Identity{
			Name:  v.GetString("scm.git.user_name"),
			Email: v.GetString("scm.git.user_email"),
		},
		Mode:                strings.ToLower(v.GetString("mode")),
		GitUsername:         v.GetString("git_username"),
		InternalURLTemplate: v.GetString("git_url_internal_template"),
		WorkspaceRoot:       v.GetString("workspace_root"),
		Bind: Bind{
			Address: v.GetString("bind.address"),
			Port:    v.GetInt("bind.port"),
		},
		Log: Log{
			Level: v.GetString("log.level"),
			Path:  v.GetString("log.path"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file or environment overrides exist
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg, err := Load(v)
	if err != nil {
		panic(fmt.Sprintf("default config is invalid: %v", err))
	}
	return cfg
}

// Validate checks every setting
func (c *Config) Validate() error {
	if c.Identity.Name == "" {
		return fmt.Errorf("%w: scm.git.user_name is required", ErrInvalidConfig)
	}
	if c.Mode != ModeProd && c.Mode != ModeDevel {
		return fmt.Errorf("%w: mode must be %q or %q, got %q", ErrInvalidConfig, ModeProd, ModeDevel, c.Mode)
	}
	if c.Bind.Port < 1 || c.Bind.Port > 65535 {
		return fmt.Errorf("%w: bind.port must be between 1 and 65535, got %d", ErrInvalidConfig, c.Bind.Port)
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level: %w", ErrInvalidConfig, err)
	}
	if c.WorkspaceRoot != "" && !filepath.IsAbs(c.WorkspaceRoot) {
		return fmt.Errorf("%w: workspace_root must be an absolute path, got %q", ErrInvalidConfig, c.WorkspaceRoot)
	}
	return nil
}

// IsProduction reports whether tags are published without the devel suffix
func (c *Config) IsProduction() bool {
	return c.Mode != ModeDevel
}

// File returns c in the layout of config.toml
func (c *Config) File() File {
	return File{
		Mode:                c.Mode,
		GitUsername:         c.GitUsername,
		InternalURLTemplate: c.InternalURLTemplate,
		WorkspaceRoot:       c.WorkspaceRoot,
		SCM:                 FileSCM{Git: c.Identity},
		Bind:                c.Bind,
		Log:                 c.Log,
	}
}

// ListenAddr returns host:port for the HTTP server
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Bind.Address, c.Bind.Port)
}

// RequireInternalURLTemplate returns the internal repository URL template or
// ErrMissingSetting when it is not configured
func (c *Config) RequireInternalURLTemplate() (string, error) {
	if c.InternalURLTemplate == "" {
		return "", fmt.Errorf("%w: git_url_internal_template not specified in the repour config", ErrMissingSetting)
	}
	return c.InternalURLTemplate, nil
}
