package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/pders01/repour/internal/config"
)

var (
	initForce bool
	initMode  string
)

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a default config file",
	Long: `Create a config file holding every setting with its default value.

The file is written to --config, the given path, or
$HOME/.config/repour/config.toml. An existing file is kept unless --force
is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
	initCmd.Flags().StringVar(&initMode, "mode", config.ModeProd, "Deployment mode written to the file: prod|devel")
}

func runInit(cmd *cobra.Command, args []string) error {
	path, err := initPath(args)
	if err != nil {
		return err
	}

	if _, err := os.Stat(path); err == nil && !initForce {
		fmt.Printf("Config already exists: %s\n", path)
		return nil
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to check %s: %w", path, err)
	}

	cfg := config.Default()
	cfg.Mode = initMode
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	if err := encodeConfig(f, cfg.File()); err != nil {
		return err
	}

	fmt.Printf("✓ Created default config: %s\n", path)
	fmt.Println("  Set git_url_internal_template before using: repour translate <url>")
	return nil
}

func initPath(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if cfgFile != "" {
		return cfgFile, nil
	}
	dir, err := defaultConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// encodeConfig writes file as TOML and closes w. A failed close means the
// config was not fully written.
func encodeConfig(w io.WriteCloser, file config.File) error {
	if err := toml.NewEncoder(w).Encode(file); err != nil {
		w.Close()
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
