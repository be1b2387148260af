package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pders01/repour/internal/config"
	"github.com/pders01/repour/internal/logging"
	"github.com/pders01/repour/internal/scm"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "repour",
	Short: "Deterministic, deduplicated capture of source trees into git",
	Long: `repour records a working directory as a commit plus an annotated tag and
pushes both to the repository's origin. Identical content always produces
the same commit id, so repeated captures reuse the existing tag instead of
storing anything new.

Repositories using submodules can be flattened into a single fat repository
before they are captured.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits with the failure's exit code
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if code, ok := scm.ExitCode(err); ok && code != 0 {
			os.Exit(code)
		}
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/repour/config.toml)")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		dir, err := defaultConfigDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		viper.AddConfigPath(dir)
		viper.SetConfigType("toml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("REPOUR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	config.SetDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func defaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "repour"), nil
}

// runtimeEnv is what every command needs after config is loaded
type runtimeEnv struct {
	cfg    *config.Config
	logger *log.Logger
	out    io.Writer
	close  func() error
}

// loadRuntime builds the validated config and the logger for a command.
// Callers close the env to flush the log file, if any.
func loadRuntime() (*runtimeEnv, error) {
	v := viper.GetViper()
	config.SetDefaults(v)

	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}

	out, closeLog, err := logging.Output(cfg.Log)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Log, out)
	if err != nil {
		closeLog()
		return nil, err
	}
	return &runtimeEnv{cfg: cfg, logger: logger, out: out, close: closeLog}, nil
}

// dirArg returns the directory named by args, or the working directory
func dirArg(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", dir, err)
	}
	return abs, nil
}

// commandContext returns the context of cmd, which is unset when a run
// function is called directly
func commandContext(cmd *cobra.Command) context.Context {
	if cmd != nil && cmd.Context() != nil {
		return cmd.Context()
	}
	return context.Background()
}
