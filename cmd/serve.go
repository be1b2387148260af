package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pders01/repour/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve capture, flatten and URL translation requests on bind.address:bind.port.

Endpoints:
  POST /capture
  POST /flatten
  POST /git-external-to-internal
  GET  /ws/{callback_id}    live logs of requests carrying that callback id
  GET  /schema/{name}       JSON schema of a request or response body`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	env, err := loadRuntime()
	if err != nil {
		return err
	}
	defer env.close()

	if env.cfg.WorkspaceRoot == "" {
		env.logger.Warn("workspace_root is not set, clients may name any directory")
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return server.New(env.cfg, env.logger, env.out).Run(ctx)
}
