// Package servecmder provides the serve command, which runs the HTTP API and
// the MCP server over the memory service.
package servecmder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/memories/api"
	"github.com/papercomputeco/memories/api/mcp"
	"github.com/papercomputeco/memories/cmd/memories/boot"
	"github.com/papercomputeco/memories/pkg/cliui"
	"github.com/papercomputeco/memories/pkg/config"
	"github.com/papercomputeco/memories/pkg/logger"
	storageutils "github.com/papercomputeco/memories/pkg/storage/utils"
)

const shutdownTimeout = 10 * time.Second

type serveCommander struct {
	listen   string
	jsonLogs bool
	logFile  string
	noMCP    bool
}

const serveLongDesc string = `Run the memories HTTP API and MCP server.

Routes:
  GET    /ping
  GET    /v1/status
  POST   /v1/memories
  GET    /v1/memories/search?query=...
  GET    /v1/memories/:id
  POST   /v1/memories/:id/reinforce
  DELETE /v1/memories/:id
  ALL    /mcp                          MCP streamable HTTP (stateless)

Logs go to stderr. Use --json-logs for structured logs and --log-file to
also append JSON logs to a file.

Examples:
  memories serve
  memories serve --listen :9000 --storage-provider qdrant
  memories serve --json-logs --log-file /var/log/memories.log`

const serveShortDesc string = "Run the HTTP API and MCP server"

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagListen, &cmder.listen)
	cmd.Flags().BoolVar(&cmder.jsonLogs, "json-logs", false, "Write JSON logs to stderr")
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also append JSON logs to this file")
	cmd.Flags().BoolVar(&cmder.noMCP, "no-mcp", false, "Serve /mcp without any tools")

	return cmd
}

func (c *serveCommander) run(cmd *cobra.Command) error {
	cfg, dir, err := boot.Load(cmd, config.FlagListen)
	if err != nil {
		return err
	}

	log, closeLog, err := c.newLogger(cmd)
	if err != nil {
		return err
	}
	defer closeLog()

	rt, err := boot.NewRuntime(cfg, dir, log)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c.checkBackend(ctx, cmd, rt)

	mcpServer, err := mcp.NewServer(mcp.Config{
		Service: rt.Service,
		Noop:    c.noMCP,
		Logger:  log,
	})
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}

	server, err := api.NewServer(api.Config{
		ListenAddr: cfg.API.Listen,
		MCPHandler: mcpServer.Handler(),
	}, rt.Service, log)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Run()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return <-errCh
}

// newLogger builds the serve logger: pretty or JSON on stderr, fanned out
// to a JSON log file when --log-file is set.
func (c *serveCommander) newLogger(cmd *cobra.Command) (*slog.Logger, func(), error) {
	debug, _ := cmd.Flags().GetBool("debug")

	stderr := logger.New(
		logger.WithWriter(cmd.ErrOrStderr()),
		logger.WithDebug(debug),
		logger.WithPretty(!c.jsonLogs),
		logger.WithJSON(c.jsonLogs),
	)
	if c.logFile == "" {
		return stderr, func() {}, nil
	}

	if err := os.MkdirAll(filepath.Dir(c.logFile), 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	file := logger.New(
		logger.WithWriter(f),
		logger.WithDebug(debug),
		logger.WithJSON(true),
		logger.WithSource(debug),
	)
	return logger.Multi(stderr, file), func() { _ = f.Close() }, nil
}

// checkBackend reports whether the storage backend answers. The server
// starts either way since backends connect lazily.
func (c *serveCommander) checkBackend(ctx context.Context, cmd *cobra.Command, rt *boot.Runtime) {
	target := storageutils.DisplayTarget(rt.Target)
	check := func() error {
		if status := rt.Service.Status(ctx); !status.Healthy() {
			return errors.New(rt.Describe(errors.New(status.Status)))
		}
		return nil
	}

	var err error
	if w := cmd.ErrOrStderr(); cliui.IsTerminal(w) && !c.jsonLogs {
		err = cliui.Step(w, "Checking "+storageutils.DisplayName(rt.Config.Storage.Provider)+" at "+target, check)
	} else {
		err = check()
	}

	if err != nil {
		rt.Logger.Warn("storage backend is not reachable yet", "target", target, "error", err)
	}
}
