// Command tasktree-go is an MCP server over stdio that lets an agent keep
// its work as a persistent tree of tasks.
//
// Usage:
//
//	tasktree-go [--config tasktree.yaml] [--store sqlite|neo4j|memory] [flags]
//
// Logs go to stderr; stdout carries only the MCP protocol.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/pflag"

	"tasktree-go/app/bootstrap"
	"tasktree-go/app/config"
	"tasktree-go/app/mcptools"
)

const version = "0.1.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load("tasktree-go", os.Args[1:], os.LookupEnv)
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}

	logger, err := bootstrap.NewLogger(os.Stderr, cfg.Log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	taskService, cleanup, err := bootstrap.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	server := mcptools.NewServer(taskService, version, logger.With("component", "mcp"))
	logger.Info("mcp server starting", "transport", "stdio", "version", version)
	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mcp server: %w", err)
	}
	logger.Info("mcp server stopped")
	return nil
}
