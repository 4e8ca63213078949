// Command app serves the task tree over a REST API.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"tasktree-go/app/bootstrap"
	"tasktree-go/app/config"
	"tasktree-go/app/controllers"
	"tasktree-go/app/routes"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load("tasktree-http", os.Args[1:], os.LookupEnv)
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

	// Initialize the service layer
	taskService, cleanup, err := bootstrap.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	// Initialize the controller layer
	taskController := controllers.NewTaskController(taskService, logger.With("component", "http"))
	router := routes.NewRouter(taskController)

	listener, err := net.Listen("tcp", cfg.HTTP.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.HTTP.Addr, err)
	}
	return bootstrap.ServeHTTP(ctx, listener, router, logger)
}
