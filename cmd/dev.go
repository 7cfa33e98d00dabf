package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/sitecycle/internal/build"
	"github.com/conneroisu/sitecycle/internal/server"
	"github.com/conneroisu/sitecycle/internal/watcher"
)

var devCmd = &cobra.Command{
	Use:     "dev",
	Aliases: []string{"serve", "s"},
	Short:   "Start the dev server with live reload",
	Long: `Build the site, serve the result from memory and rebuild whenever a
watched source file changes. Every served script carries a small client
that reloads the page after each successful rebuild.

A failing rebuild is logged and the previous build keeps being served.
A failing first build stops the command.

Routes:
  /             listing of every output with embeddable tags
  /_reload      live-reload websocket (server.reload_path)
  /health       JSON health report
  /metrics      Prometheus metrics
  /<file>       a file from the current build

Examples:
  sitecycle dev
  sitecycle dev --port 4000
  sitecycle dev --origin https://my-tunnel.example.dev`,
	RunE: runDev,
}

func init() {
	rootCmd.AddCommand(devCmd)

	devCmd.Flags().IntP("port", "p", 3000, "Port to serve on")
	devCmd.Flags().String("host", "localhost", "Host to bind to")
	devCmd.Flags().String("origin", "", "Public origin pages load scripts from (default http://host:port)")

	_ = viper.BindPFlag("server.port", devCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("server.host", devCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.origin", devCmd.Flags().Lookup("origin"))
}

func runDev(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// The dev server always injects the reload client.
	cfg.Site.Production = false
	logger := newLogger(cmd)

	fw, err := watcher.NewFileWatcher(cfg.Watch.Debounce, logger)
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	reg := prom.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	bundler := build.NewBundler(cfg, build.WithLogger(logger))
	srv := server.New(cfg, bundler,
		server.WithLogger(logger),
		server.WithWatcher(fw),
		server.WithRegistry(reg),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.OutOrStdout(), "Starting sitecycle dev server at %s\n", cfg.Server.Origin)
	if err := srv.Start(ctx); err != nil {
		logger.Error(ctx, err, "dev server stopped")
		return err
	}
	return nil
}
