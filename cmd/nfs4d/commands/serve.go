package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/leruetkins/bold-nfs/internal/logger"
	"github.com/leruetkins/bold-nfs/internal/metrics"
	"github.com/leruetkins/bold-nfs/internal/nfs4/handlers"
	"github.com/leruetkins/bold-nfs/internal/nfs4/state"
	"github.com/leruetkins/bold-nfs/internal/server"
	"github.com/leruetkins/bold-nfs/internal/vfs/osfs"
)

func runServe(cmd *cobra.Command, args []string) error {
	exportDir := args[0]

	level := logger.LevelInfo
	if viper.GetBool("debug") {
		level = logger.LevelDebug
	}
	format := logger.FormatText
	if viper.GetString("log_format") == "json" {
		format = logger.FormatJSON
	}
	logger.Init(logger.Config{Level: level, Format: format, Output: os.Stderr})
	log := logger.Get()

	fs, err := osfs.New(exportDir)
	if err != nil {
		return fmt.Errorf("open export directory %q: %w", exportDir, err)
	}

	leaseSeconds := viper.GetInt("lease_seconds")
	mgr, err := state.NewManager(fs, time.Duration(leaseSeconds)*time.Second)
	if err != nil {
		return fmt.Errorf("create state manager: %w", err)
	}

	handlers.SetReadOnly(viper.GetBool("read_only"))

	var rec *metrics.Recorder
	if addr := viper.GetString("metrics_addr"); addr != "" {
		var handler http.Handler
		rec, handler = metrics.New()
		go func() {
			log.Info("metrics listening", logger.KeyPath, addr)
			srv := &http.Server{Addr: addr, Handler: handler}
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Warn("metrics server stopped", logger.KeyError, err.Error())
			}
		}()
	}

	cfg := server.DefaultConfig(viper.GetString("addr"))
	srv := server.New(cfg, mgr, rec)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ctx) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	log.Info("nfs4d started", logger.KeyPath, exportDir, "addr", cfg.Addr, "read_only", viper.GetBool("read_only"))

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", "signal", sig.String())
		cancel()
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		if err := srv.Stop(stopCtx); err != nil {
			log.Warn("shutdown did not complete cleanly", logger.KeyError, err.Error())
		}
		<-serveErr
		return nil
	case err := <-serveErr:
		return err
	}
}
