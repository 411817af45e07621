package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/fentz26/taskdeck/internal/devserver"
	"github.com/fentz26/taskdeck/internal/store"
	"github.com/spf13/cobra"
)

var (
	listenAddr string
	dbPath     string
	jwtSecret  string
	otpCode    string
)

var devserverCmd = &cobra.Command{
	Use:   "devserver",
	Short: "Run a local task API for development",
	Long: `Starts a local implementation of the task API backed by SQLite. Every phone
login accepts the same one-time code and password reset links are written to
the log instead of being emailed.`,
	RunE: runDevserver,
}

func init() {
	defaults := devserver.DefaultConfig()
	devserverCmd.Flags().StringVar(&listenAddr, "listen", defaults.Addr, "Listen address for the API server")
	devserverCmd.Flags().StringVar(&dbPath, "db", "", "Path to SQLite database (default <config-dir>/devserver.db)")
	devserverCmd.Flags().StringVar(&jwtSecret, "secret", os.Getenv("TASKDECK_DEVSERVER_SECRET"), "JWT signing secret, at least 32 characters (random when empty)")
	devserverCmd.Flags().StringVar(&otpCode, "otp", defaults.OTPCode, "One-time code accepted for phone logins")
}

func runDevserver(cmd *cobra.Command, args []string) error {
	path := dbPath
	if path == "" {
		if err := os.MkdirAll(cfg.Dir, 0700); err != nil {
			return err
		}
		path = filepath.Join(cfg.Dir, "devserver.db")
	}

	log.Info("starting taskdeck devserver", "db", path)
	st, err := store.New(path)
	if err != nil {
		return err
	}

	srvCfg := devserver.DefaultConfig()
	srvCfg.Addr = listenAddr
	srvCfg.Secret = jwtSecret
	srvCfg.OTPCode = otpCode
	server, err := devserver.New(st, srvCfg, devserver.WithLogger(log))
	if err != nil {
		st.Close()
		return usageError{err}
	}

	// Channel to receive server errors
	serverErr := make(chan error, 1)
	go func() {
		err := server.Start()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for shutdown signal or server error
	select {
	case <-cmd.Context().Done():
		log.Info("received signal, initiating graceful shutdown")
	case err := <-serverErr:
		if err != nil {
			log.Error("server error", "error", err)
			st.Close()
			return err
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	log.Info("shutting down HTTP server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", "error", err)
	}

	log.Info("closing database connection")
	if err := st.Close(); err != nil {
		log.Error("database close error", "error", err)
	}

	log.Info("shutdown complete")
	return nil
}
