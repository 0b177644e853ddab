package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/alwitt/secretshare"
	"github.com/alwitt/secretshare/db"
	"github.com/alwitt/secretshare/vault"
	"github.com/apex/log"
	"github.com/spf13/cobra"
)

var autoMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&autoMigrate, "migrate", false, "create the database schema before starting")
}

func runServe(cmd *cobra.Command, _ []string) error {
	logTags := log.Fields{"module": "main", "component": "serve"}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if autoMigrate {
		if err := migrateSchema(ctx); err != nil {
			return err
		}
	}

	app, err := secretshare.NewApplication(ctx, appCfg, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.WithError(err).WithFields(logTags).Error("Shutdown cleanup failed")
		}
	}()

	if appCfg.Sweeper.Enabled {
		go vault.RunSweeper(ctx, app.Vault, appCfg.Sweeper.Interval)
	}

	server := &http.Server{
		Addr:         appCfg.HTTP.ListenOn,
		Handler:      app.Router,
		ReadTimeout:  appCfg.HTTP.ReadTimeout,
		WriteTimeout: appCfg.HTTP.WriteTimeout,
		IdleTimeout:  appCfg.HTTP.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.WithFields(logTags).WithField("listen", appCfg.HTTP.ListenOn).Info("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("HTTP server failed [%w]", err)
		}
	case <-ctx.Done():
	}

	log.WithFields(logTags).Info("Stopping HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func migrateSchema(ctx context.Context) error {
	persistence, redisClient, err := secretshare.NewPersistence(ctx, appCfg.Store)
	if err != nil {
		return err
	}
	defer func() {
		if redisClient != nil {
			_ = redisClient.Close()
		}
		_ = persistence.Close()
	}()
	if err := persistence.RunSQLInTransaction(ctx, db.DefineTables); err != nil {
		return fmt.Errorf("failed to define tables [%w]", err)
	}
	log.WithFields(log.Fields{"module": "main", "component": "migrate"}).Info("Schema ready")
	return nil
}
