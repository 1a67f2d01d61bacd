package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sinemacula/go-api-toolkit/config"
	"github.com/sinemacula/go-api-toolkit/schema"
	"github.com/sinemacula/go-api-toolkit/store"
	"github.com/sinemacula/go-api-toolkit/web"
)

var servePort int

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides config)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the example API server",
	Long:  "Serve the bundled example resources (users, posts, organizations) over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if servePort > 0 {
			cfg.Server.Port = servePort
		}

		log, err := buildLogger(cfg)
		if err != nil {
			return fmt.Errorf("failed to build logger: %w", err)
		}
		defer log.Sync()

		url := config.DatabaseURL(cfg)
		if url == "" {
			color.Red("No database configured")
			return fmt.Errorf("database url is required (set DATABASE_URL or database.url)")
		}

		db, err := sql.Open("pgx", url)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			color.Red("Cannot reach database at %s", url)
			return fmt.Errorf("failed to ping database: %w", err)
		}

		st := store.New(db, store.WithLogger(log))
		compiler := schema.NewCompiler()
		srv := web.NewServer(compiler, st, cfg, log)
		if err := registerExampleResources(compiler, st, srv); err != nil {
			return err
		}

		httpServer := &http.Server{
			Addr:    cfg.Addr(),
			Handler: srv.Router(),
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			errCh <- httpServer.ListenAndServe()
		}()
		log.Info("server listening", zap.String("addr", cfg.Addr()))

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
		case <-ctx.Done():
			log.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown failed: %w", err)
			}
		}

		return nil
	},
}

func buildLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	zcfg := zap.NewProductionConfig()
	if cfg.Log.Pretty {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = level
	return zcfg.Build()
}
