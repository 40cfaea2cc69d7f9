// Command paywalld serves the paywall API and runs its maintenance tasks.
//
//	paywalld [-config paywall.yaml] serve
//	paywalld [-config paywall.yaml] migrate [-down]
//	paywalld [-config paywall.yaml] gen-codes -n 50
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/PaulFidika/paywallkit/config"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", envOr("PAYWALL_CONFIG", "paywall.yaml"), "path to YAML config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	log := setupLogger(cfg.Server)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, args := "serve", flag.Args()
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}
	switch cmd {
	case "serve":
		err = serve(ctx, cfg, log)
	case "migrate":
		err = runMigrate(ctx, cfg, log, args)
	case "gen-codes":
		err = genCodes(ctx, cfg, log, args)
	default:
		err = fmt.Errorf("unknown command %q", cmd)
	}
	if err != nil {
		log.WithError(err).Fatal(cmd + " failed")
	}
}

func setupLogger(s config.Server) *logrus.Logger {
	log := logrus.StandardLogger()
	if s.LogFormat == "text" {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	if lvl, err := logrus.ParseLevel(s.LogLevel); err == nil {
		log.SetLevel(lvl)
	}
	return log
}

func openPool(ctx context.Context, db config.Database) (*pgxpool.Pool, error) {
	if db.URL == "" {
		return nil, errors.New("database.url (DATABASE_URL) is required")
	}
	pc, err := pgxpool.ParseConfig(db.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if db.MaxConns > 0 {
		pc.MaxConns = db.MaxConns
	}
	if db.Schema != "" && db.Schema != "public" {
		pc.ConnConfig.RuntimeParams["search_path"] = db.Schema
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

func listen(ctx context.Context, srv *http.Server, log logrus.FieldLogger) error {
	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	log.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
