package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"afropedia/api/internal/app"
	"afropedia/api/internal/config"
	"afropedia/api/internal/consensus"
	"afropedia/api/internal/email"
	"afropedia/api/internal/events"
	"afropedia/api/internal/gitrepo"
	"afropedia/api/internal/logging"
	"afropedia/api/internal/search"
	"afropedia/api/internal/sqlitestore"
	"afropedia/api/internal/store"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := loadConfig()
			log, err := logging.New(cfg.LogLevel, cfg.Environment)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			return serve(cmd.Context(), cfg, log)
		},
	}
}

func serve(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	policy := consensus.DefaultPolicy()
	if strings.TrimSpace(cfg.PolicyFile) != "" {
		loaded, err := config.LoadPolicy(cfg.PolicyFile)
		if err != nil {
			return err
		}
		policy = loaded
	}

	sinks, archive, closeSinks, err := openSinks(cfg, log)
	if err != nil {
		return err
	}
	defer closeSinks()

	fanout := events.NewFanout(log, cfg.EventTimeout, sinks...)
	opts := app.Options{Policy: policy, Events: fanout, Logger: log}
	if archive != nil {
		opts.Archive = archive
	}

	var service *app.Service
	switch cfg.StoreDriver {
	case "sqlite":
		st, err := sqlitestore.Open(ctx, cfg.SQLiteDSN)
		if err != nil {
			return err
		}
		defer st.Close()
		service = app.New(st, opts)
	case "postgres":
		db, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		migrations, err := store.Migrations(cfg.MigrationsDir)
		if err != nil {
			return err
		}
		if err := store.ApplyMigrations(ctx, db, migrations); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
		service = app.New(store.NewPostgresStore(db), opts)
	default:
		return fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}

	httpServer := app.NewHTTPServer(service, cfg.TokenSecret, cfg.CORSOrigin, log)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("api listening",
			zap.String("addr", cfg.Addr),
			zap.String("store", cfg.StoreDriver),
			zap.Strings("sinks", fanout.Sinks()),
			zap.Int("min_approvals", policy.MinApprovals))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", zap.Error(err))
	}
	fanout.Wait()
	log.Info("api stopped")
	return nil
}

// openSinks builds the event sinks whose addresses are configured. The git
// mirror doubles as the published-history archive.
func openSinks(cfg config.Config, log *zap.Logger) ([]events.Sink, *gitrepo.Mirror, func(), error) {
	var (
		sinks   []events.Sink
		closers []func()
		mirror  *gitrepo.Mirror
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisSink, err := events.NewRedisSink(cfg.RedisURL, cfg.EventsStream)
		if err != nil {
			closeAll()
			return nil, nil, nil, fmt.Errorf("redis sink: %w", err)
		}
		sinks = append(sinks, redisSink)
		closers = append(closers, func() { _ = redisSink.Close() })
	}

	if strings.TrimSpace(cfg.MeiliURL) != "" {
		indexer := search.NewIndexer(cfg.MeiliURL, cfg.MeiliMasterKey, log)
		sinks = append(sinks, indexer)
		closers = append(closers, indexer.Close)
	}

	if strings.TrimSpace(cfg.ArchiveDir) != "" {
		if err := os.MkdirAll(cfg.ArchiveDir, 0o755); err != nil {
			closeAll()
			return nil, nil, nil, fmt.Errorf("create archive dir: %w", err)
		}
		mirror = gitrepo.New(cfg.ArchiveDir)
		sinks = append(sinks, mirror)
	}

	mailer := email.NewService(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	})
	if mailer.IsConfigured() && len(cfg.ModeratorEmails) > 0 {
		sinks = append(sinks, email.NewAlerter(mailer, cfg.ModeratorEmails))
	} else if mailer.IsConfigured() {
		log.Warn("smtp configured without MODERATOR_EMAILS, alerts disabled")
	}

	return sinks, mirror, closeAll, nil
}
