package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"studentmarket/app/config"
	"studentmarket/app/drafts"
	"studentmarket/app/identity"
	"studentmarket/app/imaging"
	"studentmarket/app/logging"
	"studentmarket/app/middleware"
	"studentmarket/app/repositories"
	"studentmarket/app/routes"
	"studentmarket/app/services"

	"go.uber.org/zap"
)

// App is the wired marketplace: storage, listing store, draft composer and router.
type App struct {
	KV       repositories.KV
	Listings *services.ListingService
	Composer *drafts.Composer
	Router   http.Handler
}

// NewApp opens storage and loads the persisted listings.
func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	kv, err := openKV(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("opening %s storage: %w", cfg.Storage.Driver, err)
	}

	repo := repositories.NewListingRepository(kv, cfg.Storage.Key, logger.Named("storage"))
	who := identity.Fixed{
		PosterName:    cfg.Identity.PosterName,
		PosterAvatar:  cfg.Identity.PosterAvatar,
		CommenterName: cfg.Identity.CommenterName,
	}
	listings := services.NewListingService(ctx, repo, who, logger.Named("listings"))
	composer := drafts.NewComposer(imaging.NewEncoder(cfg.Uploads.MaxBytes), listings, logger.Named("drafts"),
		drafts.WithIdleTimeout(cfg.Drafts.IdleTimeout),
		drafts.WithMaxOpen(cfg.Drafts.MaxOpen))

	router := routes.SetupRoutes(routes.Deps{
		Listings:       listings,
		Composer:       composer,
		Metrics:        middleware.NewMetrics("studentmarket"),
		Logger:         logger.Named("http"),
		MaxUploadBytes: cfg.Uploads.MaxBytes,
	})

	return &App{KV: kv, Listings: listings, Composer: composer, Router: router}, nil
}

func (a *App) Close() error {
	return a.KV.Close()
}

// RunAppServer starts the marketplace and blocks until SIGINT or SIGTERM.
func RunAppServer(cfg *config.Config) int {
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Printf("Failed to set up logging: %v\n", err)
		return 1
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := Serve(ctx, cfg, logger, nil); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		return 1
	}
	return 0
}

// Serve runs the HTTP server until ctx is done, then shuts it down within
// cfg.HTTP.ShutdownTimeout. ready, if set, receives the bound address.
func Serve(ctx context.Context, cfg *config.Config, logger *zap.Logger, ready func(addr string)) error {
	app, err := NewApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	ln, err := net.Listen("tcp", cfg.HTTP.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.HTTP.Addr, err)
	}

	srv := &http.Server{
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	addr := ln.Addr().String()
	logger.Info("marketplace listening",
		zap.String("addr", addr),
		zap.String("storage", cfg.Storage.Driver),
		zap.Int("listings", len(app.Listings.Snapshot())))
	if ready != nil {
		ready(addr)
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down", zap.Duration("timeout", cfg.HTTP.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
