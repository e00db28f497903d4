package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/carbonlog/internal/db"
	"github.com/carbonlog/internal/handler"
	"github.com/carbonlog/internal/router"
	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func startServer(c *cli.Context) error {
	rt, err := loadRuntime()
	if err != nil {
		return err
	}
	defer func() { _ = rt.logger.Sync() }()

	gin.SetMode(rt.cfg.GinMode)

	if err := rt.openDatabase(); err != nil {
		return err
	}
	if rt.cfg.SeedDemoData {
		result, err := db.Seed(db.DB, time.Now())
		if err != nil {
			return fmt.Errorf("seed demo data: %w", err)
		}
		rt.logger.Info("demo data seeded",
			zap.Int("challenges", result.Challenges),
			zap.Int("products", result.Products),
		)
	}

	api := handler.NewAPI(db.DB, rt.aiDefaults(), rt.logger)
	engine, err := router.SetupRouter(api, router.Options{
		SessionSecret:  rt.cfg.SessionSecret,
		SecureCookie:   rt.cfg.Env == "production",
		AllowedOrigins: rt.cfg.CORSAllowedOrigins,
		Logger:         rt.logger,
	})
	if err != nil {
		return fmt.Errorf("setup router: %w", err)
	}

	server := &http.Server{
		Addr:              rt.cfg.ListenAddr,
		Handler:           router.WithCORS(engine, rt.cfg.CORSAllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		rt.logger.Info("starting http server",
			zap.String("address", server.Addr),
			zap.String("environment", rt.cfg.Env),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("run server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	rt.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		rt.logger.Error("server forced to shutdown", zap.Error(err))
		return err
	}
	rt.logger.Info("server shutdown completed")
	return nil
}
