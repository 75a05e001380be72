package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"comicshelf/internal/app"
	"comicshelf/internal/comics"
	"comicshelf/internal/events"
)

func main() {
	configPath := flag.String("config", "", "config file path (default ~/.comicshelf/config.toml)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	a, err := app.Open(configPath)
	if err != nil {
		return err
	}
	defer a.Close()
	cfg, logger := a.Config, a.Logger

	gin.SetMode(gin.ReleaseMode)
	hub := events.NewHub(logger)
	imp := a.NewImporter(hub)
	importFn := func(ctx context.Context, path string) error {
		_, err := imp.ImportFile(ctx, path)
		return err
	}
	handler := comics.NewHandler(a.Store, importFn, hub, cfg.UploadDir, cfg.MaxUploadBytes, logger)

	router := gin.New()
	handler.RegisterErrorPages(router)
	router.Use(requestLogger(logger))
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})

	router.GET("/ws", events.WSHandler(hub))
	tcpSrv := events.NewServer(cfg.EventsAddr, hub)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "db": cfg.DBPath})
	})

	router.GET("/ready", func(c *gin.Context) {
		stats := hub.Stats()
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := a.DB.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":      "not_ready",
				"db_error":    err.Error(),
				"tcp_clients": stats.TCPClients,
				"ws_clients":  stats.WSClients,
			})
			return
		}

		resp := gin.H{
			"status":      "ready",
			"db":          "ok",
			"tcp_clients": stats.TCPClients,
			"ws_clients":  stats.WSClients,
			"catalog":     "disabled",
		}
		if a.Catalog != nil {
			resp["catalog"] = "ok"
			if a.Catalog.Breaker().Tripped() {
				resp["catalog"] = "rate_limited"
			}
		}
		c.JSON(http.StatusOK, resp)
	})

	handler.RegisterRoutes(router.Group(""))

	httpSrv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	errCh := make(chan error, 2)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := tcpSrv.ListenAndServe(); err != nil {
			errCh <- fmt.Errorf("event feed: %w", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("http server listening", slog.String("addr", cfg.HTTPAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http: %w", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
	case runErr = <-errCh:
		logger.Error("server error", slog.Any("error", runErr))
	}

	logger.Info("shutting down servers")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", slog.Any("error", err))
	}
	if err := tcpSrv.Close(); err != nil {
		logger.Warn("event feed shutdown", slog.Any("error", err))
	}

	wg.Wait()
	logger.Info("servers stopped")
	return runErr
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	logger = logger.With(slog.String("component", "http"))
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)))
	}
}
