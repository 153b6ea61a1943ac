package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/park285/cheese-chess/internal/builder"
	appcfg "github.com/park285/cheese-chess/internal/config"
	"github.com/park285/cheese-chess/internal/obslog"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	deps, err := builder.New(ctx, cfg, logger)
	cancel()
	if err != nil {
		logger.Fatal("init error", zap.Error(err))
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Warn("close error", zap.Error(err))
		}
	}()

	restSrv := &fasthttp.Server{
		Handler:      deps.HTTP.Handler,
		Name:         "cheese-chess",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	mux := http.NewServeMux()
	mux.Handle("/ws", deps.WS)
	wsSrv := &http.Server{Addr: cfg.WSAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("http_listen", zap.String("addr", cfg.HTTPAddr))
		errCh <- restSrv.ListenAndServe(cfg.HTTPAddr)
	}()
	go func() {
		logger.Info("ws_listen", zap.String("addr", cfg.WSAddr))
		if err := wsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("shutdown", zap.String("signal", sig.String()))
	case err := <-errCh:
		logger.Error("listener failed", zap.Error(err))
	}

	sctx, scancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer scancel()
	if err := wsSrv.Shutdown(sctx); err != nil {
		logger.Warn("ws shutdown", zap.Error(err))
	}
	if err := restSrv.ShutdownWithContext(sctx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
}
