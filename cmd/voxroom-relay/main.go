// voxroom-relay is the room media relay: a websocket fan-out server for
// PCM frames and caption events, with a prometheus metrics endpoint.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voxroom/voxroom/pkg/config"
	"github.com/voxroom/voxroom/pkg/relay"
)

func main() {
	_ = godotenv.Load()

	var (
		addr        = flag.String("addr", "", "Listen address (overrides VOXROOM_RELAY_ADDR)")
		metricsAddr = flag.String("metrics-addr", "", "Metrics listen address (overrides VOXROOM_METRICS_ADDR)")
		debug       = flag.Bool("debug", false, "Enable debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	if err := run(*addr, *metricsAddr, log); err != nil {
		log.Error("relay failed", "err", err)
		os.Exit(1)
	}
}

func run(addr, metricsAddr string, log *slog.Logger) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}
	if addr == "" {
		addr = cfg.RelayAddr
	}
	if metricsAddr == "" {
		metricsAddr = cfg.MetricsAddr
	}

	mux := http.NewServeMux()
	mux.Handle("/ws", relay.NewServer(log))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	metricsSrv := &http.Server{
		Addr:              metricsAddr,
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	listenErrCh := make(chan error, 2)
	go func() {
		log.Info("relay listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErrCh <- err
			return
		}
		listenErrCh <- nil
	}()
	go func() {
		log.Info("metrics listening", "addr", metricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErrCh <- err
			return
		}
		listenErrCh <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-listenErrCh:
		if err != nil {
			return err
		}
	case sig := <-sigCh:
		log.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("relay shutdown incomplete", "err", err)
	}
	if err := metricsSrv.Shutdown(ctx); err != nil {
		log.Warn("metrics shutdown incomplete", "err", err)
	}
	return nil
}
