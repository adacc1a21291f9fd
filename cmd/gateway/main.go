package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/meridian-platform/stackd/internal/config"
	"github.com/meridian-platform/stackd/internal/domain"
	"github.com/meridian-platform/stackd/internal/gateway"
	"github.com/meridian-platform/stackd/internal/middleware"
	"github.com/meridian-platform/stackd/internal/render"
	"github.com/meridian-platform/stackd/internal/route"
)

func main() {
	cfg := config.LoadGateway()

	table := route.DefaultTable()
	if cfg.RoutesConfig != "" {
		t, err := route.LoadFromFile(cfg.RoutesConfig)
		if err != nil {
			slog.Error("failed to load routes config", "path", cfg.RoutesConfig, "error", err)
			os.Exit(1)
		}
		table = t
	}
	slog.Info("routes loaded", "count", len(table.Rules()))

	upstreams := map[domain.Role]render.Upstream{}
	for role, raw := range map[domain.Role]string{
		domain.RoleAPI: cfg.APIUpstream,
		domain.RoleWeb: cfg.WebUpstream,
	} {
		up, err := parseUpstream(raw)
		if err != nil {
			slog.Error("bad upstream", "role", role, "value", raw, "error", err)
			os.Exit(1)
		}
		upstreams[role] = up
	}

	gw, err := gateway.New(table, upstreams, time.Duration(cfg.ProxyTimeoutSeconds)*time.Second)
	if err != nil {
		slog.Error("failed to build gateway", "error", err)
		os.Exit(1)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/", gw)

	handler := middleware.Chain(
		middleware.Recovery,
		middleware.RequestID,
		middleware.Logging,
	)(mux)

	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: handler,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("gateway listening", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
}

func parseUpstream(raw string) (render.Upstream, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return render.Upstream{}, err
	}
	port := 80
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return render.Upstream{}, err
		}
	}
	return render.Upstream{Host: u.Hostname(), Port: port}, nil
}
