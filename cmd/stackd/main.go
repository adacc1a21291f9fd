package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/meridian-platform/stackd/internal/adapter/http"
	"github.com/meridian-platform/stackd/internal/adapter/kubernetes"
	"github.com/meridian-platform/stackd/internal/adapter/loki"
	"github.com/meridian-platform/stackd/internal/adapter/registryapi"
	"github.com/meridian-platform/stackd/internal/adapter/repository"
	"github.com/meridian-platform/stackd/internal/config"
	"github.com/meridian-platform/stackd/internal/domain"
	"github.com/meridian-platform/stackd/internal/service"
)

func main() {
	cfg := config.Load()

	db, err := repository.OpenDB(cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to open db", "error", err)
		os.Exit(1)
	}

	unitRepo := repository.NewUnitRepo(db)
	revRepo := repository.NewRevisionRepo(db)
	provider := repository.NewInfraProvider(db)

	cs, _, err := kubernetes.NewClientset(cfg.KubeconfigPath)
	if err != nil {
		slog.Error("k8s client unavailable", "error", err)
		os.Exit(1)
	}
	deployer := kubernetes.NewUnitDeployer(cs, cfg.DeployNamespace)

	registry := registryapi.NewClient(cfg.RegistryAPIURL)
	lokiClient := loki.NewClient(cfg.LokiURL)

	deploySvc := service.NewDeployService(unitRepo, revRepo, deployer, registry, provider)
	statusSvc := service.NewStatusService(unitRepo, revRepo, deployer)
	teardownSvc := service.NewTeardownService(unitRepo, deployer, provider)

	// The build pipeline needs a source repository; without one the API
	// still serves plain deploys of pre-built images.
	var pipelineSvc *service.PipelineService
	if cfg.SourceRepo != "" {
		builder := kubernetes.NewJobImageBuilder(cs, kubernetes.BuildConfig{
			Namespace:      cfg.BuildNamespace,
			BuilderImage:   cfg.BuilderImage,
			RegistrySecret: cfg.RegistrySecret,
			SourceRepo:     cfg.SourceRepo,
			SourceRef:      cfg.SourceRef,
			ContextDirs: map[domain.Role]string{
				domain.RoleProxy: "proxy",
				domain.RoleAPI:   "api",
				domain.RoleWeb:   "frontend",
			},
		})
		pipelineSvc = service.NewPipelineService(builder, deploySvc)
	}

	deployH := httpadapter.NewDeployHandler(deploySvc, statusSvc, pipelineRunner(pipelineSvc))
	unitH := httpadapter.NewUnitHandler(statusSvc, teardownSvc, lokiClient, cfg.DeployNamespace)
	handler := httpadapter.NewRouter(deployH, unitH, cfg.APIToken)

	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: handler,
	}

	go func() {
		slog.Info("stackd listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
}

// pipelineRunner keeps the handler's dependency nil when no pipeline is
// configured; a typed nil pointer would defeat the handler's nil check.
func pipelineRunner(svc *service.PipelineService) httpadapter.PipelineRunner {
	if svc == nil {
		return nil
	}
	return svc
}
