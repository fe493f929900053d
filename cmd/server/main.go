package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"telemetry-service/internal/factory"
	"telemetry-service/internal/handler"
	"telemetry-service/internal/util"
)

func main() {
	f, err := factory.NewFactory()
	if err != nil {
		util.Fatal("Failed to initialize factory", util.ErrorField(err))
	}
	defer f.Close()

	cfg := f.Config()

	router := setupRouter(f)

	server := &http.Server{
		Addr:         cfg.GetServerAddress(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			util.Fatal("Server failed to start", util.ErrorField(err))
		}
	}()

	util.Info("Server started successfully",
		util.String("environment", cfg.Environment),
		util.String("address", server.Addr),
	)

	waitForShutdown(f, server)
}

// setupRouter creates the HTTP router with all handlers using Chi
func setupRouter(f *factory.Factory) http.Handler {
	ingestHandler := handler.NewIngestHandler(f.IngestService(), f.AgentService(), util.Get())
	incidentHandler := handler.NewIncidentHandler(f.IncidentRepository(), f.ScoreService(), util.Get())
	adminHandler := handler.NewAdminHandler(f.TenantService(), f.Config().Server.AdminKey, util.Get())
	return handler.NewRouter(ingestHandler, incidentHandler, adminHandler, f.TenantService(), util.Get())
}

func waitForShutdown(f *factory.Factory, server *http.Server) {
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	sig := <-signalChan
	util.Info("Received shutdown signal", util.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		util.Error("Failed to shutdown server gracefully", util.ErrorField(err))
	} else {
		util.Info("Server shutdown completed")
	}
	f.Close()
}
