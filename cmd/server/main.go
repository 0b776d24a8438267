package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"vision-assist/backend/pkg/config"
	"vision-assist/backend/pkg/di"
	"vision-assist/backend/pkg/logger"
	"vision-assist/backend/pkg/router"
)

func main() {
	envFile := flag.String("env", "", "path to an env file loaded before the environment is read")
	openapi := flag.String("openapi", "", "OpenAPI schema path; enables request validation")
	flag.Parse()

	if *envFile != "" {
		if err := config.LoadEnvFile(*envFile); err != nil {
			logger.GetGlobal().LogError(err, "Failed to load env file", "path", *envFile)
			os.Exit(1)
		}
	}

	cfg := config.New()
	if *openapi != "" {
		cfg.OpenAPI.SchemaPath = *openapi
		cfg.OpenAPI.Validate = true
	}

	logConfig := logger.DefaultConfig()
	logConfig.Level = cfg.Logging.Level
	logConfig.JSON = cfg.Logging.Format != "text"
	log := logger.New(logConfig)
	logger.SetGlobal(log)

	log.Info("Starting application", "version", router.Version, "env", cfg.Server.Env)

	db, err := config.NewDB(cfg)
	if err != nil {
		log.LogError(err, "Failed to initialize database")
		os.Exit(1)
	}

	container, err := di.New(db, cfg, log)
	if err != nil {
		log.LogError(err, "Failed to initialize dependency container")
		os.Exit(1)
	}

	if err := container.UserService.Migrate(); err != nil {
		log.LogError(err, "Failed to migrate database")
		os.Exit(1)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	if created, err := container.UserService.EnsureAdmin(ctx, cfg.Admin.Username, cfg.Admin.Password); err != nil {
		log.LogError(err, "Failed to bootstrap admin user")
	} else if !created && cfg.Admin.Password == "" {
		log.Warn("ADMIN_PASSWORD is not set, admin bootstrap skipped")
	}

	go container.RateLimiter.Run(ctx)
	container.Health.Start(ctx)

	r := router.New(container)
	r.SetupRoutes()

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r.Engine,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.Timeout,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.LogError(err, "Server failed to start")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	log.Info("Shutting down server...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.LogError(err, "Server forced to shutdown")
	}
	if err := container.Close(shutdownCtx); err != nil {
		log.LogError(err, "Failed to release resources")
	}

	log.Info("Server exited gracefully")
}
