package di

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"go.opentelemetry.io/otel"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"vision-assist/backend/internal/analysis"
	"vision-assist/backend/internal/prompt"
	"vision-assist/backend/internal/service"
	"vision-assist/backend/internal/tts"
	"vision-assist/backend/pkg/config"
	"vision-assist/backend/pkg/health"
	"vision-assist/backend/pkg/jwt"
	"vision-assist/backend/pkg/logger"
	"vision-assist/backend/pkg/middleware"
	"vision-assist/backend/pkg/observability"
	"vision-assist/backend/pkg/resilience"
	"vision-assist/backend/pkg/secrets"
)

// Container holds all the dependencies for the application
type Container struct {
	Config           *config.Config
	DB               *gorm.DB
	Logger           *logger.Logger
	JWTService       *jwt.Service
	UserService      *service.UserService
	AssistantService *service.AssistantService
	Synthesizer      *tts.Synthesizer
	Breaker          *resilience.CircuitBreaker
	Health           *health.Checker
	RateLimiter      *middleware.RateLimiter
	// MetricsHandler is nil when metrics are disabled
	MetricsHandler http.Handler

	closers []func(context.Context) error
}

// New wires every service from cfg around an open database
func New(db *gorm.DB, cfg *config.Config, log *logger.Logger) (*Container, error) {
	if cfg == nil {
		cfg = config.New()
	}
	if log == nil {
		log = logger.GetGlobal()
	}

	c := &Container{Config: cfg, DB: db, Logger: log}

	if err := c.setupObservability(); err != nil {
		return nil, err
	}

	c.JWTService = jwt.NewService(cfg.JWT.Secret, cfg.JWT.Expiry)
	c.UserService = service.NewUserService(db, c.JWTService, log)

	keys := c.secretManager()
	models := analysis.NewGeminiProvider(keys, nil)

	store, err := c.credentialStore()
	if err != nil {
		return nil, err
	}
	c.Synthesizer = tts.NewSynthesizer(tts.Config{
		Endpoint:        cfg.TTS.Endpoint,
		ProjectID:       cfg.TTS.ProjectID,
		DefaultLanguage: cfg.TTS.DefaultLanguage,
		DefaultVoice:    cfg.TTS.DefaultVoice,
		Timeout:         cfg.TTS.Timeout,
	}, nil, store, tts.NewCommandRefresher(cfg.TTS.RefreshCommand), log)

	shape, err := analysis.ShapeByName(cfg.Gemini.ResponseShape)
	if err != nil {
		return nil, err
	}

	breakerCfg := resilience.DefaultConfig("gemini")
	breakerCfg.IsFailure = analysis.CountsAgainstBreaker
	if cfg.Gemini.BreakerMax > 0 {
		breakerCfg.FailureThreshold = uint(cfg.Gemini.BreakerMax)
	}
	if cfg.Gemini.BreakerTimeout > 0 {
		breakerCfg.CoolDown = cfg.Gemini.BreakerTimeout
	}
	c.Breaker = resilience.NewCircuitBreaker(breakerCfg, log)

	assembler := analysis.NewAssembler(prompt.NewComposer(cfg.Gemini.Locale), analysis.AssemblerConfig{
		DefaultModel:   cfg.Gemini.DefaultModel,
		ThinkingBudget: int32(cfg.Gemini.ThinkingBudget),
		Shape:          shape,
	})
	invoker := analysis.NewInvoker(c.Breaker, cfg.Gemini.Timeout, log)

	metrics := observability.NoopMetrics()
	if c.MetricsHandler != nil {
		metrics, err = observability.NewMetrics(otel.GetMeterProvider().Meter("vision-assist/assistant"))
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics: %w", err)
		}
	}

	c.AssistantService = service.NewAssistantService(assembler, invoker, models, c.Synthesizer, metrics, log)

	c.RateLimiter = middleware.NewRateLimiter(log, middleware.RateLimiterOptions{
		Limit: rate.Limit(cfg.Security.RateLimit),
		Burst: cfg.Security.RateLimitBurst,
	})

	c.Health = health.NewChecker(log, 0)
	c.Health.RegisterDatabaseCheck(func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	})
	c.Health.RegisterGeminiKeyCheck(models.KeyConfigured)
	if rs, ok := store.(*tts.RedisStore); ok {
		c.Health.RegisterRedisCheck(rs.Ping)
	}
	c.Health.RegisterCheck("gemini_breaker", false, func(context.Context) (health.Status, string, error) {
		if c.Breaker.State() == resilience.StateOpen {
			return health.StatusDegraded, "Model calls are short-circuited", resilience.ErrCircuitOpen
		}
		return health.StatusUp, "Circuit " + string(c.Breaker.State()), nil
	})

	return c, nil
}

func (c *Container) setupObservability() error {
	obs := c.Config.Observability

	if obs.TracingEnabled {
		shutdown, err := observability.SetupTracing(obs.ServiceName, os.Stdout)
		if err != nil {
			return err
		}
		c.closers = append(c.closers, shutdown)
	}

	if obs.MetricsEnabled {
		mp, handler, err := observability.SetupMetrics(obs.ServiceName)
		if err != nil {
			return err
		}
		otel.SetMeterProvider(mp)
		c.MetricsHandler = handler
		c.closers = append(c.closers, mp.Shutdown)
	}
	return nil
}

// secretManager prefers Vault when it is configured and falls back to the
// environment for every key Vault does not hold
func (c *Container) secretManager() secrets.Manager {
	env := secrets.NewEnvManager(map[string]string{
		secrets.KeyGoogleAPIKey: c.Config.Gemini.APIKey,
	})

	v := c.Config.Vault
	if v.Address == "" || v.Token == "" {
		return env
	}

	manager, err := secrets.NewVaultManager(secrets.VaultConfig{
		Address:    v.Address,
		Token:      v.Token,
		MountPath:  v.MountPath,
		SecretPath: v.SecretPath,
	}, env, c.Logger)
	if err != nil {
		c.Logger.Warn("Vault unavailable, using environment secrets", "error", err.Error())
		return env
	}
	c.Logger.Info("Reading secrets from Vault", "address", v.Address, "path", v.SecretPath)
	return manager
}

// credentialStore shares the TTS token through Redis when REDIS_URL is set
func (c *Container) credentialStore() (tts.CredentialStore, error) {
	token := c.Config.TTS.AccessToken
	if c.Config.Redis.URL == "" {
		return tts.NewMemoryStore(token), nil
	}

	store, err := tts.NewRedisStoreFromURL(c.Config.Redis.URL, c.Config.Redis.CredentialKey, 0)
	if err != nil {
		return nil, err
	}
	c.closers = append(c.closers, func(context.Context) error { return store.Close() })

	if err := store.Seed(context.Background(), token); err != nil {
		c.Logger.Warn("Failed to seed TTS token in Redis", "error", err.Error())
	}
	return store, nil
}

// Close releases background resources in reverse order of creation
func (c *Container) Close(ctx context.Context) error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if sqlDB, err := c.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
