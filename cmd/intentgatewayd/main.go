// Command intentgatewayd runs the AI-assisted API gateway: it wires
// configuration, observability, the admission pipeline, and the
// orchestration core into an HTTP server, then serves until signaled to
// stop.
//
// Grounded on core.cmd/example's "build components, Initialize, Start"
// entrypoint shape, generalized from a single in-process tool to the
// gateway's full collaborator graph.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/intentgw/gateway/admission"
	"github.com/intentgw/gateway/audit"
	"github.com/intentgw/gateway/bedrockplanner"
	"github.com/intentgw/gateway/breaker"
	"github.com/intentgw/gateway/cache"
	"github.com/intentgw/gateway/collaborator"
	"github.com/intentgw/gateway/config"
	"github.com/intentgw/gateway/executor"
	"github.com/intentgw/gateway/httpservice"
	"github.com/intentgw/gateway/logging"
	"github.com/intentgw/gateway/orchestrator"
	"github.com/intentgw/gateway/quota"
	"github.com/intentgw/gateway/resilience"
	"github.com/intentgw/gateway/resolver"
	"github.com/intentgw/gateway/server"
	"github.com/intentgw/gateway/staticplanner"
	"github.com/intentgw/gateway/telemetry"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	var opts []config.Option
	if path := os.Getenv("INTENTGW_CONFIG_FILE"); path != "" {
		opts = append(opts, config.WithFile(path))
	}
	cfg, err := config.Load(opts...)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.New(cfg.Telemetry.ServiceName, cfg.Logging.Level, cfg.Logging.Format)

	var metrics breaker.Metrics
	if cfg.Telemetry.Enabled {
		provider, err := telemetry.Setup(cfg.Telemetry.ServiceName)
		if err != nil {
			return fmt.Errorf("setting up telemetry: %w", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = provider.Shutdown(ctx)
		}()
		metrics = telemetry.NewMetrics(provider)
	}

	planCache := cache.New(cache.WithMaxEntries(cfg.Cache.MaxEntries), cache.WithMaxBytes(cfg.Cache.MaxBytes))

	breakerOpts := []breaker.Option{}
	if metrics != nil {
		breakerOpts = append(breakerOpts, breaker.WithMetrics(metrics))
	}
	breakers := breaker.New(breaker.Config{
		FailureThreshold: cfg.Resilience.FailureThreshold,
		SuccessThreshold: cfg.Resilience.SuccessThreshold,
		HalfOpenTimeout:  cfg.Resilience.HalfOpenTimeout,
	}, breakerOpts...)

	policy := resilience.NewPolicy(resilience.Config{
		MaxRetries: cfg.Resilience.MaxRetries,
		BackoffMs:  cfg.Resilience.BackoffMs,
		Timeout:    cfg.Resilience.Timeout,
	}, nil)

	res := resolver.New(logger)

	verifier := admission.NewStaticVerifier(cfg.Auth.SharedSecret)
	guardrail := admission.NewGuardrail()

	quotaStore, err := buildQuotaStore(cfg)
	if err != nil {
		return fmt.Errorf("configuring quota store: %w", err)
	}
	pipeline := admission.New(verifier, guardrail, quotaStore, cfg.RateLimit.DailyLimit)

	svcClient := httpservice.New(cfg.ServiceDiscovery.ServiceURLs)

	planner, err := buildPlanner(cfg)
	if err != nil {
		return fmt.Errorf("configuring planner: %w", err)
	}

	exec := executor.New(svcClient, breakers, policy, res, logger)
	auditSink := audit.NewMemorySink()
	orch := orchestrator.New(planner, exec, planCache, cfg.Cache.PlanTTL, auditSink, logger)

	devMode := cfg.Logging.Level == "debug"
	srv := server.New(pipeline, orch, logger, devMode)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", map[string]any{"address": httpServer.Addr})
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigCh:
		logger.Info("received shutdown signal", map[string]any{"signal": sig.String()})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return httpServer.Shutdown(ctx)
}

func buildQuotaStore(cfg *config.Config) (collaborator.QuotaStore, error) {
	fallback := quota.NewKeeper(cfg.RateLimit.DailyLimit, quota.WithHourlyLimit(cfg.RateLimit.HourlyLimit))
	if cfg.RateLimit.RedisURL == "" {
		return fallback, nil
	}

	opt, err := redis.ParseURL(cfg.RateLimit.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opt)
	primary := quota.NewRedisStore(client, "intentgw:quota:")
	return quota.NewFallback(primary, fallback), nil
}

func buildPlanner(cfg *config.Config) (collaborator.Planner, error) {
	region := os.Getenv("AWS_REGION")
	model := os.Getenv("INTENTGW_BEDROCK_MODEL")
	if region == "" || model == "" {
		return staticplanner.New("DefaultService", "HandleIntent"), nil
	}

	awsCfg, err := bedrockplanner.LoadConfig(context.Background(), region, os.Getenv("AWS_ACCESS_KEY_ID"), os.Getenv("AWS_SECRET_ACCESS_KEY"))
	if err != nil {
		return nil, err
	}
	return bedrockplanner.New(awsCfg, model), nil
}
