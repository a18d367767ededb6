package container

import (
	"context"
	"fmt"

	"github.com/algoflow/algoflow/cmd/algoflow/middleware"
	"github.com/algoflow/algoflow/cmd/algoflow/ws"
	"github.com/algoflow/algoflow/common/bootstrap"
	"github.com/algoflow/algoflow/common/cache"
	"github.com/algoflow/algoflow/common/config"
	"github.com/algoflow/algoflow/common/crypto"
	"github.com/algoflow/algoflow/common/engine"
	"github.com/algoflow/algoflow/common/gateway"
	"github.com/algoflow/algoflow/common/logger"
	"github.com/algoflow/algoflow/common/models"
	"github.com/algoflow/algoflow/common/ratelimit"
	"github.com/algoflow/algoflow/common/repository"
	"github.com/algoflow/algoflow/common/scheduler"
	"github.com/algoflow/algoflow/common/validation"
)

// Container holds all initialized services and repositories (singleton pattern)
type Container struct {
	Components *bootstrap.Components

	// Repositories
	WorkflowRepo  *repository.WorkflowRepository
	ExecutionRepo *repository.ExecutionRepository
	SettingsRepo  *repository.SettingsRepository

	// Services
	Cipher    *crypto.Cipher
	Validator *validation.GraphValidator
	Stream    *gateway.StreamManager
	Executor  *engine.Executor
	Scheduler *scheduler.Scheduler
	Limiter   *ratelimit.RateLimiter
	Tokens    *middleware.TokenManager
	Cache     cache.Cache

	// Live event fanout
	Hub        *ws.Hub
	Publisher  *ws.Publisher
	Subscriber *ws.Subscriber
}

// NewContainer initializes all services and repositories once
func NewContainer(components *bootstrap.Components) (*Container, error) {
	cfg := components.Config
	log := components.Logger

	if cfg.Gateway.CipherKey == "" {
		log.Warn("SETTINGS_CIPHER_KEY not set, stored gateway keys use the development cipher")
	}
	cipher := crypto.NewCipher(cfg.Gateway.CipherKey)

	// Initialize repositories
	workflowRepo := repository.NewWorkflowRepository(components.DB)
	executionRepo := repository.NewExecutionRepository(components.DB)
	settingsRepo := repository.NewSettingsRepository(components.DB)

	// One stream manager for the process; market data subscriptions
	// persist across executions
	stream := gateway.NewStreamManager(log)

	hub := ws.NewHub(log)
	publisher := ws.NewPublisher(components.Redis, log)
	subscriber := ws.NewSubscriber(components.Redis, hub, log)

	// Initialize services (bottom-up: dependencies first)
	executor := engine.NewExecutor(engine.ExecutorOpts{
		Workflows:   workflowRepo,
		Executions:  executionRepo,
		Settings:    settingsRepo,
		Cipher:      cipher,
		Gateway:     gatewayFactory(cfg, stream, log),
		Broadcaster: publisher,
		Logger:      log,
	})

	sched := scheduler.New(scheduler.Opts{
		Workflows: workflowRepo,
		Trigger: func(workflowID int64) {
			resp := executor.Execute(context.Background(), workflowID, models.TriggerSchedule, nil)
			if resp.Status != "success" {
				log.Warn("scheduled execution finished with error",
					"workflow_id", workflowID, "message", resp.Message)
			}
		},
		Logger: log,
	})

	tokens, err := middleware.NewTokenManager(cfg.Auth.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create token manager: %w", err)
	}

	limiter := ratelimit.NewRateLimiter(components.Redis.GetUnderlying(), log)

	return &Container{
		Components:    components,
		WorkflowRepo:  workflowRepo,
		ExecutionRepo: executionRepo,
		SettingsRepo:  settingsRepo,
		Cipher:        cipher,
		Validator:     validation.NewGraphValidator(),
		Stream:        stream,
		Executor:      executor,
		Scheduler:     sched,
		Limiter:       limiter,
		Tokens:        tokens,
		Cache:         cache.NewRedisCache(components.Redis),
		Hub:           hub,
		Publisher:     publisher,
		Subscriber:    subscriber,
	}, nil
}

// gatewayFactory builds the per-execution gateway surfaces. Stored
// settings win; empty fields fall back to the configured defaults.
func gatewayFactory(cfg *config.Config, stream *gateway.StreamManager, log *logger.Logger) engine.GatewayFactory {
	return func(settings *models.Settings, apiKey string) (engine.Gateway, engine.Stream) {
		host := settings.GatewayHost
		if host == "" {
			host = cfg.Gateway.Host
		}
		wsURL := settings.GatewayWSURL
		if wsURL == "" {
			wsURL = cfg.Gateway.StreamURL
		}
		stream.Configure(wsURL, apiKey)

		client := gateway.NewClient(gateway.ClientOpts{
			Host:   host,
			APIKey: apiKey,
			Logger: log,
		})
		return client, stream
	}
}
