package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"meal-plan-generator/internal/api"
	"meal-plan-generator/internal/api/handlers"
	"meal-plan-generator/internal/api/handlers/health"
	"meal-plan-generator/internal/core/ai/openrouter"
	"meal-plan-generator/internal/core/ai/provider"
	"meal-plan-generator/internal/core/allergen"
	"meal-plan-generator/internal/core/generation"
	"meal-plan-generator/internal/core/job"
	"meal-plan-generator/internal/core/plan"
	"meal-plan-generator/internal/core/pool"
	"meal-plan-generator/internal/core/prompt"
	"meal-plan-generator/internal/core/recipe"
	"meal-plan-generator/internal/core/rules"
	"meal-plan-generator/internal/infrastructure/config"
	"meal-plan-generator/internal/infrastructure/kv"
	"meal-plan-generator/internal/infrastructure/storage"
	"meal-plan-generator/internal/pkg/common"

	"go.uber.org/zap"
)

type pinger interface {
	Ping(ctx context.Context) error
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := common.InitLogger(common.LogOptions{
		Level:   cfg.Log.Level,
		Mode:    cfg.Log.Mode,
		Dir:     cfg.Log.Dir,
		Service: cfg.App.Name,
	}); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer common.Sync()

	tables, err := rules.Load(cfg.RulesFile)
	if err != nil {
		common.LogFatal("Failed to load rules", zap.String("path", cfg.RulesFile), zap.Error(err))
	}

	store, err := storage.Open(cfg.Storage)
	if err != nil {
		common.LogFatal("Failed to open storage", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
	}
	defer store.Close()

	readiness := map[string]health.Check{}
	if p, ok := store.(pinger); ok {
		readiness["storage"] = p.Ping
	}

	var markers kv.Store
	if cfg.Redis.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rs, err := kv.NewRedisStore(ctx, cfg.Redis, cfg.Cache.TTL)
		cancel()
		if err != nil {
			common.LogFatal("Failed to initialize Redis", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		readiness["redis"] = rs.Ping
		markers = rs
	} else {
		markers = kv.NewMemoryStore(cfg.Cache)
	}
	defer markers.Close()

	var remote provider.Provider
	if cfg.OpenRouter.Enabled && cfg.OpenRouter.APIKey != "" {
		or := openrouter.NewClient(cfg.OpenRouter)
		defer or.Close()
		remote = or
	} else {
		common.LogWarn("Remote generator disabled, slots are filled from the recipe pool only")
	}

	matcher := allergen.NewMatcher(tables)
	parser := recipe.NewParser(matcher)
	validator := recipe.NewValidator(matcher)

	generator := generation.NewRemoteGenerator(remote, prompt.NewBuilder(cfg.Generation.ExcludeLimit), parser, cfg.Generation.RemoteTimeout)
	orchestrator := generation.NewOrchestrator(validator, generation.Policy{
		MaxAttempts: cfg.Generation.MaxAttempts,
		Backoff:     cfg.Generation.RetryBackoff,
	})

	sources := make([]plan.Provenance, 0, len(cfg.Pool.Sources))
	for _, s := range cfg.Pool.Sources {
		sources = append(sources, plan.Provenance(s))
	}
	selector := pool.NewSelector(store, validator, parser.MealRules(), generator, orchestrator, pool.Config{
		Sources:        sources,
		CandidateLimit: cfg.Pool.CandidateLimit,
	})
	replacer := pool.NewReplacer(selector, store, pool.NewFreeTierLimiter(markers))

	queue := job.NewQueue(cfg.Jobs.Workers, cfg.Jobs.QueueSize)
	manager := job.NewManager(store, selector, queue, cfg.Jobs.TimeBudget)

	router, err := api.SetupRouter(cfg, &api.Services{
		Jobs:      manager,
		Plans:     store,
		Replacer:  replacer,
		Recipes:   handlers.NewRecipeHandler(parser, validator, selector),
		Queue:     queue,
		Dedup:     markers,
		Readiness: readiness,
	})
	if err != nil {
		common.LogFatal("Failed to setup router", zap.Error(err))
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		common.LogInfo("啟動應用",
			zap.String("version", cfg.App.Version),
			zap.String("env", cfg.App.Env),
			zap.Int("port", cfg.Server.Port),
			zap.String("storage", cfg.Storage.Driver),
			zap.Bool("redis", cfg.Redis.Enabled),
			zap.Bool("remote_generator", generator.Available()),
		)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			common.LogFatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	common.LogInfo("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		common.LogError("Server forced to shutdown", zap.Error(err))
	}

	// 執行中的任務保持 running，重新啟動後可由客戶端續跑
	queue.Close()

	common.LogInfo("Server exited")
}
