package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"meal-plan-generator/internal/api/handlers"
	"meal-plan-generator/internal/api/handlers/health"
	"meal-plan-generator/internal/api/middleware"
	"meal-plan-generator/internal/core/job"
	"meal-plan-generator/internal/core/plan"
	"meal-plan-generator/internal/infrastructure/config"
	"meal-plan-generator/internal/infrastructure/kv"
	"meal-plan-generator/internal/infrastructure/metrics"
	"meal-plan-generator/internal/pkg/common"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// 同步請求的超時；任務執行在背景，不受此限制
const timeoutDuration = 150 * time.Second

// Services 路由需要的服務
type Services struct {
	Jobs      handlers.JobService
	Plans     plan.PlanStore
	Replacer  handlers.SlotReplacer
	Recipes   *handlers.RecipeHandler
	Queue     *job.Queue
	Dedup     kv.Store
	Readiness map[string]health.Check
}

// SetupRouter 設置路由
func SetupRouter(cfg *config.Config, svc *Services) (*gin.Engine, error) {
	if svc == nil || svc.Jobs == nil || svc.Plans == nil || svc.Replacer == nil {
		return nil, errors.New("router requires job, plan and replacement services")
	}
	common.LogInfo("Starting router setup",
		zap.Bool("debug_mode", cfg.App.Debug),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Env),
	)

	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(middleware.Recovery())
	router.Use(requestid.New())
	router.Use(middleware.Logger())
	router.Use(metrics.GinMiddleware())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	router.Use(middleware.BodySizeLimit(cfg.Server.MaxBodyBytes))

	// 同步請求超時
	router.Use(func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeoutDuration)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		if ctx.Err() == context.DeadlineExceeded && !c.Writer.Written() {
			common.LogError("Request timeout",
				zap.String("path", c.Request.URL.Path),
				zap.String("request_id", requestid.Get(c)),
				zap.Duration("timeout", timeoutDuration),
			)
			c.AbortWithStatusJSON(http.StatusGatewayTimeout, common.ErrorResponse{
				Code:    common.ErrCodeRemoteTimeout,
				Message: common.ErrRemoteTimeout.Message,
			})
		}
	})

	healthHandler := health.NewHandler(cfg.App.Version, svc.Queue, svc.Readiness)
	router.GET("/health", healthHandler.HealthCheck)
	router.GET("/ready", healthHandler.ReadinessCheck)
	router.GET("/live", healthHandler.LivenessCheck)
	router.GET("/metrics", metrics.Handler())

	api := router.Group("/api/v1")
	if cfg.RateLimit.Enabled {
		api.Use(middleware.RateLimit(cfg.RateLimit.Requests, cfg.RateLimit.Window))
	}
	if svc.Dedup != nil {
		api.Use(middleware.Deduplication(svc.Dedup, cfg.DedupWindow))
	}

	planHandler := handlers.NewPlanHandler(svc.Jobs, svc.Plans, svc.Replacer)
	planGroup := api.Group("/plan")
	{
		planGroup.POST("/jobs", planHandler.StartJob)
		planGroup.GET("/jobs/latest", planHandler.LatestJob)
		planGroup.GET("/jobs/:id", planHandler.PollJob)
		planGroup.POST("/jobs/:id/run", planHandler.RunJob)
		planGroup.POST("/jobs/:id/continue", planHandler.ContinueJob)
		planGroup.POST("/jobs/:id/cancel", planHandler.CancelJob)

		planGroup.GET("/days/:day", planHandler.GetDay)
		planGroup.POST("/slots/replace", planHandler.ReplaceSlot)
	}

	if svc.Recipes != nil {
		recipeGroup := api.Group("/recipes")
		{
			recipeGroup.POST("/generate", svc.Recipes.Generate)
			recipeGroup.POST("/parse", svc.Recipes.Parse)
		}
	}

	common.LogInfo("Router setup completed successfully",
		zap.Bool("rate_limit", cfg.RateLimit.Enabled),
		zap.Bool("deduplication", svc.Dedup != nil),
		zap.Duration("timeout", timeoutDuration),
		zap.Int64("max_body_size", cfg.Server.MaxBodyBytes),
	)

	return router, nil
}
