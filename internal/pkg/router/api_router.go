package router

import (
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/storage/redis"

	"github.com/AlexVargas/PromptDeck/app/controllers"
	"github.com/AlexVargas/PromptDeck/internal/pkg/cache"
	"github.com/AlexVargas/PromptDeck/internal/pkg/env"
	"github.com/AlexVargas/PromptDeck/internal/pkg/middleware"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	app.Get("/health", controllers.HandleHealth)

	api := app.Group("/api", limiter.New(limiter.Config{
		Max:        rateLimitMax(),
		Expiration: 1 * time.Minute,
		Storage:    limiterStorage(),
	}))

	v1 := api.Group("/v1")

	auth := v1.Group("/auth")
	auth.Post("/register", controllers.HandleRegister)
	auth.Post("/login", controllers.HandleLogin)
	auth.Post("/refresh", controllers.HandleRefresh)
	auth.Post("/logout", controllers.HandleLogout)

	v1.Get("/plans", controllers.HandleGetPlans)
	v1.Post("/webhooks/stripe", controllers.HandleStripeWebhook)

	protected := v1.Group("", middleware.JWTAuthMiddleware(), middleware.RequireAuth)
	protected.Get("/me", controllers.HandleGetUserAccount)
	protected.Get("/me/subscription", controllers.HandleGetMySubscription)
	protected.Delete("/me/subscription", controllers.HandleCancelSubscription)
	protected.Post("/checkout", controllers.HandleCreateCheckout)
	protected.Get("/checkout/downgrade-check", controllers.HandleDowngradeCheck)

	prompts := protected.Group("/prompts")
	prompts.Post("/", controllers.HandleCreatePrompt)
	prompts.Get("/", controllers.HandleGetPrompts)
	prompts.Get("/:id", controllers.HandleGetPrompt)
	prompts.Put("/:id", controllers.HandleUpdatePrompt)
	prompts.Delete("/:id", controllers.HandleDeletePrompt)

	admin := protected.Group("/admin", middleware.RequireAdmin)
	admin.Post("/subscriptions/sweep", controllers.HandleSweepSubscriptions)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}

// limiterStorage backs the rate limiter with Redis so limits hold across
// instances. Configuration is derived from the shared cache client.
func limiterStorage() *redis.Storage {
	host := "localhost"
	port := 6379
	password := env.GetEnv("CACHE_PASSWORD", "")
	if cacheClient := cache.GetClient(); cacheClient != nil {
		addr := cacheClient.Options().Addr
		if h, p, err := net.SplitHostPort(addr); err == nil {
			host = h
			if v, err := strconv.Atoi(p); err == nil {
				port = v
			}
		}
		if p := cacheClient.Options().Password; p != "" {
			password = p
		}
	}

	return redis.New(redis.Config{
		Host:     host,
		Port:     port,
		Password: password,
		Database: 1, // rate limiter state lives apart from the cache DB
		Reset:    false,
	})
}

func rateLimitMax() int {
	max, err := strconv.Atoi(env.GetEnv("API_RATE_LIMIT_PER_MINUTE", "120"))
	if err != nil || max <= 0 {
		return 120
	}
	return max
}
