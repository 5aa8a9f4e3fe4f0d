package main

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/AlexVargas/PromptDeck/app/repository"
	"github.com/AlexVargas/PromptDeck/internal/pkg/cache"
	"github.com/AlexVargas/PromptDeck/internal/pkg/database"
	"github.com/AlexVargas/PromptDeck/internal/pkg/env"
	"github.com/AlexVargas/PromptDeck/internal/pkg/router"
	"github.com/AlexVargas/PromptDeck/internal/pkg/subscription"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func main() {
	app := NewApplication()
	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()
	repository.InitializeFactory(database.GetDB())

	app := fiber.New(fiber.Config{
		AppName:   "PromptDeck",
		BodyLimit: 1 << 20, // 1 MiB, JSON payloads only
	})
	app.Use(recover.New(), logger.New())
	app.Get("/metrics", monitor.New())

	// ROUTER
	router.InstallRouter(app)

	// background downgrade of lapsed subscriptions
	repos := repository.GetGlobalRepositories()
	subs := subscription.NewService(subscription.NewRepository(database.GetDB()), repos.User, repos.Prompt)
	subs.StartSweeper(context.Background(), sweepInterval())

	return app
}

func sweepInterval() time.Duration {
	hours, err := strconv.Atoi(env.GetEnv("SUBSCRIPTION_SWEEP_INTERVAL_HOURS", "24"))
	if err != nil || hours <= 0 {
		hours = 24
	}
	return time.Duration(hours) * time.Hour
}
