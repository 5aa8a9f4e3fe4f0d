package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/AlexVargas/PromptDeck/internal/pkg/cache"
	"github.com/AlexVargas/PromptDeck/internal/pkg/database"
)

// HandleHealth reports liveness of the service and its backing stores.
func HandleHealth(c *fiber.Ctx) error {
	dbOK := false
	if db := database.GetDB(); db != nil {
		if sqlDB, err := db.DB(); err == nil && sqlDB.Ping() == nil {
			dbOK = true
		}
	}

	cacheOK := false
	if client := cache.GetClient(); client != nil {
		cacheOK = client.Ping(c.UserContext()).Err() == nil
	}

	status := fiber.StatusOK
	overall := "ok"
	if !dbOK || !cacheOK {
		status = fiber.StatusServiceUnavailable
		overall = "degraded"
	}
	return c.Status(status).JSON(fiber.Map{
		"status":   overall,
		"database": dbOK,
		"cache":    cacheOK,
	})
}
