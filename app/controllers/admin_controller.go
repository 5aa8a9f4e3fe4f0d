package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/AlexVargas/PromptDeck/internal/pkg/database"
)

// HandleSweepSubscriptions runs the subscription expiry sweep on demand,
// outside the regular schedule.
func HandleSweepSubscriptions(c *fiber.Ctx) error {
	subs := subscriptionService(database.GetDB())
	expired, err := subs.SweepExpired(c.UserContext())
	if err != nil {
		log.Errorf("on-demand expiry sweep failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Sweep failed"})
	}
	return c.JSON(fiber.Map{"ok": true, "expired": expired})
}
