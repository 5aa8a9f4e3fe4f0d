package controllers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/AlexVargas/PromptDeck/app/models"
	"github.com/AlexVargas/PromptDeck/app/repository"
	"github.com/AlexVargas/PromptDeck/internal/pkg/database"
	"github.com/AlexVargas/PromptDeck/internal/pkg/plans"
	"github.com/AlexVargas/PromptDeck/internal/pkg/usercontext"
)

// HandleGetUserAccount returns account information for the authenticated user.
func HandleGetUserAccount(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	repos := repository.GetGlobalFactory().GetRepositories()
	account, err := repos.User.GetByID(userCtx.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "User not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load user"})
	}

	promptCount, err := repos.Prompt.CountByUserID(userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load statistics"})
	}

	subs := subscriptionService(database.GetDB())
	plan := subs.GetCurrentPlan(c.UserContext(), userCtx.UserID)

	var limit interface{}
	if plan.PromptLimit != plans.PromptLimitUnlimited {
		limit = plan.PromptLimit
	}

	return c.JSON(fiber.Map{
		"id":            account.ID,
		"username":      account.Name,
		"email":         account.Email,
		"status":        account.Status,
		"plan":          plan.ID,
		"is_admin":      account.Role == models.ROLE_ADMIN,
		"created_at":    account.CreatedAt.UTC().Format(time.RFC3339),
		"last_login_at": formatTimePtr(account.LastLoginAt),
		"stats": fiber.Map{
			"prompts": fiber.Map{
				"count": promptCount,
			},
		},
		"limits": fiber.Map{
			"prompt_limit":     limit,
			"custom_prompts":   plan.CustomPrompts,
			"priority_support": plan.PrioritySupport,
		},
	})
}
