package controllers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/AlexVargas/PromptDeck/app/repository"
	"github.com/AlexVargas/PromptDeck/internal/pkg/billing"
	"github.com/AlexVargas/PromptDeck/internal/pkg/database"
	"github.com/AlexVargas/PromptDeck/internal/pkg/plans"
	"github.com/AlexVargas/PromptDeck/internal/pkg/usercontext"
)

type checkoutRequest struct {
	PlanID string `json:"plan_id"`
}

// HandleCreateCheckout opens a Stripe checkout for a paid plan. The plan
// hierarchy is enforced here: only upgrades over the current active plan are
// allowed through.
func HandleCreateCheckout(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var req checkoutRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}

	planID := plans.Normalize(req.PlanID)
	plan := plans.ByID(planID)
	if plan.StripePriceID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Plan cannot be purchased"})
	}

	subs := subscriptionService(database.GetDB())
	if !subs.CanUpgrade(c.UserContext(), userCtx.UserID, planID) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":   "not_an_upgrade",
			"message": "Target plan does not outrank the current plan",
			"current": subs.GetCurrentPlan(c.UserContext(), userCtx.UserID).ID,
		})
	}

	user, err := repository.GetGlobalFactory().GetUserRepository().GetByID(userCtx.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Unknown user"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load user"})
	}

	gateway := billing.NewStripeGatewayFromEnv()
	url, err := gateway.CreateCheckoutSession(c.UserContext(), user, planID)
	if err != nil {
		if errors.Is(err, billing.ErrPlanNotPurchasable) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Plan cannot be purchased"})
		}
		log.Errorf("checkout session creation failed for user %d: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "billing_provider_error", "message": "Failed to start checkout"})
	}

	return c.JSON(fiber.Map{"checkout_url": url, "plan_id": planID})
}

// HandleDowngradeCheck reports whether the user could downgrade to the given
// plan; the actual downgrade happens through cancellation and re-purchase.
func HandleDowngradeCheck(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	target := plans.Normalize(strings.TrimSpace(c.Query("plan_id")))

	subs := subscriptionService(database.GetDB())
	return c.JSON(fiber.Map{
		"plan_id":       target,
		"can_downgrade": subs.CanDowngrade(c.UserContext(), userCtx.UserID, target),
		"current":       subs.GetCurrentPlan(c.UserContext(), userCtx.UserID).ID,
	})
}
