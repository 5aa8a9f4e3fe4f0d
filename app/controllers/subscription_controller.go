package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/AlexVargas/PromptDeck/internal/pkg/billing"
	"github.com/AlexVargas/PromptDeck/internal/pkg/database"
	"github.com/AlexVargas/PromptDeck/internal/pkg/plans"
	"github.com/AlexVargas/PromptDeck/internal/pkg/subscription"
	"github.com/AlexVargas/PromptDeck/internal/pkg/usercontext"
)

// HandleGetPlans returns the public plan catalog.
func HandleGetPlans(c *fiber.Ctx) error {
	catalog := plans.List()
	items := make([]fiber.Map, 0, len(catalog))
	for _, p := range catalog {
		var limit interface{}
		if p.PromptLimit != plans.PromptLimitUnlimited {
			limit = p.PromptLimit
		}
		items = append(items, fiber.Map{
			"id":               p.ID,
			"display_name":     p.DisplayName,
			"description":      p.Description,
			"price":            p.PriceAmount,
			"currency":         p.Currency,
			"billing_interval": p.BillingInterval,
			"prompt_limit":     limit,
			"custom_prompts":   p.CustomPrompts,
			"priority_support": p.PrioritySupport,
		})
	}
	return c.JSON(fiber.Map{"plans": items})
}

// HandleGetMySubscription returns the user's current subscription together
// with plan entitlements and quota usage.
func HandleGetMySubscription(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	subs := subscriptionService(database.GetDB())

	plan := subs.GetCurrentPlan(c.UserContext(), userCtx.UserID)
	response := fiber.Map{
		"plan": fiber.Map{
			"id":               plan.ID,
			"display_name":     plan.DisplayName,
			"custom_prompts":   plan.CustomPrompts,
			"priority_support": plan.PrioritySupport,
		},
		"subscription": nil,
	}

	sub, err := subs.GetUserSubscription(c.UserContext(), userCtx.UserID)
	if err != nil && !errors.Is(err, subscription.ErrSubscriptionNotFound) {
		log.Errorf("subscription lookup failed for user %d: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load subscription"})
	}
	if err == nil {
		response["subscription"] = fiber.Map{
			"id":         sub.ID,
			"plan_id":    sub.PlanID,
			"status":     sub.Status,
			"start_date": sub.StartDate.Format("2006-01-02"),
			"end_date":   formatDatePtr(sub.EndDate),
			"active":     sub.IsActive(),
		}
	}

	limit := plan.PromptLimit
	if limit == plans.PromptLimitUnlimited {
		response["quota"] = fiber.Map{"prompt_limit": nil, "unlimited": true}
	} else {
		canCreate, err := subs.CanCreatePrompt(c.UserContext(), userCtx.UserID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to compute quota"})
		}
		response["quota"] = fiber.Map{"prompt_limit": limit, "unlimited": false, "can_create": canCreate}
	}

	return c.JSON(response)
}

// HandleCancelSubscription cancels the user's subscription, remotely first
// when a Stripe ref is present, then locally.
func HandleCancelSubscription(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	subs := subscriptionService(database.GetDB())

	current, err := subs.GetUserSubscription(c.UserContext(), userCtx.UserID)
	if err != nil {
		if errors.Is(err, subscription.ErrSubscriptionNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "No subscription to cancel"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load subscription"})
	}

	if current.StripeSubscriptionID != "" && current.IsActive() {
		gateway := billing.NewStripeGatewayFromEnv()
		if err := gateway.CancelSubscription(c.UserContext(), current.StripeSubscriptionID); err != nil {
			log.Errorf("stripe cancellation failed for user %d: %v", userCtx.UserID, err)
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "billing_provider_error", "message": "Failed to cancel with the billing provider"})
		}
	}

	canceled, err := subs.Cancel(c.UserContext(), userCtx.UserID)
	if err != nil {
		switch {
		case errors.Is(err, subscription.ErrNoActiveSubscription):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "No subscription to cancel"})
		case errors.Is(err, subscription.ErrAlreadyCanceled):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "already_canceled", "message": "Subscription is already canceled"})
		default:
			log.Errorf("cancellation failed for user %d: %v", userCtx.UserID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Cancellation failed"})
		}
	}

	return c.JSON(fiber.Map{
		"ok":       true,
		"status":   canceled.Status,
		"end_date": formatDatePtr(canceled.EndDate),
	})
}
