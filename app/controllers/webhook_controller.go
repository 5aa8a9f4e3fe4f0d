package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/AlexVargas/PromptDeck/app/models"
	"github.com/AlexVargas/PromptDeck/internal/pkg/billing"
	"github.com/AlexVargas/PromptDeck/internal/pkg/database"
)

// HandleStripeWebhook receives Stripe event deliveries: verify the signature,
// persist the event idempotently, reconcile it into the subscription
// lifecycle, and record the outcome on the stored event.
func HandleStripeWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := c.Get("Stripe-Signature")

	db := database.GetDB()
	svc := billing.NewServiceFromDB(db)
	gateway := billing.NewStripeGatewayFromEnv()
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	stripeEvent, verifyErr := gateway.VerifyWebhook(rawBody, signature)
	signatureValid := verifyErr == nil

	eventID := ""
	eventType := ""
	if stripeEvent != nil {
		eventID = stripeEvent.ID
		eventType = string(stripeEvent.Type)
	}

	created, stored, err := svc.RecordWebhookEvent(ctx, billing.WebhookEventInput{
		Provider:        models.BillingProviderStripe,
		ProviderEventID: eventID,
		EventType:       eventType,
		PayloadJSON:     string(rawBody),
		SignatureValid:  signatureValid,
	})
	if err != nil {
		log.Errorf("webhook persistence failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_persist_failed"})
	}
	// Replays of settled events are acknowledged without side effects; a retry
	// of an event whose first attempt failed runs reconciliation again.
	if !created && !billing.NeedsReprocessing(stored) {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "duplicate": true})
	}
	if !signatureValid {
		_ = svc.MarkWebhookProcessed(ctx, stored.ID, errors.New("invalid webhook signature"))
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_signature"})
	}

	event, err := billing.ParseStripeEvent(stripeEvent)
	if err != nil {
		_ = svc.MarkWebhookProcessed(ctx, stored.ID, err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	}

	reconciler := billing.NewReconciler(subscriptionService(db))
	applyErr := reconciler.Apply(ctx, event)
	_ = svc.MarkWebhookProcessed(ctx, stored.ID, applyErr)
	if applyErr != nil {
		log.Errorf("webhook reconciliation failed for event %s: %v", eventID, applyErr)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "reconciliation_failed"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}
