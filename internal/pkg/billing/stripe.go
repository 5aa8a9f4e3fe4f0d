package billing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/AlexVargas/PromptDeck/app/models"
	"github.com/AlexVargas/PromptDeck/internal/pkg/env"
	"github.com/AlexVargas/PromptDeck/internal/pkg/plans"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

var ErrPlanNotPurchasable = errors.New("plan cannot be purchased")

const stripeCallTimeout = 15 * time.Second

// StripeGateway wraps the Stripe API surface used for checkout and
// subscription management.
type StripeGateway struct {
	client        *stripe.Client
	webhookSecret string
	successURL    string
	cancelURL     string
}

// NewStripeGateway creates a gateway from explicit configuration.
func NewStripeGateway(secretKey, webhookSecret, successURL, cancelURL string) *StripeGateway {
	return &StripeGateway{
		client:        stripe.NewClient(secretKey, nil),
		webhookSecret: webhookSecret,
		successURL:    successURL,
		cancelURL:     cancelURL,
	}
}

// NewStripeGatewayFromEnv creates a gateway from environment configuration.
func NewStripeGatewayFromEnv() *StripeGateway {
	base := env.GetEnv("PUBLIC_DOMAIN", "http://localhost:8080")
	return NewStripeGateway(
		env.GetEnv("STRIPE_SECRET_KEY", ""),
		env.GetEnv("STRIPE_WEBHOOK_SECRET", ""),
		env.GetEnv("STRIPE_SUCCESS_URL", base+"/payment/success"),
		env.GetEnv("STRIPE_CANCEL_URL", base+"/payment/cancel"),
	)
}

// VerifyWebhook checks the Stripe-Signature header against the raw payload
// and returns the parsed event. API version mismatches are tolerated so a
// dashboard upgrade does not silently drop deliveries.
func (g *StripeGateway) VerifyWebhook(payload []byte, signature string) (*stripe.Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("webhook signature verification failed: %w", err)
	}
	return &event, nil
}

// CreateCheckoutSession opens a subscription-mode checkout for the given plan
// and returns the hosted payment URL. The user id is stamped into both the
// session and the resulting subscription so webhook events can be correlated.
func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, user *models.User, planID string) (string, error) {
	plan := plans.ByID(planID)
	if plan.StripePriceID == "" {
		return "", fmt.Errorf("%w: %s", ErrPlanNotPurchasable, planID)
	}

	metadata := map[string]string{
		"user_id": strconv.FormatUint(uint64(user.ID), 10),
		"plan_id": plan.ID,
	}
	params := &stripe.CheckoutSessionCreateParams{
		Mode:              stripe.String("subscription"),
		CustomerEmail:     stripe.String(user.Email),
		ClientReferenceID: stripe.String(uuid.New().String()),
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				Price:    stripe.String(plan.StripePriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(g.successURL),
		CancelURL:  stripe.String(g.cancelURL),
		Metadata:   metadata,
		SubscriptionData: &stripe.CheckoutSessionCreateSubscriptionDataParams{
			Metadata: metadata,
		},
	}

	ctx, cancel := context.WithTimeout(ctx, stripeCallTimeout)
	defer cancel()
	session, err := g.client.V1CheckoutSessions.Create(ctx, params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}

	log.Infof("created checkout session %s for user %d (plan %s)", session.ID, user.ID, plan.ID)
	return session.URL, nil
}

// CancelSubscription cancels the Stripe subscription immediately. The local
// row is closed by the customer.subscription.deleted webhook that follows.
func (g *StripeGateway) CancelSubscription(ctx context.Context, stripeSubscriptionID string) error {
	ctx, cancel := context.WithTimeout(ctx, stripeCallTimeout)
	defer cancel()
	_, err := g.client.V1Subscriptions.Cancel(ctx, stripeSubscriptionID, &stripe.SubscriptionCancelParams{})
	if err != nil {
		return fmt.Errorf("cancel stripe subscription %s: %w", stripeSubscriptionID, err)
	}
	log.Infof("canceled stripe subscription %s", stripeSubscriptionID)
	return nil
}
