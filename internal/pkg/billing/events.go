package billing

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/AlexVargas/PromptDeck/app/models"
	"github.com/stripe/stripe-go/v82"
)

// Stripe event types the reconciler reacts to. Everything else is persisted
// and acknowledged without side effects.
const (
	EventCheckoutSessionCompleted = "checkout.session.completed"
	EventSubscriptionCreated      = "customer.subscription.created"
	EventSubscriptionUpdated      = "customer.subscription.updated"
	EventSubscriptionDeleted      = "customer.subscription.deleted"
	EventInvoicePaymentSucceeded  = "invoice.payment_succeeded"
	EventInvoicePaymentFailed     = "invoice.payment_failed"
)

// Event is the provider-neutral shape the reconciler consumes. Refs are the
// provider's opaque ids; Status is already mapped to the internal vocabulary.
type Event struct {
	ProviderEventID string
	Type            string
	SubscriptionRef string
	CustomerRef     string
	PriceRef        string
	Status          string
	Metadata        map[string]string
}

// invoicePayload pulls the subscription ref out of an invoice event. Older
// API versions carry it at the top level, newer ones under parent.
type invoicePayload struct {
	Subscription string `json:"subscription"`
	Customer     string `json:"customer"`
	Parent       struct {
		SubscriptionDetails struct {
			Subscription string `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
}

// ParseStripeEvent normalizes a verified Stripe event into an Event. Payload
// shapes we cannot interpret surface as errors; unknown subscription statuses
// are passed through empty so the reconciler can skip them.
func ParseStripeEvent(ev *stripe.Event) (Event, error) {
	out := Event{
		ProviderEventID: ev.ID,
		Type:            string(ev.Type),
	}

	switch out.Type {
	case EventCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &session); err != nil {
			return out, fmt.Errorf("parse checkout session payload: %w", err)
		}
		if session.Subscription != nil {
			out.SubscriptionRef = session.Subscription.ID
		}
		if session.Customer != nil {
			out.CustomerRef = session.Customer.ID
		}
		out.Metadata = session.Metadata

	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(ev.Data.Raw, &sub); err != nil {
			return out, fmt.Errorf("parse subscription payload: %w", err)
		}
		out.SubscriptionRef = sub.ID
		if sub.Customer != nil {
			out.CustomerRef = sub.Customer.ID
		}
		if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
			out.PriceRef = sub.Items.Data[0].Price.ID
		}
		out.Status = NormalizeProviderStatus(string(sub.Status))
		out.Metadata = sub.Metadata

	case EventInvoicePaymentSucceeded, EventInvoicePaymentFailed:
		var inv invoicePayload
		if err := json.Unmarshal(ev.Data.Raw, &inv); err != nil {
			return out, fmt.Errorf("parse invoice payload: %w", err)
		}
		out.SubscriptionRef = inv.Subscription
		if out.SubscriptionRef == "" {
			out.SubscriptionRef = inv.Parent.SubscriptionDetails.Subscription
		}
		out.CustomerRef = inv.Customer
	}

	return out, nil
}

// NormalizeProviderStatus maps Stripe subscription statuses onto the internal
// vocabulary. Unrecognized values map to the empty string.
func NormalizeProviderStatus(providerStatus string) string {
	switch strings.ToLower(strings.TrimSpace(providerStatus)) {
	case "active", "trialing":
		return models.SubscriptionStatusActive
	case "canceled":
		return models.SubscriptionStatusCanceled
	case "past_due":
		return models.SubscriptionStatusPastDue
	case "unpaid", "incomplete", "incomplete_expired":
		return models.SubscriptionStatusUnpaid
	default:
		return ""
	}
}
