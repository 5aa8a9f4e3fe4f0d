package billing

import (
	"context"
	"errors"
	"strconv"

	"github.com/AlexVargas/PromptDeck/app/models"
	"github.com/AlexVargas/PromptDeck/internal/pkg/subscription"
	"github.com/gofiber/fiber/v2/log"
)

// SubscriptionManager is the lifecycle surface the reconciler drives;
// satisfied by subscription.Service.
type SubscriptionManager interface {
	Activate(ctx context.Context, userID uint, stripeSubscriptionID, stripeCustomerID, stripePriceID string) (*models.Subscription, error)
	UpdateStatus(ctx context.Context, stripeSubscriptionID, status string) (*models.Subscription, error)
	FindUserByStripeCustomerID(ctx context.Context, stripeCustomerID string) (uint, error)
}

// Reconciler translates normalized billing events into subscription lifecycle
// calls. It is tolerant by design: events that reference unknown users or
// subscriptions are logged and dropped, never retried into a crash loop.
type Reconciler struct {
	manager SubscriptionManager
}

// NewReconciler creates a reconciler driving the given lifecycle manager.
func NewReconciler(manager SubscriptionManager) *Reconciler {
	return &Reconciler{manager: manager}
}

// Apply dispatches one event. A nil return means the event is settled, either
// acted upon or deliberately dropped. Errors are transient infrastructure
// failures only.
func (r *Reconciler) Apply(ctx context.Context, ev Event) error {
	switch ev.Type {
	case EventCheckoutSessionCompleted:
		// Activation is driven by customer.subscription.created; the session
		// completion is only interesting for the trail.
		log.Infof("checkout session completed for customer %s (subscription %s)", ev.CustomerRef, ev.SubscriptionRef)
		return nil

	case EventSubscriptionCreated:
		userID := r.resolveUser(ctx, ev)
		if userID == 0 {
			log.Warnf("dropping %s: no user resolvable for customer %s", ev.Type, ev.CustomerRef)
			return nil
		}
		_, err := r.manager.Activate(ctx, userID, ev.SubscriptionRef, ev.CustomerRef, ev.PriceRef)
		if errors.Is(err, subscription.ErrUserNotFound) {
			log.Warnf("dropping %s: user %d vanished", ev.Type, userID)
			return nil
		}
		return err

	case EventSubscriptionUpdated:
		if ev.Status == "" {
			log.Warnf("dropping %s for %s: unmapped provider status", ev.Type, ev.SubscriptionRef)
			return nil
		}
		return r.updateStatus(ctx, ev, ev.Status)

	case EventSubscriptionDeleted:
		return r.updateStatus(ctx, ev, models.SubscriptionStatusCanceled)

	case EventInvoicePaymentSucceeded:
		if ev.SubscriptionRef == "" {
			// One-off invoices carry no subscription ref.
			return nil
		}
		return r.updateStatus(ctx, ev, models.SubscriptionStatusActive)

	case EventInvoicePaymentFailed:
		if ev.SubscriptionRef == "" {
			return nil
		}
		return r.updateStatus(ctx, ev, models.SubscriptionStatusPastDue)

	default:
		log.Debugf("ignoring billing event type %s", ev.Type)
		return nil
	}
}

// resolveUser prefers the user_id metadata stamped onto the checkout session's
// subscription, falling back to the customer ref of a previous subscription.
func (r *Reconciler) resolveUser(ctx context.Context, ev Event) uint {
	if raw, ok := ev.Metadata["user_id"]; ok {
		if id, err := strconv.ParseUint(raw, 10, 64); err == nil && id > 0 {
			return uint(id)
		}
		log.Warnf("unparseable user_id metadata %q on event %s", raw, ev.ProviderEventID)
	}
	if ev.CustomerRef == "" {
		return 0
	}
	userID, err := r.manager.FindUserByStripeCustomerID(ctx, ev.CustomerRef)
	if err != nil {
		if !errors.Is(err, subscription.ErrSubscriptionNotFound) {
			log.Errorf("customer lookup failed for %s: %v", ev.CustomerRef, err)
		}
		return 0
	}
	return userID
}

func (r *Reconciler) updateStatus(ctx context.Context, ev Event, status string) error {
	_, err := r.manager.UpdateStatus(ctx, ev.SubscriptionRef, status)
	if errors.Is(err, subscription.ErrSubscriptionNotFound) {
		log.Warnf("dropping %s: no local subscription for %s", ev.Type, ev.SubscriptionRef)
		return nil
	}
	return err
}
