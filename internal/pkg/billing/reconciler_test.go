package billing

import (
	"context"
	"testing"

	"github.com/AlexVargas/PromptDeck/app/models"
	"github.com/AlexVargas/PromptDeck/internal/pkg/subscription"
)

type managerCall struct {
	op     string
	userID uint
	subRef string
	status string
}

type fakeManager struct {
	calls        []managerCall
	userByCust   map[string]uint
	unknownRefs  map[string]bool
	activateErr  error
	updateStatus error
}

func (f *fakeManager) Activate(ctx context.Context, userID uint, subRef, custRef, priceRef string) (*models.Subscription, error) {
	f.calls = append(f.calls, managerCall{op: "activate", userID: userID, subRef: subRef})
	if f.activateErr != nil {
		return nil, f.activateErr
	}
	return &models.Subscription{UserID: userID, StripeSubscriptionID: subRef}, nil
}

func (f *fakeManager) UpdateStatus(ctx context.Context, subRef, status string) (*models.Subscription, error) {
	f.calls = append(f.calls, managerCall{op: "update", subRef: subRef, status: status})
	if f.updateStatus != nil {
		return nil, f.updateStatus
	}
	if f.unknownRefs[subRef] {
		return nil, subscription.ErrSubscriptionNotFound
	}
	return &models.Subscription{StripeSubscriptionID: subRef, Status: status}, nil
}

func (f *fakeManager) FindUserByStripeCustomerID(ctx context.Context, custRef string) (uint, error) {
	if id, ok := f.userByCust[custRef]; ok {
		return id, nil
	}
	return 0, subscription.ErrSubscriptionNotFound
}

func TestApplySubscriptionCreatedUsesMetadataUser(t *testing.T) {
	mgr := &fakeManager{}
	rec := NewReconciler(mgr)

	err := rec.Apply(context.Background(), Event{
		Type:            EventSubscriptionCreated,
		SubscriptionRef: "sub_1",
		CustomerRef:     "cus_1",
		PriceRef:        "price_premium_monthly",
		Status:          models.SubscriptionStatusActive,
		Metadata:        map[string]string{"user_id": "7"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mgr.calls) != 1 || mgr.calls[0].op != "activate" || mgr.calls[0].userID != 7 {
		t.Fatalf("calls = %+v, want single activate for user 7", mgr.calls)
	}
}

func TestApplySubscriptionCreatedFallsBackToCustomerLookup(t *testing.T) {
	mgr := &fakeManager{userByCust: map[string]uint{"cus_9": 9}}
	rec := NewReconciler(mgr)

	err := rec.Apply(context.Background(), Event{
		Type:            EventSubscriptionCreated,
		SubscriptionRef: "sub_9",
		CustomerRef:     "cus_9",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mgr.calls) != 1 || mgr.calls[0].userID != 9 {
		t.Fatalf("calls = %+v, want activate for user 9", mgr.calls)
	}
}

func TestApplySubscriptionCreatedUnresolvableUserIsDropped(t *testing.T) {
	mgr := &fakeManager{}
	rec := NewReconciler(mgr)

	err := rec.Apply(context.Background(), Event{
		Type:            EventSubscriptionCreated,
		SubscriptionRef: "sub_1",
		CustomerRef:     "cus_unknown",
	})
	if err != nil {
		t.Fatalf("unresolvable user must settle without error, got %v", err)
	}
	if len(mgr.calls) != 0 {
		t.Fatalf("expected no lifecycle calls, got %+v", mgr.calls)
	}
}

func TestApplyStatusEvents(t *testing.T) {
	tests := []struct {
		name       string
		event      Event
		wantStatus string
	}{
		{
			name:       "subscription updated",
			event:      Event{Type: EventSubscriptionUpdated, SubscriptionRef: "sub_1", Status: models.SubscriptionStatusPastDue},
			wantStatus: models.SubscriptionStatusPastDue,
		},
		{
			name:       "subscription deleted",
			event:      Event{Type: EventSubscriptionDeleted, SubscriptionRef: "sub_1"},
			wantStatus: models.SubscriptionStatusCanceled,
		},
		{
			name:       "invoice payment succeeded",
			event:      Event{Type: EventInvoicePaymentSucceeded, SubscriptionRef: "sub_1"},
			wantStatus: models.SubscriptionStatusActive,
		},
		{
			name:       "invoice payment failed",
			event:      Event{Type: EventInvoicePaymentFailed, SubscriptionRef: "sub_1"},
			wantStatus: models.SubscriptionStatusPastDue,
		},
	}

	for _, tt := range tests {
		mgr := &fakeManager{}
		rec := NewReconciler(mgr)
		if err := rec.Apply(context.Background(), tt.event); err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.name, err)
		}
		if len(mgr.calls) != 1 || mgr.calls[0].op != "update" || mgr.calls[0].status != tt.wantStatus {
			t.Fatalf("%s: calls = %+v, want update to %s", tt.name, mgr.calls, tt.wantStatus)
		}
	}
}

func TestApplyUnknownSubscriptionRefIsDropped(t *testing.T) {
	mgr := &fakeManager{unknownRefs: map[string]bool{"sub_ghost": true}}
	rec := NewReconciler(mgr)

	err := rec.Apply(context.Background(), Event{Type: EventSubscriptionDeleted, SubscriptionRef: "sub_ghost"})
	if err != nil {
		t.Fatalf("unknown subscription ref must settle without error, got %v", err)
	}
}

func TestApplyUnmappedStatusIsSkipped(t *testing.T) {
	mgr := &fakeManager{}
	rec := NewReconciler(mgr)

	err := rec.Apply(context.Background(), Event{Type: EventSubscriptionUpdated, SubscriptionRef: "sub_1", Status: ""})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mgr.calls) != 0 {
		t.Fatalf("expected no calls for unmapped status, got %+v", mgr.calls)
	}
}

func TestApplyInvoiceWithoutSubscriptionRefIsIgnored(t *testing.T) {
	mgr := &fakeManager{}
	rec := NewReconciler(mgr)

	for _, typ := range []string{EventInvoicePaymentSucceeded, EventInvoicePaymentFailed} {
		if err := rec.Apply(context.Background(), Event{Type: typ}); err != nil {
			t.Fatalf("%s: unexpected error: %v", typ, err)
		}
	}
	if len(mgr.calls) != 0 {
		t.Fatalf("expected no calls, got %+v", mgr.calls)
	}
}

func TestApplyIgnoresUnknownEventTypes(t *testing.T) {
	mgr := &fakeManager{}
	rec := NewReconciler(mgr)

	if err := rec.Apply(context.Background(), Event{Type: "charge.refunded"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mgr.calls) != 0 {
		t.Fatalf("expected no calls, got %+v", mgr.calls)
	}
}

func TestApplyCheckoutSessionCompletedIsLogOnly(t *testing.T) {
	mgr := &fakeManager{}
	rec := NewReconciler(mgr)

	err := rec.Apply(context.Background(), Event{
		Type:            EventCheckoutSessionCompleted,
		SubscriptionRef: "sub_1",
		CustomerRef:     "cus_1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mgr.calls) != 0 {
		t.Fatalf("expected no lifecycle calls, got %+v", mgr.calls)
	}
}
