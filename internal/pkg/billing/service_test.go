package billing

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/AlexVargas/PromptDeck/app/models"
)

type fakeEventRepo struct {
	events []*models.BillingWebhookEvent
	nextID uint
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{nextID: 1}
}

func (f *fakeEventRepo) CreateWebhookEventIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	for _, existing := range f.events {
		if existing.Provider == event.Provider && existing.ProviderEventID == event.ProviderEventID {
			clone := *existing
			return false, &clone, nil
		}
	}
	clone := *event
	clone.ID = f.nextID
	f.nextID++
	f.events = append(f.events, &clone)
	stored := clone
	return true, &stored, nil
}

func (f *fakeEventRepo) MarkWebhookProcessed(id uint, processingError string) error {
	for _, event := range f.events {
		if event.ID == id {
			now := time.Now()
			event.ProcessedAt = &now
			event.ProcessingError = processingError
			return nil
		}
	}
	return nil
}

func TestRecordWebhookEventDeduplicates(t *testing.T) {
	svc := NewService(newFakeEventRepo())
	ctx := context.Background()
	in := WebhookEventInput{
		Provider:        "Stripe",
		ProviderEventID: "evt_1",
		EventType:       EventSubscriptionCreated,
		PayloadJSON:     `{"id": "sub_1"}`,
		SignatureValid:  true,
	}

	created, stored, err := svc.RecordWebhookEvent(ctx, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created {
		t.Fatalf("first delivery must create the event")
	}
	if stored.Provider != models.BillingProviderStripe {
		t.Fatalf("provider = %q, want lowercased %q", stored.Provider, models.BillingProviderStripe)
	}

	created, replay, err := svc.RecordWebhookEvent(ctx, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created {
		t.Fatalf("replay must not create a second event")
	}
	if replay.ID != stored.ID {
		t.Fatalf("replay returned event %d, want stored event %d", replay.ID, stored.ID)
	}
}

func TestRecordWebhookEventHashFallbackID(t *testing.T) {
	svc := NewService(newFakeEventRepo())
	ctx := context.Background()
	in := WebhookEventInput{
		Provider:    models.BillingProviderStripe,
		PayloadJSON: `{"unverifiable": true}`,
	}

	created, stored, err := svc.RecordWebhookEvent(ctx, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created || !strings.HasPrefix(stored.ProviderEventID, "hash:") {
		t.Fatalf("created = %v, event id = %q, want hash fallback id", created, stored.ProviderEventID)
	}

	created, _, err = svc.RecordWebhookEvent(ctx, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created {
		t.Fatalf("identical payload must deduplicate via the hash id")
	}
}

func TestNeedsReprocessingAfterFailedAttempt(t *testing.T) {
	repo := newFakeEventRepo()
	svc := NewService(repo)
	ctx := context.Background()
	in := WebhookEventInput{
		Provider:        models.BillingProviderStripe,
		ProviderEventID: "evt_retry",
		EventType:       EventSubscriptionDeleted,
		PayloadJSON:     `{"id": "sub_1"}`,
		SignatureValid:  true,
	}

	_, stored, err := svc.RecordWebhookEvent(ctx, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !NeedsReprocessing(stored) {
		t.Fatalf("an event that was never processed must be reprocessable")
	}

	// First attempt fails; the provider's retry must get another shot.
	if err := svc.MarkWebhookProcessed(ctx, stored.ID, context.DeadlineExceeded); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, replay, err := svc.RecordWebhookEvent(ctx, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !NeedsReprocessing(replay) {
		t.Fatalf("a failed event must be reprocessable on retry")
	}

	// Retry succeeds; later replays are settled.
	if err := svc.MarkWebhookProcessed(ctx, stored.ID, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, replay, err = svc.RecordWebhookEvent(ctx, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if NeedsReprocessing(replay) {
		t.Fatalf("a settled event must not be reprocessed")
	}
	if NeedsReprocessing(nil) {
		t.Fatalf("nil event must not be reprocessed")
	}
}
