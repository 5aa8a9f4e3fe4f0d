package subscription

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AlexVargas/PromptDeck/app/models"
	"github.com/AlexVargas/PromptDeck/internal/pkg/plans"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrNoActiveSubscription = errors.New("no active subscription found")
	ErrAlreadyCanceled      = errors.New("subscription is already canceled")
	ErrInvalidStatus        = errors.New("invalid subscription status")
)

// UserGetter resolves user ids; satisfied by repository.UserRepository.
type UserGetter interface {
	GetByID(id uint) (*models.User, error)
}

// PromptCounter counts prompts created by a user since a point in time;
// satisfied by repository.PromptRepository. Used for quota enforcement.
type PromptCounter interface {
	CountByUserIDSince(userID uint, since time.Time) (int64, error)
}

// Service owns the subscription lifecycle: creation, activation from billing
// events, cancellation, status sync and plan entitlement reads. All mutations
// to subscription rows go through here.
type Service struct {
	repo    Repository
	users   UserGetter
	prompts PromptCounter
}

// NewService creates a subscription service from injected dependencies.
func NewService(repo Repository, users UserGetter, prompts PromptCounter) *Service {
	return &Service{repo: repo, users: users, prompts: prompts}
}

// GetUserSubscription returns the user's current subscription row, or
// ErrSubscriptionNotFound if the user never had one.
func (s *Service) GetUserSubscription(ctx context.Context, userID uint) (*models.Subscription, error) {
	_ = ctx
	sub, err := s.repo.FindCurrentByUserID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	return sub, nil
}

// CreateFreeSubscription enrolls a user on the free plan. Called at
// registration; idempotent, an existing subscription is returned unchanged.
func (s *Service) CreateFreeSubscription(ctx context.Context, user *models.User) (*models.Subscription, error) {
	_ = ctx
	if user == nil || user.ID == 0 {
		return nil, ErrUserNotFound
	}

	var result *models.Subscription
	err := s.repo.Transaction(func(tx Repository) error {
		if err := tx.LockUserByID(user.ID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}

		existing, err := tx.LockCurrentByUserID(user.ID)
		if err == nil {
			log.Infof("user %d already has a subscription on plan %s", user.ID, existing.PlanID)
			result = existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		sub := &models.Subscription{
			UserID:    user.ID,
			PlanID:    plans.PlanFree,
			Status:    models.SubscriptionStatusActive,
			StartDate: today(),
		}
		if err := tx.Create(sub); err != nil {
			return err
		}
		log.Infof("created free subscription for user %d", user.ID)
		result = sub
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Activate applies a paid plan becoming active: the prior plan period (if any)
// is closed out as CANCELED with today's end date and a fresh ACTIVE row is
// created carrying the Stripe correlation refs. Replaying the same activation
// leaves the rows untouched.
func (s *Service) Activate(ctx context.Context, userID uint, stripeSubscriptionID, stripeCustomerID, stripePriceID string) (*models.Subscription, error) {
	_ = ctx
	if _, err := s.users.GetByID(userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrUserNotFound, userID)
		}
		return nil, err
	}

	planID, err := plans.ResolveByPriceRef(stripePriceID)
	if err != nil {
		if !errors.Is(err, plans.ErrUnknownPriceRef) {
			return nil, err
		}
		log.Warnf("unknown stripe price ref %q for user %d, falling back to plan %s", stripePriceID, userID, planID)
	}

	var result *models.Subscription
	err = s.repo.Transaction(func(tx Repository) error {
		if err := tx.LockUserByID(userID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: id %d", ErrUserNotFound, userID)
			}
			return err
		}

		existing, err := tx.LockCurrentByUserID(userID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if existing != nil {
			// Duplicate delivery of the same activation is a no-op.
			if existing.Status == models.SubscriptionStatusActive &&
				existing.StripeSubscriptionID == strings.TrimSpace(stripeSubscriptionID) &&
				existing.PlanID == planID {
				result = existing
				return nil
			}

			end := today()
			existing.Status = models.SubscriptionStatusCanceled
			existing.EndDate = &end
			if err := tx.Save(existing); err != nil {
				return err
			}
			log.Infof("closed out %s subscription for user %d", existing.PlanID, userID)
		}

		sub := &models.Subscription{
			UserID:               userID,
			PlanID:               planID,
			Status:               models.SubscriptionStatusActive,
			StripeSubscriptionID: strings.TrimSpace(stripeSubscriptionID),
			StripeCustomerID:     strings.TrimSpace(stripeCustomerID),
			StripePriceID:        strings.TrimSpace(stripePriceID),
			StartDate:            today(),
		}
		if err := tx.Create(sub); err != nil {
			return err
		}
		log.Infof("activated %s subscription for user %d (stripe id %s)", planID, userID, stripeSubscriptionID)
		result = sub
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Cancel marks the user's current subscription CANCELED with today's end date.
// Entitlements survive until the end date; the expiry sweep downgrades later.
func (s *Service) Cancel(ctx context.Context, userID uint) (*models.Subscription, error) {
	_ = ctx
	var result *models.Subscription
	err := s.repo.Transaction(func(tx Repository) error {
		sub, err := tx.LockCurrentByUserID(userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNoActiveSubscription
			}
			return err
		}
		if sub.Status == models.SubscriptionStatusCanceled {
			return ErrAlreadyCanceled
		}

		end := today()
		sub.Status = models.SubscriptionStatusCanceled
		sub.EndDate = &end
		if err := tx.Save(sub); err != nil {
			return err
		}
		log.Infof("canceled subscription for user %d (plan %s)", userID, sub.PlanID)
		result = sub
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateStatus syncs a subscription, looked up by its Stripe id, to a new
// internal status. CANCELED and UNPAID close the period with today's end
// date; ACTIVE reactivates and clears it. Reapplying the same status is a
// no-op, so duplicate webhook delivery converges.
func (s *Service) UpdateStatus(ctx context.Context, stripeSubscriptionID, status string) (*models.Subscription, error) {
	_ = ctx
	if !models.IsValidSubscriptionStatus(status) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	var result *models.Subscription
	err := s.repo.Transaction(func(tx Repository) error {
		sub, err := tx.LockByStripeSubscriptionID(strings.TrimSpace(stripeSubscriptionID))
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: stripe id %s", ErrSubscriptionNotFound, stripeSubscriptionID)
			}
			return err
		}

		sub.Status = status
		switch status {
		case models.SubscriptionStatusCanceled, models.SubscriptionStatusUnpaid:
			end := today()
			sub.EndDate = &end
		case models.SubscriptionStatusActive:
			sub.EndDate = nil
		}
		if err := tx.Save(sub); err != nil {
			return err
		}
		log.Infof("updated subscription status to %s for user %d (stripe id %s)", status, sub.UserID, stripeSubscriptionID)
		result = sub
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// FindUserByStripeCustomerID resolves a Stripe customer ref to the owning user
// via the newest subscription row carrying that ref.
func (s *Service) FindUserByStripeCustomerID(ctx context.Context, stripeCustomerID string) (uint, error) {
	_ = ctx
	sub, err := s.repo.FindByStripeCustomerID(strings.TrimSpace(stripeCustomerID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, fmt.Errorf("%w: stripe customer %s", ErrSubscriptionNotFound, stripeCustomerID)
		}
		return 0, err
	}
	return sub.UserID, nil
}

// IsActive reports whether the user currently holds an ACTIVE subscription.
func (s *Service) IsActive(ctx context.Context, userID uint) bool {
	sub, err := s.GetUserSubscription(ctx, userID)
	return err == nil && sub.IsActive()
}

// CanCreatePrompt gates prompt creation: the subscription must be ACTIVE and
// the prompts created since the current period started must fall under the
// plan's limit.
func (s *Service) CanCreatePrompt(ctx context.Context, userID uint) (bool, error) {
	sub, err := s.GetUserSubscription(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrSubscriptionNotFound) {
			return false, nil
		}
		return false, err
	}
	if !sub.IsActive() {
		return false, nil
	}

	limit := plans.ByID(sub.PlanID).PromptLimit
	if limit == plans.PromptLimitUnlimited {
		return true, nil
	}
	used, err := s.prompts.CountByUserIDSince(userID, sub.StartDate)
	if err != nil {
		return false, err
	}
	return used < int64(limit), nil
}

// GetCurrentPlan returns the user's plan, defaulting to free when the user has
// no subscription row.
func (s *Service) GetCurrentPlan(ctx context.Context, userID uint) plans.Plan {
	sub, err := s.GetUserSubscription(ctx, userID)
	if err != nil {
		return plans.ByID(plans.PlanFree)
	}
	return plans.ByID(sub.PlanID)
}

// PromptLimit returns the prompt quota of the user's current plan.
func (s *Service) PromptLimit(ctx context.Context, userID uint) int {
	return s.GetCurrentPlan(ctx, userID).PromptLimit
}

// HasCustomPrompts reports the custom-prompts entitlement of the current plan.
func (s *Service) HasCustomPrompts(ctx context.Context, userID uint) bool {
	return s.GetCurrentPlan(ctx, userID).CustomPrompts
}

// HasPrioritySupport reports the priority-support entitlement of the current plan.
func (s *Service) HasPrioritySupport(ctx context.Context, userID uint) bool {
	return s.GetCurrentPlan(ctx, userID).PrioritySupport
}

// CanUpgrade applies the strict plan hierarchy free < premium < pro. Users
// without a subscription, or with an inactive one, may buy any plan.
func (s *Service) CanUpgrade(ctx context.Context, userID uint, targetPlanID string) bool {
	sub, err := s.GetUserSubscription(ctx, userID)
	if err != nil || !sub.IsActive() {
		return true
	}
	return plans.Rank(targetPlanID) > plans.Rank(sub.PlanID)
}

// CanDowngrade is the symmetric strictly-lower rule. With no subscription
// there is nothing to downgrade from.
func (s *Service) CanDowngrade(ctx context.Context, userID uint, targetPlanID string) bool {
	sub, err := s.GetUserSubscription(ctx, userID)
	if err != nil {
		return false
	}
	if !sub.IsActive() {
		return true
	}
	return plans.Rank(targetPlanID) < plans.Rank(sub.PlanID)
}

// today returns the current date truncated to midnight local time; start and
// end dates are calendar dates, not instants.
func today() time.Time {
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}
