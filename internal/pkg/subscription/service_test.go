package subscription

import (
	"context"
	"sort"
	"time"

	"testing"

	"github.com/AlexVargas/PromptDeck/app/models"
	"github.com/AlexVargas/PromptDeck/internal/pkg/plans"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeRepo struct {
	subs        []*models.Subscription
	nextID      uint
	lockedUsers []uint
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{nextID: 1}
}

func (f *fakeRepo) Transaction(fn func(tx Repository) error) error {
	return fn(f)
}

func (f *fakeRepo) LockUserByID(userID uint) error {
	f.lockedUsers = append(f.lockedUsers, userID)
	return nil
}

func (f *fakeRepo) Create(sub *models.Subscription) error {
	clone := *sub
	clone.ID = f.nextID
	f.nextID++
	f.subs = append(f.subs, &clone)
	sub.ID = clone.ID
	return nil
}

func (f *fakeRepo) Save(sub *models.Subscription) error {
	for i, existing := range f.subs {
		if existing.ID == sub.ID {
			clone := *sub
			f.subs[i] = &clone
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeRepo) FindCurrentByUserID(userID uint) (*models.Subscription, error) {
	var matches []*models.Subscription
	for _, sub := range f.subs {
		if sub.UserID == userID {
			matches = append(matches, sub)
		}
	}
	if len(matches) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].StartDate.Equal(matches[j].StartDate) {
			return matches[i].ID > matches[j].ID
		}
		return matches[i].StartDate.After(matches[j].StartDate)
	})
	clone := *matches[0]
	return &clone, nil
}

func (f *fakeRepo) LockCurrentByUserID(userID uint) (*models.Subscription, error) {
	return f.FindCurrentByUserID(userID)
}

func (f *fakeRepo) FindByStripeSubscriptionID(ref string) (*models.Subscription, error) {
	for i := len(f.subs) - 1; i >= 0; i-- {
		if f.subs[i].StripeSubscriptionID == ref && ref != "" {
			clone := *f.subs[i]
			return &clone, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) LockByStripeSubscriptionID(ref string) (*models.Subscription, error) {
	return f.FindByStripeSubscriptionID(ref)
}

func (f *fakeRepo) FindByStripeCustomerID(ref string) (*models.Subscription, error) {
	for i := len(f.subs) - 1; i >= 0; i-- {
		if f.subs[i].StripeCustomerID == ref && ref != "" {
			clone := *f.subs[i]
			return &clone, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) ExpireDueBatch(before time.Time, batchSize int) (int64, error) {
	var n int64
	for _, sub := range f.subs {
		if n >= int64(batchSize) {
			break
		}
		if sub.Status == models.SubscriptionStatusActive && sub.EndDate != nil && sub.EndDate.Before(before) {
			sub.Status = models.SubscriptionStatusExpired
			n++
		}
	}
	return n, nil
}

func (f *fakeRepo) byUser(userID uint) []*models.Subscription {
	var out []*models.Subscription
	for _, sub := range f.subs {
		if sub.UserID == userID {
			out = append(out, sub)
		}
	}
	return out
}

type fakeUsers struct {
	users map[uint]*models.User
}

func (f *fakeUsers) GetByID(id uint) (*models.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

type fakePrompts struct {
	count int64
}

func (f *fakePrompts) CountByUserIDSince(userID uint, since time.Time) (int64, error) {
	return f.count, nil
}

func newTestService(repo *fakeRepo, promptCount int64) *Service {
	users := &fakeUsers{users: map[uint]*models.User{
		1: {ID: 1, Name: "tester", Email: "tester@example.com"},
	}}
	return NewService(repo, users, &fakePrompts{count: promptCount})
}

func TestCreateFreeSubscriptionIdempotent(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, 0)
	user := &models.User{ID: 1}

	first, err := svc.CreateFreeSubscription(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, plans.PlanFree, first.PlanID)
	assert.Equal(t, models.SubscriptionStatusActive, first.Status)
	assert.Nil(t, first.EndDate)

	second, err := svc.CreateFreeSubscription(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, repo.byUser(1), 1)
}

func TestActivateSupersedesPriorPlan(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, 0)
	ctx := context.Background()

	_, err := svc.CreateFreeSubscription(ctx, &models.User{ID: 1})
	require.NoError(t, err)

	sub, err := svc.Activate(ctx, 1, "sub_1", "cus_1", "price_premium_monthly")
	require.NoError(t, err)
	assert.Equal(t, plans.PlanPremium, sub.PlanID)
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
	assert.Equal(t, "sub_1", sub.StripeSubscriptionID)

	rows := repo.byUser(1)
	require.Len(t, rows, 2)

	var active, closed int
	for _, row := range rows {
		switch row.Status {
		case models.SubscriptionStatusActive:
			active++
			assert.Equal(t, plans.PlanPremium, row.PlanID)
		case models.SubscriptionStatusCanceled:
			closed++
			require.NotNil(t, row.EndDate)
			assert.Equal(t, today(), *row.EndDate)
		}
	}
	assert.Equal(t, 1, active)
	assert.Equal(t, 1, closed)
}

func TestActivateDuplicateDeliveryIsNoop(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, 0)
	ctx := context.Background()

	first, err := svc.Activate(ctx, 1, "sub_1", "cus_1", "price_premium_monthly")
	require.NoError(t, err)

	second, err := svc.Activate(ctx, 1, "sub_1", "cus_1", "price_premium_monthly")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, repo.byUser(1), 1)
}

func TestActivateUnknownUser(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, 0)

	_, err := svc.Activate(context.Background(), 42, "sub_x", "cus_x", "price_pro_monthly")
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.Empty(t, repo.subs)
}

func TestActivateUnknownPriceRefFallsBackToFree(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, 0)

	sub, err := svc.Activate(context.Background(), 1, "sub_1", "cus_1", "price_mystery_tier")
	require.NoError(t, err)
	assert.Equal(t, plans.PlanFree, sub.PlanID)
}

func TestCancelLifecycle(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, 0)
	ctx := context.Background()

	_, err := svc.Cancel(ctx, 1)
	assert.ErrorIs(t, err, ErrNoActiveSubscription)

	_, err = svc.Activate(ctx, 1, "sub_1", "cus_1", "price_premium_monthly")
	require.NoError(t, err)

	canceled, err := svc.Cancel(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusCanceled, canceled.Status)
	require.NotNil(t, canceled.EndDate)
	assert.False(t, svc.IsActive(ctx, 1))

	_, err = svc.Cancel(ctx, 1)
	assert.ErrorIs(t, err, ErrAlreadyCanceled)

	// A later billing event can revive the same subscription.
	revived, err := svc.UpdateStatus(ctx, "sub_1", models.SubscriptionStatusActive)
	require.NoError(t, err)
	assert.Nil(t, revived.EndDate)
	assert.True(t, svc.IsActive(ctx, 1))
}

func TestUpdateStatusUnknownRef(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, 0)

	_, err := svc.UpdateStatus(context.Background(), "ref-does-not-exist", models.SubscriptionStatusActive)
	assert.ErrorIs(t, err, ErrSubscriptionNotFound)
	assert.Empty(t, repo.subs)
}

func TestUpdateStatusRejectsUnknownVocabulary(t *testing.T) {
	svc := newTestService(newFakeRepo(), 0)

	_, err := svc.UpdateStatus(context.Background(), "sub_1", "paused")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestUpdateStatusSetsEndDateForTerminalStatuses(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, 0)
	ctx := context.Background()

	_, err := svc.Activate(ctx, 1, "sub_1", "cus_1", "price_pro_monthly")
	require.NoError(t, err)

	sub, err := svc.UpdateStatus(ctx, "sub_1", models.SubscriptionStatusUnpaid)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusUnpaid, sub.Status)
	require.NotNil(t, sub.EndDate)

	sub, err = svc.UpdateStatus(ctx, "sub_1", models.SubscriptionStatusPastDue)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusPastDue, sub.Status)
}

func TestPlanHierarchyPredicates(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, 0)
	ctx := context.Background()

	// No subscription: any purchase allowed, nothing to downgrade.
	assert.True(t, svc.CanUpgrade(ctx, 1, plans.PlanPro))
	assert.False(t, svc.CanDowngrade(ctx, 1, plans.PlanFree))

	_, err := svc.Activate(ctx, 1, "sub_1", "cus_1", "price_premium_monthly")
	require.NoError(t, err)

	assert.True(t, svc.CanUpgrade(ctx, 1, plans.PlanPro))
	assert.False(t, svc.CanUpgrade(ctx, 1, plans.PlanFree))
	assert.False(t, svc.CanUpgrade(ctx, 1, plans.PlanPremium))
	assert.True(t, svc.CanDowngrade(ctx, 1, plans.PlanFree))
	assert.False(t, svc.CanDowngrade(ctx, 1, plans.PlanPro))

	// Inactive subscriptions do not block a new purchase.
	_, err = svc.UpdateStatus(ctx, "sub_1", models.SubscriptionStatusUnpaid)
	require.NoError(t, err)
	assert.True(t, svc.CanUpgrade(ctx, 1, plans.PlanPremium))
	assert.True(t, svc.CanDowngrade(ctx, 1, plans.PlanFree))
}

func TestEntitlementReads(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, 0)
	ctx := context.Background()

	// Free-plan fallback without any subscription row.
	assert.Equal(t, plans.PlanFree, svc.GetCurrentPlan(ctx, 1).ID)
	assert.Equal(t, 10, svc.PromptLimit(ctx, 1))
	assert.False(t, svc.HasCustomPrompts(ctx, 1))

	_, err := svc.Activate(ctx, 1, "sub_1", "cus_1", "price_pro_monthly")
	require.NoError(t, err)

	assert.Equal(t, plans.PlanPro, svc.GetCurrentPlan(ctx, 1).ID)
	assert.Equal(t, plans.PromptLimitUnlimited, svc.PromptLimit(ctx, 1))
	assert.True(t, svc.HasCustomPrompts(ctx, 1))
	assert.True(t, svc.HasPrioritySupport(ctx, 1))
}

func TestCanCreatePromptQuota(t *testing.T) {
	ctx := context.Background()

	// No subscription at all.
	svc := newTestService(newFakeRepo(), 0)
	ok, err := svc.CanCreatePrompt(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	// Free plan under the limit.
	repo := newFakeRepo()
	svc = newTestService(repo, 9)
	_, err = svc.CreateFreeSubscription(ctx, &models.User{ID: 1})
	require.NoError(t, err)
	ok, err = svc.CanCreatePrompt(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	// Free plan at the limit.
	svc = NewService(repo, &fakeUsers{users: map[uint]*models.User{1: {ID: 1}}}, &fakePrompts{count: 10})
	ok, err = svc.CanCreatePrompt(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	// Pro plan ignores the counter entirely.
	repo = newFakeRepo()
	svc = newTestService(repo, 100000)
	_, err = svc.Activate(ctx, 1, "sub_1", "cus_1", "price_pro_monthly")
	require.NoError(t, err)
	ok, err = svc.CanCreatePrompt(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLifecycleWritesLockUserRow(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, 0)
	ctx := context.Background()

	_, err := svc.CreateFreeSubscription(ctx, &models.User{ID: 1})
	require.NoError(t, err)
	assert.Equal(t, []uint{1}, repo.lockedUsers)

	// The first activation has no subscription row to lock yet; the user row
	// lock is what serializes concurrent inserts.
	_, err = svc.Activate(ctx, 1, "sub_1", "cus_1", "price_premium_monthly")
	require.NoError(t, err)
	assert.Equal(t, []uint{1, 1}, repo.lockedUsers)
}

func TestSweepExpiredConvergence(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, 0)
	ctx := context.Background()

	yesterday := today().AddDate(0, 0, -1)
	for i := uint(1); i <= 3; i++ {
		require.NoError(t, repo.Create(&models.Subscription{
			UserID:    i,
			PlanID:    plans.PlanPremium,
			Status:    models.SubscriptionStatusActive,
			StartDate: yesterday.AddDate(0, -1, 0),
			EndDate:   &yesterday,
		}))
	}
	// One active row without an end date must survive the sweep.
	require.NoError(t, repo.Create(&models.Subscription{
		UserID:    9,
		PlanID:    plans.PlanPro,
		Status:    models.SubscriptionStatusActive,
		StartDate: yesterday,
	}))

	n, err := svc.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = svc.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	for _, sub := range repo.byUser(9) {
		assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
	}
}

func TestRegistrationCheckoutCancelExpiryScenario(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, 0)
	ctx := context.Background()

	free, err := svc.CreateFreeSubscription(ctx, &models.User{ID: 1})
	require.NoError(t, err)
	assert.Equal(t, plans.PlanFree, free.PlanID)
	assert.Equal(t, models.SubscriptionStatusActive, free.Status)

	premium, err := svc.Activate(ctx, 1, "sub_1", "cus_1", "price_premium_monthly")
	require.NoError(t, err)
	assert.Equal(t, plans.PlanPremium, premium.PlanID)

	canceled, err := svc.Cancel(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusCanceled, canceled.Status)
	require.NotNil(t, canceled.EndDate)

	// A day passes; the canceled row's end date is now in the past. The sweep
	// only targets ACTIVE rows, so simulate the unswept billing-lapse case by
	// reactivating and backdating the end date.
	_, err = svc.UpdateStatus(ctx, "sub_1", models.SubscriptionStatusActive)
	require.NoError(t, err)
	yesterday := today().AddDate(0, 0, -1)
	for _, sub := range repo.byUser(1) {
		if sub.Status == models.SubscriptionStatusActive {
			sub.EndDate = &yesterday
		}
	}

	n, err := svc.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	current, err := svc.GetUserSubscription(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusExpired, current.Status)
	assert.False(t, svc.IsActive(ctx, 1))
}
