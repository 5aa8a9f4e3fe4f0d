package subscription

import (
	"time"

	"github.com/AlexVargas/PromptDeck/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides DB operations used by the subscription service.
type Repository interface {
	// Transaction runs fn against a transactional copy of the repository.
	// Lock* lookups only take row locks when called inside a transaction.
	Transaction(fn func(tx Repository) error) error

	Create(sub *models.Subscription) error
	Save(sub *models.Subscription) error
	LockUserByID(userID uint) error
	FindCurrentByUserID(userID uint) (*models.Subscription, error)
	LockCurrentByUserID(userID uint) (*models.Subscription, error)
	FindByStripeSubscriptionID(ref string) (*models.Subscription, error)
	LockByStripeSubscriptionID(ref string) (*models.Subscription, error)
	FindByStripeCustomerID(ref string) (*models.Subscription, error)
	ExpireDueBatch(before time.Time, batchSize int) (int64, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a subscription repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Transaction(fn func(tx Repository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
}

func (r *gormRepository) Create(sub *models.Subscription) error {
	return r.db.Create(sub).Error
}

func (r *gormRepository) Save(sub *models.Subscription) error {
	return r.db.Save(sub).Error
}

// LockUserByID takes a FOR UPDATE lock on the user row. Concurrent lifecycle
// writes for a user without any subscription row have nothing else to lock,
// so inserts serialize on this instead of on gap-lock behavior.
func (r *gormRepository) LockUserByID(userID uint) error {
	var user models.User
	return r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		First(&user, userID).Error
}

// FindCurrentByUserID returns the user's current subscription row: the latest
// plan period by start date. Older rows are the closed-out audit trail.
func (r *gormRepository) FindCurrentByUserID(userID uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Where("user_id = ?", userID).
		Order("start_date DESC, id DESC").
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) LockCurrentByUserID(userID uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		Order("start_date DESC, id DESC").
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) FindByStripeSubscriptionID(ref string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Where("stripe_subscription_id = ?", ref).
		Order("id DESC").
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) LockByStripeSubscriptionID(ref string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("stripe_subscription_id = ?", ref).
		Order("id DESC").
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) FindByStripeCustomerID(ref string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Where("stripe_customer_id = ?", ref).
		Order("id DESC").
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// ExpireDueBatch transitions up to batchSize ACTIVE rows whose end date lies
// before the cutoff to EXPIRED. The single UPDATE holds no scan-wide lock and
// re-checks status, so concurrent sweeps and reactivations stay safe.
func (r *gormRepository) ExpireDueBatch(before time.Time, batchSize int) (int64, error) {
	var ids []uint
	err := r.db.Model(&models.Subscription{}).
		Where("status = ? AND end_date IS NOT NULL AND end_date < ?", models.SubscriptionStatusActive, before).
		Order("id").
		Limit(batchSize).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	// Status is re-checked in the UPDATE so a row reactivated between the two
	// statements is left alone.
	tx := r.db.Model(&models.Subscription{}).
		Where("id IN ? AND status = ?", ids, models.SubscriptionStatusActive).
		Update("status", models.SubscriptionStatusExpired)
	return tx.RowsAffected, tx.Error
}
