package repository

import (
	"time"

	"github.com/AlexVargas/PromptDeck/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	Update(user *models.User) error
	Delete(id uint) error
	List(offset, limit int) ([]models.User, error)
	Count() (int64, error)
	Search(query string) ([]models.User, error)
	UpdateLastLogin(id uint) error
}

// PromptRepository defines the interface for prompt-related database operations
type PromptRepository interface {
	Create(prompt *models.Prompt) error
	GetByID(id uint) (*models.Prompt, error)
	GetByUserID(userID uint, offset, limit int) ([]models.Prompt, error)
	Update(prompt *models.Prompt) error
	Delete(id uint) error
	Count() (int64, error)
	CountByUserID(userID uint) (int64, error)
	CountByUserIDSince(userID uint, since time.Time) (int64, error)
	Search(userID uint, query string, offset, limit int) ([]models.Prompt, error)
	GetByCategory(userID uint, category string, offset, limit int) ([]models.Prompt, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	User   UserRepository
	Prompt PromptRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:   NewUserRepository(db),
		Prompt: NewPromptRepository(db),
	}
}
