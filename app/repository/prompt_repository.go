package repository

import (
	"strings"
	"time"

	"github.com/AlexVargas/PromptDeck/app/models"
	"gorm.io/gorm"
)

// promptRepository implements the PromptRepository interface
type promptRepository struct {
	db *gorm.DB
}

// NewPromptRepository creates a new prompt repository instance
func NewPromptRepository(db *gorm.DB) PromptRepository {
	return &promptRepository{db: db}
}

// Create creates a new prompt in the database
func (r *promptRepository) Create(prompt *models.Prompt) error {
	return r.db.Create(prompt).Error
}

// GetByID retrieves a prompt by its ID
func (r *promptRepository) GetByID(id uint) (*models.Prompt, error) {
	var prompt models.Prompt
	err := r.db.First(&prompt, id).Error
	if err != nil {
		return nil, err
	}
	return &prompt, nil
}

// GetByUserID retrieves a paginated list of the user's prompts, newest first
func (r *promptRepository) GetByUserID(userID uint, offset, limit int) ([]models.Prompt, error) {
	var prompts []models.Prompt
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&prompts).Error
	return prompts, err
}

// Update updates an existing prompt in the database
func (r *promptRepository) Update(prompt *models.Prompt) error {
	return r.db.Save(prompt).Error
}

// Delete deletes a prompt by its ID
func (r *promptRepository) Delete(id uint) error {
	return r.db.Delete(&models.Prompt{}, id).Error
}

// Count returns the total number of prompts
func (r *promptRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Prompt{}).Count(&count).Error
	return count, err
}

// CountByUserID returns the number of prompts owned by the user
func (r *promptRepository) CountByUserID(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Prompt{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

// CountByUserIDSince counts the user's prompts created at or after the given
// time; quota checks scope it to the current subscription period.
func (r *promptRepository) CountByUserIDSince(userID uint, since time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&models.Prompt{}).
		Where("user_id = ? AND created_at >= ?", userID, since).
		Count(&count).Error
	return count, err
}

// Search searches the user's prompts by title or content
func (r *promptRepository) Search(userID uint, query string, offset, limit int) ([]models.Prompt, error) {
	var prompts []models.Prompt
	searchPattern := "%" + strings.TrimSpace(query) + "%"
	err := r.db.Where("user_id = ? AND (title LIKE ? OR content LIKE ?)", userID, searchPattern, searchPattern).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&prompts).Error
	return prompts, err
}

// GetByCategory retrieves the user's prompts in a category
func (r *promptRepository) GetByCategory(userID uint, category string, offset, limit int) ([]models.Prompt, error) {
	var prompts []models.Prompt
	err := r.db.Where("user_id = ? AND category = ?", userID, strings.TrimSpace(category)).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&prompts).Error
	return prompts, err
}
