package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Prompt is a user-owned stored AI prompt.
type Prompt struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Title     string    `gorm:"type:varchar(100)" json:"title" validate:"required,max=100"`
	Content   string    `gorm:"type:text;not null" json:"content" validate:"required"`
	Category  string    `gorm:"type:varchar(50);index" json:"category" validate:"max=50"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *Prompt) Validate() error {
	v := validator.New()

	return v.Struct(p)
}
