package controllers

import (
	"time"

	"gorm.io/gorm"

	"github.com/AlexVargas/PromptDeck/app/repository"
	"github.com/AlexVargas/PromptDeck/internal/pkg/subscription"
)

// subscriptionService wires the lifecycle service against the global
// repositories and the given DB handle.
func subscriptionService(db *gorm.DB) *subscription.Service {
	repos := repository.GetGlobalFactory().GetRepositories()
	return subscription.NewService(subscription.NewRepository(db), repos.User, repos.Prompt)
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func formatDatePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Format("2006-01-02")
}
