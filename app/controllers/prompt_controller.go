package controllers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/AlexVargas/PromptDeck/app/models"
	"github.com/AlexVargas/PromptDeck/app/repository"
	"github.com/AlexVargas/PromptDeck/internal/pkg/database"
	"github.com/AlexVargas/PromptDeck/internal/pkg/usercontext"
)

const defaultPageSize = 20
const maxPageSize = 100

type promptRequest struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Category string `json:"category"`
}

// HandleCreatePrompt creates a prompt after checking the plan's quota.
func HandleCreatePrompt(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	subs := subscriptionService(database.GetDB())
	allowed, err := subs.CanCreatePrompt(c.UserContext(), userCtx.UserID)
	if err != nil {
		log.Errorf("quota check failed for user %d: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Quota check failed"})
	}
	if !allowed {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":   "quota_exceeded",
			"message": "Prompt limit reached for the current plan",
			"limit":   subs.PromptLimit(c.UserContext(), userCtx.UserID),
		})
	}

	var req promptRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}

	prompt := &models.Prompt{
		UserID:   userCtx.UserID,
		Title:    strings.TrimSpace(req.Title),
		Content:  req.Content,
		Category: strings.TrimSpace(req.Category),
	}
	if err := prompt.Validate(); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "validation_failed", "message": err.Error()})
	}

	if err := repository.GetGlobalFactory().GetPromptRepository().Create(prompt); err != nil {
		log.Errorf("prompt creation failed for user %d: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to create prompt"})
	}

	return c.Status(fiber.StatusCreated).JSON(promptResponse(prompt))
}

// HandleGetPrompts lists the user's prompts; q filters by text, category by
// category, page/page_size paginate.
func HandleGetPrompts(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	offset, limit := pagination(c)

	repo := repository.GetGlobalFactory().GetPromptRepository()

	var (
		prompts []models.Prompt
		err     error
	)
	switch {
	case strings.TrimSpace(c.Query("q")) != "":
		prompts, err = repo.Search(userCtx.UserID, c.Query("q"), offset, limit)
	case strings.TrimSpace(c.Query("category")) != "":
		prompts, err = repo.GetByCategory(userCtx.UserID, c.Query("category"), offset, limit)
	default:
		prompts, err = repo.GetByUserID(userCtx.UserID, offset, limit)
	}
	if err != nil {
		log.Errorf("prompt listing failed for user %d: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to list prompts"})
	}

	total, err := repo.CountByUserID(userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to count prompts"})
	}

	items := make([]fiber.Map, 0, len(prompts))
	for i := range prompts {
		items = append(items, promptResponse(&prompts[i]))
	}
	return c.JSON(fiber.Map{"prompts": items, "total": total})
}

// HandleGetPrompt returns a single prompt owned by the user.
func HandleGetPrompt(c *fiber.Ctx) error {
	prompt, ok := loadOwnedPrompt(c)
	if !ok {
		return nil
	}
	return c.JSON(promptResponse(prompt))
}

// HandleUpdatePrompt updates a prompt owned by the user.
func HandleUpdatePrompt(c *fiber.Ctx) error {
	prompt, ok := loadOwnedPrompt(c)
	if !ok {
		return nil
	}

	var req promptRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}

	prompt.Title = strings.TrimSpace(req.Title)
	prompt.Content = req.Content
	prompt.Category = strings.TrimSpace(req.Category)
	if err := prompt.Validate(); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "validation_failed", "message": err.Error()})
	}

	if err := repository.GetGlobalFactory().GetPromptRepository().Update(prompt); err != nil {
		log.Errorf("prompt update failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to update prompt"})
	}
	return c.JSON(promptResponse(prompt))
}

// HandleDeletePrompt deletes a prompt owned by the user.
func HandleDeletePrompt(c *fiber.Ctx) error {
	prompt, ok := loadOwnedPrompt(c)
	if !ok {
		return nil
	}

	if err := repository.GetGlobalFactory().GetPromptRepository().Delete(prompt.ID); err != nil {
		log.Errorf("prompt deletion failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to delete prompt"})
	}
	return c.JSON(fiber.Map{"ok": true})
}

// loadOwnedPrompt resolves the :id route param to a prompt owned by the
// authenticated user, writing the error response itself when the lookup
// fails. Foreign prompts read as 404, not 403.
func loadOwnedPrompt(c *fiber.Ctx) (*models.Prompt, bool) {
	userCtx := usercontext.GetUserContext(c)

	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		_ = c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid prompt id"})
		return nil, false
	}

	prompt, err := repository.GetGlobalFactory().GetPromptRepository().GetByID(uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			_ = c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Prompt not found"})
			return nil, false
		}
		_ = c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load prompt"})
		return nil, false
	}
	if prompt.UserID != userCtx.UserID {
		_ = c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Prompt not found"})
		return nil, false
	}
	return prompt, true
}

func promptResponse(p *models.Prompt) fiber.Map {
	return fiber.Map{
		"id":         p.ID,
		"title":      p.Title,
		"content":    p.Content,
		"category":   p.Category,
		"created_at": p.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at": p.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func pagination(c *fiber.Ctx) (offset, limit int) {
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit = c.QueryInt("page_size", defaultPageSize)
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return (page - 1) * limit, limit
}
