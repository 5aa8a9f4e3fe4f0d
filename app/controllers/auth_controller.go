package controllers

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/AlexVargas/PromptDeck/app/models"
	"github.com/AlexVargas/PromptDeck/app/repository"
	"github.com/AlexVargas/PromptDeck/internal/pkg/database"
	"github.com/AlexVargas/PromptDeck/internal/pkg/security"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// HandleRegister creates a new account and enrolls it on the free plan.
func HandleRegister(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	user, err := models.CreateUser(strings.TrimSpace(req.Name), email, req.Password)
	if err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "validation_failed", "message": err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to prepare user"})
	}

	repo := repository.GetGlobalFactory().GetUserRepository()
	if _, err := repo.GetByEmail(email); err == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "email_taken", "message": "An account with this email already exists"})
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to check email"})
	}

	if err := repo.Create(user); err != nil {
		log.Errorf("user creation failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to create user"})
	}

	subs := subscriptionService(database.GetDB())
	if _, err := subs.CreateFreeSubscription(c.UserContext(), user); err != nil {
		log.Errorf("free subscription enrollment failed for user %d: %v", user.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to enroll subscription"})
	}

	tokens, err := issueTokenPair(user)
	if err != nil {
		log.Errorf("token issuance failed for user %d: %v", user.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to issue tokens"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"user": fiber.Map{
			"id":    user.ID,
			"name":  user.Name,
			"email": user.Email,
		},
		"tokens": tokens,
	})
}

// HandleLogin verifies credentials and returns a fresh token pair.
func HandleLogin(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}

	repo := repository.GetGlobalFactory().GetUserRepository()
	user, err := repo.GetByEmail(req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_credentials", "message": "Email or password is wrong"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Login failed"})
	}
	if !user.CheckPassword(req.Password) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_credentials", "message": "Email or password is wrong"})
	}
	if !user.IsActive() {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "Account is not active"})
	}

	if err := repo.UpdateLastLogin(user.ID); err != nil {
		log.Warnf("failed to update last login for user %d: %v", user.ID, err)
	}

	tokens, err := issueTokenPair(user)
	if err != nil {
		log.Errorf("token issuance failed for user %d: %v", user.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to issue tokens"})
	}

	return c.JSON(fiber.Map{
		"user": fiber.Map{
			"id":    user.ID,
			"name":  user.Name,
			"email": user.Email,
		},
		"tokens": tokens,
	})
}

// HandleRefresh rotates a refresh token into a new token pair. The presented
// token is revoked so each refresh token works exactly once.
func HandleRefresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "refresh_token is required"})
	}

	jwtSvc := security.NewJWTServiceFromEnv()
	claims, err := jwtSvc.ValidateToken(strings.TrimSpace(req.RefreshToken), security.TokenTypeRefresh)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid refresh token"})
	}

	store := security.NewRefreshStore()
	if err := store.Validate(claims.ID, claims.UserID); err != nil {
		if errors.Is(err, security.ErrRefreshTokenRevoked) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Refresh token is revoked"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Refresh failed"})
	}

	repo := repository.GetGlobalFactory().GetUserRepository()
	user, err := repo.GetByID(claims.UserID)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Unknown user"})
	}
	if !user.IsActive() {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "Account is not active"})
	}

	if err := store.Revoke(claims.ID); err != nil {
		log.Warnf("failed to revoke rotated refresh token for user %d: %v", user.ID, err)
	}

	tokens, err := issueTokenPair(user)
	if err != nil {
		log.Errorf("token issuance failed for user %d: %v", user.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to issue tokens"})
	}

	return c.JSON(fiber.Map{"tokens": tokens})
}

// HandleLogout revokes the presented refresh token server-side.
func HandleLogout(c *fiber.Ctx) error {
	var req refreshRequest
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "refresh_token is required"})
	}

	claims, err := security.NewJWTServiceFromEnv().ValidateToken(strings.TrimSpace(req.RefreshToken), security.TokenTypeRefresh)
	if err != nil {
		// Already invalid tokens count as logged out.
		return c.JSON(fiber.Map{"ok": true})
	}
	if err := security.NewRefreshStore().Revoke(claims.ID); err != nil {
		log.Warnf("failed to revoke refresh token on logout: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Logout failed"})
	}
	return c.JSON(fiber.Map{"ok": true})
}

func issueTokenPair(user *models.User) (fiber.Map, error) {
	jwtSvc := security.NewJWTServiceFromEnv()

	access, err := jwtSvc.GenerateAccessToken(user)
	if err != nil {
		return nil, err
	}
	refresh, jti, err := jwtSvc.GenerateRefreshToken(user)
	if err != nil {
		return nil, err
	}
	if err := security.NewRefreshStore().Register(jti, user.ID, jwtSvc.RefreshTTL()); err != nil {
		return nil, err
	}

	return fiber.Map{
		"access_token":  access,
		"refresh_token": refresh,
		"token_type":    "Bearer",
	}, nil
}
