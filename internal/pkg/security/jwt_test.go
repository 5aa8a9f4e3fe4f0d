package security

import (
	"testing"
	"time"

	"github.com/AlexVargas/PromptDeck/app/models"
)

func testUser() *models.User {
	return &models.User{ID: 7, Email: "tester@example.com", Role: models.ROLE_USER}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	svc := NewJWTService("test-secret", "promptdeck", 15*time.Minute, 24*time.Hour)

	token, err := svc.GenerateAccessToken(testUser())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := svc.ValidateToken(token, TokenTypeAccess)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.UserID != 7 || claims.Email != "tester@example.com" {
		t.Fatalf("claims = %+v", claims)
	}
	if claims.TokenType != TokenTypeAccess {
		t.Fatalf("token type = %q", claims.TokenType)
	}
}

func TestRefreshTokenCarriesJTI(t *testing.T) {
	svc := NewJWTService("test-secret", "promptdeck", 15*time.Minute, 24*time.Hour)

	token, jti, err := svc.GenerateRefreshToken(testUser())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if jti == "" {
		t.Fatalf("expected non-empty jti")
	}

	claims, err := svc.ValidateToken(token, TokenTypeRefresh)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.ID != jti {
		t.Fatalf("claims.ID = %q, want %q", claims.ID, jti)
	}
}

func TestValidateRejectsWrongTokenType(t *testing.T) {
	svc := NewJWTService("test-secret", "promptdeck", 15*time.Minute, 24*time.Hour)

	access, err := svc.GenerateAccessToken(testUser())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := svc.ValidateToken(access, TokenTypeRefresh); err != ErrWrongTokenUse {
		t.Fatalf("expected ErrWrongTokenUse, got %v", err)
	}
}

func TestValidateRejectsForeignSecret(t *testing.T) {
	svc := NewJWTService("test-secret", "promptdeck", 15*time.Minute, 24*time.Hour)
	other := NewJWTService("other-secret", "promptdeck", 15*time.Minute, 24*time.Hour)

	token, err := svc.GenerateAccessToken(testUser())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := other.ValidateToken(token, TokenTypeAccess); err == nil {
		t.Fatalf("expected validation failure for foreign secret")
	}
}

func TestValidateRejectsWrongIssuer(t *testing.T) {
	svc := NewJWTService("test-secret", "promptdeck", 15*time.Minute, 24*time.Hour)
	other := NewJWTService("test-secret", "someone-else", 15*time.Minute, 24*time.Hour)

	token, err := svc.GenerateAccessToken(testUser())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := other.ValidateToken(token, TokenTypeAccess); err == nil {
		t.Fatalf("expected validation failure for wrong issuer")
	}
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	svc := NewJWTService("test-secret", "promptdeck", -1*time.Minute, 24*time.Hour)

	token, err := svc.GenerateAccessToken(testUser())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := svc.ValidateToken(token, TokenTypeAccess); err == nil {
		t.Fatalf("expected validation failure for expired token")
	}
}

func TestGenerateRequiresSecret(t *testing.T) {
	svc := NewJWTService("", "promptdeck", 15*time.Minute, 24*time.Hour)
	if _, err := svc.GenerateAccessToken(testUser()); err == nil {
		t.Fatalf("expected error without configured secret")
	}
}
