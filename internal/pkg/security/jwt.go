package security

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/AlexVargas/PromptDeck/app/models"
	"github.com/AlexVargas/PromptDeck/internal/pkg/env"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

// Token types carried in the typ claim. Access tokens authenticate API calls,
// refresh tokens only mint new pairs.
const (
	TokenTypeAccess  = "ACCESS"
	TokenTypeRefresh = "REFRESH"
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrWrongTokenUse = errors.New("token used for the wrong purpose")
)

// Claims is the JWT payload for both token types.
type Claims struct {
	UserID    uint   `json:"uid"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// JWTService signs and validates HS256 access/refresh token pairs.
type JWTService struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewJWTService creates a token service from explicit configuration.
func NewJWTService(secret, issuer string, accessTTL, refreshTTL time.Duration) *JWTService {
	return &JWTService{
		secret:     []byte(secret),
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// NewJWTServiceFromEnv creates a token service from environment configuration.
func NewJWTServiceFromEnv() *JWTService {
	accessMin, err := strconv.Atoi(env.GetEnv("JWT_ACCESS_TTL_MIN", "15"))
	if err != nil || accessMin <= 0 {
		accessMin = 15
	}
	refreshHours, err := strconv.Atoi(env.GetEnv("JWT_REFRESH_TTL_HOURS", "168"))
	if err != nil || refreshHours <= 0 {
		refreshHours = 168
	}
	return NewJWTService(
		env.GetEnv("JWT_SECRET", ""),
		env.GetEnv("JWT_ISSUER", "promptdeck"),
		time.Duration(accessMin)*time.Minute,
		time.Duration(refreshHours)*time.Hour,
	)
}

// RefreshTTL exposes the refresh token lifetime for the server-side store.
func (s *JWTService) RefreshTTL() time.Duration {
	return s.refreshTTL
}

// GenerateAccessToken mints a short-lived access token for the user.
func (s *JWTService) GenerateAccessToken(user *models.User) (string, error) {
	return s.generate(user, TokenTypeAccess, s.accessTTL)
}

// GenerateRefreshToken mints a refresh token. The jti must be registered in
// the refresh store before the token is handed out.
func (s *JWTService) GenerateRefreshToken(user *models.User) (string, string, error) {
	jti := uuid.NewString()
	token, err := s.generateWithID(user, TokenTypeRefresh, s.refreshTTL, jti)
	return token, jti, err
}

func (s *JWTService) generate(user *models.User, tokenType string, ttl time.Duration) (string, error) {
	return s.generateWithID(user, tokenType, ttl, uuid.NewString())
}

func (s *JWTService) generateWithID(user *models.User, tokenType string, ttl time.Duration, jti string) (string, error) {
	if len(s.secret) == 0 {
		return "", errors.New("jwt secret is not configured")
	}

	now := time.Now()
	claims := Claims{
		UserID:    user.ID,
		Email:     user.Email,
		Role:      user.Role,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    s.issuer,
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// ValidateToken parses and verifies a token, additionally checking the issuer
// and that it carries the expected token type.
func (s *JWTService) ValidateToken(tokenString, wantType string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Issuer != s.issuer {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != wantType {
		return nil, ErrWrongTokenUse
	}
	return claims, nil
}
