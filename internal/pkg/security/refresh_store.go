package security

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/AlexVargas/PromptDeck/internal/pkg/cache"
	"github.com/redis/go-redis/v9"
)

var ErrRefreshTokenRevoked = errors.New("refresh token is revoked or expired")

const refreshKeyPrefix = "refresh_token:"

// RefreshStore tracks issued refresh tokens in Redis so logout revokes them
// server-side. A token whose jti is absent from the store is rejected even
// when its signature still verifies.
type RefreshStore struct{}

// NewRefreshStore creates a refresh token store backed by the shared cache.
func NewRefreshStore() *RefreshStore {
	return &RefreshStore{}
}

// Register stores a freshly minted refresh token jti for the user.
func (s *RefreshStore) Register(jti string, userID uint, ttl time.Duration) error {
	return cache.Set(refreshKeyPrefix+jti, strconv.FormatUint(uint64(userID), 10), ttl)
}

// Validate checks that the jti is still registered and belongs to the user.
func (s *RefreshStore) Validate(jti string, userID uint) error {
	val, err := cache.Get(refreshKeyPrefix + jti)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrRefreshTokenRevoked
		}
		return fmt.Errorf("refresh token lookup: %w", err)
	}
	if val != strconv.FormatUint(uint64(userID), 10) {
		return ErrRefreshTokenRevoked
	}
	return nil
}

// Revoke drops the jti; subsequent refresh attempts with it fail.
func (s *RefreshStore) Revoke(jti string) error {
	return cache.Delete(refreshKeyPrefix + jti)
}
