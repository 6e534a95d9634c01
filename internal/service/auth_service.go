package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cmdgate/cmdgate/internal/domain"
	"github.com/cmdgate/cmdgate/internal/port"
)

// AuthService issues credentials and resolves them back to users.
type AuthService struct {
	store          port.Store
	defaultCredits int
}

// NewAuthService creates a new authentication service.
func NewAuthService(store port.Store, defaultCredits int) *AuthService {
	return &AuthService{store: store, defaultCredits: defaultCredits}
}

// Register creates a member with a freshly generated API key. The user row
// and its audit entry commit as one unit. The key is returned exactly once
// and is never logged or otherwise re-exposed.
func (s *AuthService) Register(ctx context.Context, username string, credits int) (*domain.User, string, error) {
	if credits <= 0 {
		credits = s.defaultCredits
	}

	apiKey, err := generateAPIKey()
	if err != nil {
		return nil, "", fmt.Errorf("generate api key: %w", err)
	}

	user, err := s.store.CreateUserAudited(ctx,
		&domain.User{
			Username: username,
			APIKey:   apiKey,
			Role:     domain.RoleMember,
			Credits:  credits,
		},
		&domain.AuditLog{
			Action:  domain.AuditUserRegistered,
			Details: username,
		},
	)
	if err != nil {
		return nil, "", err
	}

	slog.Info("user registered", "user_id", user.ID, "username", username)
	return user, apiKey, nil
}

// Resolve maps an opaque credential to a user. Missing or unknown
// credentials surface as ErrUnauthorized.
func (s *AuthService) Resolve(ctx context.Context, apiKey string) (*domain.User, error) {
	if apiKey == "" {
		return nil, port.ErrUnauthorized
	}
	user, err := s.store.GetUserByAPIKey(ctx, apiKey)
	if errors.Is(err, port.ErrUserNotFound) {
		return nil, port.ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("resolve credential: %w", err)
	}
	return user, nil
}

// EnsureAdmin creates the admin account on first startup. The generated key
// is logged exactly once, at creation time, because there is no other
// channel to hand it to the operator.
func (s *AuthService) EnsureAdmin(ctx context.Context, username string, credits int) error {
	_, err := s.store.GetUserByUsername(ctx, username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, port.ErrUserNotFound) {
		return fmt.Errorf("lookup admin: %w", err)
	}

	apiKey, err := generateAPIKey()
	if err != nil {
		return fmt.Errorf("generate admin key: %w", err)
	}

	admin, err := s.store.CreateUser(ctx, &domain.User{
		Username: username,
		APIKey:   apiKey,
		Role:     domain.RoleAdmin,
		Credits:  credits,
	})
	if err != nil {
		return fmt.Errorf("create admin: %w", err)
	}

	slog.Info("admin account created, store this key now: it will not be shown again",
		"username", admin.Username, "api_key", apiKey)
	return nil
}

// generateAPIKey returns 32 random bytes as URL-safe base64.
func generateAPIKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
