package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-data/meridian/internal/shared"
	"github.com/meridian-data/meridian/internal/users"
)

// KeyStore defines data access for API keys.
type KeyStore interface {
	Create(ctx context.Context, key APIKey) (APIKey, error)
	Get(ctx context.Context, id uuid.UUID) (APIKey, error)
	Delete(ctx context.Context, id uuid.UUID) error
	TouchLastUsed(ctx context.Context, id uuid.UUID) error
	FindUser(ctx context.Context, userID uuid.UUID) (users.User, error)
}

type Service struct {
	store KeyStore
}

func NewService(store KeyStore) *Service {
	return &Service{store: store}
}

// IssueKey mints a new API key for the user. The returned token is the only
// time the secret is visible; only its hash is stored.
func (s *Service) IssueKey(ctx context.Context, userID uuid.UUID, name string) (APIKey, string, error) {
	secretBytes := make([]byte, 24)
	if _, err := rand.Read(secretBytes); err != nil {
		return APIKey{}, "", fmt.Errorf("generate api key secret: %w", err)
	}
	secret := hex.EncodeToString(secretBytes)

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return APIKey{}, "", fmt.Errorf("hash api key secret: %w", err)
	}

	key, err := s.store.Create(ctx, APIKey{
		ID:         uuid.New(),
		UserID:     userID,
		Name:       strings.TrimSpace(name),
		SecretHash: string(hash),
	})
	if err != nil {
		return APIKey{}, "", err
	}
	return key, key.ID.String() + "." + secret, nil
}

func (s *Service) RevokeKey(ctx context.Context, id uuid.UUID) error {
	return s.store.Delete(ctx, id)
}

// Authenticate resolves a bearer token to the principal it belongs to.
// Every failure mode collapses to ErrUnauthorized: callers learn nothing
// about whether the key id exists.
func (s *Service) Authenticate(ctx context.Context, token string) (*shared.Principal, error) {
	keyID, secret, found := strings.Cut(token, ".")
	if !found || secret == "" {
		return nil, fmt.Errorf("%w: malformed api key", shared.ErrUnauthorized)
	}
	id, err := uuid.Parse(keyID)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed api key", shared.ErrUnauthorized)
	}

	key, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown api key", shared.ErrUnauthorized)
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(key.SecretHash), []byte(secret)); err != nil {
		return nil, fmt.Errorf("%w: invalid api key", shared.ErrUnauthorized)
	}

	owner, err := s.store.FindUser(ctx, key.UserID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, fmt.Errorf("%w: key owner no longer exists", shared.ErrUnauthorized)
		}
		return nil, err
	}

	_ = s.store.TouchLastUsed(ctx, key.ID)

	return &shared.Principal{
		ID:             owner.ID,
		Email:          owner.Email,
		CanBecomeAdmin: owner.CanBecomeAdmin,
		AdminExpiry:    owner.AdminExpiry,
	}, nil
}
