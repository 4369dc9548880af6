package users

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

// UserStore defines data access for user accounts.
type UserStore interface {
	Create(ctx context.Context, u User) (User, error)
	Get(ctx context.Context, id uuid.UUID) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	List(ctx context.Context) ([]User, error)
	SetCanBecomeAdmin(ctx context.Context, id uuid.UUID, canBecome bool) (User, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// GrantCleaner removes every grant a deleted user holds.
type GrantCleaner interface {
	ClearAssignmentsForUser(ctx context.Context, userID uuid.UUID) error
}

// Demoter ends an active admin elevation.
type Demoter interface {
	RevokeAdmin(ctx context.Context, userID uuid.UUID) error
}

type Service struct {
	logger  *slog.Logger
	store   UserStore
	grants  GrantCleaner
	demoter Demoter
}

func NewService(logger *slog.Logger, store UserStore, grants GrantCleaner, demoter Demoter) *Service {
	return &Service{logger: logger, store: store, grants: grants, demoter: demoter}
}

type CreateUser struct {
	Email          string `json:"email" validate:"required,email"`
	FirstName      string `json:"first_name" validate:"required,max=120"`
	LastName       string `json:"last_name" validate:"required,max=120"`
	CanBecomeAdmin bool   `json:"can_become_admin"`
}

func (s *Service) Create(ctx context.Context, in CreateUser) (User, error) {
	u, err := s.store.Create(ctx, User{
		ID:             uuid.New(),
		Email:          strings.TrimSpace(in.Email),
		FirstName:      strings.TrimSpace(in.FirstName),
		LastName:       strings.TrimSpace(in.LastName),
		CanBecomeAdmin: in.CanBecomeAdmin,
	})
	if err != nil {
		return User{}, err
	}
	s.logger.Info("user created", "user_id", u.ID, "email", u.Email)
	return u, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (User, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.store.List(ctx)
}

// SetCanBecomeAdmin toggles elevation eligibility. Taking eligibility away
// also ends any elevation already running, so the flag and the access agree.
func (s *Service) SetCanBecomeAdmin(ctx context.Context, id uuid.UUID, canBecome bool) (User, error) {
	u, err := s.store.SetCanBecomeAdmin(ctx, id, canBecome)
	if err != nil {
		return User{}, err
	}
	if !canBecome && u.AdminExpiry != nil {
		if err := s.demoter.RevokeAdmin(ctx, id); err != nil {
			return User{}, fmt.Errorf("revoke active elevation: %w", err)
		}
		u.AdminExpiry = nil
	}
	s.logger.Info("elevation eligibility changed", "user_id", id, "can_become_admin", canBecome)
	return u, nil
}

// Delete removes the account and every grant it holds. The grants go first:
// if grant cleanup fails the account survives and the operation can be
// retried, never the other way around.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	u, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.grants.ClearAssignmentsForUser(ctx, id); err != nil {
		return fmt.Errorf("clear user grants: %w", err)
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("user deleted", "user_id", id, "email", u.Email)
	return nil
}
