// Package users implements administrative user management.
package users

import (
	"context"
	"fmt"
	"strings"

	"github.com/brickvault/platform/internal/app/domain/user"
	"github.com/brickvault/platform/internal/app/storage"
	"github.com/brickvault/platform/pkg/logger"
)

// Service manages user records. All operations are admin-only at the API
// layer except Get on the caller's own record.
type Service struct {
	store storage.UserStore
	log   *logger.Logger
}

// New constructs a user service.
func New(store storage.UserStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("users")
	}
	return &Service{store: store, log: log}
}

// Create provisions a user without a password, e.g. an agent or admin who
// will sign in through an external provider.
func (s *Service) Create(ctx context.Context, email, name string, role user.Role, provider user.Provider) (user.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)

	if email == "" || !strings.Contains(email, "@") {
		return user.User{}, fmt.Errorf("valid email is required")
	}
	if name == "" {
		return user.User{}, fmt.Errorf("name is required")
	}
	if !user.ValidRole(role) {
		return user.User{}, fmt.Errorf("unknown role %q", role)
	}
	if provider == "" {
		provider = user.ProviderLocal
	}

	created, err := s.store.CreateUser(ctx, user.User{
		Email:    email,
		Name:     name,
		Provider: provider,
		Role:     role,
		Active:   true,
	})
	if err != nil {
		return user.User{}, err
	}

	s.log.WithField("user_id", created.ID).
		WithField("role", string(role)).
		Info("user created")
	return created, nil
}

// Update changes mutable fields. Nil pointers leave the field untouched.
func (s *Service) Update(ctx context.Context, id string, name *string, role *user.Role) (user.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return user.User{}, err
	}

	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return user.User{}, fmt.Errorf("name cannot be empty")
		}
		u.Name = trimmed
	}
	if role != nil {
		if !user.ValidRole(*role) {
			return user.User{}, fmt.Errorf("unknown role %q", *role)
		}
		u.Role = *role
	}

	updated, err := s.store.UpdateUser(ctx, u)
	if err != nil {
		return user.User{}, err
	}
	s.log.WithField("user_id", id).Info("user updated")
	return updated, nil
}

// SetActive activates or deactivates an account. Deactivated users cannot
// log in and existing tokens stop refreshing.
func (s *Service) SetActive(ctx context.Context, id string, active bool) (user.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return user.User{}, err
	}
	if u.Active == active {
		return u, nil
	}

	u.Active = active
	updated, err := s.store.UpdateUser(ctx, u)
	if err != nil {
		return user.User{}, err
	}
	s.log.WithField("user_id", id).
		WithField("active", active).
		Info("user state changed")
	return updated, nil
}

// Get returns a single user.
func (s *Service) Get(ctx context.Context, id string) (user.User, error) {
	return s.store.GetUser(ctx, id)
}

// List returns all users.
func (s *Service) List(ctx context.Context) ([]user.User, error) {
	return s.store.ListUsers(ctx)
}

// Delete removes a user record permanently.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.log.WithField("user_id", id).Info("user deleted")
	return nil
}
