package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Skotchmaster/taskhub_auth/internal/events"
	"github.com/Skotchmaster/taskhub_auth/internal/logging"
	"github.com/Skotchmaster/taskhub_auth/internal/models"
	"github.com/Skotchmaster/taskhub_auth/internal/repo"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// UpdateInput carries only the fields to change; nil means keep.
type UpdateInput struct {
	Username   *string
	Email      *string
	Password   *string
	FirstName  *string
	LastName   *string
	Role       *models.Role
	Department *string
	Position   *string
	Avatar     *string
	Active     *bool
}

type AdminSeed struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// NormalizePage clamps a requested page to what ListUsers will serve.
func NormalizePage(offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return offset, limit
}

// ListUsers pages the directory. A non-empty query goes to the search index
// when one is configured and falls back to a LIKE filter otherwise.
func (s *AuthService) ListUsers(ctx context.Context, query string, offset, limit int) ([]models.User, int64, error) {
	offset, limit = NormalizePage(offset, limit)
	query = strings.TrimSpace(query)

	if query == "" {
		return s.Users.List(ctx, offset, limit)
	}
	if s.Index != nil {
		users, total, err := s.searchIndex(ctx, query, offset, limit)
		if err == nil {
			return users, total, nil
		}
		logging.FromContext(ctx).Warn("user_search_fallback", "svc", "auth.list_users", "error", err)
	}
	return s.Users.Search(ctx, query, offset, limit)
}

func (s *AuthService) searchIndex(ctx context.Context, query string, offset, limit int) ([]models.User, int64, error) {
	total, ids, err := s.Index.SearchUsers(ctx, query, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	found, err := s.Users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, 0, err
	}

	byID := make(map[uuid.UUID]models.User, len(found))
	for _, u := range found {
		byID[u.ID] = u
	}
	users := make([]models.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			users = append(users, u)
		}
	}
	return users, total, nil
}

// UpdateUser applies an admin edit. Deactivating or renaming a user also
// revokes its sessions. Access tokens already issued carry the old username
// and stay valid until they expire.
func (s *AuthService) UpdateUser(ctx context.Context, id uuid.UUID, in UpdateInput) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "auth.update_user", "user_id", id.String())

	user, err := s.Users.FindByID(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}

	renamed := false
	if in.Username != nil && strings.TrimSpace(*in.Username) != user.Username {
		name := strings.TrimSpace(*in.Username)
		if name == "" {
			return nil, fmt.Errorf("%w: username cannot be empty", ErrValidation)
		}
		taken, err := s.Users.ExistsByUsername(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("check username: %w", err)
		}
		if taken {
			return nil, ErrUsernameTaken
		}
		user.Username = name
		renamed = true
	}
	if in.Email != nil && strings.TrimSpace(*in.Email) != user.Email {
		email := strings.TrimSpace(*in.Email)
		if email == "" {
			return nil, fmt.Errorf("%w: email cannot be empty", ErrValidation)
		}
		taken, err := s.Users.ExistsByEmail(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("check email: %w", err)
		}
		if taken {
			return nil, ErrEmailTaken
		}
		user.Email = email
	}
	if in.Role != nil {
		if !in.Role.Valid() {
			return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, *in.Role)
		}
		user.Role = *in.Role
	}
	if in.Password != nil && *in.Password != "" {
		digest, err := s.Hasher.Hash(*in.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		user.PasswordHash = digest
	}
	if in.FirstName != nil {
		user.FirstName = *in.FirstName
	}
	if in.LastName != nil {
		user.LastName = *in.LastName
	}
	if in.Department != nil {
		user.Department = *in.Department
	}
	if in.Position != nil {
		user.Position = *in.Position
	}
	if in.Avatar != nil {
		if *in.Avatar == "" {
			user.Avatar = nil
		} else {
			avatar := *in.Avatar
			user.Avatar = &avatar
		}
	}
	deactivated := in.Active != nil && user.Active && !*in.Active
	if in.Active != nil {
		user.Active = *in.Active
	}

	if err := s.Users.Save(ctx, user); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, s.conflict(ctx, user.Username, user.Email)
		}
		return nil, fmt.Errorf("save user: %w", err)
	}

	if deactivated || renamed {
		n, err := s.Tokens.DeleteByUser(ctx, user.ID)
		if err != nil {
			return nil, fmt.Errorf("revoke sessions: %w", err)
		}
		l.Info("sessions_revoked", "count", n, "renamed", renamed, "deactivated", deactivated)
	}

	s.publish(ctx, events.UserUpdated, user)
	s.index(ctx, user)
	l.Info("update_user_success")
	return user, nil
}

// DeleteUser removes the session set before the user row so no refresh
// token ever references a missing user.
func (s *AuthService) DeleteUser(ctx context.Context, id uuid.UUID) error {
	l := logging.FromContext(ctx).With("svc", "auth.delete_user", "user_id", id.String())

	user, err := s.Users.FindByID(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}

	n, err := s.Tokens.DeleteByUser(ctx, id)
	if err != nil {
		return fmt.Errorf("delete refresh tokens: %w", err)
	}
	if err := s.Users.Delete(ctx, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("delete user: %w", err)
	}

	s.publish(ctx, events.UserDeleted, user)
	if s.Index != nil {
		if err := s.Index.DeleteUser(ctx, id); err != nil {
			l.Warn("unindex_user_failed", "error", err)
		}
	}
	l.Info("delete_user_success", "sessions_revoked", n)
	return nil
}

// ProvisionAdmin creates the admin account once. It reports created=false
// without error only when an ADMIN with that username already exists; a
// clash with any other account is an error.
func (s *AuthService) ProvisionAdmin(ctx context.Context, seed AdminSeed) (bool, error) {
	l := logging.FromContext(ctx).With("svc", "auth.provision_admin", "username", seed.Username)

	user, err := s.createUser(ctx, RegisterInput{
		Username:  seed.Username,
		Email:     seed.Email,
		Password:  seed.Password,
		FirstName: seed.FirstName,
		LastName:  seed.LastName,
		Role:      models.RoleAdmin,
	})
	switch {
	case errors.Is(err, ErrUsernameTaken):
		existing, ferr := s.Users.FindByUsername(ctx, strings.TrimSpace(seed.Username))
		if ferr != nil {
			return false, fmt.Errorf("find existing admin: %w", ferr)
		}
		if existing.Role != models.RoleAdmin {
			l.Error("provision_admin_failed", "reason", "username held by a non-admin account")
			return false, fmt.Errorf("%w: %q exists without the %s role", ErrUsernameTaken, existing.Username, models.RoleAdmin)
		}
		l.Info("admin_exists")
		return false, nil
	case errors.Is(err, ErrEmailTaken):
		l.Error("provision_admin_failed", "reason", "email held by another account")
		return false, fmt.Errorf("%w: %q belongs to another account", ErrEmailTaken, strings.TrimSpace(seed.Email))
	case err != nil:
		l.Error("provision_admin_failed", "error", err)
		return false, err
	}

	s.publish(ctx, events.UserRegistered, user)
	s.index(ctx, user)
	l.Info("admin_created", "user_id", user.ID.String())
	return true, nil
}
