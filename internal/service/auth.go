package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/taskhub_auth/internal/events"
	"github.com/Skotchmaster/taskhub_auth/internal/logging"
	"github.com/Skotchmaster/taskhub_auth/internal/metrics"
	"github.com/Skotchmaster/taskhub_auth/internal/models"
	"github.com/Skotchmaster/taskhub_auth/internal/repo"
)

const TokenTypeBearer = "Bearer"

type UserStore interface {
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error)
	Create(ctx context.Context, u *models.User) error
	Save(ctx context.Context, u *models.User) error
	Delete(ctx context.Context, id uuid.UUID) error
	TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	List(ctx context.Context, offset, limit int) ([]models.User, int64, error)
	Search(ctx context.Context, q string, offset, limit int) ([]models.User, int64, error)
}

type TokenStore interface {
	Create(ctx context.Context, userID uuid.UUID) (string, *models.RefreshToken, error)
	FindByToken(ctx context.Context, token string) (*models.RefreshToken, bool, error)
	VerifyExpiration(ctx context.Context, rec *models.RefreshToken) (*models.RefreshToken, error)
	DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error)
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
}

type AccessIssuer interface {
	Issue(user *models.User) (string, time.Time, error)
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, digest string) bool
}

type EventPublisher interface {
	PublishEvent(ctx context.Context, ev events.UserEvent) error
}

type UserIndexer interface {
	IndexUser(ctx context.Context, u *models.User) error
	DeleteUser(ctx context.Context, id uuid.UUID) error
	SearchUsers(ctx context.Context, query string, from, size int) (int64, []uuid.UUID, error)
}

// AuthService owns the session lifecycle. The set of live refresh tokens of
// a user is that user's session set; nothing else is kept in memory.
type AuthService struct {
	Users  UserStore
	Tokens TokenStore
	Issuer AccessIssuer
	Hasher PasswordHasher
	Events EventPublisher
	Index  UserIndexer
	Now    func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

func New(users UserStore, tokens TokenStore, issuer AccessIssuer, hasher PasswordHasher) *AuthService {
	return &AuthService{
		Users:  users,
		Tokens: tokens,
		Issuer: issuer,
		Hasher: hasher,
		Events: events.Noop{},
		Now:    time.Now,
	}
}

type AuthResult struct {
	AccessToken  string
	AccessExp    time.Time
	RefreshToken string
	RefreshExp   time.Time
	TokenType    string
	User         *models.User
}

type RefreshResult struct {
	AccessToken  string
	AccessExp    time.Time
	RefreshToken string
	RefreshExp   time.Time
	TokenType    string
}

type RegisterInput struct {
	Username   string
	Email      string
	Password   string
	FirstName  string
	LastName   string
	Role       models.Role
	Department string
	Position   string
}

func (s *AuthService) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.register", "username", in.Username)

	user, err := s.createUser(ctx, in)
	if err != nil {
		l.Warn("register_error", "error", err)
		return nil, err
	}

	res, err := s.issuePair(ctx, user)
	if err != nil {
		l.Error("register_error", "reason", "cannot issue tokens", "error", err)
		return nil, err
	}

	s.publish(ctx, events.UserRegistered, user)
	s.index(ctx, user)
	l.Info("register_success", "user_id", user.ID.String())
	return res, nil
}

// Login does not distinguish an unknown user from a wrong password. The
// unknown-user path still pays for a bcrypt compare.
func (s *AuthService) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.login", "username", username)

	user, err := s.Users.FindByUsername(ctx, username)
	if errors.Is(err, repo.ErrNotFound) {
		s.Hasher.Verify(password, s.dummy())
		metrics.RecordLogin(metrics.OutcomeInvalidCredentials)
		l.Warn("login_failed", "reason", "invalid credentials")
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		metrics.RecordLogin(metrics.OutcomeError)
		l.Error("login_failed", "error", err)
		return nil, fmt.Errorf("find user: %w", err)
	}

	if !s.Hasher.Verify(password, user.PasswordHash) || !user.Active {
		metrics.RecordLogin(metrics.OutcomeInvalidCredentials)
		l.Warn("login_failed", "reason", "invalid credentials")
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	if err := s.Users.TouchLastLogin(ctx, user.ID, now); err != nil {
		metrics.RecordLogin(metrics.OutcomeError)
		l.Error("login_failed", "reason", "cannot update last login", "error", err)
		return nil, fmt.Errorf("update last login: %w", err)
	}
	user.LastLogin = &now

	res, err := s.issuePair(ctx, user)
	if err != nil {
		metrics.RecordLogin(metrics.OutcomeError)
		l.Error("login_failed", "reason", "cannot issue tokens", "error", err)
		return nil, err
	}

	metrics.RecordLogin(metrics.OutcomeSuccess)
	s.publish(ctx, events.UserLoggedIn, user)
	l.Info("login_success", "user_id", user.ID.String())
	return res, nil
}

// Refresh mints a new access token and a new refresh token. The presented
// refresh token is not rotated out: it stays valid until its own expiry.
func (s *AuthService) Refresh(ctx context.Context, token string) (*RefreshResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.refresh")

	rec, ok, err := s.Tokens.FindByToken(ctx, token)
	if err != nil {
		metrics.RecordRefresh(metrics.OutcomeError)
		l.Error("refresh_failed", "error", err)
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	if !ok {
		metrics.RecordRefresh(metrics.OutcomeNotFound)
		l.Warn("refresh_failed", "reason", "token not found")
		return nil, ErrTokenNotFound
	}

	rec, err = s.Tokens.VerifyExpiration(ctx, rec)
	if errors.Is(err, repo.ErrExpiredRefreshToken) {
		metrics.RecordRefresh(metrics.OutcomeExpired)
		l.Warn("refresh_failed", "reason", "token expired")
		return nil, ErrExpiredRefreshToken
	}
	if err != nil {
		metrics.RecordRefresh(metrics.OutcomeError)
		l.Error("refresh_failed", "error", err)
		return nil, err
	}

	user, err := s.Users.FindByID(ctx, rec.UserID)
	if errors.Is(err, repo.ErrNotFound) {
		metrics.RecordRefresh(metrics.OutcomeNotFound)
		l.Warn("refresh_failed", "reason", "owner missing")
		return nil, ErrTokenNotFound
	}
	if err != nil {
		metrics.RecordRefresh(metrics.OutcomeError)
		l.Error("refresh_failed", "error", err)
		return nil, fmt.Errorf("find token owner: %w", err)
	}
	if !user.Active {
		metrics.RecordRefresh(metrics.OutcomeInvalidCredentials)
		l.Warn("refresh_failed", "reason", "user inactive", "user_id", user.ID.String())
		return nil, ErrInvalidCredentials
	}

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		metrics.RecordRefresh(metrics.OutcomeError)
		l.Error("refresh_failed", "reason", "cannot issue tokens", "error", err)
		return nil, err
	}

	metrics.RecordRefresh(metrics.OutcomeSuccess)
	l.Info("refresh_success", "user_id", user.ID.String())
	return &RefreshResult{
		AccessToken:  pair.AccessToken,
		AccessExp:    pair.AccessExp,
		RefreshToken: pair.RefreshToken,
		RefreshExp:   pair.RefreshExp,
		TokenType:    TokenTypeBearer,
	}, nil
}

// Logout removes every refresh token of username. An empty username means
// the caller. Only admins may log out someone else. Access tokens already
// issued stay valid until they expire.
func (s *AuthService) Logout(ctx context.Context, caller models.Identity, username string) error {
	if username == "" {
		username = caller.Username
	}
	l := logging.FromContext(ctx).With("svc", "auth.logout", "username", username, "caller", caller.Username)

	if !caller.IsAdmin() && caller.Username != username {
		l.Warn("logout_failed", "reason", "forbidden")
		return ErrForbidden
	}

	user, err := s.Users.FindByUsername(ctx, username)
	if errors.Is(err, repo.ErrNotFound) {
		l.Warn("logout_failed", "reason", "user not found")
		return ErrUserNotFound
	}
	if err != nil {
		l.Error("logout_failed", "error", err)
		return fmt.Errorf("find user: %w", err)
	}

	n, err := s.Tokens.DeleteByUser(ctx, user.ID)
	if err != nil {
		l.Error("logout_failed", "reason", "cannot delete refresh tokens", "error", err)
		return fmt.Errorf("delete refresh tokens: %w", err)
	}

	s.publish(ctx, events.UserLoggedOut, user)
	l.Info("logout_success", "sessions_revoked", n)
	return nil
}

func (s *AuthService) CurrentUser(ctx context.Context, caller models.Identity) (*models.User, error) {
	user, err := s.Users.FindByUsername(ctx, caller.Username)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

func (s *AuthService) SweepExpired(ctx context.Context) (int64, error) {
	n, err := s.Tokens.SweepExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("sweep expired refresh tokens: %w", err)
	}
	metrics.RecordSwept(n)
	return n, nil
}

func (s *AuthService) createUser(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if in.Username == "" || in.Email == "" || in.Password == "" {
		return nil, fmt.Errorf("%w: username, email and password are required", ErrValidation)
	}
	if in.Role == "" {
		in.Role = models.RoleUser
	}
	if !in.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, in.Role)
	}

	if err := s.checkAvailable(ctx, in.Username, in.Email); err != nil {
		return nil, err
	}

	digest, err := s.Hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: digest,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Role:         in.Role,
		Department:   in.Department,
		Position:     in.Position,
		Active:       true,
	}
	if err := s.Users.Create(ctx, user); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, s.conflict(ctx, in.Username, in.Email)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// checkAvailable reports a taken username before a taken email.
func (s *AuthService) checkAvailable(ctx context.Context, username, email string) error {
	taken, err := s.Users.ExistsByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("check username: %w", err)
	}
	if taken {
		return ErrUsernameTaken
	}
	taken, err = s.Users.ExistsByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("check email: %w", err)
	}
	if taken {
		return ErrEmailTaken
	}
	return nil
}

// conflict names the field behind a unique violation that raced past checkAvailable.
func (s *AuthService) conflict(ctx context.Context, username, email string) error {
	if err := s.checkAvailable(ctx, username, email); err != nil {
		return err
	}
	return ErrUsernameTaken
}

func (s *AuthService) issuePair(ctx context.Context, user *models.User) (*AuthResult, error) {
	access, accessExp, err := s.Issuer.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, rec, err := s.Tokens.Create(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("create refresh token: %w", err)
	}
	return &AuthResult{
		AccessToken:  access,
		AccessExp:    accessExp,
		RefreshToken: refresh,
		RefreshExp:   rec.ExpiresAt,
		TokenType:    TokenTypeBearer,
		User:         user,
	}, nil
}

func (s *AuthService) dummy() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.Hasher.Hash("dummy-password-for-timing")
	})
	return s.dummyHash
}

// publish is best effort: a broker outage must not fail the auth flow.
func (s *AuthService) publish(ctx context.Context, typ string, user *models.User) {
	if s.Events == nil {
		return
	}
	ev := events.UserEvent{
		Type:     typ,
		UserID:   user.ID.String(),
		Username: user.Username,
		Role:     string(user.Role),
		At:       s.now(),
	}
	if err := s.Events.PublishEvent(ctx, ev); err != nil {
		logging.FromContext(ctx).Warn("event_publish_failed", "type", typ, "error", err)
	}
}

func (s *AuthService) index(ctx context.Context, user *models.User) {
	if s.Index == nil {
		return
	}
	if err := s.Index.IndexUser(ctx, user); err != nil {
		logging.FromContext(ctx).Warn("index_user_failed", "user_id", user.ID.String(), "error", err)
	}
}
