package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/geocoder89/careerhub/internal/auth"
	"github.com/geocoder89/careerhub/internal/domain/user"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidResetToken  = errors.New("invalid or expired reset token")

	ErrEmailTaken   = user.ErrEmailTaken
	ErrUserNotFound = user.ErrUserNotFound
)

const storeTimeout = 3 * time.Second

type SignUpInput struct {
	Name     string
	Email    string
	Password string
	Phone    string
	Age      int
}

type LoginResult struct {
	AccessToken  string
	RefreshToken string
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	User         user.User
}

// ExpiresIn renders the access validity the way clients expect it, e.g. "7d".
func (r LoginResult) ExpiresIn() string {
	return compactDuration(r.AccessTTL)
}

type ResetTicket struct {
	Token     string
	ExpiresAt time.Time
	TTL       time.Duration
}

func (t ResetTicket) ExpiresIn() string {
	return spokenDuration(t.TTL)
}

type AuthService struct {
	users    UserStore
	resets   ResetTokenStore
	hasher   PasswordHasher
	jwt      *auth.Manager
	resetTTL time.Duration
	log      *slog.Logger
	now      func() time.Time
}

type Option func(*AuthService)

func WithClock(now func() time.Time) Option {
	return func(s *AuthService) { s.now = now }
}

func WithLogger(log *slog.Logger) Option {
	return func(s *AuthService) { s.log = log }
}

// WithResetTokenStore moves reset tokens out of the user records.
func WithResetTokenStore(store ResetTokenStore) Option {
	return func(s *AuthService) { s.resets = store }
}

// NewAuthService wires the service. Unless overridden, reset tokens are kept on the user
// record, so users must also implement ResetTokenStore.
func NewAuthService(users UserStore, hasher PasswordHasher, jwtManager *auth.Manager, resetTTL time.Duration, opts ...Option) *AuthService {
	s := &AuthService{
		users:    users,
		hasher:   hasher,
		jwt:      jwtManager,
		resetTTL: resetTTL,
		log:      slog.Default(),
		now:      time.Now,
	}

	if rs, ok := users.(ResetTokenStore); ok {
		s.resets = rs
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.resetTTL <= 0 {
		s.resetTTL = time.Hour
	}
	return s
}

func (s *AuthService) SignUp(ctx context.Context, in SignUpInput) (user.User, error) {
	if strings.TrimSpace(in.Email) == "" || in.Password == "" || strings.TrimSpace(in.Name) == "" {
		return user.User{}, fmt.Errorf("%w: name, email and password are required", ErrValidation)
	}

	cctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	// fast path; the unique index still decides races
	_, err := s.users.GetByEmail(cctx, in.Email)
	if err == nil {
		return user.User{}, ErrEmailTaken
	}
	if !errors.Is(err, ErrUserNotFound) {
		return user.User{}, fmt.Errorf("lookup email: %w", err)
	}

	hash, err := s.hasher.HashPassword(in.Password)
	if err != nil {
		return user.User{}, fmt.Errorf("hash password: %w", err)
	}

	created, err := s.users.Create(cctx, user.New(in.Name, in.Email, hash, in.Phone, in.Age, s.now().UTC()))
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return user.User{}, ErrEmailTaken
		}
		return user.User{}, fmt.Errorf("create user: %w", err)
	}

	s.log.InfoContext(ctx, "user signed up", "user_id", created.ID)
	return created.Public(), nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (LoginResult, error) {
	if email == "" || password == "" {
		return LoginResult{}, fmt.Errorf("%w: email and password are required", ErrValidation)
	}

	cctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	u, err := s.users.GetByEmail(cctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, fmt.Errorf("lookup email: %w", err)
	}

	if err := s.hasher.CheckPassword(u.PasswordHash, password); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	access, err := s.jwt.GenerateAccessToken(u.ID, u.Email, string(u.Role))
	if err != nil {
		return LoginResult{}, fmt.Errorf("sign access token: %w", err)
	}

	refresh, err := s.jwt.GenerateRefreshToken(u.ID)
	if err != nil {
		return LoginResult{}, fmt.Errorf("sign refresh token: %w", err)
	}

	now := s.now().UTC()
	if err := s.users.SetLastLogin(cctx, u.ID, now); err != nil {
		return LoginResult{}, fmt.Errorf("record login: %w", err)
	}
	u.LastLogin = now

	return LoginResult{
		AccessToken:  access,
		RefreshToken: refresh,
		AccessTTL:    s.jwt.AccessTTL(),
		RefreshTTL:   s.jwt.RefreshTTL(),
		User:         u.Public(),
	}, nil
}

// Logout records the logout time for an identified caller. It is best effort and never fails.
func (s *AuthService) Logout(ctx context.Context, caller *user.User) time.Time {
	now := s.now().UTC()
	if caller == nil {
		return now
	}

	cctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	if err := s.users.SetLastLogout(cctx, caller.ID, now); err != nil {
		s.log.WarnContext(ctx, "could not record logout", "user_id", caller.ID, "err", err)
		return now
	}

	s.log.InfoContext(ctx, "user logged out", "user_id", caller.ID)
	return now
}

// Authenticate resolves a bearer access token to its current user.
func (s *AuthService) Authenticate(ctx context.Context, bearer string) (user.User, error) {
	claims, err := s.jwt.VerifyAccessToken(bearer)
	if err != nil {
		return user.User{}, err
	}

	return s.GetUser(ctx, claims.UserID)
}

func (s *AuthService) GetUser(ctx context.Context, id string) (user.User, error) {
	cctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	u, err := s.users.GetByID(cctx, id)
	if err != nil {
		return user.User{}, err
	}
	return u.Public(), nil
}

func (s *AuthService) CurrentUser(ctx context.Context, id string) (user.User, error) {
	return s.GetUser(ctx, id)
}

func (s *AuthService) UpdateProfile(ctx context.Context, id string, upd user.ProfileUpdate) (user.User, error) {
	if err := upd.Normalize(); err != nil {
		return user.User{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	if upd.IsEmpty() {
		return s.GetUser(ctx, id)
	}

	cctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	u, err := s.users.UpdateProfile(cctx, id, upd, s.now().UTC())
	if err != nil {
		return user.User{}, err
	}
	return u.Public(), nil
}

func (s *AuthService) ChangePassword(ctx context.Context, id, current, next string) error {
	if current == "" || next == "" {
		return fmt.Errorf("%w: current password and new password are required", ErrValidation)
	}

	cctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	u, err := s.users.GetByID(cctx, id)
	if err != nil {
		return err
	}

	if err := s.hasher.CheckPassword(u.PasswordHash, current); err != nil {
		return ErrInvalidCredentials
	}

	hash, err := s.hasher.HashPassword(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	return s.users.UpdatePassword(cctx, id, hash, s.now().UTC())
}

func (s *AuthService) ForgotPassword(ctx context.Context, email string) (ResetTicket, error) {
	if email == "" {
		return ResetTicket{}, fmt.Errorf("%w: email is required", ErrValidation)
	}

	cctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	u, err := s.users.GetByEmail(cctx, email)
	if err != nil {
		return ResetTicket{}, err
	}

	token, err := newResetToken()
	if err != nil {
		return ResetTicket{}, fmt.Errorf("generate reset token: %w", err)
	}

	expiresAt := s.now().UTC().Add(s.resetTTL)
	if err := s.resets.SaveResetToken(cctx, u.ID, hashResetToken(token), expiresAt); err != nil {
		return ResetTicket{}, fmt.Errorf("store reset token: %w", err)
	}

	s.log.InfoContext(ctx, "password reset requested", "user_id", u.ID)
	return ResetTicket{Token: token, ExpiresAt: expiresAt, TTL: s.resetTTL}, nil
}

func (s *AuthService) ResetPassword(ctx context.Context, token, next string) error {
	if token == "" || next == "" {
		return fmt.Errorf("%w: token and new password are required", ErrValidation)
	}

	// hash before consuming so a hashing failure cannot burn the token
	hash, err := s.hasher.HashPassword(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	cctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	now := s.now().UTC()
	userID, err := s.resets.ConsumeResetToken(cctx, hashResetToken(token), now)
	if err != nil {
		if errors.Is(err, user.ErrResetTokenNotFound) {
			return ErrInvalidResetToken
		}
		return fmt.Errorf("consume reset token: %w", err)
	}

	if err := s.users.UpdatePassword(cctx, userID, hash, now); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrInvalidResetToken
		}
		return fmt.Errorf("update password: %w", err)
	}

	s.log.InfoContext(ctx, "password reset completed", "user_id", userID)
	return nil
}

// RefreshAccessToken mints a new access token from a refresh token whose user still exists.
func (s *AuthService) RefreshAccessToken(ctx context.Context, refreshToken string) (string, error) {
	if refreshToken == "" {
		return "", fmt.Errorf("%w: token is required", ErrValidation)
	}

	claims, err := s.jwt.VerifyRefreshToken(refreshToken)
	if err != nil {
		return "", err
	}

	u, err := s.GetUser(ctx, claims.UserID)
	if err != nil {
		return "", err
	}

	return s.jwt.GenerateAccessToken(u.ID, u.Email, string(u.Role))
}

func (s *AuthService) DeleteAccount(ctx context.Context, id, password string) error {
	if password == "" {
		return fmt.Errorf("%w: password is required to delete account", ErrValidation)
	}

	cctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	u, err := s.users.GetByID(cctx, id)
	if err != nil {
		return err
	}

	if err := s.hasher.CheckPassword(u.PasswordHash, password); err != nil {
		return ErrInvalidCredentials
	}

	if err := s.users.Delete(cctx, id); err != nil {
		return err
	}

	s.log.InfoContext(ctx, "account deleted", "user_id", id)
	return nil
}

func (s *AuthService) AdminDeleteUser(ctx context.Context, id string) error {
	cctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	return s.users.Delete(cctx, id)
}

// EnsureAdmin creates the configured admin account unless the email is already registered.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password, name string) error {
	if email == "" || password == "" {
		return nil
	}

	cctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	_, err := s.users.GetByEmail(cctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return err
	}

	hash, err := s.hasher.HashPassword(password)
	if err != nil {
		return err
	}

	u := user.New(name, email, hash, "", 0, s.now().UTC())
	u.Role = user.RoleAdmin

	_, err = s.users.Create(cctx, u)
	if errors.Is(err, ErrEmailTaken) {
		return nil
	}
	return err
}

func (s *AuthService) Ping(ctx context.Context) error {
	return s.users.Ping(ctx)
}

func newResetToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
