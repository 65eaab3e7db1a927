package service

import (
	"context"
	"time"

	"github.com/geocoder89/careerhub/internal/domain/user"
)

// UserStore is the credential store. Each method touches exactly one user.
type UserStore interface {
	Create(ctx context.Context, u user.User) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
	UpdateProfile(ctx context.Context, id string, upd user.ProfileUpdate, now time.Time) (user.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string, now time.Time) error
	SetLastLogin(ctx context.Context, id string, at time.Time) error
	SetLastLogout(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

// ResetTokenStore keeps at most one active reset token per user.
type ResetTokenStore interface {
	// SaveResetToken replaces any token previously stored for the user.
	SaveResetToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error
	// ConsumeResetToken atomically removes a live token and returns its owner.
	// Unknown or expired tokens yield user.ErrResetTokenNotFound.
	ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time) (string, error)
}

type PasswordHasher interface {
	HashPassword(plain string) (string, error)
	CheckPassword(hash, plain string) error
}
