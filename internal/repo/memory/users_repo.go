package memory

import (
	"context"
	"sync"
	"time"

	"github.com/geocoder89/careerhub/internal/domain/user"
	"github.com/google/uuid"
)

// UsersRepo is a process-local credential store used by tests and DB_URL=memory://.
type UsersRepo struct {
	mu      sync.RWMutex
	items   map[string]user.User // id -> user
	byEmail map[string]string    // email -> id
}

func NewUsersRepo() *UsersRepo {
	return &UsersRepo{
		items:   make(map[string]user.User),
		byEmail: make(map[string]string),
	}
}

func (r *UsersRepo) Create(ctx context.Context, u user.User) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byEmail[u.Email]; taken {
		return user.User{}, user.ErrEmailTaken
	}

	u.ID = uuid.NewString()
	r.items[u.ID] = u
	r.byEmail[u.Email] = u.ID

	return u, nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.items[id]
	if !ok {
		return user.User{}, user.ErrUserNotFound
	}
	return u, nil
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return user.User{}, user.ErrUserNotFound
	}
	return r.items[id], nil
}

func (r *UsersRepo) UpdateProfile(ctx context.Context, id string, upd user.ProfileUpdate, now time.Time) (user.User, error) {
	var out user.User

	err := r.mutate(id, func(u *user.User) {
		upd.Apply(u)
		u.UpdatedAt = now
		out = *u
	})
	return out, err
}

func (r *UsersRepo) UpdatePassword(ctx context.Context, id, passwordHash string, now time.Time) error {
	return r.mutate(id, func(u *user.User) {
		u.PasswordHash = passwordHash
		u.UpdatedAt = now
	})
}

func (r *UsersRepo) SetLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.mutate(id, func(u *user.User) {
		u.LastLogin = at
		u.UpdatedAt = at
	})
}

func (r *UsersRepo) SetLastLogout(ctx context.Context, id string, at time.Time) error {
	return r.mutate(id, func(u *user.User) {
		u.LastLogout = &at
		u.UpdatedAt = at
	})
}

func (r *UsersRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.items[id]
	if !ok {
		return user.ErrUserNotFound
	}

	delete(r.items, id)
	delete(r.byEmail, u.Email)
	return nil
}

func (r *UsersRepo) SaveResetToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	return r.mutate(userID, func(u *user.User) {
		u.ResetTokenHash = &tokenHash
		u.ResetTokenExpiresAt = &expiresAt
	})
}

func (r *UsersRepo) ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, u := range r.items {
		if u.ResetTokenHash == nil || *u.ResetTokenHash != tokenHash {
			continue
		}
		if u.ResetTokenExpiresAt == nil || !u.ResetTokenExpiresAt.After(now) {
			return "", user.ErrResetTokenNotFound
		}

		u.ResetTokenHash = nil
		u.ResetTokenExpiresAt = nil
		r.items[id] = u
		return id, nil
	}

	return "", user.ErrResetTokenNotFound
}

func (r *UsersRepo) Ping(ctx context.Context) error {
	return nil
}

func (r *UsersRepo) mutate(id string, fn func(u *user.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.items[id]
	if !ok {
		return user.ErrUserNotFound
	}

	fn(&u)
	r.items[id] = u
	return nil
}
