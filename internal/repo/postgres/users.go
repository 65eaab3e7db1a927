package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/geocoder89/careerhub/internal/domain/user"
	"github.com/geocoder89/careerhub/internal/observability"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of *pgxpool.Pool the repo needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id                     TEXT PRIMARY KEY,
	name                   TEXT NOT NULL,
	email                  TEXT NOT NULL UNIQUE,
	password_hash          TEXT NOT NULL,
	phone                  TEXT NOT NULL,
	age                    INTEGER NOT NULL,
	country                TEXT NOT NULL DEFAULT '',
	education              JSONB NOT NULL DEFAULT '[]',
	skills                 JSONB NOT NULL DEFAULT '[]',
	interests              JSONB NOT NULL DEFAULT '[]',
	experience             JSONB NOT NULL DEFAULT '[]',
	languages              JSONB NOT NULL DEFAULT '[]',
	resume                 TEXT NOT NULL DEFAULT '',
	role                   TEXT NOT NULL DEFAULT 'user',
	reset_token_hash       TEXT,
	reset_token_expires_at TIMESTAMPTZ,
	last_login             TIMESTAMPTZ NOT NULL,
	last_logout            TIMESTAMPTZ,
	created_at             TIMESTAMPTZ NOT NULL,
	updated_at             TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS users_reset_token_hash_idx ON users (reset_token_hash) WHERE reset_token_hash IS NOT NULL;
`

const userColumns = `id, name, email, password_hash, phone, age, country,
	education, skills, interests, experience, languages, resume, role,
	reset_token_hash, reset_token_expires_at, last_login, last_logout, created_at, updated_at`

type UsersRepo struct {
	db   DB
	prom *observability.Prom
}

func NewUsersRepo(db DB, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{db: db, prom: prom}
}

func (r *UsersRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

// EnsureSchema creates the users table when it does not exist yet.
func (r *UsersRepo) EnsureSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, schema)
	return err
}

func scanUser(row pgx.Row) (user.User, error) {
	var u user.User
	var role string
	var education, skills, interests, experience, langs []byte

	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&u.Phone,
		&u.Age,
		&u.Country,
		&education,
		&skills,
		&interests,
		&experience,
		&langs,
		&u.Resume,
		&role,
		&u.ResetTokenHash,
		&u.ResetTokenExpiresAt,
		&u.LastLogin,
		&u.LastLogout,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrUserNotFound
		}
		return user.User{}, err
	}

	u.Role = user.Role(role)
	if !u.Role.IsValid() {
		u.Role = user.RoleUser
	}

	u.Education = []user.Education{}
	u.Skills = []user.Skill{}
	u.Interests = []string{}
	u.Experience = []string{}
	u.Languages = []string{}

	for _, f := range []struct {
		raw []byte
		dst any
	}{
		{education, &u.Education},
		{skills, &u.Skills},
		{interests, &u.Interests},
		{experience, &u.Experience},
		{langs, &u.Languages},
	} {
		if len(f.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(f.raw, f.dst); err != nil {
			return user.User{}, fmt.Errorf("decode profile column: %w", err)
		}
	}

	return u, nil
}

func jsonList(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(b) == "null" {
		return []byte("[]"), nil
	}
	return b, nil
}

func (r *UsersRepo) Create(ctx context.Context, u user.User) (user.User, error) {
	u.ID = uuid.NewString()

	lists := make([][]byte, 0, 5)
	for _, v := range []any{u.Education, u.Skills, u.Interests, u.Experience, u.Languages} {
		b, err := jsonList(v)
		if err != nil {
			return user.User{}, err
		}
		lists = append(lists, b)
	}

	err := r.observe("users.create", func() error {
		_, err := r.db.Exec(ctx,
			`INSERT INTO users (id, name, email, password_hash, phone, age, country,
				education, skills, interests, experience, languages, resume, role,
				last_login, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
			u.ID, u.Name, u.Email, u.PasswordHash, u.Phone, u.Age, u.Country,
			lists[0], lists[1], lists[2], lists[3], lists[4], u.Resume, string(u.Role),
			u.LastLogin, u.CreatedAt, u.UpdatedAt,
		)
		return err
	})

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return user.User{}, user.ErrEmailTaken
		}
		return user.User{}, err
	}

	return u, nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	return r.getOne(ctx, "users.get_by_id", `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	return r.getOne(ctx, "users.get_by_email", `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *UsersRepo) getOne(ctx context.Context, op, query string, args ...any) (user.User, error) {
	var u user.User

	err := r.observe(op, func() error {
		var err error
		u, err = scanUser(r.db.QueryRow(ctx, query, args...))
		if errors.Is(err, user.ErrUserNotFound) {
			// a miss is not a db error
			return nil
		}
		return err
	})
	if err != nil {
		return user.User{}, err
	}
	if u.ID == "" {
		return user.User{}, user.ErrUserNotFound
	}
	return u, nil
}

// profileUpdate builds the SET clause for the non-nil fields of upd.
// The returned args end with the row id.
func profileUpdate(id string, upd user.ProfileUpdate, now time.Time) (string, []any, error) {
	var (
		sets []string
		args []any
	)

	argsPosition := 1
	add := func(col string, v any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, argsPosition))
		args = append(args, v)
		argsPosition++
	}
	addJSON := func(col string, v any) error {
		b, err := jsonList(v)
		if err != nil {
			return err
		}
		add(col, b)
		return nil
	}

	if upd.Name != nil {
		add("name", *upd.Name)
	}
	if upd.Phone != nil {
		add("phone", *upd.Phone)
	}
	if upd.Age != nil {
		add("age", *upd.Age)
	}
	if upd.Country != nil {
		add("country", *upd.Country)
	}
	if upd.Education != nil {
		if err := addJSON("education", *upd.Education); err != nil {
			return "", nil, err
		}
	}
	if upd.Skills != nil {
		if err := addJSON("skills", *upd.Skills); err != nil {
			return "", nil, err
		}
	}
	if upd.Interests != nil {
		if err := addJSON("interests", *upd.Interests); err != nil {
			return "", nil, err
		}
	}
	if upd.Experience != nil {
		if err := addJSON("experience", *upd.Experience); err != nil {
			return "", nil, err
		}
	}
	if upd.Languages != nil {
		if err := addJSON("languages", *upd.Languages); err != nil {
			return "", nil, err
		}
	}
	if upd.Resume != nil {
		add("resume", *upd.Resume)
	}
	add("updated_at", now)

	query := fmt.Sprintf(
		`UPDATE users SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), argsPosition, userColumns,
	)
	args = append(args, id)

	return query, args, nil
}

func (r *UsersRepo) UpdateProfile(ctx context.Context, id string, upd user.ProfileUpdate, now time.Time) (user.User, error) {
	query, args, err := profileUpdate(id, upd, now)
	if err != nil {
		return user.User{}, err
	}
	return r.getOne(ctx, "users.update_profile", query, args...)
}

func (r *UsersRepo) UpdatePassword(ctx context.Context, id, passwordHash string, now time.Time) error {
	return r.execOne(ctx, "users.update_password",
		`UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`,
		passwordHash, now, id,
	)
}

func (r *UsersRepo) SetLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.execOne(ctx, "users.set_last_login",
		`UPDATE users SET last_login = $1, updated_at = $1 WHERE id = $2`,
		at, id,
	)
}

func (r *UsersRepo) SetLastLogout(ctx context.Context, id string, at time.Time) error {
	return r.execOne(ctx, "users.set_last_logout",
		`UPDATE users SET last_logout = $1, updated_at = $1 WHERE id = $2`,
		at, id,
	)
}

func (r *UsersRepo) SaveResetToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	return r.execOne(ctx, "users.save_reset_token",
		`UPDATE users SET reset_token_hash = $1, reset_token_expires_at = $2 WHERE id = $3`,
		tokenHash, expiresAt, userID,
	)
}

func (r *UsersRepo) Delete(ctx context.Context, id string) error {
	return r.execOne(ctx, "users.delete", `DELETE FROM users WHERE id = $1`, id)
}

func (r *UsersRepo) execOne(ctx context.Context, op, query string, args ...any) error {
	var tag pgconn.CommandTag

	err := r.observe(op, func() error {
		var err error
		tag, err = r.db.Exec(ctx, query, args...)
		return err
	})
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return user.ErrUserNotFound
	}
	return nil
}

// ConsumeResetToken clears a live token and returns its owner in one statement.
func (r *UsersRepo) ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time) (string, error) {
	var id string

	err := r.observe("users.consume_reset_token", func() error {
		err := r.db.QueryRow(ctx,
			`UPDATE users
			SET reset_token_hash = NULL, reset_token_expires_at = NULL
			WHERE reset_token_hash = $1 AND reset_token_expires_at > $2
			RETURNING id`,
			tokenHash, now,
		).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return err
	})
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", user.ErrResetTokenNotFound
	}
	return id, nil
}

func (r *UsersRepo) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}
