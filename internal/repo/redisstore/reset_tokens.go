package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/careerhub/internal/domain/user"
	"github.com/geocoder89/careerhub/internal/observability"
	"github.com/redis/go-redis/v9"
)

const (
	tokenKeyPrefix = "careerhub:reset:token:"
	userKeyPrefix  = "careerhub:reset:user:"

	// keys outlive the logical expiry so a skewed clock here never drops a live token
	ttlGrace       = time.Minute
	maxSaveRetries = 10
)

// releaseUserKey drops the user pointer only while it still names the consumed digest.
var releaseUserKey = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

type tokenEntry struct {
	UserID    string    `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ResetTokens keeps password reset digests in redis.
// A user key points at the live digest so a new token evicts the old one.
// Expiry is decided against the caller's clock; the redis TTL only reclaims space.
type ResetTokens struct {
	rdb  *redis.Client
	prom *observability.Prom
	now  func() time.Time
}

func NewResetTokens(rdb *redis.Client, prom *observability.Prom) *ResetTokens {
	return &ResetTokens{rdb: rdb, prom: prom, now: time.Now}
}

func (s *ResetTokens) observe(op string, fn func() error) error {
	if s.prom != nil {
		return s.prom.ObserveDB(op, fn)
	}
	return fn()
}

func (s *ResetTokens) SaveResetToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(s.now())
	if ttl < 0 {
		ttl = 0
	}
	ttl += ttlGrace

	payload, err := json.Marshal(tokenEntry{UserID: userID, ExpiresAt: expiresAt.UTC()})
	if err != nil {
		return err
	}

	userKey := userKeyPrefix + userID

	swap := func(tx *redis.Tx) error {
		prev, err := tx.Get(ctx, userKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if prev != "" && prev != tokenHash {
				pipe.Del(ctx, tokenKeyPrefix+prev)
			}
			pipe.Set(ctx, tokenKeyPrefix+tokenHash, payload, ttl)
			pipe.Set(ctx, userKey, tokenHash, ttl)
			return nil
		})
		return err
	}

	return s.observe("reset_tokens.save", func() error {
		for i := 0; i < maxSaveRetries; i++ {
			err := s.rdb.Watch(ctx, swap, userKey)
			if !errors.Is(err, redis.TxFailedErr) {
				return err
			}
		}
		return fmt.Errorf("save reset token: %w", redis.TxFailedErr)
	})
}

func (s *ResetTokens) ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time) (string, error) {
	var raw string

	err := s.observe("reset_tokens.consume", func() error {
		var err error
		raw, err = s.rdb.GetDel(ctx, tokenKeyPrefix+tokenHash).Result()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return err
	})
	if err != nil {
		return "", err
	}
	if raw == "" {
		return "", user.ErrResetTokenNotFound
	}

	var entry tokenEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return "", fmt.Errorf("decode reset token entry: %w", err)
	}

	// a concurrent save may already have pointed the user key at a newer digest
	_ = releaseUserKey.Run(ctx, s.rdb, []string{userKeyPrefix + entry.UserID}, tokenHash).Err()

	if !now.Before(entry.ExpiresAt) {
		return "", user.ErrResetTokenNotFound
	}
	return entry.UserID, nil
}
