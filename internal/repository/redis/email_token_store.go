package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"gomate-auth/internal/client"
	"gomate-auth/internal/clock"
	"gomate-auth/internal/model"
	"gomate-auth/internal/util"
)

const (
	emailTokenPrefix   = "email_token:"
	emailPendingPrefix = "email_pending:"
	emailVerifiedKey   = "email_verified"
)

// EmailTokenStore implements model.EmailTokenRepository on Redis. Token keys
// expire with the token; verified emails are kept in one set. The pending key
// per email points at the only redeemable token and every change to it runs
// under WATCH.
type EmailTokenStore struct {
	client     *client.RedisClient
	clock      clock.Clocker
	maxRetries int
}

var _ model.EmailTokenRepository = (*EmailTokenStore)(nil)

func NewEmailTokenStore(c *client.RedisClient, clk clock.Clocker) *EmailTokenStore {
	return &EmailTokenStore{client: c, clock: clk, maxRetries: defaultMaxRetries}
}

func (s *EmailTokenStore) SaveToken(ctx context.Context, tok model.EmailToken) error {
	ttl := tok.ExpiresAt.Sub(s.clock.Now())
	if ttl <= 0 {
		return fmt.Errorf("token for %s already expired", tok.Email)
	}

	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("failed to encode email token: %w", err)
	}

	pendingKey := emailPendingPrefix + tok.Email
	txf := func(tx *goredis.Tx) error {
		previous, err := tx.Get(ctx, pendingKey).Result()
		if err != nil && !errors.Is(err, goredis.Nil) {
			return fmt.Errorf("failed to read pending token: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			if previous != "" && previous != tok.Token {
				pipe.Del(ctx, emailTokenPrefix+previous)
			}
			pipe.Set(ctx, emailTokenPrefix+tok.Token, data, ttl)
			pipe.Set(ctx, pendingKey, tok.Token, ttl)
			return nil
		})
		return err
	}

	if err := watchWithRetry(ctx, s.client, s.maxRetries, txf, pendingKey); err != nil {
		util.Error("Failed to store email token", zap.String("email", tok.Email), zap.Error(err))
		return fmt.Errorf("failed to store email token: %w", err)
	}
	return nil
}

// TakeToken redeems token with GETDEL, so only one caller ever gets it. The
// pending pointer is then cleared only if it still names this token; a newer
// token saved in between keeps its pointer.
func (s *EmailTokenStore) TakeToken(ctx context.Context, token string) (*model.EmailToken, error) {
	raw, err := s.client.GetDel(ctx, emailTokenPrefix+token)
	if err != nil {
		if errors.Is(err, client.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to take email token: %w", err)
	}

	var tok model.EmailToken
	if err := json.Unmarshal([]byte(raw), &tok); err != nil {
		return nil, fmt.Errorf("failed to decode email token: %w", err)
	}

	pendingKey := emailPendingPrefix + tok.Email
	txf := func(tx *goredis.Tx) error {
		pending, err := tx.Get(ctx, pendingKey).Result()
		if errors.Is(err, goredis.Nil) || (err == nil && pending != token) {
			return nil
		}
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Del(ctx, pendingKey)
			return nil
		})
		return err
	}

	// The token is already consumed; a stale pointer only names a missing key.
	if err := watchWithRetry(ctx, s.client, s.maxRetries, txf, pendingKey); err != nil {
		util.Warn("Failed to clear pending email token", zap.String("email", tok.Email), zap.Error(err))
	}
	return &tok, nil
}

func (s *EmailTokenStore) MarkVerified(ctx context.Context, email string) error {
	if err := s.client.SAdd(ctx, emailVerifiedKey, email); err != nil {
		return fmt.Errorf("failed to mark %s verified: %w", email, err)
	}
	return nil
}

func (s *EmailTokenStore) IsVerified(ctx context.Context, email string) (bool, error) {
	ok, err := s.client.SIsMember(ctx, emailVerifiedKey, email)
	if err != nil {
		return false, fmt.Errorf("failed to check %s: %w", email, err)
	}
	return ok, nil
}
