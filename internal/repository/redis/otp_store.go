package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"gomate-auth/internal/client"
	"gomate-auth/internal/clock"
	"gomate-auth/internal/otp"
	"gomate-auth/internal/util"
)

const otpPrefix = "otp:"

var errSaveWithoutRecord = errors.New("otp store: save requested without a record")

// OTPStore keeps ledger records in Redis so several instances share them.
// Keys live for the record's remaining lifetime plus a retention grace, so an
// expired code is still reported as expired rather than missing.
type OTPStore struct {
	client     *client.RedisClient
	clock      clock.Clocker
	retention  time.Duration
	maxRetries int
}

func NewOTPStore(c *client.RedisClient, clk clock.Clocker, retention time.Duration) *OTPStore {
	return &OTPStore{
		client:     c,
		clock:      clk,
		retention:  retention,
		maxRetries: defaultMaxRetries,
	}
}

func otpKey(recipient string) string {
	return otpPrefix + recipient
}

func (s *OTPStore) expiration(rec otp.Record) time.Duration {
	d := rec.ExpiresAt.Sub(s.clock.Now()) + s.retention
	if d < time.Second {
		return time.Second
	}
	return d
}

func (s *OTPStore) Get(ctx context.Context, recipient string) (*otp.Record, error) {
	raw, err := s.client.Get(ctx, otpKey(recipient))
	if err != nil {
		if errors.Is(err, client.ErrKeyNotFound) {
			return nil, nil
		}
		util.Error("Failed to get OTP from redis", zap.String("recipient", recipient), zap.Error(err))
		return nil, fmt.Errorf("failed to get OTP: %w", err)
	}
	return decodeRecord([]byte(raw))
}

func (s *OTPStore) Put(ctx context.Context, rec otp.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode OTP: %w", err)
	}
	if err := s.client.Set(ctx, otpKey(rec.Recipient), data, s.expiration(rec)); err != nil {
		util.Error("Failed to set OTP in redis", zap.String("recipient", rec.Recipient), zap.Error(err))
		return fmt.Errorf("failed to set OTP: %w", err)
	}
	util.Debug("OTP cached", zap.String("recipient", rec.Recipient), zap.Time("expires_at", rec.ExpiresAt))
	return nil
}

func (s *OTPStore) Delete(ctx context.Context, recipient string) error {
	if err := s.client.Del(ctx, otpKey(recipient)); err != nil {
		util.Error("Failed to delete OTP from redis", zap.String("recipient", recipient), zap.Error(err))
		return fmt.Errorf("failed to delete OTP: %w", err)
	}
	return nil
}

// Update runs fn under WATCH on the recipient's key and commits its decision in
// a MULTI block. A concurrent write aborts the transaction and fn runs again on
// the fresh record.
func (s *OTPStore) Update(ctx context.Context, recipient string, fn otp.UpdateFunc) error {
	key := otpKey(recipient)

	txf := func(tx *goredis.Tx) error {
		var cur *otp.Record
		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, goredis.Nil):
		case err != nil:
			return err
		default:
			if cur, err = decodeRecord(raw); err != nil {
				return err
			}
		}

		action, err := fn(cur)
		if err != nil {
			return err
		}

		switch action {
		case otp.Save:
			if cur == nil {
				return errSaveWithoutRecord
			}
			data, err := json.Marshal(cur)
			if err != nil {
				return fmt.Errorf("failed to encode OTP: %w", err)
			}
			_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
				pipe.Set(ctx, key, data, s.expiration(*cur))
				return nil
			})
			return err
		case otp.Delete:
			_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			})
			return err
		default:
			return nil
		}
	}

	switch err := watchWithRetry(ctx, s.client, s.maxRetries, txf, key); {
	case errors.Is(err, ErrContention):
		return err
	case err != nil:
		return fmt.Errorf("failed to update OTP: %w", err)
	}
	return nil
}

func decodeRecord(raw []byte) (*otp.Record, error) {
	var rec otp.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode OTP: %w", err)
	}
	return &rec, nil
}
