// Package otp issues and verifies one-time codes. The Ledger owns one record per
// recipient and enforces expiry, an attempt cap and single use. Expiry and the
// cap are checked lazily when a recipient is next touched; nothing sweeps in the
// background.
package otp

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"go.uber.org/zap"

	"gomate-auth/internal/clock"
)

type Ledger struct {
	store    Store
	notifier Notifier
	logger   *zap.Logger

	clock      clock.Clocker
	generator  Generator
	events     EventSink
	codeLength int
	ttl        time.Duration

	maxAttempts int
	exposeCode  bool
}

func NewLedger(store Store, notifier Notifier, opts ...Option) *Ledger {
	l := &Ledger{
		store:       store,
		notifier:    notifier,
		logger:      zap.NewNop(),
		clock:       clock.New(),
		generator:   NewRandomGenerator(),
		events:      NopSink,
		codeLength:  DefaultCodeLength,
		ttl:         DefaultTTL,
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) TTL() time.Duration { return l.ttl }

func (l *Ledger) MaxAttempts() int { return l.maxAttempts }

// Issue replaces any record for recipient with a fresh code and sends it.
func (l *Ledger) Issue(ctx context.Context, recipient string, profile Profile) Result {
	if recipient == "" {
		return failure(ErrInvalidRecipient, msgRecipientNeeded)
	}

	now := l.clock.Now()
	rec := Record{
		Recipient: recipient,
		Code:      l.generator.Code(l.codeLength),
		IssuedAt:  now,
		ExpiresAt: now.Add(l.ttl),
	}

	if err := l.store.Put(ctx, rec); err != nil {
		l.logger.Error("Failed to store OTP",
			zap.String("recipient", recipient),
			zap.Error(err))
		return failure(fmt.Errorf("%w: %w", ErrStore, err), msgSendFailed)
	}
	l.emit(ctx, EventIssued, recipient, 0, now)

	err := l.notifier.Send(ctx, Delivery{
		Recipient: recipient,
		Code:      rec.Code,
		Profile:   profile,
		ExpiresAt: rec.ExpiresAt,
		TTL:       l.ttl,
	})
	if err != nil {
		l.logger.Error("Failed to deliver OTP",
			zap.String("recipient", recipient),
			zap.Error(err))
		l.emit(ctx, EventDeliveryFailed, recipient, 0, now)
		return failure(fmt.Errorf("%w: %w", ErrDelivery, err), msgSendFailed)
	}

	l.logger.Info("OTP issued",
		zap.String("recipient", recipient),
		zap.Time("expires_at", rec.ExpiresAt))

	res := success(fmt.Sprintf("OTP sent successfully to %s", recipient))
	if l.exposeCode {
		res.Code = rec.Code
	}
	return res
}

// Resend drops the current record, if any, and issues a new code.
func (l *Ledger) Resend(ctx context.Context, recipient string, profile Profile) Result {
	if recipient == "" {
		return failure(ErrInvalidRecipient, msgRecipientNeeded)
	}
	if err := l.store.Delete(ctx, recipient); err != nil {
		l.logger.Error("Failed to clear OTP before resend",
			zap.String("recipient", recipient),
			zap.Error(err))
		return failure(fmt.Errorf("%w: %w", ErrStore, err), msgSendFailed)
	}
	return l.Issue(ctx, recipient, profile)
}

// Verify checks candidate against the recipient's code. Every call that reaches
// the comparison is charged one attempt, whatever the outcome.
func (l *Ledger) Verify(ctx context.Context, recipient, candidate string) Result {
	var (
		outcome  error
		attempts int
		now      time.Time
	)

	err := l.store.Update(ctx, recipient, func(rec *Record) (Action, error) {
		outcome, attempts = nil, 0
		now = l.clock.Now()

		switch {
		case rec == nil:
			outcome = ErrNotFound
			return Keep, nil
		case rec.Expired(now):
			outcome = ErrExpired
			return Delete, nil
		case rec.Attempts >= l.maxAttempts:
			outcome = ErrAttemptsExhausted
			attempts = rec.Attempts
			return Delete, nil
		}

		rec.Attempts++
		attempts = rec.Attempts
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(rec.Code)) == 1 {
			return Delete, nil
		}
		outcome = ErrMismatch
		return Save, nil
	})
	if err != nil {
		l.logger.Error("OTP verification failed",
			zap.String("recipient", recipient),
			zap.Error(err))
		return failure(fmt.Errorf("%w: %w", ErrStore, err), msgVerifyFailed)
	}

	switch outcome {
	case nil:
		l.logger.Info("OTP verified", zap.String("recipient", recipient))
		l.emit(ctx, EventVerified, recipient, attempts, now)
		return success(msgVerified)
	case ErrNotFound:
		return failure(ErrNotFound, msgNotFound)
	case ErrExpired:
		l.emit(ctx, EventExpired, recipient, attempts, now)
		return failure(ErrExpired, msgExpired)
	case ErrAttemptsExhausted:
		l.emit(ctx, EventExhausted, recipient, attempts, now)
		return failure(ErrAttemptsExhausted, msgExhausted)
	default:
		l.emit(ctx, EventMismatch, recipient, attempts, now)
		return failure(ErrMismatch, mismatchMessage(l.maxAttempts-attempts))
	}
}

// Invalidate removes any record for recipient. Only an actual removal is
// recorded as an event.
func (l *Ledger) Invalidate(ctx context.Context, recipient string) error {
	var (
		removed  bool
		attempts int
	)
	err := l.store.Update(ctx, recipient, func(rec *Record) (Action, error) {
		removed, attempts = rec != nil, 0
		if rec == nil {
			return Keep, nil
		}
		attempts = rec.Attempts
		return Delete, nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStore, err)
	}
	if removed {
		l.emit(ctx, EventInvalidated, recipient, attempts, l.clock.Now())
	}
	return nil
}

// IsValid reports whether recipient has an unexpired record.
func (l *Ledger) IsValid(ctx context.Context, recipient string) bool {
	return l.Status(ctx, recipient).Valid
}

// RemainingSeconds is the whole number of seconds until the code expires.
func (l *Ledger) RemainingSeconds(ctx context.Context, recipient string) int {
	return l.Status(ctx, recipient).RemainingSeconds
}

func (l *Ledger) RemainingAttempts(ctx context.Context, recipient string) int {
	return l.Status(ctx, recipient).RemainingAttempts
}

// Status answers the three read-only queries from a single lookup. It never
// mutates or deletes the record, expired or not.
func (l *Ledger) Status(ctx context.Context, recipient string) Status {
	rec, err := l.store.Get(ctx, recipient)
	if err != nil {
		l.logger.Warn("Failed to read OTP status",
			zap.String("recipient", recipient),
			zap.Error(err))
		return Status{}
	}
	if rec == nil {
		return Status{}
	}

	now := l.clock.Now()
	st := Status{
		Valid:             !rec.Expired(now),
		RemainingAttempts: max(0, l.maxAttempts-rec.Attempts),
	}
	if remaining := rec.ExpiresAt.Sub(now); remaining > 0 {
		st.RemainingSeconds = int(remaining / time.Second)
	}
	return st
}

func (l *Ledger) emit(ctx context.Context, t EventType, recipient string, attempts int, at time.Time) {
	l.events.Record(ctx, Event{
		Type:       t,
		Recipient:  recipient,
		Attempts:   attempts,
		OccurredAt: at,
	})
}

func mismatchMessage(remaining int) string {
	switch {
	case remaining <= 0:
		return msgMaxReached
	case remaining == 1:
		return "Incorrect code. 1 attempt remaining."
	default:
		return fmt.Sprintf("Incorrect code. %d attempts remaining.", remaining)
	}
}
