package otp

import (
	"time"

	"go.uber.org/zap"

	"gomate-auth/internal/clock"
)

const (
	DefaultCodeLength  = 6
	DefaultTTL         = 5 * time.Minute
	DefaultMaxAttempts = 3
)

type Option func(*Ledger)

func WithCodeLength(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.codeLength = n
		}
	}
}

func WithTTL(ttl time.Duration) Option {
	return func(l *Ledger) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

func WithMaxAttempts(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.maxAttempts = n
		}
	}
}

func WithClock(c clock.Clocker) Option {
	return func(l *Ledger) { l.clock = c }
}

func WithGenerator(g Generator) Option {
	return func(l *Ledger) { l.generator = g }
}

// WithExposeCode makes Issue and Resend return the generated code. Demo only.
func WithExposeCode(expose bool) Option {
	return func(l *Ledger) { l.exposeCode = expose }
}

func WithEventSink(s EventSink) Option {
	return func(l *Ledger) { l.events = s }
}

func WithLogger(logger *zap.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}
