package otp

import (
	"context"
	"time"
)

// Delivery is everything a notifier needs to tell the recipient their code.
type Delivery struct {
	Recipient string
	Code      string
	Profile   Profile
	ExpiresAt time.Time
	TTL       time.Duration
}

// Notifier hands a freshly issued code to the recipient. The ledger has already
// committed the record when Send is called.
type Notifier interface {
	Send(ctx context.Context, d Delivery) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, d Delivery) error

func (f NotifierFunc) Send(ctx context.Context, d Delivery) error {
	return f(ctx, d)
}
