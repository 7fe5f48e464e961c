package notification

import (
	"context"
	"errors"

	"gomate-auth/internal/model"
	"gomate-auth/internal/otp"
)

// Channel delivers both one-time codes and verification links.
type Channel interface {
	otp.Notifier
	SendLink(ctx context.Context, l model.VerificationLink) error
}

// Multi fans every message out to all channels. It reports the joined errors
// of the channels that failed; the others still deliver.
type Multi []Channel

func (m Multi) Send(ctx context.Context, d otp.Delivery) error {
	var errs []error
	for _, ch := range m {
		if err := ch.Send(ctx, d); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) SendLink(ctx context.Context, l model.VerificationLink) error {
	var errs []error
	for _, ch := range m {
		if err := ch.SendLink(ctx, l); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
