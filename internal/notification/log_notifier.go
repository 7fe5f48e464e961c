package notification

import (
	"context"
	"math"
	"strings"

	"go.uber.org/zap"

	"gomate-auth/internal/model"
	"gomate-auth/internal/otp"
)

// LogNotifier writes the rendered email to the log instead of sending it. It is
// the delivery channel for local and demo runs.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(ctx context.Context, d otp.Delivery) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := render(otpBody, struct {
		Name    string
		Code    string
		Minutes int
	}{
		Name:    d.Profile.FullName(),
		Code:    d.Code,
		Minutes: int(math.Ceil(d.TTL.Minutes())),
	})
	if err != nil {
		return err
	}

	n.logger.Info("Sending OTP email (demo)",
		zap.String("to", d.Recipient),
		zap.String("subject", otpSubject),
		zap.Time("expires_at", d.ExpiresAt),
		zap.String("body", body))
	return nil
}

func (n *LogNotifier) SendLink(ctx context.Context, l model.VerificationLink) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := render(verificationBody, struct {
		Name  string
		Link  string
		Hours int
	}{
		Name:  strings.TrimSpace(l.FirstName + " " + l.LastName),
		Link:  l.Link,
		Hours: int(math.Ceil(l.TTL.Hours())),
	})
	if err != nil {
		return err
	}

	n.logger.Info("Sending verification email (demo)",
		zap.String("to", l.Email),
		zap.String("subject", verificationSubject),
		zap.String("body", body))
	return nil
}
