package service

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gomate-auth/internal/clock"
	"gomate-auth/internal/config"
	"gomate-auth/internal/model"
	"gomate-auth/internal/otp"
)

type recordingSender struct {
	links []model.VerificationLink
	err   error
}

func (s *recordingSender) SendLink(_ context.Context, l model.VerificationLink) error {
	s.links = append(s.links, l)
	return s.err
}

func (s *recordingSender) token(t *testing.T, i int) string {
	t.Helper()
	u, err := url.Parse(s.links[i].Link)
	require.NoError(t, err)
	return u.Query().Get("token")
}

func newVerifier(t *testing.T) (*EmailVerifier, *recordingSender, *clock.Manual) {
	t.Helper()
	clk := clock.NewManual(time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC))
	sender := &recordingSender{}
	v, err := NewEmailVerifier(NewMemoryTokenStore(), sender, clk, 24*time.Hour,
		"http://localhost:8086/verify-email", zap.NewNop())
	require.NoError(t, err)
	return v, sender, clk
}

var ada = otp.Profile{FirstName: "Ada", LastName: "Lovelace"}

func TestEmailVerifier_SendAndVerify(t *testing.T) {
	v, sender, clk := newVerifier(t)
	ctx := context.Background()

	res := v.SendVerification(ctx, "a@example.com", ada)
	require.True(t, res.Success)
	assert.Equal(t, "Verification email sent successfully!", res.Message)

	require.Len(t, sender.links, 1)
	l := sender.links[0]
	assert.Equal(t, "a@example.com", l.Email)
	assert.Equal(t, "Ada", l.FirstName)
	assert.Equal(t, clk.Now().Add(24*time.Hour), l.ExpiresAt)
	assert.Regexp(t, `^http://localhost:8086/verify-email\?token=[0-9a-f]{32}$`, l.Link)

	assert.False(t, v.IsVerified(ctx, "a@example.com"))

	res = v.VerifyToken(ctx, sender.token(t, 0))
	assert.True(t, res.Success)
	assert.Equal(t, "Email verified successfully! Your account is now active.", res.Message)
	assert.True(t, v.IsVerified(ctx, "a@example.com"))

	res = v.VerifyToken(ctx, sender.token(t, 0))
	assert.False(t, res.Success, "tokens are single use")
	assert.True(t, res.Is(ErrTokenInvalid))
}

func TestEmailVerifier_ExpiredToken(t *testing.T) {
	v, sender, clk := newVerifier(t)
	ctx := context.Background()

	v.SendVerification(ctx, "a@example.com", ada)
	clk.Advance(24 * time.Hour)

	res := v.VerifyToken(ctx, sender.token(t, 0))
	assert.False(t, res.Success)
	assert.Equal(t, "Invalid or expired verification token.", res.Message)
	assert.False(t, v.IsVerified(ctx, "a@example.com"))
}

func TestEmailVerifier_UnknownToken(t *testing.T) {
	v, _, _ := newVerifier(t)

	for _, token := range []string{"", "deadbeef"} {
		res := v.VerifyToken(context.Background(), token)
		assert.True(t, res.Is(ErrTokenInvalid))
		assert.Equal(t, "Invalid or expired verification token.", res.Message)
	}
}

func TestEmailVerifier_ResendReplacesToken(t *testing.T) {
	v, sender, _ := newVerifier(t)
	ctx := context.Background()

	v.SendVerification(ctx, "a@example.com", ada)
	res := v.Resend(ctx, "a@example.com", ada)
	require.True(t, res.Success)
	assert.Equal(t, "Verification email has been resent!", res.Message)
	require.NotEqual(t, sender.token(t, 0), sender.token(t, 1))

	assert.False(t, v.VerifyToken(ctx, sender.token(t, 0)).Success)
	assert.True(t, v.VerifyToken(ctx, sender.token(t, 1)).Success)
}

func TestEmailVerifier_SendFailure(t *testing.T) {
	v, sender, _ := newVerifier(t)
	sender.err = errors.New("smtp down")

	res := v.SendVerification(context.Background(), "a@example.com", ada)
	assert.False(t, res.Success)
	assert.True(t, res.Is(otp.ErrDelivery))
	assert.Equal(t, "Failed to send verification email. Please try again.", res.Message)

	res = v.SendVerification(context.Background(), "", ada)
	assert.True(t, res.Is(otp.ErrInvalidRecipient))
}

func TestNewEmailVerifier_BadBaseURL(t *testing.T) {
	_, err := NewEmailVerifier(NewMemoryTokenStore(), &recordingSender{}, clock.New(), time.Hour, "://bad", zap.NewNop())
	assert.Error(t, err)
}

func TestServiceFactory_BuildsFromConfig(t *testing.T) {
	cfg := &config.Config{
		OTP: config.OTPConfig{CodeLength: 8, TTL: time.Minute, MaxAttempts: 5, ExposeCode: true},
		EmailVerification: config.EmailVerificationConfig{
			TokenTTL: time.Hour,
			BaseURL:  "http://localhost:8086/verify-email",
		},
	}
	f := NewServiceFactory(cfg, Dependencies{
		OTPStore: otp.NewMemoryStore(2),
		Tokens:   NewMemoryTokenStore(),
		Notifier: otp.NotifierFunc(func(context.Context, otp.Delivery) error { return nil }),
		Links:    &recordingSender{},
	}, zap.NewNop())

	ledger := f.Ledger()
	assert.Same(t, ledger, f.Ledger())
	assert.Equal(t, time.Minute, ledger.TTL())
	assert.Equal(t, 5, ledger.MaxAttempts())

	res := ledger.Issue(context.Background(), "a@example.com", ada)
	require.True(t, res.Success)
	assert.Len(t, res.Code, 8)

	v, err := f.EmailVerifier()
	require.NoError(t, err)
	assert.True(t, v.SendVerification(context.Background(), "a@example.com", ada).Success)

	f.Cleanup()
}
