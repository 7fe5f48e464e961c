package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gomate-auth/internal/clock"
	"gomate-auth/internal/model"
	"gomate-auth/internal/otp"
)

var ErrTokenInvalid = errors.New("verification token invalid or expired")

const (
	msgLinkSent       = "Verification email sent successfully!"
	msgLinkResent     = "Verification email has been resent!"
	msgLinkSendFailed = "Failed to send verification email. Please try again."
	msgTokenInvalid   = "Invalid or expired verification token."
	msgEmailVerified  = "Email verified successfully! Your account is now active."
	msgTokenFailed    = "Email verification failed. Please try again."
)

// LinkSender delivers a verification link to the address it was issued for.
type LinkSender interface {
	SendLink(ctx context.Context, l model.VerificationLink) error
}

// EmailVerifier runs the link based email verification flow: a random token
// is stored for the address, mailed as a link, and redeemed exactly once.
type EmailVerifier struct {
	tokens  model.EmailTokenRepository
	sender  LinkSender
	clock   clock.Clocker
	ttl     time.Duration
	baseURL *url.URL
	logger  *zap.Logger
}

func NewEmailVerifier(
	tokens model.EmailTokenRepository,
	sender LinkSender,
	clk clock.Clocker,
	ttl time.Duration,
	baseURL string,
	logger *zap.Logger,
) (*EmailVerifier, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid verification base url %q: %w", baseURL, err)
	}
	return &EmailVerifier{
		tokens:  tokens,
		sender:  sender,
		clock:   clk,
		ttl:     ttl,
		baseURL: u,
		logger:  logger,
	}, nil
}

// SendVerification stores a fresh token for email, replacing any pending one,
// and sends the link.
func (v *EmailVerifier) SendVerification(ctx context.Context, email string, profile otp.Profile) otp.Result {
	return v.send(ctx, email, profile, msgLinkSent)
}

func (v *EmailVerifier) Resend(ctx context.Context, email string, profile otp.Profile) otp.Result {
	return v.send(ctx, email, profile, msgLinkResent)
}

func (v *EmailVerifier) send(ctx context.Context, email string, profile otp.Profile, okMessage string) otp.Result {
	if email == "" {
		return otp.Result{Message: msgLinkSendFailed, Err: otp.ErrInvalidRecipient}
	}

	now := v.clock.Now()
	tok := model.EmailToken{
		Token:     newToken(),
		Email:     email,
		CreatedAt: now,
		ExpiresAt: now.Add(v.ttl),
	}

	if err := v.tokens.SaveToken(ctx, tok); err != nil {
		v.logger.Error("Failed to store verification token",
			zap.String("email", email),
			zap.Error(err))
		return otp.Result{Message: msgLinkSendFailed, Err: fmt.Errorf("%w: %w", otp.ErrStore, err)}
	}

	err := v.sender.SendLink(ctx, model.VerificationLink{
		Email:     email,
		FirstName: profile.FirstName,
		LastName:  profile.LastName,
		Link:      v.link(tok.Token),
		ExpiresAt: tok.ExpiresAt,
		TTL:       v.ttl,
	})
	if err != nil {
		v.logger.Error("Failed to send verification email",
			zap.String("email", email),
			zap.Error(err))
		return otp.Result{Message: msgLinkSendFailed, Err: fmt.Errorf("%w: %w", otp.ErrDelivery, err)}
	}

	v.logger.Info("Verification email sent", zap.String("email", email))
	return otp.Result{Success: true, Message: okMessage}
}

// VerifyToken redeems token. Unknown, already used and expired tokens are all
// reported the same way.
func (v *EmailVerifier) VerifyToken(ctx context.Context, token string) otp.Result {
	if token == "" {
		return otp.Result{Message: msgTokenInvalid, Err: ErrTokenInvalid}
	}

	tok, err := v.tokens.TakeToken(ctx, token)
	if err != nil {
		v.logger.Error("Failed to look up verification token", zap.Error(err))
		return otp.Result{Message: msgTokenFailed, Err: fmt.Errorf("%w: %w", otp.ErrStore, err)}
	}
	if tok == nil || tok.Expired(v.clock.Now()) {
		return otp.Result{Message: msgTokenInvalid, Err: ErrTokenInvalid}
	}

	if err := v.tokens.MarkVerified(ctx, tok.Email); err != nil {
		v.logger.Error("Failed to mark email verified",
			zap.String("email", tok.Email),
			zap.Error(err))
		return otp.Result{Message: msgTokenFailed, Err: fmt.Errorf("%w: %w", otp.ErrStore, err)}
	}

	v.logger.Info("Email verified", zap.String("email", tok.Email))
	return otp.Result{Success: true, Message: msgEmailVerified}
}

// IsVerified reports whether email has redeemed a token. Store errors read as
// not verified.
func (v *EmailVerifier) IsVerified(ctx context.Context, email string) bool {
	ok, err := v.tokens.IsVerified(ctx, email)
	if err != nil {
		v.logger.Warn("Failed to read verification status",
			zap.String("email", email),
			zap.Error(err))
		return false
	}
	return ok
}

func (v *EmailVerifier) link(token string) string {
	u := *v.baseURL
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

func newToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
