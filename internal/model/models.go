package model

import (
	"context"
	"time"
)

// -------------------- EMAIL VERIFICATION TOKEN --------------------

// EmailToken is a pending link-based email verification. At most one token is
// pending per email; issuing a new one replaces the previous.
type EmailToken struct {
	Token     string    `json:"token"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (t EmailToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// -------------------- REPOSITORY INTERFACES --------------------

// EmailTokenRepository stores pending tokens and the set of verified emails.
type EmailTokenRepository interface {
	// SaveToken stores tok and drops any token still pending for tok.Email.
	SaveToken(ctx context.Context, tok EmailToken) error
	// TakeToken removes and returns the token. It returns nil, nil when the
	// token is unknown.
	TakeToken(ctx context.Context, token string) (*EmailToken, error)
	MarkVerified(ctx context.Context, email string) error
	IsVerified(ctx context.Context, email string) (bool, error)
}

// -------------------- OUTBOUND MESSAGES --------------------

// VerificationLink is handed to a link sender after a token was stored.
type VerificationLink struct {
	Email     string
	FirstName string
	LastName  string
	Link      string
	ExpiresAt time.Time
	TTL       time.Duration
}
