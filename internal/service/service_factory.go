package service

import (
	"io"

	"go.uber.org/zap"

	"gomate-auth/internal/clock"
	"gomate-auth/internal/config"
	"gomate-auth/internal/model"
	"gomate-auth/internal/otp"
)

// Dependencies are the collaborators picked by the application factory,
// in-memory or backed by Redis, Kafka and ClickHouse.
type Dependencies struct {
	OTPStore otp.Store
	Tokens   model.EmailTokenRepository
	Notifier otp.Notifier
	Links    LinkSender
	Events   otp.EventSink
	Clock    clock.Clocker
}

// ServiceFactory creates and manages service instances
type ServiceFactory struct {
	cfg    *config.Config
	deps   Dependencies
	logger *zap.Logger

	ledger   *otp.Ledger
	verifier *EmailVerifier
}

// NewServiceFactory creates a new service factory
func NewServiceFactory(cfg *config.Config, deps Dependencies, logger *zap.Logger) *ServiceFactory {
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	if deps.Events == nil {
		deps.Events = otp.NopSink
	}
	return &ServiceFactory{
		cfg:    cfg,
		deps:   deps,
		logger: logger,
	}
}

// Ledger returns the OTP ledger instance (singleton)
func (f *ServiceFactory) Ledger() *otp.Ledger {
	if f.ledger == nil {
		f.ledger = otp.NewLedger(f.deps.OTPStore, f.deps.Notifier,
			otp.WithCodeLength(f.cfg.OTP.CodeLength),
			otp.WithTTL(f.cfg.OTP.TTL),
			otp.WithMaxAttempts(f.cfg.OTP.MaxAttempts),
			otp.WithExposeCode(f.cfg.OTP.ExposeCode),
			otp.WithClock(f.deps.Clock),
			otp.WithEventSink(f.deps.Events),
			otp.WithLogger(f.logger.Named("otp")),
		)
	}
	return f.ledger
}

// EmailVerifier returns the email verification service instance (singleton)
func (f *ServiceFactory) EmailVerifier() (*EmailVerifier, error) {
	if f.verifier == nil {
		v, err := NewEmailVerifier(
			f.deps.Tokens,
			f.deps.Links,
			f.deps.Clock,
			f.cfg.EmailVerification.TokenTTL,
			f.cfg.EmailVerification.BaseURL,
			f.logger.Named("email_verification"),
		)
		if err != nil {
			return nil, err
		}
		f.verifier = v
	}
	return f.verifier, nil
}

// Cleanup flushes the event sink if it buffers.
func (f *ServiceFactory) Cleanup() {
	if c, ok := f.deps.Events.(io.Closer); ok {
		if err := c.Close(); err != nil {
			f.logger.Error("Failed to close event sink", zap.Error(err))
		}
	}
}
