package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"gomate-auth/internal/otp"
	"gomate-auth/internal/util"
	"gomate-auth/internal/validator"
)

// EmailVerification is what the handler needs from *service.EmailVerifier.
type EmailVerification interface {
	SendVerification(ctx context.Context, email string, profile otp.Profile) otp.Result
	Resend(ctx context.Context, email string, profile otp.Profile) otp.Result
	VerifyToken(ctx context.Context, token string) otp.Result
	IsVerified(ctx context.Context, email string) bool
}

type EmailHandler struct {
	verifier  EmailVerification
	validator *validator.Validator
	logger    *zap.Logger
}

func NewEmailHandler(verifier EmailVerification, v *validator.Validator, logger *zap.Logger) *EmailHandler {
	return &EmailHandler{
		verifier:  verifier,
		validator: v,
		logger:    logger,
	}
}

type VerifyTokenRequest struct {
	Token string `json:"token" validate:"required,hexadecimal,len=32"`
}

type VerificationStatus struct {
	Email    string `json:"email"`
	Verified bool   `json:"verified"`
}

func (h *EmailHandler) RegisterRoutes(router chi.Router) {
	router.Route("/email", func(r chi.Router) {
		r.Post("/verification", h.SendVerification)
		r.Post("/verification/resend", h.Resend)
		r.Post("/verify", h.VerifyToken)
		r.Get("/{email}/status", h.Status)
	})
}

func (h *EmailHandler) SendVerification(w http.ResponseWriter, r *http.Request) {
	h.send(w, r, h.verifier.SendVerification)
}

func (h *EmailHandler) Resend(w http.ResponseWriter, r *http.Request) {
	h.send(w, r, h.verifier.Resend)
}

func (h *EmailHandler) send(w http.ResponseWriter, r *http.Request, fn func(context.Context, string, otp.Profile) otp.Result) {
	var req SendOTPRequest
	if err := decodeAndValidate(r, w, h.validator, &req); err != nil {
		respondWithError(w, h.logger, err, "Invalid request body")
		return
	}

	profile := otp.Profile{
		FirstName: util.SanitizeName(req.FirstName),
		LastName:  util.SanitizeName(req.LastName),
	}
	respondWithResult(w, h.logger, fn(r.Context(), util.NormalizeRecipient(req.Email), profile), nil)
}

func (h *EmailHandler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	var req VerifyTokenRequest
	if err := decodeAndValidate(r, w, h.validator, &req); err != nil {
		respondWithError(w, h.logger, err, "Invalid request body")
		return
	}

	respondWithResult(w, h.logger, h.verifier.VerifyToken(r.Context(), req.Token), nil)
}

func (h *EmailHandler) Status(w http.ResponseWriter, r *http.Request) {
	p := emailParam{Email: chi.URLParam(r, "email")}
	if err := h.validator.Validate(p); err != nil {
		respondWithError(w, h.logger, err, "Invalid email")
		return
	}

	email := util.NormalizeRecipient(p.Email)
	respondWithJSON(w, h.logger, http.StatusOK, successResponse(VerificationStatus{
		Email:    email,
		Verified: h.verifier.IsVerified(r.Context(), email),
	}, ""))
}
