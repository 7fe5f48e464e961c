package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"gomate-auth/internal/otp"
	"gomate-auth/internal/util"
	"gomate-auth/internal/validator"
)

// OTPLedger is what the handler needs from *otp.Ledger.
type OTPLedger interface {
	Issue(ctx context.Context, recipient string, profile otp.Profile) otp.Result
	Resend(ctx context.Context, recipient string, profile otp.Profile) otp.Result
	Verify(ctx context.Context, recipient, candidate string) otp.Result
	Invalidate(ctx context.Context, recipient string) error
	Status(ctx context.Context, recipient string) otp.Status
	TTL() time.Duration
}

type OTPHandler struct {
	ledger    OTPLedger
	validator *validator.Validator
	logger    *zap.Logger
}

func NewOTPHandler(ledger OTPLedger, v *validator.Validator, logger *zap.Logger) *OTPHandler {
	return &OTPHandler{
		ledger:    ledger,
		validator: v,
		logger:    logger,
	}
}

type SendOTPRequest struct {
	Email     string `json:"email" validate:"required,email,max=254"`
	FirstName string `json:"first_name" validate:"omitempty,max=50,safetext"`
	LastName  string `json:"last_name" validate:"omitempty,max=50,safetext"`
}

type VerifyOTPRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
	Code  string `json:"code" validate:"required,otpcode"`
}

type emailParam struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

// IssueResponse is returned by send and resend. Code is only present when the
// service runs with code exposure enabled.
type IssueResponse struct {
	Code             string `json:"code,omitempty"`
	ExpiresInSeconds int    `json:"expires_in_seconds"`
}

func (h *OTPHandler) RegisterRoutes(router chi.Router) {
	router.Route("/otp", func(r chi.Router) {
		r.Post("/send", h.Send)
		r.Post("/verify", h.Verify)
		r.Post("/resend", h.Resend)
		r.Delete("/{email}", h.Invalidate)
		r.Get("/{email}/status", h.Status)
	})
}

// Send issues a code to the email in the body.
func (h *OTPHandler) Send(w http.ResponseWriter, r *http.Request) {
	h.issue(w, r, h.ledger.Issue)
}

// Resend drops any outstanding code and issues a new one.
func (h *OTPHandler) Resend(w http.ResponseWriter, r *http.Request) {
	h.issue(w, r, h.ledger.Resend)
}

func (h *OTPHandler) issue(w http.ResponseWriter, r *http.Request, fn func(context.Context, string, otp.Profile) otp.Result) {
	var req SendOTPRequest
	if err := decodeAndValidate(r, w, h.validator, &req); err != nil {
		respondWithError(w, h.logger, err, "Invalid request body")
		return
	}

	profile := otp.Profile{
		FirstName: util.SanitizeName(req.FirstName),
		LastName:  util.SanitizeName(req.LastName),
	}
	res := fn(r.Context(), util.NormalizeRecipient(req.Email), profile)

	var data interface{}
	if res.Success {
		data = IssueResponse{
			Code:             res.Code,
			ExpiresInSeconds: int(h.ledger.TTL() / time.Second),
		}
	}
	respondWithResult(w, h.logger, res, data)
}

func (h *OTPHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyOTPRequest
	if err := decodeAndValidate(r, w, h.validator, &req); err != nil {
		respondWithError(w, h.logger, err, "Invalid request body")
		return
	}

	res := h.ledger.Verify(r.Context(), util.NormalizeRecipient(req.Email), req.Code)
	respondWithResult(w, h.logger, res, nil)
}

func (h *OTPHandler) Invalidate(w http.ResponseWriter, r *http.Request) {
	recipient, ok := h.pathEmail(w, r)
	if !ok {
		return
	}

	if err := h.ledger.Invalidate(r.Context(), recipient); err != nil {
		respondWithError(w, h.logger, err, "Failed to clear OTP")
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, successResponse(nil, "OTP cleared"))
}

func (h *OTPHandler) Status(w http.ResponseWriter, r *http.Request) {
	recipient, ok := h.pathEmail(w, r)
	if !ok {
		return
	}

	st := h.ledger.Status(r.Context(), recipient)
	respondWithJSON(w, h.logger, http.StatusOK, successResponse(st, ""))
}

func (h *OTPHandler) pathEmail(w http.ResponseWriter, r *http.Request) (string, bool) {
	p := emailParam{Email: strings.TrimSpace(chi.URLParam(r, "email"))}
	if err := h.validator.Validate(p); err != nil {
		respondWithError(w, h.logger, err, "Invalid email")
		return "", false
	}
	return util.NormalizeRecipient(p.Email), true
}
