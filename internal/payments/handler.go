package payments

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/patron-payments/internal/gateway"
	httpmiddleware "github.com/wolfman30/patron-payments/internal/http/middleware"
	"github.com/wolfman30/patron-payments/internal/velocity"
	"github.com/wolfman30/patron-payments/pkg/logging"
)

// PaymentGateway is the subset of *gateway.Gateway the handler needs.
type PaymentGateway interface {
	ProcessPayment(ctx context.Context, patronID string, amount float64, memo string) (*gateway.PaymentResult, error)
	RefundPayment(ctx context.Context, transactionID string, amount float64) (*gateway.RefundResult, error)
	VerifyPaymentStatus(ctx context.Context, transactionID string) (*gateway.PaymentStatus, error)
}

// VelocityGuard limits how often patrons pay and transactions are refunded.
type VelocityGuard interface {
	CheckPayment(ctx context.Context, patronID string) (*velocity.Result, error)
	CheckRefund(ctx context.Context, transactionID string) (*velocity.Result, error)
	ResetPatron(ctx context.Context, patronID string) error
	ResetTransaction(ctx context.Context, transactionID string) error
	PatronStats(ctx context.Context, patronID string) (*velocity.Result, error)
}

type rejectionObserver interface {
	ObserveVelocityRejection(checkType string)
}

// Handler exposes the gateway over HTTP.
type Handler struct {
	gateway  PaymentGateway
	velocity VelocityGuard
	metrics  rejectionObserver
	logger   *logging.Logger
}

type paymentRequest struct {
	PatronID string  `json:"patron_id"`
	Amount   float64 `json:"amount"`
	Memo     string  `json:"memo,omitempty"`
}

type refundRequest struct {
	TransactionID string  `json:"transaction_id"`
	Amount        float64 `json:"amount"`
}

type paymentResponse struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transaction_id,omitempty"`
	Message       string `json:"message"`
	ErrorKind     string `json:"error_kind,omitempty"`
}

type refundResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	ErrorKind string `json:"error_kind,omitempty"`
}

type velocityResponse struct {
	Error      string `json:"error"`
	CheckType  string `json:"check_type"`
	MaxAllowed int    `json:"max_allowed"`
	RetryAfter string `json:"retry_after,omitempty"`
}

type patronVelocityResponse struct {
	PatronID     string `json:"patron_id"`
	Allowed      bool   `json:"allowed"`
	CurrentCount int    `json:"current_count"`
	MaxAllowed   int    `json:"max_allowed"`
	WindowExpiry string `json:"window_expiry,omitempty"`
}

// NewHandler creates a payments handler. guard and metrics may be nil.
func NewHandler(gw PaymentGateway, guard VelocityGuard, metrics rejectionObserver, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		gateway:  gw,
		velocity: guard,
		metrics:  metrics,
		logger:   logger,
	}
}

// Routes mounts the public payment endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/payments", h.CreatePayment)
	r.Post("/refunds", h.CreateRefund)
	r.Get("/payments/{transactionID}/status", h.GetPaymentStatus)
	return r
}

// AdminRoutes mounts the staff-only velocity endpoints.
func (h *Handler) AdminRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/velocity/patrons/{patronID}", h.GetPatronVelocity)
	r.Delete("/velocity/patrons/{patronID}", h.ResetPatronVelocity)
	r.Delete("/velocity/transactions/{transactionID}", h.ResetTransactionVelocity)
	return r
}

// CreatePayment handles POST /v1/payments.
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	// Requests the gateway would reject never count toward the limit.
	if h.velocity != nil && gateway.ValidatePayment(req.PatronID, req.Amount) == nil {
		check, err := h.velocity.CheckPayment(r.Context(), req.PatronID)
		if err == nil && !check.Allowed {
			h.rejectVelocity(w, check)
			return
		}
	}

	result, err := h.gateway.ProcessPayment(r.Context(), req.PatronID, req.Amount, req.Memo)
	if err != nil {
		h.gatewayUnavailable(w, "process payment", err)
		return
	}

	resp := paymentResponse{
		Success:       result.Success,
		TransactionID: result.TransactionID,
		Message:       result.Message,
	}
	status := http.StatusCreated
	if result.Failure != nil {
		resp.ErrorKind = string(result.Failure.Kind)
		status = http.StatusUnprocessableEntity
	}
	h.writeJSON(w, status, resp)
}

// CreateRefund handles POST /v1/refunds.
func (h *Handler) CreateRefund(w http.ResponseWriter, r *http.Request) {
	var req refundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	if h.velocity != nil && gateway.ValidateRefund(req.TransactionID, req.Amount) == nil {
		check, err := h.velocity.CheckRefund(r.Context(), req.TransactionID)
		if err == nil && !check.Allowed {
			h.rejectVelocity(w, check)
			return
		}
	}

	result, err := h.gateway.RefundPayment(r.Context(), req.TransactionID, req.Amount)
	if err != nil {
		h.gatewayUnavailable(w, "refund payment", err)
		return
	}

	resp := refundResponse{Success: result.Success, Message: result.Message}
	status := http.StatusOK
	if result.Failure != nil {
		resp.ErrorKind = string(result.Failure.Kind)
		status = http.StatusUnprocessableEntity
	}
	h.writeJSON(w, status, resp)
}

// GetPaymentStatus handles GET /v1/payments/{transactionID}/status.
func (h *Handler) GetPaymentStatus(w http.ResponseWriter, r *http.Request) {
	transactionID := strings.TrimSpace(chi.URLParam(r, "transactionID"))

	status, err := h.gateway.VerifyPaymentStatus(r.Context(), transactionID)
	if err != nil {
		h.gatewayUnavailable(w, "verify payment status", err)
		return
	}

	code := http.StatusOK
	if !status.Completed() {
		code = http.StatusNotFound
	}
	h.writeJSON(w, code, status)
}

// GetPatronVelocity handles GET /admin/velocity/patrons/{patronID}. The
// counter is read without being incremented.
func (h *Handler) GetPatronVelocity(w http.ResponseWriter, r *http.Request) {
	if h.velocity == nil {
		http.Error(w, "velocity limits disabled", http.StatusServiceUnavailable)
		return
	}
	patronID := strings.TrimSpace(chi.URLParam(r, "patronID"))
	if patronID == "" {
		http.Error(w, "missing id", http.StatusBadRequest)
		return
	}

	stats, err := h.velocity.PatronStats(r.Context(), patronID)
	if err != nil {
		h.logger.Error("velocity stats failed", "error", err, "patronID", patronID)
		http.Error(w, "failed to read velocity", http.StatusInternalServerError)
		return
	}

	resp := patronVelocityResponse{
		PatronID:     patronID,
		Allowed:      stats.Allowed,
		CurrentCount: stats.CurrentCount,
		MaxAllowed:   stats.MaxAllowed,
	}
	if !stats.WindowExpiry.IsZero() {
		resp.WindowExpiry = stats.WindowExpiry.UTC().Format(time.RFC3339)
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// ResetPatronVelocity handles DELETE /admin/velocity/patrons/{patronID}.
func (h *Handler) ResetPatronVelocity(w http.ResponseWriter, r *http.Request) {
	if h.velocity == nil {
		http.Error(w, "velocity limits disabled", http.StatusServiceUnavailable)
		return
	}
	h.reset(w, r, "patronID", h.velocity.ResetPatron)
}

// ResetTransactionVelocity handles DELETE /admin/velocity/transactions/{transactionID}.
func (h *Handler) ResetTransactionVelocity(w http.ResponseWriter, r *http.Request) {
	if h.velocity == nil {
		http.Error(w, "velocity limits disabled", http.StatusServiceUnavailable)
		return
	}
	h.reset(w, r, "transactionID", h.velocity.ResetTransaction)
}

func (h *Handler) reset(w http.ResponseWriter, r *http.Request, param string, resetFn func(context.Context, string) error) {
	id := strings.TrimSpace(chi.URLParam(r, param))
	if id == "" {
		http.Error(w, "missing id", http.StatusBadRequest)
		return
	}
	if err := resetFn(r.Context(), id); err != nil {
		h.logger.Error("velocity reset failed", "error", err, param, id)
		http.Error(w, "failed to reset velocity", http.StatusInternalServerError)
		return
	}
	logger := h.logger
	if claims, ok := httpmiddleware.StaffClaimsFromContext(r.Context()); ok {
		logger = logger.With("staff_subject", claims.Subject, "staff_role", claims.Role)
	}
	logger.Info("velocity reset", param, id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) rejectVelocity(w http.ResponseWriter, check *velocity.Result) {
	if h.metrics != nil {
		h.metrics.ObserveVelocityRejection(check.CheckType)
	}
	resp := velocityResponse{
		Error:      check.Message,
		CheckType:  check.CheckType,
		MaxAllowed: check.MaxAllowed,
	}
	if !check.WindowExpiry.IsZero() {
		resp.RetryAfter = check.WindowExpiry.UTC().Format(time.RFC3339)
	}
	h.writeJSON(w, http.StatusTooManyRequests, resp)
}

func (h *Handler) gatewayUnavailable(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, context.Canceled) {
		h.logger.Warn("client canceled request", "operation", op)
	} else {
		h.logger.Error("gateway call failed", "operation", op, "error", err)
	}
	http.Error(w, "payment gateway timeout", http.StatusGatewayTimeout)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		// Headers are already sent; the client most likely went away.
		h.logger.Debug("write response failed", "status", status, "error", err)
	}
}
