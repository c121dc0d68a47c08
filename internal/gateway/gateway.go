// Package gateway implements a mock payment gateway for library patron fees.
//
// Nothing is charged and nothing is stored. Each call validates its inputs
// after a simulated provider round-trip and synthesizes a result.
package gateway

import (
	"context"
	"fmt"
	"math"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/patron-payments/pkg/logging"
)

const (
	// MaxAmount is the largest single payment the gateway accepts.
	MaxAmount = 1000.0

	// PatronIDLength is the exact number of characters in a patron id.
	PatronIDLength = 6

	// DefaultDelay approximates a provider round-trip.
	DefaultDelay = 500 * time.Millisecond
)

// Operation names used for tracing and metrics.
const (
	OpProcessPayment = "process_payment"
	OpRefundPayment  = "refund_payment"
	OpVerifyStatus   = "verify_payment_status"
)

const outcomeSuccess = "success"

var tracer = otel.Tracer("patronpay.internal.gateway")

// Observer receives the outcome of every gateway operation.
type Observer interface {
	ObserveOperation(operation, outcome string, seconds float64)
}

// Gateway is a stateless payment validator/simulator. It is safe for
// concurrent use.
type Gateway struct {
	delay    Delayer
	ids      IDGenerator
	observer Observer
	logger   *logging.Logger
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithDelay replaces the simulated latency.
func WithDelay(d Delayer) Option {
	return func(g *Gateway) {
		if d != nil {
			g.delay = d
		}
	}
}

// WithIDGenerator replaces the transaction id suffix generator.
func WithIDGenerator(ids IDGenerator) Option {
	return func(g *Gateway) {
		if ids != nil {
			g.ids = ids
		}
	}
}

// WithObserver reports operation outcomes to o.
func WithObserver(o Observer) Option {
	return func(g *Gateway) { g.observer = o }
}

// New creates a gateway with a FixedDelay of DefaultDelay and UUID suffixes.
func New(logger *logging.Logger, opts ...Option) *Gateway {
	if logger == nil {
		logger = logging.Default()
	}
	g := &Gateway{
		delay:  FixedDelay(DefaultDelay),
		ids:    UUIDGenerator{},
		logger: logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ProcessPayment charges a patron. Amount checks run before the patron id
// check. The returned error is non-nil only if ctx ends during the delay.
func (g *Gateway) ProcessPayment(ctx context.Context, patronID string, amount float64, memo string) (*PaymentResult, error) {
	ctx, span := tracer.Start(ctx, "gateway.process_payment", trace.WithAttributes(
		attribute.String("patronpay.patron_id", patronID),
		attribute.Float64("patronpay.amount", amount),
	))
	defer span.End()
	start := time.Now()

	if err := g.delay.Wait(ctx); err != nil {
		g.finish(span, OpProcessPayment, "canceled", start)
		span.RecordError(err)
		return nil, fmt.Errorf("gateway: process payment: %w", err)
	}

	if failure := ValidatePayment(patronID, amount); failure != nil {
		g.logger.Warn("payment rejected",
			"patron_id", patronID,
			"amount", amount,
			"kind", failure.Kind,
		)
		g.finish(span, OpProcessPayment, string(failure.Kind), start)
		return &PaymentResult{Message: failure.Message, Failure: failure}, nil
	}

	txnID := TransactionIDPrefix + g.ids.NewSuffix()
	span.SetAttributes(attribute.String("patronpay.transaction_id", txnID))
	g.logger.Info("payment processed",
		"patron_id", patronID,
		"amount", amount,
		"memo", memo,
		"transaction_id", txnID,
	)
	g.finish(span, OpProcessPayment, outcomeSuccess, start)
	return &PaymentResult{
		Success:       true,
		TransactionID: txnID,
		Message:       fmt.Sprintf("Payment of $%.2f processed successfully", amount),
	}, nil
}

// ValidatePayment applies the payment rules in order: amount, limit, patron
// id. It returns nil when the payment would be accepted.
func ValidatePayment(patronID string, amount float64) *Failure {
	switch {
	case math.IsNaN(amount) || amount <= 0:
		return newFailure(KindInvalidAmount, "Invalid amount: must be greater than zero")
	case amount > MaxAmount:
		return newFailure(KindAmountExceedsLimit, fmt.Sprintf("Amount exceeds limit of $%.2f", MaxAmount))
	case utf8.RuneCountInString(patronID) != PatronIDLength:
		return newFailure(KindInvalidPatronIDFormat, fmt.Sprintf("Invalid patron ID format: expected %d characters", PatronIDLength))
	}
	return nil
}

// ValidateRefund applies the refund rules in order: transaction id, amount.
// It returns nil when the refund would be accepted.
func ValidateRefund(transactionID string, amount float64) *Failure {
	switch {
	case !IsWellFormedTransactionID(transactionID):
		return newFailure(KindInvalidTransactionID, "Invalid transaction ID")
	case math.IsNaN(amount) || amount <= 0:
		return newFailure(KindInvalidRefundAmount, "Invalid refund amount: must be greater than zero")
	}
	return nil
}

// RefundPayment refunds against a transaction id. The id check runs before
// the amount check. The returned error is non-nil only if ctx ends during
// the delay.
func (g *Gateway) RefundPayment(ctx context.Context, transactionID string, amount float64) (*RefundResult, error) {
	ctx, span := tracer.Start(ctx, "gateway.refund_payment", trace.WithAttributes(
		attribute.String("patronpay.transaction_id", transactionID),
		attribute.Float64("patronpay.amount", amount),
	))
	defer span.End()
	start := time.Now()

	if err := g.delay.Wait(ctx); err != nil {
		g.finish(span, OpRefundPayment, "canceled", start)
		span.RecordError(err)
		return nil, fmt.Errorf("gateway: refund payment: %w", err)
	}

	if failure := ValidateRefund(transactionID, amount); failure != nil {
		g.logger.Warn("refund rejected",
			"transaction_id", transactionID,
			"amount", amount,
			"kind", failure.Kind,
		)
		g.finish(span, OpRefundPayment, string(failure.Kind), start)
		return &RefundResult{Message: failure.Message, Failure: failure}, nil
	}

	g.logger.Info("refund processed", "transaction_id", transactionID, "amount", amount)
	g.finish(span, OpRefundPayment, outcomeSuccess, start)
	return &RefundResult{
		Success: true,
		Message: fmt.Sprintf("Refund of $%.2f for %s processed successfully", amount, transactionID),
	}, nil
}

// VerifyPaymentStatus classifies a transaction id by its shape alone. No
// lookup takes place.
func (g *Gateway) VerifyPaymentStatus(ctx context.Context, transactionID string) (*PaymentStatus, error) {
	ctx, span := tracer.Start(ctx, "gateway.verify_payment_status", trace.WithAttributes(
		attribute.String("patronpay.transaction_id", transactionID),
	))
	defer span.End()
	start := time.Now()

	if err := g.delay.Wait(ctx); err != nil {
		g.finish(span, OpVerifyStatus, "canceled", start)
		span.RecordError(err)
		return nil, fmt.Errorf("gateway: verify payment status: %w", err)
	}

	status := &PaymentStatus{Status: StatusNotFound, TransactionID: transactionID}
	if IsWellFormedTransactionID(transactionID) {
		status.Status = StatusCompleted
	}
	g.logger.Debug("payment status verified", "transaction_id", transactionID, "status", status.Status)
	g.finish(span, OpVerifyStatus, status.Status, start)
	return status, nil
}

func (g *Gateway) finish(span trace.Span, operation, outcome string, start time.Time) {
	span.SetAttributes(attribute.String("patronpay.outcome", outcome))
	if outcome != outcomeSuccess && outcome != StatusCompleted && outcome != StatusNotFound {
		span.SetStatus(codes.Error, outcome)
	}
	if g.observer != nil {
		g.observer.ObserveOperation(operation, outcome, time.Since(start).Seconds())
	}
}
