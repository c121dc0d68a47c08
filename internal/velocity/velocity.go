// Package velocity rate-limits payment and refund attempts with Redis
// counters. It guards the HTTP surface; the gateway itself stays stateless.
package velocity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/patron-payments/pkg/logging"
)

// Check types reported in Result.CheckType.
const (
	CheckPayment = "payment"
	CheckRefund  = "refund"
)

var tracer = otel.Tracer("patronpay.internal.velocity")

// Checker implements attempt limits for fraud prevention.
type Checker struct {
	redis  redis.Cmdable
	logger *logging.Logger
	config Config
}

// Config contains velocity check configuration.
type Config struct {
	// Max payment attempts per patron per window
	MaxPaymentsPerPatron int
	PaymentWindow        time.Duration

	// Max refund requests per transaction per window
	MaxRefundsPerTransaction int
	RefundWindow             time.Duration

	EnablePaymentCheck bool
	EnableRefundCheck  bool
}

// DefaultConfig returns default velocity limits.
func DefaultConfig() Config {
	return Config{
		MaxPaymentsPerPatron:     5,
		PaymentWindow:            time.Hour,
		MaxRefundsPerTransaction: 1,
		RefundWindow:             7 * 24 * time.Hour,
		EnablePaymentCheck:       true,
		EnableRefundCheck:        true,
	}
}

// Result contains the result of a velocity check.
type Result struct {
	Allowed      bool
	CheckType    string
	CurrentCount int
	MaxAllowed   int
	WindowExpiry time.Time
	Message      string
}

// NewChecker creates a new velocity checker.
func NewChecker(redisClient redis.Cmdable, config Config, logger *logging.Logger) *Checker {
	if logger == nil {
		logger = logging.Default()
	}
	return &Checker{
		redis:  redisClient,
		logger: logger,
		config: config,
	}
}

// CheckPayment counts a payment attempt for the patron.
func (c *Checker) CheckPayment(ctx context.Context, patronID string) (*Result, error) {
	if !c.config.EnablePaymentCheck {
		return &Result{Allowed: true, CheckType: CheckPayment}, nil
	}
	return c.check(ctx, CheckPayment, paymentKey(patronID), c.config.MaxPaymentsPerPatron, c.config.PaymentWindow)
}

// CheckRefund counts a refund request against the transaction.
func (c *Checker) CheckRefund(ctx context.Context, transactionID string) (*Result, error) {
	if !c.config.EnableRefundCheck {
		return &Result{Allowed: true, CheckType: CheckRefund}, nil
	}
	return c.check(ctx, CheckRefund, refundKey(transactionID), c.config.MaxRefundsPerTransaction, c.config.RefundWindow)
}

func (c *Checker) check(ctx context.Context, checkType, key string, limit int, window time.Duration) (*Result, error) {
	ctx, span := tracer.Start(ctx, "velocity.check_"+checkType)
	defer span.End()
	span.SetAttributes(attribute.String("velocity.check_type", checkType))

	count, expiry, err := c.incrementAndGet(ctx, key, window)
	if err != nil {
		c.logger.Error("velocity check failed", "error", err, "key", key)
		// Fail open if Redis is down.
		return &Result{Allowed: true, CheckType: checkType, Message: "velocity check unavailable"}, nil
	}

	result := &Result{
		Allowed:      count <= limit,
		CheckType:    checkType,
		CurrentCount: count,
		MaxAllowed:   limit,
		WindowExpiry: expiry,
	}
	if !result.Allowed {
		result.Message = fmt.Sprintf("exceeded %d %s attempts in %s", limit, checkType, window)
		c.logger.Warn("velocity exceeded",
			"check_type", checkType,
			"key", key,
			"count", count,
			"max", limit,
		)
		span.SetAttributes(attribute.Bool("velocity.exceeded", true))
	}
	return result, nil
}

// incrementAndGet increments a counter and returns the new value with expiry
// time. A key left without a TTL gets the window re-applied.
func (c *Checker) incrementAndGet(ctx context.Context, key string, window time.Duration) (int, time.Time, error) {
	var (
		incr *redis.IntCmd
		ttl  *redis.DurationCmd
	)
	_, err := c.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		ttl = pipe.TTL(ctx, key)
		return nil
	})
	if err != nil {
		return 0, time.Time{}, err
	}

	remaining := ttl.Val()
	if remaining < 0 {
		if err := c.redis.Expire(ctx, key, window).Err(); err != nil {
			return 0, time.Time{}, fmt.Errorf("velocity: set expiry: %w", err)
		}
		remaining = window
	}
	return int(incr.Val()), time.Now().Add(remaining), nil
}

// ResetPatron clears the payment counter for a patron (admin use).
func (c *Checker) ResetPatron(ctx context.Context, patronID string) error {
	if err := c.redis.Del(ctx, paymentKey(patronID)).Err(); err != nil {
		return fmt.Errorf("velocity: reset patron: %w", err)
	}
	return nil
}

// ResetTransaction clears the refund counter for a transaction (admin use).
func (c *Checker) ResetTransaction(ctx context.Context, transactionID string) error {
	if err := c.redis.Del(ctx, refundKey(transactionID)).Err(); err != nil {
		return fmt.Errorf("velocity: reset transaction: %w", err)
	}
	return nil
}

// PatronStats returns the current payment counter for a patron without
// incrementing it.
func (c *Checker) PatronStats(ctx context.Context, patronID string) (*Result, error) {
	key := paymentKey(patronID)
	count, err := c.redis.Get(ctx, key).Int()
	if errors.Is(err, redis.Nil) {
		return &Result{
			Allowed:    true,
			CheckType:  CheckPayment,
			MaxAllowed: c.config.MaxPaymentsPerPatron,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("velocity: patron stats: %w", err)
	}

	result := &Result{
		Allowed:      count < c.config.MaxPaymentsPerPatron,
		CheckType:    CheckPayment,
		CurrentCount: count,
		MaxAllowed:   c.config.MaxPaymentsPerPatron,
	}
	if ttl, err := c.redis.TTL(ctx, key).Result(); err == nil && ttl > 0 {
		result.WindowExpiry = time.Now().Add(ttl)
	}
	return result, nil
}

func paymentKey(patronID string) string {
	return "velocity:payment:" + patronID
}

func refundKey(transactionID string) string {
	return "velocity:refund:" + transactionID
}
