package velocity

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

func TestChecker_CheckPayment(t *testing.T) {
	redisClient, _ := setupTestRedis(t)

	config := DefaultConfig()
	config.MaxPaymentsPerPatron = 3

	checker := NewChecker(redisClient, config, nil)
	ctx := context.Background()

	tests := []struct {
		name        string
		patronID    string
		attempts    int
		wantAllowed bool
	}{
		{
			name:        "first attempt allowed",
			patronID:    "100001",
			attempts:    1,
			wantAllowed: true,
		},
		{
			name:        "at limit allowed",
			patronID:    "100002",
			attempts:    3,
			wantAllowed: true,
		},
		{
			name:        "over limit blocked",
			patronID:    "100003",
			attempts:    4,
			wantAllowed: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var result *Result
			var err error
			for i := 0; i < tt.attempts; i++ {
				result, err = checker.CheckPayment(ctx, tt.patronID)
				require.NoError(t, err)
			}

			assert.Equal(t, tt.wantAllowed, result.Allowed)
			assert.Equal(t, CheckPayment, result.CheckType)
			assert.Equal(t, tt.attempts, result.CurrentCount)
			assert.Equal(t, config.MaxPaymentsPerPatron, result.MaxAllowed)

			if !tt.wantAllowed {
				assert.Contains(t, result.Message, "exceeded")
			}
		})
	}
}

func TestChecker_CheckRefund(t *testing.T) {
	redisClient, _ := setupTestRedis(t)

	checker := NewChecker(redisClient, DefaultConfig(), nil)
	ctx := context.Background()

	result, err := checker.CheckRefund(ctx, "txn_123")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, 1, result.CurrentCount)

	result, err = checker.CheckRefund(ctx, "txn_123")
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, 2, result.CurrentCount)

	// Other transactions are counted separately.
	result, err = checker.CheckRefund(ctx, "txn_456")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestChecker_WindowExpires(t *testing.T) {
	redisClient, mr := setupTestRedis(t)

	config := DefaultConfig()
	config.MaxPaymentsPerPatron = 1
	config.PaymentWindow = time.Minute

	checker := NewChecker(redisClient, config, nil)
	ctx := context.Background()

	_, err := checker.CheckPayment(ctx, "123456")
	require.NoError(t, err)
	result, err := checker.CheckPayment(ctx, "123456")
	require.NoError(t, err)
	assert.False(t, result.Allowed)

	mr.FastForward(2 * time.Minute)

	result, err = checker.CheckPayment(ctx, "123456")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, 1, result.CurrentCount)
}

func TestChecker_ResetPatron(t *testing.T) {
	redisClient, _ := setupTestRedis(t)

	config := DefaultConfig()
	config.MaxPaymentsPerPatron = 2

	checker := NewChecker(redisClient, config, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		checker.CheckPayment(ctx, "123456")
	}
	stats, err := checker.PatronStats(ctx, "123456")
	require.NoError(t, err)
	assert.False(t, stats.Allowed)
	assert.Equal(t, 3, stats.CurrentCount)

	require.NoError(t, checker.ResetPatron(ctx, "123456"))

	stats, err = checker.PatronStats(ctx, "123456")
	require.NoError(t, err)
	assert.True(t, stats.Allowed)
	assert.Zero(t, stats.CurrentCount)
}

func TestChecker_ResetTransaction(t *testing.T) {
	redisClient, _ := setupTestRedis(t)
	checker := NewChecker(redisClient, DefaultConfig(), nil)
	ctx := context.Background()

	checker.CheckRefund(ctx, "txn_1")
	require.NoError(t, checker.ResetTransaction(ctx, "txn_1"))

	result, err := checker.CheckRefund(ctx, "txn_1")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, 1, result.CurrentCount)
}

func TestChecker_DisabledChecks(t *testing.T) {
	redisClient, _ := setupTestRedis(t)

	config := DefaultConfig()
	config.EnablePaymentCheck = false
	config.EnableRefundCheck = false

	checker := NewChecker(redisClient, config, nil)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		result, err := checker.CheckPayment(ctx, "123456")
		require.NoError(t, err)
		assert.True(t, result.Allowed)

		result, err = checker.CheckRefund(ctx, "txn_1")
		require.NoError(t, err)
		assert.True(t, result.Allowed)
	}
}

func TestChecker_FailsOpenWhenRedisUnavailable(t *testing.T) {
	redisClient, mr := setupTestRedis(t)
	checker := NewChecker(redisClient, DefaultConfig(), nil)
	mr.Close()

	result, err := checker.CheckPayment(context.Background(), "123456")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, "velocity check unavailable", result.Message)
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, 5, config.MaxPaymentsPerPatron)
	assert.Equal(t, time.Hour, config.PaymentWindow)
	assert.Equal(t, 1, config.MaxRefundsPerTransaction)
	assert.Equal(t, 7*24*time.Hour, config.RefundWindow)
	assert.True(t, config.EnablePaymentCheck)
	assert.True(t, config.EnableRefundCheck)
}

func TestChecker_RestoresMissingExpiry(t *testing.T) {
	redisClient, mr := setupTestRedis(t)

	config := DefaultConfig()
	config.MaxPaymentsPerPatron = 1
	config.PaymentWindow = time.Minute

	checker := NewChecker(redisClient, config, nil)
	ctx := context.Background()

	_, err := checker.CheckPayment(ctx, "123456")
	require.NoError(t, err)

	// Simulate an INCR whose EXPIRE never landed.
	require.NoError(t, redisClient.Persist(ctx, "velocity:payment:123456").Err())
	require.Zero(t, mr.TTL("velocity:payment:123456"))

	result, err := checker.CheckPayment(ctx, "123456")
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, time.Minute, mr.TTL("velocity:payment:123456"))
	assert.WithinDuration(t, time.Now().Add(time.Minute), result.WindowExpiry, 5*time.Second)

	mr.FastForward(2 * time.Minute)

	result, err = checker.CheckPayment(ctx, "123456")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestChecker_FirstIncrementSetsExpiry(t *testing.T) {
	redisClient, mr := setupTestRedis(t)
	checker := NewChecker(redisClient, DefaultConfig(), nil)

	_, err := checker.CheckRefund(context.Background(), "txn_1")
	require.NoError(t, err)
	assert.Equal(t, 7*24*time.Hour, mr.TTL("velocity:refund:txn_1"))
}
