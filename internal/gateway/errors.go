package gateway

import "errors"

// ErrorKind classifies a validation failure.
type ErrorKind string

const (
	KindInvalidAmount         ErrorKind = "invalid_amount"
	KindAmountExceedsLimit    ErrorKind = "amount_exceeds_limit"
	KindInvalidPatronIDFormat ErrorKind = "invalid_patron_id_format"
	KindInvalidTransactionID  ErrorKind = "invalid_transaction_id"
	KindInvalidRefundAmount   ErrorKind = "invalid_refund_amount"
)

var (
	// ErrInvalidAmount is returned when a payment amount is not positive
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrAmountExceedsLimit is returned when a payment amount is above MaxAmount
	ErrAmountExceedsLimit = errors.New("amount exceeds limit")

	// ErrInvalidPatronIDFormat is returned when a patron id is not PatronIDLength characters
	ErrInvalidPatronIDFormat = errors.New("invalid patron id format")

	// ErrInvalidTransactionID is returned when a transaction id is empty or malformed
	ErrInvalidTransactionID = errors.New("invalid transaction id")

	// ErrInvalidRefundAmount is returned when a refund amount is not positive
	ErrInvalidRefundAmount = errors.New("invalid refund amount")
)

var kindErrors = map[ErrorKind]error{
	KindInvalidAmount:         ErrInvalidAmount,
	KindAmountExceedsLimit:    ErrAmountExceedsLimit,
	KindInvalidPatronIDFormat: ErrInvalidPatronIDFormat,
	KindInvalidTransactionID:  ErrInvalidTransactionID,
	KindInvalidRefundAmount:   ErrInvalidRefundAmount,
}

// Failure describes why an operation was rejected. It is carried inside a
// result rather than returned as an error.
type Failure struct {
	Kind    ErrorKind
	Message string
}

func (f *Failure) Error() string {
	if f == nil {
		return ""
	}
	return f.Message
}

// Unwrap exposes the sentinel for the failure kind so callers can use errors.Is.
func (f *Failure) Unwrap() error {
	if f == nil {
		return nil
	}
	return kindErrors[f.Kind]
}

func newFailure(kind ErrorKind, message string) *Failure {
	return &Failure{Kind: kind, Message: message}
}
