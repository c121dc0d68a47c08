package gateway

// PaymentStatus values reported by VerifyPaymentStatus.
const (
	StatusCompleted = "completed"
	StatusNotFound  = "not_found"
)

// PaymentResult is the outcome of ProcessPayment.
type PaymentResult struct {
	Success       bool
	TransactionID string
	Message       string
	Failure       *Failure
}

// RefundResult is the outcome of RefundPayment.
type RefundResult struct {
	Success bool
	Message string
	Failure *Failure
}

// PaymentStatus is the outcome of VerifyPaymentStatus.
type PaymentStatus struct {
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id,omitempty"`
}

// Completed reports whether the status is StatusCompleted.
func (s PaymentStatus) Completed() bool {
	return s.Status == StatusCompleted
}
