package gateway

import (
	"strings"

	"github.com/google/uuid"
)

// TransactionIDPrefix marks identifiers issued by the gateway.
const TransactionIDPrefix = "txn_"

// IDGenerator produces the opaque suffix of a transaction id.
type IDGenerator interface {
	NewSuffix() string
}

// IDGeneratorFunc adapts a function to IDGenerator.
type IDGeneratorFunc func() string

func (f IDGeneratorFunc) NewSuffix() string { return f() }

// UUIDGenerator returns random UUIDs without hyphens.
type UUIDGenerator struct{}

func (UUIDGenerator) NewSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// IsWellFormedTransactionID reports whether id carries the gateway prefix
// followed by a non-empty suffix.
func IsWellFormedTransactionID(id string) bool {
	return len(id) > len(TransactionIDPrefix) && strings.HasPrefix(id, TransactionIDPrefix)
}
