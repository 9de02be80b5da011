// Package resolver supplies the customer context for a call: either the
// Collekto/LTFS REST flow or a local CSV lookup used for development.
package resolver

import (
	"context"

	"github.com/collectvoice/collectvoice/internal/store"
)

// Result is one resolved customer context. Disposition carries the raw case
// history payload when the backend returns one.
type Result struct {
	Record      store.CustomerRecord
	Disposition string
}

// Resolver maps a loan/system id pair to a customer record. Callers treat a
// failure as an empty record; call setup never fails on resolver errors.
type Resolver interface {
	Resolve(ctx context.Context, loanID, systemID string) (Result, error)
}
