package recipient

import (
	"context"
	"time"

	"github.com/ignite/campaign-dispatch/internal/domain"
)

// CustomerSource reads the tenant's customer roster.
type CustomerSource interface {
	// AllCustomers returns every customer of the tenant.
	AllCustomers(ctx context.Context, tenantID string) ([]domain.Customer, error)

	// CustomersByIDs returns the customers whose ids are listed. Unknown ids
	// are ignored.
	CustomersByIDs(ctx context.Context, tenantID string, ids []string) ([]domain.Customer, error)

	// CustomersBookedBetween returns customers whose most recent booking lies
	// in [start, end]. A nil bound is open. Customers that never booked are
	// excluded.
	CustomersBookedBetween(ctx context.Context, tenantID string, start, end *time.Time) ([]domain.Customer, error)
}

// OptOutSet returns the phones a tenant must not message.
type OptOutSet interface {
	PhoneSet(ctx context.Context, tenantID string) (map[string]struct{}, error)
}

// Normalizer canonicalizes raw roster phones.
type Normalizer interface {
	Normalize(raw string) (string, error)
}
