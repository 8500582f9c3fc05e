package optout

import (
	"context"

	"github.com/ignite/campaign-dispatch/internal/domain"
)

// Repository defines the data access contract for opt-outs.
type Repository interface {
	// IsOptedOut returns true if the phone is on the tenant's opt-out list.
	IsOptedOut(ctx context.Context, tenantID, phone string) (bool, error)

	// Add inserts an opt-out. If it already exists, the existing record is
	// preserved (idempotent).
	Add(ctx context.Context, o *domain.OptOut) error

	// Remove deletes an opt-out. Returns ErrNotFound if it doesn't exist.
	Remove(ctx context.Context, tenantID, phone string) error

	// List returns opt-outs ordered by created_at DESC with the total count.
	List(ctx context.Context, tenantID string, filter ListFilter) ([]domain.OptOut, int, error)

	// AllPhones returns every opted-out phone for a tenant.
	AllPhones(ctx context.Context, tenantID string) ([]string, error)
}

// ListFilter controls pagination and filtering for opt-out lists.
type ListFilter struct {
	Reason string
	Limit  int
	Offset int
}
