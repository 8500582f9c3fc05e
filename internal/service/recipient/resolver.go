package recipient

import (
	"context"
	"fmt"
	"sort"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/pkg/logger"
)

// Resolver turns a targeting rule into recipients.
type Resolver struct {
	customers CustomerSource
	optOuts   OptOutSet
	phone     Normalizer
}

// NewResolver creates a resolver. optOuts may be nil.
func NewResolver(customers CustomerSource, optOuts OptOutSet, phone Normalizer) *Resolver {
	return &Resolver{customers: customers, optOuts: optOuts, phone: phone}
}

// Validate checks that the campaign's targeting rule can be evaluated.
func Validate(c *domain.Campaign) error {
	switch c.Targeting {
	case domain.TargetAll:
		return nil
	case domain.TargetIndividual:
		if len(c.RecipientIDs) == 0 {
			return fmt.Errorf("%w: individual targeting needs at least one recipient", ErrInvalidTargeting)
		}
		return nil
	case domain.TargetPeriod:
		if c.PeriodStart != nil && c.PeriodEnd != nil && c.PeriodStart.After(*c.PeriodEnd) {
			return fmt.Errorf("%w: period starts after it ends", ErrInvalidTargeting)
		}
		return nil
	}
	return fmt.Errorf("%w: unknown rule %q", ErrInvalidTargeting, c.Targeting)
}

// Resolve returns the campaign's recipients.
func (r *Resolver) Resolve(ctx context.Context, c *domain.Campaign) ([]domain.Recipient, error) {
	if err := Validate(c); err != nil {
		return nil, err
	}

	var (
		customers []domain.Customer
		err       error
	)
	switch c.Targeting {
	case domain.TargetAll:
		customers, err = r.customers.AllCustomers(ctx, c.TenantID)
	case domain.TargetIndividual:
		customers, err = r.customers.CustomersByIDs(ctx, c.TenantID, c.RecipientIDs)
	case domain.TargetPeriod:
		customers, err = r.customers.CustomersBookedBetween(ctx, c.TenantID, c.PeriodStart, c.PeriodEnd)
	}
	if err != nil {
		return nil, fmt.Errorf("load customers: %w", err)
	}

	excluded := map[string]struct{}{}
	if r.optOuts != nil {
		if excluded, err = r.optOuts.PhoneSet(ctx, c.TenantID); err != nil {
			return nil, fmt.Errorf("load opt-outs: %w", err)
		}
	}

	sort.SliceStable(customers, func(i, j int) bool { return customers[i].ID < customers[j].ID })

	seen := make(map[string]struct{}, len(customers))
	out := make([]domain.Recipient, 0, len(customers))
	for _, cu := range customers {
		p, err := r.phone.Normalize(cu.Phone)
		if err != nil {
			logger.Warn("skipping customer with invalid phone",
				"campaign_id", c.ID, "customer_id", cu.ID, "phone", cu.Phone)
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		if _, optedOut := excluded[p]; optedOut {
			logger.Debug("skipping opted-out recipient", "campaign_id", c.ID, "phone", p)
			continue
		}
		out = append(out, domain.Recipient{CustomerID: cu.ID, Phone: p, Name: cu.Name})
	}
	return out, nil
}
