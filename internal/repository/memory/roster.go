package memory

import (
	"context"
	"sort"
	"time"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/service/optout"
)

// CustomerRepo implements recipient.CustomerSource in memory.
type CustomerRepo struct{ s *Store }

func (r *CustomerRepo) filter(tenantID string, keep func(domain.Customer) bool) []domain.Customer {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Customer
	for _, c := range r.s.customers {
		if c.TenantID == tenantID && keep(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *CustomerRepo) AllCustomers(_ context.Context, tenantID string) ([]domain.Customer, error) {
	return r.filter(tenantID, func(domain.Customer) bool { return true }), nil
}

func (r *CustomerRepo) CustomersByIDs(_ context.Context, tenantID string, ids []string) ([]domain.Customer, error) {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	return r.filter(tenantID, func(c domain.Customer) bool {
		_, ok := want[c.ID]
		return ok
	}), nil
}

func (r *CustomerRepo) CustomersBookedBetween(_ context.Context, tenantID string, start, end *time.Time) ([]domain.Customer, error) {
	return r.filter(tenantID, func(c domain.Customer) bool {
		if c.LastBookingAt == nil {
			return false
		}
		if start != nil && c.LastBookingAt.Before(*start) {
			return false
		}
		if end != nil && c.LastBookingAt.After(*end) {
			return false
		}
		return true
	}), nil
}

// OptOutRepo implements optout.Repository in memory.
type OptOutRepo struct{ s *Store }

func (r *OptOutRepo) IsOptedOut(_ context.Context, tenantID, phone string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, ok := r.s.optOuts[tenantID][phone]
	return ok, nil
}

func (r *OptOutRepo) Add(_ context.Context, o *domain.OptOut) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	byPhone, ok := r.s.optOuts[o.TenantID]
	if !ok {
		byPhone = make(map[string]*domain.OptOut)
		r.s.optOuts[o.TenantID] = byPhone
	}
	if _, exists := byPhone[o.Phone]; exists {
		return nil
	}
	cp := *o
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	byPhone[o.Phone] = &cp
	return nil
}

func (r *OptOutRepo) Remove(_ context.Context, tenantID, phone string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.optOuts[tenantID][phone]; !ok {
		return optout.ErrNotFound
	}
	delete(r.s.optOuts[tenantID], phone)
	return nil
}

func (r *OptOutRepo) List(_ context.Context, tenantID string, f optout.ListFilter) ([]domain.OptOut, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.OptOut
	for _, o := range r.s.optOuts[tenantID] {
		if f.Reason != "" && string(o.Reason) != f.Reason {
			continue
		}
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Phone < out[j].Phone
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return page(out, f.Limit, f.Offset), len(out), nil
}

func (r *OptOutRepo) AllPhones(_ context.Context, tenantID string) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]string, 0, len(r.s.optOuts[tenantID]))
	for p := range r.s.optOuts[tenantID] {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}
