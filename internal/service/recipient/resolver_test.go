package recipient_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/pkg/phone"
	"github.com/ignite/campaign-dispatch/internal/service/recipient"
)

const tenant = "tenant-1"

type roster struct {
	customers []domain.Customer
	err       error
}

func (r *roster) AllCustomers(_ context.Context, tenantID string) ([]domain.Customer, error) {
	var out []domain.Customer
	for _, c := range r.customers {
		if c.TenantID == tenantID {
			out = append(out, c)
		}
	}
	return out, r.err
}

func (r *roster) CustomersByIDs(ctx context.Context, tenantID string, ids []string) ([]domain.Customer, error) {
	all, err := r.AllCustomers(ctx, tenantID)
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []domain.Customer
	for _, c := range all {
		if want[c.ID] {
			out = append(out, c)
		}
	}
	return out, err
}

func (r *roster) CustomersBookedBetween(ctx context.Context, tenantID string, start, end *time.Time) ([]domain.Customer, error) {
	all, err := r.AllCustomers(ctx, tenantID)
	var out []domain.Customer
	for _, c := range all {
		if c.LastBookingAt == nil {
			continue
		}
		if start != nil && c.LastBookingAt.Before(*start) {
			continue
		}
		if end != nil && c.LastBookingAt.After(*end) {
			continue
		}
		out = append(out, c)
	}
	return out, err
}

type optOuts map[string]struct{}

func (o optOuts) PhoneSet(context.Context, string) (map[string]struct{}, error) { return o, nil }

func at(day int) *time.Time {
	t := time.Date(2026, 2, day, 12, 0, 0, 0, time.UTC)
	return &t
}

func newRoster() *roster {
	return &roster{customers: []domain.Customer{
		{ID: "c3", TenantID: tenant, Name: "Carla", Phone: "(650) 253-0003", LastBookingAt: at(20)},
		{ID: "c1", TenantID: tenant, Name: "Ana", Phone: "+1 650-253-0001", LastBookingAt: at(1)},
		{ID: "c2", TenantID: tenant, Name: "Bruno", Phone: "650.253.0002", LastBookingAt: at(10)},
		{ID: "c4", TenantID: tenant, Name: "Duda", Phone: "not a phone", LastBookingAt: at(10)},
		{ID: "c5", TenantID: tenant, Name: "Eva", Phone: "+16502530001"}, // same phone as c1, never booked
		{ID: "x1", TenantID: "other", Name: "Other", Phone: "+16502530009"},
	}}
}

func resolver(r *roster, o recipient.OptOutSet) *recipient.Resolver {
	return recipient.NewResolver(r, o, phone.NewNormalizer("US"))
}

func phones(rs []domain.Recipient) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Phone
	}
	return out
}

func TestResolve_All(t *testing.T) {
	got, err := resolver(newRoster(), nil).Resolve(context.Background(),
		&domain.Campaign{TenantID: tenant, Targeting: domain.TargetAll})
	require.NoError(t, err)

	// ordered by customer id, invalid phone skipped, c5 deduplicated against c1
	assert.Equal(t, []string{"+16502530001", "+16502530002", "+16502530003"}, phones(got))
	assert.Equal(t, "Ana", got[0].Name)
	assert.Equal(t, "c1", got[0].CustomerID)
}

func TestResolve_IndividualSkipsInvalidPhone(t *testing.T) {
	c := &domain.Campaign{TenantID: tenant, Targeting: domain.TargetIndividual,
		RecipientIDs: []string{"c1", "c2", "c3", "c4", "unknown"}}

	got, err := resolver(newRoster(), nil).Resolve(context.Background(), c)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestResolve_PeriodInclusive(t *testing.T) {
	c := &domain.Campaign{TenantID: tenant, Targeting: domain.TargetPeriod,
		PeriodStart: at(1), PeriodEnd: at(10)}

	got, err := resolver(newRoster(), nil).Resolve(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, []string{"+16502530001", "+16502530002"}, phones(got))

	open := &domain.Campaign{TenantID: tenant, Targeting: domain.TargetPeriod, PeriodStart: at(15)}
	got, err = resolver(newRoster(), nil).Resolve(context.Background(), open)
	require.NoError(t, err)
	assert.Equal(t, []string{"+16502530003"}, phones(got))
}

func TestResolve_OptOutsExcluded(t *testing.T) {
	o := optOuts{"+16502530002": {}}
	got, err := resolver(newRoster(), o).Resolve(context.Background(),
		&domain.Campaign{TenantID: tenant, Targeting: domain.TargetAll})
	require.NoError(t, err)
	assert.Equal(t, []string{"+16502530001", "+16502530003"}, phones(got))
}

func TestResolve_EmptyIsNotAnError(t *testing.T) {
	got, err := resolver(&roster{}, nil).Resolve(context.Background(),
		&domain.Campaign{TenantID: tenant, Targeting: domain.TargetAll})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestResolve_MisconfiguredRule(t *testing.T) {
	cases := []*domain.Campaign{
		{TenantID: tenant, Targeting: domain.TargetIndividual},
		{TenantID: tenant, Targeting: domain.TargetPeriod, PeriodStart: at(10), PeriodEnd: at(1)},
		{TenantID: tenant, Targeting: "vip"},
	}
	for _, c := range cases {
		_, err := resolver(newRoster(), nil).Resolve(context.Background(), c)
		assert.ErrorIs(t, err, recipient.ErrInvalidTargeting, string(c.Targeting))
	}
}

func TestResolve_SourceError(t *testing.T) {
	r := &roster{err: errors.New("db down")}
	_, err := resolver(r, nil).Resolve(context.Background(),
		&domain.Campaign{TenantID: tenant, Targeting: domain.TargetAll})
	assert.ErrorContains(t, err, "db down")
}
