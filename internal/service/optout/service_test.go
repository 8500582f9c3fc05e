package optout_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/pkg/phone"
	"github.com/ignite/campaign-dispatch/internal/repository/memory"
	"github.com/ignite/campaign-dispatch/internal/service/optout"
)

const tenant = "tenant-1"

func newService() *optout.Service {
	return optout.NewService(memory.New().OptOuts(), phone.NewNormalizer("US"))
}

func TestAddNormalizesPhone(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	o, err := svc.Add(ctx, tenant, "(650) 253-0000", "", domain.OptOutSourceAPI, "")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if o.Phone != "+16502530000" {
		t.Fatalf("phone = %s", o.Phone)
	}
	if o.Reason != domain.OptOutManual {
		t.Fatalf("reason = %s, want manual default", o.Reason)
	}

	out, err := svc.IsOptedOut(ctx, tenant, "+1 650 253 0000")
	if err != nil || !out {
		t.Fatalf("IsOptedOut = %v, %v", out, err)
	}
}

func TestAddIsIdempotent(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := svc.Add(ctx, tenant, "+16502530000", domain.OptOutReplyStop, domain.OptOutSourceWebhook, "camp-1"); err != nil {
			t.Fatalf("Add #%d: %v", i, err)
		}
	}
	_, total, err := svc.List(ctx, tenant, optout.ListFilter{})
	if err != nil || total != 1 {
		t.Fatalf("List = %d, %v; want 1", total, err)
	}
}

func TestInvalidPhone(t *testing.T) {
	svc := newService()
	if _, err := svc.Add(context.Background(), tenant, "not-a-phone", "", domain.OptOutSourceAPI, ""); !errors.Is(err, optout.ErrInvalidPhone) {
		t.Fatalf("expected ErrInvalidPhone, got %v", err)
	}
}

func TestRemoveAndPhoneSet(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	for _, p := range []string{"+16502530000", "+16502530001"} {
		if _, err := svc.Add(ctx, tenant, p, domain.OptOutManual, domain.OptOutSourceAPI, ""); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	if err := svc.Remove(ctx, tenant, "650-253-0000"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := svc.Remove(ctx, tenant, "650-253-0000"); !errors.Is(err, optout.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	set, err := svc.PhoneSet(ctx, tenant)
	if err != nil {
		t.Fatalf("PhoneSet: %v", err)
	}
	if _, ok := set["+16502530001"]; !ok || len(set) != 1 {
		t.Fatalf("unexpected set %v", set)
	}
}
