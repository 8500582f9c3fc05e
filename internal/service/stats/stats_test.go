package stats_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/service/stats"
)

type fakeRepo struct {
	counts domain.Stats
	saved  map[string]domain.Stats
	err    error
}

func (f *fakeRepo) CountByStatus(context.Context, string) (domain.Stats, error) {
	return f.counts, f.err
}

func (f *fakeRepo) SaveStats(_ context.Context, id string, s domain.Stats) error {
	f.saved[id] = s
	return nil
}

func TestRecompute(t *testing.T) {
	repo := &fakeRepo{
		counts: domain.Stats{Sent: 3, Delivered: 2, Failed: 1, Queued: 4, Total: 8},
		saved:  map[string]domain.Stats{},
	}
	agg := stats.NewAggregator(repo)

	for i := 0; i < 2; i++ {
		got, err := agg.Recompute(context.Background(), "c1")
		if err != nil {
			t.Fatalf("recompute: %v", err)
		}
		if got != repo.counts {
			t.Fatalf("expected %+v, got %+v", repo.counts, got)
		}
	}
	if repo.saved["c1"] != repo.counts {
		t.Fatalf("expected saved %+v, got %+v", repo.counts, repo.saved["c1"])
	}
}

func TestRecomputeRejectsInconsistentCounts(t *testing.T) {
	repo := &fakeRepo{counts: domain.Stats{Sent: 1, Total: 2}, saved: map[string]domain.Stats{}}
	if _, err := stats.NewAggregator(repo).Recompute(context.Background(), "c1"); err == nil {
		t.Fatal("expected error for counts that do not add up")
	}
	if _, ok := repo.saved["c1"]; ok {
		t.Fatal("inconsistent counts must not be cached")
	}
}

func TestRecomputeCountError(t *testing.T) {
	repo := &fakeRepo{err: errors.New("db down"), saved: map[string]domain.Stats{}}
	if _, err := stats.NewAggregator(repo).Recompute(context.Background(), "c1"); err == nil {
		t.Fatal("expected error")
	}
}
