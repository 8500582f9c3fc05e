// Package memory provides in-process implementations of every repository
// contract. It backs local development and the worker scenario tests.
// All state lives behind one mutex, which makes each method an atomic
// compare-and-set the same way a conditional UPDATE is in Postgres.
package memory

import (
	"sort"
	"sync"

	"github.com/ignite/campaign-dispatch/internal/domain"
)

// Store is the shared backing state of the memory repositories.
type Store struct {
	mu        sync.Mutex
	campaigns map[string]*domain.Campaign
	messages  map[string][]*domain.Message // campaign id -> ordered by position
	byID      map[string]*domain.Message
	customers map[string]domain.Customer
	services  map[string]domain.Service
	optOuts   map[string]map[string]*domain.OptOut // tenant -> phone
}

// New creates an empty store.
func New() *Store {
	return &Store{
		campaigns: make(map[string]*domain.Campaign),
		messages:  make(map[string][]*domain.Message),
		byID:      make(map[string]*domain.Message),
		customers: make(map[string]domain.Customer),
		services:  make(map[string]domain.Service),
		optOuts:   make(map[string]map[string]*domain.OptOut),
	}
}

// Campaigns returns the campaign repository view.
func (s *Store) Campaigns() *CampaignRepo { return &CampaignRepo{s: s} }

// Queue returns the dispatch queue view.
func (s *Store) Queue() *QueueRepo { return &QueueRepo{s: s} }

// Customers returns the customer roster view.
func (s *Store) Customers() *CustomerRepo { return &CustomerRepo{s: s} }

// OptOuts returns the opt-out repository view.
func (s *Store) OptOuts() *OptOutRepo { return &OptOutRepo{s: s} }

// AddCustomer seeds the roster.
func (s *Store) AddCustomer(c domain.Customer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers[c.ID] = c
}

// AddService seeds the service catalog.
func (s *Store) AddService(svc domain.Service) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.services[svc.ID] = svc
}

func copyCampaign(c *domain.Campaign) *domain.Campaign {
	cp := *c
	if c.RecipientIDs != nil {
		cp.RecipientIDs = append([]string(nil), c.RecipientIDs...)
	}
	return &cp
}

func (s *Store) pending(campaignID string) int {
	n := 0
	for _, m := range s.messages[campaignID] {
		if m.Status == domain.MessagePending {
			n++
		}
	}
	return n
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}

func sortCampaignsNewestFirst(cs []domain.Campaign) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].CreatedAt.Equal(cs[j].CreatedAt) {
			return cs[i].ID > cs[j].ID
		}
		return cs[i].CreatedAt.After(cs[j].CreatedAt)
	})
}
