package store

import (
	"context"
	"sort"
	"sync"

	identity "supplytrace/internal/identity/models"
	product "supplytrace/internal/product/models"
	"supplytrace/pkg/domain"
	"supplytrace/pkg/platform/sentinel"
)

// InMemory is the default ledger store: two maps and a counter behind one
// RWMutex. The single lock is the serialization point — with the ledger's low
// mutation volume, clarity beats per-record locking.
type InMemory struct {
	mu               sync.RWMutex
	participants     map[domain.Address]identity.Participant
	participantOrder []domain.Address
	products         map[domain.ProductID]product.Product
	productSeq       uint64
}

func NewInMemory() *InMemory {
	return &InMemory{
		participants: make(map[domain.Address]identity.Participant),
		products:     make(map[domain.ProductID]product.Product),
	}
}

// memoryTxn stages writes so a failed callback leaves the committed maps
// untouched.
type memoryTxn struct {
	store           *InMemory
	participants    map[domain.Address]identity.Participant
	newParticipants []domain.Address
	products        map[domain.ProductID]product.Product
	idsIssued       uint64
}

func (t *memoryTxn) Participant(addr domain.Address) (identity.Participant, error) {
	if p, ok := t.participants[addr]; ok {
		return p, nil
	}
	if p, ok := t.store.participants[addr]; ok {
		return p, nil
	}
	return identity.Participant{}, sentinel.ErrNotFound
}

func (t *memoryTxn) CreateParticipant(p identity.Participant) error {
	if _, staged := t.participants[p.Address]; staged {
		return sentinel.ErrConflict
	}
	if _, committed := t.store.participants[p.Address]; committed {
		return sentinel.ErrConflict
	}
	t.newParticipants = append(t.newParticipants, p.Address)
	t.participants[p.Address] = p
	return nil
}

func (t *memoryTxn) PutParticipant(p identity.Participant) error {
	t.participants[p.Address] = p
	return nil
}

func (t *memoryTxn) Product(id domain.ProductID) (product.Product, error) {
	if p, ok := t.products[id]; ok {
		return p, nil
	}
	if p, ok := t.store.products[id]; ok {
		return p, nil
	}
	return product.Product{}, sentinel.ErrNotFound
}

func (t *memoryTxn) PutProduct(p product.Product) error {
	t.products[p.ID] = p
	return nil
}

func (t *memoryTxn) NextProductID() (domain.ProductID, error) {
	t.idsIssued++
	return domain.ProductID(t.store.productSeq + t.idsIssued), nil
}

func (s *InMemory) Update(_ context.Context, fn func(tx Txn) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTxn{
		store:        s,
		participants: make(map[domain.Address]identity.Participant),
		products:     make(map[domain.ProductID]product.Product),
	}
	if err := fn(tx); err != nil {
		return err
	}

	for _, addr := range tx.newParticipants {
		s.participantOrder = append(s.participantOrder, addr)
	}
	for addr, p := range tx.participants {
		s.participants[addr] = p
	}
	for id, p := range tx.products {
		s.products[id] = p
	}
	s.productSeq += tx.idsIssued
	return nil
}

func (s *InMemory) GetParticipant(_ context.Context, addr domain.Address) (identity.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.participants[addr]; ok {
		return p, nil
	}
	return identity.Participant{}, sentinel.ErrNotFound
}

func (s *InMemory) GetProduct(_ context.Context, id domain.ProductID) (product.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.products[id]; ok {
		return p, nil
	}
	return product.Product{}, sentinel.ErrNotFound
}

func (s *InMemory) ListParticipants(_ context.Context) ([]identity.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]identity.Participant, 0, len(s.participantOrder))
	for _, addr := range s.participantOrder {
		out = append(out, s.participants[addr])
	}
	return out, nil
}

func (s *InMemory) ListProducts(_ context.Context) ([]product.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]product.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemory) TotalProducts(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.productSeq, nil
}
