package storage

import (
	"sync"

	"github.com/syed-hamad/posprint/internal/domain/models"
)

// MemoryKVStore is an in-memory ports.KVStore for tests and demos.
type MemoryKVStore struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemoryKVStore() *MemoryKVStore {
	return &MemoryKVStore{values: make(map[string]string)}
}

func (s *MemoryKVStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *MemoryKVStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *MemoryKVStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

// MemoryOrderStore is an in-memory ports.OrderStore.
type MemoryOrderStore struct {
	mu     sync.Mutex
	orders map[string]*models.Order
}

func NewMemoryOrderStore(orders ...*models.Order) *MemoryOrderStore {
	s := &MemoryOrderStore{orders: make(map[string]*models.Order)}
	for _, o := range orders {
		s.orders[o.ID] = o
	}
	return s
}

// Put adds or replaces an order.
func (s *MemoryOrderStore) Put(o *models.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = o
}

// GetOrder returns the order or (nil, nil) when absent.
func (s *MemoryOrderStore) GetOrder(id string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orders[id], nil
}

// StaticSellerStore serves a fixed seller config and template set.
type StaticSellerStore struct {
	Seller    models.SellerConfig
	Templates map[models.PrintType]*models.ReceiptTemplate
}

func (s *StaticSellerStore) SellerConfig() (*models.SellerConfig, error) {
	cfg := s.Seller
	return &cfg, nil
}

func (s *StaticSellerStore) Template(t models.PrintType) (*models.ReceiptTemplate, error) {
	if s.Templates == nil {
		return nil, nil
	}
	return s.Templates[t], nil
}
