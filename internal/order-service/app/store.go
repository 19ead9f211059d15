package app

import (
	"sync"

	"github.com/jcmexdev/gym-membership/internal/order-service/domain"
)

// Store is the in-memory registry of orders for the process lifetime.
// Records never leave the store by reference; every read returns a copy.
type Store struct {
	mu     sync.RWMutex
	orders map[string]*domain.Order
	// ids keeps insertion order for ListAll.
	ids []string
}

func NewStore() *Store {
	return &Store{
		orders: make(map[string]*domain.Order),
	}
}

// Insert adds a new order. A duplicate id leaves the store untouched and
// returns domain.ErrDuplicateOrderID.
func (s *Store) Insert(order domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[order.ID]; exists {
		return domain.ErrDuplicateOrderID
	}

	record := order
	s.orders[order.ID] = &record
	s.ids = append(s.ids, order.ID)
	return nil
}

// FindByID looks up an order by exact id.
func (s *Store) FindByID(id string) (domain.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.orders[id]
	if !ok {
		return domain.Order{}, false
	}
	return *record, true
}

// Mutate runs fn against a copy of the order and commits the copy only when
// fn returns nil. The returned order is the committed state, or the
// unchanged state when fn fails.
func (s *Store) Mutate(id string, fn func(*domain.Order) error) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}

	next := *record
	if err := fn(&next); err != nil {
		return *record, err
	}
	*record = next
	return next, nil
}

// ListAll returns a snapshot of every order, oldest first.
func (s *Store) ListAll() []domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Order, 0, len(s.ids))
	for _, id := range s.ids {
		out = append(out, *s.orders[id])
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}
