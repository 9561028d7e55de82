// Package cart holds the resident's in-progress bill selection. It lives in
// memory for the lifetime of the process and is never persisted.
package cart

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/kramabill/billing-krama/internal/domain/billing"
	apperrors "github.com/kramabill/billing-krama/internal/errors"
	"github.com/kramabill/billing-krama/internal/notify"
	"github.com/kramabill/billing-krama/internal/observability/metrics"
	"github.com/kramabill/billing-krama/internal/observability/statsd"
)

const msgRemoved = "Tagihan dihapus dari keranjang."

// Listener receives the cart contents after each mutation.
type Listener func(items []billing.Bill)

// Options configures a Store.
type Options struct {
	Notices notify.Sink
	Logger  *slog.Logger
	Metrics statsd.Sink
}

// Store is an ordered, duplicate-free collection of bills. Every mutation
// is synchronous and visible to the next reader.
type Store struct {
	notices notify.Sink
	logger  *slog.Logger
	metrics statsd.Sink

	mu    sync.RWMutex
	items []billing.Bill

	listenerMu sync.Mutex
	listeners  map[int]Listener
	nextID     int
}

// New returns an empty cart.
func New(opts Options) *Store {
	notices := opts.Notices
	if notices == nil {
		notices = notify.Discard
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		notices:   notices,
		logger:    logger.With("component", "cart"),
		metrics:   opts.Metrics,
		listeners: make(map[int]Listener),
	}
}

// Add appends bill. A bill already present is rejected with a
// DuplicateCartItem error, one notice, and no state change.
func (s *Store) Add(bill billing.Bill) error {
	s.mu.Lock()
	if s.indexLocked(bill.ID) >= 0 {
		s.mu.Unlock()
		err := apperrors.DuplicateCartItem(bill.ID.String())
		s.notices.Notify(notify.Error(err.Message))
		metrics.Emit(s.metrics, metrics.FlowMetric{Name: metrics.CartAdd, Result: metrics.ResultNoop})
		return err
	}
	s.items = append(s.items, bill)
	snapshot := s.copyLocked()
	s.mu.Unlock()

	s.logger.Debug("bill added", "tagihan_id", bill.ID.String(), "items", len(snapshot))
	s.notices.Notify(notify.Success(fmt.Sprintf("Tagihan %s (%s) ditambahkan ke keranjang.", bill.OwnerName(), bill.Period)))
	metrics.Emit(s.metrics, metrics.FlowMetric{Name: metrics.CartAdd, Result: metrics.ResultSuccess})
	s.publish(snapshot)
	return nil
}

// Remove drops the bill with id. Unknown ids are a silent no-op.
func (s *Store) Remove(id billing.ID) {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return
	}
	s.items = append(s.items[:idx:idx], s.items[idx+1:]...)
	snapshot := s.copyLocked()
	s.mu.Unlock()

	s.notices.Notify(notify.Success(msgRemoved))
	s.publish(snapshot)
}

// Clear empties the cart unconditionally.
func (s *Store) Clear() {
	s.mu.Lock()
	s.items = nil
	s.mu.Unlock()

	s.publish(nil)
}

// Total is the sum of every selected bill's total; zero when empty.
func (s *Store) Total() billing.Amount {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var sum billing.Amount
	for _, b := range s.items {
		sum += b.Total
	}
	return sum
}

// Items returns a copy of the selection in insertion order.
func (s *Store) Items() []billing.Bill {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyLocked()
}

// IDs returns the selected bill ids in insertion order.
func (s *Store) IDs() []billing.ID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]billing.ID, len(s.items))
	for i, b := range s.items {
		ids[i] = b.ID
	}
	return ids
}

// Len returns the number of selected bills.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Contains reports whether id is selected.
func (s *Store) Contains(id billing.ID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexLocked(id) >= 0
}

// Subscribe registers fn for change notifications.
func (s *Store) Subscribe(fn Listener) (cancel func()) {
	s.listenerMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.listenerMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.listenerMu.Lock()
			delete(s.listeners, id)
			s.listenerMu.Unlock()
		})
	}
}

func (s *Store) publish(items []billing.Bill) {
	s.listenerMu.Lock()
	fns := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenerMu.Unlock()

	for _, fn := range fns {
		fn(append([]billing.Bill(nil), items...))
	}
}

func (s *Store) indexLocked(id billing.ID) int {
	for i, b := range s.items {
		if b.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) copyLocked() []billing.Bill {
	return append([]billing.Bill(nil), s.items...)
}
