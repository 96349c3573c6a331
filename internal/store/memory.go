// Package store provides storage backends for registrobot.
//
// This file implements the in-memory store used in tests and when no
// database DSN is configured.
package store

import (
	"log/slog"
	"sync"

	"github.com/vmoreyra/registrobot/internal/models"
)

// InMemoryStore keeps all records in process memory. Useful for tests and
// throwaway deployments; nothing survives a restart.
type InMemoryStore struct {
	mu       sync.RWMutex
	sales    []models.SaleRecord
	patients []models.PatientRecord
	expenses []models.ExpenseRecord
	stock    map[string]int
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	slog.Debug("Creating InMemoryStore")
	return &InMemoryStore{stock: make(map[string]int)}
}

// AddSale appends one sale record.
func (s *InMemoryStore) AddSale(r models.SaleRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sales = append(s.sales, r)
	slog.Debug("InMemoryStore AddSale", "product", r.Product, "quantity", r.Quantity)
	return nil
}

// ListSales returns a copy of all sale records.
func (s *InMemoryStore) ListSales() ([]models.SaleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.SaleRecord, len(s.sales))
	copy(out, s.sales)
	return out, nil
}

// AddPatient appends one patient record.
func (s *InMemoryStore) AddPatient(r models.PatientRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patients = append(s.patients, r)
	slog.Debug("InMemoryStore AddPatient", "name", r.Name)
	return nil
}

// ListPatients returns a copy of all patient records.
func (s *InMemoryStore) ListPatients() ([]models.PatientRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.PatientRecord, len(s.patients))
	copy(out, s.patients)
	return out, nil
}

// AddExpense appends one expense record.
func (s *InMemoryStore) AddExpense(r models.ExpenseRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expenses = append(s.expenses, r)
	slog.Debug("InMemoryStore AddExpense", "category", r.Category)
	return nil
}

// ListExpenses returns a copy of all expense records.
func (s *InMemoryStore) ListExpenses() ([]models.ExpenseRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ExpenseRecord, len(s.expenses))
	copy(out, s.expenses)
	return out, nil
}

// ListStock returns every stock entry, including depleted ones.
func (s *InMemoryStore) ListStock() ([]models.StockEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.StockEntry, 0, len(s.stock))
	for product, qty := range s.stock {
		out = append(out, models.StockEntry{Product: product, Quantity: qty})
	}
	return out, nil
}

// AvailableStock returns stock entries with quantity > 0.
func (s *InMemoryStore) AvailableStock() ([]models.StockEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.StockEntry, 0, len(s.stock))
	for product, qty := range s.stock {
		if qty > 0 {
			out = append(out, models.StockEntry{Product: product, Quantity: qty})
		}
	}
	return out, nil
}

// UpsertStock creates or replaces the stock entry for a product.
func (s *InMemoryStore) UpsertStock(e models.StockEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stock[e.Product] = e.Quantity
	slog.Debug("InMemoryStore UpsertStock", "product", e.Product, "quantity", e.Quantity)
	return nil
}

// DecrementStock subtracts qty under the store lock, so two concurrent
// sales against the same product cannot both pass the guard.
func (s *InMemoryStore) DecrementStock(product string, qty int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.stock[product]
	if !ok {
		slog.Warn("InMemoryStore DecrementStock unknown product", "product", product)
		return models.ErrUnknownProduct
	}
	if current < qty {
		slog.Info("InMemoryStore DecrementStock insufficient", "product", product, "available", current, "requested", qty)
		return models.ErrInsufficientStock
	}
	s.stock[product] = current - qty
	slog.Debug("InMemoryStore DecrementStock succeeded", "product", product, "remaining", s.stock[product])
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
