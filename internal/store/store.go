// Package store provides storage backends for registrobot.
//
// It exposes a tabular façade over the three record tables plus the stock
// table, with in-memory, SQLite, and PostgreSQL implementations.
package store

import (
	"strings"

	"github.com/vmoreyra/registrobot/internal/models"
)

// Store is the persistence façade used by the dialogue controller and the
// summary handler. Implementations must be safe for concurrent use.
type Store interface {
	// AddSale appends one completed sale record.
	AddSale(r models.SaleRecord) error

	// ListSales returns all stored sale records.
	ListSales() ([]models.SaleRecord, error)

	// AddPatient appends one completed patient record.
	AddPatient(r models.PatientRecord) error

	// ListPatients returns all stored patient records.
	ListPatients() ([]models.PatientRecord, error)

	// AddExpense appends one completed expense record.
	AddExpense(r models.ExpenseRecord) error

	// ListExpenses returns all stored expense records.
	ListExpenses() ([]models.ExpenseRecord, error)

	// ListStock returns every stock entry, including depleted ones.
	ListStock() ([]models.StockEntry, error)

	// AvailableStock returns stock entries with quantity > 0.
	AvailableStock() ([]models.StockEntry, error)

	// UpsertStock creates or replaces the stock entry for a product.
	UpsertStock(e models.StockEntry) error

	// DecrementStock atomically subtracts qty from a product's stock.
	// It returns models.ErrUnknownProduct when no entry exists and
	// models.ErrInsufficientStock when the decrement would go negative;
	// in both cases nothing is mutated.
	DecrementStock(product string, qty int) error

	// Close releases the underlying resources.
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// DetectDSNType reports "postgres" for PostgreSQL-style DSNs and "sqlite"
// for everything else (file paths).
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}
