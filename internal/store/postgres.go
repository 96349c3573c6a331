// Package store provides storage backends for registrobot.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	_ "github.com/lib/pq"

	"github.com/vmoreyra/registrobot/internal/models"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore persists records in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run Postgres migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

// AddSale appends one sale record.
func (s *PostgresStore) AddSale(r models.SaleRecord) error {
	_, err := s.db.Exec(`INSERT INTO sales (product, quantity, unit_price, total, recorded_at, recorded_by) VALUES ($1, $2, $3, $4, $5, $6)`,
		r.Product, r.Quantity, r.UnitPrice, r.Total, r.Timestamp, r.User)
	if err != nil {
		slog.Error("PostgresStore AddSale failed", "error", err, "product", r.Product)
		return fmt.Errorf("failed to insert sale for %s: %w", r.Product, err)
	}
	slog.Debug("PostgresStore AddSale succeeded", "product", r.Product, "total", r.Total)
	return nil
}

// ListSales returns all stored sale records.
func (s *PostgresStore) ListSales() ([]models.SaleRecord, error) {
	rows, err := s.db.Query(`SELECT product, quantity, unit_price, total, recorded_at, recorded_by FROM sales`)
	if err != nil {
		slog.Error("PostgresStore ListSales query failed", "error", err)
		return nil, fmt.Errorf("failed to query sales: %w", err)
	}
	defer rows.Close()

	var sales []models.SaleRecord
	for rows.Next() {
		var r models.SaleRecord
		if err := rows.Scan(&r.Product, &r.Quantity, &r.UnitPrice, &r.Total, &r.Timestamp, &r.User); err != nil {
			return nil, fmt.Errorf("failed to scan sale row: %w", err)
		}
		sales = append(sales, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sale rows: %w", err)
	}
	return sales, nil
}

// AddPatient appends one patient record.
func (s *PostgresStore) AddPatient(r models.PatientRecord) error {
	_, err := s.db.Exec(`INSERT INTO patients (name, age, id_number, quantity, recorded_at, recorded_by) VALUES ($1, $2, $3, $4, $5, $6)`,
		r.Name, r.Age, r.IDNumber, r.Quantity, r.Timestamp, r.User)
	if err != nil {
		slog.Error("PostgresStore AddPatient failed", "error", err, "name", r.Name)
		return fmt.Errorf("failed to insert patient %s: %w", r.Name, err)
	}
	return nil
}

// ListPatients returns all stored patient records.
func (s *PostgresStore) ListPatients() ([]models.PatientRecord, error) {
	rows, err := s.db.Query(`SELECT name, age, id_number, quantity, recorded_at, recorded_by FROM patients`)
	if err != nil {
		slog.Error("PostgresStore ListPatients query failed", "error", err)
		return nil, fmt.Errorf("failed to query patients: %w", err)
	}
	defer rows.Close()

	var patients []models.PatientRecord
	for rows.Next() {
		var r models.PatientRecord
		if err := rows.Scan(&r.Name, &r.Age, &r.IDNumber, &r.Quantity, &r.Timestamp, &r.User); err != nil {
			return nil, fmt.Errorf("failed to scan patient row: %w", err)
		}
		patients = append(patients, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate patient rows: %w", err)
	}
	return patients, nil
}

// AddExpense appends one expense record.
func (s *PostgresStore) AddExpense(r models.ExpenseRecord) error {
	_, err := s.db.Exec(`INSERT INTO expenses (category, amount, description, recorded_at, recorded_by) VALUES ($1, $2, $3, $4, $5)`,
		r.Category, r.Amount, r.Description, r.Timestamp, r.User)
	if err != nil {
		slog.Error("PostgresStore AddExpense failed", "error", err, "category", r.Category)
		return fmt.Errorf("failed to insert expense %s: %w", r.Category, err)
	}
	return nil
}

// ListExpenses returns all stored expense records.
func (s *PostgresStore) ListExpenses() ([]models.ExpenseRecord, error) {
	rows, err := s.db.Query(`SELECT category, amount, description, recorded_at, recorded_by FROM expenses`)
	if err != nil {
		slog.Error("PostgresStore ListExpenses query failed", "error", err)
		return nil, fmt.Errorf("failed to query expenses: %w", err)
	}
	defer rows.Close()

	var expenses []models.ExpenseRecord
	for rows.Next() {
		var r models.ExpenseRecord
		if err := rows.Scan(&r.Category, &r.Amount, &r.Description, &r.Timestamp, &r.User); err != nil {
			return nil, fmt.Errorf("failed to scan expense row: %w", err)
		}
		expenses = append(expenses, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expense rows: %w", err)
	}
	return expenses, nil
}

// ListStock returns every stock entry, including depleted ones.
func (s *PostgresStore) ListStock() ([]models.StockEntry, error) {
	return s.queryStock(`SELECT product, quantity FROM stock`)
}

// AvailableStock returns stock entries with quantity > 0.
func (s *PostgresStore) AvailableStock() ([]models.StockEntry, error) {
	return s.queryStock(`SELECT product, quantity FROM stock WHERE quantity > 0`)
}

func (s *PostgresStore) queryStock(query string) ([]models.StockEntry, error) {
	rows, err := s.db.Query(query)
	if err != nil {
		slog.Error("PostgresStore stock query failed", "error", err)
		return nil, fmt.Errorf("failed to query stock: %w", err)
	}
	defer rows.Close()

	var entries []models.StockEntry
	for rows.Next() {
		var e models.StockEntry
		if err := rows.Scan(&e.Product, &e.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan stock row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stock rows: %w", err)
	}
	return entries, nil
}

// UpsertStock creates or replaces the stock entry for a product.
func (s *PostgresStore) UpsertStock(e models.StockEntry) error {
	_, err := s.db.Exec(`INSERT INTO stock (product, quantity) VALUES ($1, $2) ON CONFLICT (product) DO UPDATE SET quantity = EXCLUDED.quantity`,
		e.Product, e.Quantity)
	if err != nil {
		slog.Error("PostgresStore UpsertStock failed", "error", err, "product", e.Product)
		return fmt.Errorf("failed to upsert stock for %s: %w", e.Product, err)
	}
	return nil
}

// DecrementStock subtracts qty in a single guarded UPDATE, so the
// non-negative invariant holds even under concurrent sales.
func (s *PostgresStore) DecrementStock(product string, qty int) error {
	res, err := s.db.Exec(`UPDATE stock SET quantity = quantity - $1 WHERE product = $2 AND quantity >= $1`, qty, product)
	if err != nil {
		slog.Error("PostgresStore DecrementStock failed", "error", err, "product", product)
		return fmt.Errorf("failed to decrement stock for %s: %w", product, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read decrement result for %s: %w", product, err)
	}
	if affected == 0 {
		var exists int
		if err := s.db.QueryRow(`SELECT COUNT(*) FROM stock WHERE product = $1`, product).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check stock entry for %s: %w", product, err)
		}
		if exists == 0 {
			slog.Warn("PostgresStore DecrementStock unknown product", "product", product)
			return models.ErrUnknownProduct
		}
		slog.Info("PostgresStore DecrementStock insufficient", "product", product, "requested", qty)
		return models.ErrInsufficientStock
	}
	slog.Debug("PostgresStore DecrementStock succeeded", "product", product, "quantity", qty)
	return nil
}

// Close closes the underlying database handle.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
