// Package store provides storage backends for registrobot.
//
// This file implements the SQLite-backed store used by single-host
// deployments without an external database.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vmoreyra/registrobot/internal/models"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore persists records in a single SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run SQLite migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

// AddSale appends one sale record.
func (s *SQLiteStore) AddSale(r models.SaleRecord) error {
	_, err := s.db.Exec(`INSERT INTO sales (product, quantity, unit_price, total, recorded_at, recorded_by) VALUES (?, ?, ?, ?, ?, ?)`,
		r.Product, r.Quantity, r.UnitPrice, r.Total, r.Timestamp, r.User)
	if err != nil {
		slog.Error("SQLiteStore AddSale failed", "error", err, "product", r.Product)
		return fmt.Errorf("failed to insert sale for %s: %w", r.Product, err)
	}
	slog.Debug("SQLiteStore AddSale succeeded", "product", r.Product, "total", r.Total)
	return nil
}

// ListSales returns all stored sale records.
func (s *SQLiteStore) ListSales() ([]models.SaleRecord, error) {
	rows, err := s.db.Query(`SELECT product, quantity, unit_price, total, recorded_at, recorded_by FROM sales`)
	if err != nil {
		slog.Error("SQLiteStore ListSales query failed", "error", err)
		return nil, fmt.Errorf("failed to query sales: %w", err)
	}
	defer rows.Close()

	var sales []models.SaleRecord
	for rows.Next() {
		var r models.SaleRecord
		if err := rows.Scan(&r.Product, &r.Quantity, &r.UnitPrice, &r.Total, &r.Timestamp, &r.User); err != nil {
			slog.Error("SQLiteStore ListSales scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan sale row: %w", err)
		}
		sales = append(sales, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sale rows: %w", err)
	}
	slog.Debug("SQLiteStore ListSales succeeded", "count", len(sales))
	return sales, nil
}

// AddPatient appends one patient record.
func (s *SQLiteStore) AddPatient(r models.PatientRecord) error {
	_, err := s.db.Exec(`INSERT INTO patients (name, age, id_number, quantity, recorded_at, recorded_by) VALUES (?, ?, ?, ?, ?, ?)`,
		r.Name, r.Age, r.IDNumber, r.Quantity, r.Timestamp, r.User)
	if err != nil {
		slog.Error("SQLiteStore AddPatient failed", "error", err, "name", r.Name)
		return fmt.Errorf("failed to insert patient %s: %w", r.Name, err)
	}
	slog.Debug("SQLiteStore AddPatient succeeded", "name", r.Name)
	return nil
}

// ListPatients returns all stored patient records.
func (s *SQLiteStore) ListPatients() ([]models.PatientRecord, error) {
	rows, err := s.db.Query(`SELECT name, age, id_number, quantity, recorded_at, recorded_by FROM patients`)
	if err != nil {
		slog.Error("SQLiteStore ListPatients query failed", "error", err)
		return nil, fmt.Errorf("failed to query patients: %w", err)
	}
	defer rows.Close()

	var patients []models.PatientRecord
	for rows.Next() {
		var r models.PatientRecord
		if err := rows.Scan(&r.Name, &r.Age, &r.IDNumber, &r.Quantity, &r.Timestamp, &r.User); err != nil {
			slog.Error("SQLiteStore ListPatients scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan patient row: %w", err)
		}
		patients = append(patients, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate patient rows: %w", err)
	}
	slog.Debug("SQLiteStore ListPatients succeeded", "count", len(patients))
	return patients, nil
}

// AddExpense appends one expense record.
func (s *SQLiteStore) AddExpense(r models.ExpenseRecord) error {
	_, err := s.db.Exec(`INSERT INTO expenses (category, amount, description, recorded_at, recorded_by) VALUES (?, ?, ?, ?, ?)`,
		r.Category, r.Amount, r.Description, r.Timestamp, r.User)
	if err != nil {
		slog.Error("SQLiteStore AddExpense failed", "error", err, "category", r.Category)
		return fmt.Errorf("failed to insert expense %s: %w", r.Category, err)
	}
	slog.Debug("SQLiteStore AddExpense succeeded", "category", r.Category)
	return nil
}

// ListExpenses returns all stored expense records.
func (s *SQLiteStore) ListExpenses() ([]models.ExpenseRecord, error) {
	rows, err := s.db.Query(`SELECT category, amount, description, recorded_at, recorded_by FROM expenses`)
	if err != nil {
		slog.Error("SQLiteStore ListExpenses query failed", "error", err)
		return nil, fmt.Errorf("failed to query expenses: %w", err)
	}
	defer rows.Close()

	var expenses []models.ExpenseRecord
	for rows.Next() {
		var r models.ExpenseRecord
		if err := rows.Scan(&r.Category, &r.Amount, &r.Description, &r.Timestamp, &r.User); err != nil {
			slog.Error("SQLiteStore ListExpenses scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan expense row: %w", err)
		}
		expenses = append(expenses, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expense rows: %w", err)
	}
	slog.Debug("SQLiteStore ListExpenses succeeded", "count", len(expenses))
	return expenses, nil
}

// ListStock returns every stock entry, including depleted ones.
func (s *SQLiteStore) ListStock() ([]models.StockEntry, error) {
	return s.queryStock(`SELECT product, quantity FROM stock`)
}

// AvailableStock returns stock entries with quantity > 0.
func (s *SQLiteStore) AvailableStock() ([]models.StockEntry, error) {
	return s.queryStock(`SELECT product, quantity FROM stock WHERE quantity > 0`)
}

func (s *SQLiteStore) queryStock(query string) ([]models.StockEntry, error) {
	rows, err := s.db.Query(query)
	if err != nil {
		slog.Error("SQLiteStore stock query failed", "error", err)
		return nil, fmt.Errorf("failed to query stock: %w", err)
	}
	defer rows.Close()

	var entries []models.StockEntry
	for rows.Next() {
		var e models.StockEntry
		if err := rows.Scan(&e.Product, &e.Quantity); err != nil {
			slog.Error("SQLiteStore stock scan failed", "error", err)
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
func (s *SQLiteStore) UpsertStock(e models.StockEntry) error {
	_, err := s.db.Exec(`INSERT INTO stock (product, quantity) VALUES (?, ?) ON CONFLICT(product) DO UPDATE SET quantity = excluded.quantity`,
		e.Product, e.Quantity)
	if err != nil {
		slog.Error("SQLiteStore UpsertStock failed", "error", err, "product", e.Product)
		return fmt.Errorf("failed to upsert stock for %s: %w", e.Product, err)
	}
	slog.Debug("SQLiteStore UpsertStock succeeded", "product", e.Product, "quantity", e.Quantity)
	return nil
}

// DecrementStock subtracts qty in a single guarded UPDATE, so the
// non-negative invariant holds even under concurrent sales.
func (s *SQLiteStore) DecrementStock(product string, qty int) error {
	res, err := s.db.Exec(`UPDATE stock SET quantity = quantity - ? WHERE product = ? AND quantity >= ?`, qty, product, qty)
	if err != nil {
		slog.Error("SQLiteStore DecrementStock failed", "error", err, "product", product)
		return fmt.Errorf("failed to decrement stock for %s: %w", product, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read decrement result for %s: %w", product, err)
	}
	if affected == 0 {
		var exists int
		if err := s.db.QueryRow(`SELECT COUNT(*) FROM stock WHERE product = ?`, product).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check stock entry for %s: %w", product, err)
		}
		if exists == 0 {
			slog.Warn("SQLiteStore DecrementStock unknown product", "product", product)
			return models.ErrUnknownProduct
		}
		slog.Info("SQLiteStore DecrementStock insufficient", "product", product, "requested", qty)
		return models.ErrInsufficientStock
	}
	slog.Debug("SQLiteStore DecrementStock succeeded", "product", product, "quantity", qty)
	return nil
}

// Close closes the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
