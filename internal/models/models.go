// Package models defines the core data structures for registrobot.
//
// It includes the record variants committed at the end of each conversation
// flow, the stock entry mutated by sales, and the inbound response type
// shared between the transport and the dialogue controller.
package models

import (
	"errors"
	"time"
)

// AnonymousUser is recorded when the transport exposes no identity at all.
const AnonymousUser = "anónimo"

// Error variables for better error handling and testability
var (
	ErrEmptyProduct      = errors.New("product cannot be empty")
	ErrNonPositiveAmount = errors.New("quantity must be positive")
	ErrNegativePrice     = errors.New("unit price cannot be negative")
	ErrEmptyPatientName  = errors.New("patient name cannot be empty")
	ErrEmptyCategory     = errors.New("expense category cannot be empty")
	ErrInsufficientStock = errors.New("insufficient stock for requested quantity")
	ErrUnknownProduct    = errors.New("no stock entry for product")
	ErrSessionNotFound   = errors.New("no active session for conversation")
)

// SaleRecord is one committed sale. Total is quantity × unit price with no
// rounding applied before storage.
type SaleRecord struct {
	Product   string    `json:"product"`
	Quantity  int       `json:"quantity"`
	UnitPrice float64   `json:"unit_price"`
	Total     float64   `json:"total"`
	Timestamp time.Time `json:"timestamp"`
	User      string    `json:"user"`
}

// Validate checks a sale record before it is appended to the store.
func (r *SaleRecord) Validate() error {
	if r.Product == "" {
		return ErrEmptyProduct
	}
	if r.Quantity <= 0 {
		return ErrNonPositiveAmount
	}
	if r.UnitPrice < 0 {
		return ErrNegativePrice
	}
	return nil
}

// PatientRecord is one committed patient registration. Age and Quantity are
// captured as opaque text; nothing downstream depends on them parsing.
type PatientRecord struct {
	Name      string    `json:"name"`
	Age       string    `json:"age"`
	IDNumber  string    `json:"id_number"`
	Quantity  string    `json:"quantity"`
	Timestamp time.Time `json:"timestamp"`
	User      string    `json:"user"`
}

// Validate checks a patient record before it is appended to the store.
func (r *PatientRecord) Validate() error {
	if r.Name == "" {
		return ErrEmptyPatientName
	}
	return nil
}

// ExpenseRecord is one committed expense. Amount is opaque text; the summary
// aggregation parses it and skips rows that fail.
type ExpenseRecord struct {
	Category    string    `json:"category"`
	Amount      string    `json:"amount"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
	User        string    `json:"user"`
}

// Validate checks an expense record before it is appended to the store.
func (r *ExpenseRecord) Validate() error {
	if r.Category == "" {
		return ErrEmptyCategory
	}
	return nil
}

// StockEntry tracks remaining units of one product. Quantity never goes
// negative: decrements that would cross zero are rejected at the store.
type StockEntry struct {
	Product  string `json:"product"`
	Quantity int    `json:"quantity"`
}

// Summary holds the on-demand aggregates over all stored rows.
type Summary struct {
	SalesTotal    float64 `json:"sales_total"`
	ExpensesTotal float64 `json:"expenses_total"`
	PatientCount  int     `json:"patient_count"`
}

// Response represents an incoming message from a conversation participant.
// From is the conversation id as the transport reports it (Telegram chat id,
// phone number for SMS).
type Response struct {
	From        string `json:"from"`
	Username    string `json:"username,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Body        string `json:"body"`
	Time        int64  `json:"time"`
}

// Identity returns the sender's preferred handle, falling back to the
// display name, falling back to the anonymous placeholder.
func (r Response) Identity() string {
	if r.Username != "" {
		return r.Username
	}
	if r.DisplayName != "" {
		return r.DisplayName
	}
	return AnonymousUser
}
