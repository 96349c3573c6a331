// Package models defines conversation state structures for registrobot flows.
package models

import "time"

// State identifies the dialogue controller's position within a flow.
type State string

// State constants for the three registration flows. Terminal and cancelled
// states are implicit: the session is deleted instead of being parked.
const (
	StateMenu            State = "MENU"
	StateProduct         State = "PRODUCT"
	StateSaleQuantity    State = "QUANTITY_SALE"
	StatePrice           State = "PRICE"
	StateName            State = "NAME"
	StateAge             State = "AGE"
	StateIDNumber        State = "ID_NUMBER"
	StatePatientQuantity State = "QUANTITY_PATIENT"
	StateExpenseType     State = "EXPENSE_TYPE"
	StateExpenseAmount   State = "EXPENSE_AMOUNT"
	StateExpenseDetail   State = "EXPENSE_DETAIL"
)

// DataKey names one collected field inside a session.
type DataKey string

// Data keys for captured fields.
const (
	DataKeyProduct       DataKey = "product"
	DataKeyQuantity      DataKey = "quantity"
	DataKeyName          DataKey = "name"
	DataKeyAge           DataKey = "age"
	DataKeyIDNumber      DataKey = "id_number"
	DataKeyExpenseType   DataKey = "expense_type"
	DataKeyExpenseAmount DataKey = "expense_amount"
)

// Session is the per-conversation accumulator of collected field values.
// It exists only between flow entry and flow completion or cancellation.
type Session struct {
	ConversationID string            `json:"conversation_id"`
	State          State             `json:"state"`
	Data           map[DataKey]string `json:"data,omitempty"`
	User           string            `json:"user,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// NewSession creates a session parked at the menu for a conversation.
func NewSession(conversationID, user string) *Session {
	now := time.Now()
	return &Session{
		ConversationID: conversationID,
		State:          StateMenu,
		Data:           make(map[DataKey]string),
		User:           user,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Set stores one captured field value and bumps the update time.
func (s *Session) Set(key DataKey, value string) {
	if s.Data == nil {
		s.Data = make(map[DataKey]string)
	}
	s.Data[key] = value
	s.UpdatedAt = time.Now()
}

// Get returns one captured field value, or "" when not yet collected.
func (s *Session) Get(key DataKey) string {
	return s.Data[key]
}
