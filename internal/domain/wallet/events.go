package wallet

import "time"

type TransactionRecorded struct {
	UserID           string          `json:"user_id"`
	TransactionID    string          `json:"transaction_id"`
	Type             TransactionType `json:"type"`
	Status           Status          `json:"status"`
	Amount           int64           `json:"amount"`
	BalanceAfter     int64           `json:"balance_after"`
	RelatedBookingID string          `json:"related_booking_id,omitempty"`
	At               time.Time       `json:"at"`
}

func (e TransactionRecorded) EventName() string     { return "wallet.transaction_recorded" }
func (e TransactionRecorded) AggregateID() string   { return e.UserID }
func (e TransactionRecorded) OccurredAt() time.Time { return e.At }

type TransactionSettled struct {
	UserID           string    `json:"user_id"`
	TransactionID    string    `json:"transaction_id"`
	Status           Status    `json:"status"`
	Amount           int64     `json:"amount"`
	BalanceAfter     int64     `json:"balance_after"`
	GatewayReference string    `json:"gateway_reference,omitempty"`
	At               time.Time `json:"at"`
}

func (e TransactionSettled) EventName() string     { return "wallet.transaction_settled" }
func (e TransactionSettled) AggregateID() string   { return e.UserID }
func (e TransactionSettled) OccurredAt() time.Time { return e.At }
