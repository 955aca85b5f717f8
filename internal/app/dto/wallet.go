package dto

import (
	"time"

	domainwallet "ecostay/internal/domain/wallet"
)

type Transaction struct {
	ID                string    `json:"id"`
	Type              string    `json:"type"`
	Amount            int64     `json:"amount"`
	Currency          string    `json:"currency"`
	BalanceAfter      int64     `json:"balance_after"`
	Status            string    `json:"status"`
	RelatedBookingID  string    `json:"related_booking_id,omitempty"`
	CounterpartyEmail string    `json:"counterparty_email,omitempty"`
	GatewayReference  string    `json:"gateway_reference,omitempty"`
	Description       string    `json:"description,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

type TransactionCollection struct {
	Items []Transaction `json:"items"`
}

func MapTransaction(tx *domainwallet.Transaction) Transaction {
	return Transaction{
		ID:                tx.ID,
		Type:              string(tx.Type),
		Amount:            tx.Amount,
		Currency:          tx.Currency,
		BalanceAfter:      tx.BalanceAfter,
		Status:            string(tx.Status),
		RelatedBookingID:  tx.RelatedBookingID,
		CounterpartyEmail: tx.CounterpartyEmail,
		GatewayReference:  tx.GatewayReference,
		Description:       tx.Description,
		CreatedAt:         tx.CreatedAt,
	}
}

func MapTransactions(txs []*domainwallet.Transaction) TransactionCollection {
	items := make([]Transaction, 0, len(txs))
	for _, tx := range txs {
		items = append(items, MapTransaction(tx))
	}
	return TransactionCollection{Items: items}
}
