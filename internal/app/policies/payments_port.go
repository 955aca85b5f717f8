package policies

import (
	"context"
	"errors"
	"time"

	"ecostay/internal/domain/shared/money"
)

var (
	// ErrGatewayUnavailable is retryable: the outcome on the gateway side is unknown.
	ErrGatewayUnavailable = errors.New("gateway: unavailable")
	// ErrGatewayRejected is final, e.g. an invalid payout destination.
	ErrGatewayRejected = errors.New("gateway: rejected")
)

type CaptureStatus string

const (
	CaptureCompleted CaptureStatus = "COMPLETED"
	CaptureDeclined  CaptureStatus = "DECLINED"
	CapturePending   CaptureStatus = "PENDING"
)

// OrderRequest opens a checkout order. CustomerRef names the user the order
// is created for; the gateway stores it and echoes it back on reads.
type OrderRequest struct {
	Amount      money.Money
	Description string
	CustomerRef string
}

type Order struct {
	ID          string
	Status      string
	CustomerRef string
	Amount      money.Money
}

type Capture struct {
	OrderID     string
	Status      CaptureStatus
	PayerID     string
	CustomerRef string
	Amount      money.Money
}

type PayoutStatus string

const (
	PayoutSucceeded PayoutStatus = "SUCCESS"
	PayoutPending   PayoutStatus = "PENDING"
	PayoutFailed    PayoutStatus = "FAILED"
)

type PayoutRequest struct {
	Amount           money.Money
	DestinationEmail string
	IdempotencyKey   string
}

type PayoutReceipt struct {
	PayoutID string
	Status   PayoutStatus
}

// PaymentGateway is the external capture and payout provider.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, req OrderRequest) (string, error)
	GetOrder(ctx context.Context, orderID string) (Order, error)
	CaptureOrder(ctx context.Context, orderID string) (Capture, error)
	// Payout must be idempotent on IdempotencyKey.
	Payout(ctx context.Context, req PayoutRequest) (PayoutReceipt, error)
}

// Confirmation is what a verified payment confirmation token attests.
// UserID is the user who created and captured the order; only they can
// spend it.
type Confirmation struct {
	OrderID  string
	UserID   string
	Amount   money.Money
	IssuedAt time.Time
}

type ConfirmationIssuer interface {
	Issue(c Confirmation) (string, error)
}

type ConfirmationVerifier interface {
	Verify(token string) (Confirmation, error)
}
