package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ecostay/internal/app/policies"
	"ecostay/internal/domain/shared/money"
)

const (
	createOrderKey  = "payments.create_order"
	captureOrderKey = "payments.capture_order"
)

var (
	ErrCurrencyNotSupported = errors.New("payments: currency not supported")
	ErrOrderNotOwned        = errors.New("payments: order belongs to another user")
)

type CreateOrderCommand struct {
	UserID   string `validate:"required"`
	Amount   int64  `validate:"gt=0"`
	Currency string `validate:"omitempty,len=3"`
	Note     string `validate:"max=255"`
}

func (c CreateOrderCommand) Key() string     { return createOrderKey }
func (c CreateOrderCommand) ActorID() string { return c.UserID }
func (c CreateOrderCommand) ManagesUnits()   {}

type CreateOrderResult struct {
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type CaptureOrderCommand struct {
	UserID  string `validate:"required"`
	OrderID string `validate:"required"`
}

func (c CaptureOrderCommand) Key() string     { return captureOrderKey }
func (c CaptureOrderCommand) ActorID() string { return c.UserID }
func (c CaptureOrderCommand) ManagesUnits()   {}

// CaptureOrderResult carries the confirmation token a guest presents when
// booking with the gateway payment method. Token is empty unless the
// capture completed.
type CaptureOrderResult struct {
	OrderID           string                 `json:"order_id"`
	Status            policies.CaptureStatus `json:"status"`
	Amount            int64                  `json:"amount"`
	Currency          string                 `json:"currency"`
	ConfirmationToken string                 `json:"confirmation_token,omitempty"`
}

// Handler fronts the gateway's checkout flow: create an order, let the payer
// approve it out of band, capture it and mint a confirmation.
type Handler struct {
	Gateway  policies.PaymentGateway
	Issuer   policies.ConfirmationIssuer
	Currency string
	Timeout  time.Duration
	Logger   *slog.Logger
	Clock    func() time.Time
}

func (h *Handler) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (CreateOrderResult, error) {
	currency := strings.ToUpper(cmd.Currency)
	if currency == "" {
		currency = strings.ToUpper(h.Currency)
	}
	if currency != strings.ToUpper(h.Currency) {
		return CreateOrderResult{}, ErrCurrencyNotSupported
	}
	amount, err := money.New(cmd.Amount, currency)
	if err != nil {
		return CreateOrderResult{}, err
	}
	gctx, cancel := h.withTimeout(ctx)
	defer cancel()
	orderID, err := h.Gateway.CreateOrder(gctx, policies.OrderRequest{Amount: amount, Description: cmd.Note, CustomerRef: cmd.UserID})
	if err != nil {
		return CreateOrderResult{}, err
	}
	return CreateOrderResult{OrderID: orderID, Amount: amount.Amount, Currency: amount.Currency}, nil
}

// CaptureOrder only captures orders the caller created. The ownership check
// runs before the capture so a foreign order is never charged.
func (h *Handler) CaptureOrder(ctx context.Context, cmd CaptureOrderCommand) (CaptureOrderResult, error) {
	gctx, cancel := h.withTimeout(ctx)
	defer cancel()
	order, err := h.Gateway.GetOrder(gctx, cmd.OrderID)
	if err != nil {
		return CaptureOrderResult{}, err
	}
	if order.CustomerRef != cmd.UserID {
		if h.Logger != nil {
			h.Logger.Warn("capture of foreign order refused", "order_id", cmd.OrderID, "user_id", cmd.UserID)
		}
		return CaptureOrderResult{}, ErrOrderNotOwned
	}
	capture, err := h.Gateway.CaptureOrder(gctx, cmd.OrderID)
	if err != nil {
		return CaptureOrderResult{}, err
	}
	result := CaptureOrderResult{
		OrderID:  capture.OrderID,
		Status:   capture.Status,
		Amount:   capture.Amount.Amount,
		Currency: capture.Amount.Currency,
	}
	switch capture.Status {
	case policies.CaptureCompleted:
	case policies.CaptureDeclined:
		return result, fmt.Errorf("%w: order %s declined", policies.ErrGatewayRejected, cmd.OrderID)
	default:
		return result, nil
	}
	token, err := h.Issuer.Issue(policies.Confirmation{
		OrderID:  capture.OrderID,
		UserID:   cmd.UserID,
		Amount:   capture.Amount,
		IssuedAt: h.now(),
	})
	if err != nil {
		return CaptureOrderResult{}, err
	}
	result.ConfirmationToken = token
	if h.Logger != nil {
		h.Logger.Info("gateway order captured", "order_id", capture.OrderID, "amount", capture.Amount.Amount, "payer_id", capture.PayerID)
	}
	return result, nil
}

func (h *Handler) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, h.Timeout)
}

func (h *Handler) now() time.Time {
	if h.Clock != nil {
		return h.Clock().UTC()
	}
	return time.Now().UTC()
}
