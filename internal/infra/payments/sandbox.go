package payments

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"ecostay/internal/app/policies"
	"ecostay/internal/domain/shared/money"
)

// PayoutBehavior selects how the sandbox answers payouts.
type PayoutBehavior string

const (
	PayoutSucceed     PayoutBehavior = "succeed"
	PayoutAccept      PayoutBehavior = "accept"
	PayoutReject      PayoutBehavior = "reject"
	PayoutUnavailable PayoutBehavior = "unavailable"
	// PayoutHang blocks until the caller's deadline passes.
	PayoutHang PayoutBehavior = "hang"
)

type sandboxOrder struct {
	amount      money.Money
	customerRef string
	captured    bool
}

// Sandbox is an in-process gateway for local runs and tests. Orders are
// approved immediately; payouts dedupe on the idempotency key like the real
// provider does.
type Sandbox struct {
	mu       sync.Mutex
	orders   map[string]*sandboxOrder
	payouts  map[string]policies.PayoutReceipt
	calls    map[string]int
	behavior PayoutBehavior
	declined map[string]struct{}
}

func NewSandbox() *Sandbox {
	return &Sandbox{
		orders:   make(map[string]*sandboxOrder),
		payouts:  make(map[string]policies.PayoutReceipt),
		calls:    make(map[string]int),
		declined: make(map[string]struct{}),
		behavior: PayoutSucceed,
	}
}

func (s *Sandbox) SetPayoutBehavior(b PayoutBehavior) {
	s.mu.Lock()
	s.behavior = b
	s.mu.Unlock()
}

// Decline makes the next capture of orderID fail.
func (s *Sandbox) Decline(orderID string) {
	s.mu.Lock()
	s.declined[orderID] = struct{}{}
	s.mu.Unlock()
}

// PayoutCalls reports how often Payout was called for key.
func (s *Sandbox) PayoutCalls(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[key]
}

// Settle resolves a payout the sandbox previously accepted as pending.
func (s *Sandbox) Settle(key string, succeeded bool) (policies.PayoutReceipt, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	receipt, ok := s.payouts[key]
	if !ok || receipt.Status != policies.PayoutPending {
		return receipt, false
	}
	receipt.Status = policies.PayoutFailed
	if succeeded {
		receipt.Status = policies.PayoutSucceeded
	}
	s.payouts[key] = receipt
	return receipt, true
}

func (s *Sandbox) CreateOrder(ctx context.Context, req policies.OrderRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", policies.ErrGatewayUnavailable, err)
	}
	if !req.Amount.Positive() {
		return "", fmt.Errorf("%w: order amount must be positive", policies.ErrGatewayRejected)
	}
	id := "ORDER-" + strings.ToUpper(uuid.NewString()[:13])
	s.mu.Lock()
	s.orders[id] = &sandboxOrder{amount: req.Amount, customerRef: req.CustomerRef}
	s.mu.Unlock()
	return id, nil
}

func (s *Sandbox) GetOrder(ctx context.Context, orderID string) (policies.Order, error) {
	if err := ctx.Err(); err != nil {
		return policies.Order{}, fmt.Errorf("%w: %w", policies.ErrGatewayUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok {
		return policies.Order{}, fmt.Errorf("%w: unknown order %s", policies.ErrGatewayRejected, orderID)
	}
	status := "APPROVED"
	if order.captured {
		status = "COMPLETED"
	}
	return policies.Order{ID: orderID, Status: status, CustomerRef: order.customerRef, Amount: order.amount}, nil
}

// Captured reports whether orderID has been captured.
func (s *Sandbox) Captured(orderID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	return ok && order.captured
}

func (s *Sandbox) CaptureOrder(ctx context.Context, orderID string) (policies.Capture, error) {
	if err := ctx.Err(); err != nil {
		return policies.Capture{}, fmt.Errorf("%w: %w", policies.ErrGatewayUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok {
		return policies.Capture{}, fmt.Errorf("%w: unknown order %s", policies.ErrGatewayRejected, orderID)
	}
	if _, declined := s.declined[orderID]; declined && !order.captured {
		return policies.Capture{OrderID: orderID, Status: policies.CaptureDeclined, CustomerRef: order.customerRef, Amount: order.amount}, nil
	}
	order.captured = true
	return policies.Capture{
		OrderID:     orderID,
		Status:      policies.CaptureCompleted,
		PayerID:     "SANDBOX-PAYER",
		CustomerRef: order.customerRef,
		Amount:      order.amount,
	}, nil
}

func (s *Sandbox) Payout(ctx context.Context, req policies.PayoutRequest) (policies.PayoutReceipt, error) {
	s.mu.Lock()
	s.calls[req.IdempotencyKey]++
	if receipt, ok := s.payouts[req.IdempotencyKey]; ok {
		s.mu.Unlock()
		return receipt, nil
	}
	behavior := s.behavior
	s.mu.Unlock()

	switch behavior {
	case PayoutHang:
		<-ctx.Done()
		return policies.PayoutReceipt{}, fmt.Errorf("%w: %w", policies.ErrGatewayUnavailable, ctx.Err())
	case PayoutUnavailable:
		return policies.PayoutReceipt{}, fmt.Errorf("%w: sandbox offline", policies.ErrGatewayUnavailable)
	}
	if err := ctx.Err(); err != nil {
		return policies.PayoutReceipt{}, fmt.Errorf("%w: %w", policies.ErrGatewayUnavailable, err)
	}

	receipt := policies.PayoutReceipt{PayoutID: "PAYOUT-" + strings.ToUpper(uuid.NewString()[:13])}
	var err error
	switch behavior {
	case PayoutReject:
		receipt.Status = policies.PayoutFailed
		err = fmt.Errorf("%w: receiver %s ineligible", policies.ErrGatewayRejected, req.DestinationEmail)
	case PayoutAccept:
		receipt.Status = policies.PayoutPending
	default:
		receipt.Status = policies.PayoutSucceeded
	}
	s.mu.Lock()
	s.payouts[req.IdempotencyKey] = receipt
	s.mu.Unlock()
	return receipt, err
}

var _ policies.PaymentGateway = (*Sandbox)(nil)
