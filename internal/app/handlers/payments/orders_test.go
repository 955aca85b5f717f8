package payments_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	paymentsapp "ecostay/internal/app/handlers/payments"
	"ecostay/internal/app/policies"
	"ecostay/internal/infra/payments"
)

func newHandler(t *testing.T) (*paymentsapp.Handler, *payments.Sandbox, *payments.TokenSigner) {
	t.Helper()
	sandbox := payments.NewSandbox()
	signer, err := payments.NewTokenSigner("0123456789abcdef0123", time.Hour)
	require.NoError(t, err)
	return &paymentsapp.Handler{Gateway: sandbox, Issuer: signer, Currency: "USD", Timeout: time.Second}, sandbox, signer
}

func TestCaptureTokenNamesPayer(t *testing.T) {
	h, _, signer := newHandler(t)
	ctx := context.Background()

	order, err := h.CreateOrder(ctx, paymentsapp.CreateOrderCommand{UserID: "alice", Amount: 11000})
	require.NoError(t, err)
	assert.Equal(t, "USD", order.Currency)

	res, err := h.CaptureOrder(ctx, paymentsapp.CaptureOrderCommand{UserID: "alice", OrderID: order.OrderID})
	require.NoError(t, err)
	assert.Equal(t, policies.CaptureCompleted, res.Status)
	require.NotEmpty(t, res.ConfirmationToken)

	conf, err := signer.Verify(res.ConfirmationToken)
	require.NoError(t, err)
	assert.Equal(t, order.OrderID, conf.OrderID)
	assert.Equal(t, "alice", conf.UserID)
	assert.EqualValues(t, 11000, conf.Amount.Amount)
}

func TestCaptureOfForeignOrderRefused(t *testing.T) {
	h, sandbox, _ := newHandler(t)
	ctx := context.Background()

	order, err := h.CreateOrder(ctx, paymentsapp.CreateOrderCommand{UserID: "alice", Amount: 11000})
	require.NoError(t, err)

	res, err := h.CaptureOrder(ctx, paymentsapp.CaptureOrderCommand{UserID: "mallory", OrderID: order.OrderID})
	require.ErrorIs(t, err, paymentsapp.ErrOrderNotOwned)
	assert.Empty(t, res.ConfirmationToken)
	assert.False(t, sandbox.Captured(order.OrderID), "a refused capture must not charge the order")

	res, err = h.CaptureOrder(ctx, paymentsapp.CaptureOrderCommand{UserID: "alice", OrderID: order.OrderID})
	require.NoError(t, err)
	assert.NotEmpty(t, res.ConfirmationToken)
}

func TestCaptureUnknownOrder(t *testing.T) {
	h, _, _ := newHandler(t)
	_, err := h.CaptureOrder(context.Background(), paymentsapp.CaptureOrderCommand{UserID: "alice", OrderID: "ORDER-NOPE"})
	assert.ErrorIs(t, err, policies.ErrGatewayRejected)
}

func TestCreateOrderCurrency(t *testing.T) {
	h, _, _ := newHandler(t)
	_, err := h.CreateOrder(context.Background(), paymentsapp.CreateOrderCommand{UserID: "alice", Amount: 100, Currency: "eur"})
	assert.ErrorIs(t, err, paymentsapp.ErrCurrencyNotSupported)
}
