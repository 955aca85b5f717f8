package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecostay/internal/app/policies"
	"ecostay/internal/domain/shared/money"
)

func TestTokenRoundTrip(t *testing.T) {
	issued := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	signer, err := NewTokenSigner("0123456789abcdef", time.Hour)
	require.NoError(t, err)
	signer.Now = func() time.Time { return issued.Add(30 * time.Minute) }

	token, err := signer.Issue(policies.Confirmation{OrderID: "ORDER-1", UserID: "alice", Amount: money.Must(33000, "USD"), IssuedAt: issued})
	require.NoError(t, err)

	conf, err := signer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "ORDER-1", conf.OrderID)
	assert.Equal(t, "alice", conf.UserID)
	assert.True(t, conf.Amount.SameAs(money.Must(33000, "USD")))
	assert.True(t, issued.Equal(conf.IssuedAt))
}

func TestTokenRejections(t *testing.T) {
	issued := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	signer, err := NewTokenSigner("0123456789abcdef", time.Hour)
	require.NoError(t, err)
	signer.Now = func() time.Time { return issued }
	token, err := signer.Issue(policies.Confirmation{OrderID: "ORDER-1", UserID: "alice", Amount: money.Must(100, "USD")})
	require.NoError(t, err)

	other, err := NewTokenSigner("fedcba9876543210", time.Hour)
	require.NoError(t, err)
	_, err = other.Verify(token)
	assert.ErrorIs(t, err, ErrTokenSignature)

	payload, sig, _ := strings.Cut(token, ".")
	tampered := strings.ToUpper(payload[:1]) + payload[1:] + "." + sig
	if tampered != token {
		_, err = signer.Verify(tampered)
		assert.Error(t, err)
	}

	_, err = signer.Verify("no-dot")
	assert.ErrorIs(t, err, ErrTokenMalformed)
	_, err = signer.Verify("!!.??")
	assert.ErrorIs(t, err, ErrTokenMalformed)

	signer.Now = func() time.Time { return issued.Add(2 * time.Hour) }
	_, err = signer.Verify(token)
	assert.ErrorIs(t, err, ErrTokenExpired)

	_, err = signer.Issue(policies.Confirmation{})
	assert.ErrorIs(t, err, ErrTokenMalformed)
	_, err = signer.Issue(policies.Confirmation{OrderID: "ORDER-1", Amount: money.Must(100, "USD")})
	assert.ErrorIs(t, err, ErrTokenMalformed, "tokens must name the paying user")

	_, err = NewTokenSigner("short", time.Hour)
	assert.ErrorIs(t, err, ErrTokenSecret)
}

func TestSandboxOrders(t *testing.T) {
	s := NewSandbox()
	ctx := context.Background()

	_, err := s.CreateOrder(ctx, policies.OrderRequest{Amount: money.Must(0, "USD")})
	assert.ErrorIs(t, err, policies.ErrGatewayRejected)

	id, err := s.CreateOrder(ctx, policies.OrderRequest{Amount: money.Must(1200, "USD"), Description: "stay", CustomerRef: "alice"})
	require.NoError(t, err)
	order, err := s.GetOrder(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "alice", order.CustomerRef)
	assert.Equal(t, "APPROVED", order.Status)
	assert.False(t, s.Captured(id))

	capture, err := s.CaptureOrder(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, policies.CaptureCompleted, capture.Status)
	assert.Equal(t, "alice", capture.CustomerRef)
	assert.EqualValues(t, 1200, capture.Amount.Amount)
	assert.True(t, s.Captured(id))

	_, err = s.GetOrder(ctx, "ORDER-NOPE")
	assert.ErrorIs(t, err, policies.ErrGatewayRejected)

	declined, err := s.CreateOrder(ctx, policies.OrderRequest{Amount: money.Must(500, "USD")})
	require.NoError(t, err)
	s.Decline(declined)
	capture, err = s.CaptureOrder(ctx, declined)
	require.NoError(t, err)
	assert.Equal(t, policies.CaptureDeclined, capture.Status)

	_, err = s.CaptureOrder(ctx, "ORDER-NOPE")
	assert.ErrorIs(t, err, policies.ErrGatewayRejected)
}

func TestSandboxPayoutsDedupeOnKey(t *testing.T) {
	s := NewSandbox()
	ctx := context.Background()
	req := policies.PayoutRequest{Amount: money.Must(100, "USD"), DestinationEmail: "h@example.com", IdempotencyKey: "k1"}

	s.SetPayoutBehavior(PayoutAccept)
	first, err := s.Payout(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, policies.PayoutPending, first.Status)

	s.SetPayoutBehavior(PayoutReject)
	again, err := s.Payout(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Equal(t, 2, s.PayoutCalls("k1"))

	settled, ok := s.Settle("k1", true)
	require.True(t, ok)
	assert.Equal(t, policies.PayoutSucceeded, settled.Status)
	_, ok = s.Settle("k1", false)
	assert.False(t, ok)

	hctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	s.SetPayoutBehavior(PayoutHang)
	_, err = s.Payout(hctx, policies.PayoutRequest{IdempotencyKey: "k2"})
	assert.ErrorIs(t, err, policies.ErrGatewayUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRESTCheckoutFlow(t *testing.T) {
	var orderBody restOrderRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		switch r.Method + " " + r.URL.Path {
		case "POST /v2/checkout/orders":
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&orderBody))
			_, _ = w.Write([]byte(`{"id":"ORD-9","status":"CREATED"}`))
		case "GET /v2/checkout/orders/ORD-9":
			assert.Empty(t, r.Header.Get("Content-Type"))
			_, _ = w.Write([]byte(`{"id":"ORD-9","status":"approved","purchase_units":[{"amount":{"currency_code":"USD","value":"330.00"},"custom_id":"alice"}]}`))
		case "POST /v2/checkout/orders/ORD-9/capture":
			_, _ = w.Write([]byte(`{"id":"ORD-9","status":"COMPLETED","payer":{"payer_id":"P1"},"purchase_units":[{"amount":{"currency_code":"usd","value":"330.00"},"custom_id":"alice"}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	g := NewREST(srv.URL+"/", "secret", srv.Client(), nil)
	ctx := context.Background()

	id, err := g.CreateOrder(ctx, policies.OrderRequest{Amount: money.Must(33000, "USD"), Description: "cabin", CustomerRef: "alice"})
	require.NoError(t, err)
	assert.Equal(t, "ORD-9", id)
	assert.Equal(t, "CAPTURE", orderBody.Intent)
	require.Len(t, orderBody.PurchaseUnits, 1)
	assert.Equal(t, restAmount{CurrencyCode: "USD", Value: "330.00"}, orderBody.PurchaseUnits[0].Amount)
	assert.Equal(t, "alice", orderBody.PurchaseUnits[0].CustomID)

	order, err := g.GetOrder(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "APPROVED", order.Status)
	assert.Equal(t, "alice", order.CustomerRef)
	assert.True(t, order.Amount.SameAs(money.Must(33000, "USD")))

	capture, err := g.CaptureOrder(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, policies.CaptureCompleted, capture.Status)
	assert.Equal(t, "P1", capture.PayerID)
	assert.Equal(t, "alice", capture.CustomerRef)
	assert.True(t, capture.Amount.SameAs(money.Must(33000, "USD")))
}

func TestRESTPayoutStatuses(t *testing.T) {
	status := "SUCCESS"
	code := http.StatusCreated
	var requestID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID = r.Header.Get("PayPal-Request-Id")
		w.WriteHeader(code)
		_, _ = w.Write([]byte(`{"batch_header":{"payout_batch_id":"B-1","batch_status":"` + status + `"}}`))
	}))
	defer srv.Close()

	g := NewREST(srv.URL, "", srv.Client(), nil)
	req := policies.PayoutRequest{Amount: money.Must(1999, "USD"), DestinationEmail: "h@example.com", IdempotencyKey: "k1"}
	ctx := context.Background()

	receipt, err := g.Payout(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, policies.PayoutReceipt{PayoutID: "B-1", Status: policies.PayoutSucceeded}, receipt)
	assert.Equal(t, "k1", requestID)

	status = "PROCESSING"
	receipt, err = g.Payout(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, policies.PayoutPending, receipt.Status)

	status = "DENIED"
	receipt, err = g.Payout(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, policies.PayoutFailed, receipt.Status)

	code = http.StatusUnprocessableEntity
	_, err = g.Payout(ctx, req)
	assert.ErrorIs(t, err, policies.ErrGatewayRejected)

	code = http.StatusServiceUnavailable
	_, err = g.Payout(ctx, req)
	assert.ErrorIs(t, err, policies.ErrGatewayUnavailable)

	code = http.StatusTooManyRequests
	_, err = g.Payout(ctx, req)
	assert.ErrorIs(t, err, policies.ErrGatewayUnavailable)
}

func TestRESTUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	g := NewREST(url, "", nil, nil)
	_, err := g.Payout(context.Background(), policies.PayoutRequest{Amount: money.Must(1, "USD"), IdempotencyKey: "k"})
	assert.ErrorIs(t, err, policies.ErrGatewayUnavailable)
}

func TestRESTAmountConversion(t *testing.T) {
	assert.Equal(t, "0.05", toRESTAmount(money.Must(5, "USD")).Value)
	m, err := fromRESTAmount(restAmount{CurrencyCode: "eur", Value: "12.345"})
	require.NoError(t, err)
	assert.Equal(t, money.Money{Amount: 1235, Currency: "EUR"}, m)
	_, err = fromRESTAmount(restAmount{Value: "abc"})
	assert.ErrorIs(t, err, policies.ErrGatewayUnavailable)
}
