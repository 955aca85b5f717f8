package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"ecostay/internal/app/policies"
	"ecostay/internal/domain/shared/money"
)

// REST talks to a PayPal-style checkout and payouts API. Amounts travel as
// decimal strings in major units.
type REST struct {
	Client  *http.Client
	BaseURL string
	Token   string
	Logger  *slog.Logger
}

func NewREST(baseURL, token string, client *http.Client, logger *slog.Logger) *REST {
	if client == nil {
		client = http.DefaultClient
	}
	return &REST{Client: client, BaseURL: strings.TrimRight(baseURL, "/"), Token: token, Logger: logger}
}

type restAmount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type restPurchaseUnit struct {
	Amount      restAmount `json:"amount"`
	Description string     `json:"description,omitempty"`
	CustomID    string     `json:"custom_id,omitempty"`
}

type restOrderRequest struct {
	Intent        string             `json:"intent"`
	PurchaseUnits []restPurchaseUnit `json:"purchase_units"`
}

type restOrderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Payer  struct {
		PayerID string `json:"payer_id"`
	} `json:"payer"`
	PurchaseUnits []restPurchaseUnit `json:"purchase_units"`
}

type restPayoutRequest struct {
	SenderBatchHeader struct {
		SenderBatchID string `json:"sender_batch_id"`
	} `json:"sender_batch_header"`
	Items []restPayoutItem `json:"items"`
}

type restPayoutItem struct {
	RecipientType string     `json:"recipient_type"`
	Receiver      string     `json:"receiver"`
	Amount        restAmount `json:"amount"`
}

type restPayoutResponse struct {
	BatchHeader struct {
		PayoutBatchID string `json:"payout_batch_id"`
		BatchStatus   string `json:"batch_status"`
	} `json:"batch_header"`
}

// CreateOrder stores the customer reference as the purchase unit custom_id.
func (g *REST) CreateOrder(ctx context.Context, req policies.OrderRequest) (string, error) {
	body := restOrderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []restPurchaseUnit{{
			Amount:      toRESTAmount(req.Amount),
			Description: req.Description,
			CustomID:    req.CustomerRef,
		}},
	}

	var out restOrderResponse
	if err := g.do(ctx, http.MethodPost, "/v2/checkout/orders", "", body, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("%w: order id missing", policies.ErrGatewayUnavailable)
	}
	return out.ID, nil
}

func (g *REST) GetOrder(ctx context.Context, orderID string) (policies.Order, error) {
	var out restOrderResponse
	if err := g.do(ctx, http.MethodGet, "/v2/checkout/orders/"+orderID, "", nil, &out); err != nil {
		return policies.Order{}, err
	}
	order := policies.Order{ID: out.ID, Status: strings.ToUpper(out.Status)}
	if len(out.PurchaseUnits) > 0 {
		amount, err := fromRESTAmount(out.PurchaseUnits[0].Amount)
		if err != nil {
			return policies.Order{}, err
		}
		order.Amount = amount
		order.CustomerRef = out.PurchaseUnits[0].CustomID
	}
	return order, nil
}

func (g *REST) CaptureOrder(ctx context.Context, orderID string) (policies.Capture, error) {
	var out restOrderResponse
	if err := g.do(ctx, http.MethodPost, "/v2/checkout/orders/"+orderID+"/capture", "", struct{}{}, &out); err != nil {
		return policies.Capture{}, err
	}
	capture := policies.Capture{OrderID: out.ID, PayerID: out.Payer.PayerID}
	switch strings.ToUpper(out.Status) {
	case "COMPLETED":
		capture.Status = policies.CaptureCompleted
	case "DECLINED", "VOIDED":
		capture.Status = policies.CaptureDeclined
	default:
		capture.Status = policies.CapturePending
	}
	if len(out.PurchaseUnits) > 0 {
		amount, err := fromRESTAmount(out.PurchaseUnits[0].Amount)
		if err != nil {
			return policies.Capture{}, err
		}
		capture.Amount = amount
		capture.CustomerRef = out.PurchaseUnits[0].CustomID
	}
	return capture, nil
}

// Payout sends the idempotency key as the request id and the batch id, so a
// retried call resolves to the original payout.
func (g *REST) Payout(ctx context.Context, req policies.PayoutRequest) (policies.PayoutReceipt, error) {
	var body restPayoutRequest
	body.SenderBatchHeader.SenderBatchID = req.IdempotencyKey
	body.Items = []restPayoutItem{{RecipientType: "EMAIL", Receiver: req.DestinationEmail, Amount: toRESTAmount(req.Amount)}}

	var out restPayoutResponse
	if err := g.do(ctx, http.MethodPost, "/v1/payments/payouts", req.IdempotencyKey, body, &out); err != nil {
		return policies.PayoutReceipt{}, err
	}
	receipt := policies.PayoutReceipt{PayoutID: out.BatchHeader.PayoutBatchID}
	switch strings.ToUpper(out.BatchHeader.BatchStatus) {
	case "SUCCESS":
		receipt.Status = policies.PayoutSucceeded
	case "DENIED", "FAILED", "CANCELED":
		receipt.Status = policies.PayoutFailed
	default:
		receipt.Status = policies.PayoutPending
	}
	return receipt, nil
}

// do maps transport failures and 5xx to ErrGatewayUnavailable and 4xx to
// ErrGatewayRejected. A nil in sends no body.
func (g *REST) do(ctx context.Context, method, path, requestID string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.BaseURL+path, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if g.Token != "" {
		req.Header.Set("Authorization", "Bearer "+g.Token)
	}
	if requestID != "" {
		req.Header.Set("PayPal-Request-Id", requestID)
	}

	resp, err := g.Client.Do(req)
	if err != nil {
		g.logError("gateway request failed", path, err)
		return fmt.Errorf("%w: %w", policies.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		sentinel := policies.ErrGatewayRejected
		if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
			sentinel = policies.ErrGatewayUnavailable
		}
		err := fmt.Errorf("%w: status %d: %s", sentinel, resp.StatusCode, string(snippet))
		g.logError("gateway returned error", path, err)
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: decode: %w", policies.ErrGatewayUnavailable, err)
	}
	return nil
}

func (g *REST) logError(msg, path string, err error) {
	if g.Logger == nil {
		return
	}
	g.Logger.Error(msg, "path", path, "error", err)
}

func toRESTAmount(m money.Money) restAmount {
	return restAmount{CurrencyCode: m.Currency, Value: decimal.New(m.Amount, -2).StringFixed(2)}
}

func fromRESTAmount(a restAmount) (money.Money, error) {
	value, err := decimal.NewFromString(a.Value)
	if err != nil {
		return money.Money{}, fmt.Errorf("%w: amount %q: %w", policies.ErrGatewayUnavailable, a.Value, err)
	}
	return money.Money{Amount: value.Shift(2).Round(0).IntPart(), Currency: strings.ToUpper(a.CurrencyCode)}, nil
}

var _ policies.PaymentGateway = (*REST)(nil)
