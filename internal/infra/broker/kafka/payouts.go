package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/IBM/sarama"

	"ecostay/internal/app/ledger"
	"ecostay/internal/app/policies"
	domainwallet "ecostay/internal/domain/wallet"
	"ecostay/internal/infra/inbox"
)

// PayoutTopic is the gateway's payout verdict stream, before the prefix.
const PayoutTopic = "gateway.payouts.v1"

type PayoutFinalizer interface {
	FinalizePayout(ctx context.Context, idempotencyKey string, outcome ledger.Outcome) (ledger.PayoutResult, error)
}

type payoutEnvelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		IdempotencyKey string `json:"idempotency_key"`
		PayoutID       string `json:"payout_id"`
		Status         string `json:"status"`
	} `json:"data"`
}

// PayoutEvents settles pending payouts from gateway webhooks relayed onto
// Kafka as CloudEvents. Deliveries are deduped on the event id.
type PayoutEvents struct {
	Ledger PayoutFinalizer
	Inbox  inbox.Inbox
	Logger *slog.Logger
}

func (h *PayoutEvents) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	logger := h.logger().With("topic", msg.Topic, "offset", msg.Offset)
	var env payoutEnvelope
	if err := json.Unmarshal(msg.Value, &env); err != nil || env.ID == "" || env.Data.IdempotencyKey == "" {
		// poison message: skip it rather than block the partition
		logger.Error("malformed payout event dropped", "error", err)
		return nil
	}
	logger = logger.With("event_id", env.ID, "idempotency_key", env.Data.IdempotencyKey)

	var outcome ledger.Outcome
	switch policies.PayoutStatus(strings.ToUpper(env.Data.Status)) {
	case policies.PayoutSucceeded:
		outcome = ledger.Outcome{Succeeded: true, PayoutID: env.Data.PayoutID}
	case policies.PayoutFailed:
		outcome = ledger.Outcome{Succeeded: false, PayoutID: env.Data.PayoutID}
	default:
		logger.Debug("non-final payout event ignored", "status", env.Data.Status)
		return nil
	}

	if h.Inbox != nil {
		seen, err := h.Inbox.Seen(ctx, env.ID)
		if err != nil {
			return err
		}
		if seen {
			logger.Debug("duplicate payout event skipped")
			return nil
		}
	}
	res, err := h.Ledger.FinalizePayout(ctx, env.Data.IdempotencyKey, outcome)
	if errors.Is(err, domainwallet.ErrTransactionNotFound) {
		logger.Warn("payout event for unknown transaction")
		return nil
	}
	if err != nil {
		if h.Inbox != nil {
			if forgetErr := h.Inbox.Forget(context.WithoutCancel(ctx), env.ID); forgetErr != nil {
				err = errors.Join(err, forgetErr)
			}
		}
		return err
	}
	logger.Info("payout finalized from gateway event", "transaction_id", res.TransactionID, "status", res.Status, "replayed", res.Replayed)
	return nil
}

func (h *PayoutEvents) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}

var _ MessageHandler = (*PayoutEvents)(nil)
