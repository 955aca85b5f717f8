package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ecostay/internal/app/dto"
	"ecostay/internal/app/policies"
)

const exportStatementKey = "wallet.export_statement"

var ErrUploaderNotConfigured = errors.New("wallet: statement storage not configured")

type ExportStatementCommand struct {
	UserID string `validate:"required"`
}

func (c ExportStatementCommand) Key() string     { return exportStatementKey }
func (c ExportStatementCommand) ActorID() string { return c.UserID }
func (c ExportStatementCommand) ManagesUnits()   {}

type StatementResult struct {
	Location     string    `json:"location"`
	Transactions int       `json:"transactions"`
	Balance      int64     `json:"balance"`
	GeneratedAt  time.Time `json:"generated_at"`
}

// StatementExporter writes a user's ledger as JSON lines, one transaction per
// line, oldest first.
type StatementExporter struct {
	Ledger   Ledger
	Uploader policies.Uploader
	Logger   *slog.Logger
	Clock    func() time.Time
}

func (e *StatementExporter) Export(ctx context.Context, cmd ExportStatementCommand) (StatementResult, error) {
	if e.Uploader == nil {
		return StatementResult{}, ErrUploaderNotConfigured
	}
	view, err := e.Ledger.Balance(ctx, cmd.UserID)
	if err != nil {
		return StatementResult{}, err
	}
	txs, err := e.Ledger.History(ctx, cmd.UserID)
	if err != nil {
		return StatementResult{}, err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, tx := range txs {
		if err := enc.Encode(dto.MapTransaction(tx)); err != nil {
			return StatementResult{}, fmt.Errorf("wallet: encode statement: %w", err)
		}
	}

	now := time.Now().UTC()
	if e.Clock != nil {
		now = e.Clock().UTC()
	}
	key := fmt.Sprintf("statements/%s/%s.jsonl", cmd.UserID, now.Format("20060102T150405Z"))
	location, err := e.Uploader.Upload(ctx, key, &buf, "application/x-ndjson")
	if err != nil {
		return StatementResult{}, err
	}
	if e.Logger != nil {
		e.Logger.Info("statement exported", "user_id", cmd.UserID, "transactions", len(txs), "location", location)
	}
	return StatementResult{Location: location, Transactions: len(txs), Balance: view.Balance, GeneratedAt: now}, nil
}
