package ginserver

import (
	"net/http"

	gin "github.com/gin-gonic/gin"

	"ecostay/internal/app/commands"
	"ecostay/internal/app/dto"
	walletapp "ecostay/internal/app/handlers/wallet"
	"ecostay/internal/app/ledger"
	"ecostay/internal/app/queries"
	domainwallet "ecostay/internal/domain/wallet"
)

type WalletHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
}

type cashInRequest struct {
	Amount    int64  `json:"amount"`
	Reference string `json:"reference"`
}

type payoutRequest struct {
	Amount           int64  `json:"amount"`
	DestinationEmail string `json:"destination_email"`
}

func (h WalletHandler) Balance(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	result, err := queries.Ask[walletapp.BalanceQuery, ledger.WalletView](c.Request.Context(), h.Queries, walletapp.BalanceQuery{UserID: user.ID})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h WalletHandler) Transactions(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	result, err := queries.Ask[walletapp.HistoryQuery, dto.TransactionCollection](c.Request.Context(), h.Queries, walletapp.HistoryQuery{UserID: user.ID})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h WalletHandler) Verify(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	result, err := queries.Ask[walletapp.VerifyQuery, domainwallet.InvariantReport](c.Request.Context(), h.Queries, walletapp.VerifyQuery{UserID: user.ID})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h WalletHandler) CashIn(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	key := idempotencyKey(c)
	if key == "" {
		respondError(c, walletapp.ErrIdempotencyKeyRequired)
		return
	}
	var req cashInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	cmd := walletapp.CashInCommand{UserID: user.ID, Amount: req.Amount, Reference: req.Reference, IdempotencyKeyV: key}
	result, err := commands.Dispatch[walletapp.CashInCommand, ledger.Result](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Payout answers 202 while the gateway has not settled the transfer.
func (h WalletHandler) Payout(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	key := idempotencyKey(c)
	if key == "" {
		respondError(c, walletapp.ErrIdempotencyKeyRequired)
		return
	}
	var req payoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	cmd := walletapp.PayoutCommand{UserID: user.ID, Amount: req.Amount, DestinationEmail: req.DestinationEmail, IdempotencyKeyV: key}
	result, err := commands.Dispatch[walletapp.PayoutCommand, ledger.PayoutResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusOK
	if result.Status == domainwallet.StatusPending {
		status = http.StatusAccepted
	}
	c.JSON(status, result)
}

func (h WalletHandler) Statement(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	result, err := commands.Dispatch[walletapp.ExportStatementCommand, walletapp.StatementResult](c.Request.Context(), h.Commands, walletapp.ExportStatementCommand{UserID: user.ID})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

var _ WalletHTTP = WalletHandler{}
