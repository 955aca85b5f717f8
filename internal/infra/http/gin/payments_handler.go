package ginserver

import (
	"net/http"

	gin "github.com/gin-gonic/gin"

	"ecostay/internal/app/commands"
	paymentsapp "ecostay/internal/app/handlers/payments"
	"ecostay/internal/app/policies"
)

type PaymentsHandler struct {
	Commands commands.Bus
}

type createOrderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Note     string `json:"note"`
}

func (h PaymentsHandler) CreateOrder(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	cmd := paymentsapp.CreateOrderCommand{UserID: user.ID, Amount: req.Amount, Currency: req.Currency, Note: req.Note}
	result, err := commands.Dispatch[paymentsapp.CreateOrderCommand, paymentsapp.CreateOrderResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h PaymentsHandler) CaptureOrder(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	cmd := paymentsapp.CaptureOrderCommand{UserID: user.ID, OrderID: c.Param("id")}
	result, err := commands.Dispatch[paymentsapp.CaptureOrderCommand, paymentsapp.CaptureOrderResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusOK
	if result.Status == policies.CapturePending {
		status = http.StatusAccepted
	}
	c.JSON(status, result)
}

var _ PaymentsHTTP = PaymentsHandler{}
