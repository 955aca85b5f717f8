package ginserver

import (
	"net/http"

	gin "github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"ecostay/internal/app/commands"
	"ecostay/internal/app/dto"
	bookingapp "ecostay/internal/app/handlers/booking"
	"ecostay/internal/app/queries"
	domainbooking "ecostay/internal/domain/booking"
	"ecostay/internal/domain/shared/daterange"
)

type BookingHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
}

type createBookingRequest struct {
	ListingID         string         `json:"listing_id"`
	CheckIn           daterange.Date `json:"check_in"`
	CheckOut          daterange.Date `json:"check_out"`
	MinDate           daterange.Date `json:"min_date"`
	Guests            int            `json:"guests"`
	PromoCode         string         `json:"promo_code"`
	PaymentMethod     string         `json:"payment_method"`
	ConfirmationToken string         `json:"payment_confirmation_token"`
}

type quoteRequest struct {
	CheckIn   daterange.Date `json:"check_in"`
	CheckOut  daterange.Date `json:"check_out"`
	MinDate   daterange.Date `json:"min_date"`
	Guests    int            `json:"guests"`
	PromoCode string         `json:"promo_code"`
}

type cancelBookingRequest struct {
	Reason string `json:"reason"`
}

func (h BookingHandler) Create(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	method := domainbooking.PaymentMethod(req.PaymentMethod)
	if method == "" {
		method = domainbooking.PaymentWallet
	}
	cmd := bookingapp.RequestBookingCommand{
		AttemptID:                generateAttemptID(),
		ListingID:                req.ListingID,
		GuestID:                  user.ID,
		CheckIn:                  req.CheckIn,
		CheckOut:                 req.CheckOut,
		MinDate:                  req.MinDate,
		Guests:                   req.Guests,
		PromoCode:                req.PromoCode,
		PaymentMethod:            method,
		PaymentConfirmationToken: req.ConfirmationToken,
		IdempotencyKeyV:          idempotencyKey(c),
	}
	result, err := commands.Dispatch[bookingapp.RequestBookingCommand, bookingapp.RequestBookingResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h BookingHandler) Get(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	query := bookingapp.GetBookingQuery{BookingID: c.Param("id"), ActorIDV: user.ID}
	result, err := queries.Ask[bookingapp.GetBookingQuery, dto.Booking](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) ListMine(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	query := bookingapp.ListGuestBookingsQuery{GuestID: user.ID}
	result, err := queries.Ask[bookingapp.ListGuestBookingsQuery, dto.BookingCollection](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) Confirm(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	cmd := bookingapp.ConfirmBookingCommand{BookingID: c.Param("id"), ActorIDV: user.ID}
	dispatchTransition(c, h.Commands, cmd)
}

func (h BookingHandler) Activate(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	cmd := bookingapp.ActivateBookingCommand{BookingID: c.Param("id"), ActorIDV: user.ID}
	dispatchTransition(c, h.Commands, cmd)
}

func (h BookingHandler) Complete(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	cmd := bookingapp.CompleteBookingCommand{BookingID: c.Param("id"), ActorIDV: user.ID}
	dispatchTransition(c, h.Commands, cmd)
}

func (h BookingHandler) Cancel(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	var req cancelBookingRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	cmd := bookingapp.CancelBookingCommand{BookingID: c.Param("id"), ActorIDV: user.ID, Reason: req.Reason}
	dispatchTransition(c, h.Commands, cmd)
}

func (h BookingHandler) Quote(c *gin.Context) {
	var req quoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	query := bookingapp.QuoteQuery{
		ListingID: c.Param("id"),
		CheckIn:   req.CheckIn,
		CheckOut:  req.CheckOut,
		MinDate:   req.MinDate,
		Guests:    req.Guests,
		PromoCode: req.PromoCode,
	}
	result, err := queries.Ask[bookingapp.QuoteQuery, bookingapp.QuoteResult](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// dispatchTransition sends a lifecycle command and writes the resulting booking.
func dispatchTransition[C commands.Command](c *gin.Context, bus commands.Bus, cmd C) {
	result, err := commands.Dispatch[C, dto.Booking](c.Request.Context(), bus, cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func generateAttemptID() string {
	return uuid.NewString()
}

var _ BookingHTTP = BookingHandler{}
