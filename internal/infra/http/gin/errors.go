package ginserver

import (
	"errors"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"ecostay/internal/app/commands"
	availabilityapp "ecostay/internal/app/handlers/availability"
	bookingapp "ecostay/internal/app/handlers/booking"
	paymentsapp "ecostay/internal/app/handlers/payments"
	walletapp "ecostay/internal/app/handlers/wallet"
	"ecostay/internal/app/ledger"
	"ecostay/internal/app/middleware"
	"ecostay/internal/app/policies"
	"ecostay/internal/app/queries"
	"ecostay/internal/app/uow"
	domainavailability "ecostay/internal/domain/availability"
	domainbooking "ecostay/internal/domain/booking"
	domainlistings "ecostay/internal/domain/listings"
	domainpricing "ecostay/internal/domain/pricing"
	"ecostay/internal/domain/shared/daterange"
	"ecostay/internal/domain/shared/money"
	domainwallet "ecostay/internal/domain/wallet"
)

type errorMapping struct {
	err    error
	status int
	reason string
}

// Order matters: the first match wins, so specific sentinels precede the
// generic ones they might wrap.
var errorMappings = []errorMapping{
	{middleware.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated"},
	{middleware.ErrValidation, http.StatusBadRequest, "validation_failed"},
	{walletapp.ErrIdempotencyKeyRequired, http.StatusBadRequest, "idempotency_key_required"},
	{ledger.ErrIdempotencyKeyRequired, http.StatusBadRequest, "idempotency_key_required"},
	{ledger.ErrIdempotencyMismatch, http.StatusConflict, "idempotency_key_mismatch"},
	{ledger.ErrPayoutDestinationInvalid, http.StatusBadRequest, "payout_destination_invalid"},
	{ledger.ErrGatewayNotConfigured, http.StatusServiceUnavailable, "gateway_not_configured"},

	{domainavailability.ErrPastDate, http.StatusUnprocessableEntity, string(domainavailability.ReasonPastDate)},
	{domainavailability.ErrDateBlocked, http.StatusConflict, string(domainavailability.ReasonBlocked)},
	{domainavailability.ErrDateRangeOverlap, http.StatusConflict, string(domainavailability.ReasonOverlap)},
	{domainavailability.ErrInvalidDateRange, http.StatusBadRequest, string(domainavailability.ReasonInvalidRange)},
	{daterange.ErrInvalidRange, http.StatusBadRequest, string(domainavailability.ReasonInvalidRange)},
	{daterange.ErrInvalidDate, http.StatusBadRequest, "invalid_date"},
	{availabilityapp.ErrNoDates, http.StatusBadRequest, "dates_required"},

	{domainwallet.ErrInsufficientBalance, http.StatusPaymentRequired, "insufficient_balance"},
	{domainwallet.ErrInvalidAmount, http.StatusBadRequest, "invalid_amount"},
	{domainwallet.ErrTransactionNotFound, http.StatusNotFound, "transaction_not_found"},
	{domainwallet.ErrUserRequired, http.StatusBadRequest, "user_required"},

	{domainbooking.ErrBookingNotFound, http.StatusNotFound, "booking_not_found"},
	{domainbooking.ErrForbidden, http.StatusForbidden, "forbidden"},
	{bookingapp.ErrHostOnly, http.StatusForbidden, "host_only"},
	{domainbooking.ErrInvalidState, http.StatusConflict, "invalid_state"},
	{domainbooking.ErrGuestsLimit, http.StatusUnprocessableEntity, "guests_limit"},
	{domainbooking.ErrInvalidGuests, http.StatusBadRequest, "invalid_guests"},
	{domainbooking.ErrUnknownPayment, http.StatusBadRequest, "unknown_payment_method"},
	{bookingapp.ErrConfirmationRequired, http.StatusBadRequest, "confirmation_required"},
	{domainbooking.ErrConfirmationInvalid, http.StatusPaymentRequired, "confirmation_invalid"},
	{domainbooking.ErrPaymentMismatch, http.StatusPaymentRequired, "payment_mismatch"},
	{domainbooking.ErrPaymentReplayed, http.StatusConflict, "payment_replayed"},

	{domainlistings.ErrListingNotFound, http.StatusNotFound, "listing_not_found"},
	{policies.ErrPromoNotFound, http.StatusUnprocessableEntity, "promo_not_found"},
	{domainpricing.ErrPromoCurrency, http.StatusUnprocessableEntity, "promo_currency"},
	{money.ErrCurrencyMismatch, http.StatusUnprocessableEntity, "currency_mismatch"},
	{money.ErrInvalidCurrency, http.StatusBadRequest, "invalid_currency"},
	{paymentsapp.ErrCurrencyNotSupported, http.StatusUnprocessableEntity, "currency_not_supported"},
	{paymentsapp.ErrOrderNotOwned, http.StatusForbidden, "order_forbidden"},
	{walletapp.ErrUploaderNotConfigured, http.StatusServiceUnavailable, "statement_storage_unavailable"},

	{policies.ErrGatewayRejected, http.StatusPaymentRequired, "gateway_rejected"},
	{policies.ErrGatewayUnavailable, http.StatusBadGateway, "gateway_unavailable"},
	{uow.ErrStorageConflict, http.StatusConflict, "storage_conflict"},
	{commands.ErrHandlerNotFound, http.StatusNotImplemented, "not_implemented"},
	{queries.ErrHandlerNotFound, http.StatusNotImplemented, "not_implemented"},
}

func classify(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.status, m.reason
		}
	}
	return http.StatusInternalServerError, "internal"
}

// respondError writes {error, reason} plus whatever structured detail the
// error carries.
func respondError(c *gin.Context, err error) {
	status, reason := classify(err)
	body := gin.H{"error": err.Error(), "reason": reason}
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		if status == http.StatusInternalServerError {
			body["error"] = "internal error"
		}
	}

	var rejection *domainavailability.RejectionError
	if errors.As(err, &rejection) {
		if !rejection.Date.IsZero() {
			body["date"] = rejection.Date.String()
		}
		if rejection.BookingID != "" {
			body["conflicting_booking_id"] = rejection.BookingID
		}
	}
	var attempt *bookingapp.AttemptError
	if errors.As(err, &attempt) {
		body["attempt_id"] = attempt.AttemptID
		body["attempt_state"] = attempt.State
	}
	var payout *ledger.PayoutError
	if errors.As(err, &payout) {
		body["transaction_id"] = payout.TransactionID
		body["idempotency_key"] = payout.IdempotencyKey
		if payout.PayoutID != "" {
			body["payout_id"] = payout.PayoutID
		}
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "reason": "bad_request"})
}
