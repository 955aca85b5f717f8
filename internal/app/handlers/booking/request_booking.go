package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"ecostay/internal/app/commands"
	"ecostay/internal/app/ledger"
	"ecostay/internal/app/middleware"
	"ecostay/internal/app/outbox"
	"ecostay/internal/app/policies"
	"ecostay/internal/app/uow"
	domainavailability "ecostay/internal/domain/availability"
	domainbooking "ecostay/internal/domain/booking"
	domainlistings "ecostay/internal/domain/listings"
	domainpricing "ecostay/internal/domain/pricing"
	"ecostay/internal/domain/shared/daterange"
	"ecostay/internal/domain/shared/events"
	"ecostay/internal/domain/shared/money"
	domainwallet "ecostay/internal/domain/wallet"
)

const requestBookingKey = "booking.request"

var ErrConfirmationRequired = errors.New("booking: payment confirmation token required")

// Ledger is the part of the wallet ledger the orchestrator drives.
type Ledger interface {
	Credit(ctx context.Context, userID string, amount int64, typ domainwallet.TransactionType, meta domainwallet.Metadata) (ledger.Result, error)
	Debit(ctx context.Context, userID string, amount int64, typ domainwallet.TransactionType, meta domainwallet.Metadata) (ledger.Result, error)
}

type RequestBookingCommand struct {
	AttemptID                string
	ListingID                string `validate:"required"`
	GuestID                  string `validate:"required"`
	CheckIn                  daterange.Date
	CheckOut                 daterange.Date
	MinDate                  daterange.Date
	Guests                   int                         `validate:"gte=1"`
	PromoCode                string                      `validate:"omitempty,max=64"`
	PaymentMethod            domainbooking.PaymentMethod `validate:"required,oneof=wallet gateway"`
	PaymentConfirmationToken string
	IdempotencyKeyV          string
}

func (c RequestBookingCommand) Key() string { return requestBookingKey }

func (c RequestBookingCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (c RequestBookingCommand) ResultPrototype() any { return &RequestBookingResult{} }

func (c RequestBookingCommand) ActorID() string { return c.GuestID }

func (c RequestBookingCommand) ManagesUnits() {}

type RequestBookingResult struct {
	BookingID     string              `json:"booking_id"`
	Status        string              `json:"status"`
	Quote         domainpricing.Quote `json:"quote"`
	PaymentMethod string              `json:"payment_method"`
	TransactionID string              `json:"transaction_id,omitempty"`
}

// AttemptError reports the terminal state of a failed attempt. It unwraps to
// the cause, so errors.Is against domain sentinels keeps working.
type AttemptError struct {
	AttemptID string
	State     domainbooking.AttemptState
	Err       error
}

func (e *AttemptError) Error() string {
	return fmt.Sprintf("booking attempt %s %s: %v", e.AttemptID, e.State, e.Err)
}

func (e *AttemptError) Unwrap() error { return e.Err }

// RequestBookingHandler is the booking orchestrator. Dates are validated on a
// read-only snapshot, the price computed, payment taken, and only then is the
// booking written together with its reservation in one unit of work that
// re-checks availability. Failures after payment are compensated with a
// refund credit.
type RequestBookingHandler struct {
	UoWFactory    uow.UoWFactory
	Ledger        Ledger
	Fees          policies.FeeSchedule
	Promos        policies.PromoResolver
	Confirmations policies.ConfirmationVerifier
	Encoder       outbox.EventEncoder
	Logger        *slog.Logger
	Currency      string
	Location      *time.Location
	Clock         func() time.Time
	NewID         func() string
}

type payment struct {
	charged       bool
	amount        int64
	reference     string
	transactionID string
}

func (h *RequestBookingHandler) Handle(ctx context.Context, cmd RequestBookingCommand) (RequestBookingResult, error) {
	attemptID := cmd.AttemptID
	if attemptID == "" {
		attemptID = h.newID()
	}
	attempt := domainbooking.NewAttempt(attemptID)
	logger := h.logger().With("attempt_id", attemptID, "listing_id", cmd.ListingID, "guest_id", cmd.GuestID)
	now := h.now()
	today := daterange.Today(now, h.Location)
	req := domainavailability.Request{CheckIn: cmd.CheckIn, CheckOut: cmd.CheckOut, MinDate: cmd.MinDate}

	// Validating
	var listing *domainlistings.Listing
	err := uow.Run(ctx, h.UoWFactory, uow.TxOptions{ReadOnly: true}, func(ctx context.Context, unit uow.UnitOfWork) error {
		var err error
		listing, err = unit.Listings().ByID(ctx, cmd.ListingID)
		if err != nil {
			return err
		}
		if err := checkListingFit(listing, cmd.CheckOut, cmd.Guests); err != nil {
			return err
		}
		doc, err := unit.Availability().Get(ctx, listing.ID, listing.HostID)
		if err != nil {
			return err
		}
		decision := doc.Check(req, today)
		if !decision.OK {
			return decision.Err()
		}
		req = decision.Request
		return nil
	})
	if err != nil {
		return RequestBookingResult{}, h.fail(ctx, attempt, cmd, domainbooking.AttemptRejected, err, logger)
	}

	// PricingComputed
	quote, err := h.price(ctx, listing, req, cmd)
	if err != nil {
		return RequestBookingResult{}, h.fail(ctx, attempt, cmd, domainbooking.AttemptRejected, err, logger)
	}
	advance(attempt, domainbooking.AttemptPricingComputed, logger)

	// AwaitingPayment
	advance(attempt, domainbooking.AttemptAwaitingPayment, logger)
	if err := ctx.Err(); err != nil {
		return RequestBookingResult{}, h.fail(ctx, attempt, cmd, domainbooking.AttemptRejected, err, logger)
	}
	pay, err := h.takePayment(ctx, attemptID, cmd, quote)
	if err != nil {
		return RequestBookingResult{}, h.fail(ctx, attempt, cmd, domainbooking.AttemptPaymentFailed, err, logger)
	}
	advance(attempt, domainbooking.AttemptPaid, logger)

	// Persisted: a conflict re-runs the whole check-and-reserve once
	var created *domainbooking.Booking
	persist := func() error {
		return uow.Run(ctx, h.UoWFactory, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
			var err error
			created, err = h.persist(ctx, unit, attemptID, listing, cmd, req, quote, pay, today, now)
			if err != nil {
				return err
			}
			return ctx.Err()
		})
	}
	err = persist()
	if errors.Is(err, uow.ErrStorageConflict) {
		logger.Info("availability changed during commit, re-validating")
		err = persist()
	}
	if err != nil {
		state := domainbooking.AttemptPaymentFailed
		var rejection *domainavailability.RejectionError
		if errors.As(err, &rejection) {
			state = domainbooking.AttemptRejected
			if rejection.Reason == domainavailability.ReasonOverlap {
				logger.Info("overbooking prevented", "conflicting_booking", rejection.BookingID)
			}
		}
		if !errors.Is(err, domainbooking.ErrPaymentReplayed) {
			if compErr := h.compensate(context.WithoutCancel(ctx), attemptID, cmd, pay); compErr != nil {
				logger.Error("compensating refund failed", "error", compErr, "amount", pay.amount)
				err = errors.Join(err, compErr)
			}
		}
		return RequestBookingResult{}, h.fail(ctx, attempt, cmd, state, err, logger)
	}
	advance(attempt, domainbooking.AttemptPersisted, logger)
	logger.Info("booking persisted", "booking_id", created.ID, "total", quote.GrandTotal.Amount, "payment_method", cmd.PaymentMethod)

	return RequestBookingResult{
		BookingID:     created.ID,
		Status:        string(created.Status),
		Quote:         quote,
		PaymentMethod: string(cmd.PaymentMethod),
		TransactionID: pay.transactionID,
	}, nil
}

func checkListingFit(listing *domainlistings.Listing, checkOut daterange.Date, guests int) error {
	if listing.RangeBooked() == checkOut.IsZero() {
		return &domainavailability.RejectionError{Reason: domainavailability.ReasonInvalidRange}
	}
	if listing.GuestsLimit > 0 && guests > listing.GuestsLimit {
		return domainbooking.ErrGuestsLimit
	}
	return nil
}

func (h *RequestBookingHandler) price(ctx context.Context, listing *domainlistings.Listing, req domainavailability.Request, cmd RequestBookingCommand) (domainpricing.Quote, error) {
	return priceRequest(ctx, h.Fees, h.Promos, listing, req, cmd.Guests, cmd.PromoCode)
}

func priceRequest(ctx context.Context, fees policies.FeeSchedule, promos policies.PromoResolver, listing *domainlistings.Listing, req domainavailability.Request, guests int, promoCode string) (domainpricing.Quote, error) {
	in := domainpricing.Input{
		Mode:      listing.PricingMode,
		BasePrice: listing.BasePrice,
		CheckIn:   req.CheckIn,
		CheckOut:  req.CheckOut,
		Guests:    guests,
	}
	if fees != nil {
		percent, err := fees.ServiceFeePercent(ctx, listing)
		if err != nil {
			return domainpricing.Quote{}, err
		}
		in.ServiceFeePercent = percent
	}
	if promoCode != "" {
		if promos == nil {
			return domainpricing.Quote{}, policies.ErrPromoNotFound
		}
		promo, err := promos.Resolve(ctx, promoCode, listing)
		if err != nil {
			return domainpricing.Quote{}, err
		}
		in.Promo = promo
	}
	return domainpricing.Compute(in)
}

func (h *RequestBookingHandler) takePayment(ctx context.Context, attemptID string, cmd RequestBookingCommand, quote domainpricing.Quote) (payment, error) {
	total := quote.GrandTotal
	if h.Currency != "" && total.Currency != h.Currency {
		return payment{}, money.ErrCurrencyMismatch
	}
	switch cmd.PaymentMethod {
	case domainbooking.PaymentWallet:
		if total.Amount == 0 {
			return payment{}, nil
		}
		res, err := h.Ledger.Debit(ctx, cmd.GuestID, total.Amount, domainwallet.TypePayment, domainwallet.Metadata{
			RelatedBookingID: attemptID,
			IdempotencyKey:   PaymentKey(attemptID),
			Description:      "booking payment",
		})
		if err != nil {
			return payment{}, err
		}
		if res.Replayed {
			// an attempt id pays at most once, even after compensation
			return payment{}, domainbooking.ErrPaymentReplayed
		}
		return payment{charged: true, amount: total.Amount, transactionID: res.TransactionID}, nil
	case domainbooking.PaymentGateway:
		if cmd.PaymentConfirmationToken == "" {
			return payment{}, ErrConfirmationRequired
		}
		if h.Confirmations == nil {
			return payment{}, domainbooking.ErrConfirmationInvalid
		}
		conf, err := h.Confirmations.Verify(cmd.PaymentConfirmationToken)
		if err != nil {
			return payment{}, fmt.Errorf("%w: %w", domainbooking.ErrConfirmationInvalid, err)
		}
		if conf.UserID != cmd.GuestID {
			return payment{}, fmt.Errorf("%w: token issued to another user", domainbooking.ErrConfirmationInvalid)
		}
		if !conf.Amount.SameAs(total) {
			return payment{}, domainbooking.ErrPaymentMismatch
		}
		if err := h.ensureUnspent(ctx, conf.OrderID); err != nil {
			return payment{}, err
		}
		return payment{charged: total.Amount > 0, amount: total.Amount, reference: conf.OrderID}, nil
	default:
		return payment{}, domainbooking.ErrUnknownPayment
	}
}

// ensureUnspent rejects an order that already paid for a booking or was refunded.
func (h *RequestBookingHandler) ensureUnspent(ctx context.Context, orderID string) error {
	return uow.Run(ctx, h.UoWFactory, uow.TxOptions{ReadOnly: true}, func(ctx context.Context, unit uow.UnitOfWork) error {
		return checkOrderUnspent(ctx, unit, orderID)
	})
}

func checkOrderUnspent(ctx context.Context, unit uow.UnitOfWork, orderID string) error {
	if _, err := unit.Bookings().ByPaymentReference(ctx, orderID); err == nil {
		return domainbooking.ErrPaymentReplayed
	} else if !errors.Is(err, domainbooking.ErrBookingNotFound) {
		return err
	}
	if _, err := unit.Transactions().ByIdempotencyKey(ctx, OrderRefundKey(orderID)); err == nil {
		return domainbooking.ErrPaymentReplayed
	} else if !errors.Is(err, domainwallet.ErrTransactionNotFound) {
		return err
	}
	return nil
}

func (h *RequestBookingHandler) persist(ctx context.Context, unit uow.UnitOfWork, id string, listing *domainlistings.Listing, cmd RequestBookingCommand, req domainavailability.Request, quote domainpricing.Quote, pay payment, today daterange.Date, now time.Time) (*domainbooking.Booking, error) {
	if pay.reference != "" {
		if err := checkOrderUnspent(ctx, unit, pay.reference); err != nil {
			return nil, err
		}
	}
	doc, err := unit.Availability().Get(ctx, listing.ID, listing.HostID)
	if err != nil {
		return nil, err
	}
	if err := doc.Reserve(id, req, today, now); err != nil {
		return nil, err
	}
	created, err := domainbooking.NewBooking(domainbooking.CreateParams{
		ID:               id,
		ListingID:        listing.ID,
		GuestID:          cmd.GuestID,
		HostID:           listing.HostID,
		CheckIn:          req.CheckIn,
		CheckOut:         req.CheckOut,
		Guests:           cmd.Guests,
		Quote:            quote,
		PaymentMethod:    cmd.PaymentMethod,
		PaymentReference: pay.reference,
		CreatedAt:        now,
	})
	if err != nil {
		return nil, err
	}
	if err := unit.Bookings().Save(ctx, created); err != nil {
		return nil, err
	}
	if err := unit.Availability().Save(ctx, doc); err != nil {
		return nil, err
	}
	if err := outbox.DrainInto(ctx, unit.Outbox(), h.Encoder, created, doc); err != nil {
		return nil, err
	}
	return created, nil
}

// compensate credits back what step three took. Gateway payments are
// returned to the guest wallet, keyed by order so the token stays spent.
func (h *RequestBookingHandler) compensate(ctx context.Context, attemptID string, cmd RequestBookingCommand, pay payment) error {
	if !pay.charged || pay.amount <= 0 {
		return nil
	}
	key := RefundKey(attemptID)
	if pay.reference != "" {
		key = OrderRefundKey(pay.reference)
	}
	_, err := h.Ledger.Credit(ctx, cmd.GuestID, pay.amount, domainwallet.TypeRefund, domainwallet.Metadata{
		RelatedBookingID: attemptID,
		IdempotencyKey:   key,
		Description:      "booking attempt compensation",
	})
	return err
}

func (h *RequestBookingHandler) fail(ctx context.Context, attempt *domainbooking.Attempt, cmd RequestBookingCommand, state domainbooking.AttemptState, cause error, logger *slog.Logger) error {
	if err := attempt.Fail(state, reasonOf(cause)); err != nil {
		logger.Error("attempt failure transition rejected", "requested", state, "error", err)
	}
	logger.Info("booking attempt failed", "state", attempt.State, "reason", attempt.Reason, "error", cause)
	ev := domainbooking.AttemptFailed{
		AttemptID: attempt.ID,
		ListingID: cmd.ListingID,
		GuestID:   cmd.GuestID,
		State:     attempt.State,
		Reason:    attempt.Reason,
		At:        h.now(),
	}
	pubErr := uow.Run(context.WithoutCancel(ctx), h.UoWFactory, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
		return outbox.RecordDomainEvents(ctx, unit.Outbox(), h.Encoder, []events.DomainEvent{ev})
	})
	if pubErr != nil {
		logger.Warn("attempt failure event not recorded", "error", pubErr)
	}
	return &AttemptError{AttemptID: attempt.ID, State: attempt.State, Err: cause}
}

// advance moves the attempt forward. Handle only requests legal edges, so a
// refusal is a bug worth an error log, not a reason to abort a paid attempt.
func advance(attempt *domainbooking.Attempt, next domainbooking.AttemptState, logger *slog.Logger) {
	if err := attempt.Advance(next); err != nil {
		logger.Error("attempt transition rejected", "from", attempt.State, "to", next, "error", err)
	}
}

// reasonOf turns an error into the machine-readable reason callers render.
func reasonOf(err error) string {
	var rejection *domainavailability.RejectionError
	switch {
	case errors.As(err, &rejection):
		return string(rejection.Reason)
	case errors.Is(err, domainwallet.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, domainwallet.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, domainbooking.ErrPaymentReplayed):
		return "payment_replayed"
	case errors.Is(err, domainbooking.ErrPaymentMismatch):
		return "payment_mismatch"
	case errors.Is(err, domainbooking.ErrConfirmationInvalid), errors.Is(err, ErrConfirmationRequired):
		return "payment_confirmation_invalid"
	case errors.Is(err, domainbooking.ErrGuestsLimit):
		return "guests_limit"
	case errors.Is(err, policies.ErrPromoNotFound):
		return "promo_not_found"
	case errors.Is(err, domainlistings.ErrListingNotFound):
		return "listing_not_found"
	case errors.Is(err, uow.ErrStorageConflict):
		return "storage_conflict"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "internal"
	}
}

func (h *RequestBookingHandler) now() time.Time {
	if h.Clock != nil {
		return h.Clock().UTC()
	}
	return time.Now().UTC()
}

func (h *RequestBookingHandler) newID() string {
	if h.NewID != nil {
		return h.NewID()
	}
	return uuid.NewString()
}

func (h *RequestBookingHandler) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}

var _ commands.Handler[RequestBookingCommand, RequestBookingResult] = (*RequestBookingHandler)(nil)
var _ middleware.IdempotentCommand = RequestBookingCommand{}
var _ middleware.UnitManager = RequestBookingCommand{}
