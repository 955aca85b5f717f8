package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"ecostay/internal/app/commands"
	"ecostay/internal/app/dto"
	availabilityapp "ecostay/internal/app/handlers/availability"
	bookingapp "ecostay/internal/app/handlers/booking"
	paymentsapp "ecostay/internal/app/handlers/payments"
	walletapp "ecostay/internal/app/handlers/wallet"
	"ecostay/internal/app/ledger"
	"ecostay/internal/app/middleware"
	appoutbox "ecostay/internal/app/outbox"
	"ecostay/internal/app/policies"
	"ecostay/internal/app/queries"
	"ecostay/internal/app/uow"
	domainwallet "ecostay/internal/domain/wallet"
	"ecostay/internal/infra/broker/kafka"
	"ecostay/internal/infra/config"
	mongostore "ecostay/internal/infra/db/mongo"
	ginserver "ecostay/internal/infra/http/gin"
	"ecostay/internal/infra/inbox"
	"ecostay/internal/infra/obs"
	outboxworker "ecostay/internal/infra/outbox"
	"ecostay/internal/infra/payments"
	"ecostay/internal/infra/schedule"
	"ecostay/internal/infra/storage/memory"
	redisstore "ecostay/internal/infra/storage/redis"
	"ecostay/internal/infra/storage/s3"
)

type application struct {
	handlers   ginserver.Handlers
	health     obs.HealthHandlers
	factory    uow.UoWFactory
	promos     *memory.PromoCatalog
	scheduler  *schedule.Scheduler
	background map[string]func(context.Context) error
	closers    []func() error
}

// storage is the persistence half of the wiring: units of work, the outbox
// they write to, and the relay the worker drains.
type storage struct {
	factory     uow.UoWFactory
	outbox      appoutbox.Outbox
	relay       appoutbox.Relay
	wake        <-chan struct{}
	idempotency middleware.IdempotencyStore
	inbox       inbox.Inbox
}

func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (*application, error) {
	app := &application{
		promos:     memory.NewPromoCatalog(),
		background: make(map[string]func(context.Context) error),
		health:     obs.HealthHandlers{Checks: make(map[string]obs.Check)},
	}

	st, err := app.buildStorage(ctx, cfg, logger)
	if err != nil {
		app.close(logger)
		return nil, err
	}
	app.factory = st.factory

	gateway, err := buildGateway(cfg, logger)
	if err != nil {
		app.close(logger)
		return nil, err
	}
	signer, err := buildTokenSigner(cfg, logger)
	if err != nil {
		app.close(logger)
		return nil, err
	}

	encoder := appoutbox.JSONEventEncoder{}
	fees := policies.FlatFee(decimal.NewFromInt(cfg.ServiceFeePercent))

	ledgerSvc := ledger.NewService(st.factory, gateway, cfg.Currency, logger)
	ledgerSvc.Encoder = encoder
	ledgerSvc.GatewayTimeout = cfg.GatewayTimeout

	var uploader policies.Uploader
	if cfg.S3Endpoint != "" {
		client, err := s3.NewClient(cfg.S3Endpoint, cfg.S3UseSSL, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, cfg.S3LinkTTL, logger)
		if err != nil {
			app.close(logger)
			return nil, err
		}
		uploader = client
		app.health.Checks["s3"] = client.Ping
	}

	cmdRegistry := commands.NewRegistry()
	queryRegistry := queries.NewRegistry()

	bookingHandler := &bookingapp.RequestBookingHandler{
		UoWFactory:    st.factory,
		Ledger:        ledgerSvc,
		Fees:          fees,
		Promos:        app.promos,
		Confirmations: signer,
		Encoder:       encoder,
		Logger:        logger,
		Currency:      cfg.Currency,
		Location:      cfg.Timezone,
	}
	lifecycle := &bookingapp.LifecycleHandler{UoWFactory: st.factory, Ledger: ledgerSvc, Encoder: encoder, Logger: logger}
	bookingQueries := &bookingapp.QueryHandler{UoWFactory: st.factory}
	quotes := &bookingapp.QuoteHandler{UoWFactory: st.factory, Fees: fees, Promos: app.promos, Location: cfg.Timezone}
	commands.Register[bookingapp.RequestBookingCommand, bookingapp.RequestBookingResult](cmdRegistry, bookingHandler)
	commands.Register(cmdRegistry, commands.HandlerFunc[bookingapp.ConfirmBookingCommand, dto.Booking](lifecycle.Confirm))
	commands.Register(cmdRegistry, commands.HandlerFunc[bookingapp.ActivateBookingCommand, dto.Booking](lifecycle.Activate))
	commands.Register(cmdRegistry, commands.HandlerFunc[bookingapp.CompleteBookingCommand, dto.Booking](lifecycle.Complete))
	commands.Register(cmdRegistry, commands.HandlerFunc[bookingapp.CancelBookingCommand, dto.Booking](lifecycle.Cancel))
	queries.Register(queryRegistry, queries.HandlerFunc[bookingapp.GetBookingQuery, dto.Booking](bookingQueries.Get))
	queries.Register(queryRegistry, queries.HandlerFunc[bookingapp.ListGuestBookingsQuery, dto.BookingCollection](bookingQueries.ListGuest))
	queries.Register[bookingapp.QuoteQuery, bookingapp.QuoteResult](queryRegistry, quotes)

	hostCalendar := &availabilityapp.HostCalendarHandler{Encoder: encoder}
	calendar := &availabilityapp.GetCalendarHandler{UoWFactory: st.factory}
	commands.Register(cmdRegistry, commands.HandlerFunc[availabilityapp.BlockDatesCommand, dto.Calendar](hostCalendar.Block))
	commands.Register(cmdRegistry, commands.HandlerFunc[availabilityapp.UnblockDatesCommand, dto.Calendar](hostCalendar.Unblock))
	queries.Register[availabilityapp.GetCalendarQuery, dto.Calendar](queryRegistry, calendar)

	walletHandler := &walletapp.Handler{Ledger: ledgerSvc}
	statements := &walletapp.StatementExporter{Ledger: ledgerSvc, Uploader: uploader, Logger: logger}
	commands.Register(cmdRegistry, commands.HandlerFunc[walletapp.CashInCommand, ledger.Result](walletHandler.CashIn))
	commands.Register(cmdRegistry, commands.HandlerFunc[walletapp.PayoutCommand, ledger.PayoutResult](walletHandler.Payout))
	commands.Register(cmdRegistry, commands.HandlerFunc[walletapp.ExportStatementCommand, walletapp.StatementResult](statements.Export))
	queries.Register(queryRegistry, queries.HandlerFunc[walletapp.BalanceQuery, ledger.WalletView](walletHandler.Balance))
	queries.Register(queryRegistry, queries.HandlerFunc[walletapp.HistoryQuery, dto.TransactionCollection](walletHandler.History))
	queries.Register(queryRegistry, queries.HandlerFunc[walletapp.VerifyQuery, domainwallet.InvariantReport](walletHandler.Verify))

	paymentsHandler := &paymentsapp.Handler{Gateway: gateway, Issuer: signer, Currency: cfg.Currency, Timeout: cfg.GatewayTimeout, Logger: logger}
	commands.Register(cmdRegistry, commands.HandlerFunc[paymentsapp.CreateOrderCommand, paymentsapp.CreateOrderResult](paymentsHandler.CreateOrder))
	commands.Register(cmdRegistry, commands.HandlerFunc[paymentsapp.CaptureOrderCommand, paymentsapp.CaptureOrderResult](paymentsHandler.CaptureOrder))

	validator := middleware.NewStructValidator()
	commandBus := middleware.ChainCommands(
		cmdRegistry,
		middleware.Logging(logger),
		middleware.Validation(validator),
		middleware.Authorization(middleware.ActorRequired{}),
		middleware.Idempotency(st.idempotency, nil),
		middleware.Transaction(st.factory, nil, 3),
		middleware.OutboxFlush(st.outbox),
	)
	queryBus := middleware.ChainQueries(
		queryRegistry,
		middleware.QueryValidation(validator),
		middleware.QueryAuthorization(middleware.ActorRequired{}),
	)

	app.handlers = ginserver.Handlers{
		Booking:      ginserver.BookingHandler{Commands: commandBus, Queries: queryBus},
		Availability: ginserver.AvailabilityHandler{Commands: commandBus, Queries: queryBus},
		Wallet:       ginserver.WalletHandler{Commands: commandBus, Queries: queryBus},
		Payments:     ginserver.PaymentsHandler{Commands: commandBus},
	}

	if err := app.wireKafka(cfg, st, ledgerSvc, logger); err != nil {
		app.close(logger)
		return nil, err
	}

	app.scheduler, err = schedule.New(ledgerSvc, schedule.Config{
		ReconcileSpec: cfg.ReconcileSchedule,
		PendingAge:    cfg.ReconcileAfter,
	}, logger)
	if err != nil {
		app.close(logger)
		return nil, fmt.Errorf("reconcile schedule %q: %w", cfg.ReconcileSchedule, err)
	}
	return app, nil
}

func (app *application) buildStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (storage, error) {
	var st storage
	switch cfg.StorageMode {
	case "mongo":
		client, err := mongostore.New(cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return st, fmt.Errorf("mongo connect: %w", err)
		}
		app.closers = append(app.closers, func() error { return client.Close(context.Background()) })
		app.health.Checks["mongo"] = client.Ping
		if err := mongostore.EnsureIndexes(ctx, client.DB); err != nil {
			return st, err
		}
		outboxStore, err := outboxworker.NewStore(ctx, client.DB)
		if err != nil {
			return st, err
		}
		st.factory = mongostore.NewFactory(client.DB, outboxStore)
		st.outbox = outboxStore
		st.relay = outboxStore
		if st.inbox, err = inbox.NewStore(ctx, client.DB, cfg.KafkaConsumerGroup); err != nil {
			return st, err
		}
		if cfg.IdempotencyBackend == "mongo" {
			if st.idempotency, err = mongostore.NewIdempotencyStore(ctx, client.DB, cfg.IdempotencyTTL); err != nil {
				return st, err
			}
		}
		logger.Info("mongo storage ready", "db", cfg.MongoDB)
	default:
		store := memory.NewStore()
		st.factory = memory.Factory{Store: store}
		st.outbox = store.Outbox()
		st.relay = store.Outbox()
		st.wake = store.Outbox().Notify()
		st.inbox = inbox.NewMemory()
		logger.Warn("in-memory storage: state is lost on restart")
	}

	switch cfg.IdempotencyBackend {
	case "redis":
		client, err := redisstore.NewClient(ctx, redisstore.Options{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			EnableTLS: cfg.RedisTLS,
		})
		if err != nil {
			return st, err
		}
		app.closers = append(app.closers, client.Close)
		store := redisstore.NewIdempotencyStore(client, cfg.IdempotencyTTL)
		app.health.Checks["redis"] = store.Ping
		st.idempotency = store
	case "memory":
		st.idempotency = memory.NewIdempotencyStore(cfg.IdempotencyTTL)
	}
	return st, nil
}

func (app *application) wireKafka(cfg config.Config, st storage, ledgerSvc *ledger.Service, logger *slog.Logger) error {
	if len(cfg.KafkaBrokers) == 0 {
		logger.Warn("KAFKA_BROKERS not set: outbox relay and payout consumer disabled")
		return nil
	}
	producer, err := kafka.NewProducer(cfg.KafkaBrokers, nil)
	if err != nil {
		return fmt.Errorf("kafka producer: %w", err)
	}
	app.closers = append(app.closers, producer.Close)
	worker := &outboxworker.Worker{
		Relay:       st.relay,
		Producer:    producer,
		Interval:    cfg.OutboxPollInterval,
		TopicPrefix: cfg.KafkaTopicPrefix,
		Backoff:     cfg.RetryBackoff,
		Wake:        st.wake,
		Logger:      logger,
	}
	app.background["outbox"] = worker.Run

	consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaConsumerGroup, nil, &kafka.PayoutEvents{
		Ledger: ledgerSvc,
		Inbox:  st.inbox,
		Logger: logger,
	}, logger)
	if err != nil {
		return fmt.Errorf("kafka consumer: %w", err)
	}
	app.closers = append(app.closers, consumer.Close)
	topic := cfg.KafkaTopicPrefix + kafka.PayoutTopic
	app.background["payout-consumer"] = func(ctx context.Context) error {
		return consumer.Run(ctx, []string{topic})
	}
	return nil
}

func buildGateway(cfg config.Config, logger *slog.Logger) (policies.PaymentGateway, error) {
	switch cfg.GatewayMode {
	case "http":
		client := &http.Client{Timeout: cfg.GatewayTimeout}
		return payments.NewREST(cfg.GatewayURL, cfg.GatewayToken, client, logger), nil
	case "sandbox":
		logger.Warn("payment gateway sandbox in use")
		return payments.NewSandbox(), nil
	default:
		return nil, fmt.Errorf("unknown gateway mode %q", cfg.GatewayMode)
	}
}

func buildTokenSigner(cfg config.Config, logger *slog.Logger) (*payments.TokenSigner, error) {
	secret := cfg.PaymentTokenSecret
	if secret == "" {
		buf := make([]byte, 16)
		if _, err := rand.Read(buf); err != nil {
			return nil, err
		}
		secret = hex.EncodeToString(buf)
		logger.Warn("PAYMENT_TOKEN_SECRET not set: using an ephemeral secret")
	}
	return payments.NewTokenSigner(secret, cfg.PaymentTokenTTL)
}

func (app *application) close(logger *slog.Logger) {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			logger.Warn("close failed", "error", err)
		}
	}
	app.closers = nil
}
