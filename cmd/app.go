package cmd

import (
	"context"
	"database/sql"

	_ "github.com/go-sql-driver/mysql"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-wellness-payments/app/cache"
	"github.com/vibast-solutions/ms-go-wellness-payments/app/events"
	"github.com/vibast-solutions/ms-go-wellness-payments/app/factory"
	"github.com/vibast-solutions/ms-go-wellness-payments/app/provider"
	"github.com/vibast-solutions/ms-go-wellness-payments/app/repository"
	"github.com/vibast-solutions/ms-go-wellness-payments/app/service"
	"github.com/vibast-solutions/ms-go-wellness-payments/config"
)

type statusPublisher interface {
	PublishStatusChanged(ctx context.Context, event *events.PaymentStatusChanged) error
	Close() error
}

type notificationDeduper interface {
	MarkSeen(ctx context.Context, key string) (bool, error)
	Forget(ctx context.Context, key string) error
}

type application struct {
	cfg            *config.Config
	db             *sql.DB
	reconciler     *service.PaymentReconciler
	paymentService *service.PaymentService
	webhookService *service.WebhookService
	closers        []func()
}

func (a *application) cleanup() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func mustCreateApplication() *application {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	factory.ConfigureLogging(cfg.Log.Level)

	app := &application{cfg: cfg}

	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		logrus.WithError(err).Fatal("Failed to ping database")
	}
	app.db = db
	app.closers = append(app.closers, func() {
		if err := db.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close database")
		}
	})

	paymentRepo := repository.NewPaymentRepository(db)
	eventRepo := repository.NewPaymentEventRepository(db)
	notificationRepo := repository.NewPaymentNotificationRepository(db)
	userRepo := repository.NewUserRepository(db)
	txManager := repository.NewTxManager(db)

	gateway := provider.NewMercadoPagoGateway(provider.MercadoPagoConfig{
		AccessToken:   cfg.MercadoPago.AccessToken,
		WebhookSecret: cfg.MercadoPago.WebhookSecret,
		BaseURL:       cfg.MercadoPago.BaseURL,
		HTTPTimeout:   cfg.MercadoPago.HTTPTimeout,
	})
	if cfg.MercadoPago.WebhookSecret == "" {
		logrus.Warn("MERCADO_PAGO_WEBHOOK_SECRET is empty, webhook signatures are not verified")
	}

	publisher := app.newPublisher()
	ledger := service.NewSubscriptionLedger(userRepo, cfg.Payments.BonusPoints)

	app.reconciler = service.NewPaymentReconciler(
		paymentRepo,
		eventRepo,
		txManager,
		ledger,
		gateway,
		publisher,
		cfg.Payments,
	)
	app.paymentService = service.NewPaymentService(paymentRepo, userRepo, app.reconciler, gateway, cfg.Payments)
	app.webhookService = service.NewWebhookService(app.reconciler, gateway, notificationRepo, app.newDeduper())

	return app
}

func (a *application) newPublisher() statusPublisher {
	if len(a.cfg.Kafka.Brokers) == 0 {
		logrus.Info("KAFKA_BROKERS is empty, payment status events are not published")
		return events.NoopPublisher{}
	}

	publisher, err := events.NewKafkaPublisher(a.cfg.Kafka.Brokers, a.cfg.Kafka.StatusTopic)
	if err != nil {
		logrus.WithError(err).Warn("Kafka unavailable, payment status events are not published")
		return events.NoopPublisher{}
	}
	a.closers = append(a.closers, func() {
		if err := publisher.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close kafka producer")
		}
	})
	return publisher
}

// newDeduper returns nil without Redis; webhooks then rely on the
// conditional status update alone.
func (a *application) newDeduper() notificationDeduper {
	if a.cfg.Redis.Addr == "" {
		return nil
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		logrus.WithError(err).Warn("Redis unavailable, webhook dedupe disabled")
		_ = client.Close()
		return nil
	}
	a.closers = append(a.closers, func() {
		if err := client.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close redis client")
		}
	})
	return cache.NewNotificationDeduper(client, a.cfg.Payments.WebhookDedupeTTL)
}
