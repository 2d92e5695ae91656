package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/6R1M5L07H/shopcore/configs"
	"github.com/6R1M5L07H/shopcore/internal/adapter/cache"
	shophttp "github.com/6R1M5L07H/shopcore/internal/adapter/http"
	"github.com/6R1M5L07H/shopcore/internal/adapter/http/middleware"
	"github.com/6R1M5L07H/shopcore/internal/adapter/kafka"
	"github.com/6R1M5L07H/shopcore/internal/adapter/queue"
	"github.com/6R1M5L07H/shopcore/internal/adapter/rates"
	"github.com/6R1M5L07H/shopcore/internal/adapter/repo"
	domain "github.com/6R1M5L07H/shopcore/internal/entity"
	"github.com/6R1M5L07H/shopcore/internal/logging"
	"github.com/6R1M5L07H/shopcore/internal/scheduler"
	"github.com/6R1M5L07H/shopcore/internal/security"
	"github.com/6R1M5L07H/shopcore/internal/usecase"
	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	"github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

type App struct {
	Router *gin.Engine
}

func InitWithConfig(cfg configs.Config) (*App, func(), error) {
	logging.Init(cfg.App.Name, cfg.App.LogFile)

	// database
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		return nil, nil, err
	}
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)
	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, nil, err
	}

	// redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       0,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, nil, err
	}

	// rabbitmq
	conn, err := amqp091.Dial(cfg.Rabbit.URL)
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, nil, err
	}
	producer, err := queue.NewRabbitProducer(ch, cfg.Rabbit.Exchange)
	if err != nil {
		return nil, nil, err
	}

	pricing, err := pricingFromConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	rateTable, err := ratesFromConfig(cfg)
	if err != nil {
		return nil, nil, err
	}

	// infra
	orderRepo := repo.NewMySQLOrderRepo(db)
	stockLedger := repo.NewMySQLStockLedger(db)
	invoiceRepo := repo.NewMySQLInvoiceRepo(db)
	userLedger := repo.NewMySQLUserLedger(db)
	addrPool := repo.NewMySQLAddressPool(db)
	idem := cache.NewRedisIdempotencyStore(rdb, cfg.Idempotency.TTL)
	statusCache := cache.NewRedisCache(rdb, cfg.Cache.TTL)
	rateSource := rates.NewStaticRateSource(rateTable)

	// use cases
	lifecycle := usecase.NewLifecycle(orderRepo, userLedger,
		statusCache, producer, logging.New("lifecycle"))
	refunds := usecase.NewRefundCalculator(pricing)
	checkoutUC := usecase.NewCheckout(orderRepo, stockLedger, invoiceRepo, userLedger,
		idem, addrPool, rateSource, lifecycle, pricing, logging.New("checkout"))
	paymentUC := usecase.NewProcessPayment(orderRepo, invoiceRepo, userLedger,
		idem, lifecycle, refunds, pricing, logging.New("payment"))
	cancelUC := usecase.NewCancelOrder(orderRepo, invoiceRepo, lifecycle, refunds,
		logging.New("cancel"))
	shipUC := usecase.NewMarkShipped(orderRepo, lifecycle, logging.New("ship"))
	expireUC := usecase.NewExpireOrders(orderRepo, invoiceRepo, lifecycle, refunds,
		cfg.Sweep.BatchSize, logging.New("expire"))

	// consumers
	setupQueue(ch, statusCache)
	kafkaCancel, err := setupKafkaListener(cfg, paymentUC)
	if err != nil {
		return nil, nil, err
	}

	// sweeper
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	scheduler.NewSweeper(expireUC, cfg.Sweep.Interval, logging.New("sweeper")).Start(sweepCtx)

	// http
	verifier, err := security.NewWebhookVerifier(cfg)
	if err != nil {
		stopSweep()
		return nil, nil, err
	}
	router := shophttp.NewRouter(shophttp.RouterDeps{
		Orders:   shophttp.NewOrderHandler(orderRepo, statusCache, cancelUC),
		Checkout: shophttp.NewCheckoutHandler(checkoutUC),
		Admin:    shophttp.NewAdminHandler(shipUC, cancelUC),
		Webhook:  shophttp.NewWebhookHandler(paymentUC),
		Token:    shophttp.NewTokenHandler(cfg, security.NewClientStore(cfg)),
		Authz:    middleware.NewAuthz(cfg),
		Sig:      middleware.NewSignatureVerify(verifier, cfg.Webhook.MaxBodyBytes),
		Log:      logging.New("http"),
	})

	cleanup := func() {
		stopSweep()
		kafkaCancel()
		_ = ch.Close()
		_ = conn.Close()
		_ = rdb.Close()
		_ = db.Close()
	}

	return &App{Router: router}, cleanup, nil
}

func setupQueue(ch *amqp091.Channel, statusCache usecase.OrderCache) {
	h := queue.NewFulfillmentHandler(statusCache, logging.New("fulfillment"))

	router := queue.NewRouter(ch, logging.New("rmq"), queue.WithPrefetch(50))
	router.Register(queue.FulfillmentQueue,
		queue.JSONHandler[usecase.OrderEventMsg]{HandleFunc: h.HandleEvent})

	if err := router.Start(); err != nil {
		panic(err)
	}
}

func setupKafkaListener(cfg configs.Config, payments *usecase.ProcessPayment) (context.CancelFunc, error) {
	grp, err := kafka.NewGroup(cfg.Kafka.Brokers, cfg.Kafka.GroupID)
	if err != nil {
		return nil, err
	}

	log := logging.New("kafka")
	h := kafka.NewPaymentEventHandler(payments, log)
	consumer := kafka.NewConsumer(grp, []string{cfg.Kafka.Topic}, h.Handle, log)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := consumer.Start(ctx); err != nil && ctx.Err() == nil {
			log.Error("kafka consumer stopped", "err", err)
		}
		_ = grp.Close()
	}()
	return cancel, nil
}

func pricingFromConfig(cfg configs.Config) (usecase.PricingConfig, error) {
	p := usecase.DefaultPricing()
	if cfg.Pricing.OrderTTL > 0 {
		p.OrderTTL = cfg.Pricing.OrderTTL
	}
	if cfg.Pricing.GraceWindow > 0 {
		p.GraceWindow = cfg.Pricing.GraceWindow
	}
	if cfg.Pricing.PartialExtension > 0 {
		p.PartialExtension = cfg.Pricing.PartialExtension
	}
	for _, f := range []struct {
		raw string
		dst *decimal.Decimal
	}{
		{cfg.Pricing.CancelPenaltyPct, &p.CancelPenaltyPct},
		{cfg.Pricing.UnderpayPenaltyPct, &p.UnderpayPenaltyPct},
		{cfg.Pricing.LatePenaltyPct, &p.LatePenaltyPct},
		{cfg.Pricing.OverpayTolerancePct, &p.OverpayTolerancePct},
	} {
		if f.raw == "" {
			continue
		}
		d, err := decimal.NewFromString(f.raw)
		if err != nil {
			return usecase.PricingConfig{}, fmt.Errorf("pricing: bad percentage %q: %w", f.raw, err)
		}
		*f.dst = d
	}
	return p, nil
}

func ratesFromConfig(cfg configs.Config) (map[domain.Currency]decimal.Decimal, error) {
	out := make(map[domain.Currency]decimal.Decimal, len(cfg.Rates))
	for code, raw := range cfg.Rates {
		cur := domain.Currency(code)
		if !cur.Valid() {
			return nil, fmt.Errorf("rates: unknown currency %q", code)
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("rates: bad rate for %s: %w", code, err)
		}
		out[cur] = d
	}
	return out, nil
}
