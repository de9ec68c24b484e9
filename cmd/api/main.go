package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"shopcheckout/internal/config"
	"shopcheckout/internal/domain/pricing"
	"shopcheckout/internal/handler"
	"shopcheckout/internal/infra/cache"
	"shopcheckout/internal/infra/db"
	"shopcheckout/internal/infra/messaging"
	"shopcheckout/internal/infra/payment"
	infraRepo "shopcheckout/internal/infra/repository"
	"shopcheckout/internal/logger"
	"shopcheckout/internal/server"
	"shopcheckout/internal/usecase"
	"shopcheckout/internal/worker"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type uuidGenerator struct{}

func (g *uuidGenerator) NewID() string {
	return uuid.NewString()
}

type realClock struct{}

func (c *realClock) Now() time.Time {
	return time.Now().UTC()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.IsProd())
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	//DB接続とマイグレーション
	gormDB, err := db.Connect(cfg)
	if err != nil {
		return err
	}
	if err := db.Migrate(gormDB, cfg.MigrationsDir); err != nil {
		return err
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		//キャッシュが無くても動く
		log.Warn("redis is not reachable, cart cache will miss", zap.Error(err))
	}

	publisher := messaging.NewKafkaOrderPublisher(cfg.OrderEventsTopic, cfg.KafkaBrokers...)
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Warn("kafka writer close failed", zap.Error(err))
		}
	}()

	gateway := payment.NewRazorpayClient(payment.Config{
		BaseURL:       cfg.PaymentBaseURL,
		KeyID:         cfg.PaymentKeyID,
		KeySecret:     cfg.PaymentKeySecret,
		WebhookSecret: cfg.PaymentWebhookSecret,
		Timeout:       cfg.PaymentTimeout,
	}, log)

	//usecaseに渡す部品
	txm := infraRepo.NewTxManagerGorm(gormDB)
	cartCache := cache.NewRedisCartCache(redisClient)
	idGen := &uuidGenerator{}
	clock := &realClock{}

	//Usecase生成
	cartUC := usecase.NewCartUsecase(txm, cartCache, idGen, clock, cfg.CartMaxRetries, log.Named("cart"))
	checkoutUC := usecase.NewCheckoutUsecase(txm, gateway, idGen, clock, usecase.CheckoutOptions{
		Policy: pricing.ShippingPolicy{
			FreeThreshold: cfg.FreeShippingThreshold,
			FlatFee:       cfg.FlatShippingFee,
		},
		Currency:       cfg.Currency.String(),
		GatewayTimeout: cfg.PaymentTimeout,
		MaxRetries:     cfg.CartMaxRetries,
	}, log.Named("checkout"))
	finalizer := usecase.NewOrderFinalizer(txm, cartCache, publisher, idGen, clock, cfg.CartMaxRetries, log.Named("finalizer"))
	paymentUC := usecase.NewPaymentUsecase(txm, gateway, finalizer, clock, cfg.CartMaxRetries, log.Named("payment"))
	orderUC := usecase.NewOrderUsecase(txm)
	adminOrderUC := usecase.NewAdminOrderUsecase(txm, clock)
	addressUC := usecase.NewAddressUsecase(txm)
	auditUC := usecase.NewAuditLogUsecase(txm)

	//Handler生成
	e := server.New(cfg, log, server.Handlers{
		Cart:       handler.NewCartHandler(cartUC),
		Checkout:   handler.NewCheckoutHandler(checkoutUC, paymentUC, finalizer),
		Webhook:    handler.NewWebhookHandler(paymentUC),
		Order:      handler.NewOrderHandler(orderUC),
		AdminOrder: handler.NewAdminOrderHandler(adminOrderUC, checkoutUC),
		Address:    handler.NewAddressHandler(addressUC),
		AuditLog:   handler.NewAdminAuditHandler(auditUC),
	})

	sweeper := worker.NewAbandonSweeper(checkoutUC, clock, cfg.CheckoutAbandonAfter, cfg.CheckoutSweepInterval, log.Named("sweeper"))
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sweeper.Run(ctx)
	}()

	//Server起動（SIGINT/SIGTERMで止まる）
	err = server.Start(ctx, e, cfg.ListenAddr(), log)
	stop()
	wg.Wait()
	return err
}
