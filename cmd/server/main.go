package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	custservice "bankid/internal/customer/service"
	custstore "bankid/internal/customer/store"
	"bankid/internal/holdings"
	jwttoken "bankid/internal/jwt_token"
	"bankid/internal/notify/sms"
	"bankid/internal/platform/config"
	"bankid/internal/platform/httpserver"
	"bankid/internal/platform/kafka/admin"
	"bankid/internal/platform/kafka/consumer"
	"bankid/internal/platform/kafka/producer"
	"bankid/internal/platform/logger"
	"bankid/internal/platform/metrics"
	"bankid/internal/platform/postgres"
	platformredis "bankid/internal/platform/redis"
	"bankid/internal/registration"
	reghandler "bankid/internal/registration/handler"
	httptransport "bankid/internal/transport/http"
	verifhandler "bankid/internal/verification/handler"
	verifservice "bankid/internal/verification/service"
	verifstore "bankid/internal/verification/store"
)

// main wires the dependencies and runs the HTTP server and the approvals
// consumer side by side. Business logic lives in the internal services.
func main() {
	_ = godotenv.Load()

	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Stores.
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	db, err := postgres.Open(cfg.Postgres)
	if err != nil {
		log.Error("postgres connection failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	customerStore := custstore.NewPostgres(db)
	if err := customerStore.EnsureSchema(ctx); err != nil {
		log.Error("customer schema setup failed", "error", err)
		os.Exit(1)
	}

	var otpStore verifstore.Store
	if redisClient != nil {
		defer redisClient.Close()
		otpStore = verifstore.NewRedis(redisClient.Client)
	} else {
		log.Warn("redis not configured, using in-memory verification store")
		otpStore = verifstore.NewMemory()
	}

	// Kafka.
	if err := admin.EnsureTopics(ctx, cfg.Kafka.Brokers, cfg.Kafka.ApprovalsTopic, cfg.Kafka.RequestsTopic); err != nil {
		log.Error("kafka topic setup failed", "error", err)
		os.Exit(1)
	}
	pub, err := producer.New(cfg.Kafka.Brokers)
	if err != nil {
		log.Error("kafka producer setup failed", "error", err)
		os.Exit(1)
	}
	defer pub.Close()

	m := metrics.New()

	// SMS delivery.
	var sender verifservice.Sender
	if cfg.SMS.Enabled {
		snsSender, err := sms.NewSNSSender(ctx, cfg.SMS.Region)
		if err != nil {
			log.Error("sns sender setup failed", "error", err)
			os.Exit(1)
		}
		sender = snsSender
	} else {
		sender = sms.NewLogSender(log)
	}

	// Services.
	directory, err := custservice.NewDirectory(customerStore)
	if err != nil {
		log.Error("directory setup failed", "error", err)
		os.Exit(1)
	}
	otpService, err := verifservice.New(otpStore, directory,
		verifservice.WithLogger(log),
		verifservice.WithMetrics(m),
		verifservice.WithSender(sender),
		verifservice.WithPolicy(cfg.Verification.MaxAttempts, cfg.Verification.LockDuration),
	)
	if err != nil {
		log.Error("verification service setup failed", "error", err)
		os.Exit(1)
	}

	holdingsChecker, err := holdings.New(cfg.Holdings.CreditURL, cfg.Holdings.DepositURL, cfg.Holdings.Timeout,
		holdings.WithLogger(log),
		holdings.WithMetrics(m),
	)
	if err != nil {
		log.Error("holdings checker setup failed", "error", err)
		os.Exit(1)
	}
	customerService, err := custservice.New(customerStore,
		custservice.WithHoldings(holdingsChecker),
		custservice.WithLogger(log),
	)
	if err != nil {
		log.Error("customer service setup failed", "error", err)
		os.Exit(1)
	}
	registrationService, err := registration.NewService(customerStore, pub, cfg.Kafka.RequestsTopic,
		registration.WithServiceLogger(log),
	)
	if err != nil {
		log.Error("registration service setup failed", "error", err)
		os.Exit(1)
	}

	// Consumer.
	approvalHandler, err := registration.NewApprovalHandler(customerService,
		registration.WithHandlerLogger(log),
		registration.WithHandlerMetrics(m),
	)
	if err != nil {
		log.Error("approval handler setup failed", "error", err)
		os.Exit(1)
	}
	approvalConsumer, err := consumer.New(consumer.Config{
		Brokers: cfg.Kafka.Brokers,
		GroupID: cfg.Kafka.GroupID,
		Topics:  []string{cfg.Kafka.ApprovalsTopic},
	}, approvalHandler, consumer.WithLogger(log))
	if err != nil {
		log.Error("approvals consumer setup failed", "error", err)
		os.Exit(1)
	}
	defer approvalConsumer.Close()

	// Transport.
	jwtService := jwttoken.NewJWTService(cfg.JWT.SigningKey, cfg.JWT.Issuer, cfg.JWT.Audience)
	vh, err := verifhandler.New(otpService, jwtService, cfg.JWT.TokenTTL, log)
	if err != nil {
		log.Error("verification handler setup failed", "error", err)
		os.Exit(1)
	}
	rh, err := reghandler.New(registrationService, log)
	if err != nil {
		log.Error("registration handler setup failed", "error", err)
		os.Exit(1)
	}
	router := httptransport.NewRouter(httptransport.Options{
		Logger:   log,
		Handlers: []httptransport.Registrar{vh, rh},
	})
	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http server starting", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Info("approvals consumer starting",
			"topic", cfg.Kafka.ApprovalsTopic, "group", cfg.Kafka.GroupID)
		return approvalConsumer.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
