package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xiaot623/tradiehelper/internal/adapter/kafka"
	"github.com/xiaot623/tradiehelper/internal/adapter/payments"
	"github.com/xiaot623/tradiehelper/internal/auth"
	"github.com/xiaot623/tradiehelper/internal/config"
	"github.com/xiaot623/tradiehelper/internal/metrics"
	"github.com/xiaot623/tradiehelper/internal/notify"
	"github.com/xiaot623/tradiehelper/internal/policy"
	"github.com/xiaot623/tradiehelper/internal/presence"
	"github.com/xiaot623/tradiehelper/internal/ratelimit"
	"github.com/xiaot623/tradiehelper/internal/realtime"
	"github.com/xiaot623/tradiehelper/internal/repository"
	"github.com/xiaot623/tradiehelper/internal/service"
	"github.com/xiaot623/tradiehelper/internal/telemetry"
	handler "github.com/xiaot623/tradiehelper/internal/transport/http"
	"github.com/xiaot623/tradiehelper/internal/transport/ws"
)

func main() {
	// Load configuration
	cfg := config.Load()

	log.Printf("Starting tradiehelper...")
	log.Printf("External HTTP Port: %d", cfg.HTTPPort)
	log.Printf("Internal HTTP Port: %d", cfg.InternalPort)
	log.Printf("Realtime backend: %s", cfg.RealtimeBackend)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.OTELServiceName)
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}

	// Initialize store
	db, err := repository.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer db.Close()

	m := metrics.New()

	// Initialize realtime bus
	var rdb *redis.Client
	var bus realtime.Bus
	switch cfg.RealtimeBackend {
	case "nats":
		bus, err = realtime.NewNATSBus(cfg.NATSURL)
		if err != nil {
			log.Fatalf("Failed to connect to NATS: %v", err)
		}
	case "redis":
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Invalid REDIS_URL: %v", err)
		}
		rdb = redis.NewClient(opts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		bus = realtime.NewRedisBus(rdb)
	case "memory", "":
		bus = realtime.NewMemoryBus()
	default:
		log.Fatalf("Unknown REALTIME_BACKEND %q", cfg.RealtimeBackend)
	}
	defer bus.Close()
	transport := realtime.NewTransport(bus, m)

	// Initialize presence registry
	var mirror presence.Mirror
	if cfg.PresenceMirror {
		mirror = db
	}
	registry := presence.NewRegistry(transport, realtime.ChannelUserPresence, mirror, cfg.PresenceTTL, m)
	if err := registry.Start(); err != nil {
		log.Fatalf("Failed to start presence registry: %v", err)
	}
	defer registry.Close()
	if cfg.PresenceTTL > 0 {
		go registry.RunSweeper(ctx, cfg.PresenceTTL/2)
	}

	// Initialize policy engine
	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		log.Fatalf("Failed to initialize policy engine: %v", err)
	}

	// Initialize rate limiter
	var limiter ratelimit.Limiter = ratelimit.Unlimited{}
	if cfg.MessageRateLimit > 0 {
		if rdb != nil {
			limiter = ratelimit.NewRedisLimiter(rdb, cfg.MessageRateLimit, cfg.MessageRateWindow)
		} else {
			limiter = ratelimit.NewMemoryLimiter(cfg.MessageRateLimit, cfg.MessageRateWindow)
		}
	}

	// Message events: through Kafka when configured, otherwise straight to
	// the notifier.
	notifier := notify.New(transport, db, cfg.NotificationsIcon, m)
	var events service.EventPublisher = notifier
	if cfg.KafkaBrokers != "" {
		publisher := kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer publisher.Close()
		events = publisher

		consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, cfg.KafkaTopic)
		defer consumer.Close()
		go func() {
			if err := consumer.Run(ctx, notifier.Handle); err != nil {
				log.Printf("WARN: notification consumer stopped: %v", err)
			}
		}()
		log.Printf("Kafka brokers: %s (topic %s)", cfg.KafkaBrokers, cfg.KafkaTopic)
	}

	var paymentsClient *payments.Client
	if cfg.OnboardingURL != "" {
		paymentsClient = payments.NewClient(cfg.OnboardingURL)
	}

	// Initialize service
	svc := service.New(service.Deps{
		Store:        db,
		Transport:    transport,
		Config:       cfg,
		Presence:     registry,
		PolicyEngine: policyEngine,
		Limiter:      limiter,
		Events:       events,
		Payments:     paymentsClient,
		Metrics:      m,
	})

	verifier := auth.NewVerifier(cfg.JWTSecret)
	if verifier.DevMode() {
		log.Printf("WARN: JWT_SECRET is empty, bearer tokens are taken as user IDs")
	}

	// Initialize WebSocket gateway
	connectionHub := ws.NewHub(m)
	go connectionHub.Run(ctx)
	wsServer := ws.NewServer(cfg, connectionHub, svc, transport, verifier)

	externalServer := handler.NewExternalServer(svc, verifier, m, wsServer)
	internalServer := handler.NewInternalServer(svc, cfg.APIKey)

	// Start external server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := externalServer.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start external server: %v", err)
		}
	}()

	// Start internal server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.InternalPort)
		if err := internalServer.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start internal server: %v", err)
		}
	}()

	log.Printf("External API started on port %d", cfg.HTTPPort)
	log.Printf("Internal API started on port %d", cfg.InternalPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down tradiehelper...")
	stop()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := externalServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown external server gracefully: %v", err)
	}
	if err := internalServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown internal server gracefully: %v", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Printf("Failed to flush traces: %v", err)
	}

	log.Println("tradiehelper stopped")
}
