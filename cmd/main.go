package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/toleubekov/kitchen-sync/internal/adapter/auth"
	"github.com/toleubekov/kitchen-sync/internal/adapter/logger"
	"github.com/toleubekov/kitchen-sync/internal/adapter/postgres"
	"github.com/toleubekov/kitchen-sync/internal/adapter/rabbitmq"
	"github.com/toleubekov/kitchen-sync/internal/adapter/ws"
	"github.com/toleubekov/kitchen-sync/internal/app/fanout"
	"github.com/toleubekov/kitchen-sync/internal/app/session"
	"github.com/toleubekov/kitchen-sync/internal/app/transition"
	"github.com/toleubekov/kitchen-sync/internal/config"

	amqpAdapter "github.com/toleubekov/kitchen-sync/internal/adapter/amqp"
	httpAdapter "github.com/toleubekov/kitchen-sync/internal/adapter/http"
)

func main() {
	mode := flag.String("mode", "", "Service mode: sync-service, notification-subscriber")
	configPath := flag.String("config", "config.yaml", "Path to config file")
	port := flag.Int("port", 0, "HTTP port (overrides config)")
	flag.Parse()

	if *mode == "" {
		log.Fatal("--mode flag is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	ctx := context.Background()
	lgr := logger.New(*mode)

	switch *mode {
	case "sync-service":
		runSyncService(ctx, cfg, lgr)

	case "notification-subscriber":
		runNotificationSubscriber(ctx, cfg, lgr)

	default:
		log.Fatalf("Invalid mode: %s", *mode)
	}
}

func runSyncService(ctx context.Context, cfg *config.Config, lgr logger.Logger) {
	db, err := postgres.Connect(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer db.Close()

	lgr.Info("db_connected", "Connected to PostgreSQL database", "startup", map[string]interface{}{
		"host": cfg.Database.Host,
		"db":   cfg.Database.Database,
	})

	mqConn, err := rabbitmq.Connect(cfg.RabbitMQ)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	defer mqConn.Close()

	lgr.Info("rabbitmq_connected", "Connected to RabbitMQ", "startup", map[string]interface{}{
		"host": cfg.RabbitMQ.Host,
	})

	// Repositories
	orderRepo := postgres.NewOrderRepository(db)
	ledger := postgres.NewBroadcastLedger(db)

	// Fan-out plumbing
	registry := fanout.NewRegistry()
	streams := fanout.NewStreams(cfg.Stream.Retention)
	broadcaster := fanout.NewBroadcaster(registry, streams, lgr)

	// Coordinator + recovery sweep
	mirror := rabbitmq.NewPublisher(mqConn)
	coordinator := transition.NewService(orderRepo, ledger, broadcaster, mirror, lgr, cfg.Transition.StoreTimeout())

	reconciler := transition.NewReconciler(ledger, broadcaster, lgr, cfg.Transition)
	if err := reconciler.Start(); err != nil {
		log.Fatalf("Failed to start reconciler: %v", err)
	}
	defer reconciler.Stop()

	// Display sessions
	verifier := auth.NewJWTVerifier(cfg.Auth.JWTSecret)
	sessions := session.NewManager(cfg.Session, lgr)
	wsHandler := ws.NewHandler(verifier, sessions, registry, streams, lgr, cfg.Session)

	// HTTP surface
	transitionHandler := httpAdapter.NewTransitionHandler(coordinator, lgr)

	mux := http.NewServeMux()
	mux.HandleFunc("/orders/", transitionHandler.HandleOrders)
	mux.HandleFunc("/ws/kitchen", wsHandler.Serve)

	handler := httpAdapter.LoggingMiddleware(lgr)(mux)
	handler = httpAdapter.RecoveryMiddleware(lgr)(handler)

	// No server-level WriteTimeout: websocket connections are long-lived and
	// enforce their own per-write deadlines after the hijack.
	server := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:     handler,
		ReadTimeout: time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
		IdleTimeout: time.Duration(cfg.Server.IdleTimeoutSec) * time.Second,
	}

	lgr.Info("service_started", fmt.Sprintf("Kitchen sync service started on port %d", cfg.Server.Port), "startup", map[string]interface{}{
		"port": cfg.Server.Port,
	})

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		lgr.Info("shutdown_initiated", "Shutting down kitchen sync service", "shutdown", nil)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			lgr.Error("shutdown_error", "Error during shutdown", "shutdown", nil, err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		lgr.Error("server_error", "Server error", "runtime", nil, err)
	}
}

func runNotificationSubscriber(ctx context.Context, cfg *config.Config, lgr logger.Logger) {
	mqConn, err := rabbitmq.Connect(cfg.RabbitMQ)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	defer mqConn.Close()

	consumer := rabbitmq.NewConsumer(mqConn)
	notificationHandler := amqpAdapter.NewNotificationHandler(lgr)

	lgr.Info("service_started", "Notification subscriber started", "startup", nil)

	consumeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		if err := consumer.ConsumeTransitions(consumeCtx, notificationHandler.HandleTransition); err != nil {
			lgr.Error("consumer_error", "Error consuming transitions", "runtime", nil, err)
		}
	}()

	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
	<-sigint

	lgr.Info("shutdown_initiated", "Shutting down notification subscriber", "shutdown", nil)
}
