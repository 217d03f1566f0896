/**
 * @description
 * This is the main entry point for the settlement-service. It is responsible
 * for initializing all components of the service: configuration, the database
 * connection pool, the Redis closure guard, the RabbitMQ event producer, the
 * repository, the settlement service, and the HTTP server. It wires everything
 * together and starts the service.
 *
 * @dependencies
 * - log, net/http: Standard Go libraries for logging and HTTP server functionality.
 * - github.com/go-chi/chi/v5: For HTTP routing.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - internal/api, internal/app, internal/config, internal/store: Internal packages for the service.
 * - pkg/rabbitmq: Client for RabbitMQ.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/airwaysim/settlement-service/internal/api"
	"github.com/airwaysim/settlement-service/internal/app"
	"github.com/airwaysim/settlement-service/internal/config"
	"github.com/airwaysim/settlement-service/internal/store"
	"github.com/airwaysim/settlement-service/pkg/rabbitmq"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load application configuration from environment variables.
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if strings.TrimSpace(cfg.InternalAPIKey) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"internal api key must be configured\" env=INTERNAL_API_KEY")
	}

	log.Printf("level=info component=bootstrap msg=\"starting settlement-service\" port=%s", cfg.ServerPort)

	// Establish a connection pool to the PostgreSQL database.
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}
	poolConfig.MaxConns = 50
	poolConfig.MinConns = 10
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	// Redis is optional; without it the closure guard degrades to the
	// database's conditional update alone.
	var closureGuard *app.RedisClosureGuard
	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; closure guard disabled\" err=%v", err)
		} else {
			redisClient := redis.NewClient(redisOpts)
			closureGuard = app.NewRedisClosureGuard(redisClient, cfg.ClosureGuardPrefix,
				time.Duration(cfg.ClosureGuardTTLSeconds)*time.Second)
			log.Println("level=info component=bootstrap msg=\"redis closure guard enabled\"")
		}
	}

	// Initialize the RabbitMQ producer to publish settlement events.
	var eventProducer rabbitmq.Publisher
	producer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", err)
		eventProducer = &rabbitmq.EventProducerFallback{}
	} else {
		defer producer.Close()
		eventProducer = producer
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
	}

	// Initialize the repository and the settlement service.
	repo := store.NewPostgresRepository(dbpool)
	settlementService := app.NewService(repo, eventProducer, closureGuard, app.Options{
		LoanRepaymentRatePct: cfg.LoanRepaymentRatePct,
		VFRTaxPct:            cfg.DefaultVFRTaxPct,
		IFRTaxPct:            cfg.DefaultIFRTaxPct,
		WearPctPerHour:       cfg.WearPctPerHour,
		PunctualityDecayRate: cfg.PunctualityDecayRate,
		PunctualityFloor:     cfg.PunctualityFloor,
	})

	// Initialize the API handlers.
	settlementHandlers := api.NewSettlementHandlers(settlementService, cfg.InternalAPIKey)

	// Set up the HTTP router and define the API routes.
	router := chi.NewRouter()
	router.Mount("/api/v1", api.SettlementRoutes(settlementHandlers))

	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)

	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
}
