package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Domenick1991/travelbook/config"
	"github.com/Domenick1991/travelbook/internal/bootstrap"
	"github.com/Domenick1991/travelbook/internal/cache"
	"github.com/Domenick1991/travelbook/internal/kafka"
	"github.com/Domenick1991/travelbook/internal/repository"
	"github.com/Domenick1991/travelbook/internal/service/reservation"
	"github.com/Domenick1991/travelbook/internal/service/resources"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	redisCache := cache.NewRedisCache(cfg.Redis, time.Duration(cfg.Booking.ResourcesCacheTTL)*time.Second)
	producer := kafka.NewProducer(cfg.Kafka.Brokers)
	defer producer.Close()

	resourceRepo := repository.NewResourceRepository(pool)
	bookingRepo := repository.NewBookingRepository(pool)

	coordinator := reservation.NewCoordinator(
		pool,
		bookingRepo,
		resourceRepo,
		redisCache,
		producer,
		cfg.Kafka.BookingTopic,
		reservation.WithNotificationsTopic(cfg.Kafka.NotificationsTopic),
		reservation.WithRetry(cfg.Booking.TxRetries, time.Duration(cfg.Booking.TxBackoffMillis)*time.Millisecond),
	)
	resourceSvc := resources.NewResourceService(resourceRepo, redisCache)
	statusSvc := resources.NewStatusService(
		pool,
		resourceRepo,
		bookingRepo,
		redisCache,
		producer,
		cfg.Kafka.ResourceTopic,
		resources.WithStatusRetry(cfg.Booking.TxRetries, time.Duration(cfg.Booking.TxBackoffMillis)*time.Millisecond),
	)
	reconciler := resources.NewReconciler(pool, resourceRepo, bookingRepo, redisCache)

	if err := bootstrap.Run(ctx, cfg, coordinator, resourceSvc, statusSvc, reconciler); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
