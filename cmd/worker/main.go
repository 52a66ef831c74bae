package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Domenick1991/travelbook/config"
	"github.com/Domenick1991/travelbook/internal/cache"
	"github.com/Domenick1991/travelbook/internal/email"
	"github.com/Domenick1991/travelbook/internal/kafka"
	"github.com/Domenick1991/travelbook/internal/repository"
	"github.com/Domenick1991/travelbook/internal/scheduler"
	"github.com/Domenick1991/travelbook/internal/service/reservation"
	"github.com/Domenick1991/travelbook/internal/service/resources"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	kafkaGo "github.com/segmentio/kafka-go"
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
	statusSvc := resources.NewStatusService(
		pool,
		resourceRepo,
		bookingRepo,
		redisCache,
		producer,
		cfg.Kafka.ResourceTopic,
		resources.WithStatusRetry(cfg.Booking.TxRetries, time.Duration(cfg.Booking.TxBackoffMillis)*time.Millisecond),
	)

	itemBackoff := time.Duration(cfg.Worker.ItemBackoffMillis) * time.Millisecond
	deadlineSweeper := scheduler.NewDeadlineSweeper(bookingRepo, coordinator, cfg.Worker.BatchSize, cfg.Worker.Workers, cfg.Worker.ItemRetries, itemBackoff)
	statusSweeper := scheduler.NewStatusSweeper(statusSvc, nil, cfg.Worker.Workers)

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic)
	defer consumer.Close()

	emailSender := email.NewSender()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := consumer.Consume(ctx, func(ctx context.Context, msg kafkaGo.Message) error {
			var event kafka.BookingEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				log.Printf("decode event error: %v", err)
				return nil
			}
			return emailSender.Send(ctx, event)
		}); err != nil {
			log.Printf("consumer stopped: %v", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		scheduler.NewRunner(deadlineSweeper, time.Duration(cfg.Worker.DeadlineSweepMinutes)*time.Minute, redisCache).Start(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		scheduler.NewRunner(statusSweeper, time.Duration(cfg.Worker.StatusSweepMinutes)*time.Minute, redisCache).Start(ctx)
	}()

	<-ctx.Done()
	log.Printf("shutting down")
	wg.Wait()
}
