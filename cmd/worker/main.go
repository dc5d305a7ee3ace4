// Worker consumes ingested events from Kafka and keeps the daily rollup metrics current:
// every event marks its (project, UTC day) dirty and dirty days are recomputed every ROLLUP_INTERVAL.
// Requires KAFKA_BROKERS and DATABASE_URL; TELEMETRY_KAFKA_TOPIC and KAFKA_GROUP_ID have defaults.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/atqamz/kogase-engine/internal/config"
	"github.com/atqamz/kogase-engine/internal/db"
	metricrepo "github.com/atqamz/kogase-engine/internal/metric/repository"
	metricservice "github.com/atqamz/kogase-engine/internal/metric/service"
	projectrepo "github.com/atqamz/kogase-engine/internal/project/repository"
	"github.com/atqamz/kogase-engine/internal/rollup"
	otelsetup "github.com/atqamz/kogase-engine/internal/telemetry/otel"
	"github.com/atqamz/kogase-engine/internal/telemetry/producer"
	telemetryrepo "github.com/atqamz/kogase-engine/internal/telemetry/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	brokers := cfg.TelemetryKafkaBrokersList()
	if len(brokers) == 0 {
		log.Fatal("worker: KAFKA_BROKERS is required")
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("worker: DATABASE_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := otelsetup.NewProviders(ctx, otelsetup.Options{
		Endpoint:    cfg.OTelEndpoint,
		ServiceName: cfg.OTelServiceName + "-worker",
		Insecure:    cfg.OTelInsecure,
	})
	if err != nil {
		log.Fatalf("otel: %v", err)
	}
	providers.SetGlobal()

	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	metrics := metricservice.NewService(metricrepo.NewPostgresRepository(conn),
		projectrepo.NewPostgresRepository(conn), cfg.Pages(), cfg.MaxBatchSize)
	scheduler := rollup.NewScheduler(rollup.NewCalculator(telemetryrepo.NewPostgresRepository(conn), metrics))

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          cfg.TelemetryKafkaTopic,
		GroupID:        cfg.KafkaGroupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		CommitInterval: time.Second,
	})
	defer reader.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		scheduler.Run(ctx, cfg.Rollup())
	}()

	log.Printf("worker: consuming from %s (group %s), rollup every %s",
		cfg.TelemetryKafkaTopic, cfg.KafkaGroupID, cfg.Rollup())

	consume(ctx, reader, scheduler)

	log.Println("worker: shutting down...")
	wg.Wait()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Printf("worker: otel shutdown: %v", err)
	}
	log.Println("worker: stopped")
}

// consume marks the day of every decodable message until ctx is done. Malformed messages are
// logged and skipped.
// readBackoff is the pause after a failed Kafka read.
var readBackoff = time.Second

// messageReader is the part of *kafka.Reader consume uses.
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

func consume(ctx context.Context, reader messageReader, scheduler *rollup.Scheduler) {
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("worker: kafka read error: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(readBackoff):
			}
			continue
		}
		m, err := producer.DecodeMessage(msg.Value)
		if err != nil {
			log.Printf("worker: skip message at offset %d: %v", msg.Offset, err)
			continue
		}
		scheduler.Mark(m.ProjectID, m.Timestamp)
	}
}
