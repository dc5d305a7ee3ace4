// Server runs the telemetry HTTP API (gin) and the gRPC health endpoint.
// Configuration comes from the environment; see internal/config.
package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/atqamz/kogase-engine/internal/config"
	healthhandler "github.com/atqamz/kogase-engine/internal/health/handler"
	metrichandler "github.com/atqamz/kogase-engine/internal/metric/handler"
	playsessionhandler "github.com/atqamz/kogase-engine/internal/playsession/handler"
	"github.com/atqamz/kogase-engine/internal/security"
	"github.com/atqamz/kogase-engine/internal/server"
	"github.com/atqamz/kogase-engine/internal/telemetry"
	"github.com/atqamz/kogase-engine/internal/telemetry/loki"
	otelsetup "github.com/atqamz/kogase-engine/internal/telemetry/otel"
	"github.com/atqamz/kogase-engine/internal/telemetry/producer"
)

const (
	shutdownTimeout = 15 * time.Second
	healthInterval  = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := otelsetup.NewProviders(ctx, otelsetup.Options{
		Endpoint:    cfg.OTelEndpoint,
		ServiceName: cfg.OTelServiceName,
		Insecure:    cfg.OTelInsecure,
	})
	if err != nil {
		log.Fatalf("otel: %v", err)
	}
	providers.SetGlobal()

	st, err := openStores(ctx, cfg)
	if err != nil {
		log.Fatalf("db: %v", err)
	}

	publishers := telemetry.Fanout{otelsetup.NewEventPublisher(providers.LoggerProvider)}
	kafkaProducer := producer.NewKafkaProducer(cfg.TelemetryKafkaBrokersList(), cfg.TelemetryKafkaTopic)
	if kafkaProducer != nil {
		publishers = append(publishers, kafkaProducer)
		log.Printf("server: publishing events to kafka topic %s", cfg.TelemetryKafkaTopic)
	}
	if lokiClient := loki.NewClient(cfg.LokiURL, cfg.LokiJob, &http.Client{Timeout: 5 * time.Second}); lokiClient != nil {
		publishers = append(publishers, lokiClient)
		log.Printf("server: pushing events to loki at %s", cfg.LokiURL)
	}

	if err := playsessionhandler.RegisterValidations(); err != nil {
		log.Fatalf("validation: %v", err)
	}
	if err := metrichandler.RegisterValidations(); err != nil {
		log.Fatalf("validation: %v", err)
	}

	var health *healthhandler.Server
	if st.db != nil {
		health = healthhandler.NewServer(st.db)
	} else {
		health = healthhandler.NewServer(nil)
	}
	go health.Watch(ctx, healthInterval)

	deps := server.Deps{
		Health: health,
		Routes: newRoutes(cfg, st, publishers),
	}
	if cfg.AuthEnabled() {
		pub, err := security.ParsePublicKey(cfg.JWTPublicKey)
		if err != nil {
			log.Fatalf("jwt public key: %v", err)
		}
		verifier, err := security.NewVerifier(pub, cfg.JWTIssuer, cfg.JWTAudience)
		if err != nil {
			log.Fatalf("jwt verifier: %v", err)
		}
		deps.Verifier = verifier
	} else {
		log.Println("server: JWT_PUBLIC_KEY not set; API is unauthenticated")
	}

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http serve: %v", err)
		}
	}()

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	grpcSrv := server.NewGRPCServer(health)
	go func() {
		log.Printf("gRPC health server listening on %s", cfg.GRPCAddr)
		if err := grpcSrv.Serve(lis); err != nil {
			log.Fatalf("grpc serve: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down...")
	health.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	grpcSrv.GracefulStop()

	// In-flight async publishes finish before their sinks close.
	time.Sleep(telemetry.ShutdownDrainDuration)
	if err := kafkaProducer.Close(); err != nil {
		log.Printf("kafka close: %v", err)
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Printf("otel shutdown: %v", err)
	}
	if err := st.Close(); err != nil {
		log.Printf("db close: %v", err)
	}
	log.Println("server stopped")
}
