// Package handler reports readiness over the standard gRPC health service and over HTTP probes.
package handler

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the gRPC health service name reported alongside the overall ("") status.
const ServiceName = "kogase.telemetry"

const pingTimeout = 2 * time.Second

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Server derives serving status from a database ping and publishes it to a grpc health.Server.
type Server struct {
	pinger Pinger
	grpc   *health.Server
}

// NewServer returns a health server. pinger may be nil (in-memory storage), in which case
// the service always reports SERVING.
func NewServer(pinger Pinger) *Server {
	return &Server{pinger: pinger, grpc: health.NewServer()}
}

// GRPC is the health service to register on the gRPC server.
func (s *Server) GRPC() healthpb.HealthServer { return s.grpc }

// Check pings the database, records the result on the gRPC health service and returns it.
// A failed ping is reported as NOT_SERVING, never as an error.
func (s *Server) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if s.pinger != nil {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		err := s.pinger.PingContext(pingCtx)
		cancel()
		if err != nil {
			log.Printf("health: database ping: %v", err)
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.grpc.SetServingStatus("", status)
	s.grpc.SetServingStatus(ServiceName, status)
	return status
}

// Watch re-runs Check every interval until ctx is done.
func (s *Server) Watch(ctx context.Context, interval time.Duration) {
	s.Check(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Check(ctx)
		}
	}
}

// Shutdown marks every service NOT_SERVING so load balancers drain before the process exits.
func (s *Server) Shutdown() {
	s.grpc.Shutdown()
}

// Register mounts GET /healthz (liveness) and GET /readyz (readiness) on r.
func (s *Server) Register(r gin.IRoutes) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/readyz", func(c *gin.Context) {
		status := s.Check(c.Request.Context())
		code := http.StatusOK
		if status != healthpb.HealthCheckResponse_SERVING {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{"status": status.String()})
	})
}
