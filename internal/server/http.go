// Package server assembles the transports: the gin HTTP API and the gRPC health endpoint.
package server

import (
	"github.com/gin-gonic/gin"

	healthhandler "github.com/atqamz/kogase-engine/internal/health/handler"
	"github.com/atqamz/kogase-engine/internal/server/middleware"
)

// BasePath prefixes every telemetry route.
const BasePath = "/api/v1/telemetry"

// Routes is implemented by each context's HTTP handler.
type Routes interface {
	Register(rg *gin.RouterGroup)
}

// Deps holds the router's collaborators.
type Deps struct {
	// Verifier authenticates API requests. If nil, the API is open (development only).
	Verifier middleware.TokenVerifier
	// Health serves /healthz and /readyz outside the authenticated group. May be nil.
	Health *healthhandler.Server
	// Routes are mounted under BasePath.
	Routes []Routes
}

// NewRouter builds the gin engine: recovery, request logging and metrics on every route,
// bearer auth and project scoping on the API group.
func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), gin.Logger(), middleware.RequestMetrics())

	if deps.Health != nil {
		deps.Health.Register(r)
	}

	api := r.Group(BasePath)
	if deps.Verifier != nil {
		api.Use(middleware.Auth(deps.Verifier))
	}
	api.Use(middleware.ProjectScope())
	for _, rt := range deps.Routes {
		rt.Register(api)
	}
	return r
}
