package main

import (
	"github.com/atqamz/kogase-engine/internal/config"
	definitionhandler "github.com/atqamz/kogase-engine/internal/definition/handler"
	definitionservice "github.com/atqamz/kogase-engine/internal/definition/service"
	metrichandler "github.com/atqamz/kogase-engine/internal/metric/handler"
	metricservice "github.com/atqamz/kogase-engine/internal/metric/service"
	playsessionhandler "github.com/atqamz/kogase-engine/internal/playsession/handler"
	playsessionservice "github.com/atqamz/kogase-engine/internal/playsession/service"
	"github.com/atqamz/kogase-engine/internal/rollup"
	"github.com/atqamz/kogase-engine/internal/server"
	"github.com/atqamz/kogase-engine/internal/telemetry"
	telemetryhandler "github.com/atqamz/kogase-engine/internal/telemetry/handler"
	telemetryservice "github.com/atqamz/kogase-engine/internal/telemetry/service"
)

// newRoutes builds the services over st and returns their HTTP handlers.
func newRoutes(cfg *config.Config, st *stores, publisher telemetry.Publisher) []server.Routes {
	pages := cfg.Pages()
	definitions := definitionservice.NewService(st.definitions, st.projects)
	sessions := playsessionservice.NewService(st.sessions, st.projects, pages)
	events := telemetryservice.NewService(st.events, definitions, st.projects, sessions, publisher,
		telemetryservice.Limits{Pages: pages, MaxBatch: cfg.MaxBatchSize})
	metrics := metricservice.NewService(st.metrics, st.projects, pages, cfg.MaxBatchSize)
	calculator := rollup.NewCalculator(events, metrics)

	return []server.Routes{
		definitionhandler.NewHandler(definitions),
		playsessionhandler.NewHandler(sessions, events, pages),
		telemetryhandler.NewHandler(events, pages),
		metrichandler.NewHandler(metrics, calculator, pages),
	}
}
