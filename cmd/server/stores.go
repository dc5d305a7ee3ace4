package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/atqamz/kogase-engine/internal/config"
	"github.com/atqamz/kogase-engine/internal/db"
	definitionrepo "github.com/atqamz/kogase-engine/internal/definition/repository"
	metricrepo "github.com/atqamz/kogase-engine/internal/metric/repository"
	playsessionrepo "github.com/atqamz/kogase-engine/internal/playsession/repository"
	projectdomain "github.com/atqamz/kogase-engine/internal/project/domain"
	projectrepo "github.com/atqamz/kogase-engine/internal/project/repository"
	telemetryrepo "github.com/atqamz/kogase-engine/internal/telemetry/repository"
)

// stores holds one repository per bounded context. projects is nil when project ids are not
// checked.
type stores struct {
	db          *sql.DB
	projects    projectrepo.Repository
	definitions definitionrepo.Repository
	sessions    playsessionrepo.Repository
	events      telemetryrepo.Repository
	metrics     metricrepo.Repository
}

// openStores connects to Postgres when DATABASE_URL is set and otherwise falls back to
// in-memory repositories, which lose everything on restart.
func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	if cfg.DatabaseURL == "" {
		if cfg.Env == "production" {
			log.Printf("server: DATABASE_URL is empty in production; data will not survive a restart")
		}
		projects, err := memoryProjects(ctx, cfg.SeedProjectIDsList())
		if err != nil {
			return nil, err
		}
		return &stores{
			projects:    projects,
			definitions: definitionrepo.NewMemoryRepository(),
			sessions:    playsessionrepo.NewMemoryRepository(),
			events:      telemetryrepo.NewMemoryRepository(),
			metrics:     metricrepo.NewMemoryRepository(),
		}, nil
	}
	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	return &stores{
		db:          conn,
		projects:    projectrepo.NewPostgresRepository(conn),
		definitions: definitionrepo.NewPostgresRepository(conn),
		sessions:    playsessionrepo.NewPostgresRepository(conn),
		events:      telemetryrepo.NewPostgresRepository(conn),
		metrics:     metricrepo.NewPostgresRepository(conn),
	}, nil
}

// memoryProjects registers ids in an in-memory project repository. With no ids it returns nil,
// so every project id is accepted.
func memoryProjects(ctx context.Context, ids []string) (projectrepo.Repository, error) {
	if len(ids) == 0 {
		log.Printf("server: SEED_PROJECT_IDS is empty; accepting any project id")
		return nil, nil
	}
	repo := projectrepo.NewMemoryRepository()
	for _, id := range ids {
		p := &projectdomain.Project{ID: id, Name: id, CreatedAt: time.Now().UTC()}
		if err := repo.Create(ctx, p); err != nil {
			return nil, fmt.Errorf("seed project %s: %w", id, err)
		}
	}
	log.Printf("server: registered %d in-memory projects", len(ids))
	return repo, nil
}

func (s *stores) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
