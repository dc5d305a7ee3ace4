// seed inserts a demo project with sample definitions, sessions, events and rolled-up metrics.
// Idempotent: skips inserts if the demo project already exists. With -private-key it also prints
// a bearer token for the demo project signed with that key.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/atqamz/kogase-engine/internal/config"
	"github.com/atqamz/kogase-engine/internal/db"
	definitionrepo "github.com/atqamz/kogase-engine/internal/definition/repository"
	definitionservice "github.com/atqamz/kogase-engine/internal/definition/service"
	metricrepo "github.com/atqamz/kogase-engine/internal/metric/repository"
	metricservice "github.com/atqamz/kogase-engine/internal/metric/service"
	"github.com/atqamz/kogase-engine/internal/platform/jsonblob"
	playsessionrepo "github.com/atqamz/kogase-engine/internal/playsession/repository"
	playsessionservice "github.com/atqamz/kogase-engine/internal/playsession/service"
	projectdomain "github.com/atqamz/kogase-engine/internal/project/domain"
	projectrepo "github.com/atqamz/kogase-engine/internal/project/repository"
	"github.com/atqamz/kogase-engine/internal/rollup"
	"github.com/atqamz/kogase-engine/internal/security"
	telemetryrepo "github.com/atqamz/kogase-engine/internal/telemetry/repository"
	telemetryservice "github.com/atqamz/kogase-engine/internal/telemetry/service"
)

const (
	demoProjectID = "6f1c2a4e-8b0d-4c39-9a57-3d2e1f0b7c11"
	demoUser1     = "0d6b8a52-91e4-4f0a-b7c3-5a2d9e6f1c01"
	demoUser2     = "0d6b8a52-91e4-4f0a-b7c3-5a2d9e6f1c02"
	demoDevice    = "a3e9c1f7-2b64-4d8e-9f05-7c1b3d5e8a20"

	levelSchema = `{"type":"object","required":["level"],"properties":{"level":{"type":"integer"},"stars":{"type":"integer"}}}`
)

func main() {
	privateKey := flag.String("private-key", "", "PEM or path of a private key; prints a demo-project bearer token")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env or set DATABASE_URL")
	}

	ctx := context.Background()
	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	if *privateKey != "" {
		defer printToken(cfg, *privateKey)
	}

	projects := projectrepo.NewPostgresRepository(conn)
	exists, err := projects.Exists(ctx, demoProjectID)
	if err != nil {
		log.Fatalf("seed check: %v", err)
	}
	if exists {
		log.Printf("Seed already applied (project %s exists). Skipping.", demoProjectID)
		return
	}
	if err := projects.Create(ctx, &projectdomain.Project{ID: demoProjectID, Name: "Demo Game", CreatedAt: time.Now().UTC()}); err != nil {
		log.Fatalf("create project: %v", err)
	}

	pages := cfg.Pages()
	definitions := definitionservice.NewService(definitionrepo.NewPostgresRepository(conn), projects)
	sessions := playsessionservice.NewService(playsessionrepo.NewPostgresRepository(conn), projects, pages)
	events := telemetryservice.NewService(telemetryrepo.NewPostgresRepository(conn), definitions, projects, sessions, nil,
		telemetryservice.Limits{Pages: pages, MaxBatch: cfg.MaxBatchSize})
	metrics := metricservice.NewService(metricrepo.NewPostgresRepository(conn), projects, pages, cfg.MaxBatchSize)

	if _, err := definitions.Create(ctx, definitionservice.CreateInput{
		ProjectID:   demoProjectID,
		EventName:   "level_complete",
		Category:    "progression",
		Description: "Player finished a level",
		IsEnabled:   true,
		Schema:      jsonblob.FromString(levelSchema),
	}); err != nil {
		log.Fatalf("create definition: %v", err)
	}

	user1, user2, device := demoUser1, demoUser2, demoDevice
	first, err := sessions.Start(ctx, playsessionservice.StartInput{
		ProjectID: demoProjectID, UserID: &user1, DeviceID: &device,
		GameVersion: "1.0.0", Platform: "android", Country: "ID",
	})
	if err != nil {
		log.Fatalf("start session: %v", err)
	}
	second, err := sessions.Start(ctx, playsessionservice.StartInput{
		ProjectID: demoProjectID, UserID: &user2, GameVersion: "1.0.0", Platform: "ios",
	})
	if err != nil {
		log.Fatalf("start session: %v", err)
	}

	firstID, secondID := first.ID, second.ID
	batch := []telemetryservice.EventInput{
		{UserID: &user1, DeviceID: &device, SessionID: &firstID, EventName: "level_complete", Category: "progression",
			Payload: jsonblob.FromString(`{"level":1,"stars":3}`)},
		{UserID: &user1, DeviceID: &device, SessionID: &firstID, EventName: "level_complete", Category: "progression",
			Payload: jsonblob.FromString(`{"level":2,"stars":2}`)},
		{UserID: &user1, SessionID: &firstID, EventName: "purchase", Category: "economy",
			Payload: jsonblob.FromString(`{"sku":"gems_100","price":0.99}`)},
		{UserID: &user2, SessionID: &secondID, EventName: "tutorial_start", Category: "onboarding"},
	}
	if _, err := events.LogBatch(ctx, demoProjectID, batch); err != nil {
		log.Fatalf("log events: %v", err)
	}
	if _, err := sessions.End(ctx, first.ID); err != nil {
		log.Fatalf("end session: %v", err)
	}

	written, err := rollup.NewCalculator(events, metrics).CalculateDaily(ctx, demoProjectID, time.Now().UTC())
	if err != nil {
		log.Fatalf("rollup: %v", err)
	}

	log.Println("Seed completed successfully.")
	fmt.Printf("Demo project: %s (%d daily metrics)\n", demoProjectID, written)
}

func printToken(cfg *config.Config, keyPEM string) {
	key, err := security.ParsePrivateKey(keyPEM)
	if err != nil {
		log.Printf("private key: %v", err)
		os.Exit(1)
	}
	signer, err := security.NewSigner(key, cfg.JWTIssuer, cfg.JWTAudience)
	if err != nil {
		log.Printf("signer: %v", err)
		os.Exit(1)
	}
	token, exp, err := signer.Issue("seed", demoProjectID, 30*24*time.Hour)
	if err != nil {
		log.Printf("issue token: %v", err)
		os.Exit(1)
	}
	fmt.Printf("Demo token (expires %s):\n%s\n", exp.Format(time.RFC3339), token)
}
