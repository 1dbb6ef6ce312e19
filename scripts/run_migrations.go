package main

import (
	"context"
	"database/sql"
	"log"
	"os"

	_ "github.com/lib/pq"
	"github.com/safar/marketplace-orders/internal/config"
	"github.com/safar/marketplace-orders/migrations"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: go run scripts/run_migrations.go [up|down]")
	}

	direction := migrations.Direction(os.Args[1])
	if direction != migrations.Up && direction != migrations.Down {
		log.Fatal("Direction must be 'up' or 'down'")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Ping database: %v", err)
	}

	names, err := migrations.Names(direction)
	if err != nil {
		log.Fatalf("List migrations: %v", err)
	}
	for _, name := range names {
		log.Printf("Running migration: %s", name)
	}

	count, err := migrations.Apply(context.Background(), db, direction)
	if err != nil {
		log.Fatalf("Apply migrations: %v", err)
	}

	log.Printf("Successfully ran %d migration(s) %s", count, direction)
}
