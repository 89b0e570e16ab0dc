// Command migrate applies the mailer schema with goose.
//
//	migrate [up|down|status|version|redo|reset|up-to N|down-to N]
package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/ignite/member-mailer/internal/config"
	"github.com/ignite/member-mailer/internal/repository/postgres"
)

func main() {
	cfg, err := config.LoadFromEnv(config.ResolvePath())
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	command := "up"
	var args []string
	if len(os.Args) > 1 {
		command = os.Args[1]
		args = os.Args[2:]
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer db.Close()
	log.Println("Connected to database")

	if err := postgres.Migrate(ctx, db, command, args...); err != nil {
		log.Fatalf("migrate %s: %v", command, err)
	}
	log.Printf("Migrate %s complete", command)
}
