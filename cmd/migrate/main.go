package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"marketpulse/config"
	"marketpulse/pkg/database"
)

const usage = `
MarketPulse - Database CLI Tool

Usage:
  migrate [command] [flags]

Commands:
  up          Apply all SQL migrations in lexical order
  status      Show database connection status

Flags:
  -migrations string   Path to migrations directory (default "migrations")

Examples:
  go run cmd/migrate/main.go up
  go run cmd/migrate/main.go status
`

func main() {
	migrationsDir := flag.String("migrations", "migrations", "Path to migrations directory")

	flag.Usage = func() {
		fmt.Print(usage)
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	cfg := config.LoadConfig()
	database.Connect(cfg)

	switch flag.Arg(0) {
	case "up":
		log.Println("Running migrations...")
		if err := database.ApplyRawMigrations(*migrationsDir); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		log.Println("Migrations completed successfully")
	case "status":
		if err := database.HealthCheck(); err != nil {
			log.Fatalf("Database connection failed: %v", err)
		}
		log.Println("Database connection: OK")
	default:
		fmt.Printf("Unknown command: %s\n", flag.Arg(0))
		flag.Usage()
		os.Exit(1)
	}
}
