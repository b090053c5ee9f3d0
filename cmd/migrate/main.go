package main

import (
	"flag"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"

	"stars-shop/internal/store"
)

func main() {
	_ = godotenv.Load()

	mode := flag.String("mode", "up", "migration direction: up or down")
	flag.Parse()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL is empty")
	}

	db, err := goose.OpenDBWithDriver("pgx", dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	switch *mode {
	case "up":
		err = store.Migrate(db)
	case "down":
		err = store.MigrateDown(db)
	default:
		log.Fatalf("unknown mode %q (must be 'up' or 'down')", *mode)
	}
	if err != nil {
		log.Fatalf("migrate %s: %v", *mode, err)
	}
	log.Printf("migrations %s: done", *mode)
}
