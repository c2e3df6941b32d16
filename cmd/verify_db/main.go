package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/david/bill-finder/internal/db"
	"github.com/david/bill-finder/internal/logger"
	"github.com/david/bill-finder/internal/storage"
)

func main() {
	dbURL := flag.String("db", "", "Postgres URL (default $DATABASE_URL)")
	flag.Parse()

	ctx := context.Background()
	pool, err := db.Connect(ctx, *dbURL)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool, logger.New("info", "console")); err != nil {
		log.Fatalf("Migrations failed: %v", err)
	}

	var total, savedKeys, settingsKeys int
	err = pool.QueryRow(ctx, `
		SELECT
			count(*),
			count(*) FILTER (WHERE key = $1 OR key LIKE '%:' || $1),
			count(*) FILTER (WHERE key = $2 OR key LIKE '%:' || $2)
		FROM kv_store
	`, storage.KeySavedBills, storage.KeyUserSettings).Scan(&total, &savedKeys, &settingsKeys)
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}

	fmt.Printf("Total keys: %d\n", total)
	fmt.Printf("Saved-bill lists: %d\n", savedKeys)
	fmt.Printf("Settings records: %d\n", settingsKeys)
}
