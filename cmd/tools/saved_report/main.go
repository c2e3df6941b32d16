package main

import (
	"context"
	"flag"
	"log"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/david/bill-finder/internal/config"
	"github.com/david/bill-finder/internal/ingest"
	"github.com/david/bill-finder/internal/logger"
	"github.com/david/bill-finder/internal/saved"
	"github.com/david/bill-finder/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "Path to config.yaml")
	userFlag := flag.String("user", "", "User UUID whose saved bills to report (default: local workspace)")
	byStatus := flag.Bool("by-status", false, "Also print a count of saved bills per status")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	logr := logger.New(cfg.Log.Level, cfg.Log.Format)
	defer logr.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	kv, err := storage.Open(ctx, storage.Options{
		Driver:        cfg.Storage.Driver,
		Path:          cfg.Storage.Path,
		DatabaseURL:   cfg.Storage.DatabaseURL,
		RedisAddr:     cfg.Storage.RedisAddr,
		RedisPassword: cfg.Storage.RedisPassword,
		RedisDB:       cfg.Storage.RedisDB,
		Log:           logr,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer kv.Close()

	if *userFlag != "" {
		userID, err := uuid.Parse(*userFlag)
		if err != nil {
			log.Fatalf("Invalid -user: %v", err)
		}
		kv = storage.WithNamespace(kv, userID.String())
	}

	bills, ok := saved.Open(ctx, kv, saved.WithLogger(logr)).ListAll()
	if !ok {
		log.Print("No saved bills.")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Bill", "Title", "Status", "Date", "Relevance", "Saved At"})
	for _, b := range bills {
		t.AppendRow(table.Row{b.Number, ingest.TruncateText(b.Title, 48), b.Status, b.Date, ingest.ScoreString(b.RelevanceScore), b.SavedAt.Format("2006-01-02 15:04")})
	}
	t.AppendFooter(table.Row{"", "", "", "", "Total", len(bills)})
	t.Render()

	if !*byStatus {
		return
	}
	counts := make(map[string]int)
	for _, b := range bills {
		counts[b.Status]++
	}
	statuses := make([]string, 0, len(counts))
	for s := range counts {
		statuses = append(statuses, s)
	}
	sort.Slice(statuses, func(i, j int) bool {
		if counts[statuses[i]] != counts[statuses[j]] {
			return counts[statuses[i]] > counts[statuses[j]]
		}
		return statuses[i] < statuses[j]
	})

	st := table.NewWriter()
	st.SetOutputMirror(os.Stdout)
	st.AppendHeader(table.Row{"Status", "Saved"})
	for _, s := range statuses {
		st.AppendRow(table.Row{s, counts[s]})
	}
	st.Render()
}
