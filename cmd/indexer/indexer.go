package main

import (
	"bufio"
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"design-props-rag/internal/app"
	"design-props-rag/internal/config"
	"design-props-rag/internal/indexer"
	"design-props-rag/internal/logging"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to config file (default ./designqa.yaml if present)")
	urnFile := flag.String("urns", "", "File with one design URN per line (default: remaining arguments)")
	store := flag.String("store", "", "Table store: postgres:// URL or sqlite file path (overrides config)")
	mode := flag.String("mode", "", "Extraction mode: hierarchy, query or bulk (overrides config)")
	maxConcurrent := flag.Int("max-concurrent", runtime.NumCPU()/2, "Maximum concurrent extractions")
	refresh := flag.Bool("refresh", false, "Extract again even when a table is stored")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	logging.Init(logging.ParseLevel(*logLevel), "text", os.Stderr)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *store != "" {
		cfg.Store.DSN = *store
	}
	if *mode != "" {
		cfg.Extract.Mode = *mode
	}
	if cfg.Store.DSN == "" {
		log.Fatal("A table store is required, set --store or DESIGNQA_STORE")
	}

	urns, err := readURNs(*urnFile, flag.Args())
	if err != nil {
		log.Fatalf("Failed to read URNs: %v", err)
	}
	if len(urns) == 0 {
		log.Fatal("No design URNs given")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.Build(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer a.Close()

	log.Printf("Indexing %d designs into %s", len(urns), cfg.Store.DSN)
	log.Printf("Extraction mode: %s, max concurrent: %d", cfg.Extract.Mode, *maxConcurrent)

	startTime := time.Now()
	ix := &indexer.Indexer{
		Builder:       a.Assistant,
		MaxConcurrent: *maxConcurrent,
		Refresh:       *refresh,
		Logger:        logging.New("indexer"),
		Progress: func(processed, total int) {
			elapsedTime := time.Since(startTime)
			estimatedTotal := elapsedTime * time.Duration(total) / time.Duration(processed)
			estimatedRemaining := estimatedTotal - elapsedTime

			log.Printf("Progress: %d/%d designs processed (%.1f%%) - Est. remaining: %v",
				processed, total, float64(processed)/float64(total)*100, estimatedRemaining.Round(time.Second))
		},
	}

	report, err := ix.Run(ctx, urns)
	if err != nil {
		log.Printf("Warning: %v", err)
	}
	printStatistics(report)

	if len(report.Failed()) > 0 {
		a.Close()
		os.Exit(1)
	}
}

func readURNs(path string, args []string) ([]string, error) {
	if path == "" {
		return args, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var urns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urns = append(urns, line)
	}
	return urns, scanner.Err()
}

// printStatistics prints per-design results and totals
func printStatistics(report *indexer.Report) {
	var rows int
	var slowest indexer.Result
	for _, r := range report.Results {
		if r.Err != nil {
			continue
		}
		rows += r.Rows
		if r.Duration > slowest.Duration {
			slowest = r
		}
	}
	failed := report.Failed()

	log.Printf("Completed indexing in %v:", report.Elapsed.Round(time.Millisecond))
	log.Printf("  Designs indexed: %d", len(report.Results)-len(failed))
	log.Printf("  Total rows: %d", rows)
	if slowest.DesignID != "" {
		log.Printf("  Slowest design: %s (%v)", slowest.DesignID, slowest.Duration.Round(time.Millisecond))
	}
	if len(failed) > 0 {
		log.Printf("  Failed designs: %d", len(failed))
		for _, r := range failed {
			log.Printf("    %s: %v", r.DesignID, r.Err)
		}
	}
}
