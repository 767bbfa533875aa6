package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dvloznov/card-sms-parser/internal/config"
	"github.com/dvloznov/card-sms-parser/internal/extraction"
	"github.com/dvloznov/card-sms-parser/internal/logger"
	"github.com/dvloznov/card-sms-parser/internal/metrics"
	"github.com/dvloznov/card-sms-parser/internal/source"
	"github.com/rs/zerolog"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		boot := logger.New()
		boot.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log, err := logger.NewFromConfig(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		boot := logger.New()
		boot.Fatal().Err(err).Msg("Failed to create logger")
	}

	switch os.Args[1] {
	case "parse":
		runParse(log, cfg)
	case "batch":
		runBatchCommand(log, cfg)
	case "vendors":
		runVendors(log, cfg)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Card SMS Parser CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  parse     Parse one approval SMS (from -text or stdin)")
	fmt.Println("  batch     Parse every message in a file or gs:// object")
	fmt.Println("  vendors   List registered card vendors")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nConfiguration is read from SMSPARSER_* environment variables.")
	fmt.Println("Run 'cli <command> -h' for more information on a command.")
}

func runParse(log zerolog.Logger, cfg *config.Config) {
	fs := flag.NewFlagSet("parse", flag.ExitOnError)
	text := fs.String("text", "", "SMS body to parse (reads stdin when empty)")
	timeout := fs.Duration("timeout", time.Minute, "Overall timeout")
	fs.Parse(os.Args[2:])

	body := *text
	if body == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to read stdin")
		}
		body = string(data)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	mgr, err := buildManager(ctx, cfg, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build extraction manager")
	}

	record, err := mgr.Parse(ctx, body)
	if err != nil {
		log.Fatal().
			Err(err).
			Bool("fallback_error", extraction.IsFallbackError(err)).
			Msg("Parsing failed")
	}

	if err := writeRecord(os.Stdout, record); err != nil {
		log.Fatal().Err(err).Msg("Failed to write record")
	}
}

func runBatchCommand(log zerolog.Logger, cfg *config.Config) {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	input := fs.String("input", "", "Local path or gs://bucket/object with blank-line separated messages")
	timeout := fs.Duration("timeout", 30*time.Minute, "Overall timeout")
	metricsFile := fs.String("metrics-file", "", "Write Prometheus metrics to this file (textfile collector format)")
	fs.Parse(os.Args[2:])

	if *input == "" {
		log.Fatal().Msg("Error: --input is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	reader := source.NewReader(source.NewGCSFetcher(cfg.GCS.CredentialsFile))
	messages, err := reader.Load(ctx, *input)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load messages")
	}

	m := metrics.New()
	mgr, err := buildManager(ctx, cfg, m)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build extraction manager")
	}

	log.Info().
		Str("input", *input).
		Int("messages", len(messages)).
		Int("workers", cfg.Worker.Count).
		Msg("Starting batch")

	finished, err := runBatch(ctx, mgr, messages, cfg.Worker)
	if err != nil {
		log.Fatal().Err(err).Msg("Batch failed")
	}

	summary, err := writeBatch(os.Stdout, finished)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to write results")
	}

	if *metricsFile != "" {
		for _, job := range finished {
			m.ObserveJob(job)
		}
		if err := m.WriteToTextfile(*metricsFile); err != nil {
			log.Error().Err(err).Str("path", *metricsFile).Msg("Failed to write metrics")
		}
	}

	fmt.Fprintf(os.Stderr, "Parsed %d of %d messages (%d failed)\n", summary.Completed, summary.Total, summary.Failed)
	if summary.Failed > 0 {
		os.Exit(2)
	}
}

func runVendors(log zerolog.Logger, cfg *config.Config) {
	ctx := logger.WithContext(context.Background(), log)

	mgr, err := buildManager(ctx, cfg, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build extraction manager")
	}

	for _, vendor := range mgr.Vendors() {
		fmt.Println(vendor)
	}

	status := "disabled"
	if cfg.FallbackEnabled() {
		status = "enabled (" + cfg.Gemini.Model + ")"
	}
	fmt.Printf("fallback: %s\n", status)
}
