package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/leakage-detector/internal/config"
	"github.com/dvloznov/leakage-detector/internal/generate"
	"github.com/dvloznov/leakage-detector/internal/logger"
	"github.com/dvloznov/leakage-detector/internal/pipeline"
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "generate":
		runGenerate(log)
	case "run":
		runDetection(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Leakage Detector CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  generate  Generate a synthetic procurement transaction batch")
	fmt.Println("  run       Run detection over a transaction batch")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

func runGenerate(log zerolog.Logger) {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	out := fs.String("out", "data/procurement_transactions.csv", "Output CSV path")
	seed := fs.Int64("seed", 42, "Random seed")
	days := fs.Int("days", 90, "Number of days to generate")
	fs.Parse(os.Args[2:])

	ctx := logger.WithContext(context.Background(), log)

	opts := generate.DefaultOptions()
	opts.Seed = *seed
	opts.Days = *days

	log.Info().
		Str("out", *out).
		Int64("seed", opts.Seed).
		Int("days", opts.Days).
		Msg("Generating transaction batch")

	if err := generate.ToFile(ctx, *out, opts); err != nil {
		log.Fatal().Err(err).Msg("Generation failed")
	}

	fmt.Printf("Wrote synthetic batch to %s\n", *out)
}

func runDetection(log zerolog.Logger) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config YAML (optional)")
	input := fs.String("input", "", "Transaction CSV path (overrides config)")
	output := fs.String("output", "", "Artifact output directory (overrides config)")
	fs.Parse(os.Args[2:])

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if *output != "" {
		cfg.Report.OutputDir = *output
	}

	log = logger.WithLevel(log, cfg.Logging.Level)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	collab, cleanup, err := pipeline.BuildCollaborators(ctx, &cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise backends")
	}
	defer cleanup()

	state, err := pipeline.New(&cfg, collab, nil).Run(ctx, *input)
	if err != nil {
		log.Fatal().Err(err).Msg("Detection run failed")
	}

	if state.NothingToReport {
		fmt.Printf("Analysed %d transactions: no flags raised.\n", len(state.Transactions))
		return
	}

	fmt.Printf("Analysed %d transactions: %d flags, estimated leakage £%.2f\n",
		len(state.Transactions), len(state.Scored), state.Executive.HeadlineGBP)
	fmt.Printf("Flagged transactions: %s\n", state.Artifacts.FlaggedCSV)
	fmt.Printf("Executive summary:    %s\n", state.Artifacts.SummaryJSON)
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}
