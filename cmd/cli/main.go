package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/Harikeshav-R/Penny/internal/agent"
	"github.com/Harikeshav-R/Penny/internal/app"
	"github.com/Harikeshav-R/Penny/internal/auth"
	"github.com/Harikeshav-R/Penny/internal/config"
	"github.com/Harikeshav-R/Penny/internal/domain"
	infraBQ "github.com/Harikeshav-R/Penny/internal/infra/bigquery"
	"github.com/Harikeshav-R/Penny/internal/logger"
	"github.com/Harikeshav-R/Penny/internal/pipeline"
	"github.com/Harikeshav-R/Penny/internal/tools"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func main() {
	cfg := config.Load()
	log := logger.NewWithLevel(cfg.LogLevel)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "analyze":
		runAnalyze(cfg, log)
	case "chat":
		runChat(cfg, log)
	case "token":
		runToken(cfg, log)
	case "runs":
		runRuns(cfg, log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Penny CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  analyze   Analyze a receipt or cart image")
	fmt.Println("  chat      Send one message to the finance assistant")
	fmt.Println("  token     Issue an API bearer token for a user")
	fmt.Println("  runs      List audited analysis runs from BigQuery")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

func openApp(ctx context.Context, cfg *config.Config, log zerolog.Logger) *app.App {
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise application")
	}
	return a
}

func parseOwner(log zerolog.Logger, raw string) uuid.UUID {
	owner, err := uuid.Parse(raw)
	if err != nil {
		log.Fatal().Str("owner", raw).Msg("Error: --owner must be a UUID")
	}
	return owner
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "encoding output: %v\n", err)
		os.Exit(1)
	}
}

func runAnalyze(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	filePath := fs.String("file", "", "Path to a JPEG or PNG image")
	kind := fs.String("kind", string(domain.AnalysisKindReceipt), "Image kind: receipt or cart")
	hourlyRate := fs.String("hourly-rate", "", "Hourly rate for cart cost-in-hours")
	record := fs.Bool("record", false, "Record receipt splits as ledger transactions")
	ownerStr := fs.String("owner", "", "Owner UUID (required with --record)")
	fs.Parse(os.Args[2:])

	if *filePath == "" {
		log.Fatal().Msg("Error: --file is required")
	}
	k := domain.AnalysisKind(*kind)
	if !k.Valid() {
		log.Fatal().Str("kind", *kind).Msg("Error: --kind must be receipt or cart")
	}

	image, err := os.ReadFile(*filePath)
	if err != nil {
		log.Fatal().Err(err).Str("file", *filePath).Msg("Failed to read image")
	}

	var rate *decimal.Decimal
	if *hourlyRate != "" {
		r, err := decimal.NewFromString(*hourlyRate)
		if err != nil || r.IsNegative() {
			log.Fatal().Str("hourly_rate", *hourlyRate).Msg("Error: --hourly-rate must be a non-negative number")
		}
		rate = &r
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	a := openApp(ctx, cfg, log)
	defer a.Close()

	if !*record {
		analysis, err := a.Analyzer.Analyze(ctx, pipeline.AnalyzeInput{Kind: k, Image: image, HourlyRate: rate})
		if err != nil {
			log.Fatal().Err(err).Msg("Analysis failed")
		}
		printJSON(analysis.Response)
		return
	}

	if *ownerStr == "" {
		log.Fatal().Msg("Error: --owner is required with --record")
	}
	state := &pipeline.PipelineState{
		JobID:      "cli-" + uuid.NewString(),
		OwnerID:    parseOwner(log, *ownerStr),
		Kind:       k,
		Image:      image,
		HourlyRate: rate,
		Record:     true,
	}
	if err := a.Pipeline().Execute(ctx, state); err != nil {
		log.Fatal().Err(err).Msg("Analysis failed")
	}

	printJSON(state.Analysis.Response)
	fmt.Printf("Recorded %d transactions (run %s)\n", len(state.TransactionIDs), state.RunID)
}

func runChat(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	ownerStr := fs.String("owner", "", "Owner UUID")
	message := fs.String("message", "", "Message for the assistant")
	verbose := fs.Bool("v", false, "Print tool calls")
	fs.Parse(os.Args[2:])

	if *ownerStr == "" || *message == "" {
		log.Fatal().Msg("Usage: cli chat -owner UUID -message TEXT")
	}
	owner := parseOwner(log, *ownerStr)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	a := openApp(ctx, cfg, log)
	defer a.Close()

	reply := a.Orchestrator().Run(ctx, tools.NewRegistry(a.Ledger, owner, time.Now), agent.Request{Message: *message})

	if *verbose {
		for i, call := range reply.ToolCalls {
			fmt.Printf("%d. %s %v\n   -> %s\n", i+1, call.Name, call.Arguments, call.Result)
		}
	}
	fmt.Println(reply.Text)
}

func runToken(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	ownerStr := fs.String("owner", "", "Owner UUID (a new one is generated when empty)")
	ttl := fs.Duration("ttl", auth.DefaultTokenTTL, "Token lifetime")
	fs.Parse(os.Args[2:])

	if cfg.JWTSecret == "" {
		log.Fatal().Msg("Error: JWT_SECRET is not set")
	}

	owner := uuid.New()
	if *ownerStr != "" {
		owner = parseOwner(log, *ownerStr)
	}

	token, err := auth.NewTokenService(cfg.JWTSecret).IssueToken(owner, *ttl)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to issue token")
	}

	fmt.Printf("Owner: %s\n", owner)
	fmt.Printf("Token: %s\n", token)
}

func runRuns(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	ownerStr := fs.String("owner", "", "Owner UUID")
	limit := fs.Int("limit", 20, "Maximum runs to list")
	fs.Parse(os.Args[2:])

	if *ownerStr == "" {
		log.Fatal().Msg("Error: --owner is required")
	}
	if cfg.BigQueryProject == "" {
		log.Fatal().Msg("Error: BIGQUERY_PROJECT is not set")
	}
	owner := parseOwner(log, *ownerStr)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	repo, err := infraBQ.NewAnalysisRunRepository(ctx, cfg.BigQueryProject, cfg.BigQueryDataset)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create repository")
	}
	defer repo.Close()

	runs, err := repo.ListAnalysisRuns(ctx, owner.String(), *limit)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list runs")
	}

	fmt.Printf("\n=== Analysis Runs (%d) ===\n", len(runs))
	for i, run := range runs {
		fmt.Printf("\n%d. %s [%s]\n", i+1, run.RunID, run.Status)
		fmt.Printf("   Kind:    %s\n", run.Kind)
		fmt.Printf("   Started: %s\n", run.StartedTS.Format(time.RFC3339))
		if run.ItemCount.Valid {
			fmt.Printf("   Items:   %d\n", run.ItemCount.Int64)
		}
		if run.TotalAmount != nil {
			fmt.Printf("   Total:   %s\n", run.TotalAmount.FloatString(2))
		}
		if run.ErrorMessage != "" {
			fmt.Printf("   Error:   %s\n", run.ErrorMessage)
		}
	}
	fmt.Println()
}
