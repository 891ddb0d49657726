package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/semlayer/agent-engine/pkg/config"
	"github.com/semlayer/agent-engine/pkg/execution"
	"github.com/semlayer/agent-engine/pkg/llm"
	"github.com/semlayer/agent-engine/pkg/orchestrator"
	"github.com/semlayer/agent-engine/pkg/semantic"
	"github.com/semlayer/agent-engine/pkg/warehouse"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	flag.Parse()
	question := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if question == "" {
		log.Fatal("usage: agent-engine \"<question in natural language>\"")
	}

	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store := semantic.New(cfg.Semantic.EntitiesDir, cfg.Semantic.CatalogPath)
	if _, err := store.LoadCatalog(); err != nil {
		logger.Fatal("failed to load semantic catalog", zap.Error(err))
	}

	pool, err := pgxpool.New(ctx, cfg.Warehouse.ConnectionString())
	if err != nil {
		logger.Fatal("failed to connect to warehouse", zap.Error(err))
	}
	defer pool.Close()

	executor := warehouse.NewPostgresExecutor(pool)
	defer executor.Close()

	guard := execution.New(executor, execution.Config{
		BreakerThreshold:  cfg.Execution.BreakerThreshold,
		BreakerResetAfter: cfg.Execution.BreakerResetAfter,
		StatementTimeout:  cfg.Execution.StatementTimeout,
	}, store)

	client, err := llm.NewToolCallingClient(&cfg.LLM, logger)
	if err != nil {
		logger.Fatal("failed to build LLM client", zap.Error(err))
	}

	orch := orchestrator.New(client, store, guard, executor, cfg.Semantic.AllowedSchemas, cfg.LLM.MaxSteps)

	events := make(chan llm.StreamEvent, 32)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range events {
			logger.Debug("orchestrator event", zap.String("type", string(ev.Type)), zap.String("content", ev.Content))
		}
	}()

	result := orch.Run(ctx, question, events)
	close(events)
	<-done

	printResult(result)
}

func printResult(result *orchestrator.Result) {
	switch result.Outcome {
	case orchestrator.OutcomeReported:
		fmt.Printf("%s\n\nconfidence: %.2f\n", result.Narrative, result.Confidence)
		for _, note := range result.SanityNotes {
			fmt.Printf("note: %s\n", note)
		}
		if result.Artifact != nil {
			fmt.Printf("\nrows: %d (encoded %d, truncated=%v)\n", result.Artifact.RowCount, result.Artifact.EncodedRows, result.Artifact.Truncated)
			printCSVPreview(result.Artifact.Preview)
		}
	case orchestrator.OutcomeNoData:
		fmt.Println("no data: " + result.NoDataReason)
	case orchestrator.OutcomeClarify:
		fmt.Println("clarification needed: " + result.ClarifyQuestion)
	case orchestrator.OutcomeStepLimit:
		fmt.Fprintln(os.Stderr, "request exceeded the step ceiling without a final answer")
		os.Exit(1)
	case orchestrator.OutcomeFatal:
		fmt.Fprintf(os.Stderr, "request failed: %v\n", result.Err)
		os.Exit(1)
	}
}

func printCSVPreview(preview [][]string) {
	for _, row := range preview {
		b, _ := json.Marshal(row)
		fmt.Println(string(b))
	}
}
