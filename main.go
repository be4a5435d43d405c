package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/lookwise/insight-agent/internal/agent/graph"
	"github.com/lookwise/insight-agent/internal/agent/model"
	"github.com/lookwise/insight-agent/internal/agent/repo"
	"github.com/lookwise/insight-agent/internal/agent/warehouse"
	"github.com/lookwise/insight-agent/internal/core"
	logx "github.com/lookwise/insight-agent/pkg/logger"
	pkgredis "github.com/lookwise/insight-agent/pkg/redis"
)

// AppConfig defines all configurable parameters for the agent, sourced from
// environment variables (loaded from .env for local runs).
type AppConfig struct {
	// Infrastructure
	Warehouse   model.WarehouseConfig
	Redis       pkgredis.Config
	SchemaCache model.SchemaCacheConfig

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Agent configs
	Generation model.GenerationModelConfig

	LogLevel string `envconfig:"LOG_LEVEL"`
}

var exitCommands = map[string]bool{
	"exit": true,
	"quit": true,
	"bye":  true,
	"q":    true,
}

func main() {
	ctx := context.Background()

	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	var envCfg AppConfig
	if err := envconfig.Process("", &envCfg); err != nil {
		log.Fatalf("Failed to process environment config: %v", err)
	}

	logx.Init(logx.LoggerOpts{
		Environment: core.FromEnv(),
		Level:       envCfg.LogLevel,
	})

	runner, err := warehouse.NewRunner(ctx, envCfg.Warehouse)
	if err != nil {
		log.Fatalf("Failed to connect to warehouse: %v", err)
	}
	defer runner.Close()

	catalog := warehouse.NewCatalog(runner, newSchemaCache(envCfg))

	agent, err := graph.BuildInsightGraph(ctx, graph.Config{
		APIKey:          envCfg.APIKey,
		BaseURL:         envCfg.BaseURL,
		GenerationModel: envCfg.Generation,
		Executor:        runner,
		Catalog:         catalog,
	})
	if err != nil {
		log.Fatalf("Failed to build workflow: %v", err)
	}

	printBanner()
	repl(ctx, agent)
}

// newSchemaCache wires the optional Redis-backed schema cache. Without a
// REDIS_URL the agent runs with per-query schema fetches only.
func newSchemaCache(cfg AppConfig) model.SchemaCache {
	if !cfg.Redis.Enabled() {
		return nil
	}

	ttl, err := time.ParseDuration(cfg.SchemaCache.TTL)
	if err != nil {
		log.Fatalf("Invalid SCHEMA_CACHE_TTL '%s': %v", cfg.SchemaCache.TTL, err)
	}

	rdb, err := cfg.Redis.New()
	if err != nil {
		logx.Warn().Err(err).Msg("Redis unavailable, continuing without schema cache")
		return nil
	}

	logx.Info().Msg("Schema cache enabled")
	return repo.NewRedisSchemaCache(rdb, ttl)
}

func printBanner() {
	fmt.Println("================================================================")
	fmt.Println(" E-commerce Insight Agent")
	fmt.Println("================================================================")
	fmt.Println("Ask questions about orders, products, customers, and sales.")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  - What are the top selling product categories?")
	fmt.Println("  - Show me monthly sales trends for the last year")
	fmt.Println("  - Which countries do our customers come from?")
	fmt.Println()
	fmt.Println("Type 'help' for assistance, 'exit' to leave.")
	fmt.Println("================================================================")
}

func printHelp() {
	fmt.Println("Ask a question in plain language and the agent will classify it,")
	fmt.Println("write and run a warehouse query, and summarize what it found.")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  help, ?              show this message")
	fmt.Println("  exit, quit, bye, q   leave the agent")
}

func repl(ctx context.Context, agent graph.Runner) {
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("\nYou: ")
		if !scanner.Scan() {
			fmt.Println()
			return
		}

		query := strings.TrimSpace(scanner.Text())
		switch {
		case query == "":
			continue
		case exitCommands[strings.ToLower(query)]:
			fmt.Println("Goodbye!")
			return
		case query == "help" || query == "?":
			printHelp()
			continue
		}

		fmt.Println("Analyzing...")
		state := agent.Invoke(ctx, model.QueryInput{Query: query})

		fmt.Printf("\nAgent: %s\n", graph.ResponseFromState(state))
		printDebugMetadata(state)
	}
}

// printDebugMetadata surfaces the workflow internals after each answer when
// debug logging is on.
func printDebugMetadata(st *model.WorkflowState) {
	if !logx.DebugEnabled() || st == nil {
		return
	}

	fmt.Println("\n--- debug ---")
	fmt.Printf("analysis_type: %s\n", st.AnalysisType)
	if st.SQLQuery != "" {
		fmt.Printf("sql: %s\n", st.SQLQuery)
	}
	if st.QueryResults != nil {
		fmt.Printf("rows: %d\n", st.QueryResults.RowCount())
	}
	fmt.Printf("retry_count: %d\n", st.RetryCount)
	if st.Error != "" {
		fmt.Printf("error: %s\n", st.Error)
	}
	fmt.Println("-------------")
}
