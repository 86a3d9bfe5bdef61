// cmd/context-chat/main.go
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"context-chat/internal/common/config"
	"context-chat/internal/common/llm"
	"context-chat/internal/common/logger"
	"context-chat/internal/common/mcp"
	"context-chat/internal/history"
	"context-chat/internal/models"
	"context-chat/internal/pipeline"
	"context-chat/internal/pipeline/formulate"
	"context-chat/internal/pipeline/retrieve"
	"context-chat/internal/pipeline/synthesize"
)

func main() {
	configPath := flag.String("config", "", "path to a config file (default: configs/config.yaml discovery)")
	metricsAddr := flag.String("metrics", "", "serve Prometheus metrics on this address (overrides config)")
	flag.Parse()

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFromFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("starting context-chat",
		zap.String("model", cfg.OpenAI.Model),
		zap.String("historyBackend", cfg.History.Backend),
	)

	if *metricsAddr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Address = *metricsAddr
	}
	if cfg.Metrics.Enabled {
		go serveMetrics(cfg.Metrics.Address, zapLog)
	}

	store, err := history.New(&cfg.History, log)
	if err != nil {
		zapLog.Fatal("history store init failed", zap.Error(err))
	}

	modelClient := llm.NewClient(&llm.Config{
		APIKey:      cfg.OpenAI.APIKey,
		BaseURL:     cfg.OpenAI.BaseURL,
		Model:       cfg.OpenAI.Model,
		Timeout:     config.GetDuration(cfg.OpenAI.Timeout),
		MaxTokens:   cfg.OpenAI.MaxTokens,
		Temperature: cfg.OpenAI.Temperature,
	}, log)

	formulator := formulate.NewHandler(&formulate.Config{
		Timeout: config.GetDuration(cfg.Pipeline.FormulateTimeout),
	}, modelClient, log)

	synthesizer := synthesize.NewHandler(&synthesize.Config{
		Timeout: config.GetDuration(cfg.Pipeline.SynthesizeTimeout),
	}, modelClient, log)

	toolEnv := make([]string, 0, len(cfg.MCP.Env))
	for key, value := range cfg.MCP.Env {
		toolEnv = append(toolEnv, key+"="+value)
	}

	newSession := func() pipeline.ToolSession {
		return mcp.NewClient(&mcp.Config{
			Command:        cfg.MCP.Command,
			Args:           cfg.MCP.Args,
			Env:            toolEnv,
			StartupTimeout: config.GetDuration(cfg.MCP.StartupTimeout),
			CallTimeout:    config.GetDuration(cfg.MCP.CallTimeout),
			MaxRetries:     cfg.MCP.MaxRetries,
		}, log)
	}

	newRetriever := func(tool retrieve.ToolCaller) pipeline.Retriever {
		return retrieve.NewHandler(&retrieve.Config{
			ToolName:         cfg.MCP.ToolName,
			MaxQueryAttempts: 1,
		}, tool, log)
	}

	orchestrator := pipeline.NewOrchestrator(formulator, synthesizer, newSession, newRetriever, store, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runREPL(ctx, orchestrator, store)

	zapLog.Info("shutting down")
}

func serveMetrics(addr string, zapLog *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	zapLog.Info("metrics endpoint listening", zap.String("address", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		zapLog.Error("metrics endpoint failed", zap.Error(err))
	}
}

// runREPL reads user turns from stdin until EOF, /exit, or a signal.
func runREPL(ctx context.Context, orchestrator *pipeline.Orchestrator, store history.Store) {
	fmt.Println("context-chat: ask a question, or /history, /clear, /exit")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		fmt.Print("> ")
		var line string
		var ok bool
		select {
		case <-ctx.Done():
			fmt.Println()
			return
		case line, ok = <-lines:
			if !ok {
				fmt.Println()
				return
			}
		}

		line = strings.TrimSpace(line)
		switch {
		case line == "":
			continue
		case line == "/exit":
			return
		case line == "/history":
			printHistory(ctx, store)
			continue
		case strings.HasPrefix(line, "/clear"):
			ids := strings.Fields(line)[1:]
			if err := store.Clear(ctx, ids...); err != nil {
				fmt.Printf("could not clear history: %v\n", err)
			} else if len(ids) == 0 {
				fmt.Println("history cleared")
			} else {
				fmt.Printf("cleared %d conversation(s)\n", len(ids))
			}
			continue
		}

		runTurn(ctx, orchestrator, line)
	}
}

func runTurn(ctx context.Context, orchestrator *pipeline.Orchestrator, message string) {
	for event := range orchestrator.Run(ctx, models.ChatRequest{Message: message}) {
		switch event.Type {
		case models.EventStatus:
			fmt.Printf("  [%s] %s\n", event.Stage, event.Message)
		case models.EventContent:
			fmt.Printf("\n%s\n\n", event.Answer.Text)
		case models.EventError:
			fmt.Printf("\n%s (%s)\n\n", event.Message, event.ErrorCode)
		}
	}
}

func printHistory(ctx context.Context, store history.Store) {
	records, err := store.List(ctx)
	if err != nil {
		fmt.Printf("could not read history: %v\n", err)
		return
	}
	if len(records) == 0 {
		fmt.Println("history is empty")
		return
	}
	for _, record := range records {
		fmt.Printf("[%s] Q: %s\n", record.Timestamp.Format("2006-01-02 15:04"), record.Message)
		fmt.Printf("%21s A: %s\n", "", record.Answer)
	}
}
