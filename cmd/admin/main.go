package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/storechat/admin-agent/internal/adapter/embedding"
	"github.com/storechat/admin-agent/internal/adapter/gateway"
	"github.com/storechat/admin-agent/internal/adapter/llm"
	"github.com/storechat/admin-agent/internal/adapter/notify"
	"github.com/storechat/admin-agent/internal/adapter/repo"
	"github.com/storechat/admin-agent/internal/adapter/shop"
	"github.com/storechat/admin-agent/internal/infra/config"
	"github.com/storechat/admin-agent/internal/infra/logger"
	"github.com/storechat/admin-agent/internal/infra/middleware"
	"github.com/storechat/admin-agent/internal/infra/tracer"
	"github.com/storechat/admin-agent/internal/usecase"
)

func main() {
	fs := flag.NewFlagSet("admin-agent", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "path to configuration file")
	seedFile := fs.String("file", "", "seed corpus YAML file (seed command; empty uses the built-in corpus)")
	fs.Usage = usage

	args := os.Args[1:]
	command := "serve"
	if len(args) > 0 && args[0][0] != '-' {
		command = args[0]
		args = args[1:]
	}
	_ = fs.Parse(args)

	var err error
	switch command {
	case "serve":
		err = runServe(*configPath)
	case "seed":
		err = runSeed(*configPath, *seedFile)
	case "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", command)
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `admin-agent - AI assistant for e-commerce store administration

Usage:
  admin-agent [serve] [-config path]   start the chat server (default)
  admin-agent seed [-config path] [-file seeds.yaml]
                                       embed and load the example corpus
  admin-agent help                     show this help

Secrets are read from the environment when set: ANTHROPIC_API_KEY,
OPENAI_API_KEY, SLACK_BOT_TOKEN, SLACK_SIGNING_SECRET, SHOP_ACCESS_TOKEN.
`)
}

func runServe(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, closeLog, err := logger.New(cfg.Logger)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracer(shutdownCtx)
	}()

	db, err := repo.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	sessions := repo.NewSessionRepo(db)
	actions := repo.NewActionRepo(db)
	examples := repo.NewExampleRepo(db)

	llmClient := llm.NewCircuitBreakerClient(llm.NewClient(cfg.LLM, log), cfg.LLM.CircuitBreaker, log)
	classifier := llm.NewClassifier(llmClient, cfg.LLM.ClassifierModel, log)
	embedder := embedding.NewOpenAIProvider(cfg.Embedding)
	store := shop.NewClient(cfg.Shop, log)
	notifier := notify.NewSlackNotifier(cfg.Slack, log)

	selector := usecase.NewSelector(classifier, embedder, examples, cfg.Selector, log)
	executor, err := usecase.NewExecutor(store, log)
	if err != nil {
		return err
	}
	queue := usecase.NewQueue(actions, notifier, executor, cfg.Queue, log)
	orchestrator := usecase.NewOrchestrator(llmClient, selector, executor, queue, sessions, cfg.LLM, log)
	queue.SetResumer(orchestrator.Resume)

	sweeper := usecase.NewSweeper(queue, cfg.Queue, log)
	if err := sweeper.Start(ctx); err != nil {
		return err
	}
	defer sweeper.Stop()

	mux := http.NewServeMux()
	gateway.NewChatHandler(orchestrator, sessions, log).Register(mux)
	gateway.NewSlackWebhook(queue, cfg.Slack.SigningSecret, log).Register(mux)
	handler := middleware.SecurityHeaders(middleware.RateLimit(ctx, 300, 60)(mux))

	srv := gateway.NewServer(cfg.Server, handler, log)
	if err := srv.Start(ctx); err != nil {
		return err
	}
	log.Info("admin agent running", "addr", srv.BoundAddr(), "db", cfg.Database.Path)

	<-ctx.Done()
	log.Info("shutting down")

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runSeed(configPath, seedFile string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, closeLog, err := logger.New(cfg.Logger)
	if err != nil {
		return err
	}
	defer closeLog()

	db, err := repo.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	seeder := usecase.NewSeeder(embedding.NewOpenAIProvider(cfg.Embedding), repo.NewExampleRepo(db), log)
	if seedFile != "" {
		inserted, skipped, err := seeder.SeedFile(ctx, seedFile)
		if err != nil {
			return err
		}
		fmt.Printf("seeded %d examples (%d already present) into %s\n", inserted, skipped, cfg.Database.Path)
		return nil
	}
	n, err := seeder.Seed(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("seeded %d examples into %s\n", n, cfg.Database.Path)
	return nil
}
