// Package main hosts the reference polling agent.
//
// The agent claims queries from a serphub server, scrapes the first
// results page from the configured search engine, and submits parsed
// results back. It is the minimal worker; browser-extension workers
// speak the same protocol.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/serpflow/serpflow/internal/agent"
	"github.com/serpflow/serpflow/internal/config"
	collyfetcher "github.com/serpflow/serpflow/internal/fetcher/colly"
	headlessfetcher "github.com/serpflow/serpflow/internal/fetcher/headless"
	"github.com/serpflow/serpflow/internal/headless/detector"
	"github.com/serpflow/serpflow/internal/logging"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := agent.NewClient(
		cfg.Agent.ServerURL,
		cfg.Agent.WorkerKey,
		time.Duration(cfg.Agent.TimeoutSeconds)*time.Second,
	)
	probe := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.Agent.UserAgent,
		Timeout:   time.Duration(cfg.Agent.TimeoutSeconds) * time.Second,
	})

	var headless agent.Fetcher
	var det agent.RenderDetector
	if cfg.Agent.Headless {
		chrome, chromeErr := headlessfetcher.NewChromedp(headlessfetcher.Config{
			UserAgent:         cfg.Agent.UserAgent,
			NavigationTimeout: time.Duration(cfg.Agent.NavTimeoutSeconds) * time.Second,
		})
		if chromeErr != nil {
			logger.Warn("headless fetcher init failed", zap.Error(chromeErr))
		} else {
			defer chrome.Close()
			headless = chrome
			det = detector.NewHeuristic(0)
		}
	}

	parser := agent.NewParser(agent.Selectors{
		Result:  cfg.Agent.Selectors.Result,
		Title:   cfg.Agent.Selectors.Title,
		Snippet: cfg.Agent.Selectors.Snippet,
		Related: cfg.Agent.Selectors.Related,
	})

	worker := agent.New(client, probe, headless, det, parser, agent.Config{
		PollInterval: time.Duration(cfg.Agent.PollSeconds) * time.Second,
		SearchURL:    cfg.Agent.SearchURL,
	}, logger.Named("agent"))

	logger.Info("serpagent configured",
		zap.String("server", cfg.Agent.ServerURL),
		zap.Int("poll_seconds", cfg.Agent.PollSeconds),
		zap.Bool("headless", headless != nil),
	)
	worker.Run(ctx)
}
