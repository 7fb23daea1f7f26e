package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"lending-regime-advisor/internal/app"
	"lending-regime-advisor/internal/config"
	"lending-regime-advisor/internal/logging"
	"lending-regime-advisor/internal/source"

	"go.uber.org/zap"
)

const usage = "usage: advisor [-config path] [-timeout 15s] <metrics-url>  (or set METRICS_API)"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("advisor", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "optional path to config file")
	timeout := fs.Duration("timeout", 0, "fetch timeout (overrides source.timeout)")
	fs.Usage = func() { fmt.Fprintln(stderr, usage) }
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if err := config.LoadEnv(".env"); err != nil {
		fmt.Fprintf(stderr, "failed to load .env: %v\n", err)
	}

	cfg := config.Default()
	cfg.Log.Level = "warn"
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return fail(stderr, err)
		}
		cfg = loaded
	}
	if *timeout > 0 {
		cfg.Source.Timeout = *timeout
	}

	url := strings.TrimSpace(fs.Arg(0))
	if url == "" {
		url = strings.TrimSpace(os.Getenv("METRICS_API"))
	}
	if url == "" {
		url = strings.TrimSpace(cfg.Source.URL)
	}
	if url == "" {
		fmt.Fprintln(stderr, usage)
		return 2
	}

	log := logging.New(cfg.Log)
	defer func() { _ = log.Sync() }()

	fetcher := source.New(cfg.Source.Timeout, log, source.WithStablecoins(cfg.Source.Stablecoins))
	r, err := app.Recommend(context.Background(), fetcher, url, cfg.Model, time.Now())
	if err != nil {
		log.Debug("recommendation failed", zap.Error(err))
		return fail(stderr, err)
	}
	out, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fail(stderr, err)
	}
	fmt.Fprintln(stdout, string(out))
	return 0
}

func fail(stderr io.Writer, err error) int {
	payload, _ := json.Marshal(map[string]string{"error": err.Error()})
	fmt.Fprintln(stderr, string(payload))
	return 1
}
