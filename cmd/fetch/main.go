package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/segmentio/encoding/json"
	"go.uber.org/zap"

	"coinpulse/internal/config"
	"coinpulse/internal/logger"
	"coinpulse/internal/provider"
	"coinpulse/internal/repository"
)

func main() {
	var configPath, providerName string
	var limit int
	var timeout time.Duration

	flag.StringVar(&configPath, "config", os.Getenv("CONFIG_FILE"), "path to config.yaml (optional)")
	flag.StringVar(&providerName, "provider", "", "provider override (coingecko, coincap, cryptocompare, mock)")
	flag.IntVar(&limit, "n", 0, "print at most n assets (0 = all)")
	flag.DurationVar(&timeout, "timeout", 20*time.Second, "overall timeout")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if providerName != "" {
		cfg.Provider = strings.ToLower(providerName)
		if err := cfg.Validate(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
	}
	// stdout carries only the JSON result.
	log := logger.NewTo(os.Stderr, "coinpulse-fetch", "warn", "console")
	defer func() { _ = log.Sync() }()

	p, err := repository.BuildProvider(cfg, log, nil)
	if err != nil {
		log.Fatal("build provider", zap.Error(err))
	}
	repo := repository.New(p, repository.Options{Logger: log})
	defer repo.Dispose()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	snap := repo.FetchAssets(ctx)
	if len(snap) == 0 {
		fmt.Fprintf(os.Stderr, "%s returned no assets\n", repo.Provider())
		os.Exit(1)
	}
	if err := render(os.Stdout, repo.Provider(), snap, limit); err != nil {
		log.Fatal("encode", zap.Error(err))
	}
}

type output struct {
	Provider string            `json:"provider"`
	Assets   provider.Snapshot `json:"assets"`
}

// render writes at most limit assets as indented JSON; limit <= 0 means all.
func render(w io.Writer, providerName string, snap provider.Snapshot, limit int) error {
	if limit > 0 && len(snap) > limit {
		snap = snap[:limit]
	}
	b, err := json.MarshalIndent(output{Provider: providerName, Assets: snap}, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
