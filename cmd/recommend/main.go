package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/segmentio/encoding/json"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"coinpulse/internal/config"
	"coinpulse/internal/logger"
	"coinpulse/internal/provider"
	"coinpulse/internal/recommend"
	"coinpulse/internal/repository"
)

type line struct {
	ID             string           `json:"id"`
	Symbol         string           `json:"symbol"`
	Price          float64          `json:"price"`
	Recommendation recommend.Result `json:"recommendation"`
}

func main() {
	var (
		configPath  string
		idsCSV      string
		concurrency int
		timeout     time.Duration
	)
	flag.StringVar(&configPath, "config", os.Getenv("CONFIG_FILE"), "path to config.yaml (optional)")
	flag.StringVar(&idsCSV, "ids", "bitcoin", "comma-separated asset ids or symbols; \"all\" for the whole snapshot")
	flag.IntVar(&concurrency, "concurrency", 2, "parallel recommendation requests")
	flag.DurationVar(&timeout, "timeout", 2*time.Minute, "overall timeout")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.NewTo(os.Stderr, "coinpulse-recommend", cfg.Logging.Level, "console")
	defer func() { _ = log.Sync() }()

	creds, err := config.LoadCredentials(cfg.Recommender.CredentialsFile, cfg.Recommender.Backend)
	if err != nil {
		log.Warn("credentials unreadable", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	repo, err := repository.NewFromConfig(ctx, cfg, creds, log, nil)
	if err != nil {
		log.Fatal("build repository", zap.Error(err))
	}
	defer repo.Dispose()

	snap := repo.Refresh(ctx)
	if len(snap) == 0 {
		log.Fatal("provider returned no assets", zap.String("provider", repo.Provider()))
	}
	targets := selectAssets(snap, idsCSV)
	if len(targets) == 0 {
		log.Fatal("no matching assets", zap.String("ids", idsCSV))
	}

	out := make([]line, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, concurrency))
	for i, a := range targets {
		g.Go(func() error {
			res := repo.Recommend(gctx, a)
			out[i] = line{ID: a.ID, Symbol: a.Symbol, Price: a.Price, Recommendation: res}
			return nil
		})
	}
	_ = g.Wait()

	enc := json.NewEncoder(os.Stdout)
	for _, l := range out {
		_ = enc.Encode(l)
	}
}

// selectAssets matches ids against asset ids and symbols, case-insensitively,
// keeping the order they were asked for.
func selectAssets(snap provider.Snapshot, idsCSV string) []provider.Asset {
	if strings.EqualFold(strings.TrimSpace(idsCSV), "all") {
		return snap
	}
	var out []provider.Asset
	for _, want := range strings.Split(idsCSV, ",") {
		want = strings.TrimSpace(want)
		if want == "" {
			continue
		}
		for _, a := range snap {
			if strings.EqualFold(a.ID, want) || strings.EqualFold(a.Symbol, want) {
				out = append(out, a)
				break
			}
		}
	}
	return out
}
