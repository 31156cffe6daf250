package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"coinpulse/internal/config"
	"coinpulse/internal/logger"
	"coinpulse/internal/metrics"
	"coinpulse/internal/repository"
	"coinpulse/internal/sink"
	"coinpulse/internal/trace"
)

var version = "dev"

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", os.Getenv("CONFIG_FILE"), "path to config.yaml (optional)")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.New("coinpulse", "info", "json").Fatal("load config", zap.Error(err))
	}
	log := logger.New("coinpulse", cfg.Logging.Level, cfg.Logging.Format)
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := trace.Init(ctx, trace.Options{Enabled: cfg.Tracing.Enabled, ServiceName: "coinpulse", Version: version}); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = trace.Shutdown(shutdownCtx)
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	creds, err := config.LoadCredentials(cfg.Recommender.CredentialsFile, cfg.Recommender.Backend)
	if err != nil {
		log.Warn("credentials unreadable; recommendations disabled", zap.Error(err))
	}
	if !creds.Configured() && cfg.Recommender.Backend != config.BackendNone && cfg.Recommender.Backend != config.BackendMock {
		log.Warn("no API key found; recommendations will report NOT_CONFIGURED",
			zap.String("backend", cfg.Recommender.Backend),
			zap.String("env", config.EnvKey(cfg.Recommender.Backend)))
	}

	repo, err := repository.NewFromConfig(ctx, cfg, creds, log, m)
	if err != nil {
		return err
	}
	defer repo.Dispose()

	if cfg.NATS.URL != "" {
		s, err := sink.Connect(cfg.NATS.URL, cfg.NATS.Subject, repo.Provider(), log)
		if err != nil {
			log.Warn("nats unavailable; snapshots will not be forwarded", zap.Error(err))
		} else {
			sub := repo.Subscribe(s.Observe)
			repo.OnDispose(func() {
				sub.Unsubscribe()
				s.Close()
			})
			log.Info("forwarding snapshots to nats", zap.String("subject", cfg.NATS.Subject))
		}
	}

	repo.Start(ctx)
	log.Info("refresh loop scheduled",
		zap.String("provider", repo.Provider()),
		zap.Duration("interval", repo.Interval()))

	api := &server{feed: repo, log: log, metrics: m, timeout: cfg.Server.RequestTimeout, quit: ctx.Done()}
	root := http.NewServeMux()
	root.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	root.Handle("/", chain(api.routes(), log))

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           root,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      max(cfg.Server.RequestTimeout, cfg.Recommender.Timeout) + 10*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
