package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/newsagent/internal/config"
	"github.com/newsagent/internal/generate"
	"github.com/newsagent/internal/ingest"
	"github.com/newsagent/internal/ingest/channel"
	"github.com/newsagent/internal/ingest/rss"
	"github.com/newsagent/internal/ingest/web"
	"github.com/newsagent/internal/pipeline"
	"github.com/newsagent/internal/publish/telegram"
	"github.com/newsagent/internal/storage/sqlite"
	"github.com/newsagent/pkg/logger"
	"github.com/newsagent/pkg/ratelimit"
)

var (
	cfgFile string
	log     *logger.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "newsagent-scheduler",
		Short: "Background scheduler for the news pipeline",
		Long: `Runs the ingest, generate and publish passes on a schedule.
This daemon should be run as a service for autonomous operation.`,
		RunE: runScheduler,
	}

	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file path")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runScheduler(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log = logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	log.Info().Msg("Starting news pipeline scheduler")

	repo, err := sqlite.New(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer repo.Close()

	if err := repo.Migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	go startHealthServer()

	limiter := ratelimit.NewMultiLimiter()
	limiter.AddLimiter(ratelimit.LimiterAnthropic, float64(cfg.RateLimit.AnthropicRequestsPerMinute)/60, 2)
	limiter.AddLimiter(ratelimit.LimiterTelegram, float64(cfg.RateLimit.TelegramMessagesPerMinute)/60, 5)
	limiter.AddLimiter(ratelimit.LimiterRSS, 1, 5)
	limiter.AddLimiter(ratelimit.LimiterWeb, 1, 5)
	limiter.AddLimiter(ratelimit.LimiterChannel, 0.5, 2)

	// Ingest adapters; the RSS adapter is registered first so feed
	// addresses are claimed before the generic page scraper.
	registry := ingest.NewRegistry()
	registry.Register(rss.New(limiter, log))
	registry.Register(web.New(nil, limiter, log))
	registry.Register(channel.New(nil, limiter, log))

	generator := generate.NewChain(
		generate.NewClaude(cfg.Anthropic, limiter, log),
		generate.NewFallback(log),
	)

	publisher, err := telegram.New(cfg.Telegram, limiter, log)
	if err != nil {
		return fmt.Errorf("failed to create publisher: %w", err)
	}

	pipe := pipeline.New(repo, registry, generator, publisher, log)
	pipe.SetFetchLimit(cfg.Ingest.FetchLimit)
	runner := pipeline.NewRunner(pipe, log)

	// Passes flow through a small task queue: cron entries enqueue, chained
	// follow-ups enqueue, a single worker executes. The queue plus the
	// runner's per-pass lock keep two instances of one pass from
	// overlapping.
	tasks := make(chan string, 16)
	enqueue := func(pass string) {
		select {
		case tasks <- pass:
		default:
			log.Warn().Str("pass", pass).Msg("Task queue full, dropping pass")
		}
	}
	runner.OnChain(enqueue)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case pass := <-tasks:
				if err := runner.Run(ctx, pass); err != nil {
					if errors.Is(err, pipeline.ErrPassRunning) {
						log.Debug().Str("pass", pass).Msg("Pass already running, skipping")
						continue
					}
					log.Error().Err(err).Str("pass", pass).Msg("Pass failed")
				}
			}
		}
	}()

	c := cron.New(cron.WithLogger(cronLogger{log}))

	jobs := []struct {
		spec string
		pass string
	}{
		{cfg.Scheduler.IngestCron, pipeline.PassIngest},
		{cfg.Scheduler.GenerateCron, pipeline.PassGenerate},
		{cfg.Scheduler.PublishCron, pipeline.PassPublish},
	}
	for _, job := range jobs {
		pass := job.pass
		if _, err := c.AddFunc(job.spec, func() { enqueue(pass) }); err != nil {
			return fmt.Errorf("failed to schedule %s job: %w", pass, err)
		}
		log.Info().Str("cron", job.spec).Str("pass", pass).Msg("Pass scheduled")
	}

	c.Start()
	log.Info().Msg("Scheduler started")

	<-ctx.Done()

	log.Info().Msg("Shutting down scheduler")
	c.Stop()

	return nil
}

// cronLogger adapts our logger for cron
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Info().Msgf(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Msgf(msg, keysAndValues...)
}

// startHealthServer starts a simple HTTP server for container health checks
func startHealthServer() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "10000"
	}

	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	log.Info().Str("port", port).Msg("Health check server starting")
	if err := http.ListenAndServe(":"+port, nil); err != nil {
		log.Error().Err(err).Msg("Health server failed")
	}
}
