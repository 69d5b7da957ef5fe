// Upwatch watches job board RSS feeds.
//
// New postings are stored as they show up and mailed out as one digest per
// check cycle.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/oklog/run"
	"github.com/sethvargo/go-envconfig"
	"github.com/zalando/go-keyring"
	_ "golang.org/x/crypto/x509roots/fallback"

	"github.com/jdholdren/upwatch/internal/api"
	"github.com/jdholdren/upwatch/internal/dedup"
	"github.com/jdholdren/upwatch/internal/fetch"
	"github.com/jdholdren/upwatch/internal/ingest"
	"github.com/jdholdren/upwatch/internal/keywords"
	"github.com/jdholdren/upwatch/internal/notify"
	"github.com/jdholdren/upwatch/internal/scheduler"
	"github.com/jdholdren/upwatch/internal/sqlite"
	"github.com/jdholdren/upwatch/logger"
)

// Service name SMTP passwords are stored under in the OS keyring.
const keyringService = "upwatch"

type config struct {
	Port     int    `env:"PORT, default=4444"`
	Database string `env:"DATABASE, required"`

	// Which format to use for logging: either text or json
	LoggerFormat string `env:"LOGGER_FORMAT, default=text"`

	CheckIntervalSeconds int           `env:"CHECK_INTERVAL_SECONDS, default=60"`
	MaxConcurrentFetches int           `env:"MAX_CONCURRENT_FETCHES, default=8"`
	FetchTimeout         time.Duration `env:"FETCH_TIMEOUT, default=15s"`
	// Stripped from entry titles and used in the digest subject
	SiteName string `env:"SITE_NAME, default=Upwork"`

	ExtractKeywords bool `env:"EXTRACT_KEYWORDS, default=false"`
	// Either rake or claude
	KeywordProvider string `env:"KEYWORD_PROVIDER, default=rake"`
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`

	Email emailConfig `env:", prefix=EMAIL_"`
}

type emailConfig struct {
	To       string `env:"TO, required"`
	Server   string `env:"SERVER, required"`
	Port     int    `env:"PORT, default=587"`
	Username string `env:"USERNAME, required"`
	// Looked up in the keyring when unset
	Password string `env:"PASSWORD"`
}

// LogValue keeps secrets out of the startup log.
func (c config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("port", c.Port),
		slog.String("database", c.Database),
		slog.Int("check_interval_seconds", c.CheckIntervalSeconds),
		slog.Int("max_concurrent_fetches", c.MaxConcurrentFetches),
		slog.Duration("fetch_timeout", c.FetchTimeout),
		slog.String("site_name", c.SiteName),
		slog.Bool("extract_keywords", c.ExtractKeywords),
		slog.String("keyword_provider", c.KeywordProvider),
		slog.String("email_to", c.Email.To),
		slog.String("email_server", c.Email.Server),
		slog.Int("email_port", c.Email.Port),
		slog.String("email_username", c.Email.Username),
	)
}

func main() {
	ctx := context.Background()

	// Parse the config
	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		log.Fatalf("error parsing config: %s", err)
	}

	// Determine which logger format to use
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, nil)
	if cfg.LoggerFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, nil)
	}
	l := slog.New(logger.NewContextHandler(handler))
	slog.SetDefault(l)

	// Start the application
	if err := runApp(ctx, cfg); err != nil {
		slog.Error("error running", "error", err)
		os.Exit(1)
	}
}

func runApp(ctx context.Context, cfg config) error {
	slog.Info("running", "config", cfg)

	dbx, err := sqlite.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer dbx.Close()

	// Migrate, always
	if err := sqlite.Migrate(dbx); err != nil {
		return fmt.Errorf("error migrating: %s", err)
	}
	repo := sqlite.New(dbx)

	password, err := smtpPassword(cfg.Email)
	if err != nil {
		return err
	}
	mailer, err := notify.NewMailer(notify.MailerConfig{
		Host:     cfg.Email.Server,
		Port:     cfg.Email.Port,
		Username: cfg.Email.Username,
		Password: password,
		To:       cfg.Email.To,
	})
	if err != nil {
		return fmt.Errorf("error configuring mailer: %w", err)
	}

	kw, err := keywordExtractor(cfg)
	if err != nil {
		return err
	}

	var (
		known    = dedup.NewSet()
		pipeline = ingest.NewPipeline(repo, known, ingest.Config{Site: cfg.SiteName, Keywords: kw})
		trigger  = notify.NewTrigger(repo, notify.HTMLRenderer{Site: cfg.SiteName}, mailer)
		fetcher  = fetch.NewClient(fetch.Config{Timeout: cfg.FetchTimeout})
		sched    = scheduler.New(repo, known, fetcher, pipeline, trigger, scheduler.Config{
			Interval:             time.Duration(cfg.CheckIntervalSeconds) * time.Second,
			MaxConcurrentFetches: cfg.MaxConcurrentFetches,
		})
	)
	if err := sched.Load(ctx); err != nil {
		return err
	}
	srv := api.NewServer(api.ServerConfig{Port: cfg.Port}, sched, repo)

	var g run.Group
	g.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))
	{
		schedCtx, cancel := context.WithCancel(ctx)
		g.Add(func() error {
			return sched.Run(schedCtx)
		}, func(error) {
			cancel()
		})
	}
	{
		g.Add(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("error listening: %s", err)
			}
			return nil
		}, func(error) {
			downCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(downCtx); err != nil {
				slog.Error("error shutting down server", "error", err)
			}
		})
	}

	err = g.Run()
	var sigErr run.SignalError
	if errors.As(err, &sigErr) {
		slog.Info("shutting down", "signal", sigErr.Signal.String())
		return nil
	}

	return err
}

func smtpPassword(cfg emailConfig) (string, error) {
	if cfg.Password != "" {
		return cfg.Password, nil
	}

	pw, err := keyring.Get(keyringService, cfg.Username)
	if err != nil {
		return "", fmt.Errorf("EMAIL_PASSWORD is unset and no keyring entry was found for %s: %w", cfg.Username, err)
	}

	return pw, nil
}

func keywordExtractor(cfg config) (keywords.Extractor, error) {
	if !cfg.ExtractKeywords {
		return keywords.Disabled{}, nil
	}

	switch cfg.KeywordProvider {
	case "rake":
		return keywords.Rake{}, nil
	case "claude":
		if cfg.AnthropicAPIKey == "" {
			return nil, errors.New("ANTHROPIC_API_KEY is required for the claude keyword provider")
		}
		client := anthropic.NewClient(option.WithAPIKey(cfg.AnthropicAPIKey))

		cached, err := keywords.NewCached(keywords.NewClaude(&client), 1024)
		if err != nil {
			return nil, fmt.Errorf("error creating keyword cache: %w", err)
		}

		return cached, nil
	default:
		return nil, fmt.Errorf("unknown keyword provider %q", cfg.KeywordProvider)
	}
}
