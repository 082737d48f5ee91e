package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"

	"github.com/example/community-gate/internal/application"
	"github.com/example/community-gate/internal/config"
	httptransport "github.com/example/community-gate/internal/http"
	"github.com/example/community-gate/internal/invalidation"
	"github.com/example/community-gate/internal/logging"
)

// options are the command line flags. Everything else comes from the environment.
type options struct {
	envFile     string
	checkTenant string
	checkAt     string
	seedFile    string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	flagSet := pflag.NewFlagSet("curfewd", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVar(&opts.envFile, "env-file", ".env", "dotenv file applied before reading CURFEW_ variables (ignored when absent)")
	flagSet.StringVar(&opts.checkTenant, "check-tenant", "", "evaluate one gate entry for this tenant, print the result and exit")
	flagSet.StringVar(&opts.checkAt, "check-at", "", "RFC 3339 instant for --check-tenant (default: now)")
	flagSet.StringVar(&opts.seedFile, "seed", "", "YAML file of tenants, rules and exceptions written to the store at start")

	if err := flagSet.Parse(args); err != nil {
		return options{}, err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return options{}, fmt.Errorf("unexpected argument: %s", rest[0])
	}
	if opts.checkAt != "" && opts.checkTenant == "" {
		return options{}, errors.New("--check-at requires --check-tenant")
	}
	return opts, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	if err := config.LoadEnvFile(opts.envFile); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.New(stderr, cfg.LogLevel)
	ctx = logging.ContextWithLogger(ctx, logger)

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open storage", "store", cfg.Store, "error", err)
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	if opts.seedFile != "" {
		seed, err := loadSeed(opts.seedFile)
		if err != nil {
			return err
		}
		if err := applySeed(ctx, store, seed); err != nil {
			logger.Error("failed to seed storage", "path", opts.seedFile, "error", err)
			return err
		}
		logger.Info("storage seeded", "path", opts.seedFile, "tenants", len(seed.Tenants))
	}

	seasons, err := config.LoadSeasonBook(cfg.SeasonFile)
	if err != nil {
		return err
	}

	source := application.NewRepositorySource(store, store)
	service, err := application.NewGateService(application.GateServiceDeps{
		Source:      source,
		Tenants:     source,
		Calendars:   seasons,
		IDGenerator: uuid.NewString,
		Now:         time.Now,
		Logger:      logger,
	}, application.GateServiceConfig{
		DefaultLocation: cfg.DefaultLocation,
		SnapshotTTL:     cfg.SnapshotTTL,
		MaxStaleness:    cfg.MaxStaleness,
		CacheSize:       cfg.SnapshotCacheSize,
	})
	if err != nil {
		return err
	}

	if opts.checkTenant != "" {
		return runCheck(ctx, service, opts, stdout)
	}
	return serve(ctx, cfg, service, store, logger)
}

func parseCheckTime(value string, now func() time.Time) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return now(), nil
	}
	instant, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("--check-at must be RFC 3339: %w", err)
	}
	return instant, nil
}

type checkSkipped struct {
	RuleID string `json:"rule_id"`
	Reason string `json:"reason"`
}

type checkOutput struct {
	EvaluationID    string         `json:"evaluation_id"`
	TenantID        string         `json:"tenant_id"`
	EvaluatedAt     string         `json:"evaluated_at"`
	LocalTime       string         `json:"local_time"`
	Restricted      bool           `json:"restricted"`
	MatchedRules    []string       `json:"matched_rules"`
	SkippedRules    []checkSkipped `json:"skipped_rules"`
	SnapshotVersion string         `json:"snapshot_version"`
}

func runCheck(ctx context.Context, service *application.GateService, opts options, stdout io.Writer) error {
	instant, err := parseCheckTime(opts.checkAt, time.Now)
	if err != nil {
		return err
	}

	result, err := service.Evaluate(ctx, application.EvaluateParams{TenantID: opts.checkTenant, Timestamp: instant})
	if err != nil {
		return err
	}

	output := checkOutput{
		EvaluationID:    result.EvaluationID,
		TenantID:        result.TenantID,
		EvaluatedAt:     result.EvaluatedAt.Format(time.RFC3339Nano),
		LocalTime:       result.LocalTime.Format(time.RFC3339Nano),
		Restricted:      result.Restricted,
		MatchedRules:    append([]string{}, result.MatchedRules...),
		SkippedRules:    make([]checkSkipped, 0, len(result.Skipped)),
		SnapshotVersion: result.SnapshotVersion,
	}
	for _, skipped := range result.Skipped {
		output.SkippedRules = append(output.SkippedRules, checkSkipped{RuleID: skipped.RuleID, Reason: skipped.Reason})
	}

	encoder := json.NewEncoder(stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}

func serve(ctx context.Context, cfg config.Config, service *application.GateService, store gateStore, logger *slog.Logger) error {
	go service.RunRefresher(ctx, cfg.RefreshInterval)

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() {
			if err := client.Close(); err != nil {
				logger.Warn("failed to close redis client", "error", err)
			}
		}()
		subscriber, err := invalidation.NewSubscriber(client, cfg.RedisChannel, service, logger)
		if err != nil {
			return err
		}
		go func() {
			if err := subscriber.Run(ctx); err != nil {
				logger.Error("invalidation subscriber stopped", "error", err)
			}
		}()
	}

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Gate:   httptransport.NewGateHandler(service, logger),
		Health: httptransport.NewHealthHandler(store, service.CachedTenants, logger),
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
			httptransport.Recoverer(logger),
		},
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("curfew gate API listening", "addr", server.Addr, "store", cfg.Store)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		return err
	}
	return nil
}
