// Package main applies one markup to many priced entities from the command line.
//
//	reprice -type product -category alopaticos -markup 2.8 -reason "tabela 2026"
//	reprice -type supply -selector 'cost > 50 && !custom' -markup 1.6
//
// Entities are committed one by one; interrupting the job leaves every
// finished entity re-priced and reports the rest as cancelled.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"farmacia/internal/config"
	appctx "farmacia/internal/core/context"
	"farmacia/internal/domain/pricing"
	"farmacia/internal/infrastructure/storage/postgres"
	"farmacia/internal/infrastructure/storage/postgres/pricing_repo"
	"farmacia/pkg/logger"
)

const (
	exitOK    = 0
	exitFail  = 1
	exitUsage = 2
)

type options struct {
	request pricing.BulkRequest
	user    string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func parseArgs(args []string, stderr io.Writer) (options, error) {
	fs := flag.NewFlagSet("reprice", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		entityType = fs.String("type", "", "entity type: product, supply or packaging (required)")
		category   = fs.String("category", "", "only entities in this category")
		selector   = fs.String("selector", "", "CEL expression over type, id, name, category, cost, markup, sale_price, custom")
		markupRaw  = fs.String("markup", "", "markup to apply (required)")
		reason     = fs.String("reason", "", "reason recorded in price history")
		user       = fs.String("user", appctx.SystemUser, "author recorded in price history")
	)
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	if *entityType == "" || *markupRaw == "" {
		fs.Usage()
		return options{}, errors.New("-type and -markup are required")
	}
	markup, err := decimal.NewFromString(*markupRaw)
	if err != nil {
		return options{}, fmt.Errorf("invalid markup %q: %w", *markupRaw, err)
	}
	t, err := pricing.ParseEntityType(*entityType)
	if err != nil {
		return options{}, fmt.Errorf("invalid type %q", *entityType)
	}

	opts := options{
		request: pricing.BulkRequest{EntityType: t, Selector: *selector, Markup: markup},
		user:    *user,
	}
	if *category != "" {
		opts.request.CategoryName = category
	}
	if *reason != "" {
		opts.request.Reason = reason
	}
	return opts, nil
}

// run returns the process exit code so that deferred cleanup always happens.
func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseArgs(args, stderr)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	cfg, err := config.Load(".env")
	if err != nil {
		fmt.Fprintf(stderr, "failed to load config: %v\n", err)
		return exitFail
	}

	log, err := logger.New(logger.Config{Level: cfg.App.LogLevel, Development: cfg.App.IsDev()})
	if err != nil {
		fmt.Fprintf(stderr, "failed to initialize logger: %v\n", err)
		return exitFail
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	logger.SetDefault(log)
	ctx = logger.WithLogger(ctx, log.WithComponent("reprice"))
	ctx = appctx.WithUser(ctx, &appctx.UserContext{UserID: opts.user})

	poolCfg := postgres.DefaultPoolConfig(cfg.DB.URL)
	poolCfg.MaxConns = int32(cfg.Pricing.BulkWorkers) + 1
	poolCfg.MinConns = 1
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Errorw("failed to connect to database", "error", err)
		return exitFail
	}
	defer pool.Close()

	txm := postgres.NewTxManager(pool, postgres.WithStatementTimeout(cfg.DB.StatementTimeout))
	history := pricing_repo.NewHistoryRepo(txm)
	auditor, err := postgres.NewAuditService(txm)
	if err != nil {
		log.Errorw("failed to create audit service", "error", err)
		return exitFail
	}

	service := pricing.NewService(pricing.ServiceConfig{
		Configs:       pricing_repo.NewConfigRepo(txm),
		Entities:      pricing_repo.NewEntityRepo(txm),
		History:       history,
		HistoryReader: history,
		TxManager:     txm,
		Auditor:       auditor,
		BulkWorkers:   cfg.Pricing.BulkWorkers,
	})

	bulk, err := service.ApplyBulk(ctx, opts.request)
	if bulk == nil {
		log.Errorw("bulk markup failed", "error", err)
		return exitFail
	}
	printSummary(stdout, bulk)
	if err != nil {
		log.Warnw("bulk markup interrupted", "run_id", bulk.ID, "error", err)
	}
	return exitCode(bulk, err)
}

// exitCode is non-zero when the run was interrupted or any entity failed.
func exitCode(bulk *pricing.BulkRun, err error) int {
	if err != nil || len(bulk.Result.Failed) > 0 {
		return exitFail
	}
	return exitOK
}

func printSummary(w io.Writer, bulk *pricing.BulkRun) {
	fmt.Fprintf(w, "run %s: markup %s, %d entities, %d re-priced, %d failed (%s)\n",
		bulk.ID,
		bulk.Markup.String(),
		bulk.Result.Total(),
		len(bulk.Result.Succeeded),
		len(bulk.Result.Failed),
		bulk.FinishedAt.Sub(bulk.StartedAt).Round(time.Millisecond),
	)
	for _, f := range bulk.Result.Failed {
		fmt.Fprintf(w, "  %-48s %-18s %s\n", f.Ref.String(), f.ErrorKind, f.Message)
	}
}
