// Package main seeds the pricing tables: the global configuration singleton,
// the default category markups and, optionally, a demo catalogue.
// Running it twice leaves the database unchanged.
package main

import (
	"context"
	"fmt"
	"os"

	"farmacia/internal/config"
	"farmacia/internal/core/apperror"
	appctx "farmacia/internal/core/context"
	"farmacia/internal/core/id"
	"farmacia/internal/core/types"
	"farmacia/internal/domain/pricing"
	"farmacia/internal/infrastructure/storage/postgres"
	"farmacia/internal/infrastructure/storage/postgres/pricing_repo"
	"farmacia/pkg/logger"
)

var defaultGlobal = pricing.GlobalPricingConfig{
	DefaultMarkup: types.MustDecimal("2.00"),
	MinMarkup:     types.MustDecimal("1.00"),
	MaxMarkup:     types.MustDecimal("10.00"),
	UpdatedBy:     appctx.SystemUser,
}

func strPtr(s string) *string { return &s }

var defaultCategories = []pricing.CategoryMarkup{
	{CategoryName: "alopaticos", DefaultMarkup: types.MustDecimal("2.50"), Active: true, Description: strPtr("Medicamentos alopáticos")},
	{CategoryName: "genericos", DefaultMarkup: types.MustDecimal("3.00"), Active: true, Description: strPtr("Medicamentos genéricos")},
	{CategoryName: "embalagens", DefaultMarkup: types.MustDecimal("1.50"), Active: true, Description: strPtr("Frascos, potes e envelopes")},
	{CategoryName: "insumos", DefaultMarkup: types.MustDecimal("1.80"), Active: true, Description: strPtr("Matérias-primas de manipulação")},
}

type demoEntity struct {
	Type     pricing.EntityType
	Name     string
	Cost     string
	Category string
}

var demoEntities = []demoEntity{
	{pricing.EntityProduct, "Dipirona 500mg 10cp", "4.20", "alopaticos"},
	{pricing.EntityProduct, "Paracetamol 750mg 20cp", "6.85", "genericos"},
	{pricing.EntityProduct, "Omeprazol 20mg 28cps", "11.40", "genericos"},
	{pricing.EntityProduct, "Protetor solar FPS 50", "32.90", ""},
	{pricing.EntitySupply, "Lactose monoidratada 1kg", "48.00", "insumos"},
	{pricing.EntitySupply, "Cápsula gelatinosa nº0 1000un", "27.50", "insumos"},
	{pricing.EntityPackaging, "Pote 60g branco", "0.95", "embalagens"},
	{pricing.EntityPackaging, "Frasco âmbar 100ml", "1.35", "embalagens"},
}

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{Level: cfg.App.LogLevel, Development: true})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx := logger.WithLogger(context.Background(), log)

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(cfg.DB.URL))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	log.Info("connected to database")

	txm := postgres.NewTxManager(pool)
	configs := pricing_repo.NewConfigRepo(txm)

	err = txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := seedGlobalConfig(ctx, configs, log); err != nil {
			return err
		}
		return seedCategories(ctx, configs, log)
	})
	if err != nil {
		log.Fatalw("failed to seed pricing configuration", "error", err)
	}

	if os.Getenv("SEED_DEMO_DATA") == "true" {
		if err := seedDemoEntities(ctx, configs, pricing_repo.NewEntityRepo(txm), log); err != nil {
			log.Fatalw("failed to seed demo data", "error", err)
		}
	}

	log.Info("seeding completed successfully")
}

func seedGlobalConfig(ctx context.Context, configs *pricing_repo.ConfigRepo, log *logger.Logger) error {
	global := defaultGlobal
	if err := global.Validate(); err != nil {
		return err
	}
	created, err := configs.ProvisionGlobalConfig(ctx, &global)
	if err != nil {
		return err
	}
	if created {
		log.Infow("global pricing config provisioned", "default_markup", global.DefaultMarkup.String())
	} else {
		log.Info("global pricing config already exists, skipping")
	}
	return nil
}

func seedCategories(ctx context.Context, configs *pricing_repo.ConfigRepo, log *logger.Logger) error {
	for _, c := range defaultCategories {
		if _, err := configs.GetCategoryByName(ctx, c.CategoryName); err == nil {
			log.Debugw("category already exists", "category", c.CategoryName)
			continue
		} else if !apperror.IsNotFound(err) {
			return err
		}

		if err := c.Validate(); err != nil {
			return err
		}
		if err := configs.CreateCategory(ctx, &c); err != nil {
			return err
		}
		log.Infow("category created", "category", c.CategoryName, "markup", c.DefaultMarkup.String())
	}
	return nil
}

// seedDemoEntities inserts a small catalogue priced with the seeded
// configuration. IDs are derived from type and name so reruns are no-ops.
func seedDemoEntities(ctx context.Context, configs *pricing_repo.ConfigRepo, entities *pricing_repo.EntityRepo, log *logger.Logger) error {
	global, err := configs.GetGlobalConfig(ctx)
	if err != nil {
		return err
	}

	for _, d := range demoEntities {
		e := &pricing.PricedEntity{
			Type:      d.Type,
			ID:        id.FromName(string(d.Type) + "/" + d.Name),
			Name:      d.Name,
			CostPrice: types.MustDecimal(d.Cost),
			Version:   1,
		}

		snap := pricing.Snapshot{Global: global}
		if d.Category != "" {
			e.CategoryName = strPtr(d.Category)
			cat, err := configs.GetCategoryByName(ctx, d.Category)
			if err != nil && !apperror.IsNotFound(err) {
				return err
			}
			snap.Category = cat
		}

		res, err := pricing.ResolveSnapshot(snap, e, nil)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", d.Name, err)
		}
		quote, err := pricing.ComputeSalePrice(e.CostPrice, res.Markup)
		if err != nil {
			return fmt.Errorf("price %s: %w", d.Name, err)
		}
		e.Markup = res.Markup
		e.SalePrice = quote.SalePrice

		if err := entities.Create(ctx, e); err != nil {
			return err
		}
		log.Infow("demo entity seeded",
			"entity", e.Ref().String(),
			"markup", e.Markup.String(),
			"sale_price", e.SalePrice.String(),
		)
	}
	return nil
}
