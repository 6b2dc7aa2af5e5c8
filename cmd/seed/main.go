package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/freshmarket/grocery-backend/internal/seed"
	"github.com/freshmarket/grocery-backend/pkg/config"
	"github.com/freshmarket/grocery-backend/pkg/db"
	"github.com/freshmarket/grocery-backend/pkg/logger"
	"github.com/freshmarket/grocery-backend/pkg/migrate"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "seed"})

	_ = godotenv.Load()

	withMigrate := flag.Bool("migrate", false, "apply schema migrations before seeding")
	demo := flag.Bool("demo", false, "also create the demo customer and vendor accounts")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logg.Error(ctx, "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "seed",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	if *withMigrate {
		if err := migrate.Apply(ctx, dbClient); err != nil {
			logg.Error(ctx, "failed to apply migrations", err)
			os.Exit(1)
		}
	}

	seedCfg := cfg.Seed
	if *demo {
		seedCfg.DemoUsers = true
	}

	entries, err := seed.Run(ctx, dbClient, seed.Options{Seed: seedCfg, Password: cfg.Password}, logg)
	if err != nil {
		logg.Error(ctx, "seed failed", err)
		os.Exit(1)
	}

	if err := printEntries(entries); err != nil {
		fmt.Fprintf(os.Stderr, "failed to render summary: %v\n", err)
		os.Exit(1)
	}
}

func printEntries(entries []seed.Entry) error {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Kind", "Name", "Action")
	for _, e := range entries {
		if err := table.Append(e.Kind, e.Name, e.Action); err != nil {
			return err
		}
	}
	return table.Render()
}
