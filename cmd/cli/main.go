package main

import (
	"os"

	"github.com/ledgerkraft/bookkeeping/internal/config"
	"github.com/ledgerkraft/bookkeeping/pkg/logger"
	"github.com/ledgerkraft/bookkeeping/pkg/pg"
)

// main.go --env=.env --dir=./migrations
func main() {
	err := config.Load(config.EnvPath(os.Args, ".env"))
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	dir := config.ArgValue(os.Args, "dir")
	if dir == "" {
		dir = "./migrations"
	}
	if _, err := os.Stat(dir); err != nil {
		logger.Error("migration: directory not readable", "dir", dir, "error", err)
		os.Exit(1)
	}

	if err = pg.Migrate(config.Get().PostgresWrite(), dir); err != nil {
		logger.Error("migration: error running migrations", "error", err)
		os.Exit(1)
	}
}
