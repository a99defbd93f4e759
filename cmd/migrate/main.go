// Command migrate applies or rolls back the teams schema.
//
//	migrate [-timeout 1m] up|status|down [version]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/splax/teamhub/internal/app/migrate"
	"github.com/splax/teamhub/pkg/config"
	"github.com/splax/teamhub/pkg/logger"
)

func main() {
	timeout := flag.Duration("timeout", time.Minute, "command timeout")
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "usage: migrate [-timeout d] up|status|down [version]")
		flag.PrintDefaults()
	}
	flag.Parse()

	command := flag.Arg(0)
	if command == "" {
		command = "up"
	}
	var target int64
	if command == "down" && flag.NArg() > 1 {
		v, err := strconv.ParseInt(flag.Arg(1), 10, 64)
		if err != nil || v < 0 {
			fmt.Fprintf(os.Stderr, "invalid target version %q\n", flag.Arg(1))
			os.Exit(2)
		}
		target = v
	}

	cfg, err := config.LoadAPIConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.New("migrate", logger.ParseLevel(cfg.LogLevel)).With("command", command)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := run(ctx, cfg, command, target, log); err != nil {
		log.Error("migration command failed", "error", err)
		os.Exit(1)
	}
	log.Info("migration command completed")
}

func run(ctx context.Context, cfg config.APIConfig, command string, target int64, log *slog.Logger) error {
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	runner, err := migrate.New(pool, cfg.DatabaseURL, cfg.MigrationsDir, log)
	if err != nil {
		pool.Close()
		return fmt.Errorf("configure migration runner: %w", err)
	}
	defer runner.Close()

	switch command {
	case "up":
		return runner.Ensure(ctx)
	case "status":
		return runner.Status(ctx)
	case "down":
		if target == 0 {
			log.Warn("rolling back the latest migration")
		}
		return runner.Down(ctx, target)
	default:
		return fmt.Errorf("unsupported command %q", command)
	}
}
