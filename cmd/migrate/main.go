package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"plaza.social/internal/migrate"
	"plaza.social/internal/obs"
)

func main() {
	var (
		dsn     = flag.String("dsn", os.Getenv("PLAZA_PG_DSN"), "PostgreSQL DSN")
		timeout = flag.Duration("timeout", 60*time.Second, "overall timeout")
	)
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "usage: migrate [-dsn DSN] up|down|seed|status|pending")
		flag.PrintDefaults()
	}
	flag.Parse()

	log := obs.Logger()
	if *dsn == "" {
		log.Fatal().Msg("missing DSN: provide via -dsn or PLAZA_PG_DSN")
	}
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("open db")
	}
	defer db.Close()

	mgr := migrate.NewManager(db, migrate.Migrations(), migrate.Seeds())

	cmd := flag.Arg(0)
	switch cmd {
	case "up":
		err = mgr.Up(ctx)
	case "down":
		err = mgr.Down(ctx)
	case "seed":
		err = mgr.Seed(ctx)
	case "status", "pending":
		var items []string
		if cmd == "status" {
			items, err = mgr.Status(ctx)
		} else {
			items, err = mgr.Pending(ctx)
		}
		for _, item := range items {
			fmt.Println(item)
		}
	default:
		log.Fatal().Str("command", cmd).Msg("unknown command")
	}
	if err != nil {
		log.Fatal().Err(err).Str("command", cmd).Msg("migrate failed")
	}
	log.Info().Str("command", cmd).Msg("migrate done")
}
