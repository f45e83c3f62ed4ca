package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"

	"peopledesk.org/internal/migrate"
)

func main() {
	var (
		dsn           = flag.String("dsn", os.Getenv("PEOPLEDESK_PG_DSN"), "postgres connection string")
		migrationsDir = flag.String("migrations", "ops/migrations/sql", "directory with .up.sql/.down.sql files")
		seedsDir      = flag.String("seeds", "ops/migrations/seeds", "directory with seed .sql files")
	)
	flag.Parse()

	cmd := flag.Arg(0)
	if cmd == "" {
		log.Fatal("usage: migrate [flags] up|down|seed|status")
	}
	if *dsn == "" {
		log.Fatal("missing -dsn (or PEOPLEDESK_PG_DSN)")
	}

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	mgr := migrate.NewManager(db, *migrationsDir, *seedsDir)

	switch cmd {
	case "up":
		err = mgr.Up(ctx)
	case "down":
		err = mgr.Down(ctx)
	case "seed":
		err = mgr.Seed(ctx)
	case "status":
		var applied []string
		applied, err = mgr.Status(ctx)
		if err == nil {
			if len(applied) == 0 {
				fmt.Println("no migrations applied")
			}
			for _, name := range applied {
				fmt.Println(name)
			}
		}
	default:
		log.Fatalf("unknown command %q", cmd)
	}
	if err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
}
