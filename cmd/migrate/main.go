// migrate applies the embedded audit archive migrations to DATABASE_URL; use go run ./cmd/migrate.
package main

import (
	"flag"
	"fmt"
	"os"

	"docaudit/internal/config"
	"docaudit/internal/db/migrate"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if cfg.DatabaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
		os.Exit(1)
	}

	dir, err := migrate.ParseDirection(*direction)
	if err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(2)
	}
	if err := migrate.Run(cfg.DatabaseURL, dir); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}

	version, dirty, ok, err := migrate.Version(cfg.DatabaseURL)
	switch {
	case err != nil:
		fmt.Fprintln(os.Stderr, "migrate: read version:", err)
		os.Exit(1)
	case !ok:
		fmt.Println("migrate: no migrations applied")
	default:
		fmt.Printf("migrate: at version %d (dirty=%t)\n", version, dirty)
	}
}
