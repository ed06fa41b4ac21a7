package main

import (
	"flag"
	"fmt"
	"os"

	"climate-records/internal/config"
	"climate-records/pkg/database"
	"climate-records/pkg/logging"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up, down or version")
	force := flag.Int("force", -1, "Force the schema version (clears a dirty flag) and exit")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("climate-records-migrate", "1.0.0", cfg.LogLevel())
	defer logger.Sync()

	ms := database.NewMigrationService(cfg.DBConfig(), logger)

	if *force >= 0 {
		if err := ms.Force(*force); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to force version %d: %v\n", *force, err)
			os.Exit(1)
		}
		fmt.Printf("Schema version forced to %d\n", *force)
		return
	}

	switch *direction {
	case "up":
		err = ms.Up()
	case "down":
		err = ms.Down()
	case "version":
	default:
		fmt.Fprintf(os.Stderr, "Unknown direction %q, expected up, down or version\n", *direction)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to run migration %s: %v\n", *direction, err)
		os.Exit(1)
	}

	v, dirty, err := ms.Version()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read schema version: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Schema version: %d (dirty: %t)\n", v, dirty)
}
