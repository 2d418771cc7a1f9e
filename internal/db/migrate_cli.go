package db

import (
	"fmt"
	"strconv"
)

// RunMigrateCommand executes one migrate action (up, down, version,
// force <n>) against the database at dbPath. The database is opened without
// automatic schema setup so down and version observe the schema as it is.
func RunMigrateCommand(args []string, dbPath string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: migrate <up|down|version|force <version>>")
	}

	database, err := Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	switch action := args[0]; action {
	case "up":
		if err := database.MigrateUp(); err != nil {
			return err
		}
		fmt.Println("migrations applied")
		return nil

	case "down":
		if err := database.MigrateDown(); err != nil {
			return err
		}
		fmt.Println("rolled back one migration")
		return nil

	case "version":
		version, dirty, err := database.MigrateVersion()
		if err != nil {
			return err
		}
		fmt.Printf("schema version %d (dirty=%v)\n", version, dirty)
		return nil

	case "force":
		if len(args) < 2 {
			return fmt.Errorf("usage: migrate force <version>")
		}
		version, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[1], err)
		}
		return database.MigrateForce(version)

	default:
		return fmt.Errorf("unknown migrate action %q", action)
	}
}
