package admin

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// importerTables lists every importer-owned table, children before parents so
// truncation order never trips a foreign key.
var importerTables = []string{
	"location_option_meta_links",
	"filter_option_meta_links",
	"location_option_meta",
	"filter_option_meta",
	"location_meta",
	"filter_meta",
	"indicator_meta",
	"time_period_meta",
	"geographic_level_meta",
	"data_set_version_imports",
	"data_set_versions",
}

// ResetDB truncates every importer table and restarts the public-id
// sequences. Destructive; prompts unless skipConfirm is set.
func ResetDB(log *slog.Logger, cfg PgMigrateConfig, dryRun, skipConfirm bool) error {
	db, err := openPgDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Printf("⚠️  WARNING: This will TRUNCATE %d table(s) in database '%s':\n\n", len(importerTables), cfg.Database)
	for _, table := range importerTables {
		fmt.Printf("  - %s\n", table)
	}

	if dryRun {
		fmt.Println("\n[DRY RUN] Would truncate the above tables")
		return nil
	}

	if !skipConfirm {
		fmt.Printf("\n⚠️  This is a DESTRUCTIVE operation that cannot be undone!\n")
		fmt.Printf("Type 'yes' to confirm: ")

		reader := bufio.NewReader(os.Stdin)
		response, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}

		response = strings.TrimSpace(strings.ToLower(response))
		if response != "yes" {
			fmt.Printf("\nConfirmation failed. Operation cancelled.\n")
			return nil
		}
		fmt.Println()
	}

	fmt.Println("Truncating tables...")
	query := fmt.Sprintf("TRUNCATE %s RESTART IDENTITY CASCADE", strings.Join(importerTables, ", "))
	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("failed to truncate tables: %w", err)
	}
	for _, seq := range []string{"location_option_meta_id_seq", "filter_option_meta_link_seq"} {
		if _, err := db.Exec(fmt.Sprintf("ALTER SEQUENCE %s RESTART WITH 1", seq)); err != nil {
			return fmt.Errorf("failed to restart sequence %s: %w", seq, err)
		}
	}

	fmt.Printf("\nSuccessfully truncated %d table(s)\n", len(importerTables))
	return nil
}
