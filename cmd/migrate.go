package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-autonomax/app/migrate"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	RunE:  runMigrateUp,
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applied and pending migrations",
	RunE:  runMigrateStatus,
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateStatusCmd)
	rootCmd.AddCommand(migrateCmd)
}

// withMigrator opens the database, runs fn and closes everything it opened.
func withMigrator(ctx context.Context, fn func(*deps, *migrate.Migrator) error) error {
	d := loadDeps()
	defer d.Close()

	if err := d.openDB(ctx); err != nil {
		return err
	}
	guard, err := d.migrationGuard()
	if err != nil {
		return err
	}
	return fn(d, migrate.New(d.db, d.dialect, guard, d.logger))
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	return withMigrator(cmd.Context(), func(d *deps, m *migrate.Migrator) error {
		applied, err := m.Up(cmd.Context())
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		if len(applied) == 0 {
			d.logger.Info("Schema is up to date")
			return nil
		}
		d.logger.Infof("Applied %d migration(s)", len(applied))
		return nil
	})
}

func runMigrateStatus(cmd *cobra.Command, _ []string) error {
	return withMigrator(cmd.Context(), func(_ *deps, m *migrate.Migrator) error {
		status, err := m.Status(cmd.Context())
		if err != nil {
			return fmt.Errorf("read migration status: %w", err)
		}
		printMigrationStatus(status)
		return nil
	})
}

func printMigrationStatus(status []migrate.Status) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tNAME\tAPPLIED")
	for _, s := range status {
		fmt.Fprintf(w, "%03d\t%s\t%t\n", s.Version, s.Name, s.Applied)
	}
	_ = w.Flush()
}
