package main

import (
	"context"
	"fmt"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/clinic/clinic/internal/config"
	"github.com/clinic/clinic/internal/domain/importer"
	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/migrations"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "clinic-server",
		Short:        "Clinic practice management API server",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(adminCmd())
	return rootCmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

// newLogger builds the process logger and installs it as the global one.
func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg != nil && cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	log.Logger = logger
	return logger
}

// openPool loads the config and connects to the database. Used by the
// one-shot commands; the server does its own wiring.
func openPool(ctx context.Context) (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns, db.PoolOptions{
		ApplicationName: "clinic-cli",
	})
	if err != nil {
		return nil, nil, err
	}
	return cfg, pool, nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	withMigrator := func(fn func(ctx context.Context, m *db.Migrator) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			m, err := db.NewMigrator(pool, migrations.FS)
			if err != nil {
				return err
			}
			defer m.Close()
			return fn(ctx, m)
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: withMigrator(func(ctx context.Context, m *db.Migrator) error {
			count, err := m.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		RunE: withMigrator(func(ctx context.Context, m *db.Migrator) error {
			path, err := m.Down(ctx)
			if err != nil {
				return err
			}
			if path == "" {
				fmt.Println("Nothing to roll back.")
				return nil
			}
			fmt.Printf("Rolled back %s\n", path)
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: withMigrator(func(ctx context.Context, m *db.Migrator) error {
			statuses, err := m.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		}),
	})

	return cmd
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Bulk import spreadsheets (CSV or XLSX)",
	}

	run := func(kind string) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("file")
			if path == "" {
				return fmt.Errorf("--file is required")
			}
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()

			table, err := importer.ReadTable(path, f)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			cfg, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			logger := newLogger(cfg)
			loc, err := cfg.Location()
			if err != nil {
				return err
			}
			svc := newServices(pool, cfg, loc, localBackends(logger), nil, logger)

			var res *importer.Result
			if kind == "clients" {
				res, err = svc.importer.ImportClients(ctx, table)
			} else {
				res, err = svc.importer.ImportAppointments(ctx, table)
			}
			if err != nil {
				return err
			}
			printResult(cmd, res)
			return nil
		}
	}

	for _, kind := range []string{"clients", "appointments"} {
		sub := &cobra.Command{
			Use:   kind,
			Short: fmt.Sprintf("Import %s from a spreadsheet", kind),
			RunE:  run(kind),
		}
		sub.Flags().String("file", "", "Path to a .csv or .xlsx file")
		cmd.AddCommand(sub)
	}
	return cmd
}

func printResult(cmd *cobra.Command, res *importer.Result) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Imported: %d\nSkipped:  %d\n", res.Imported, res.Skipped)
	for _, e := range res.Errors {
		fmt.Fprintf(out, "  %s\n", e)
	}
}

func adminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage administrator accounts",
	}

	bootstrap := &cobra.Command{
		Use:   "bootstrap",
		Short: "Create the first administrator",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			name, _ := cmd.Flags().GetString("name")
			password, _ := cmd.Flags().GetString("password")
			if password == "" {
				password = os.Getenv("ADMIN_PASSWORD")
			}
			if email == "" || name == "" || password == "" {
				return fmt.Errorf("--email, --name and --password (or ADMIN_PASSWORD) are required")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			cfg, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			logger := newLogger(cfg)
			loc, err := cfg.Location()
			if err != nil {
				return err
			}
			svc := newServices(pool, cfg, loc, localBackends(logger), nil, logger)

			p, err := svc.accounts.Bootstrap(ctx, email, name, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created admin %s (%s)\n", p.Email, p.UserID)
			return nil
		},
	}
	bootstrap.Flags().String("email", "", "Admin e-mail")
	bootstrap.Flags().String("name", "", "Admin display name")
	bootstrap.Flags().String("password", "", "Admin password")
	cmd.AddCommand(bootstrap)
	return cmd
}
