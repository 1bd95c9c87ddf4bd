package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"cabo/internal/migrate"
	"cabo/internal/worker"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the schema and copy data from the legacy database",
	}
	cmd.AddCommand(migrateSchemaCmd(), migrateDataCmd(), migrateVerifyCmd())
	return cmd
}

func migrateSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Create or update tables in the configured database",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			db, err := e.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.Migrate(); err != nil {
				return fmt.Errorf("migrate schema: %w", err)
			}
			e.logger.Info().Str("driver", db.Driver()).Msg("schema up to date")
			return nil
		},
	}
}

func migrateDataCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "data",
		Short: "Copy rows from legacy.dsn into the configured database",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, c, cleanup, err := newCopier(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			reports, runErr := c.Run(cmd.Context())
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TABLE\tREAD\tINSERTED\tSKIPPED\tFAILED\tDURATION\tERROR")
			for _, r := range reports {
				fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%s\t%s\n", r.Table, r.Read, r.Inserted, r.Skipped, r.Failed, r.Duration.Round(time.Millisecond), r.Error)
			}
			_ = w.Flush()

			if runErr != nil {
				return runErr
			}
			for _, r := range reports {
				if r.Failed > 0 {
					e.logger.Warn().Str("table", r.Table).Int("failed", r.Failed).Msg("rows failed to copy")
				}
			}
			return nil
		},
	}
	cmd.Flags().StringSlice("tables", nil, "tables to copy, in order (default: legacy.tables or the built-in list)")
	cmd.Flags().Int("batch-size", 0, "rows per batch (default: legacy.batch_size)")
	cmd.Flags().Duration("delay", 0, "pause between batches (default: legacy.batch_delay)")
	cmd.Flags().String("on-conflict", "", "nothing or error (default: legacy.on_conflict)")
	cmd.Flags().Bool("dry-run", false, "read the source without writing")
	return cmd
}

func migrateVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Compare row counts between the legacy and the configured database",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, c, cleanup, err := newCopier(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			counts, err := c.Verify(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TABLE\tSOURCE\tDEST\tSTATUS")
			mismatches := 0
			for _, r := range counts {
				status := "ok"
				if !r.Match() {
					status = "MISMATCH"
					mismatches++
				}
				fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", r.Table, r.Source, r.Dest, status)
			}
			_ = w.Flush()
			if mismatches > 0 {
				return fmt.Errorf("%d tables differ", mismatches)
			}
			return nil
		},
	}
	cmd.Flags().StringSlice("tables", nil, "tables to compare")
	return cmd
}

func newCopier(cmd *cobra.Command) (*env, *migrate.Copier, func(), error) {
	e, err := loadEnv(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	if e.cfg.Legacy.DSN == "" {
		e.Close()
		return nil, nil, nil, errors.New("legacy.dsn is not configured")
	}

	src, err := migrate.Open("postgres", e.cfg.Legacy.DSN)
	if err != nil {
		e.Close()
		return nil, nil, nil, fmt.Errorf("legacy: %w", err)
	}
	dsn := e.cfg.Database.DSN
	if e.cfg.Database.Driver == "sqlite" {
		dsn = e.cfg.Database.Path
	}
	dst, err := migrate.Open(e.cfg.Database.Driver, dsn)
	if err != nil {
		_ = src.Close()
		e.Close()
		return nil, nil, nil, fmt.Errorf("destination: %w", err)
	}

	opts := migrate.Options{
		Tables:     e.cfg.Legacy.Tables,
		KeyColumn:  e.cfg.Legacy.KeyColumn,
		BatchSize:  e.cfg.Legacy.BatchSize,
		BatchDelay: e.cfg.Legacy.BatchDelay,
		OnConflict: e.cfg.Legacy.OnConflict,
		Retry: worker.RetryPolicy{
			MaxRetries:    e.cfg.Worker.MaxRetries,
			InitialDelay:  e.cfg.Worker.InitialDelay,
			MaxDelay:      e.cfg.Worker.MaxDelay,
			BackoffFactor: e.cfg.Worker.BackoffFactor,
		},
	}
	applyCopierFlags(cmd, &opts)

	cleanup := func() {
		closeAll(src, dst)
		e.Close()
	}
	return e, migrate.NewCopier(src, dst, opts, e.logger), cleanup, nil
}

func applyCopierFlags(cmd *cobra.Command, opts *migrate.Options) {
	flags := cmd.Flags()
	if tables, _ := flags.GetStringSlice("tables"); len(tables) > 0 {
		opts.Tables = tables
	}
	if flags.Lookup("batch-size") == nil {
		return
	}
	if n, _ := flags.GetInt("batch-size"); n > 0 {
		opts.BatchSize = n
	}
	if d, _ := flags.GetDuration("delay"); d > 0 {
		opts.BatchDelay = d
	}
	if m, _ := flags.GetString("on-conflict"); m != "" {
		opts.OnConflict = m
	}
	opts.DryRun, _ = flags.GetBool("dry-run")
}

func closeAll(dbs ...*sqlx.DB) {
	for _, db := range dbs {
		_ = db.Close()
	}
}
