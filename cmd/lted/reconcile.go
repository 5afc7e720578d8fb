package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"lted/internal/flag/reconcile"
	"lted/internal/platform/metrics"
	platformpg "lted/internal/platform/postgres"
	id "lted/pkg/domain"
	"lted/pkg/requestcontext"
)

func reconcileCommand() *cobra.Command {
	var termID, sourceReport string
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Run one reconciliation pass and print its summary as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			req := reconcile.Request{}
			if termID != "" {
				parsed, err := id.ParseTermID(termID)
				if err != nil {
					return err
				}
				req.TermID = &parsed
			}
			if sourceReport != "" {
				req.SourceReportID = &sourceReport
			}

			ctx := cmd.Context()
			d, err := buildDeps(ctx, cfg, log, metrics.NewRegistry())
			if err != nil {
				return err
			}
			defer d.close()

			ctx = requestcontext.WithActor(ctx, id.SystemActor)
			res, err := d.reconciler.Run(ctx, req)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().StringVar(&termID, "term", "", "term to reconcile (defaults to the active term)")
	cmd.Flags().StringVar(&sourceReport, "source-report", "", "identifier of the registration report the voter data came from")
	return cmd
}

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return errMissingDatabase
			}
			db, err := openDB(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := platformpg.Migrate(cmd.Context(), db); err != nil {
				return err
			}
			log.Info("schema applied")
			return nil
		},
	}
}
