package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cabo/internal/models"
	"cabo/internal/service"

	"github.com/spf13/cobra"
)

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write spreadsheet exports to exports.path",
	}
	leads := &cobra.Command{
		Use:   "leads",
		Short: "Export leads to an xlsx file",
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

			f := models.LeadFilter{}
			f.Status, _ = cmd.Flags().GetString("status")
			f.FormType, _ = cmd.Flags().GetString("form")
			if since, _ := cmd.Flags().GetString("since"); since != "" {
				t, err := time.Parse("2006-01-02", since)
				if err != nil {
					return fmt.Errorf("since must be YYYY-MM-DD: %w", err)
				}
				f.Since = t
			}

			data, err := service.NewLeadService(db, nil, nil, service.LeadOptions{}, e.logger).Export(cmd.Context(), f)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(e.cfg.Exports.Path, 0o755); err != nil {
				return fmt.Errorf("create exports dir: %w", err)
			}
			path := filepath.Join(e.cfg.Exports.Path, fmt.Sprintf("leads_%s.xlsx", time.Now().Format("20060102_150405")))
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return fmt.Errorf("write export: %w", err)
			}
			fmt.Println(path)
			return nil
		},
	}
	leads.Flags().String("status", "", "only leads with this status")
	leads.Flags().String("form", "", "only leads from this form")
	leads.Flags().String("since", "", "only leads created on or after YYYY-MM-DD")
	cmd.AddCommand(leads)
	return cmd
}
