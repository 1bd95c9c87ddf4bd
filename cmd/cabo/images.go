package main

import (
	"fmt"

	"cabo/internal/imageopt"
	"cabo/internal/metrics"

	"github.com/spf13/cobra"
)

func imagesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "images",
		Short: "Image maintenance",
	}
	cmd.AddCommand(imagesOptimizeCmd())
	return cmd
}

func imagesOptimizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "optimize [dir]",
		Short: "Resize and recompress JPEG/PNG files and write WebP siblings",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()
			metrics.Register()

			dir := e.cfg.Images.Dir
			if len(args) == 1 {
				dir = args[0]
			}
			maxWidth, _ := cmd.Flags().GetInt("max-width")
			if maxWidth <= 0 {
				maxWidth = e.cfg.Images.MaxWidth
			}
			dryRun, _ := cmd.Flags().GetBool("dry-run")

			opt := imageopt.New(imageopt.Options{
				MaxWidth:    maxWidth,
				JPEGQuality: e.cfg.Images.JPEGQuality,
				WebPQuality: e.cfg.Images.WebPQuality,
				DryRun:      dryRun,
			}, e.logger)

			stats, err := opt.OptimizeDir(cmd.Context(), dir)
			if err != nil {
				return err
			}
			fmt.Printf("processed=%d skipped=%d failed=%d webp=%d saved=%d bytes (%.1f%%)\n",
				stats.Processed, stats.Skipped, stats.Failed, stats.WebPCreated, stats.Saved(), stats.SavedPercent())
			if stats.Failed > 0 {
				return fmt.Errorf("%d images failed", stats.Failed)
			}
			return nil
		},
	}
	cmd.Flags().Int("max-width", 0, "maximum width in pixels (default: images.max_width)")
	cmd.Flags().Bool("dry-run", false, "report savings without rewriting files")
	return cmd
}
