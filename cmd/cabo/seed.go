package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"cabo/internal/database"
	"cabo/internal/models"
	"cabo/internal/service"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// seedFile lists entries per content kind. Entries use the same keys as
// the JSON API so one document shape serves both.
type seedFile struct {
	Villas      []map[string]interface{} `yaml:"villas"`
	Resorts     []map[string]interface{} `yaml:"resorts"`
	Adventures  []map[string]interface{} `yaml:"adventures"`
	Restaurants []map[string]interface{} `yaml:"restaurants"`
}

type seedResult struct {
	Kind    string
	Created int
	Updated int
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upsert villas, resorts, adventures and restaurants from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			path, _ := cmd.Flags().GetString("file")
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read seed: %w", err)
			}

			db, err := e.openDB()
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.Migrate(); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			results, err := seedContent(ctx, db, data)
			for _, r := range results {
				e.logger.Info().Str("kind", r.Kind).Int("created", r.Created).Int("updated", r.Updated).Msg("seeded")
			}
			return err
		},
	}
	cmd.Flags().String("file", "configs/content.yaml", "path to the content YAML")
	return cmd
}

func seedContent(ctx context.Context, db *database.DB, data []byte) ([]seedResult, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	if len(f.Villas)+len(f.Resorts)+len(f.Adventures)+len(f.Restaurants) == 0 {
		return nil, errors.New("no entries in seed file")
	}

	var results []seedResult
	steps := []func() (seedResult, error){
		func() (seedResult, error) { return upsertAll[models.Villa](ctx, db, models.KindVilla, f.Villas) },
		func() (seedResult, error) { return upsertAll[models.Resort](ctx, db, models.KindResort, f.Resorts) },
		func() (seedResult, error) { return upsertAll[models.Adventure](ctx, db, models.KindAdventure, f.Adventures) },
		func() (seedResult, error) { return upsertAll[models.Restaurant](ctx, db, models.KindRestaurant, f.Restaurants) },
	}
	for _, step := range steps {
		r, err := step()
		results = append(results, r)
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

// upsertAll creates each entry, or updates the existing row with the same slug.
func upsertAll[T database.Content, PT service.Entry[T]](ctx context.Context, db *database.DB, kind string, entries []map[string]interface{}) (seedResult, error) {
	res := seedResult{Kind: kind}
	store := database.NewContentStore[T](db, kind)
	svc := service.NewContentService[T, PT](store, nil, 0, nil)

	for i, raw := range entries {
		if _, ok := raw["published"]; !ok {
			raw["published"] = true
		}
		b, err := json.Marshal(raw)
		if err != nil {
			return res, fmt.Errorf("%s[%d]: %w", kind, i, err)
		}
		var item T
		if err := json.Unmarshal(b, &item); err != nil {
			return res, fmt.Errorf("%s[%d]: %w", kind, i, err)
		}

		err = svc.Create(ctx, &item)
		if err == nil {
			res.Created++
			continue
		}
		if !errors.Is(err, database.ErrDuplicate) {
			return res, fmt.Errorf("create %s %q: %w", kind, PT(&item).Base().Name, err)
		}

		existing, err := store.GetBySlug(ctx, PT(&item).Base().Slug)
		if err != nil {
			return res, fmt.Errorf("get %s %q: %w", kind, PT(&item).Base().Slug, err)
		}
		if err := svc.Update(ctx, PT(existing).Base().ID, &item); err != nil {
			return res, fmt.Errorf("update %s %q: %w", kind, PT(&item).Base().Slug, err)
		}
		res.Updated++
	}
	return res, nil
}
