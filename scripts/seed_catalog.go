package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"salon/internal/database"
	"salon/internal/models"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type catalogFile struct {
	Products []models.Product `yaml:"products"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run loads the product catalog into the store. Existing SKUs keep their
// stock; only the catalog fields are refreshed.
func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		catalogPath = flag.String("catalog", "configs/catalog.yaml", "path to catalog.yaml")
		dbPath      = flag.String("db", "./data/salon.db", "path to sqlite db")
	)
	flag.Parse()

	data, err := os.ReadFile(*catalogPath)
	if err != nil {
		return fmt.Errorf("read catalog: %w", err)
	}
	var catalog catalogFile
	if err = yaml.Unmarshal(data, &catalog); err != nil {
		return fmt.Errorf("parse catalog: %w", err)
	}
	if len(catalog.Products) == 0 {
		return fmt.Errorf("no products in yaml")
	}

	db, err := database.NewDB(*dbPath, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	imported, skipped := 0, 0
	for i := range catalog.Products {
		p := &catalog.Products[i]
		p.SKU = strings.TrimSpace(p.SKU)
		if p.SKU == "" || strings.TrimSpace(p.Name) == "" {
			logger.Warn().Int("index", i).Msg("product without sku or name skipped")
			skipped++
			continue
		}
		if err = db.UpsertProductBySKU(ctx, p); err != nil {
			return fmt.Errorf("upsert %s: %w", p.SKU, err)
		}
		imported++
	}

	logger.Info().Int("imported", imported).Int("skipped", skipped).Msg("catalog seeded")
	return nil
}
