package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"finances/internal/cli"
	"finances/internal/config"
	"finances/internal/log"
	"finances/internal/services"
	"finances/internal/uploads"
)

func run(ctx context.Context, cfg *config.Config, logger *log.Logger, path string, keep bool) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	res := cli.OpenBackend(ctx, logger, cfg)
	defer res.Cleanup()

	name := uploads.NewName(filepath.Base(path))
	if err := res.Uploads.Save(ctx, name, f); err != nil {
		return fmt.Errorf("stage upload: %w", err)
	}

	svc := cli.NewServices(cfg, res)
	result, err := svc.Importer.Import(ctx, name)
	if err != nil {
		if !keep {
			if delErr := res.Uploads.Delete(ctx, name); delErr != nil {
				logger.Warn("Failed to remove staged upload", log.FieldFileName, name, log.FieldError, delErr)
			}
		}
		return err
	}

	balance, err := svc.Ledger.Balance(ctx)
	if err != nil {
		return err
	}
	report(os.Stdout, result, balance.Total.StringFixed(2))
	return nil
}

func report(w io.Writer, result services.ImportResult, total string) {
	fmt.Fprintf(w, "imported %d transactions (%d rows dropped, %d new categories)\n",
		len(result.Transactions), result.Dropped, result.CategoriesCreated)
	for _, t := range result.Transactions {
		fmt.Fprintf(w, "  %-8s %10s  %-30s %s\n", t.Type, t.Value.StringFixed(2), t.Title, t.Category.Title)
	}
	fmt.Fprintf(w, "balance: %s\n", total)
}
