package cli

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finances/internal/backend"
	"finances/internal/config"
	"finances/internal/core"
	"finances/internal/log"
	"finances/internal/services"
	"finances/internal/storage/memory"
	"finances/internal/uploads"
)

func TestSetupLogger(t *testing.T) {
	cfg := &config.Config{LogLevel: "debug", LogFormat: "json"}
	logger := SetupLogger(cfg, log.ComponentWorker)
	assert.Equal(t, log.ComponentWorker, logger.Component())
	assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))
}

func TestNewServicesImportsThroughBackend(t *testing.T) {
	ctx := context.Background()
	src, err := uploads.NewLocalSource(t.TempDir())
	require.NoError(t, err)
	res := &backend.BackendResult{Repository: memory.New(), Uploads: src}

	svc := NewServices(&config.Config{CategoryCacheSize: 10}, res)

	csv := "title,type,value,category\nSalary,income,100,Job\nBus,outcome,2.5,Travel\n"
	require.NoError(t, src.Save(ctx, "jan.csv", strings.NewReader(csv)))

	got, err := svc.Importer.Import(ctx, "jan.csv")
	require.NoError(t, err)
	assert.Len(t, got.Transactions, 2)
	assert.Equal(t, 2, svc.CategoryCache.Size())

	b, err := svc.Ledger.Balance(ctx)
	require.NoError(t, err)
	assert.Equal(t, "97.50", b.Total.StringFixed(2))

	_, err = svc.Ledger.Create(ctx, services.NewTransaction{
		Title: "Ticket", Value: b.Total.Add(b.Total), Type: core.Outcome, CategoryTitle: "Travel",
	})
	assert.Error(t, err)
}
