package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"nexus_terminal/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleExport() SessionExport {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return SessionExport{
		ExportedAt: at,
		Portfolio: models.PortfolioSnapshot{
			Balances: map[models.CurrencyCode]decimal.Decimal{models.USD: decimal.NewFromInt(22446)},
			Positions: []models.Position{{
				ID:           "p1",
				Asset:        "BTC",
				Side:         models.SideBuy,
				EntryPrice:   decimal.NewFromInt(91240),
				CurrentPrice: decimal.NewFromInt(91240),
				Size:         decimal.RequireFromString("0.85"),
				Currency:     models.USD,
				CreatedAt:    at,
			}},
			TakenAt: at,
		},
	}
}

func TestWriteExportRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	require.NoError(t, WriteExport(path, sampleExport()))

	got, err := ReadExport(path)
	require.NoError(t, err)
	assert.Equal(t, ExportVersion, got.Version)
	require.Len(t, got.Portfolio.Positions, 1)
	assert.Equal(t, "BTC", got.Portfolio.Positions[0].Asset)
	assert.True(t, got.Portfolio.Balances[models.USD].Equal(decimal.NewFromInt(22446)))
}

func TestWriteExportReplacesAndLeavesNoTemp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.json")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o644))

	require.NoError(t, WriteExport(path, sampleExport()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp file must be renamed away")
	assert.Equal(t, "session.json", entries[0].Name())

	_, err = ReadExport(path)
	assert.NoError(t, err)
}

func TestWriteExportMissingDirectory(t *testing.T) {
	err := WriteExport(filepath.Join(t.TempDir(), "missing", "session.json"), sampleExport())
	assert.Error(t, err)
}

func TestReadExportCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))

	_, err := ReadExport(path)
	assert.Error(t, err)
}

func TestReadExportMissingFile(t *testing.T) {
	_, err := ReadExport(filepath.Join(t.TempDir(), "session.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
