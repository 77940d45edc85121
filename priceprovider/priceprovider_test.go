package priceprovider_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quantlab/synthdiv/priceprovider"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestCSVProvider_GetPrices(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "VOO.csv"),
		"time,open,high,low,close\n"+
			"2024-01-01,100,105,99,104\n"+
			"2024-01-02,104,110,103,109\n")

	p := priceprovider.NewCSVProvider(dir)
	bars, err := p.GetPrices(context.Background(), "VOO",
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, bars, 2)
	require.Equal(t, 104.0, bars[0].Close)
	require.True(t, bars[0].Date.Before(bars[1].Date))
}

func TestCSVProvider_GetDividends_MissingFileIsEmpty(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "VOO.csv"), "time,open,high,low,close\n2024-01-01,100,100,100,100\n")
	p := priceprovider.NewCSVProvider(dir)
	divs, err := p.GetDividends(context.Background(), "VOO",
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Empty(t, divs)
}

func TestFetchAll(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "VOO.csv"), "time,open,high,low,close\n2024-01-01,100,101,99,100\n")
	writeFile(t, filepath.Join(dir, "CASH2.csv"), "time,open,high,low,close\n2024-01-01,1,1,1,1\n")

	p := priceprovider.NewCSVProvider(dir)
	out, err := priceprovider.FetchAll(context.Background(), p, []string{"VOO", "CASH2"},
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), true)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Len(t, out["VOO"].Bars, 1)
}

type countingProvider struct {
	inner priceprovider.Provider
	calls int
}

func (c *countingProvider) GetPrices(ctx context.Context, ticker string, start, end time.Time) ([]priceprovider.OHLCBar, error) {
	c.calls++
	return c.inner.GetPrices(ctx, ticker, start, end)
}
func (c *countingProvider) GetDividends(ctx context.Context, ticker string, start, end time.Time) ([]priceprovider.DividendEvent, error) {
	return c.inner.GetDividends(ctx, ticker, start, end)
}

func TestSQLiteCache_MemoizesCalls(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "VOO.csv"), "time,open,high,low,close\n2024-01-01,100,101,99,100\n")
	inner := &countingProvider{inner: priceprovider.NewCSVProvider(dir)}

	cache, err := priceprovider.NewSQLiteCache(filepath.Join(dir, "cache.db"), inner)
	require.NoError(t, err)
	defer cache.Close()

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

	bars1, err := cache.GetPrices(context.Background(), "VOO", start, end)
	require.NoError(t, err)
	bars2, err := cache.GetPrices(context.Background(), "VOO", start, end)
	require.NoError(t, err)

	require.Equal(t, bars1, bars2)
	require.Equal(t, 1, inner.calls)
}
