package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wagerhouse/bookd/internal/domain"
)

func createPending(t *testing.T, d *deps) domain.Market {
	t.Helper()
	max := int64(50_000)
	rec, err := d.marketSvc.CreateMarket(context.Background(), CreateMarketParams{
		HomeTeam:    "Hawks",
		AwayTeam:    "Wolves",
		ScheduledAt: time.Now().Add(time.Hour),
		GlobalMax:   &max,
	}, "ops")
	require.NoError(t, err)
	return rec
}

func TestSetOddsOpensOnOpeningLine(t *testing.T) {
	d := newDeps(t, 0)
	rec := createPending(t, d)

	// One moneyline side is not an opening line.
	partial := domain.OddsSheet{MoneylineHome: 1850}
	updated, opened, err := d.oddsSvc.SetOdds(context.Background(), rec.ID, partial, "feed")
	require.NoError(t, err)
	require.False(t, opened)
	require.Equal(t, domain.MarketPending, updated.State)

	updated, opened, err = d.oddsSvc.SetOdds(context.Background(), rec.ID, fullSheet(), "feed")
	require.NoError(t, err)
	require.True(t, opened)
	require.Equal(t, domain.MarketOpen, updated.State)
	require.True(t, updated.OpeningLine)

	// A later one-sided sheet does not close the market again.
	_, opened, err = d.oddsSvc.SetOdds(context.Background(), rec.ID, partial, "feed")
	require.NoError(t, err)
	require.False(t, opened) // already open, no new transition
	got, err := d.marketSvc.GetMarket(context.Background(), rec.ID)
	require.NoError(t, err)
	require.Equal(t, domain.MarketOpen, got.State)

	require.Contains(t, d.audit.actions(), "market.open")
	require.Equal(t, 3, d.bus.count(domain.ChannelOdds))
}

func TestSetOddsValidationRejected(t *testing.T) {
	d := newDeps(t, 0)
	rec := createPending(t, d)

	_, _, err := d.oddsSvc.SetOdds(context.Background(), rec.ID, domain.OddsSheet{MoneylineHome: 900}, "feed")
	require.ErrorIs(t, err, domain.ErrOddsBelowMinimum)

	_, _, err = d.oddsSvc.SetOdds(context.Background(), rec.ID, domain.OddsSheet{
		SpreadLine: -35, SpreadHome: 1900, // away side missing
	}, "feed")
	require.ErrorIs(t, err, domain.ErrValidation)

	// The board kept its previous (empty) sheet.
	sheet, state, err := d.oddsSvc.GetOdds(context.Background(), rec.ID)
	require.NoError(t, err)
	require.Zero(t, sheet.MoneylineHome)
	require.Equal(t, domain.MarketPending, state)
}

func TestGetOddsCacheFirstThenBackfill(t *testing.T) {
	d := newDeps(t, 0)
	rec := openMarket(t, d, 10_000)

	// Drop the cache; the read falls back to the live board and
	// backfills.
	require.NoError(t, d.cache.Invalidate(context.Background(), rec.ID))
	sheet, state, err := d.oddsSvc.GetOdds(context.Background(), rec.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1900), sheet.MoneylineHome)
	require.Equal(t, domain.MarketOpen, state)
	cached, _, err := d.cache.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	require.Equal(t, sheet, cached)

	// A poisoned cache entry is served as-is: reads trust the cache.
	poisoned := fullSheet()
	poisoned.MoneylineHome = 5_000
	require.NoError(t, d.cache.Set(context.Background(), rec.ID, poisoned, domain.MarketOpen))
	sheet, _, err = d.oddsSvc.GetOdds(context.Background(), rec.ID)
	require.NoError(t, err)
	require.Equal(t, int64(5_000), sheet.MoneylineHome)
}

func TestGetOddsForEvictedMarketUsesStore(t *testing.T) {
	d := newDeps(t, 0)
	rec := openMarket(t, d, 10_000)
	require.NoError(t, d.cache.Invalidate(context.Background(), rec.ID))
	d.registry.Remove(rec.ID)

	sheet, state, err := d.oddsSvc.GetOdds(context.Background(), rec.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1900), sheet.MoneylineAway)
	require.Equal(t, domain.MarketOpen, state)

	_, _, err = d.oddsSvc.GetOdds(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}
