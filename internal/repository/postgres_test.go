package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"log/slog"
	"os"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/tapcoin-engine/internal/database"
	"github.com/Proton-105/tapcoin-engine/internal/domain"
)

const postgresDSNEnv = "TAPCOIN_TEST_POSTGRES_DSN"

var pgEpoch = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

// driverRow feeds encoded arguments back through Scan the way database/sql
// would after a round trip.
type driverRow struct {
	values []driver.Value
}

func encodeArgs(t *testing.T, args []any) driverRow {
	t.Helper()
	row := driverRow{values: make([]driver.Value, len(args))}
	for i, arg := range args {
		if v, ok := arg.(driver.Valuer); ok {
			encoded, err := v.Value()
			require.NoError(t, err, "arg %d", i)
			row.values[i] = encoded
			continue
		}
		row.values[i] = arg
	}
	return row
}

func (r driverRow) Scan(dest ...any) error {
	if len(dest) != len(r.values) {
		return fmt.Errorf("scan: %d destinations for %d values", len(dest), len(r.values))
	}
	for i, d := range dest {
		if s, ok := d.(sql.Scanner); ok {
			if err := s.Scan(r.values[i]); err != nil {
				return fmt.Errorf("scan column %d: %w", i, err)
			}
			continue
		}
		target := reflect.ValueOf(d).Elem()
		target.Set(reflect.ValueOf(r.values[i]).Convert(target.Type()))
	}
	return nil
}

func TestAccountArgs_ArrayColumnsNeverNull(t *testing.T) {
	args, err := accountArgs(domain.NewAccount(42, "new", "", "", pgEpoch))
	require.NoError(t, err)
	require.Len(t, args, 27)

	arrays := map[string]int{"unlocked_skins": 13, "completed_tasks": 14, "recent_tap_intervals": 16}
	for column, idx := range arrays {
		valuer, ok := args[idx].(driver.Valuer)
		require.True(t, ok, column)

		v, err := valuer.Value()
		require.NoError(t, err, column)
		assert.NotNil(t, v, "%s must not be sent as NULL", column)
	}

	assert.Equal(t, "{}", mustValue(t, args[14]))
	assert.Equal(t, "{}", mustValue(t, args[16]))
	assert.Equal(t, []byte("{}"), args[15], "empty boosters encode as an empty object")
}

func TestAccountArgs_NilCollections(t *testing.T) {
	a := domain.NewAccount(7, "bare", "", "", pgEpoch)
	a.UnlockedSkins = nil
	a.Boosters = nil

	args, err := accountArgs(a)
	require.NoError(t, err)
	assert.Equal(t, "{}", mustValue(t, args[13]))
	assert.Equal(t, []byte("{}"), args[15])
}

func TestPromoArgs_UsedByNeverNull(t *testing.T) {
	args := promoArgs(&PromoCode{Code: "launch", Reward: 10, CreatedAt: pgEpoch})
	require.Len(t, args, 6)

	assert.Equal(t, "LAUNCH", args[0])
	assert.Equal(t, "{}", mustValue(t, args[3]))

	expires, err := args[4].(driver.Valuer).Value()
	require.NoError(t, err)
	assert.Nil(t, expires, "no expiry is stored as NULL")
}

func TestScanAccount_RoundTrip(t *testing.T) {
	ref := int64(3)
	a := domain.NewAccount(11, "rich", "Ann", "Lee", pgEpoch)
	a.Coins = 900
	a.TotalEarned = 1500
	a.Tier = 1
	a.UnlockedSkins = append(a.UnlockedSkins, "fire")
	a.CompletedTasks = []string{"follow_x"}
	a.RecentTapIntervals = []int64{120, 80, 95}
	a.ReferredBy = &ref
	a.Boosters[domain.BoosterAutoclicker] = domain.BoosterState{
		Active:        true,
		ExpiresAt:     pgEpoch.Add(time.Hour),
		LastAppliedAt: pgEpoch,
	}

	args, err := accountArgs(a)
	require.NoError(t, err)

	got, err := scanAccount(encodeArgs(t, args))
	require.NoError(t, err)
	assert.Equal(t, a, got)
}

func TestScanAccount_EmptyArraysAndNoReferrer(t *testing.T) {
	a := domain.NewAccount(12, "fresh", "", "", pgEpoch)

	args, err := accountArgs(a)
	require.NoError(t, err)

	got, err := scanAccount(encodeArgs(t, args))
	require.NoError(t, err)
	assert.Empty(t, got.CompletedTasks)
	assert.Empty(t, got.RecentTapIntervals)
	assert.Nil(t, got.ReferredBy)
	assert.Equal(t, []string{domain.DefaultSkin}, got.UnlockedSkins)
	assert.NotNil(t, got.Boosters)
}

func TestScanPromo_RoundTrip(t *testing.T) {
	exp := pgEpoch.Add(24 * time.Hour)
	p := &PromoCode{Code: "SPRING", Reward: 250, MaxUses: 3, UsedBy: []int64{1, 2}, ExpiresAt: &exp, CreatedAt: pgEpoch}

	got, err := scanPromo(encodeArgs(t, promoArgs(p)))
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func mustValue(t *testing.T, arg any) driver.Value {
	t.Helper()
	valuer, ok := arg.(driver.Valuer)
	require.True(t, ok, "%T is not a driver.Valuer", arg)
	v, err := valuer.Value()
	require.NoError(t, err)
	return v
}

// openTestPostgres connects to the database named by TAPCOIN_TEST_POSTGRES_DSN,
// applies migrations and empties the tables.
func openTestPostgres(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv(postgresDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", postgresDSNEnv)
	}

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, database.NewMigrator(db, log).Apply(ctx, database.Migrations()))

	_, err = db.ExecContext(ctx, `TRUNCATE accounts, promo_codes`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `UPDATE global_aggregate SET total_coins = 0, total_taps = 0, total_users = 0`)
	require.NoError(t, err)
	return db
}

func TestPostgresAccountStore_Integration(t *testing.T) {
	db := openTestPostgres(t)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := NewPostgresAccountStore(db, log)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, domain.NewAccount(1, "one", "", "", pgEpoch)))
	assert.ErrorIs(t, store.Create(ctx, domain.NewAccount(1, "dup", "", "", pgEpoch)), ErrAccountExists)

	_, err := store.Get(ctx, 99)
	assert.ErrorIs(t, err, ErrAccountNotFound)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Mutate(ctx, 1, func(a *domain.Account) error {
				a.Credit(10)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	_, err = store.Mutate(ctx, 1, func(a *domain.Account) error {
		a.Credit(1000)
		return fmt.Errorf("rejected")
	})
	require.Error(t, err)

	got, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(80), got.Coins, "row lock serializes mutations and failed units roll back")

	_, err = store.Mutate(ctx, 1, func(a *domain.Account) error {
		_, err := a.ActivateBooster(domain.BoosterAutoclicker, time.Hour, pgEpoch)
		return err
	})
	require.NoError(t, err)

	due, err := store.ListAutoclickerDue(ctx, pgEpoch.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, due)

	due, err = store.ListAutoclickerDue(ctx, pgEpoch.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestPostgresPromoStore_Integration(t *testing.T) {
	db := openTestPostgres(t)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := NewPostgresPromoStore(db, log)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, &PromoCode{Code: "spring", Reward: 100, MaxUses: 1, CreatedAt: pgEpoch}))
	assert.ErrorIs(t, store.Create(ctx, &PromoCode{Code: "SPRING", Reward: 5, CreatedAt: pgEpoch}), ErrPromoExists)

	p, err := store.Claim(ctx, "spring", 1, pgEpoch)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, p.UsedBy)

	_, err = store.Claim(ctx, "SPRING", 2, pgEpoch)
	assert.ErrorIs(t, err, ErrPromoExhausted)

	require.NoError(t, store.Release(ctx, "SPRING", 1))
	p, err = store.Get(ctx, "SPRING")
	require.NoError(t, err)
	assert.Empty(t, p.UsedBy)

	assert.ErrorIs(t, store.Release(ctx, "NOPE1", 1), ErrPromoNotFound)
}

func TestPostgresAggregate_Integration(t *testing.T) {
	db := openTestPostgres(t)
	agg := NewPostgresAggregate(db)
	ctx := context.Background()

	require.NoError(t, agg.Add(ctx, Delta{Coins: 150, Taps: 10, Users: 1}))
	require.NoError(t, agg.Add(ctx, Delta{Coins: -50}))

	snap, err := agg.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, Aggregate{TotalCoins: 100, TotalTaps: 10, TotalUsers: 1}, snap)
}
