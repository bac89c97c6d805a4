package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/Proton-105/tapcoin-engine/internal/domain"
)

const uniqueViolation = "23505"

const accountColumns = `
	id, username, first_name, last_name,
	coins, total_earned, total_taps,
	energy, max_energy, tap_power, energy_cursor,
	tier, active_skin, unlocked_skins, completed_tasks,
	boosters, recent_tap_intervals, suspicious, mean_recent_interval,
	referred_by, referral_count, active_referral_count, referral_earnings,
	banned, ban_reason, last_active_at, created_at
`

// PostgresAccountStore persists accounts in PostgreSQL. Mutate locks the row
// with SELECT ... FOR UPDATE for the duration of the transaction.
type PostgresAccountStore struct {
	db  *sql.DB
	log *slog.Logger
}

var _ AccountStore = (*PostgresAccountStore)(nil)

func NewPostgresAccountStore(db *sql.DB, log *slog.Logger) *PostgresAccountStore {
	if log == nil {
		log = slog.Default()
	}
	return &PostgresAccountStore{db: db, log: log}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*domain.Account, error) {
	var (
		a          domain.Account
		skins      pq.StringArray
		tasks      pq.StringArray
		intervals  pq.Int64Array
		boosters   []byte
		referredBy sql.NullInt64
	)

	if err := row.Scan(
		&a.ID, &a.Username, &a.FirstName, &a.LastName,
		&a.Coins, &a.TotalEarned, &a.TotalTaps,
		&a.Energy, &a.MaxEnergy, &a.TapPower, &a.EnergyCursor,
		&a.Tier, &a.ActiveSkin, &skins, &tasks,
		&boosters, &intervals, &a.Suspicious, &a.MeanRecentInterval,
		&referredBy, &a.ReferralCount, &a.ActiveReferralCount, &a.ReferralEarnings,
		&a.Banned, &a.BanReason, &a.LastActiveAt, &a.CreatedAt,
	); err != nil {
		return nil, err
	}

	a.UnlockedSkins = []string(skins)
	a.CompletedTasks = []string(tasks)
	a.RecentTapIntervals = []int64(intervals)
	if referredBy.Valid {
		ref := referredBy.Int64
		a.ReferredBy = &ref
	}

	a.Boosters = make(map[domain.BoosterKind]domain.BoosterState)
	if len(boosters) > 0 {
		if err := json.Unmarshal(boosters, &a.Boosters); err != nil {
			return nil, fmt.Errorf("decode boosters: %w", err)
		}
	}

	return &a, nil
}

// textArray and bigintArray encode nil as an empty array. lib/pq sends a nil
// slice as NULL, which the NOT NULL array columns reject.
func textArray(v []string) pq.StringArray {
	if v == nil {
		return pq.StringArray{}
	}
	return pq.StringArray(v)
}

func bigintArray(v []int64) pq.Int64Array {
	if v == nil {
		return pq.Int64Array{}
	}
	return pq.Int64Array(v)
}

func accountArgs(a *domain.Account) ([]any, error) {
	boosters := []byte("{}")
	if len(a.Boosters) > 0 {
		encoded, err := json.Marshal(a.Boosters)
		if err != nil {
			return nil, fmt.Errorf("encode boosters: %w", err)
		}
		boosters = encoded
	}

	var referredBy sql.NullInt64
	if a.ReferredBy != nil {
		referredBy = sql.NullInt64{Int64: *a.ReferredBy, Valid: true}
	}

	return []any{
		a.ID, a.Username, a.FirstName, a.LastName,
		a.Coins, a.TotalEarned, a.TotalTaps,
		a.Energy, a.MaxEnergy, a.TapPower, a.EnergyCursor,
		a.Tier, a.ActiveSkin, textArray(a.UnlockedSkins), textArray(a.CompletedTasks),
		boosters, bigintArray(a.RecentTapIntervals), a.Suspicious, a.MeanRecentInterval,
		referredBy, a.ReferralCount, a.ActiveReferralCount, a.ReferralEarnings,
		a.Banned, a.BanReason, a.LastActiveAt, a.CreatedAt,
	}, nil
}

func (s *PostgresAccountStore) Get(ctx context.Context, id int64) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	a, err := scanAccount(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		s.log.Error("failed to fetch account", slog.Int64("account_id", id), slog.Any("error", err))
		return nil, fmt.Errorf("select account: %w", err)
	}
	return a, nil
}

func (s *PostgresAccountStore) Create(ctx context.Context, a *domain.Account) error {
	const query = `
		INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		        $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27)
	`

	args, err := accountArgs(a)
	if err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrAccountExists
		}
		s.log.Error("failed to create account", slog.Int64("account_id", a.ID), slog.Any("error", err))
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (s *PostgresAccountStore) Mutate(ctx context.Context, id int64, fn MutateFunc) (*domain.Account, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin account transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.log.Error("rollback error", slog.Int64("account_id", id), slog.Any("error", rbErr))
		}
	}()

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 FOR UPDATE`
	a, err := scanAccount(tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("lock account: %w", err)
	}

	if err := fn(a); err != nil {
		return nil, err
	}

	const update = `
		UPDATE accounts SET
			username = $2, first_name = $3, last_name = $4,
			coins = $5, total_earned = $6, total_taps = $7,
			energy = $8, max_energy = $9, tap_power = $10, energy_cursor = $11,
			tier = $12, active_skin = $13, unlocked_skins = $14, completed_tasks = $15,
			boosters = $16, recent_tap_intervals = $17, suspicious = $18, mean_recent_interval = $19,
			referred_by = $20, referral_count = $21, active_referral_count = $22, referral_earnings = $23,
			banned = $24, ban_reason = $25, last_active_at = $26, created_at = $27
		WHERE id = $1
	`

	args, err := accountArgs(a)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, update, args...); err != nil {
		return nil, fmt.Errorf("update account: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit account: %w", err)
	}
	return a, nil
}

func (s *PostgresAccountStore) ListAutoclickerDue(ctx context.Context, now time.Time) ([]int64, error) {
	const query = `
		SELECT id FROM accounts
		WHERE NOT banned
		  AND COALESCE((boosters->'autoclicker'->>'active')::boolean, false)
		  AND (boosters->'autoclicker'->>'expires_at')::timestamptz > $1
		ORDER BY id
	`

	rows, err := s.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("list autoclicker accounts: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan autoclicker account: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PostgresAccountStore) CountActiveReferrals(ctx context.Context, referrerID int64, since time.Time) (int, error) {
	const query = `SELECT count(*) FROM accounts WHERE referred_by = $1 AND last_active_at >= $2`

	var n int
	if err := s.db.QueryRowContext(ctx, query, referrerID, since).Scan(&n); err != nil {
		return 0, fmt.Errorf("count active referrals: %w", err)
	}
	return n, nil
}
