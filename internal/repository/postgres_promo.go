package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lib/pq"
)

// PostgresPromoStore persists promo codes. Claim serializes on the code row.
type PostgresPromoStore struct {
	db  *sql.DB
	log *slog.Logger
}

var _ PromoStore = (*PostgresPromoStore)(nil)

func NewPostgresPromoStore(db *sql.DB, log *slog.Logger) *PostgresPromoStore {
	if log == nil {
		log = slog.Default()
	}
	return &PostgresPromoStore{db: db, log: log}
}

func scanPromo(row rowScanner) (*PromoCode, error) {
	var (
		p       PromoCode
		usedBy  pq.Int64Array
		expires sql.NullTime
	)
	if err := row.Scan(&p.Code, &p.Reward, &p.MaxUses, &usedBy, &expires, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.UsedBy = []int64(usedBy)
	if expires.Valid {
		t := expires.Time
		p.ExpiresAt = &t
	}
	return &p, nil
}

func promoArgs(p *PromoCode) []any {
	var expires sql.NullTime
	if p.ExpiresAt != nil {
		expires = sql.NullTime{Time: *p.ExpiresAt, Valid: true}
	}
	return []any{strings.ToUpper(p.Code), p.Reward, p.MaxUses, bigintArray(p.UsedBy), expires, p.CreatedAt}
}

func (s *PostgresPromoStore) Get(ctx context.Context, code string) (*PromoCode, error) {
	const query = `SELECT code, reward, max_uses, used_by, expires_at, created_at FROM promo_codes WHERE code = $1`

	p, err := scanPromo(s.db.QueryRowContext(ctx, query, strings.ToUpper(code)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPromoNotFound
		}
		return nil, fmt.Errorf("select promo code: %w", err)
	}
	return p, nil
}

func (s *PostgresPromoStore) Create(ctx context.Context, p *PromoCode) error {
	const query = `
		INSERT INTO promo_codes (code, reward, max_uses, used_by, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.db.ExecContext(ctx, query, promoArgs(p)...)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrPromoExists
		}
		return fmt.Errorf("insert promo code: %w", err)
	}
	return nil
}

func (s *PostgresPromoStore) Claim(ctx context.Context, code string, accountID int64, now time.Time) (*PromoCode, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin promo transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.log.Error("rollback error", slog.String("code", code), slog.Any("error", rbErr))
		}
	}()

	const lock = `SELECT code, reward, max_uses, used_by, expires_at, created_at FROM promo_codes WHERE code = $1 FOR UPDATE`
	p, err := scanPromo(tx.QueryRowContext(ctx, lock, strings.ToUpper(code)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPromoNotFound
		}
		return nil, fmt.Errorf("lock promo code: %w", err)
	}

	if err := p.checkClaim(accountID, now); err != nil {
		return nil, err
	}

	const update = `UPDATE promo_codes SET used_by = array_append(used_by, $2) WHERE code = $1`
	if _, err := tx.ExecContext(ctx, update, p.Code, accountID); err != nil {
		return nil, fmt.Errorf("claim promo code: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit promo claim: %w", err)
	}

	p.UsedBy = append(p.UsedBy, accountID)
	return p, nil
}

func (s *PostgresPromoStore) Release(ctx context.Context, code string, accountID int64) error {
	const query = `UPDATE promo_codes SET used_by = array_remove(used_by, $2) WHERE code = $1`

	res, err := s.db.ExecContext(ctx, query, strings.ToUpper(code), accountID)
	if err != nil {
		return fmt.Errorf("release promo code: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrPromoNotFound
	}
	return nil
}
