package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresAggregate stores the totals in the single global_aggregate row.
type PostgresAggregate struct {
	db *sql.DB
}

var _ AggregateCounter = (*PostgresAggregate)(nil)

func NewPostgresAggregate(db *sql.DB) *PostgresAggregate {
	return &PostgresAggregate{db: db}
}

func (p *PostgresAggregate) Add(ctx context.Context, d Delta) error {
	if d.IsZero() {
		return nil
	}

	const query = `
		UPDATE global_aggregate
		SET total_coins = total_coins + $1,
		    total_taps  = total_taps + $2,
		    total_users = total_users + $3
		WHERE id = 1
	`

	if _, err := p.db.ExecContext(ctx, query, d.Coins, d.Taps, d.Users); err != nil {
		return fmt.Errorf("apply aggregate delta: %w", err)
	}
	return nil
}

func (p *PostgresAggregate) Snapshot(ctx context.Context) (Aggregate, error) {
	const query = `SELECT total_coins, total_taps, total_users FROM global_aggregate WHERE id = 1`

	var agg Aggregate
	if err := p.db.QueryRowContext(ctx, query).Scan(&agg.TotalCoins, &agg.TotalTaps, &agg.TotalUsers); err != nil {
		return Aggregate{}, fmt.Errorf("read aggregate: %w", err)
	}
	return agg, nil
}
