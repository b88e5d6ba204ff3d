package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/arbz/zeroday-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL. All monetary values are
// stored as NUMERIC for exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the venue tables when they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS accounts (
			trader        TEXT PRIMARY KEY,
			collateral    NUMERIC NOT NULL,
			locked_margin NUMERIC NOT NULL
		);
		CREATE TABLE IF NOT EXISTS positions (
			trader      TEXT PRIMARY KEY,
			entry_price NUMERIC NOT NULL,
			qty         NUMERIC NOT NULL,
			leverage    BIGINT  NOT NULL,
			margin      NUMERIC NOT NULL,
			opened_ts   BIGINT  NOT NULL,
			expiry_ts   BIGINT  NOT NULL
		);
		CREATE TABLE IF NOT EXISTS nonces (
			trader TEXT   PRIMARY KEY,
			nonce  BIGINT NOT NULL
		);`)
	return err
}

func (s *PostgresStore) GetAccount(ctx context.Context, trader string) (model.Account, error) {
	var collateral, locked string
	err := s.pool.QueryRow(ctx,
		`SELECT collateral, locked_margin FROM accounts WHERE trader = $1`,
		trader,
	).Scan(&collateral, &locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Account{}, ErrNotFound
	}
	if err != nil {
		return model.Account{}, fmt.Errorf("get account: %w", err)
	}
	return parseAccount(collateral, locked)
}

func (s *PostgresStore) PutAccount(ctx context.Context, trader string, acc model.Account) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO accounts (trader, collateral, locked_margin)
		 VALUES ($1, $2::NUMERIC, $3::NUMERIC)
		 ON CONFLICT (trader) DO UPDATE
		 SET collateral = EXCLUDED.collateral, locked_margin = EXCLUDED.locked_margin`,
		trader, acc.Collateral.String(), acc.LockedMargin.String(),
	)
	return err
}

func (s *PostgresStore) ListAccounts(ctx context.Context) (map[string]model.Account, error) {
	rows, err := s.pool.Query(ctx, `SELECT trader, collateral, locked_margin FROM accounts`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	out := make(map[string]model.Account)
	for rows.Next() {
		var trader, collateral, locked string
		if err := rows.Scan(&trader, &collateral, &locked); err != nil {
			return nil, err
		}
		acc, err := parseAccount(collateral, locked)
		if err != nil {
			return nil, err
		}
		out[trader] = acc
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetPosition(ctx context.Context, trader string) (model.Position, error) {
	var entry, qty, margin string
	var pos model.Position
	err := s.pool.QueryRow(ctx,
		`SELECT entry_price, qty, leverage, margin, opened_ts, expiry_ts
		 FROM positions WHERE trader = $1`,
		trader,
	).Scan(&entry, &qty, &pos.Leverage, &margin, &pos.OpenedTs, &pos.ExpiryTs)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Position{}, ErrNotFound
	}
	if err != nil {
		return model.Position{}, fmt.Errorf("get position: %w", err)
	}
	pos.Trader = trader
	if pos.EntryPrice, err = decimal.NewFromString(entry); err != nil {
		return model.Position{}, err
	}
	if pos.Qty, err = decimal.NewFromString(qty); err != nil {
		return model.Position{}, err
	}
	if pos.Margin, err = decimal.NewFromString(margin); err != nil {
		return model.Position{}, err
	}
	return pos, nil
}

func (s *PostgresStore) PutPosition(ctx context.Context, trader string, pos model.Position) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO positions (trader, entry_price, qty, leverage, margin, opened_ts, expiry_ts)
		 VALUES ($1, $2::NUMERIC, $3::NUMERIC, $4, $5::NUMERIC, $6, $7)
		 ON CONFLICT (trader) DO UPDATE
		 SET entry_price = EXCLUDED.entry_price, qty = EXCLUDED.qty,
		     leverage = EXCLUDED.leverage, margin = EXCLUDED.margin,
		     opened_ts = EXCLUDED.opened_ts, expiry_ts = EXCLUDED.expiry_ts`,
		trader, pos.EntryPrice.String(), pos.Qty.String(),
		pos.Leverage, pos.Margin.String(), pos.OpenedTs, pos.ExpiryTs,
	)
	return err
}

func (s *PostgresStore) ListPositions(ctx context.Context) (map[string]model.Position, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT trader, entry_price, qty, leverage, margin, opened_ts, expiry_ts FROM positions`)
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	defer rows.Close()

	out := make(map[string]model.Position)
	for rows.Next() {
		var entry, qty, margin string
		var pos model.Position
		if err := rows.Scan(&pos.Trader, &entry, &qty, &pos.Leverage, &margin,
			&pos.OpenedTs, &pos.ExpiryTs); err != nil {
			return nil, err
		}
		if pos.EntryPrice, err = decimal.NewFromString(entry); err != nil {
			return nil, err
		}
		if pos.Qty, err = decimal.NewFromString(qty); err != nil {
			return nil, err
		}
		if pos.Margin, err = decimal.NewFromString(margin); err != nil {
			return nil, err
		}
		out[pos.Trader] = pos
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetNonce(ctx context.Context, trader string) (uint64, error) {
	var nonce int64
	err := s.pool.QueryRow(ctx,
		`SELECT nonce FROM nonces WHERE trader = $1`, trader,
	).Scan(&nonce)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get nonce: %w", err)
	}
	return uint64(nonce), nil
}

func (s *PostgresStore) PutNonce(ctx context.Context, trader string, nonce uint64) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO nonces (trader, nonce) VALUES ($1, $2)
		 ON CONFLICT (trader) DO UPDATE SET nonce = EXCLUDED.nonce`,
		trader, int64(nonce),
	)
	return err
}

func parseAccount(collateral, locked string) (model.Account, error) {
	c, err := decimal.NewFromString(collateral)
	if err != nil {
		return model.Account{}, err
	}
	l, err := decimal.NewFromString(locked)
	if err != nil {
		return model.Account{}, err
	}
	return model.Account{Collateral: c, LockedMargin: l}, nil
}
