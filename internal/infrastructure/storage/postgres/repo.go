package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"profitsniffer/internal/application/port"
	"profitsniffer/internal/domain/model"
)

type Repo struct {
	pool *pgxpool.Pool
}

// New connects, pings and migrates.
func New(ctx context.Context, dsn string) (*Repo, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	cfg.MaxConns = 10

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	r := &Repo{pool: pool}
	if err := r.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repo) Close() error {
	r.pool.Close()
	return nil
}

func (r *Repo) migrate(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS subscribers (
  id TEXT PRIMARY KEY,
  filter_url TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS pairs (
  id BIGSERIAL PRIMARY KEY,
  address TEXT NOT NULL,
  chain TEXT NOT NULL,
  pair_address TEXT NOT NULL,
  name TEXT NOT NULL,
  symbol TEXT NOT NULL,
  price_usd NUMERIC,
  liquidity_usd DOUBLE PRECISION,
  volume_24h DOUBLE PRECISION,
  image_url TEXT,
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  UNIQUE(address, chain)
);

CREATE TABLE IF NOT EXISTS interest_sets (
  subscriber_id TEXT PRIMARY KEY,
  member_ids BIGINT[] NOT NULL DEFAULT '{}',
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS clearance (
  id SMALLINT PRIMARY KEY CHECK (id = 1),
  token TEXT NOT NULL,
  user_agent TEXT NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`)
	if err != nil {
		return fmt.Errorf("migrate postgres: %w", err)
	}
	return nil
}

func (r *Repo) ListSubscribers(ctx context.Context) ([]model.Subscriber, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, filter_url, created_at, updated_at FROM subscribers ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	defer rows.Close()

	var out []model.Subscriber
	for rows.Next() {
		var s model.Subscriber
		if err := rows.Scan(&s.ID, &s.FilterURL, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repo) GetSubscriber(ctx context.Context, id string) (*model.Subscriber, error) {
	var s model.Subscriber
	err := r.pool.QueryRow(ctx, `SELECT id, filter_url, created_at, updated_at FROM subscribers WHERE id = $1`, id).
		Scan(&s.ID, &s.FilterURL, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, port.ErrSubscriberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get subscriber: %w", err)
	}
	return &s, nil
}

func (r *Repo) CreateSubscriber(ctx context.Context, s *model.Subscriber) (bool, error) {
	var created bool
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO subscribers(id, filter_url) VALUES($1, $2)
			ON CONFLICT (id) DO NOTHING
		`, s.ID, s.FilterURL)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		created = true
		_, err = tx.Exec(ctx, `
			INSERT INTO interest_sets(subscriber_id) VALUES($1)
			ON CONFLICT (subscriber_id) DO NOTHING
		`, s.ID)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("create subscriber: %w", err)
	}
	return created, nil
}

func (r *Repo) UpdateFilterURL(ctx context.Context, id, filterURL string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE subscribers SET filter_url = $2, updated_at = now() WHERE id = $1`, id, filterURL)
	if err != nil {
		return fmt.Errorf("update filter url: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return port.ErrSubscriberNotFound
	}
	return nil
}

func (r *Repo) UpsertPair(ctx context.Context, p *model.Pair) (model.RecordID, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO pairs(address, chain, pair_address, name, symbol, price_usd, liquidity_usd, volume_24h, image_url, updated_at)
		VALUES($1, $2, $3, $4, $5, $6::text::numeric, $7, $8, $9, now())
		ON CONFLICT (address, chain) DO UPDATE SET
		pair_address = EXCLUDED.pair_address, name = EXCLUDED.name, symbol = EXCLUDED.symbol,
		price_usd = EXCLUDED.price_usd, liquidity_usd = EXCLUDED.liquidity_usd, volume_24h = EXCLUDED.volume_24h,
		image_url = EXCLUDED.image_url, updated_at = now()
		RETURNING id
	`, p.BaseToken.Address, p.ChainID, p.PairAddress, p.BaseToken.Name, p.BaseToken.Symbol,
		nullDecimal(p.PriceUSD), p.LiquidityUSD(), p.Volume24h(), p.ImageURL).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert pair %s/%s: %w", p.ChainID, p.BaseToken.Address, err)
	}
	return model.RecordID(id), nil
}

func (r *Repo) GetPairs(ctx context.Context, ids []model.RecordID) ([]model.StoredPair, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, address, chain, name, symbol, price_usd::text, liquidity_usd, volume_24h, image_url, updated_at
		FROM pairs WHERE id = ANY($1) ORDER BY id
	`, toInt64s(ids))
	if err != nil {
		return nil, fmt.Errorf("get pairs: %w", err)
	}
	defer rows.Close()

	var out []model.StoredPair
	for rows.Next() {
		var (
			sp    model.StoredPair
			id    int64
			price *string
		)
		if err := rows.Scan(&id, &sp.Address, &sp.Chain, &sp.Name, &sp.Symbol, &price,
			&sp.LiquidityUSD, &sp.Volume24h, &sp.ImageURL, &sp.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan pair: %w", err)
		}
		sp.ID = model.RecordID(id)
		if price != nil {
			d, err := decimal.NewFromString(*price)
			if err == nil {
				sp.PriceUSD = &d
			}
		}
		out = append(out, sp)
	}
	return out, rows.Err()
}

func (r *Repo) DeleteRecordsNotIn(ctx context.Context, used model.IDSet) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM pairs WHERE NOT (id = ANY($1))`, toInt64s(used.Sorted()))
	if err != nil {
		return 0, fmt.Errorf("delete orphan pairs: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *Repo) GetInterestSet(ctx context.Context, subscriberID string) (model.IDSet, error) {
	var ids []int64
	err := r.pool.QueryRow(ctx, `SELECT member_ids FROM interest_sets WHERE subscriber_id = $1`, subscriberID).Scan(&ids)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.NewIDSet(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get interest set: %w", err)
	}
	return fromInt64s(ids), nil
}

func (r *Repo) ReplaceInterestSet(ctx context.Context, subscriberID string, members model.IDSet) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO interest_sets(subscriber_id, member_ids, updated_at) VALUES($1, $2, now())
		ON CONFLICT (subscriber_id) DO UPDATE SET member_ids = EXCLUDED.member_ids, updated_at = now()
	`, subscriberID, toInt64s(members.Sorted()))
	if err != nil {
		return fmt.Errorf("replace interest set: %w", err)
	}
	return nil
}

func (r *Repo) AllInterestMembers(ctx context.Context) (model.IDSet, error) {
	var ids []int64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(array_agg(DISTINCT m), '{}') FROM interest_sets, unnest(member_ids) AS m`).Scan(&ids)
	if err != nil {
		return nil, fmt.Errorf("collect interest members: %w", err)
	}
	return fromInt64s(ids), nil
}

func (r *Repo) LoadCredentials(ctx context.Context) (model.Credentials, bool, error) {
	var c model.Credentials
	err := r.pool.QueryRow(ctx, `SELECT token, user_agent FROM clearance WHERE id = 1`).Scan(&c.ClearanceToken, &c.UserAgent)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Credentials{}, false, nil
	}
	if err != nil {
		return model.Credentials{}, false, fmt.Errorf("load clearance: %w", err)
	}
	return c, c.Valid(), nil
}

func (r *Repo) SaveCredentials(ctx context.Context, c model.Credentials) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO clearance(id, token, user_agent, updated_at) VALUES(1, $1, $2, now())
		ON CONFLICT (id) DO UPDATE SET token = EXCLUDED.token, user_agent = EXCLUDED.user_agent, updated_at = now()
	`, c.ClearanceToken, c.UserAgent)
	if err != nil {
		return fmt.Errorf("save clearance: %w", err)
	}
	return nil
}

func toInt64s(ids []model.RecordID) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}

func fromInt64s(ids []int64) model.IDSet {
	out := make(model.IDSet, len(ids))
	for _, id := range ids {
		out.Add(model.RecordID(id))
	}
	return out
}

func nullDecimal(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

var (
	_ port.Store               = (*Repo)(nil)
	_ port.CredentialPersister = (*Repo)(nil)
)
