package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"profitsniffer/internal/application/port"
	"profitsniffer/internal/domain/model"
)

type Repo struct {
	db  *sql.DB
	now func() time.Time
}

func New(path string) (*Repo, error) {
	// ensure directory exists
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	r := &Repo{db: db, now: time.Now}
	if err := r.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repo) Close() error { return r.db.Close() }

func (r *Repo) GetDB() *sql.DB {
	return r.db
}

func (r *Repo) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS subscribers (
  id TEXT PRIMARY KEY,
  filter_url TEXT NOT NULL,
  created_at INTEGER NOT NULL,
  updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS pairs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  address TEXT NOT NULL,
  chain TEXT NOT NULL,
  pair_address TEXT NOT NULL,
  name TEXT NOT NULL,
  symbol TEXT NOT NULL,
  price_usd TEXT,
  liquidity_usd REAL,
  volume_24h REAL,
  image_url TEXT,
  updated_at INTEGER NOT NULL,
  UNIQUE(address, chain)
);
CREATE INDEX IF NOT EXISTS idx_pairs_updated ON pairs(updated_at);

CREATE TABLE IF NOT EXISTS interest_sets (
  subscriber_id TEXT PRIMARY KEY,
  member_ids TEXT NOT NULL DEFAULT '[]',
  updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS clearance (
  id INTEGER PRIMARY KEY CHECK (id = 1),
  token TEXT NOT NULL,
  user_agent TEXT NOT NULL,
  updated_at INTEGER NOT NULL
);
`)
	return err
}

func (r *Repo) ListSubscribers(ctx context.Context) ([]model.Subscriber, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, filter_url, created_at, updated_at FROM subscribers ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Subscriber
	for rows.Next() {
		var s model.Subscriber
		var created, updated int64
		if err := rows.Scan(&s.ID, &s.FilterURL, &created, &updated); err != nil {
			return nil, err
		}
		s.CreatedAt = time.UnixMilli(created)
		s.UpdatedAt = time.UnixMilli(updated)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repo) GetSubscriber(ctx context.Context, id string) (*model.Subscriber, error) {
	var s model.Subscriber
	var created, updated int64
	err := r.db.QueryRowContext(ctx, `SELECT id, filter_url, created_at, updated_at FROM subscribers WHERE id=?`, id).
		Scan(&s.ID, &s.FilterURL, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrSubscriberNotFound
	}
	if err != nil {
		return nil, err
	}
	s.CreatedAt = time.UnixMilli(created)
	s.UpdatedAt = time.UnixMilli(updated)
	return &s, nil
}

func (r *Repo) CreateSubscriber(ctx context.Context, s *model.Subscriber) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	ts := r.now().UnixMilli()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO subscribers(id, filter_url, created_at, updated_at)
		VALUES(?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, s.ID, s.FilterURL, ts, ts)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO interest_sets(subscriber_id, member_ids, updated_at)
		VALUES(?, '[]', ?)
		ON CONFLICT(subscriber_id) DO NOTHING
	`, s.ID, ts); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

func (r *Repo) UpdateFilterURL(ctx context.Context, id, filterURL string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE subscribers SET filter_url=?, updated_at=? WHERE id=?`, filterURL, r.now().UnixMilli(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return port.ErrSubscriberNotFound
	}
	return nil
}

func (r *Repo) UpsertPair(ctx context.Context, p *model.Pair) (model.RecordID, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO pairs(address, chain, pair_address, name, symbol, price_usd, liquidity_usd, volume_24h, image_url, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(address, chain) DO UPDATE SET
		pair_address=excluded.pair_address, name=excluded.name, symbol=excluded.symbol,
		price_usd=excluded.price_usd, liquidity_usd=excluded.liquidity_usd, volume_24h=excluded.volume_24h,
		image_url=excluded.image_url, updated_at=excluded.updated_at
		RETURNING id
	`, p.BaseToken.Address, p.ChainID, p.PairAddress, p.BaseToken.Name, p.BaseToken.Symbol,
		nullDecimal(p.PriceUSD), p.LiquidityUSD(), p.Volume24h(), p.ImageURL, r.now().UnixMilli()).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert pair %s/%s: %w", p.ChainID, p.BaseToken.Address, err)
	}
	return model.RecordID(id), nil
}

func (r *Repo) GetPairs(ctx context.Context, ids []model.RecordID) ([]model.StoredPair, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	arg, err := json.Marshal(ids)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, address, chain, name, symbol, price_usd, liquidity_usd, volume_24h, image_url, updated_at
		FROM pairs WHERE id IN (SELECT value FROM json_each(?)) ORDER BY id
	`, string(arg))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.StoredPair
	for rows.Next() {
		var (
			sp      model.StoredPair
			id      int64
			price   decimal.NullDecimal
			liq     sql.NullFloat64
			vol     sql.NullFloat64
			img     sql.NullString
			updated int64
		)
		if err := rows.Scan(&id, &sp.Address, &sp.Chain, &sp.Name, &sp.Symbol, &price, &liq, &vol, &img, &updated); err != nil {
			return nil, err
		}
		sp.ID = model.RecordID(id)
		if price.Valid {
			sp.PriceUSD = &price.Decimal
		}
		if liq.Valid {
			sp.LiquidityUSD = &liq.Float64
		}
		if vol.Valid {
			sp.Volume24h = &vol.Float64
		}
		if img.Valid {
			sp.ImageURL = &img.String
		}
		sp.UpdatedAt = time.UnixMilli(updated)
		out = append(out, sp)
	}
	return out, rows.Err()
}

func (r *Repo) DeleteRecordsNotIn(ctx context.Context, used model.IDSet) (int64, error) {
	arg, err := json.Marshal(used.Sorted())
	if err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM pairs WHERE id NOT IN (SELECT value FROM json_each(?))`, string(arg))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *Repo) GetInterestSet(ctx context.Context, subscriberID string) (model.IDSet, error) {
	var raw string
	err := r.db.QueryRowContext(ctx, `SELECT member_ids FROM interest_sets WHERE subscriber_id=?`, subscriberID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return model.NewIDSet(), nil
	}
	if err != nil {
		return nil, err
	}
	return decodeMembers(raw)
}

func (r *Repo) ReplaceInterestSet(ctx context.Context, subscriberID string, members model.IDSet) error {
	raw, err := json.Marshal(members.Sorted())
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO interest_sets(subscriber_id, member_ids, updated_at)
		VALUES(?, ?, ?)
		ON CONFLICT(subscriber_id) DO UPDATE SET
		member_ids=excluded.member_ids, updated_at=excluded.updated_at
	`, subscriberID, string(raw), r.now().UnixMilli())
	return err
}

func (r *Repo) AllInterestMembers(ctx context.Context) (model.IDSet, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT member_ids FROM interest_sets`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := model.NewIDSet()
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		set, err := decodeMembers(raw)
		if err != nil {
			return nil, err
		}
		out.Union(set)
	}
	return out, rows.Err()
}

func (r *Repo) LoadCredentials(ctx context.Context) (model.Credentials, bool, error) {
	var c model.Credentials
	err := r.db.QueryRowContext(ctx, `SELECT token, user_agent FROM clearance WHERE id=1`).Scan(&c.ClearanceToken, &c.UserAgent)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Credentials{}, false, nil
	}
	if err != nil {
		return model.Credentials{}, false, err
	}
	return c, c.Valid(), nil
}

func (r *Repo) SaveCredentials(ctx context.Context, c model.Credentials) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO clearance(id, token, user_agent, updated_at) VALUES(1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET token=excluded.token, user_agent=excluded.user_agent, updated_at=excluded.updated_at
	`, c.ClearanceToken, c.UserAgent, r.now().UnixMilli())
	return err
}

func decodeMembers(raw string) (model.IDSet, error) {
	var ids []model.RecordID
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &ids); err != nil {
			return nil, fmt.Errorf("decode interest set: %w", err)
		}
	}
	return model.NewIDSet(ids...), nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

var (
	_ port.Store               = (*Repo)(nil)
	_ port.CredentialPersister = (*Repo)(nil)
)
