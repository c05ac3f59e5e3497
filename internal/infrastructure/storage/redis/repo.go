package redis

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"profitsniffer/internal/application/port"
	"profitsniffer/internal/domain/model"
)

// Repo mirrors the clearance credentials into a hash and publishes alerts
// to a stream plus a pub/sub channel.
type Repo struct {
	rdb          *redis.Client
	prefix       string
	ttl          time.Duration
	keyClearance string // prefix + ":clearance"
	alertStream  string
	alertChan    string
	now          func() time.Time
}

// Alert is the payload published for every notification.
type Alert struct {
	SubscriberID string `json:"subscriber_id"`
	Text         string `json:"text"`
	Ts           int64  `json:"ts_ms"`
}

func New(rdb *redis.Client, prefix string, ttl time.Duration, alertStream, alertChan string) *Repo {
	if strings.TrimSpace(prefix) == "" {
		prefix = "profitsniffer"
	}
	if strings.TrimSpace(alertStream) == "" {
		alertStream = prefix + ":alerts"
	}
	if strings.TrimSpace(alertChan) == "" {
		alertChan = prefix + ":alerts:pub"
	}
	return &Repo{
		rdb:          rdb,
		prefix:       prefix,
		ttl:          ttl,
		keyClearance: prefix + ":clearance",
		alertStream:  alertStream,
		alertChan:    alertChan,
		now:          time.Now,
	}
}

func (r *Repo) LoadCredentials(ctx context.Context) (model.Credentials, bool, error) {
	vals, err := r.rdb.HGetAll(ctx, r.keyClearance).Result()
	if errors.Is(err, redis.Nil) {
		return model.Credentials{}, false, nil
	}
	if err != nil {
		return model.Credentials{}, false, err
	}
	c := model.Credentials{
		ClearanceToken: vals["cf_clearance"],
		UserAgent:      vals["user_agent"],
	}
	return c, c.Valid(), nil
}

func (r *Repo) SaveCredentials(ctx context.Context, c model.Credentials) error {
	// 两个字段一次写入
	pipe := r.rdb.TxPipeline()
	pipe.HSet(ctx, r.keyClearance, "cf_clearance", c.ClearanceToken, "user_agent", c.UserAgent, "updated_ms", r.now().UnixMilli())
	if r.ttl > 0 {
		pipe.Expire(ctx, r.keyClearance, r.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (r *Repo) Notify(ctx context.Context, subscriberID, text string) error {
	ts := r.now().UnixMilli()

	// 1) Stream: XADD <stream> * ts subscriber text
	if err := r.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: r.alertStream,
		Values: map[string]any{
			"ts_ms":         ts,
			"subscriber_id": subscriberID,
			"text":          text,
		},
	}).Err(); err != nil {
		return err
	}

	// 2) PubSub: PUBLISH <channel> json
	b, err := json.Marshal(Alert{SubscriberID: subscriberID, Text: text, Ts: ts})
	if err != nil {
		return err
	}
	return r.rdb.Publish(ctx, r.alertChan, string(b)).Err()
}

// AlertStream returns the stream key alerts are appended to.
func (r *Repo) AlertStream() string { return r.alertStream }

var (
	_ port.CredentialPersister = (*Repo)(nil)
	_ port.Notifier            = (*Repo)(nil)
)
