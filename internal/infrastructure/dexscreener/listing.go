package dexscreener

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"profitsniffer/internal/application/port"
	"profitsniffer/internal/domain/model"
)

// Credentials is the view of the credential store the fetcher needs.
type Credentials interface {
	Current() (model.Credentials, bool)
	Renew(ctx context.Context) (model.Credentials, error)
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type ListingOptions struct {
	MaxAttempts            int           // default 3
	Pacing                 time.Duration // sleep before every attempt, default 2s
	BackoffBase            time.Duration // default 1s, doubled per attempt
	Timeout                time.Duration // per attempt, default 10s
	RenewalConsumesAttempt bool
	CookieName             string
	MaxIDs                 int
}

func (o *ListingOptions) applyDefaults() {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.Pacing < 0 {
		o.Pacing = 0
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = time.Second
	}
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	if o.CookieName == "" {
		o.CookieName = "cf_clearance"
	}
	if o.MaxIDs <= 0 {
		o.MaxIDs = MaxListingIDs
	}
}

// ListingFetcher scrapes the ranked listing page behind the anti-bot wall.
type ListingFetcher struct {
	client *http.Client
	creds  Credentials
	opts   ListingOptions
	sleep  Sleeper
}

func NewListingFetcher(client *http.Client, creds Credentials, opts ListingOptions) *ListingFetcher {
	opts.applyDefaults()
	if client == nil {
		client = &http.Client{}
	}
	return &ListingFetcher{client: client, creds: creds, opts: opts, sleep: sleepCtx}
}

// WithSleeper replaces the wait function, mostly for tests.
func (f *ListingFetcher) WithSleeper(s Sleeper) *ListingFetcher {
	f.sleep = s
	return f
}

type fetchState int

const (
	stateAttempting fetchState = iota
	stateRenewing
	stateBackoff
	stateExhausted
)

type attemptKind int

const (
	attemptOK attemptKind = iota
	attemptForbidden
	attemptFailed
)

var errAuthExpired = errors.New("clearance rejected")

// Fetch returns up to MaxIDs identifiers. Provider failures are absorbed into
// a ListingExhausted result; only caller cancellation is returned as an error.
func (f *ListingFetcher) Fetch(ctx context.Context, filterURL string) (port.Listing, error) {
	var (
		attempt  int // attempts counted against MaxAttempts
		sent     int // requests actually sent
		renewals int
		state    = stateAttempting
	)

	for {
		switch state {
		case stateAttempting:
			if attempt >= f.opts.MaxAttempts {
				state = stateExhausted
				continue
			}
			if err := f.sleep(ctx, f.opts.Pacing); err != nil {
				return port.Listing{}, err
			}
			attempt++
			sent++
			ids, kind, err := f.try(ctx, filterURL)
			if ctx.Err() != nil {
				return port.Listing{}, ctx.Err()
			}
			switch kind {
			case attemptOK:
				log.Debug().Str("url", filterURL).Int("attempt", attempt).Int("ids", len(ids)).Msg("listing fetched")
				return port.Listing{IDs: ids, Status: port.ListingOK, Attempts: sent, Renewals: renewals}, nil
			case attemptForbidden:
				log.Info().Str("url", filterURL).Int("attempt", attempt).Msg("listing 403, renewing clearance")
				state = stateRenewing
			default:
				log.Warn().Err(err).Str("url", filterURL).Int("attempt", attempt).Msg("listing attempt failed")
				state = stateBackoff
			}

		case stateRenewing:
			renewals++
			if _, err := f.creds.Renew(ctx); err != nil {
				if ctx.Err() != nil {
					return port.Listing{}, ctx.Err()
				}
				state = stateBackoff
				continue
			}
			// a free retry is still bounded by MaxAttempts renewals
			if !f.opts.RenewalConsumesAttempt && renewals <= f.opts.MaxAttempts {
				attempt--
			}
			state = stateAttempting

		case stateBackoff:
			if attempt >= f.opts.MaxAttempts {
				state = stateExhausted
				continue
			}
			d := f.opts.BackoffBase << (attempt - 1)
			if err := f.sleep(ctx, d); err != nil {
				return port.Listing{}, err
			}
			state = stateAttempting

		case stateExhausted:
			log.Error().Str("url", filterURL).Int("attempts", sent).Int("renewals", renewals).Msg("listing attempts exhausted")
			return port.Listing{Status: port.ListingExhausted, Attempts: sent, Renewals: renewals}, nil
		}
	}
}

func (f *ListingFetcher) try(ctx context.Context, filterURL string) ([]string, attemptKind, error) {
	ctx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, filterURL, nil)
	if err != nil {
		return nil, attemptFailed, err
	}
	creds, _ := f.creds.Current()
	applyBrowserHeaders(req, creds, f.opts.CookieName)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, attemptFailed, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		ids, err := ParseListing(resp.Body, f.opts.MaxIDs)
		if err != nil {
			return nil, attemptFailed, fmt.Errorf("parse listing: %w", err)
		}
		return ids, attemptOK, nil
	case http.StatusForbidden:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, attemptForbidden, errAuthExpired
	default:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, attemptFailed, fmt.Errorf("listing http %d", resp.StatusCode)
	}
}

var _ port.ListingSource = (*ListingFetcher)(nil)
