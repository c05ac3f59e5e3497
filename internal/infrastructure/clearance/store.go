package clearance

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"profitsniffer/internal/application/port"
	"profitsniffer/internal/domain/model"
)

// Store holds the process-wide credential pair. Readers always see a whole
// pair; writers replace it with one pointer swap.
type Store struct {
	cur       atomic.Pointer[model.Credentials]
	acquirer  Acquirer
	persister port.CredentialPersister // optional
	group     singleflight.Group
	renewals  atomic.Int64
}

func NewStore(acquirer Acquirer, persister port.CredentialPersister) *Store {
	return &Store{acquirer: acquirer, persister: persister}
}

// Load seeds the store from the persister. A missing or incomplete pair is not an error.
func (s *Store) Load(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	c, ok, err := s.persister.LoadCredentials(ctx)
	if err != nil {
		return err
	}
	if ok {
		s.cur.Store(&c)
		log.Info().Str("user_agent", c.UserAgent).Msg("clearance loaded")
	}
	return nil
}

// Current returns the latest pair, ok=false before the first acquisition.
func (s *Store) Current() (model.Credentials, bool) {
	p := s.cur.Load()
	if p == nil {
		return model.Credentials{}, false
	}
	return *p, true
}

// Set replaces the pair without contacting the solver.
func (s *Store) Set(c model.Credentials) {
	s.cur.Store(&c)
}

// CurrentOrAcquire returns the current pair, acquiring one if none exists.
func (s *Store) CurrentOrAcquire(ctx context.Context) (model.Credentials, error) {
	if c, ok := s.Current(); ok {
		return c, nil
	}
	return s.Renew(ctx)
}

// Renew acquires a fresh pair, persists it and swaps it in. Concurrent callers
// share a single solver round trip.
func (s *Store) Renew(ctx context.Context) (model.Credentials, error) {
	ch := s.group.DoChan("renew", func() (any, error) {
		// detached from the first caller so its cancellation does not fail the others
		c, err := s.acquirer.Acquire(context.WithoutCancel(ctx))
		if err != nil {
			log.Error().Err(err).Msg("clearance renewal failed")
			return model.Credentials{}, err
		}
		if s.persister != nil {
			if err := s.persister.SaveCredentials(context.WithoutCancel(ctx), c); err != nil {
				log.Warn().Err(err).Msg("persist clearance failed")
			}
		}
		s.cur.Store(&c)
		s.renewals.Add(1)
		log.Info().Str("user_agent", c.UserAgent).Msg("clearance renewed")
		return c, nil
	})

	select {
	case <-ctx.Done():
		return model.Credentials{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return model.Credentials{}, res.Err
		}
		return res.Val.(model.Credentials), nil
	}
}

// Renewals returns the number of successful renewals.
func (s *Store) Renewals() int64 { return s.renewals.Load() }
