package composite

import (
	"context"

	"github.com/rs/zerolog/log"

	"profitsniffer/internal/application/port"
	"profitsniffer/internal/domain/model"
)

// Persister fans credential writes out to every backend.
// Loads return the first backend holding a complete pair.
type Persister struct {
	backends []port.CredentialPersister
}

func NewPersister(backends ...port.CredentialPersister) *Persister {
	// nil backends are allowed; filter in constructor
	out := make([]port.CredentialPersister, 0, len(backends))
	for _, b := range backends {
		if b != nil {
			out = append(out, b)
		}
	}
	return &Persister{backends: out}
}

func (p *Persister) LoadCredentials(ctx context.Context) (model.Credentials, bool, error) {
	var firstErr error
	for _, b := range p.backends {
		c, ok, err := b.LoadCredentials(ctx)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if ok {
			return c, true, nil
		}
	}
	return model.Credentials{}, false, firstErr
}

func (p *Persister) SaveCredentials(ctx context.Context, c model.Credentials) error {
	var firstErr error
	for _, b := range p.backends {
		if err := b.SaveCredentials(ctx, c); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Notifier delivers every alert to all sinks; the first error wins but
// later sinks still run.
type Notifier struct {
	sinks []port.Notifier
}

func NewNotifier(sinks ...port.Notifier) *Notifier {
	out := make([]port.Notifier, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return &Notifier{sinks: out}
}

func (n *Notifier) Notify(ctx context.Context, subscriberID, text string) error {
	var firstErr error
	for _, s := range n.sinks {
		if err := s.Notify(ctx, subscriberID, text); err != nil {
			log.Debug().Err(err).Str("subscriber", subscriberID).Msg("notify sink failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Len returns the number of sinks.
func (n *Notifier) Len() int { return len(n.sinks) }

var (
	_ port.CredentialPersister = (*Persister)(nil)
	_ port.Notifier            = (*Notifier)(nil)
)
