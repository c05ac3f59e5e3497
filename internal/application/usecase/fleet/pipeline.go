package fleet

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"profitsniffer/internal/application/port"
	"profitsniffer/internal/domain/model"
	domainsvc "profitsniffer/internal/domain/service"
)

// Reconciler is satisfied by service.Reconciler.
type Reconciler interface {
	Reconcile(ctx context.Context, subscriberID string, pairs []model.Pair) (model.Outcome, error)
}

// Pipeline runs fetch → enrich → reconcile → notify for one subscriber.
// Steps are strictly sequential.
type Pipeline struct {
	Source     port.ListingSource
	Enricher   port.PairEnricher
	Reconciler Reconciler
	Notifier   port.Notifier // optional

	// PreserveOnFetchFailure keeps the interest set when every listing attempt
	// failed instead of reconciling the failure as an empty result.
	PreserveOnFetchFailure bool

	// Message renders the alert text; defaults to a random phrasing.
	Message func(count int) string
}

func (p *Pipeline) Run(ctx context.Context, sub model.Subscriber) model.SubscriberResult {
	start := time.Now()
	res := model.SubscriberResult{SubscriberID: sub.ID}
	fail := func(reason model.FailureReason, err error) model.SubscriberResult {
		res.Failure = reason
		res.Err = err
		res.Elapsed = time.Since(start)
		return res
	}

	listing, err := p.Source.Fetch(ctx, sub.FilterURL)
	if err != nil {
		return fail(ctxReason(err), err)
	}
	if listing.Status == port.ListingExhausted && p.PreserveOnFetchFailure {
		return fail(model.FailureFetch, errors.New("listing attempts exhausted"))
	}

	var pairs []model.Pair
	if len(listing.IDs) > 0 {
		pairs = p.Enricher.Enrich(ctx, listing.IDs)
	}
	// a cancelled enrichment looks like an empty result; never reconcile it
	if err := ctx.Err(); err != nil {
		return fail(ctxReason(err), err)
	}

	out, err := p.Reconciler.Reconcile(ctx, sub.ID, pairs)
	if err != nil {
		if ctx.Err() != nil {
			return fail(ctxReason(ctx.Err()), err)
		}
		return fail(model.FailureStore, err)
	}
	res.Outcome = out

	if out.Added > 0 && p.Notifier != nil {
		msg := domainsvc.AlertMessage
		if p.Message != nil {
			msg = p.Message
		}
		if err := p.Notifier.Notify(ctx, sub.ID, msg(out.Added)); err != nil {
			log.Warn().Err(err).Str("subscriber", sub.ID).Int("added", out.Added).Msg("notify failed")
		} else {
			res.Notified = true
		}
	}

	res.Elapsed = time.Since(start)
	log.Debug().
		Str("subscriber", sub.ID).
		Str("listing", listing.Status.String()).
		Int("ids", len(listing.IDs)).
		Int("total", out.Total).
		Int("added", out.Added).
		Dur("elapsed", res.Elapsed).
		Msg("subscriber processed")
	return res
}

func ctxReason(err error) model.FailureReason {
	if errors.Is(err, context.DeadlineExceeded) {
		return model.FailureTimeout
	}
	return model.FailureOther
}
