package fleet

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"profitsniffer/internal/application/port"
	"profitsniffer/internal/domain/model"
)

// ErrCycleInFlight is returned when a cycle is requested while another one runs.
var ErrCycleInFlight = errors.New("fleet cycle already in flight")

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

type Options struct {
	Interval          time.Duration // cycle cadence, default 1m
	MaxSubscribers    int           // per-cycle ceiling, default 300
	BatchSize         int           // default 30
	SubscriberTimeout time.Duration // default 50s
	StragglerGrace    time.Duration // wait for cancelled pipelines to unwind, default 5s
	RunOnStart        bool
}

func (o *Options) applyDefaults() {
	if o.Interval <= 0 {
		o.Interval = time.Minute
	}
	if o.MaxSubscribers <= 0 {
		o.MaxSubscribers = 300
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 30
	}
	if o.SubscriberTimeout <= 0 {
		o.SubscriberTimeout = 50 * time.Second
	}
	if o.StragglerGrace <= 0 {
		o.StragglerGrace = 5 * time.Second
	}
}

// Runner processes one subscriber; *Pipeline is the production implementation.
type Runner interface {
	Run(ctx context.Context, sub model.Subscriber) model.SubscriberResult
}

// Scheduler drives fleet cycles. At most one cycle is in flight at a time.
type Scheduler struct {
	store  port.Store
	runner Runner
	opts   Options
	sleep  Sleeper

	running atomic.Bool
	last    atomic.Pointer[model.CycleReport]
	wg      sync.WaitGroup
}

func NewScheduler(store port.Store, runner Runner, opts Options) *Scheduler {
	opts.applyDefaults()
	return &Scheduler{store: store, runner: runner, opts: opts, sleep: sleepCtx}
}

// WithSleeper replaces the inter-batch wait, mostly for tests.
func (s *Scheduler) WithSleeper(fn Sleeper) *Scheduler {
	s.sleep = fn
	return s
}

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

// BatchGap is the pause between batches: the interval spread over the
// number of batches a full cycle at the ceiling would have.
func (s *Scheduler) BatchGap() time.Duration {
	numBatches := (s.opts.MaxSubscribers + s.opts.BatchSize - 1) / s.opts.BatchSize
	return s.opts.Interval / time.Duration(numBatches)
}

// Run ticks every interval until ctx is done. A tick that finds a cycle
// still running is skipped.
func (s *Scheduler) Run(ctx context.Context) error {
	log.Info().
		Dur("interval", s.opts.Interval).
		Int("ceiling", s.opts.MaxSubscribers).
		Int("batch", s.opts.BatchSize).
		Msg("fleet scheduler started")

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	if s.opts.RunOnStart {
		s.trigger(ctx)
	}
	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return ctx.Err()
		case <-ticker.C:
			s.trigger(ctx)
		}
	}
}

func (s *Scheduler) trigger(ctx context.Context) {
	if s.running.Load() {
		log.Warn().Msg("previous fleet cycle still running, skipping tick")
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := s.RunCycle(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("fleet cycle failed")
		}
	}()
}

// RunCycle processes every subscriber up to the ceiling and then sweeps
// orphaned pairs. Subscriber failures are reported, never returned.
func (s *Scheduler) RunCycle(ctx context.Context) (*model.CycleReport, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrCycleInFlight
	}
	defer s.running.Store(false)

	report := &model.CycleReport{ID: uuid.NewString(), StartedAt: time.Now()}
	logger := log.With().Str("cycle", report.ID).Logger()

	subs, err := s.store.ListSubscribers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	report.Subscribers = len(subs)
	if len(subs) > s.opts.MaxSubscribers {
		report.Skipped = len(subs) - s.opts.MaxSubscribers
		subs = subs[:s.opts.MaxSubscribers]
		logger.Warn().Int("skipped", report.Skipped).Msg("subscriber ceiling reached")
	}

	batches := batchSubscribers(subs, s.opts.BatchSize)
	report.Batches = len(batches)
	gap := s.BatchGap()

	for i, batch := range batches {
		report.Results = append(report.Results, s.runBatch(ctx, batch)...)
		if i < len(batches)-1 {
			if err := s.sleep(ctx, gap); err != nil {
				report.FinishedAt = time.Now()
				s.last.Store(report)
				return report, err
			}
		}
	}

	s.sweep(ctx, report)
	report.FinishedAt = time.Now()
	s.last.Store(report)

	logger.Info().
		Int("subscribers", len(report.Results)).
		Int("failed", report.Failed()).
		Int("notified", report.Notified()).
		Int64("swept", report.Swept).
		Dur("took", report.FinishedAt.Sub(report.StartedAt)).
		Msg("fleet cycle done")
	return report, nil
}

// RunSubscriber runs one pipeline on demand, outside the cycle.
func (s *Scheduler) RunSubscriber(ctx context.Context, id string) (model.SubscriberResult, error) {
	sub, err := s.store.GetSubscriber(ctx, id)
	if err != nil {
		return model.SubscriberResult{}, err
	}
	var inflight sync.WaitGroup
	res := s.runOne(ctx, *sub, &inflight)
	waitTimeout(&inflight, s.opts.StragglerGrace)
	return res, nil
}

// LastReport returns the most recent cycle report, nil before the first cycle.
func (s *Scheduler) LastReport() *model.CycleReport {
	return s.last.Load()
}

func (s *Scheduler) runBatch(ctx context.Context, batch []model.Subscriber) []model.SubscriberResult {
	results := make([]model.SubscriberResult, len(batch))
	var (
		wg       sync.WaitGroup
		inflight sync.WaitGroup
	)
	for i, sub := range batch {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = s.runOne(ctx, sub, &inflight)
		}()
	}
	wg.Wait()

	// timed-out pipelines are cancelled; let them unwind before the sweep
	if !waitTimeout(&inflight, s.opts.StragglerGrace) {
		log.Warn().Dur("grace", s.opts.StragglerGrace).Msg("cancelled pipelines still running")
	}

	for _, r := range results {
		if !r.OK() {
			log.Warn().Err(r.Err).Str("subscriber", r.SubscriberID).Str("reason", string(r.Failure)).Msg("subscriber failed")
		}
	}
	return results
}

func (s *Scheduler) runOne(parent context.Context, sub model.Subscriber, inflight *sync.WaitGroup) model.SubscriberResult {
	ctx, cancel := context.WithTimeout(parent, s.opts.SubscriberTimeout)
	defer cancel()

	done := make(chan model.SubscriberResult, 1)
	inflight.Add(1)
	go func() {
		defer inflight.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Error().Str("subscriber", sub.ID).Interface("panic", r).Bytes("stack", debug.Stack()).Msg("subscriber pipeline panicked")
				done <- model.SubscriberResult{SubscriberID: sub.ID, Failure: model.FailurePanic, Err: fmt.Errorf("panic: %v", r)}
			}
		}()
		done <- s.runner.Run(ctx, sub)
	}()

	select {
	case res := <-done:
		return res
	case <-ctx.Done():
		reason := model.FailureTimeout
		if parent.Err() != nil {
			reason = model.FailureOther
		}
		return model.SubscriberResult{SubscriberID: sub.ID, Failure: reason, Err: ctx.Err(), Elapsed: s.opts.SubscriberTimeout}
	}
}

// sweep deletes stored pairs no interest set references.
func (s *Scheduler) sweep(ctx context.Context, report *model.CycleReport) {
	used, err := s.store.AllInterestMembers(ctx)
	if err != nil {
		report.SweepErr = err
		log.Error().Err(err).Msg("orphan sweep: collect members failed")
		return
	}
	n, err := s.store.DeleteRecordsNotIn(ctx, used)
	if err != nil {
		report.SweepErr = err
		log.Error().Err(err).Msg("orphan sweep failed")
		return
	}
	report.Swept = n
}

func batchSubscribers(subs []model.Subscriber, size int) [][]model.Subscriber {
	var out [][]model.Subscriber
	for len(subs) > 0 {
		n := min(size, len(subs))
		out = append(out, subs[:n])
		subs = subs[n:]
	}
	return out
}

func waitTimeout(wg *sync.WaitGroup, d time.Duration) bool {
	ch := make(chan struct{})
	go func() {
		wg.Wait()
		close(ch)
	}()
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ch:
		return true
	case <-t.C:
		return false
	}
}
