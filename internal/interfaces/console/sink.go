package console

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"profitsniffer/internal/application/port"
	"profitsniffer/internal/domain/model"
)

// Sink prints alerts and cycle summaries to a terminal. Used when no
// Telegram token is configured and by the admin subcommands.
type Sink struct {
	mu  sync.Mutex
	out io.Writer
}

func NewSink(out io.Writer) *Sink {
	if out == nil {
		out = os.Stdout
	}
	return &Sink{out: out}
}

func (s *Sink) Notify(ctx context.Context, subscriberID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(s.out, "%s [%s] %s\n", time.Now().Format("2006-01-02 15:04:05"), subscriberID, text)
	return err
}

// WriteReport prints one line per subscriber plus a summary line.
func (s *Sink) WriteReport(r *model.CycleReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, res := range r.Results {
		status := "ok"
		if !res.OK() {
			status = string(res.Failure)
		}
		if _, err := fmt.Fprintf(s.out, "  %-16s %-16s total=%-3d added=%-3d %s\n",
			res.SubscriberID, status, res.Outcome.Total, res.Outcome.Added, res.Elapsed.Round(time.Millisecond)); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(s.out, "%s cycle %s: %d subscribers, %d failed, %d notified, %d swept, %d skipped\n",
		r.FinishedAt.Format("2006-01-02 15:04:05"), r.ID, len(r.Results), r.Failed(), r.Notified(), r.Swept, r.Skipped)
	return err
}

// WritePairs prints stored pairs as a table.
func (s *Sink) WritePairs(pairs []model.StoredPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range pairs {
		price := "-"
		if p.PriceUSD != nil {
			price = p.PriceUSD.String()
		}
		liq := "-"
		if p.LiquidityUSD != nil {
			liq = fmt.Sprintf("%.2f", *p.LiquidityUSD)
		}
		if _, err := fmt.Fprintf(s.out, "%-6d %-10s %-24s %-46s price=%s liq=%s\n",
			p.ID, p.Symbol, p.Name, p.Address, price, liq); err != nil {
			return err
		}
	}
	return nil
}

var _ port.Notifier = (*Sink)(nil)
