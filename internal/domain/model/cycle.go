package model

import "time"

// Outcome is the result of reconciling one subscriber.
type Outcome struct {
	Total int `json:"total"`
	Added int `json:"added"`
}

// FailureReason classifies why a subscriber's pipeline did not produce an Outcome.
type FailureReason string

const (
	FailureNone    FailureReason = ""
	FailureTimeout FailureReason = "timeout"
	FailureFetch   FailureReason = "fetch_exhausted"
	FailureStore   FailureReason = "store"
	FailurePanic   FailureReason = "panic"
	FailureOther   FailureReason = "error"
)

// SubscriberResult is either an Outcome or a FailureReason.
type SubscriberResult struct {
	SubscriberID string        `json:"subscriber_id"`
	Outcome      Outcome       `json:"outcome"`
	Failure      FailureReason `json:"failure,omitempty"`
	Err          error         `json:"-"`
	Notified     bool          `json:"notified"`
	Elapsed      time.Duration `json:"elapsed"`
}

func (r SubscriberResult) OK() bool { return r.Failure == FailureNone }

// CycleReport collects every subscriber result of one fleet cycle.
type CycleReport struct {
	ID          string             `json:"id"`
	StartedAt   time.Time          `json:"started_at"`
	FinishedAt  time.Time          `json:"finished_at"`
	Subscribers int                `json:"subscribers"` // total known subscribers
	Skipped     int                `json:"skipped"`     // beyond the per-cycle ceiling
	Batches     int                `json:"batches"`
	Results     []SubscriberResult `json:"results"`
	Swept       int64              `json:"swept"`
	SweepErr    error              `json:"-"`
}

// Failed counts results that carry a FailureReason.
func (r *CycleReport) Failed() int {
	n := 0
	for _, res := range r.Results {
		if !res.OK() {
			n++
		}
	}
	return n
}

// Notified counts subscribers that were sent an alert.
func (r *CycleReport) Notified() int {
	n := 0
	for _, res := range r.Results {
		if res.Notified {
			n++
		}
	}
	return n
}
