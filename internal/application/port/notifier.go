package port

import "context"

// Notifier delivers a text alert to a subscriber. Delivery is best effort:
// callers log a returned error and move on.
type Notifier interface {
	Notify(ctx context.Context, subscriberID, text string) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, subscriberID, text string) error

func (f NotifierFunc) Notify(ctx context.Context, subscriberID, text string) error {
	return f(ctx, subscriberID, text)
}
