package notifier

import (
	"context"
	"errors"
	"time"
)

type Notification struct {
	Summary  string
	Body     string
	Duration time.Duration
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Multi delivers each notification to every sink. A failing sink does not
// stop the others; their errors are joined.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
