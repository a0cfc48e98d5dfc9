package worker

import (
	"context"
	"fmt"
	"time"

	"weenotify/internal/domain"
	"weenotify/internal/filter"
	"weenotify/internal/logx"
	"weenotify/internal/notifier"
	"weenotify/internal/queue"
)

type Options struct {
	// NoticeDuration is how long each desktop notification stays up.
	NoticeDuration time.Duration
	// SkipMalformed makes undecodable deliveries non-fatal: they are logged,
	// acknowledged and dropped.
	SkipMalformed bool
}

// Relay turns broker deliveries into notifications: decode, ack, filter,
// notify. Deliveries are handled strictly one after another.
type Relay struct {
	consumer queue.Consumer
	filter   *filter.Filter
	notifier notifier.Notifier
	opts     Options
	log      logx.Logger
}

func NewRelay(c queue.Consumer, f *filter.Filter, n notifier.Notifier, opts Options, log logx.Logger) *Relay {
	return &Relay{
		consumer: c,
		filter:   f,
		notifier: n,
		opts:     opts,
		log:      log,
	}
}

func (w *Relay) Start(ctx context.Context) error {
	return w.consumer.Consume(ctx, w.handleDelivery)
}

// handleDelivery acknowledges right after decoding, before filtering and
// display, so a crash past that point loses the message.
func (w *Relay) handleDelivery(ctx context.Context, d queue.Delivery) error {
	w.log.Trace("received delivery", logx.Uint64("tag", d.Tag), logx.String("payload", string(d.Body)))

	msg, err := domain.Decode(d.Body)
	if err != nil {
		if !w.opts.SkipMalformed {
			return fmt.Errorf("delivery %d: %w", d.Tag, err)
		}
		w.log.Warn("skipping malformed delivery", logx.Uint64("tag", d.Tag), logx.Err(err))
		if err := d.Ack(); err != nil {
			return fmt.Errorf("ack delivery %d: %w", d.Tag, err)
		}
		return nil
	}

	if err := d.Ack(); err != nil {
		return fmt.Errorf("ack delivery %d: %w", d.Tag, err)
	}

	sender, _ := msg.Sender()
	w.log.Debug("parsed message",
		logx.Uint64("tag", d.Tag),
		logx.String("type", string(msg.Type)),
		logx.String("channel", msg.Channel),
		logx.String("sender", sender),
		logx.Strings("tags", msg.Tags),
	)

	if w.filter.ShouldFilter(msg) {
		return nil
	}

	n := notifier.Notification{
		Summary:  msg.Summary(),
		Body:     msg.Body,
		Duration: w.opts.NoticeDuration,
	}
	if err := w.notifier.Notify(ctx, n); err != nil {
		w.log.Error("error displaying notification",
			logx.String("summary", n.Summary),
			logx.String("body", n.Body),
			logx.Err(err),
		)
	}

	return nil
}
