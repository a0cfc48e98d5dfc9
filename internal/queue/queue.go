package queue

import (
	"context"
	"errors"
)

var ErrStreamClosed = errors.New("delivery stream closed")

// Delivery is one raw message pulled from the broker.
type Delivery struct {
	Body []byte
	Tag  uint64

	ack func(tag uint64) error
}

func NewDelivery(body []byte, tag uint64, ack func(tag uint64) error) Delivery {
	return Delivery{Body: body, Tag: tag, ack: ack}
}

// Ack tells the broker this delivery was received.
func (d Delivery) Ack() error {
	if d.ack == nil {
		return nil
	}
	return d.ack(d.Tag)
}

// Handler processes one delivery. A non-nil error stops consumption.
type Handler func(ctx context.Context, d Delivery) error

type Consumer interface {
	Consume(ctx context.Context, handler Handler) error
	Close() error
}
