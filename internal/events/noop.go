package events

import (
	"context"
	"errors"
)

// NoopPublisher is a Publisher that does nothing (used when NATS is not configured).
type NoopPublisher struct{}

func (n *NoopPublisher) Publish(ctx context.Context, topic string, event any) error {
	return nil
}

func (n *NoopPublisher) Close() error {
	return nil
}

// Multi fans every event out to several publishers. Nil entries are
// skipped.
type Multi []Publisher

// NewMulti returns a Multi over the non-nil publishers.
func NewMulti(pubs ...Publisher) Multi {
	var m Multi
	for _, p := range pubs {
		if p != nil {
			m = append(m, p)
		}
	}
	return m
}

// Publish delivers to every publisher and joins their errors.
func (m Multi) Publish(ctx context.Context, topic string, event any) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, topic, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
