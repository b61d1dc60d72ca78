package store

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/nikbrunner/bmsync/internal/api"
)

// Listen applies push notifications from sub until ctx is cancelled.
// A dropped or failed channel is reopened with exponential backoff; the
// delay starts over after every successful connect. It returns ctx.Err().
func (s *Store) Listen(ctx context.Context, sub api.Subscriber) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.reconnectMin
	b.MaxInterval = s.reconnectMax

	for {
		err := s.listenOnce(ctx, sub, b)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		wait := b.NextBackOff()
		if wait == backoff.Stop {
			wait = s.reconnectMax
		}
		s.logger.Warn("push channel lost, reconnecting",
			zap.Error(err),
			zap.Duration("retry_in", wait),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (s *Store) listenOnce(ctx context.Context, sub api.Subscriber, b *backoff.ExponentialBackOff) error {
	stream, err := sub.Subscribe(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := stream.Close(); cerr != nil {
			s.logger.Debug("failed to close push channel", zap.Error(cerr))
		}
	}()

	b.Reset()
	s.setFlag(&s.live, true)
	defer s.setFlag(&s.live, false)
	s.logger.Info("push channel connected")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-stream.Events():
			if !ok {
				return stream.Err()
			}
			s.Apply(ev)
		}
	}
}
