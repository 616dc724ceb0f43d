package watch

import (
	"context"
	"fmt"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/aretw0/lifecycle/pkg/core/supervisor"
	"github.com/aretw0/lifecycle/pkg/core/worker"
)

type tableSource struct {
	dir    string
	opts   []Option
	events chan Event
	out    chan lifecycle.Event
}

// NewSource creates a lifecycle.Source emitting an Event for every table
// created or modified under dir. The watcher is supervised and restarted
// when it fails.
func NewSource(dir string, opts ...Option) (lifecycle.Source, error) {
	if _, err := newConfig(opts); err != nil {
		return nil, err
	}
	return &tableSource{
		dir:    dir,
		opts:   opts,
		events: make(chan Event),
		out:    make(chan lifecycle.Event),
	}, nil
}

func (s *tableSource) Events() <-chan lifecycle.Event {
	return s.out
}

func (s *tableSource) Start(ctx context.Context) error {
	spec := supervisor.Spec{
		Name: "table-watcher",
		Type: string(worker.TypeGoroutine),
		Factory: func() (worker.Worker, error) {
			return NewWorker(s.dir, s.events, s.opts...)
		},
		Backoff: supervisor.Backoff{
			InitialInterval: 100 * time.Millisecond,
			MaxInterval:     5 * time.Second,
			Multiplier:      2,
			ResetDuration:   time.Minute,
			MaxRestarts:     5,
			MaxDuration:     10 * time.Minute,
		},
		RestartPolicy: supervisor.RestartOnFailure,
	}
	sup := supervisor.New("cpm-watch", supervisor.StrategyOneForOne, spec)
	if err := sup.Start(ctx); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer close(s.out)
		for {
			select {
			case <-ctx.Done():
				stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
				defer cancel()
				return sup.Stop(stopCtx)
			case e := <-s.events:
				select {
				case s.out <- e:
				case <-ctx.Done():
				}
			}
		}
	})
	return nil
}
