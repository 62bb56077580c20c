package geo

import (
	"context"
	"io"
	"sync"
)

// emitFunc hands an update to the subscriber. It returns false once the
// watch has been closed and the producer must stop.
type emitFunc func(Update) bool

// feed is the Watch implementation shared by the providers in this package.
// The producer runs in its own goroutine; Close cancels it, releases the
// optional closer and waits for the producer to return.
type feed struct {
	ch     chan Update
	cancel context.CancelFunc
	closer io.Closer
	done   chan struct{}
	once   sync.Once
	onStop func()
}

func startFeed(ctx context.Context, closer io.Closer, run func(ctx context.Context, emit emitFunc)) *feed {
	ctx, cancel := context.WithCancel(ctx)
	f := &feed{
		ch:     make(chan Update),
		cancel: cancel,
		closer: closer,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(f.done)
		defer close(f.ch)
		run(ctx, func(u Update) bool {
			select {
			case f.ch <- u:
				return true
			case <-ctx.Done():
				return false
			}
		})
	}()

	return f
}

func (f *feed) Updates() <-chan Update { return f.ch }

func (f *feed) Close() error {
	var err error
	f.once.Do(func() {
		f.cancel()
		if f.closer != nil {
			err = f.closer.Close()
		}
		<-f.done
		if f.onStop != nil {
			f.onStop()
		}
	})
	return err
}
