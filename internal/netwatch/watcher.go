package netwatch

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	defaultPollInterval = 5 * time.Second
	subscriptionBuffer  = 16
)

// Watcher polls a Checker and broadcasts observations to subscribers.
// The first observation is always delivered; after that, only changes are.
type Watcher struct {
	checker  Checker
	interval time.Duration
	checkNow chan struct{}

	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	last   Status
	seeded bool
}

// NewWatcher constructs a watcher polling checker on the given interval.
func NewWatcher(checker Checker, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Watcher{
		checker:  checker,
		interval: interval,
		checkNow: make(chan struct{}, 1),
		subs:     make(map[*Subscription]struct{}),
	}
}

// Subscribe registers a listener for status events. Release it with Close
// when the consumer goes away.
func (w *Watcher) Subscribe() *Subscription {
	s := &Subscription{w: w, ch: make(chan Status, subscriptionBuffer)}
	w.mu.Lock()
	w.subs[s] = struct{}{}
	w.mu.Unlock()
	return s
}

// Last returns the most recent observation.
func (w *Watcher) Last() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

// CheckNow triggers an immediate poll (non-blocking).
func (w *Watcher) CheckNow() {
	select {
	case w.checkNow <- struct{}{}:
	default:
		// Poll already pending.
	}
}

// Start polls until ctx is canceled. Run it in its own goroutine.
func (w *Watcher) Start(ctx context.Context) {
	w.poll(ctx)

	t := time.NewTicker(w.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			logrus.Debug("reachability watcher stopped")
			return
		case <-w.checkNow:
			w.poll(ctx)
		case <-t.C:
			w.poll(ctx)
		}
	}
}

func (w *Watcher) poll(ctx context.Context) {
	status := w.checker.Check(ctx)

	w.mu.Lock()
	defer w.mu.Unlock()
	changed := !w.seeded || status != w.last
	w.seeded = true
	w.last = status
	if !changed {
		return
	}
	logrus.Debugf("reachability changed: %s", status)
	for s := range w.subs {
		select {
		case s.ch <- status:
		default:
			// Subscriber is not draining; drop rather than stall the poll loop.
		}
	}
}

// Subscription delivers status events until closed.
type Subscription struct {
	w    *Watcher
	ch   chan Status
	once sync.Once
}

// Events returns the status stream. The channel is closed by Close.
func (s *Subscription) Events() <-chan Status {
	return s.ch
}

// Close detaches the subscription and closes the event channel. After Close
// returns, no further events can be received. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.w.mu.Lock()
		delete(s.w.subs, s)
		s.w.mu.Unlock()

		// No sends can arrive once we're out of the subscriber set, so the
		// buffer can be drained before closing.
		for {
			select {
			case <-s.ch:
			default:
				close(s.ch)
				return
			}
		}
	})
}
