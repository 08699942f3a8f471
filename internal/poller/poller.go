// Package poller drives periodic refreshes of one CyberQ controller and fans
// the resulting state out to subscribers (HTTP, MQTT, metrics, dashboard).
//
// The device client is not safe for overlapping calls; the poller owns it and
// serializes every Refresh and Set behind a single mutex.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/muurk/cyberq/internal/cyberq"
	"github.com/muurk/cyberq/internal/logging"
	"go.uber.org/zap"
)

const (
	DefaultInterval = 5 * time.Second
	DefaultTimeout  = cyberq.RefreshTimeout
)

// Device is the part of *cyberq.Client the poller needs.
type Device interface {
	Refresh(ctx context.Context) (*cyberq.Store, error)
	Set(ctx context.Context, key string, value any) (bool, error)
	Sensors() *cyberq.Store
	Identity() cyberq.Identity
}

// State is what subscribers see after each poll or write.
// Snapshot is never mutated after publication.
type State struct {
	Snapshot    *cyberq.Store
	Identity    cyberq.Identity
	Changed     []string // keys that differ from the previous snapshot
	LastError   error
	LastAttempt time.Time
	LastSuccess time.Time
	Available   bool
	Failures    int // consecutive failed refreshes
}

// Stale reports whether the snapshot predates the most recent attempt.
func (s State) Stale() bool {
	return s.Snapshot != nil && !s.Available
}

type Option func(*Poller)

// WithInterval sets the delay between refreshes.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithTimeout bounds each Refresh and Set.
func WithTimeout(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// Poller runs Refresh on a fixed interval.
type Poller struct {
	device   Device
	interval time.Duration
	timeout  time.Duration
	now      func() time.Time

	deviceMu sync.Mutex

	stateMu sync.RWMutex
	state   State

	subsMu sync.Mutex
	subs   map[int]func(State)
	nextID int
}

func New(device Device, opts ...Option) *Poller {
	p := &Poller{
		device:   device,
		interval: DefaultInterval,
		timeout:  DefaultTimeout,
		now:      time.Now,
		subs:     make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Poller) Interval() time.Duration { return p.interval }

// State returns the latest published state.
func (p *Poller) State() State {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	return p.state
}

// Subscribe registers fn to receive every published state. Callbacks run
// synchronously with the device lock held; they must not block or call Set.
func (p *Poller) Subscribe(fn func(State)) (unsubscribe func()) {
	p.subsMu.Lock()
	id := p.nextID
	p.nextID++
	p.subs[id] = fn
	p.subsMu.Unlock()

	return func() {
		p.subsMu.Lock()
		delete(p.subs, id)
		p.subsMu.Unlock()
	}
}

// Run polls immediately and then every interval until ctx is cancelled.
// Failures are recorded in State and retried on the next tick only.
func (p *Poller) Run(ctx context.Context) {
	logging.Info("Poller started", zap.Duration("interval", p.interval), zap.Duration("timeout", p.timeout))

	p.Poll(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info("Poller stopped")
			return
		case <-ticker.C:
			p.Poll(ctx)
		}
	}
}

// Poll performs one refresh cycle and publishes the result.
//
// The device lock is held until subscribers have seen the result, so a Set
// cannot interleave and have its newer snapshot overwritten.
func (p *Poller) Poll(ctx context.Context) State {
	p.deviceMu.Lock()
	defer p.deviceMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	snapshot, err := p.device.Refresh(ctx)
	cancel()
	identity := p.device.Identity()

	now := p.now()

	p.stateMu.Lock()
	prev := p.state
	next := prev
	next.Identity = identity
	next.LastAttempt = now
	next.Changed = nil
	if err != nil {
		next.LastError = err
		next.Available = false
		next.Failures++
		p.state = next
		p.stateMu.Unlock()

		logging.Warn("Refresh failed",
			zap.String("host", identity.Host),
			zap.Int("failures", next.Failures),
			zap.Bool("retryable", cyberq.IsRetryable(err)),
			zap.Error(err))
		p.publish(next)
		return next
	}

	next.Snapshot = snapshot
	next.Changed = snapshot.ChangedSince(prev.Snapshot)
	next.LastError = nil
	next.LastSuccess = now
	next.Available = true
	next.Failures = 0
	p.state = next
	p.stateMu.Unlock()

	if prev.Failures > 0 {
		logging.Info("Controller reachable again", zap.Int("after_failures", prev.Failures))
	}
	logging.Debug("Refresh complete", zap.Int("sensors", snapshot.Len()), zap.Int("changed", len(next.Changed)))

	p.publish(next)
	return next
}

// Set writes one sensor, serialized with refreshes, and publishes the
// echoed snapshot on success.
func (p *Poller) Set(ctx context.Context, key string, value any) error {
	p.deviceMu.Lock()
	defer p.deviceMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	_, err := p.device.Set(ctx, key, value)
	cancel()
	if err != nil {
		logging.Warn("Write failed", zap.String("sensor", key), zap.Error(err))
		return err
	}
	snapshot := p.device.Sensors()
	identity := p.device.Identity()

	p.stateMu.Lock()
	prev := p.state
	next := prev
	next.Identity = identity
	next.Snapshot = snapshot
	next.Changed = snapshot.ChangedSince(prev.Snapshot)
	p.state = next
	p.stateMu.Unlock()

	p.publish(next)
	return nil
}

func (p *Poller) publish(s State) {
	p.subsMu.Lock()
	fns := make([]func(State), 0, len(p.subs))
	for _, fn := range p.subs {
		fns = append(fns, fn)
	}
	p.subsMu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}
