package pod

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Status is the lifecycle state of a pod.
type Status int32

const (
	StatusInitializing Status = iota
	StatusActive
	StatusPaused
	StatusCooldown
	StatusTerminated
)

func (s Status) String() string {
	switch s {
	case StatusInitializing:
		return "initializing"
	case StatusActive:
		return "active"
	case StatusPaused:
		return "paused"
	case StatusCooldown:
		return "cooldown"
	case StatusTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Runner is the strategy a Pod runs. Scan is called on the pod's
// cadence and returns the signals to emit; it must be safe to call from
// the pod's single loop goroutine. Stats feeds the pod's introspection
// endpoint.
type Runner interface {
	Scan(ctx context.Context) ([]Signal, error)
	Stats() map[string]any
}

// Config sets a pod's identity and pacing.
type Config struct {
	Kind Kind
	Name string
	// PriorityBoost is added to each emitted signal's priority,
	// capped at 10.
	PriorityBoost int
	// MaxSignalsPerMinute limits emissions per rolling clock minute.
	// Zero means 10.
	MaxSignalsPerMinute int
	// Cooldown is slept after each scan. Zero means one second.
	Cooldown time.Duration
	// CooldownScale, when set, multiplies Cooldown before each sleep.
	// The factory points hop pods at the market context's cooldown
	// multiplier so scans back off under congestion.
	CooldownScale func() float64
}

const (
	idleInterval    = 500 * time.Millisecond
	limitedInterval = time.Second
	errorBackoff    = 5 * time.Second
)

// Pod drives one Runner on its own goroutine. Create pods through a
// Manager, which wires them to the shared queue.
type Pod struct {
	ID  string
	cfg Config

	runner  Runner
	publish func(Signal)
	log     *zap.Logger

	status atomic.Int32

	mu           sync.Mutex
	windowStart  time.Time
	windowEmits  int
	totalScans   uint64
	totalSignals uint64
	lastScan     time.Time
	createdAt    time.Time

	cancel  context.CancelFunc
	done    chan struct{}
	stopped sync.Once
}

func newPod(id string, cfg Config, r Runner, publish func(Signal), log *zap.Logger) *Pod {
	if cfg.MaxSignalsPerMinute <= 0 {
		cfg.MaxSignalsPerMinute = 10
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = time.Second
	}
	return &Pod{
		ID:        id,
		cfg:       cfg,
		runner:    r,
		publish:   publish,
		log:       log.With(zap.String("pod", id), zap.String("kind", string(cfg.Kind))),
		createdAt: time.Now(),
		done:      make(chan struct{}),
	}
}

// Start moves the pod to active and launches its loop. Starting twice
// is a no-op.
func (p *Pod) Start() {
	if !p.status.CompareAndSwap(int32(StatusInitializing), int32(StatusActive)) {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.log.Info("pod started",
		zap.String("name", p.cfg.Name),
		zap.Duration("cooldown", p.cfg.Cooldown))
	go p.run(ctx)
}

// Stop terminates the pod and waits for its loop to exit.
func (p *Pod) Stop() {
	p.stopped.Do(func() {
		if p.cancel != nil {
			p.cancel()
			<-p.done
		} else {
			close(p.done)
		}
		p.status.Store(int32(StatusTerminated))
		p.log.Info("pod stopped", zap.Uint64("scans", atomic.LoadUint64(&p.totalScans)))
	})
}

// Pause suspends scanning without tearing the pod down.
func (p *Pod) Pause() {
	p.status.CompareAndSwap(int32(StatusActive), int32(StatusPaused))
	p.status.CompareAndSwap(int32(StatusCooldown), int32(StatusPaused))
}

// Resume reactivates a paused pod.
func (p *Pod) Resume() {
	p.status.CompareAndSwap(int32(StatusPaused), int32(StatusActive))
}

// Status returns the current lifecycle state.
func (p *Pod) Status() Status {
	return Status(p.status.Load())
}

// Kind returns the pod's kind.
func (p *Pod) Kind() Kind {
	return p.cfg.Kind
}

// Runner exposes the strategy driven by this pod.
func (p *Pod) Runner() Runner {
	return p.runner
}

func (p *Pod) run(ctx context.Context) {
	defer close(p.done)
	for {
		if ctx.Err() != nil {
			return
		}
		if p.Status() != StatusActive {
			if !sleepCtx(ctx, idleInterval) {
				return
			}
			continue
		}
		if !p.allowEmit(false) {
			if !sleepCtx(ctx, limitedInterval) {
				return
			}
			continue
		}

		signals, err := p.runner.Scan(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.log.Warn("scan failed", zap.Error(err))
			if !sleepCtx(ctx, errorBackoff) {
				return
			}
			continue
		}

		p.mu.Lock()
		p.totalScans++
		p.lastScan = time.Now()
		p.mu.Unlock()

		for _, s := range signals {
			if !p.Emit(s) {
				break
			}
		}

		cooldown := p.cfg.Cooldown
		if p.cfg.CooldownScale != nil {
			if scale := p.cfg.CooldownScale(); scale > 1 {
				cooldown = time.Duration(float64(cooldown) * scale)
			}
		}
		p.status.CompareAndSwap(int32(StatusActive), int32(StatusCooldown))
		if !sleepCtx(ctx, cooldown) {
			return
		}
		p.status.CompareAndSwap(int32(StatusCooldown), int32(StatusActive))
	}
}

// Emit stamps a signal with the pod's identity and priority boost and
// publishes it, subject to the per minute limit. Runners with push
// paths (the bridge) call this directly, outside the scan cadence.
func (p *Pod) Emit(s Signal) bool {
	if !p.allowEmit(true) {
		return false
	}
	s.PodID = p.ID
	s.Kind = p.cfg.Kind
	s.Priority += p.cfg.PriorityBoost
	if s.Priority > 10 {
		s.Priority = 10
	}
	if s.Priority < 1 {
		s.Priority = 1
	}
	if s.Timestamp.IsZero() {
		s.Timestamp = time.Now()
	}
	p.mu.Lock()
	p.totalSignals++
	p.mu.Unlock()
	p.publish(s)
	return true
}

// allowEmit checks the rolling minute budget. With consume set the
// check also spends one emission.
func (p *Pod) allowEmit(consume bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	if p.windowStart.IsZero() || now.Sub(p.windowStart) >= time.Minute {
		p.windowStart = now
		p.windowEmits = 0
	}
	if p.windowEmits >= p.cfg.MaxSignalsPerMinute {
		return false
	}
	if consume {
		p.windowEmits++
	}
	return true
}

// Stats merges pod level counters with the runner's own stats.
func (p *Pod) Stats() map[string]any {
	p.mu.Lock()
	scans := p.totalScans
	signals := p.totalSignals
	last := p.lastScan
	p.mu.Unlock()

	out := map[string]any{
		"id":            p.ID,
		"kind":          string(p.cfg.Kind),
		"name":          p.cfg.Name,
		"status":        p.Status().String(),
		"total_scans":   scans,
		"total_signals": signals,
		"uptime":        time.Since(p.createdAt).Round(time.Second).String(),
	}
	if !last.IsZero() {
		out["last_scan"] = last.Format(time.RFC3339)
	}
	for k, v := range p.runner.Stats() {
		out[k] = v
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
