package pod

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

// tickRunner emits one fixed signal per scan.
type tickRunner struct {
	mu    sync.Mutex
	scans int
	fail  error
}

func (r *tickRunner) Scan(ctx context.Context) ([]Signal, error) {
	r.mu.Lock()
	r.scans++
	r.mu.Unlock()
	if r.fail != nil {
		return nil, r.fail
	}
	return []Signal{{Type: TypeWarning, Priority: 4}}, nil
}

func (r *tickRunner) Stats() map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return map[string]any{"scans": r.scans}
}

func (r *tickRunner) scanCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scans
}

func capturePublish() (func(Signal), func() []Signal) {
	var mu sync.Mutex
	var out []Signal
	return func(s Signal) {
			mu.Lock()
			out = append(out, s)
			mu.Unlock()
		}, func() []Signal {
			mu.Lock()
			defer mu.Unlock()
			return append([]Signal(nil), out...)
		}
}

func TestEmitStampsAndBoosts(t *testing.T) {
	publish, captured := capturePublish()
	p := newPod("hop_ab12cd34", Config{Kind: KindHop, PriorityBoost: 2}, &tickRunner{}, publish, zap.NewNop())

	if !p.Emit(Signal{Type: TypeOpportunity, Priority: 9}) {
		t.Fatal("emit refused")
	}
	got := captured()
	if len(got) != 1 {
		t.Fatalf("published %d signals", len(got))
	}
	s := got[0]
	if s.PodID != "hop_ab12cd34" || s.Kind != KindHop {
		t.Fatalf("identity not stamped: %+v", s)
	}
	if s.Priority != 10 {
		t.Fatalf("priority = %d, want boost capped at 10", s.Priority)
	}
	if s.Timestamp.IsZero() {
		t.Fatal("timestamp not stamped")
	}
}

func TestEmitHonorsPerMinuteBudget(t *testing.T) {
	publish, captured := capturePublish()
	p := newPod("hop_1", Config{Kind: KindHop, MaxSignalsPerMinute: 3}, &tickRunner{}, publish, zap.NewNop())

	granted := 0
	for i := 0; i < 5; i++ {
		if p.Emit(Signal{Type: TypeOpportunity, Priority: 5}) {
			granted++
		}
	}
	if granted != 3 {
		t.Fatalf("granted = %d, want 3", granted)
	}
	if len(captured()) != 3 {
		t.Fatalf("published = %d, want 3", len(captured()))
	}
}

func TestPodLifecycle(t *testing.T) {
	publish, captured := capturePublish()
	r := &tickRunner{}
	p := newPod("hop_1", Config{Kind: KindHop, Cooldown: 5 * time.Millisecond, MaxSignalsPerMinute: 1000}, r, publish, zap.NewNop())

	if p.Status() != StatusInitializing {
		t.Fatalf("status = %s before start", p.Status())
	}
	p.Start()
	waitFor(t, func() bool { return len(captured()) >= 2 })

	p.Pause()
	waitFor(t, func() bool { return p.Status() == StatusPaused })
	atPause := r.scanCount()
	time.Sleep(30 * time.Millisecond)
	if r.scanCount() > atPause+1 {
		t.Fatalf("pod kept scanning while paused: %d -> %d", atPause, r.scanCount())
	}

	p.Resume()
	waitFor(t, func() bool { return r.scanCount() > atPause+1 })

	p.Stop()
	if p.Status() != StatusTerminated {
		t.Fatalf("status = %s after stop", p.Status())
	}
	// Stop must be idempotent.
	p.Stop()
}

func TestPodCooldownScaleStretchesSleep(t *testing.T) {
	publish, _ := capturePublish()
	r := &tickRunner{}
	p := newPod("hop_1", Config{
		Kind:                KindHop,
		Cooldown:            10 * time.Millisecond,
		MaxSignalsPerMinute: 1000,
		CooldownScale:       func() float64 { return 20 },
	}, r, publish, zap.NewNop())

	p.Start()
	defer p.Stop()
	waitFor(t, func() bool { return r.scanCount() >= 1 })
	time.Sleep(50 * time.Millisecond)
	// The scaled 200ms cooldown keeps a second scan from landing in 50ms.
	if got := r.scanCount(); got != 1 {
		t.Fatalf("scans = %d during stretched cooldown, want 1", got)
	}
}

func TestPodBacksOffAfterScanError(t *testing.T) {
	publish, _ := capturePublish()
	r := &tickRunner{fail: errors.New("rpc down")}
	p := newPod("hop_1", Config{Kind: KindHop, Cooldown: time.Millisecond}, r, publish, zap.NewNop())

	p.Start()
	defer p.Stop()
	waitFor(t, func() bool { return r.scanCount() >= 1 })
	time.Sleep(20 * time.Millisecond)
	// The 5 second error backoff means no second scan lands in 20ms.
	if got := r.scanCount(); got != 1 {
		t.Fatalf("scans = %d during backoff, want 1", got)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestManagerSpawnCeilings(t *testing.T) {
	m := NewManager(ManagerConfig{
		MaxPods:       3,
		MaxPerKind:    map[Kind]int{KindHop: 2, KindGovernor: 1},
		QueueCapacity: 10,
	}, zap.NewNop())

	if _, err := m.Spawn(Config{Kind: KindHop, Name: "hop-2"}, &tickRunner{}); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Spawn(Config{Kind: KindHop, Name: "hop-3"}, &tickRunner{}); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Spawn(Config{Kind: KindHop, Name: "hop-4"}, &tickRunner{}); !errors.Is(err, ErrPodLimit) {
		t.Fatalf("err = %v, want ErrPodLimit", err)
	}

	// The total ceiling binds even for kinds with room left.
	if _, err := m.Spawn(Config{Kind: KindBridge, Name: "bridge"}, &tickRunner{}); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Spawn(Config{Kind: KindBridge, Name: "bridge-2"}, &tickRunner{}); !errors.Is(err, ErrPodLimit) {
		t.Fatalf("err = %v, want ErrPodLimit at total ceiling", err)
	}
}

func TestManagerSingletonKindsReturnExisting(t *testing.T) {
	m := NewManager(DefaultManagerConfig(), zap.NewNop())

	a, err := m.Spawn(Config{Kind: KindGovernor, Name: "governor"}, &tickRunner{})
	if err != nil {
		t.Fatal(err)
	}
	b, err := m.Spawn(Config{Kind: KindGovernor, Name: "governor"}, &tickRunner{})
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Fatalf("second spawn created a new governor: %s vs %s", a.ID, b.ID)
	}
	if len(m.ByKind(KindGovernor)) != 1 {
		t.Fatalf("governor count = %d", len(m.ByKind(KindGovernor)))
	}
}

func TestManagerRoutesEmitsToSharedQueue(t *testing.T) {
	m := NewManager(DefaultManagerConfig(), zap.NewNop())
	p, err := m.Spawn(Config{Kind: KindHop, Name: "hop-2"}, &tickRunner{})
	if err != nil {
		t.Fatal(err)
	}
	p.Emit(Signal{Type: TypeOpportunity, Priority: 7})

	got := m.Drain()
	if len(got) != 1 || got[0].PodID != p.ID {
		t.Fatalf("queue contents = %v", got)
	}
}
