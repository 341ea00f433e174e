package pod

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrPodLimit is returned by Spawn when a population ceiling is hit.
var ErrPodLimit = errors.New("pod limit reached")

// ManagerConfig sets population ceilings and queue sizing.
type ManagerConfig struct {
	MaxPods       int
	MaxPerKind    map[Kind]int
	QueueCapacity int
}

// DefaultManagerConfig matches the ceilings the engine runs with in
// production: many hop pods, one of everything else.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		MaxPods: 50,
		MaxPerKind: map[Kind]int{
			KindHop:       10,
			KindBridge:    1,
			KindGovernor:  1,
			KindExecution: 1,
		},
		QueueCapacity: 1000,
	}
}

// Manager owns the pod population and the shared signal queue. All
// spawned pods publish into the manager's queue.
type Manager struct {
	cfg   ManagerConfig
	log   *zap.Logger
	queue *Queue

	mu   sync.RWMutex
	pods map[string]*Pod
}

func NewManager(cfg ManagerConfig, log *zap.Logger) *Manager {
	if cfg.MaxPods <= 0 {
		cfg.MaxPods = 50
	}
	return &Manager{
		cfg:   cfg,
		log:   log,
		queue: NewQueue(cfg.QueueCapacity),
		pods:  make(map[string]*Pod),
	}
}

// Spawn creates a pod for the runner. For kinds with a ceiling of one,
// spawning when an instance already exists returns that instance
// instead of an error. Pods are returned in the initializing state;
// call Start (or StartAll) to begin scanning.
func (m *Manager) Spawn(cfg Config, r Runner) (*Pod, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	limit, limited := m.cfg.MaxPerKind[cfg.Kind]
	if limited && limit == 1 {
		for _, p := range m.pods {
			if p.cfg.Kind == cfg.Kind && p.Status() != StatusTerminated {
				return p, nil
			}
		}
	}
	if len(m.pods) >= m.cfg.MaxPods {
		return nil, fmt.Errorf("%w: %d pods total", ErrPodLimit, len(m.pods))
	}
	if limited && m.countKindLocked(cfg.Kind) >= limit {
		return nil, fmt.Errorf("%w: %d %s pods", ErrPodLimit, limit, cfg.Kind)
	}

	id := fmt.Sprintf("%s_%s", cfg.Kind, strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	p := newPod(id, cfg, r, m.queue.Publish, m.log)
	m.pods[id] = p
	m.log.Info("pod spawned", zap.String("pod", id), zap.String("name", cfg.Name))
	return p, nil
}

func (m *Manager) countKindLocked(k Kind) int {
	n := 0
	for _, p := range m.pods {
		if p.cfg.Kind == k && p.Status() != StatusTerminated {
			n++
		}
	}
	return n
}

// Get returns a pod by ID.
func (m *Manager) Get(id string) (*Pod, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pods[id]
	return p, ok
}

// ByKind returns the live pods of one kind.
func (m *Manager) ByKind(k Kind) []*Pod {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Pod
	for _, p := range m.pods {
		if p.cfg.Kind == k && p.Status() != StatusTerminated {
			out = append(out, p)
		}
	}
	return out
}

// StartAll starts every pod still in the initializing state.
func (m *Manager) StartAll() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.pods {
		p.Start()
	}
}

// StopAll terminates every pod and waits for their loops.
func (m *Manager) StopAll() {
	m.mu.RLock()
	pods := make([]*Pod, 0, len(m.pods))
	for _, p := range m.pods {
		pods = append(pods, p)
	}
	m.mu.RUnlock()
	for _, p := range pods {
		p.Stop()
	}
}

// PauseAll suspends every active pod; ResumeAll reverses it.
func (m *Manager) PauseAll() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.pods {
		p.Pause()
	}
}

func (m *Manager) ResumeAll() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.pods {
		p.Resume()
	}
}

// Drain empties the shared queue in priority order.
func (m *Manager) Drain() []Signal {
	return m.queue.Drain()
}

// Publish puts a signal on the shared queue directly. Used by the
// engine for synthetic signals; pods publish through their own Emit.
func (m *Manager) Publish(s Signal) {
	m.queue.Publish(s)
}

// Queue exposes the shared queue for metrics.
func (m *Manager) Queue() *Queue {
	return m.queue
}

// Stats returns a per pod stats map plus population totals.
func (m *Manager) Stats() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pods := make(map[string]any, len(m.pods))
	byKind := make(map[string]int)
	for id, p := range m.pods {
		pods[id] = p.Stats()
		if p.Status() != StatusTerminated {
			byKind[string(p.cfg.Kind)]++
		}
	}
	return map[string]any{
		"pods":          pods,
		"pods_by_kind":  byKind,
		"queue_len":     m.queue.Len(),
		"queue_dropped": m.queue.Dropped(),
		"max_pods":      m.cfg.MaxPods,
	}
}
