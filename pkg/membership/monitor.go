package membership

import (
	"sync"
	"time"
)

// LivenessMonitor tracks heartbeat-driven liveness for one connected node,
// adapted from this codebase's health.Status consecutive-failure counter:
// a node is marked down only after missing Retries consecutive heartbeats,
// so one dropped heartbeat on an otherwise healthy link does not trigger a
// false node-down.
type LivenessMonitor struct {
	mu                  sync.Mutex
	retries             int
	consecutiveFailures int
	lastHeartbeat       time.Time
	alive               bool
	stopCh              chan struct{}
	stopOnce            sync.Once
}

// DefaultRetries is how many consecutive missed heartbeats mark a node
// down.
const DefaultRetries = 3

// NewLivenessMonitor returns a monitor that starts out alive.
func NewLivenessMonitor() *LivenessMonitor {
	return &LivenessMonitor{
		retries:       DefaultRetries,
		lastHeartbeat: time.Now(),
		alive:         true,
		stopCh:        make(chan struct{}),
	}
}

// Heartbeat records a successful heartbeat, resetting the failure streak.
func (m *LivenessMonitor) Heartbeat() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastHeartbeat = time.Now()
	m.consecutiveFailures = 0
	m.alive = true
}

// MissedHeartbeat records a missed heartbeat and reports whether this was
// the failure that crossed the retries threshold (i.e. the node just
// transitioned to down).
func (m *LivenessMonitor) MissedHeartbeat() (justWentDown bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wasAlive := m.alive
	m.consecutiveFailures++
	if m.consecutiveFailures >= m.retries {
		m.alive = false
	}
	return wasAlive && !m.alive
}

// Alive reports the monitor's current liveness verdict.
func (m *LivenessMonitor) Alive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.alive
}

// LastHeartbeat returns the time of the most recent recorded heartbeat.
func (m *LivenessMonitor) LastHeartbeat() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastHeartbeat
}

// Stop releases the monitor. Safe to call more than once.
func (m *LivenessMonitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}
