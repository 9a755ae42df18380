package telemetry

import (
	"sync"
	"time"
)

// StatusSnapshot is the subset of topology.Coordinator state the collector
// needs to update gauges. Kept decoupled from package topology so telemetry
// never imports the pure core.
type StatusSnapshot struct {
	State                   string // reported MemberState, e.g. "PRIMARY"
	Term                    int64
	CanAcceptWrites         bool
	MaintenanceCount        int
	MembersUp               int
	MembersDown             int
	LastCommittedOpTimeSecs int64
	LastCommittedOpTimeTerm int64
}

// StatusProvider is implemented by the runtime wrapper around a
// topology.Coordinator.
type StatusProvider interface {
	Status() StatusSnapshot
}

// StatusCollector periodically snapshots coordinator status into the
// role/term/commit gauges declared in metrics.go.
type StatusCollector struct {
	provider StatusProvider
	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup

	lastState string
}

// NewStatusCollector creates a collector polling provider every interval.
func NewStatusCollector(provider StatusProvider, interval time.Duration) *StatusCollector {
	return &StatusCollector{
		provider: provider,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic collection loop in a new goroutine.
func (c *StatusCollector) Start() {
	c.wg.Add(1)
	go c.collectLoop()
}

// Stop halts the collection loop and waits for it to exit.
func (c *StatusCollector) Stop() {
	close(c.stopCh)
	c.wg.Wait()
}

func (c *StatusCollector) collectLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.collect()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopCh:
			return
		}
	}
}

func (c *StatusCollector) collect() {
	if c.provider == nil {
		return
	}

	snap := c.provider.Status()

	allStates := []string{"PRIMARY", "SECONDARY", "STARTUP2", "RECOVERING", "ROLLBACK", "ARBITER", "DOWN", "UNKNOWN"}
	for _, s := range allStates {
		if s == snap.State {
			CurrentRole.With(s).Set(1)
		} else {
			CurrentRole.With(s).Set(0)
		}
	}

	if c.lastState != "" && c.lastState != snap.State {
		RoleTransitionsTotal.With(c.lastState, snap.State).Inc()
	}
	c.lastState = snap.State

	CurrentTerm.Set(float64(snap.Term))
	if snap.CanAcceptWrites {
		CanAcceptWrites.Set(1)
	} else {
		CanAcceptWrites.Set(0)
	}
	MaintenanceCount.Set(float64(snap.MaintenanceCount))
	MembersUp.Set(float64(snap.MembersUp))
	MembersDown.Set(float64(snap.MembersDown))
	LastCommittedOpTimeTerm.Set(float64(snap.LastCommittedOpTimeTerm))
	LastCommittedOpTimeTimestamp.Set(float64(snap.LastCommittedOpTimeSecs))
}
