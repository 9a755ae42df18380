package topology

import (
	"time"

	"github.com/hieutrieu/replset/optime"
)

// defaultPingThreshold is the first-pass ping cutoff chooseNewSyncSource
// tries before relaxing it.
const defaultPingThreshold = 30 * time.Millisecond

// ReplSetMetadata is the subset of a peer's replSetMetadata this node
// consults when deciding whether to switch sync source.
type ReplSetMetadata struct {
	IsPrimary       bool
	SyncSourceIndex int // -1 if the peer reports no sync source
	LastOpApplied   optime.OpTime
}

// OplogQueryMetadata is the subset of a peer's oplog query metadata this
// node consults when deciding whether to switch sync source.
type OplogQueryMetadata struct {
	LastOpApplied optime.OpTime
}

// getSyncSourceAddress implements getSyncSourceAddress(): the host most
// recently accepted by acceptSyncSource, or "" before any sync source has
// been chosen.
func (c *Coordinator) getSyncSourceAddress() string {
	return c.syncSource
}

// setForceSyncSourceIndex implements setForceSyncSourceIndex: the next
// chooseNewSyncSource call prefers this member if it is eligible, then
// consumes the forcing.
func (c *Coordinator) setForceSyncSourceIndex(idx int) {
	c.forceSyncSourceIndex = idx
}

// blacklistSyncSource implements blacklistSyncSource(host, until).
func (c *Coordinator) blacklistSyncSource(host string, until time.Time) {
	c.syncSourceBlacklist[host] = until
}

// unblacklistSyncSource implements unblacklistSyncSource(host, now): only
// removes the entry if it has already expired.
func (c *Coordinator) unblacklistSyncSource(host string, now time.Time) {
	if until, ok := c.syncSourceBlacklist[host]; ok && !now.Before(until) {
		delete(c.syncSourceBlacklist, host)
	}
}

// clearSyncSourceBlacklist implements clearSyncSourceBlacklist().
func (c *Coordinator) clearSyncSourceBlacklist() {
	c.syncSourceBlacklist = make(map[string]time.Time)
}

func (c *Coordinator) isBlacklisted(host string, now time.Time) bool {
	until, ok := c.syncSourceBlacklist[host]
	return ok && now.Before(until)
}

// syncSourceCandidate reports whether member i is a candidate sync source
// for a fetcher currently at myLastFetched: up, not self, not an arbiter,
// not hidden, not blacklisted, strictly ahead of myLastFetched, and whose
// own sync-source chain does not loop back through self.
func (c *Coordinator) syncSourceCandidate(i int, myLastFetched optime.OpTime, now time.Time) bool {
	mc := c.config.Members[i]
	md, ok := c.registry.AtIndex(i)
	if !ok || md.IsSelf || md.Down {
		return false
	}
	if mc.ArbiterOnly || mc.Hidden {
		return false
	}
	if c.isBlacklisted(mc.Host, now) {
		return false
	}
	if c.syncSourceChainReachesSelf(md.SyncSource) {
		return false
	}
	return optime.Less(myLastFetched, md.LastAppliedOpTime)
}

// syncSourceChainReachesSelf walks a candidate's reported SyncSource chain
// (who it syncs from, who that syncs from, ...) and reports whether the
// chain reaches self. Accepting such a candidate would make self its own
// indirect sync source, a replication cycle. The walk is bounded by the
// configured member count and stops at the first repeated host, so a
// chain already cyclic elsewhere terminates without reaching self.
func (c *Coordinator) syncSourceChainReachesSelf(startHost string) bool {
	self, ok := c.registry.Self()
	if !ok || startHost == "" {
		return false
	}
	selfHost := self.Host

	visited := make(map[string]bool, len(c.config.Members))
	host := startHost
	for i := 0; i < len(c.config.Members); i++ {
		if host == "" {
			return false
		}
		if host == selfHost {
			return true
		}
		if visited[host] {
			return false
		}
		visited[host] = true

		md, ok := c.registry.FindByHost(host)
		if !ok {
			return false
		}
		host = md.SyncSource
	}
	return false
}

// chooseNewSyncSource implements chooseNewSyncSource(now, myLastFetched,
// chainingPreference). Returns the chosen member's host and true, or
// ("", false) if no eligible candidate exists.
func (c *Coordinator) chooseNewSyncSource(now time.Time, myLastFetched optime.OpTime, pref ChainingPreference) (string, bool) {
	restrictToPrimary := pref.UseConfiguration && !c.config.ChainingAllowed && c.currentPrimaryIndex != NoSelfIndex

	if c.forceSyncSourceIndex != NoSelfIndex {
		idx := c.forceSyncSourceIndex
		c.forceSyncSourceIndex = NoSelfIndex
		if idx >= 0 && idx < len(c.config.Members) && c.syncSourceCandidate(idx, myLastFetched, now) {
			return c.acceptSyncSource(idx), true
		}
	}

	candidateIdx := func() []int {
		var out []int
		for i := range c.config.Members {
			if restrictToPrimary && i != c.currentPrimaryIndex {
				continue
			}
			if c.syncSourceCandidate(i, myLastFetched, now) {
				out = append(out, i)
			}
		}
		return out
	}

	pick := func(indices []int, pingThreshold time.Duration) (int, bool) {
		best := -1
		for _, i := range indices {
			md, _ := c.registry.AtIndex(i)
			if md.RTT > pingThreshold {
				continue
			}
			if best == -1 || c.config.Members[i].ID < c.config.Members[best].ID {
				best = i
			}
		}
		return best, best != -1
	}

	candidates := candidateIdx()
	if len(candidates) == 0 {
		return "", false
	}

	if idx, ok := pick(candidates, defaultPingThreshold); ok {
		return c.acceptSyncSource(idx), true
	}
	// Relax the ping threshold and retry.
	if idx, ok := pick(candidates, time.Hour); ok {
		return c.acceptSyncSource(idx), true
	}
	return "", false
}

func (c *Coordinator) acceptSyncSource(idx int) string {
	md, _ := c.registry.AtIndex(idx)
	c.syncSource = md.Host
	return md.Host
}

// shouldChangeSyncSource implements shouldChangeSyncSource(current,
// replMetadata, oqMetadata, now).
func (c *Coordinator) shouldChangeSyncSource(current string, replMetadata ReplSetMetadata, oqMetadata OplogQueryMetadata, now time.Time) bool {
	idx := -1
	for i, mc := range c.config.Members {
		if mc.Host == current {
			idx = i
			break
		}
	}
	if idx == -1 {
		return true
	}

	if c.isBlacklisted(current, now) {
		return true
	}

	md, ok := c.registry.AtIndex(idx)
	if !ok || md.Down {
		return true
	}

	best := c.highestObservedAppliedOpTime()
	if best.Timestamp.Sub(md.LastAppliedOpTime.Timestamp) > c.config.MaxSyncSourceLagSecs {
		return true
	}

	if c.config.ProtocolVersion == 1 && !replMetadata.IsPrimary {
		if replMetadata.SyncSourceIndex == -1 {
			return true
		}
		if optime.LessOrEqual(oqMetadata.LastOpApplied, c.registry.getMyLastAppliedOpTime()) {
			return true
		}
	}

	return false
}
