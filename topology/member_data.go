package topology

import (
	"time"

	"github.com/hieutrieu/replset/optime"
)

// MemberData is the per-peer mutable bookkeeping record the Member
// Registry maintains. A distinguished self-entry (see Registry.Self)
// tracks this node's own applied/durable opTimes.
type MemberData struct {
	MemberID int
	Host     string
	RID      string // legacy master/slave replication id, if any

	RTT              time.Duration
	HeartbeatStatus  HeartbeatStatus
	LastResponseTime time.Time
	LastUpdate       time.Time // advances on any progress notification

	LastAppliedOpTime optime.OpTime
	LastDurableOpTime optime.OpTime

	ReportedState MemberState
	ElectionTime  time.Time // authoritative election time reported by this member

	SyncSource string
	RBID       int64

	Down bool

	HeartbeatMessage string
	ConfigVersion    int64
	AuthoritativeTerm int64 // v1 only
	IsSelf           bool
}

// markUp and markDown update Down/HeartbeatStatus and stamp LastResponseTime.
func (md *MemberData) markUp(now time.Time, rtt time.Duration) {
	md.Down = false
	md.HeartbeatStatus = HeartbeatStatusOK
	md.RTT = rtt
	md.LastResponseTime = now
}

func (md *MemberData) markDown(now time.Time, status HeartbeatStatus) {
	md.Down = true
	md.HeartbeatStatus = status
	md.LastResponseTime = now
}

// Registry owns the MemberData slice for the currently installed
// configuration, indexed in the same order as ConfigSnapshot.Members.
// Entries are created/destroyed wholesale on updateConfig; the only other
// way an entry is added is AddSlaveMemberData, which appends a legacy
// master/slave entry after the configured members.
type Registry struct {
	members   []MemberData
	selfIndex int
}

// NewRegistry builds a Registry from a ConfigSnapshot, preserving opTimes
// and down/blacklist-relevant state from prior where member ids match.
func NewRegistry(cfg *ConfigSnapshot, prior *Registry) *Registry {
	r := &Registry{selfIndex: cfg.SelfIndex}
	r.members = make([]MemberData, len(cfg.Members))

	var byID map[int]*MemberData
	if prior != nil {
		byID = make(map[int]*MemberData, len(prior.members))
		for i := range prior.members {
			m := &prior.members[i]
			byID[m.MemberID] = m
		}
	}

	for i, mc := range cfg.Members {
		md := MemberData{
			MemberID: mc.ID,
			Host:     mc.Host,
			IsSelf:   i == cfg.SelfIndex,
		}
		if prev, ok := byID[mc.ID]; ok {
			md.LastAppliedOpTime = prev.LastAppliedOpTime
			md.LastDurableOpTime = prev.LastDurableOpTime
			md.LastUpdate = prev.LastUpdate
			md.Down = prev.Down
			md.ReportedState = prev.ReportedState
			md.RBID = prev.RBID
		}
		r.members[i] = md
	}

	return r
}

// Len returns the number of configured members.
func (r *Registry) Len() int { return len(r.members) }

// AtIndex returns the MemberData at idx, or false if out of range.
func (r *Registry) AtIndex(idx int) (*MemberData, bool) {
	if idx < 0 || idx >= len(r.members) {
		return nil, false
	}
	return &r.members[idx], true
}

// FindByMemberID implements findMemberDataByMemberId.
func (r *Registry) FindByMemberID(id int) (*MemberData, bool) {
	for i := range r.members {
		if r.members[i].MemberID == id {
			return &r.members[i], true
		}
	}
	return nil, false
}

// FindByHost looks up a member by its reported host, used to walk
// SyncSource chains for cycle detection.
func (r *Registry) FindByHost(host string) (*MemberData, bool) {
	for i := range r.members {
		if r.members[i].Host == host {
			return &r.members[i], true
		}
	}
	return nil, false
}

// FindByRID implements findMemberDataByRid, the legacy master/slave lookup.
func (r *Registry) FindByRID(rid string) (*MemberData, bool) {
	for i := range r.members {
		if r.members[i].RID == rid {
			return &r.members[i], true
		}
	}
	return nil, false
}

// Self implements getMyMemberData.
func (r *Registry) Self() (*MemberData, bool) {
	return r.AtIndex(r.selfIndex)
}

// All returns every MemberData, in configured order.
func (r *Registry) All() []MemberData {
	return r.members
}

// AddSlaveMemberData implements addSlaveMemberData: registers a legacy
// master/slave peer identified only by RID, outside the voting config.
func (r *Registry) AddSlaveMemberData(rid string, host string) *MemberData {
	if existing, ok := r.FindByRID(rid); ok {
		return existing
	}
	r.members = append(r.members, MemberData{
		MemberID: -1,
		Host:     host,
		RID:      rid,
	})
	return &r.members[len(r.members)-1]
}

// setMemberAsDown marks the member at idx down and reports whether the
// caller — if it is the leader — has now lost majority, i.e. remaining up
// vote weight (including self) is below the majority threshold.
func (r *Registry) setMemberAsDown(now time.Time, idx int, cfg *ConfigSnapshot) bool {
	md, ok := r.AtIndex(idx)
	Precondition(ok, "setMemberAsDown: index %d out of range", idx)
	md.markDown(now, HeartbeatStatusDown)

	return r.lostMajority(cfg)
}

// lostMajority reports whether the up + self vote weight is below the
// configured majority.
func (r *Registry) lostMajority(cfg *ConfigSnapshot) bool {
	upWeight := 0
	for i, mc := range cfg.Members {
		md, ok := r.AtIndex(i)
		if !ok {
			continue
		}
		if md.IsSelf || !md.Down {
			upWeight += mc.Votes
		}
	}
	return upWeight < cfg.MajorityVoteCount()
}

// resetAllMemberTimeouts implements resetAllMemberTimeouts: bumps
// LastUpdate to now for every non-self member, so a subsequent
// checkMemberTimeouts sweep gives every peer a fresh timeout window.
func (r *Registry) resetAllMemberTimeouts(now time.Time) {
	for i := range r.members {
		if !r.members[i].IsSelf {
			r.members[i].LastUpdate = now
		}
	}
}

// resetMemberTimeouts implements resetMemberTimeouts: like
// resetAllMemberTimeouts, restricted to the given member id set.
func (r *Registry) resetMemberTimeouts(now time.Time, ids map[int]bool) {
	for i := range r.members {
		if !r.members[i].IsSelf && ids[r.members[i].MemberID] {
			r.members[i].LastUpdate = now
		}
	}
}

// getStalestLiveMember implements getStalestLiveMember: returns the index
// of the live (non-self, non-down) peer with the oldest LastUpdate, and
// that timestamp. Returns (-1, maxTime) if there are no live peers, per
// the original header's empty-registry sentinel.
var maxTime = time.Unix(1<<62, 0)

func (r *Registry) getStalestLiveMember() (int, time.Time) {
	stalestIdx := -1
	stalest := maxTime

	for i := range r.members {
		md := &r.members[i]
		if md.IsSelf || md.Down {
			continue
		}
		if stalestIdx == -1 || md.LastUpdate.Before(stalest) {
			stalestIdx = i
			stalest = md.LastUpdate
		}
	}

	if stalestIdx == -1 {
		return -1, maxTime
	}
	return stalestIdx, stalest
}

// getMaybeUpHostAndPorts returns the host:port of every member not known
// to be down (including self).
func (r *Registry) getMaybeUpHostAndPorts() []string {
	hosts := make([]string, 0, len(r.members))
	for i := range r.members {
		if !r.members[i].Down {
			hosts = append(hosts, r.members[i].Host)
		}
	}
	return hosts
}

// getMyLastAppliedOpTime implements getMyLastAppliedOpTime.
func (r *Registry) getMyLastAppliedOpTime() optime.OpTime {
	self, ok := r.Self()
	if !ok {
		return optime.Zero
	}
	return self.LastAppliedOpTime
}

// getMyLastDurableOpTime implements getMyLastDurableOpTime.
func (r *Registry) getMyLastDurableOpTime() optime.OpTime {
	self, ok := r.Self()
	if !ok {
		return optime.Zero
	}
	return self.LastDurableOpTime
}

// countUp returns the number of members (including self) not marked down.
func (r *Registry) countUp() int {
	n := 0
	for i := range r.members {
		if r.members[i].IsSelf || !r.members[i].Down {
			n++
		}
	}
	return n
}

// countDown returns the number of non-self members marked down.
func (r *Registry) countDown() int {
	n := 0
	for i := range r.members {
		if !r.members[i].IsSelf && r.members[i].Down {
			n++
		}
	}
	return n
}
