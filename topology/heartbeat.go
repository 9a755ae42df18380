package topology

import (
	"time"

	"github.com/hieutrieu/replset/optime"
)

// HeartbeatArgs is the logical content of an outbound heartbeat request,
// built by prepareHeartbeatRequest and consumed by the peer's
// prepareHeartbeatResponse. Wire encoding is the runtime's concern.
type HeartbeatArgs struct {
	SetName         string
	ConfigVersion   int64
	SenderID        int
	SenderHost      string
	ProtocolVersion int

	// ConfigFingerprint is opaque to the coordinator: the caller (runtime)
	// stamps its own hash of the installed configuration's electable shape
	// here before sending, so the peer can detect a ConfigVersion that
	// matches but actually describes a different member set. Zero means
	// the caller did not set one.
	ConfigFingerprint uint64
}

// HeartbeatResponse is the logical content of a heartbeat reply.
type HeartbeatResponse struct {
	SetName       string
	ConfigVersion int64
	AppliedOpTime optime.OpTime
	DurableOpTime optime.OpTime
	ElectionTime  time.Time
	State         MemberState
	SyncSource    string
	PrimaryID     int
	Term          int64 // meaningful only for ProtocolVersion 1
	RBID          int64

	// ConfigFingerprint mirrors HeartbeatArgs.ConfigFingerprint: the
	// responder's own hash of its installed configuration, for the same
	// divergence check in the other direction.
	ConfigFingerprint uint64
}

// HeartbeatResult bundles the outcome of sending a heartbeat: exactly one
// of Response or Err is set.
type HeartbeatResult struct {
	Response *HeartbeatResponse
	Err      error
}

// HeartbeatResponseAction is the decision returned from
// processHeartbeatResponse / checkMemberTimeouts.
type HeartbeatResponseAction struct {
	Kind            HeartbeatActionKind
	NextHeartbeatAt time.Time
	RemotePrimaryIdx int // valid for ActionStepDownRemotePrimary
	ReconfigVersion  int64 // valid for ActionReconfig
}

func noAction(next time.Time) HeartbeatResponseAction {
	return HeartbeatResponseAction{Kind: ActionNoAction, NextHeartbeatAt: next}
}

// prepareHeartbeatRequest implements prepareHeartbeatRequest(now,
// ourSetName, target) -> (args, timeout). The timeout is twice the
// heartbeat interval, clamped by the election timeout.
func (c *Coordinator) prepareHeartbeatRequest(now time.Time, ourSetName string, targetIdx int) (HeartbeatArgs, time.Duration) {
	setName := ourSetName
	if c.config.IsInstalled() {
		setName = c.config.SetName
	}

	self, _ := c.config.Self()

	timeout := 2 * c.config.HeartbeatInterval
	if timeout > c.config.ElectionTimeout {
		timeout = c.config.ElectionTimeout
	}

	return HeartbeatArgs{
		SetName:         setName,
		ConfigVersion:   c.config.Version,
		SenderID:        self.ID,
		SenderHost:      self.Host,
		ProtocolVersion: c.config.ProtocolVersion,
	}, timeout
}

// prepareHeartbeatResponse implements prepareHeartbeatResponse(now, args,
// ourSetName) -> (response, error). Rejects with IncompatibleProtocolVersion
// / InconsistentReplicaSetNames / BadValue.
func (c *Coordinator) prepareHeartbeatResponse(now time.Time, args HeartbeatArgs, ourSetName string) (HeartbeatResponse, error) {
	if args.ProtocolVersion != 0 && args.ProtocolVersion != 1 {
		return HeartbeatResponse{}, &IncompatibleProtocolVersionError{Ours: c.config.ProtocolVersion, Theirs: args.ProtocolVersion}
	}
	if c.config.IsInstalled() && args.ProtocolVersion != c.config.ProtocolVersion {
		return HeartbeatResponse{}, &IncompatibleProtocolVersionError{Ours: c.config.ProtocolVersion, Theirs: args.ProtocolVersion}
	}

	setName := ourSetName
	if c.config.IsInstalled() {
		setName = c.config.SetName
	}
	if setName != "" && args.SetName != "" && args.SetName != setName {
		return HeartbeatResponse{}, &InconsistentReplicaSetNamesError{Ours: setName, Theirs: args.SetName}
	}

	if args.SenderID < 0 {
		return HeartbeatResponse{}, &BadValueError{Field: "senderId", Reason: "must be non-negative"}
	}

	resp := HeartbeatResponse{
		SetName:       setName,
		ConfigVersion: c.config.Version,
		AppliedOpTime: c.registry.getMyLastAppliedOpTime(),
		DurableOpTime: c.registry.getMyLastDurableOpTime(),
		ElectionTime:  c.electionOpTime.Timestamp,
		State:         c.memberState(),
		SyncSource:    c.syncSource,
		PrimaryID:     c.currentPrimaryIndex,
		Term:          c.currentTerm,
	}
	return resp, nil
}

// processHeartbeatResponse implements processHeartbeatResponse(now, rtt,
// target, result) -> HeartbeatResponseAction.
func (c *Coordinator) processHeartbeatResponse(now time.Time, rtt time.Duration, targetIdx int, result HeartbeatResult) HeartbeatResponseAction {
	target, ok := c.registry.AtIndex(targetIdx)
	Precondition(ok, "processHeartbeatResponse: index %d out of range", targetIdx)

	c.respondedSinceRestart[targetIdx] = true

	nextAt := now.Add(c.config.HeartbeatInterval)

	if result.Err != nil || result.Response == nil {
		target.markDown(now, HeartbeatStatusDown)
		if c.registry.lostMajority(c.config) && c.role == RoleLeader {
			return HeartbeatResponseAction{Kind: ActionStepDownSelf, NextHeartbeatAt: nextAt}
		}
		return noAction(nextAt)
	}

	resp := result.Response
	target.markUp(now, rtt)
	target.LastAppliedOpTime = resp.AppliedOpTime
	target.LastDurableOpTime = resp.DurableOpTime
	target.ReportedState = resp.State
	target.SyncSource = resp.SyncSource
	target.RBID = resp.RBID
	target.LastUpdate = now
	if !resp.ElectionTime.IsZero() {
		target.ElectionTime = resp.ElectionTime
	}
	target.AuthoritativeTerm = resp.Term

	// 1. Term advancement (v1).
	if c.config.ProtocolVersion == 1 && resp.Term > c.currentTerm {
		wasLeader := c.role == RoleLeader
		c.updateTerm(resp.Term)
		if wasLeader {
			return HeartbeatResponseAction{Kind: ActionStepDownSelf, NextHeartbeatAt: nextAt}
		}
		c.lastVote = LastVote{Term: c.currentTerm, VotedFor: -1}
	}

	// 2. Discovered higher primary: two nodes claiming primary in the same
	// term; the one with the older electionTime steps down.
	if resp.State == MemberStatePrimary && resp.Term == c.currentTerm {
		if c.role == RoleLeader {
			selfElectionTime := c.electionOpTime.Timestamp
			if target.ElectionTime.Before(selfElectionTime) {
				return HeartbeatResponseAction{Kind: ActionStepDownRemotePrimary, NextHeartbeatAt: nextAt, RemotePrimaryIdx: targetIdx}
			}
			return HeartbeatResponseAction{Kind: ActionStepDownSelf, NextHeartbeatAt: nextAt}
		}
		c.currentPrimaryIndex = targetIdx
	}

	// 3. Reconfig.
	if resp.ConfigVersion > c.config.Version {
		return HeartbeatResponseAction{Kind: ActionReconfig, NextHeartbeatAt: nextAt, ReconfigVersion: resp.ConfigVersion}
	}

	// 4. Election wake.
	if action, ok := c.checkElectionWake(now); ok {
		action.NextHeartbeatAt = nextAt
		return action
	}

	return noAction(nextAt)
}

// checkElectionWake evaluates the election-timeout / priority-takeover /
// catchup-takeover triggers described in spec.md §4.3 item 4.
func (c *Coordinator) checkElectionWake(now time.Time) (HeartbeatResponseAction, bool) {
	if c.role != RoleFollower || c.memberState() != MemberStateSecondary {
		return HeartbeatResponseAction{}, false
	}
	self, ok := c.config.Self()
	if !ok || !self.IsVoter() || !self.IsElectable() {
		return HeartbeatResponseAction{}, false
	}
	if c.currentPrimaryIndex != NoSelfIndex {
		primary, ok := c.registry.AtIndex(c.currentPrimaryIndex)
		primaryCfg := c.config.Members[c.currentPrimaryIndex]
		if ok {
			if primaryCfg.Priority < self.Priority {
				if now.Sub(primary.LastUpdate) >= c.config.PriorityTakeoverStep {
					return HeartbeatResponseAction{Kind: ActionPriorityTakeover}, true
				}
			}
			if optime.Less(primary.LastAppliedOpTime, c.registry.getMyLastAppliedOpTime()) {
				if now.Sub(primary.LastUpdate) >= c.config.CatchupTakeoverDelay {
					return HeartbeatResponseAction{Kind: ActionCatchupTakeover}, true
				}
			}
		}
		return HeartbeatResponseAction{}, false
	}

	jitter := c.priorityRankJitter(self)
	if now.Sub(c.lastPrimaryContact()).Nanoseconds() > (c.config.ElectionTimeout + jitter).Nanoseconds() {
		return HeartbeatResponseAction{Kind: ActionStartElection}, true
	}
	return HeartbeatResponseAction{}, false
}

// priorityRankJitter assigns a deterministic per-node jitter proportional
// to the member's rank among configured priorities (the number of members
// with a strictly higher priority), so higher-priority members try to elect
// first. Members that share a priority get the same jitter.
func (c *Coordinator) priorityRankJitter(self MemberConfig) time.Duration {
	rank := 0
	for _, m := range c.config.Members {
		if m.Priority > self.Priority {
			rank++
		}
	}
	return time.Duration(rank) * c.config.PriorityTakeoverStep / 10
}

// lastPrimaryContact returns the most recent LastUpdate among members
// reporting MemberStatePrimary, or the zero time if none is known.
func (c *Coordinator) lastPrimaryContact() time.Time {
	var latest time.Time
	for i := range c.registry.members {
		md := &c.registry.members[i]
		if md.ReportedState == MemberStatePrimary && md.LastUpdate.After(latest) {
			latest = md.LastUpdate
		}
	}
	return latest
}

// checkMemberTimeouts implements checkMemberTimeouts(now): walks members
// and marks any whose LastUpdate + electionTimeout < now as down. If this
// loses majority while leader, returns ActionStepDownSelf; else NoAction.
func (c *Coordinator) checkMemberTimeouts(now time.Time) HeartbeatResponseAction {
	lostMajority := false
	for i := range c.registry.members {
		md := &c.registry.members[i]
		if md.IsSelf || md.Down {
			continue
		}
		if md.LastUpdate.Add(c.config.ElectionTimeout).Before(now) {
			if c.registry.setMemberAsDown(now, i, c.config) {
				lostMajority = true
			}
		}
	}

	next := now.Add(c.config.HeartbeatInterval)
	if lostMajority && c.role == RoleLeader {
		return HeartbeatResponseAction{Kind: ActionStepDownSelf, NextHeartbeatAt: next}
	}
	return noAction(next)
}

// restartHeartbeats implements restartHeartbeats(): resets the
// "responded since restart" bookkeeping latestKnownOpTimeSinceHeartbeatRestart
// consults.
func (c *Coordinator) restartHeartbeats(now time.Time) {
	c.heartbeatRestartedAt = now
	c.respondedSinceRestart = make(map[int]bool, c.registry.Len())
	if c.registry.selfIndex >= 0 {
		c.respondedSinceRestart[c.registry.selfIndex] = true
	}
}

// latestKnownOpTimeSinceHeartbeatRestart implements
// latestKnownOpTimeSinceHeartbeatRestart(): returns (zero, false) if any
// member has not responded since restartHeartbeats() was last called;
// otherwise the max opTime across all up members other than self, or
// OpTime(0,0) if every other member is down.
func (c *Coordinator) latestKnownOpTimeSinceHeartbeatRestart() (optime.OpTime, bool) {
	for i := range c.registry.members {
		if !c.respondedSinceRestart[i] {
			return optime.Zero, false
		}
	}

	best := optime.Zero
	for i := range c.registry.members {
		md := &c.registry.members[i]
		if md.Down || md.IsSelf {
			continue
		}
		best = optime.Max(best, md.LastAppliedOpTime)
	}
	return best, true
}
