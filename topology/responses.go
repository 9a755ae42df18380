package topology

import (
	"fmt"
	"time"

	"github.com/hieutrieu/replset/optime"
)

// MemberStatus is one entry of a ReplSetStatusResponse, describing a
// single member as seen from this node.
type MemberStatus struct {
	ID               int
	Host             string
	State            MemberState
	StateStr         string
	Uptime           time.Duration
	AppliedOpTime    optime.OpTime
	DurableOpTime    optime.OpTime
	LastHeartbeat    time.Time
	LastHeartbeatRecv time.Time
	PingMillis       int64
	ElectionTime     time.Time
	ConfigVersion    int64
	Self             bool
}

// ReplSetStatusResponse is the logical content of a replSetGetStatus reply.
type ReplSetStatusResponse struct {
	SetName                   string
	Term                      int64
	MyState                   MemberState
	Members                   []MemberStatus
	LastCommittedOpTime       optime.OpTime
	ReadConcernMajorityOpTime optime.OpTime
	InitialSyncStatus         string
}

// prepareStatusResponse implements prepareStatusResponse(args) ->
// response.
func (c *Coordinator) prepareStatusResponse(args ReplSetStatusArgs) ReplSetStatusResponse {
	resp := ReplSetStatusResponse{
		Term:                      c.currentTerm,
		MyState:                   c.memberState(),
		LastCommittedOpTime:       c.lastCommittedOpTime,
		ReadConcernMajorityOpTime: args.ReadConcernMajorityOpTime,
		InitialSyncStatus:         args.InitialSyncStatus,
	}
	if c.config != nil {
		resp.SetName = c.config.SetName
	}

	resp.Members = make([]MemberStatus, 0, c.registry.Len())
	for i := range c.registry.members {
		md := &c.registry.members[i]
		mc := c.config.Members[i]
		state := md.ReportedState
		uptime := time.Duration(0)
		if md.IsSelf {
			state = c.memberState()
			uptime = args.SelfUptime
		} else if md.Down {
			state = MemberStateDown
		}
		resp.Members = append(resp.Members, MemberStatus{
			ID:                mc.ID,
			Host:              mc.Host,
			State:             state,
			StateStr:          state.String(),
			Uptime:            uptime,
			AppliedOpTime:     md.LastAppliedOpTime,
			DurableOpTime:     md.LastDurableOpTime,
			LastHeartbeat:     md.LastUpdate,
			LastHeartbeatRecv: md.LastResponseTime,
			PingMillis:        md.RTT.Milliseconds(),
			ElectionTime:      md.ElectionTime,
			ConfigVersion:     md.ConfigVersion,
			Self:              md.IsSelf,
		})
	}
	return resp
}

// IsMasterResponse is the logical content of an isMaster/hello reply's
// replica-set fields.
type IsMasterResponse struct {
	SetName       string
	SetVersion    int64
	IsWritablePrimary bool
	Secondary     bool
	Hosts         []string
	Arbiters      []string
	PrimaryHost   string
	Me            string
	ElectionID    string
	LastWrite     optime.OpTime
}

// fillIsMasterForReplSet implements fillIsMasterForReplSet().
func (c *Coordinator) fillIsMasterForReplSet() IsMasterResponse {
	resp := IsMasterResponse{
		IsWritablePrimary: c.canAcceptWrites(),
		Secondary:         c.role == RoleFollower && c.followerMode == MemberStateSecondary,
		ElectionID:        c.electionID,
		LastWrite:         c.registry.getMyLastAppliedOpTime(),
	}
	if c.config == nil {
		return resp
	}
	resp.SetName = c.config.SetName
	resp.SetVersion = c.config.Version

	for _, mc := range c.config.Members {
		if mc.ArbiterOnly {
			resp.Arbiters = append(resp.Arbiters, mc.Host)
		} else {
			resp.Hosts = append(resp.Hosts, mc.Host)
		}
	}
	if self, ok := c.config.Self(); ok {
		resp.Me = self.Host
	}
	if c.currentPrimaryIndex != NoSelfIndex && c.currentPrimaryIndex < len(c.config.Members) {
		resp.PrimaryHost = c.config.Members[c.currentPrimaryIndex].Host
	}
	return resp
}

// fillMemberData implements fillMemberData(idx) -> MemberStatus, the
// single-member counterpart of prepareStatusResponse's Members slice.
func (c *Coordinator) fillMemberData(idx int) (MemberStatus, error) {
	md, ok := c.registry.AtIndex(idx)
	if !ok {
		return MemberStatus{}, &NodeNotFoundError{Query: "member index"}
	}
	mc := c.config.Members[idx]
	state := md.ReportedState
	if md.IsSelf {
		state = c.memberState()
	} else if md.Down {
		state = MemberStateDown
	}
	return MemberStatus{
		ID:            mc.ID,
		Host:          mc.Host,
		State:         state,
		StateStr:      state.String(),
		AppliedOpTime: md.LastAppliedOpTime,
		DurableOpTime: md.LastDurableOpTime,
		LastHeartbeat: md.LastUpdate,
		PingMillis:    md.RTT.Milliseconds(),
		ElectionTime:  md.ElectionTime,
		ConfigVersion: md.ConfigVersion,
		Self:          md.IsSelf,
	}, nil
}

// UpdatePositionEntry is one member's contribution to a
// replSetUpdatePosition command, as gossiped upstream through a chained
// sync-source topology.
type UpdatePositionEntry struct {
	MemberID      int
	ConfigVersion int64
	AppliedOpTime optime.OpTime
	DurableOpTime optime.OpTime
}

// prepareReplSetUpdatePositionCommand implements
// prepareReplSetUpdatePositionCommand(): one entry per up member,
// including self.
func (c *Coordinator) prepareReplSetUpdatePositionCommand() []UpdatePositionEntry {
	entries := make([]UpdatePositionEntry, 0, c.registry.Len())
	for i := range c.registry.members {
		md := &c.registry.members[i]
		if md.Down {
			continue
		}
		entries = append(entries, UpdatePositionEntry{
			MemberID:      md.MemberID,
			ConfigVersion: c.config.Version,
			AppliedOpTime: md.LastAppliedOpTime,
			DurableOpTime: md.LastDurableOpTime,
		})
	}
	return entries
}

// ReplSetMetadataResponse is the logical content of $replData metadata
// attached to replication command replies.
type ReplSetMetadataResponse struct {
	Term                int64
	LastCommittedOpTime optime.OpTime
	ConfigVersion       int64
	PrimaryIndex        int
	SyncSourceIndex     int
}

// prepareReplSetMetadata implements prepareReplSetMetadata().
func (c *Coordinator) prepareReplSetMetadata() ReplSetMetadataResponse {
	syncSourceIdx := -1
	if c.config != nil {
		for i, mc := range c.config.Members {
			if mc.Host == c.syncSource {
				syncSourceIdx = i
				break
			}
		}
	}
	version := int64(0)
	if c.config != nil {
		version = c.config.Version
	}
	return ReplSetMetadataResponse{
		Term:                c.currentTerm,
		LastCommittedOpTime: c.lastCommittedOpTime,
		ConfigVersion:       version,
		PrimaryIndex:        c.currentPrimaryIndex,
		SyncSourceIndex:     syncSourceIdx,
	}
}

// OplogQueryMetadataResponse is the logical content of $oplogQueryData
// metadata attached to oplog-fetch replies.
type OplogQueryMetadataResponse struct {
	LastAppliedOpTime optime.OpTime
	LastCommittedOpTime optime.OpTime
	RBID              int64
	PrimaryIndex      int
	SyncSourceIndex   int
}

// prepareOplogQueryMetadata implements prepareOplogQueryMetadata().
func (c *Coordinator) prepareOplogQueryMetadata() OplogQueryMetadataResponse {
	meta := c.prepareReplSetMetadata()
	self, _ := c.registry.Self()
	rbid := int64(0)
	if self != nil {
		rbid = self.RBID
	}
	return OplogQueryMetadataResponse{
		LastAppliedOpTime:   c.registry.getMyLastAppliedOpTime(),
		LastCommittedOpTime: c.lastCommittedOpTime,
		RBID:                rbid,
		PrimaryIndex:        meta.PrimaryIndex,
		SyncSourceIndex:     meta.SyncSourceIndex,
	}
}

// summarizeAsHtml implements summarizeAsHtml(): a minimal, dependency-free
// diagnostic rendering of current topology state for an operator console.
func (c *Coordinator) summarizeAsHtml() string {
	setName := "(unconfigured)"
	if c.config != nil {
		setName = c.config.SetName
	}
	html := fmt.Sprintf("<h2>replica set %s</h2><p>term %d, role %s", setName, c.currentTerm, c.role)
	if c.role == RoleLeader {
		html += fmt.Sprintf(" (%s)", c.leaderMode)
	}
	html += fmt.Sprintf(", state %s</p><table border=1><tr><th>id</th><th>host</th><th>state</th><th>applied</th></tr>", c.memberState())
	for i := range c.registry.members {
		md := &c.registry.members[i]
		mc := c.config.Members[i]
		state := md.ReportedState
		if md.IsSelf {
			state = c.memberState()
		} else if md.Down {
			state = MemberStateDown
		}
		html += fmt.Sprintf("<tr><td>%d</td><td>%s</td><td>%s</td><td>%s</td></tr>",
			mc.ID, mc.Host, state, md.LastAppliedOpTime.Timestamp.Format(time.RFC3339))
	}
	html += "</table>"
	return html
}

// SyncFromResponse is the logical content of a replSetSyncFrom reply.
type SyncFromResponse struct {
	PreviousSyncSource string
	Warnings           []string
}

// prepareSyncFromResponse implements prepareSyncFromResponse(targetHost).
// Rejects arbiters and self as a sync target by returning a warning rather
// than an error, matching the source's "syncFromSelf"/"syncFromArbiter"
// warning strings.
func (c *Coordinator) prepareSyncFromResponse(targetHost string) (SyncFromResponse, error) {
	resp := SyncFromResponse{PreviousSyncSource: c.syncSource}

	self, ok := c.config.Self()
	if ok && self.Host == targetHost {
		resp.Warnings = append(resp.Warnings, "cannot sync from self")
		return resp, nil
	}

	idx := -1
	for i, mc := range c.config.Members {
		if mc.Host == targetHost {
			idx = i
			break
		}
	}
	if idx == -1 {
		return SyncFromResponse{}, &NodeNotFoundError{Query: targetHost}
	}
	if c.config.Members[idx].ArbiterOnly {
		resp.Warnings = append(resp.Warnings, "cannot sync from an arbiter")
	}
	if md, ok := c.registry.AtIndex(idx); ok && md.Down {
		resp.Warnings = append(resp.Warnings, "chosen sync source is currently down")
	}

	c.setForceSyncSourceIndex(idx)
	return resp, nil
}

// prepareFreezeResponse implements prepareFreezeResponse(now, secs): sets
// electionSleepUntil = now + secs, or — when secs == 0 and this is a
// single-voter set — clears the freeze and reports kElectSelf so the
// caller immediately stands for election. Rejects with NotSecondaryError
// if Role = leader.
func (c *Coordinator) prepareFreezeResponse(now time.Time, secs time.Duration) (PrepareFreezeResponseResult, error) {
	if c.role == RoleLeader {
		return FreezeNoAction, &NotSecondaryError{CurrentState: c.memberState()}
	}

	if secs == 0 {
		c.electionSleepUntil = time.Time{}
		if c.config != nil && c.config.VoterWeight() == 1 && len(c.config.Members) == 1 {
			return FreezeElectSelf, nil
		}
		return FreezeNoAction, nil
	}

	c.electionSleepUntil = now.Add(secs)
	return FreezeNoAction, nil
}
