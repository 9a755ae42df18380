package topology

import (
	"time"

	"github.com/hieutrieu/replset/optime"
)

// FindMemberDataByMemberID implements findMemberDataByMemberId.
func (c *Coordinator) FindMemberDataByMemberID(id int) (*MemberData, error) {
	md, ok := c.registry.FindByMemberID(id)
	if !ok {
		return nil, &NodeNotFoundError{Query: "member id"}
	}
	return md, nil
}

// FindMemberDataByRID implements findMemberDataByRid, the legacy
// master/slave lookup.
func (c *Coordinator) FindMemberDataByRID(rid string) (*MemberData, error) {
	md, ok := c.registry.FindByRID(rid)
	if !ok {
		return nil, &NodeNotFoundError{Query: "rid " + rid}
	}
	return md, nil
}

// AddSlaveMemberData implements addSlaveMemberData.
func (c *Coordinator) AddSlaveMemberData(rid, host string) *MemberData {
	return c.registry.AddSlaveMemberData(rid, host)
}

// GetMyMemberData implements getMyMemberData.
func (c *Coordinator) GetMyMemberData() (*MemberData, error) {
	md, ok := c.registry.Self()
	if !ok {
		return nil, &NodeNotFoundError{Query: "self"}
	}
	return md, nil
}

// SetMemberAsDown implements setMemberAsDown(now, idx). Returns true iff
// this now-lost-majority condition means the caller, if leader, must step
// itself down.
func (c *Coordinator) SetMemberAsDown(now time.Time, idx int) bool {
	Precondition(c.config != nil, "SetMemberAsDown: no configuration installed")
	return c.registry.setMemberAsDown(now, idx, c.config)
}

// ResetAllMemberTimeouts implements resetAllMemberTimeouts(now).
func (c *Coordinator) ResetAllMemberTimeouts(now time.Time) {
	c.registry.resetAllMemberTimeouts(now)
}

// ResetMemberTimeouts implements resetMemberTimeouts(now, set).
func (c *Coordinator) ResetMemberTimeouts(now time.Time, ids map[int]bool) {
	c.registry.resetMemberTimeouts(now, ids)
}

// GetStalestLiveMember implements getStalestLiveMember(). Returns
// (-1, maxTime) if no live peers exist.
func (c *Coordinator) GetStalestLiveMember() (int, time.Time) {
	return c.registry.getStalestLiveMember()
}

// GetMaybeUpHostAndPorts implements getMaybeUpHostAndPorts().
func (c *Coordinator) GetMaybeUpHostAndPorts() []string {
	return c.registry.getMaybeUpHostAndPorts()
}

// GetMyLastAppliedOpTime implements getMyLastAppliedOpTime().
func (c *Coordinator) GetMyLastAppliedOpTime() optime.OpTime {
	return c.registry.getMyLastAppliedOpTime()
}

// GetMyLastDurableOpTime implements getMyLastDurableOpTime().
func (c *Coordinator) GetMyLastDurableOpTime() optime.OpTime {
	return c.registry.getMyLastDurableOpTime()
}

// haveNumNodesReachedOpTime implements haveNumNodesReachedOpTime(op,
// numNodes, durablyWritten): reports whether at least numNodes members
// (including self) have applied (or, if durablyWritten, made durable) an
// opTime >= op.
func (c *Coordinator) haveNumNodesReachedOpTime(op optime.OpTime, numNodes int, durablyWritten bool) bool {
	count := 0
	for i := range c.registry.members {
		md := &c.registry.members[i]
		reached := md.LastAppliedOpTime
		if durablyWritten {
			reached = md.LastDurableOpTime
		}
		if optime.LessOrEqual(op, reached) {
			count++
		}
		if count >= numNodes {
			return true
		}
	}
	return false
}

// haveTaggedNodesReachedOpTime implements haveTaggedNodesReachedOpTime(op,
// tagPattern, durablyWritten): reports whether every configured member
// (voting or not) whose tags satisfy tagPattern has reached op.
func (c *Coordinator) haveTaggedNodesReachedOpTime(op optime.OpTime, tagPattern map[string]string, durablyWritten bool) bool {
	for i, mc := range c.config.Members {
		if !tagSetMatches(mc.Tags, tagPattern) {
			continue
		}
		md, ok := c.registry.AtIndex(i)
		if !ok {
			return false
		}
		reached := md.LastAppliedOpTime
		if durablyWritten {
			reached = md.LastDurableOpTime
		}
		if optime.Less(reached, op) {
			return false
		}
	}
	return true
}

// getHostsWrittenTo implements getHostsWrittenTo(op, durablyWritten,
// skipSelf): the hosts of every member that has reached op.
func (c *Coordinator) getHostsWrittenTo(op optime.OpTime, durablyWritten bool, skipSelf bool) []string {
	hosts := make([]string, 0, c.registry.Len())
	for i := range c.registry.members {
		md := &c.registry.members[i]
		if skipSelf && md.IsSelf {
			continue
		}
		reached := md.LastAppliedOpTime
		if durablyWritten {
			reached = md.LastDurableOpTime
		}
		if optime.LessOrEqual(op, reached) {
			hosts = append(hosts, md.Host)
		}
	}
	return hosts
}
