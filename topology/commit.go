package topology

import "github.com/hieutrieu/replset/optime"

// updateLastCommittedOpTime implements updateLastCommittedOpTime():
// computes the majority-committed opTime across applied (if
// WriteConcernMajorityJournalDefault is false) or durable (otherwise)
// opTimes of every voting member including self. If the resulting opTime
// is in the current term, strictly greater than the current
// lastCommittedOpTime, and (while leader) >= firstOpTimeOfTerm, sets it and
// returns true.
func (c *Coordinator) updateLastCommittedOpTime() bool {
	durable := c.config.WriteConcernMajorityJournalDefault

	voterOpTimes := make([]optime.OpTime, 0, len(c.config.Members))
	for i, mc := range c.config.Members {
		if !mc.IsVoter() {
			continue
		}
		md, ok := c.registry.AtIndex(i)
		if !ok {
			continue
		}
		op := md.LastAppliedOpTime
		if durable {
			op = md.LastDurableOpTime
		}
		voterOpTimes = append(voterOpTimes, op)
	}

	if len(voterOpTimes) == 0 {
		return false
	}

	optime.SortDescending(voterOpTimes)
	candidate := voterOpTimes[len(voterOpTimes)/2]

	if candidate.Term != c.currentTerm {
		return false
	}
	if !optime.After(candidate, c.lastCommittedOpTime) {
		return false
	}
	if c.role == RoleLeader && optime.Less(candidate, c.firstOpTimeOfTerm) {
		return false
	}

	c.lastCommittedOpTime = candidate
	return true
}

// advanceLastCommittedOpTime implements advanceLastCommittedOpTime(op):
// sets only if op is strictly greater than the current value; backward
// moves are silently ignored.
func (c *Coordinator) advanceLastCommittedOpTime(op optime.OpTime) bool {
	if !optime.After(op, c.lastCommittedOpTime) {
		return false
	}
	c.lastCommittedOpTime = op
	return true
}

// GetLastCommittedOpTime returns the current majority-committed opTime.
func (c *Coordinator) GetLastCommittedOpTime() optime.OpTime {
	return c.lastCommittedOpTime
}
