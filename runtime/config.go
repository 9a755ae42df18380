package runtime

import (
	"fmt"
	"time"

	"github.com/hieutrieu/replset/cfg"
	"github.com/hieutrieu/replset/topology"
)

// BuildConfigSnapshot turns a validated cfg.Configuration into the
// immutable topology.ConfigSnapshot the coordinator consumes. cfg.Load and
// cfg.Validate must have already succeeded; this function does not
// re-validate, only translate.
func BuildConfigSnapshot(c *cfg.Configuration) (*topology.ConfigSnapshot, error) {
	rs := c.ReplicaSet

	members := make([]topology.MemberConfig, len(rs.Members))
	for i, m := range rs.Members {
		members[i] = topology.MemberConfig{
			ID:           m.ID,
			Host:         m.Host,
			Priority:     m.Priority,
			Votes:        m.Votes,
			Tags:         m.Tags,
			ArbiterOnly:  m.ArbiterOnly,
			Hidden:       m.Hidden,
			SlaveDelay:   time.Duration(m.SlaveDelayMS) * time.Millisecond,
			BuildIndexes: m.BuildIndexes,
		}
	}

	selfIndex := topology.NoSelfIndex
	if rs.SelfMemberID != -1 {
		selfIndex = indexOfMemberID(members, rs.SelfMemberID)
		if selfIndex < 0 {
			return nil, fmt.Errorf("self_member_id %d not found among configured members", rs.SelfMemberID)
		}
	}

	return &topology.ConfigSnapshot{
		SetName:                            rs.SetName,
		Version:                            rs.ConfigVersion,
		Members:                            members,
		SelfIndex:                          selfIndex,
		ElectionTimeout:                    time.Duration(rs.ElectionTimeoutMS) * time.Millisecond,
		HeartbeatInterval:                  time.Duration(rs.HeartbeatIntervalMS) * time.Millisecond,
		HeartbeatTimeout:                   time.Duration(rs.HeartbeatTimeoutMS) * time.Millisecond,
		ChainingAllowed:                    rs.ChainingAllowed,
		ProtocolVersion:                    rs.ProtocolVersion,
		WriteConcernMajorityJournalDefault: rs.WriteConcernMajorityJournalDflt,
		CatchupTakeoverDelay:               time.Duration(rs.CatchupTakeoverDelayMS) * time.Millisecond,
		PriorityTakeoverStep:               time.Duration(rs.PriorityTakeoverStepMS) * time.Millisecond,
		MaxSyncSourceLagSecs:               time.Duration(rs.MaxSyncSourceLagSecs) * time.Second,
	}, nil
}

func indexOfMemberID(members []topology.MemberConfig, id int) int {
	for i, m := range members {
		if m.ID == id {
			return i
		}
	}
	return -1
}
