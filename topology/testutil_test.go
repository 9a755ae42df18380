package topology

import (
	"time"

	"github.com/hieutrieu/replset/optime"
)

// threeNodeConfig returns a 3-voter configuration with self at index 0,
// matching the defaults used across election/heartbeat/commit scenarios.
func threeNodeConfig() *ConfigSnapshot {
	return &ConfigSnapshot{
		SetName:   "rs0",
		Version:   1,
		SelfIndex: 0,
		Members: []MemberConfig{
			{ID: 0, Host: "a:27017", Priority: 1, Votes: 1},
			{ID: 1, Host: "b:27017", Priority: 1, Votes: 1},
			{ID: 2, Host: "c:27017", Priority: 1, Votes: 1},
		},
		ElectionTimeout:       10 * time.Second,
		HeartbeatInterval:     2 * time.Second,
		HeartbeatTimeout:      10 * time.Second,
		ProtocolVersion:       1,
		CatchupTakeoverDelay:  30 * time.Second,
		PriorityTakeoverStep:  5 * time.Second,
		MaxSyncSourceLagSecs:  30 * time.Second,
	}
}

func fiveVoterConfig() *ConfigSnapshot {
	members := make([]MemberConfig, 5)
	for i := range members {
		members[i] = MemberConfig{ID: i, Host: "m" + string(rune('a'+i)) + ":27017", Priority: 1, Votes: 1}
	}
	return &ConfigSnapshot{
		SetName:           "rs0",
		Version:           1,
		SelfIndex:         0,
		Members:           members,
		ElectionTimeout:   10 * time.Second,
		HeartbeatInterval: 2 * time.Second,
		ProtocolVersion:   1,
	}
}

func newTestCoordinator(cfg *ConfigSnapshot, now time.Time) *Coordinator {
	c := NewCoordinator()
	c.updateConfig(cfg, now)
	return c
}

func op(sec int64, term int64) optime.OpTime {
	return optime.New(time.Unix(sec, 0), term)
}
