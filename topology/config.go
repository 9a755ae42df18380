package topology

import "time"

// NoSelfIndex is the sentinel selfIndex meaning "this node is not a member
// of the configured set" (e.g. it has been removed by a reconfig, or has
// not yet been added).
const NoSelfIndex = -1

// MemberConfig describes one configured member. Constructed by the caller
// from a parsed, validated configuration document (see package cfg); the
// coordinator never parses configuration itself.
type MemberConfig struct {
	ID           int
	Host         string
	Priority     float64
	Votes        int // 0 or 1
	Tags         map[string]string
	ArbiterOnly  bool
	Hidden       bool
	SlaveDelay   time.Duration
	BuildIndexes bool
}

// IsVoter reports whether this member casts a vote in elections.
func (m MemberConfig) IsVoter() bool {
	return m.Votes > 0
}

// IsElectable reports whether this member is eligible to become primary.
func (m MemberConfig) IsElectable() bool {
	return !m.ArbiterOnly && m.Priority > 0
}

// ConfigSnapshot is an immutable configuration value supplied by the
// runtime via updateConfig. Replacement is atomic: the coordinator never
// observes a partially-updated configuration.
type ConfigSnapshot struct {
	SetName          string
	Version          int64 // strictly increasing across reconfigs
	Members          []MemberConfig
	SelfIndex        int // NoSelfIndex if this node is not a member
	ElectionTimeout  time.Duration
	HeartbeatInterval time.Duration
	HeartbeatTimeout time.Duration
	ChainingAllowed  bool
	ProtocolVersion  int // 0 or 1
	WriteConcernMajorityJournalDefault bool

	CatchupTakeoverDelay  time.Duration
	PriorityTakeoverStep  time.Duration
	MaxSyncSourceLagSecs  time.Duration
}

// MemberByID returns the configured index of the member with the given id,
// or -1 if no such member exists.
func (c *ConfigSnapshot) MemberByID(id int) int {
	for i, m := range c.Members {
		if m.ID == id {
			return i
		}
	}
	return -1
}

// VoterWeight returns the total vote weight across all configured members.
func (c *ConfigSnapshot) VoterWeight() int {
	total := 0
	for _, m := range c.Members {
		total += m.Votes
	}
	return total
}

// MajorityVoteCount returns floor(N/2)+1 where N is the total voter weight.
func (c *ConfigSnapshot) MajorityVoteCount() int {
	return c.VoterWeight()/2 + 1
}

// IsInstalled reports whether a configuration has actually been installed
// (Version > 0). A zero-value ConfigSnapshot means "no config yet".
func (c *ConfigSnapshot) IsInstalled() bool {
	return c != nil && c.Version > 0
}

// Self returns the MemberConfig for SelfIndex, or false if SelfIndex is
// NoSelfIndex or out of range.
func (c *ConfigSnapshot) Self() (MemberConfig, bool) {
	if c == nil || c.SelfIndex < 0 || c.SelfIndex >= len(c.Members) {
		return MemberConfig{}, false
	}
	return c.Members[c.SelfIndex], true
}

// tagSetMatches reports whether a member's tags satisfy every key/value
// pair in pattern (a write-concern tag pattern names required tag values).
func tagSetMatches(tags map[string]string, pattern map[string]string) bool {
	for k, v := range pattern {
		if tags[k] != v {
			return false
		}
	}
	return true
}
