package topology

import (
	"time"

	"github.com/hieutrieu/replset/optime"
)

// LastVote is the persisted vote record: the highest term we have voted in,
// and who we voted for. Monotonic in term; the caller persists it whenever
// the coordinator mutates it.
type LastVote struct {
	Term      int64
	VotedFor  int // member id, -1 if none recorded
}

// ReplSetStatusArgs bundles the inputs prepareStatusResponse needs beyond
// the coordinator's own state.
type ReplSetStatusArgs struct {
	Now                       time.Time
	SelfUptime                time.Duration
	ReadConcernMajorityOpTime optime.OpTime
	InitialSyncStatus         string
}

// Coordinator is the single owner of all replica-set topology state. Every
// exported method is an entry point from spec.md §4; none perform I/O,
// sleep, spawn goroutines, or take any lock of their own — the caller
// must serialize all access to a Coordinator with its own exclusive lock.
type Coordinator struct {
	config   *ConfigSnapshot
	registry *Registry

	role        Role
	leaderMode  LeaderMode
	followerMode MemberState // valid only when role == RoleFollower

	currentTerm int64
	lastVote    LastVote

	currentPrimaryIndex int

	lastCommittedOpTime optime.OpTime
	firstOpTimeOfTerm   optime.OpTime

	maintenanceCount int

	electionSleepUntil time.Time
	electionID         string
	electionOpTime     optime.OpTime

	forceSyncSourceIndex int
	syncSource           string
	syncSourceBlacklist  map[string]time.Time

	heartbeatRestartedAt  time.Time
	respondedSinceRestart map[int]bool

	myHeartbeatMessage string

	stepDownAttemptInProgress bool
}

// NewCoordinator returns a Coordinator with no configuration installed
// (Role = follower, term = 0). Call updateConfig before anything else will
// behave meaningfully.
func NewCoordinator() *Coordinator {
	return &Coordinator{
		role:                 RoleFollower,
		leaderMode:           LeaderModeNotLeader,
		followerMode:         MemberStateStartup2,
		currentPrimaryIndex:  NoSelfIndex,
		forceSyncSourceIndex: NoSelfIndex,
		lastVote:             LastVote{Term: 0, VotedFor: -1},
		syncSourceBlacklist:  make(map[string]time.Time),
		respondedSinceRestart: make(map[int]bool),
	}
}

// updateConfig implements the configuration contract from spec.md §6:
// completely replaces state derived from the previous config. MemberData
// is rebuilt (preserving opTimes/blacklist-relevant state for members
// present in both configs); term and LastVote survive; Role may change
// (e.g. leader -> follower if self was dropped from the config). A follower
// still in STARTUP2 that finds itself in the new config becomes SECONDARY.
func (c *Coordinator) updateConfig(newConfig *ConfigSnapshot, now time.Time) {
	Precondition(newConfig != nil, "updateConfig: nil config")

	c.registry = NewRegistry(newConfig, c.registry)
	c.config = newConfig

	if _, isMember := newConfig.Self(); !isMember {
		if c.role == RoleLeader {
			c.role = RoleFollower
			c.leaderMode = LeaderModeNotLeader
			c.followerMode = MemberStateRecovering
		}
		c.currentPrimaryIndex = NoSelfIndex
	} else if c.role == RoleFollower && c.followerMode == MemberStateStartup2 {
		c.followerMode = MemberStateSecondary
	}

	c.forceSyncSourceIndex = NoSelfIndex
	c.restartHeartbeats(now)
}

// Config returns the currently installed configuration, or nil if none has
// been installed yet.
func (c *Coordinator) Config() *ConfigSnapshot {
	return c.config
}

// getTerm implements getTerm().
func (c *Coordinator) getTerm() int64 {
	return c.currentTerm
}

// updateTerm adopts t as the current term if t > currentTerm.
// UpdateTermTriggerStepDown is returned when the new term forces a
// currently-leader node to step down; the caller must follow up with
// prepareForUnconditionalStepDown / finishUnconditionalStepDown.
func (c *Coordinator) updateTerm(t int64) UpdateTermResult {
	if t <= c.currentTerm {
		return UpdateTermAlreadyUpToDate
	}

	wasLeader := c.role == RoleLeader
	c.currentTerm = t

	if wasLeader {
		return UpdateTermTriggerStepDown
	}
	return UpdateTermUpdated
}

// getCurrentPrimaryIndex implements getCurrentPrimaryIndex().
func (c *Coordinator) getCurrentPrimaryIndex() int {
	return c.currentPrimaryIndex
}

// setPrimaryIndex implements setPrimaryIndex().
func (c *Coordinator) setPrimaryIndex(idx int) {
	c.currentPrimaryIndex = idx
}

// getMaintenanceCount implements getMaintenanceCount().
func (c *Coordinator) getMaintenanceCount() int {
	return c.maintenanceCount
}

// getStepDownTime implements getStepDownTime(): the deadline before which
// this node declines to stand for election.
func (c *Coordinator) getStepDownTime() time.Time {
	return c.electionSleepUntil
}

// loadLastVote installs a LastVote loaded by the caller at startup. Must
// be called at most once, before any vote is processed.
func (c *Coordinator) loadLastVote(v LastVote) {
	c.lastVote = v
	if v.Term > c.currentTerm {
		c.currentTerm = v.Term
	}
}

// getLastVote implements getLastVote(): the caller persists this whenever
// voteForMyself or processReplSetRequestVotes grants a vote, before the
// reply (or, for a self-vote, the candidacy) goes any further.
func (c *Coordinator) getLastVote() LastVote {
	return c.lastVote
}

// setElectionInfo implements setElectionInfo(electionId, electionOpTime):
// (re)stamps election metadata without a full processWinElection
// transition.
func (c *Coordinator) setElectionInfo(electionID string, electionOpTime optime.OpTime) {
	c.electionID = electionID
	c.electionOpTime = electionOpTime
}

// setMyHeartbeatMessage implements setMyHeartbeatMessage(now, msg).
func (c *Coordinator) setMyHeartbeatMessage(now time.Time, msg string) {
	c.myHeartbeatMessage = msg
	if self, ok := c.registry.Self(); ok {
		self.HeartbeatMessage = msg
		self.LastUpdate = now
	}
}

// recordLocalProgress implements the "local-progress" entry point: the
// replication executor reports its own newly applied/durable opTimes.
func (c *Coordinator) recordLocalProgress(now time.Time, applied, durable optime.OpTime) {
	self, ok := c.registry.Self()
	Precondition(ok, "recordLocalProgress: no self member in configuration")

	if optime.Less(self.LastAppliedOpTime, applied) {
		self.LastAppliedOpTime = applied
	}
	if optime.Less(self.LastDurableOpTime, durable) {
		self.LastDurableOpTime = durable
	}
	self.LastUpdate = now
}
