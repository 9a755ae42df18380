// Package topology implements the replica-set topology coordinator: a
// pure, non-blocking decision engine for leader election and replication
// membership. It performs no I/O, spawns no goroutines, and acquires no
// locks of its own — every entry point assumes the caller already holds
// whatever exclusive lock serializes access to a Coordinator.
package topology

// Role is the node's fundamental identity within the replica set, distinct
// from the member state reported to peers (see MemberState).
type Role int

const (
	RoleFollower Role = iota
	RoleCandidate
	RoleLeader
)

func (r Role) String() string {
	switch r {
	case RoleFollower:
		return "follower"
	case RoleCandidate:
		return "candidate"
	case RoleLeader:
		return "leader"
	default:
		return "unknown"
	}
}

// LeaderMode refines Role when Role == RoleLeader. It is meaningless for
// any other Role and must be kNotLeader there.
type LeaderMode int

const (
	// LeaderModeNotLeader is the only valid mode when Role != RoleLeader.
	LeaderModeNotLeader LeaderMode = iota
	// LeaderModeLeaderElect is entered on election win, before the first
	// entry of the new term is committed.
	LeaderModeLeaderElect
	// LeaderModeMaster is the only mode in which writes are accepted.
	LeaderModeMaster
	// LeaderModeSteppingDown is an in-flight unconditional stepdown.
	LeaderModeSteppingDown
	// LeaderModeAttemptingStepDown is an in-flight attempted (revocable)
	// stepdown.
	LeaderModeAttemptingStepDown
)

func (m LeaderMode) String() string {
	switch m {
	case LeaderModeNotLeader:
		return "not-leader"
	case LeaderModeLeaderElect:
		return "leader-elect"
	case LeaderModeMaster:
		return "master"
	case LeaderModeSteppingDown:
		return "stepping-down"
	case LeaderModeAttemptingStepDown:
		return "attempting-step-down"
	default:
		return "unknown"
	}
}

// legalLeaderModeTransitions enumerates the only legal LeaderMode edges,
// per spec:
//
//	not-leader -> leader-elect -> master
//	master <-> attempting-step-down
//	master, attempting-step-down -> stepping-down
//	stepping-down, attempting-step-down -> not-leader
var legalLeaderModeTransitions = map[LeaderMode]map[LeaderMode]bool{
	LeaderModeNotLeader: {
		LeaderModeLeaderElect: true,
	},
	LeaderModeLeaderElect: {
		LeaderModeMaster: true,
	},
	LeaderModeMaster: {
		LeaderModeAttemptingStepDown: true,
		LeaderModeSteppingDown:       true,
	},
	LeaderModeAttemptingStepDown: {
		LeaderModeMaster:       true, // abortAttemptedStepDownIfNeeded
		LeaderModeSteppingDown: true,
		LeaderModeNotLeader:    true,
	},
	LeaderModeSteppingDown: {
		LeaderModeNotLeader: true,
	},
}

func isLegalLeaderModeTransition(from, to LeaderMode) bool {
	if from == to {
		return true
	}
	edges, ok := legalLeaderModeTransitions[from]
	if !ok {
		return false
	}
	return edges[to]
}

// MemberState is the reported replica-set state of a member, distinct from
// Role. Only MemberStateSecondary is electable.
type MemberState int

const (
	MemberStateStartup2 MemberState = iota
	MemberStateSecondary
	MemberStatePrimary
	MemberStateRecovering
	MemberStateRollback
	MemberStateArbiter
	MemberStateDown
	MemberStateUnknown
)

func (s MemberState) String() string {
	switch s {
	case MemberStateStartup2:
		return "STARTUP2"
	case MemberStateSecondary:
		return "SECONDARY"
	case MemberStatePrimary:
		return "PRIMARY"
	case MemberStateRecovering:
		return "RECOVERING"
	case MemberStateRollback:
		return "ROLLBACK"
	case MemberStateArbiter:
		return "ARBITER"
	case MemberStateDown:
		return "DOWN"
	default:
		return "UNKNOWN"
	}
}

// HeartbeatStatus is the outcome of the most recent heartbeat exchange with
// a member.
type HeartbeatStatus int

const (
	HeartbeatStatusUnknown HeartbeatStatus = iota
	HeartbeatStatusOK
	HeartbeatStatusAuthFail
	HeartbeatStatusDown
	HeartbeatStatusUnreachable
)

// HeartbeatActionKind tags the decision returned from processing a
// heartbeat response or a timeout sweep.
type HeartbeatActionKind int

const (
	ActionNoAction HeartbeatActionKind = iota
	ActionStartElection
	ActionStepDownSelf
	ActionStepDownRemotePrimary
	ActionReconfig
	ActionPriorityTakeover
	ActionCatchupTakeover
)

func (k HeartbeatActionKind) String() string {
	switch k {
	case ActionNoAction:
		return "NoAction"
	case ActionStartElection:
		return "StartElection"
	case ActionStepDownSelf:
		return "StepDownSelf"
	case ActionStepDownRemotePrimary:
		return "StepDownRemotePrimary"
	case ActionReconfig:
		return "Reconfig"
	case ActionPriorityTakeover:
		return "PriorityTakeover"
	case ActionCatchupTakeover:
		return "CatchupTakeover"
	default:
		return "Unknown"
	}
}

// StartElectionReason distinguishes why becomeCandidateIfElectable was
// invoked; some reasons relax the freshness check.
type StartElectionReason int

const (
	ReasonElectionTimeout StartElectionReason = iota
	ReasonStepUpRequest
	ReasonPriorityTakeover
	ReasonCatchupTakeover
	ReasonSingleNodePromotion
)

func (r StartElectionReason) relaxedFreshness() bool {
	switch r {
	case ReasonStepUpRequest, ReasonPriorityTakeover, ReasonCatchupTakeover:
		return true
	default:
		return false
	}
}

// UpdateTermResult is returned by updateTerm.
type UpdateTermResult int

const (
	UpdateTermAlreadyUpToDate UpdateTermResult = iota
	UpdateTermTriggerStepDown
	UpdateTermUpdated
)

// PrepareFreezeResponseResult is returned by prepareFreezeResponse.
type PrepareFreezeResponseResult int

const (
	FreezeNoAction PrepareFreezeResponseResult = iota
	FreezeElectSelf
)

// ChainingPreference controls whether chooseNewSyncSource restricts
// candidates to the current primary.
type ChainingPreference struct {
	AllowChaining   bool
	UseConfiguration bool
}
