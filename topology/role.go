package topology

import (
	"time"

	"github.com/hieutrieu/replset/optime"
)

// Role returns the node's current Role.
func (c *Coordinator) Role() Role {
	return c.role
}

// LeaderMode returns the current LeaderMode. Only meaningful when
// Role() == RoleLeader; every other Role holds LeaderModeNotLeader.
func (c *Coordinator) LeaderMode() LeaderMode {
	return c.leaderMode
}

// memberState implements memberState(): the reported replica-set state,
// derived from Role/LeaderMode/followerMode/maintenanceCount.
func (c *Coordinator) memberState() MemberState {
	switch c.role {
	case RoleLeader:
		return MemberStatePrimary
	case RoleCandidate:
		return MemberStateSecondary
	case RoleFollower:
		if c.maintenanceCount > 0 {
			return MemberStateRecovering
		}
		return c.followerMode
	default:
		return MemberStateUnknown
	}
}

// MemberState is the exported form of memberState.
func (c *Coordinator) MemberState() MemberState {
	return c.memberState()
}

// canAcceptWrites implements canAcceptWrites(): true iff Role = leader and
// LeaderMode = master.
func (c *Coordinator) canAcceptWrites() bool {
	return c.role == RoleLeader && c.leaderMode == LeaderModeMaster
}

// CanAcceptWrites is the exported form of canAcceptWrites.
func (c *Coordinator) CanAcceptWrites() bool {
	return c.canAcceptWrites()
}

// isSteppingDown implements isSteppingDown().
func (c *Coordinator) isSteppingDown() bool {
	return c.role == RoleLeader &&
		(c.leaderMode == LeaderModeSteppingDown || c.leaderMode == LeaderModeAttemptingStepDown)
}

// setFollowerMode implements setFollowerMode(new_mode). Rejected with a
// precondition failure if Role != follower, per spec.md §4.1.
func (c *Coordinator) setFollowerMode(newMode MemberState) {
	Precondition(c.role == RoleFollower, "setFollowerMode: role is %s, not follower", c.role)
	Precondition(
		newMode == MemberStateSecondary || newMode == MemberStateStartup2 ||
			newMode == MemberStateRollback || newMode == MemberStateRecovering,
		"setFollowerMode: %s is not a valid follower mode", newMode,
	)
	c.followerMode = newMode
}

// adjustMaintenanceCountBy implements adjustMaintenanceCountBy(n).
// Rejected with a precondition failure if Role != follower, or if it would
// drive the counter negative.
func (c *Coordinator) adjustMaintenanceCountBy(n int) {
	Precondition(c.role == RoleFollower, "adjustMaintenanceCountBy: role is %s, not follower", c.role)
	Precondition(c.maintenanceCount+n >= 0, "adjustMaintenanceCountBy: would make maintenance count negative")
	c.maintenanceCount += n
}

// completeTransitionToPrimary implements completeTransitionToPrimary.
// Requires LeaderMode = leader-elect; sets LeaderMode = master, records
// firstOpTimeOfTerm as the commit floor for this tenure, and clears any
// election-sleep-until deadline.
func (c *Coordinator) completeTransitionToPrimary(firstOpTimeOfTerm optime.OpTime) {
	Precondition(c.role == RoleLeader, "completeTransitionToPrimary: role is %s, not leader", c.role)
	Precondition(c.leaderMode == LeaderModeLeaderElect,
		"completeTransitionToPrimary: leader mode is %s, not leader-elect", c.leaderMode)

	c.transitionLeaderMode(LeaderModeMaster)
	c.firstOpTimeOfTerm = firstOpTimeOfTerm
	c.electionSleepUntil = time.Time{}
}

// transitionLeaderMode enforces the legal LeaderMode transition graph
// before mutating state; any illegal edge is a programmer error.
func (c *Coordinator) transitionLeaderMode(to LeaderMode) {
	Precondition(isLegalLeaderModeTransition(c.leaderMode, to),
		"illegal leader mode transition: %s -> %s", c.leaderMode, to)
	c.leaderMode = to
}
