package topology

import (
	"time"

	"github.com/hieutrieu/replset/optime"
)

// prepareForStepDownAttempt implements prepareForStepDownAttempt():
// transitions LeaderMode master -> attempting-step-down. A second attempt
// while one is already in flight returns ConflictingOperationInProgress.
func (c *Coordinator) prepareForStepDownAttempt() error {
	Precondition(c.role == RoleLeader, "prepareForStepDownAttempt: role is %s, not leader", c.role)

	if c.leaderMode == LeaderModeAttemptingStepDown || c.stepDownAttemptInProgress {
		return &ConflictingOperationInProgressError{InProgress: "stepdown attempt"}
	}
	if c.leaderMode != LeaderModeMaster {
		return &NotSecondaryError{CurrentState: c.memberState()}
	}

	c.transitionLeaderMode(LeaderModeAttemptingStepDown)
	c.stepDownAttemptInProgress = true
	return nil
}

// isSafeToStepDown implements isSafeToStepDown(): true iff a majority of
// voting members have caught up to our lastApplied and at least one of
// them, besides ourselves, is electable.
func (c *Coordinator) isSafeToStepDown() bool {
	myApplied := c.registry.getMyLastAppliedOpTime()

	caughtUpWeight := 0
	anyElectableCaughtUp := false

	for i, mc := range c.config.Members {
		md, ok := c.registry.AtIndex(i)
		if !ok || md.Down {
			continue
		}
		if optime.LessOrEqual(myApplied, md.LastAppliedOpTime) {
			caughtUpWeight += mc.Votes
			if !md.IsSelf && mc.IsVoter() && mc.IsElectable() {
				anyElectableCaughtUp = true
			}
		}
	}

	return caughtUpWeight >= c.config.MajorityVoteCount() && anyElectableCaughtUp
}

// attemptStepDown implements attemptStepDown(termAtStart, now, waitUntil,
// stepDownUntil, force). Returns (true, nil) iff (a) force and
// now > waitUntil, or (b) isSafeToStepDown(). Returns (false, nil) while
// neither holds and the deadline has not yet been reached. Returns
// (false, *StepDownAbandonedError) once now >= stepDownUntil or the term
// has changed out from under the attempt — the distinguished error kind
// replacing the source's thrown exception.
func (c *Coordinator) attemptStepDown(termAtStart int64, now, waitUntil, stepDownUntil time.Time, force bool) (bool, error) {
	Precondition(c.leaderMode == LeaderModeAttemptingStepDown,
		"attemptStepDown: leader mode is %s, not attempting-step-down", c.leaderMode)

	if c.currentTerm != termAtStart {
		return false, &StepDownAbandonedError{Reason: "term changed during stepdown attempt"}
	}

	if force && now.After(waitUntil) {
		c.completeStepDownToFollower(now, stepDownUntil)
		return true, nil
	}

	if c.isSafeToStepDown() {
		c.completeStepDownToFollower(now, stepDownUntil)
		return true, nil
	}

	if !now.Before(stepDownUntil) {
		return false, &StepDownAbandonedError{Reason: "stepdown deadline reached with no caught-up electable secondary"}
	}

	return false, nil
}

// completeStepDownToFollower transitions attempting-step-down -> not-leader,
// Role -> follower, and sets electionSleepUntil = now + stepDownUntil's
// remaining window.
func (c *Coordinator) completeStepDownToFollower(now, stepDownUntil time.Time) {
	c.transitionLeaderMode(LeaderModeNotLeader)
	c.role = RoleFollower
	c.followerMode = MemberStateSecondary
	c.currentPrimaryIndex = NoSelfIndex
	c.electionSleepUntil = stepDownUntil
	c.stepDownAttemptInProgress = false
}

// abortAttemptedStepDownIfNeeded implements
// abortAttemptedStepDownIfNeeded(): reverses attempting-step-down -> master,
// leaving any concurrent unconditional stepdown in place.
func (c *Coordinator) abortAttemptedStepDownIfNeeded() {
	if c.leaderMode != LeaderModeAttemptingStepDown {
		return
	}
	c.transitionLeaderMode(LeaderModeMaster)
	c.stepDownAttemptInProgress = false
}

// prepareForUnconditionalStepDown implements
// prepareForUnconditionalStepDown(): transitions LeaderMode ->
// stepping-down, returning false if already stepping-down.
func (c *Coordinator) prepareForUnconditionalStepDown() bool {
	Precondition(c.role == RoleLeader, "prepareForUnconditionalStepDown: role is %s, not leader", c.role)

	if c.leaderMode == LeaderModeSteppingDown {
		return false
	}
	c.transitionLeaderMode(LeaderModeSteppingDown)
	return true
}

// finishUnconditionalStepDown implements finishUnconditionalStepDown():
// completes the transition to follower and clears the primary index. The
// runtime calls this only after acquiring its global write-lock.
func (c *Coordinator) finishUnconditionalStepDown(now time.Time) {
	Precondition(c.leaderMode == LeaderModeSteppingDown,
		"finishUnconditionalStepDown: leader mode is %s, not stepping-down", c.leaderMode)

	c.transitionLeaderMode(LeaderModeNotLeader)
	c.role = RoleFollower
	c.followerMode = MemberStateSecondary
	c.currentPrimaryIndex = NoSelfIndex
}
