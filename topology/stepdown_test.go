package topology

import (
	"testing"
	"time"
)

// TestScenario_StepDownCommandWithNoCaughtUpSecondary covers spec
// scenario 5.
func TestScenario_StepDownCommandWithNoCaughtUpSecondary(t *testing.T) {
	start := time.Unix(0, 0)
	c := newTestCoordinator(threeNodeConfig(), start)
	c.role = RoleLeader
	c.leaderMode = LeaderModeMaster

	self, _ := c.registry.Self()
	self.LastAppliedOpTime = op(100, 1)
	// Neither peer has caught up and both are reachable (not down).
	for _, idx := range []int{1, 2} {
		md, _ := c.registry.AtIndex(idx)
		md.LastAppliedOpTime = op(10, 1)
	}

	if err := c.prepareForStepDownAttempt(); err != nil {
		t.Fatalf("prepareForStepDownAttempt: %v", err)
	}

	waitUntil := start.Add(5 * time.Second)
	stepDownUntil := start.Add(60 * time.Second)

	ok, err := c.attemptStepDown(0, start, waitUntil, stepDownUntil, false)
	if err != nil || ok {
		t.Fatalf("attemptStepDown(force=false): want (false, nil), got (%v, %v)", ok, err)
	}

	t6 := start.Add(6 * time.Second)
	ok, err = c.attemptStepDown(0, t6, waitUntil, stepDownUntil, true)
	if err != nil || !ok {
		t.Fatalf("attemptStepDown(force=true, past waitUntil): want (true, nil), got (%v, %v)", ok, err)
	}
	if c.Role() != RoleFollower {
		t.Fatalf("Role: want follower after forced stepdown, got %v", c.Role())
	}

	refused := c.checkShouldStandForElection(t6)
	if refused != ElectionCheckFrozen {
		t.Fatalf("checkShouldStandForElection: want Frozen until stepDownUntil, got %v", refused)
	}

	afterFreeze := stepDownUntil.Add(time.Second)
	// Self is still a voter/electable secondary with no known primary, so
	// the freeze lifting should now allow standing (freshness aside).
	reason := c.checkShouldStandForElectionImpl(afterFreeze, true)
	if reason != ElectionCheckOK {
		t.Fatalf("checkShouldStandForElectionImpl after freeze: want OK, got %v", reason)
	}
}

func TestPrepareForStepDownAttempt_RejectsConcurrentAttempt(t *testing.T) {
	c := newTestCoordinator(threeNodeConfig(), time.Unix(0, 0))
	c.role = RoleLeader
	c.leaderMode = LeaderModeMaster

	if err := c.prepareForStepDownAttempt(); err != nil {
		t.Fatalf("first attempt: %v", err)
	}
	if err := c.prepareForStepDownAttempt(); err == nil {
		t.Fatal("second concurrent attempt: want ConflictingOperationInProgressError")
	}
}

func TestAbortAttemptedStepDownIfNeeded_RevertsToMaster(t *testing.T) {
	c := newTestCoordinator(threeNodeConfig(), time.Unix(0, 0))
	c.role = RoleLeader
	c.leaderMode = LeaderModeMaster
	_ = c.prepareForStepDownAttempt()

	c.abortAttemptedStepDownIfNeeded()
	if c.LeaderMode() != LeaderModeMaster {
		t.Fatalf("want master after abort, got %v", c.LeaderMode())
	}
}

func TestUnconditionalStepDown(t *testing.T) {
	start := time.Unix(0, 0)
	c := newTestCoordinator(threeNodeConfig(), start)
	c.role = RoleLeader
	c.leaderMode = LeaderModeMaster
	c.currentPrimaryIndex = 0

	if !c.prepareForUnconditionalStepDown() {
		t.Fatal("want true on first call")
	}
	if c.prepareForUnconditionalStepDown() {
		t.Fatal("want false: already stepping down")
	}

	c.finishUnconditionalStepDown(start)
	if c.Role() != RoleFollower || c.getCurrentPrimaryIndex() != NoSelfIndex {
		t.Fatalf("want follower with cleared primary index, got role=%v primary=%d", c.Role(), c.getCurrentPrimaryIndex())
	}
}
