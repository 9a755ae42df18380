package topology

import (
	"testing"
	"time"
)

// TestScenario_HigherTermForcesStepDown covers spec scenario 2.
func TestScenario_HigherTermForcesStepDown(t *testing.T) {
	start := time.Unix(0, 0)
	c := newTestCoordinator(threeNodeConfig(), start)
	c.currentTerm = 4
	c.role = RoleLeader
	c.leaderMode = LeaderModeMaster
	c.currentPrimaryIndex = 0

	action := c.processHeartbeatResponse(start, time.Millisecond, 1, HeartbeatResult{
		Response: &HeartbeatResponse{SetName: "rs0", Term: 5, State: MemberStateSecondary},
	})

	if action.Kind != ActionStepDownSelf {
		t.Fatalf("processHeartbeatResponse: want StepDownSelf, got %v", action.Kind)
	}

	c.role = RoleFollower
	c.leaderMode = LeaderModeNotLeader

	if res := c.updateTerm(5); res != UpdateTermUpdated && res != UpdateTermAlreadyUpToDate {
		t.Fatalf("unexpected updateTerm result: %v", res)
	}
	if res := c.updateTerm(5); res != UpdateTermAlreadyUpToDate {
		t.Fatalf("re-updateTerm(5): want AlreadyUpToDate, got %v", res)
	}
}

// TestScenario_SplitBrainResolution covers spec scenario 6: two nodes
// claim primary in the same term; the one with the older electionTime
// steps down on its next heartbeat response.
func TestScenario_SplitBrainResolution(t *testing.T) {
	start := time.Unix(100, 0)
	c := newTestCoordinator(threeNodeConfig(), start)
	c.currentTerm = 7
	c.role = RoleLeader
	c.leaderMode = LeaderModeMaster
	c.currentPrimaryIndex = 0
	c.electionOpTime = op(50, 7) // our election time

	// Peer B reports itself primary in the same term, with a NEWER
	// election time than ours -> we must step down.
	action := c.processHeartbeatResponse(start, time.Millisecond, 1, HeartbeatResult{
		Response: &HeartbeatResponse{
			SetName:      "rs0",
			Term:         7,
			State:        MemberStatePrimary,
			ElectionTime: time.Unix(90, 0),
		},
	})
	if action.Kind != ActionStepDownSelf {
		t.Fatalf("older-electionTime leader: want StepDownSelf, got %v", action.Kind)
	}

	// Reset and try the opposite: peer reports an OLDER election time, so
	// we remain leader and instead tell the runtime to step down the peer.
	c2 := newTestCoordinator(threeNodeConfig(), start)
	c2.currentTerm = 7
	c2.role = RoleLeader
	c2.leaderMode = LeaderModeMaster
	c2.currentPrimaryIndex = 0
	c2.electionOpTime = op(50, 7)

	action2 := c2.processHeartbeatResponse(start, time.Millisecond, 1, HeartbeatResult{
		Response: &HeartbeatResponse{
			SetName:      "rs0",
			Term:         7,
			State:        MemberStatePrimary,
			ElectionTime: time.Unix(10, 0),
		},
	})
	if action2.Kind != ActionStepDownRemotePrimary {
		t.Fatalf("newer-electionTime leader: want StepDownRemotePrimary, got %v", action2.Kind)
	}
	if action2.RemotePrimaryIdx != 1 {
		t.Fatalf("RemotePrimaryIdx: want 1, got %d", action2.RemotePrimaryIdx)
	}
}

func TestProcessHeartbeatResponse_MarksDownOnError(t *testing.T) {
	start := time.Unix(0, 0)
	c := newTestCoordinator(threeNodeConfig(), start)

	action := c.processHeartbeatResponse(start, 0, 1, HeartbeatResult{Err: errTimeout})
	if action.Kind != ActionNoAction {
		t.Fatalf("want NoAction on single peer down, got %v", action.Kind)
	}
	md, _ := c.registry.AtIndex(1)
	if !md.Down {
		t.Fatal("peer should be marked down")
	}
}

func TestCheckMemberTimeouts_StepsDownLeaderOnLostMajority(t *testing.T) {
	start := time.Unix(0, 0)
	c := newTestCoordinator(threeNodeConfig(), start)
	c.role = RoleLeader
	c.leaderMode = LeaderModeMaster
	c.registry.resetAllMemberTimeouts(start)

	later := start.Add(20 * time.Second)
	action := c.checkMemberTimeouts(later)
	if action.Kind != ActionStepDownSelf {
		t.Fatalf("want StepDownSelf after losing majority, got %v", action.Kind)
	}
}

func TestRestartHeartbeats_MarksSelfResponded(t *testing.T) {
	start := time.Unix(0, 0)
	c := newTestCoordinator(threeNodeConfig(), start)

	if !c.respondedSinceRestart[c.registry.selfIndex] {
		t.Fatal("self should be marked responded immediately after restartHeartbeats")
	}
	if _, ok := c.latestKnownOpTimeSinceHeartbeatRestart(); ok {
		t.Fatal("want false: peers have not responded yet")
	}
}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }

var errTimeout = &testError{msg: "heartbeat timeout"}
