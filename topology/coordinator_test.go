package topology

import (
	"testing"
	"time"
)

// TestScenario_ThreeNodeElectionOnTimeout covers spec scenario 1: a
// 3-node set with a 10s election timeout, where the self node is the only
// live voter after t=12s and successfully elects itself.
func TestScenario_ThreeNodeElectionOnTimeout(t *testing.T) {
	start := time.Unix(0, 0)
	c := newTestCoordinator(threeNodeConfig(), start)

	// B and C heartbeats succeed at t=0 reporting SECONDARY, no primary.
	for _, idx := range []int{1, 2} {
		c.processHeartbeatResponse(start, 5*time.Millisecond, idx, HeartbeatResult{
			Response: &HeartbeatResponse{SetName: "rs0", State: MemberStateSecondary, PrimaryID: NoSelfIndex},
		})
	}

	t12 := start.Add(12 * time.Second)
	action := c.checkMemberTimeouts(t12)
	if action.Kind != ActionNoAction {
		t.Fatalf("checkMemberTimeouts: want NoAction, got %v", action.Kind)
	}

	reason := c.becomeCandidateIfElectable(t12, ReasonElectionTimeout)
	if reason != ElectionCheckOK {
		t.Fatalf("becomeCandidateIfElectable: want OK, got %v", reason)
	}
	if c.Role() != RoleCandidate {
		t.Fatalf("Role: want candidate, got %v", c.Role())
	}

	c.processWinElection("electionX", op(5, 1))
	if c.Role() != RoleLeader || c.LeaderMode() != LeaderModeLeaderElect {
		t.Fatalf("processWinElection: want leader/leader-elect, got %v/%v", c.Role(), c.LeaderMode())
	}

	c.completeTransitionToPrimary(op(5, 1))
	if c.LeaderMode() != LeaderModeMaster {
		t.Fatalf("completeTransitionToPrimary: want master, got %v", c.LeaderMode())
	}
	if !c.CanAcceptWrites() {
		t.Fatal("CanAcceptWrites: want true after transition to primary")
	}
}

func TestUpdateConfig_DemotesLeaderWhenSelfDropped(t *testing.T) {
	start := time.Unix(0, 0)
	c := newTestCoordinator(threeNodeConfig(), start)
	c.role = RoleLeader
	c.leaderMode = LeaderModeMaster
	c.currentPrimaryIndex = 0

	reconfig := threeNodeConfig()
	reconfig.Version = 2
	reconfig.SelfIndex = NoSelfIndex
	reconfig.Members = reconfig.Members[1:]

	c.updateConfig(reconfig, start.Add(time.Second))

	if c.Role() != RoleFollower {
		t.Fatalf("Role: want follower after self dropped from config, got %v", c.Role())
	}
	if c.getCurrentPrimaryIndex() != NoSelfIndex {
		t.Fatalf("currentPrimaryIndex: want cleared, got %d", c.getCurrentPrimaryIndex())
	}
}

func TestUpdateTerm_Idempotent(t *testing.T) {
	c := newTestCoordinator(threeNodeConfig(), time.Unix(0, 0))

	if res := c.updateTerm(5); res != UpdateTermUpdated {
		t.Fatalf("first updateTerm(5): want Updated, got %v", res)
	}
	if res := c.updateTerm(5); res != UpdateTermAlreadyUpToDate {
		t.Fatalf("second updateTerm(5): want AlreadyUpToDate, got %v", res)
	}
}

func TestUpdateTerm_TriggersStepDownForLeader(t *testing.T) {
	c := newTestCoordinator(threeNodeConfig(), time.Unix(0, 0))
	c.role = RoleLeader
	c.leaderMode = LeaderModeMaster

	if res := c.updateTerm(9); res != UpdateTermTriggerStepDown {
		t.Fatalf("updateTerm while leader: want TriggerStepDown, got %v", res)
	}
}
