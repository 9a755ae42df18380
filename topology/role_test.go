package topology

import (
	"testing"
	"time"
)

func TestCanAcceptWrites_OnlyWhenLeaderAndMaster(t *testing.T) {
	c := newTestCoordinator(threeNodeConfig(), time.Unix(0, 0))
	if c.CanAcceptWrites() {
		t.Fatal("fresh follower must not accept writes")
	}

	c.role = RoleLeader
	c.leaderMode = LeaderModeLeaderElect
	if c.CanAcceptWrites() {
		t.Fatal("leader-elect must not accept writes yet")
	}

	c.leaderMode = LeaderModeMaster
	if !c.CanAcceptWrites() {
		t.Fatal("leader+master must accept writes")
	}
}

func TestSetFollowerMode_RejectsWhenNotFollower(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("want panic: setFollowerMode while leader")
		}
	}()
	c := newTestCoordinator(threeNodeConfig(), time.Unix(0, 0))
	c.role = RoleLeader
	c.setFollowerMode(MemberStateSecondary)
}

func TestAdjustMaintenanceCountBy_RejectsNegativeResult(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("want panic: maintenance count below zero")
		}
	}()
	c := newTestCoordinator(threeNodeConfig(), time.Unix(0, 0))
	c.adjustMaintenanceCountBy(-1)
}

func TestAdjustMaintenanceCountBy_ReportsRecoveringState(t *testing.T) {
	c := newTestCoordinator(threeNodeConfig(), time.Unix(0, 0))
	c.followerMode = MemberStateSecondary
	c.adjustMaintenanceCountBy(1)

	if c.MemberState() != MemberStateRecovering {
		t.Fatalf("want RECOVERING while in maintenance, got %v", c.MemberState())
	}

	c.adjustMaintenanceCountBy(-1)
	if c.MemberState() != MemberStateSecondary {
		t.Fatalf("want SECONDARY after leaving maintenance, got %v", c.MemberState())
	}
}

func TestTransitionLeaderMode_RejectsIllegalEdge(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("want panic: master -> leader-elect is illegal")
		}
	}()
	c := newTestCoordinator(threeNodeConfig(), time.Unix(0, 0))
	c.leaderMode = LeaderModeMaster
	c.transitionLeaderMode(LeaderModeLeaderElect)
}
