package topology

import "testing"

func TestIsLegalLeaderModeTransition(t *testing.T) {
	cases := []struct {
		from, to LeaderMode
		want     bool
	}{
		{LeaderModeNotLeader, LeaderModeLeaderElect, true},
		{LeaderModeLeaderElect, LeaderModeMaster, true},
		{LeaderModeMaster, LeaderModeAttemptingStepDown, true},
		{LeaderModeMaster, LeaderModeSteppingDown, true},
		{LeaderModeAttemptingStepDown, LeaderModeMaster, true},
		{LeaderModeAttemptingStepDown, LeaderModeSteppingDown, true},
		{LeaderModeAttemptingStepDown, LeaderModeNotLeader, true},
		{LeaderModeSteppingDown, LeaderModeNotLeader, true},
		{LeaderModeMaster, LeaderModeMaster, true}, // self-transition always legal
		{LeaderModeNotLeader, LeaderModeMaster, false},
		{LeaderModeMaster, LeaderModeLeaderElect, false},
		{LeaderModeSteppingDown, LeaderModeMaster, false},
	}
	for _, c := range cases {
		if got := isLegalLeaderModeTransition(c.from, c.to); got != c.want {
			t.Errorf("isLegalLeaderModeTransition(%v, %v) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestStartElectionReason_RelaxedFreshness(t *testing.T) {
	relaxed := []StartElectionReason{ReasonStepUpRequest, ReasonPriorityTakeover, ReasonCatchupTakeover}
	for _, r := range relaxed {
		if !r.relaxedFreshness() {
			t.Errorf("%v: want relaxed freshness", r)
		}
	}
	if ReasonElectionTimeout.relaxedFreshness() {
		t.Error("ReasonElectionTimeout: want strict freshness")
	}
}

func TestRoleStringers(t *testing.T) {
	if RoleLeader.String() != "leader" || RoleFollower.String() != "follower" || RoleCandidate.String() != "candidate" {
		t.Error("Role.String() mismatch")
	}
	if MemberStatePrimary.String() != "PRIMARY" || MemberStateSecondary.String() != "SECONDARY" {
		t.Error("MemberState.String() mismatch")
	}
}
