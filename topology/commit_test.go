package topology

import (
	"testing"
	"time"
)

// TestScenario_MajorityCommitCalculation covers spec scenario 3: five
// voting members with lastApplied {(10,2),(10,2),(9,2),(8,2),(7,2)} ->
// updateLastCommittedOpTime sets (9,2), the index-2 entry sorted
// descending, and returns true once, then false on the next call.
func TestScenario_MajorityCommitCalculation(t *testing.T) {
	start := time.Unix(0, 0)
	c := newTestCoordinator(fiveVoterConfig(), start)
	c.currentTerm = 2

	applied := []int64{10, 10, 9, 8, 7}
	for i, sec := range applied {
		md, _ := c.registry.AtIndex(i)
		md.LastAppliedOpTime = op(sec, 2)
	}

	if !c.updateLastCommittedOpTime() {
		t.Fatal("first updateLastCommittedOpTime: want true")
	}
	want := op(9, 2)
	if c.GetLastCommittedOpTime() != want {
		t.Fatalf("lastCommittedOpTime: want %v, got %v", want, c.GetLastCommittedOpTime())
	}

	if c.updateLastCommittedOpTime() {
		t.Fatal("second updateLastCommittedOpTime: want false, nothing changed")
	}
}

func TestAdvanceLastCommittedOpTime_IgnoresBackwardMoves(t *testing.T) {
	c := newTestCoordinator(threeNodeConfig(), time.Unix(0, 0))
	c.lastCommittedOpTime = op(10, 1)

	if c.advanceLastCommittedOpTime(op(5, 1)) {
		t.Fatal("want false: backward move must be ignored")
	}
	if !c.advanceLastCommittedOpTime(op(11, 1)) {
		t.Fatal("want true: forward move must apply")
	}
	if c.GetLastCommittedOpTime() != op(11, 1) {
		t.Fatalf("want (11,1), got %v", c.GetLastCommittedOpTime())
	}
}

func TestUpdateLastCommittedOpTime_RespectsFirstOpTimeOfTerm(t *testing.T) {
	start := time.Unix(0, 0)
	c := newTestCoordinator(fiveVoterConfig(), start)
	c.role = RoleLeader
	c.currentTerm = 3
	c.firstOpTimeOfTerm = op(20, 3)

	for i := range c.config.Members {
		md, _ := c.registry.AtIndex(i)
		md.LastAppliedOpTime = op(15, 3)
	}

	if c.updateLastCommittedOpTime() {
		t.Fatal("want false: candidate precedes firstOpTimeOfTerm")
	}
}
