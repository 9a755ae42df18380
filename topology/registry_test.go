package topology

import (
	"testing"
	"time"
)

func TestHaveNumNodesReachedOpTime(t *testing.T) {
	start := time.Unix(0, 0)
	c := newTestCoordinator(threeNodeConfig(), start)

	for i, sec := range []int64{10, 10, 5} {
		md, _ := c.registry.AtIndex(i)
		md.LastAppliedOpTime = op(sec, 1)
	}

	if !c.haveNumNodesReachedOpTime(op(10, 1), 2, false) {
		t.Error("want true: two members at (10,1)")
	}
	if c.haveNumNodesReachedOpTime(op(10, 1), 3, false) {
		t.Error("want false: only two members reached (10,1)")
	}
}

func TestHaveTaggedNodesReachedOpTime(t *testing.T) {
	start := time.Unix(0, 0)
	cfg := threeNodeConfig()
	cfg.Members[1].Tags = map[string]string{"dc": "east"}
	cfg.Members[2].Tags = map[string]string{"dc": "west"}
	c := newTestCoordinator(cfg, start)

	md1, _ := c.registry.AtIndex(1)
	md1.LastAppliedOpTime = op(10, 1)
	md2, _ := c.registry.AtIndex(2)
	md2.LastAppliedOpTime = op(0, 1)

	if !c.haveTaggedNodesReachedOpTime(op(10, 1), map[string]string{"dc": "east"}, false) {
		t.Error("want true: only the east-tagged member need satisfy the pattern")
	}
	if c.haveTaggedNodesReachedOpTime(op(10, 1), map[string]string{"dc": "west"}, false) {
		t.Error("want false: west-tagged member has not reached op")
	}
}

func TestGetHostsWrittenTo(t *testing.T) {
	start := time.Unix(0, 0)
	c := newTestCoordinator(threeNodeConfig(), start)

	md1, _ := c.registry.AtIndex(1)
	md1.LastAppliedOpTime = op(10, 1)

	hosts := c.getHostsWrittenTo(op(10, 1), false, true)
	if len(hosts) != 1 || hosts[0] != "b:27017" {
		t.Errorf("want [b:27017], got %v", hosts)
	}
}

func TestFindMemberDataByMemberID_NotFound(t *testing.T) {
	c := newTestCoordinator(threeNodeConfig(), time.Unix(0, 0))
	if _, err := c.FindMemberDataByMemberID(99); err == nil {
		t.Error("want NodeNotFoundError for unknown member id")
	}
}
