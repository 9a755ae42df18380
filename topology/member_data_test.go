package topology

import (
	"testing"
	"time"
)

func TestNewRegistry_PreservesStateAcrossReconfig(t *testing.T) {
	start := time.Unix(0, 0)
	cfg := threeNodeConfig()
	prior := NewRegistry(cfg, nil)
	md, _ := prior.AtIndex(1)
	md.LastAppliedOpTime = op(42, 1)
	md.Down = true

	reconfig := threeNodeConfig()
	reconfig.Version = 2
	next := NewRegistry(reconfig, prior)

	nmd, ok := next.AtIndex(1)
	if !ok {
		t.Fatal("member 1 should still be present")
	}
	if nmd.LastAppliedOpTime != op(42, 1) {
		t.Fatalf("want preserved opTime, got %v", nmd.LastAppliedOpTime)
	}
	if !nmd.Down {
		t.Fatal("want preserved down state")
	}
	_ = start
}

func TestRegistry_SetMemberAsDownReportsLostMajority(t *testing.T) {
	r := NewRegistry(threeNodeConfig(), nil)

	if r.setMemberAsDown(time.Unix(0, 0), 1, threeNodeConfig()) {
		t.Fatal("one of three down: majority (2) still held")
	}
	if !r.setMemberAsDown(time.Unix(0, 0), 2, threeNodeConfig()) {
		t.Fatal("two of three down: majority lost")
	}
}

func TestRegistry_GetStalestLiveMember(t *testing.T) {
	r := NewRegistry(threeNodeConfig(), nil)
	base := time.Unix(1000, 0)

	md1, _ := r.AtIndex(1)
	md1.LastUpdate = base
	md2, _ := r.AtIndex(2)
	md2.LastUpdate = base.Add(time.Minute)

	idx, stalest := r.getStalestLiveMember()
	if idx != 1 || !stalest.Equal(base) {
		t.Fatalf("want member 1 at %v, got %d at %v", base, idx, stalest)
	}
}

func TestRegistry_GetStalestLiveMember_EmptySentinel(t *testing.T) {
	cfg := &ConfigSnapshot{SetName: "rs0", Version: 1, SelfIndex: 0, Members: []MemberConfig{{ID: 0, Host: "a", Priority: 1, Votes: 1}}}
	r := NewRegistry(cfg, nil)

	idx, stalest := r.getStalestLiveMember()
	if idx != -1 || !stalest.Equal(maxTime) {
		t.Fatalf("want (-1, maxTime) sentinel, got (%d, %v)", idx, stalest)
	}
}

func TestRegistry_CountUpDown(t *testing.T) {
	r := NewRegistry(threeNodeConfig(), nil)
	r.setMemberAsDown(time.Unix(0, 0), 1, threeNodeConfig())

	if got := r.countUp(); got != 2 {
		t.Fatalf("countUp: want 2, got %d", got)
	}
	if got := r.countDown(); got != 1 {
		t.Fatalf("countDown: want 1, got %d", got)
	}
}

func TestRegistry_AddSlaveMemberDataIsIdempotent(t *testing.T) {
	r := NewRegistry(threeNodeConfig(), nil)

	first := r.AddSlaveMemberData("rid-1", "d:27017")
	second := r.AddSlaveMemberData("rid-1", "d:27017")
	if first != second {
		t.Fatal("want the same MemberData returned for a repeated rid")
	}
}
