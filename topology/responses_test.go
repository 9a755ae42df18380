package topology

import (
	"strings"
	"testing"
	"time"
)

func TestPrepareStatusResponse_ReflectsSelfAndPeers(t *testing.T) {
	start := time.Unix(0, 0)
	c := newTestCoordinator(threeNodeConfig(), start)
	c.role = RoleLeader
	c.leaderMode = LeaderModeMaster
	c.currentTerm = 3

	resp := c.prepareStatusResponse(ReplSetStatusArgs{Now: start, SelfUptime: time.Minute})
	if resp.SetName != "rs0" || resp.Term != 3 {
		t.Fatalf("unexpected response header: %+v", resp)
	}
	if len(resp.Members) != 3 {
		t.Fatalf("want 3 members, got %d", len(resp.Members))
	}
	if resp.Members[0].State != MemberStatePrimary {
		t.Fatalf("self member state: want PRIMARY, got %v", resp.Members[0].State)
	}
}

func TestFillIsMasterForReplSet(t *testing.T) {
	c := newTestCoordinator(threeNodeConfig(), time.Unix(0, 0))
	c.role = RoleLeader
	c.leaderMode = LeaderModeMaster
	c.currentPrimaryIndex = 0

	resp := c.fillIsMasterForReplSet()
	if !resp.IsWritablePrimary {
		t.Fatal("want IsWritablePrimary true")
	}
	if resp.Me != "a:27017" || resp.PrimaryHost != "a:27017" {
		t.Fatalf("unexpected hosts: %+v", resp)
	}
	if len(resp.Hosts) != 3 {
		t.Fatalf("want 3 hosts, got %d", len(resp.Hosts))
	}
}

func TestPrepareReplSetUpdatePositionCommand_SkipsDownMembers(t *testing.T) {
	start := time.Unix(0, 0)
	c := newTestCoordinator(threeNodeConfig(), start)
	c.registry.setMemberAsDown(start, 2, c.config)

	entries := c.prepareReplSetUpdatePositionCommand()
	if len(entries) != 2 {
		t.Fatalf("want 2 entries (down member skipped), got %d", len(entries))
	}
}

func TestSummarizeAsHtml_ContainsSetNameAndMembers(t *testing.T) {
	c := newTestCoordinator(threeNodeConfig(), time.Unix(0, 0))
	html := c.summarizeAsHtml()
	if !strings.Contains(html, "rs0") || !strings.Contains(html, "b:27017") {
		t.Fatalf("summarizeAsHtml missing expected content: %s", html)
	}
}

func TestPrepareSyncFromResponse_WarnsOnSelf(t *testing.T) {
	c := newTestCoordinator(threeNodeConfig(), time.Unix(0, 0))
	resp, err := c.prepareSyncFromResponse("a:27017")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Warnings) == 0 {
		t.Fatal("want a warning when syncing from self")
	}
}

func TestPrepareSyncFromResponse_UnknownHost(t *testing.T) {
	c := newTestCoordinator(threeNodeConfig(), time.Unix(0, 0))
	if _, err := c.prepareSyncFromResponse("ghost:27017"); err == nil {
		t.Fatal("want NodeNotFoundError for an unconfigured host")
	}
}

func TestPrepareFreezeResponse_RejectsLeader(t *testing.T) {
	c := newTestCoordinator(threeNodeConfig(), time.Unix(0, 0))
	c.role = RoleLeader
	c.leaderMode = LeaderModeMaster

	if _, err := c.prepareFreezeResponse(time.Unix(0, 0), 10*time.Second); err == nil {
		t.Fatal("want NotSecondaryError while leader")
	}
}

func TestPrepareFreezeResponse_SingleVoterElectsSelfOnClear(t *testing.T) {
	cfg := &ConfigSnapshot{
		SetName: "rs0", Version: 1, SelfIndex: 0,
		Members: []MemberConfig{{ID: 0, Host: "a:27017", Priority: 1, Votes: 1}},
	}
	c := newTestCoordinator(cfg, time.Unix(0, 0))
	c.electionSleepUntil = time.Unix(0, 0).Add(time.Hour)

	result, err := c.prepareFreezeResponse(time.Unix(0, 0), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != FreezeElectSelf {
		t.Fatalf("want FreezeElectSelf for a single-voter set, got %v", result)
	}
}
