package runtime

import "testing"

func TestNewElectionID_Unique(t *testing.T) {
	a := newElectionID()
	b := newElectionID()
	if a == "" || b == "" {
		t.Fatal("election id must not be empty")
	}
	if a == b {
		t.Error("two successive election ids must not collide")
	}
}
