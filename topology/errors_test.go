package topology

import "testing"

func TestErrorMessages(t *testing.T) {
	cases := []struct {
		name string
		err  error
	}{
		{"InconsistentReplicaSetNames", &InconsistentReplicaSetNamesError{Ours: "rs0", Theirs: "rs1"}},
		{"IncompatibleProtocolVersion", &IncompatibleProtocolVersionError{Ours: 1, Theirs: 0}},
		{"BadValue", &BadValueError{Field: "senderId", Reason: "must be non-negative"}},
		{"NotSecondary", &NotSecondaryError{CurrentState: MemberStatePrimary}},
		{"ConflictingOperationInProgress", &ConflictingOperationInProgressError{InProgress: "stepdown"}},
		{"NotYetInitialized", &NotYetInitializedError{}},
		{"StaleTerm", &StaleTermError{RequestTerm: 1, CurrentTerm: 5}},
		{"NodeNotFound", &NodeNotFoundError{Query: "member id"}},
		{"StepDownAbandoned", &StepDownAbandonedError{Reason: "deadline reached"}},
	}
	for _, c := range cases {
		if c.err.Error() == "" {
			t.Errorf("%s: Error() returned empty string", c.name)
		}
	}
}

func TestPrecondition_PanicsOnFalse(t *testing.T) {
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("want panic")
		}
		if _, ok := r.(*PreconditionError); !ok {
			t.Fatalf("want *PreconditionError, got %T", r)
		}
	}()
	Precondition(false, "condition %s failed", "x")
}

func TestPrecondition_NoPanicOnTrue(t *testing.T) {
	Precondition(true, "unreachable")
}
