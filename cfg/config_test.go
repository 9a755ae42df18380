package cfg

import "testing"

func validReplicaSet() ReplicaSetConfiguration {
	return ReplicaSetConfiguration{
		SetName:              "rs0",
		ConfigVersion:        1,
		SelfMemberID:         -1,
		ProtocolVersion:      1,
		ElectionTimeoutMS:    10000,
		HeartbeatIntervalMS:  2000,
		HeartbeatTimeoutMS:   10000,
		Members: []MemberConfiguration{
			{ID: 0, Host: "a:27017", Priority: 1, Votes: 1},
			{ID: 1, Host: "b:27017", Priority: 1, Votes: 1},
			{ID: 2, Host: "c:27017", Priority: 1, Votes: 1},
		},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	original := Config
	defer func() { Config = original }()

	Config = &Configuration{
		NodeID:     1,
		DataDir:    "./test-data",
		ReplicaSet: validReplicaSet(),
		Transport:  TransportConfiguration{RequestTimeoutMS: 5000},
	}

	if err := Validate(); err != nil {
		t.Errorf("expected no error for valid config, got: %v", err)
	}
}

func TestValidate_EmptySetName(t *testing.T) {
	original := Config
	defer func() { Config = original }()

	rs := validReplicaSet()
	rs.SetName = ""
	Config = &Configuration{ReplicaSet: rs, Transport: TransportConfiguration{RequestTimeoutMS: 1}}

	if err := Validate(); err == nil {
		t.Error("expected error for empty set_name")
	}
}

func TestValidate_MemberCountBounds(t *testing.T) {
	original := Config
	defer func() { Config = original }()

	rs := validReplicaSet()
	rs.Members = nil
	Config = &Configuration{ReplicaSet: rs, Transport: TransportConfiguration{RequestTimeoutMS: 1}}
	if err := Validate(); err == nil {
		t.Error("expected error for zero members")
	}

	rs = validReplicaSet()
	many := make([]MemberConfiguration, 51)
	for i := range many {
		many[i] = MemberConfiguration{ID: i, Host: "h", Votes: 0, Priority: 0}
	}
	rs.Members = many
	Config = &Configuration{ReplicaSet: rs, Transport: TransportConfiguration{RequestTimeoutMS: 1}}
	if err := Validate(); err == nil {
		t.Error("expected error for 51 members")
	}
}

func TestValidate_DuplicateMemberID(t *testing.T) {
	original := Config
	defer func() { Config = original }()

	rs := validReplicaSet()
	rs.Members[1].ID = rs.Members[0].ID
	Config = &Configuration{ReplicaSet: rs, Transport: TransportConfiguration{RequestTimeoutMS: 1}}

	if err := Validate(); err == nil {
		t.Error("expected error for duplicate member id")
	}
}

func TestValidate_VoteWeightBounds(t *testing.T) {
	original := Config
	defer func() { Config = original }()

	rs := validReplicaSet()
	for i := range rs.Members {
		rs.Members[i].Votes = 0
	}
	Config = &Configuration{ReplicaSet: rs, Transport: TransportConfiguration{RequestTimeoutMS: 1}}
	if err := Validate(); err == nil {
		t.Error("expected error for zero total vote weight")
	}
}

func TestValidate_ArbiterMustHaveZeroPriority(t *testing.T) {
	original := Config
	defer func() { Config = original }()

	rs := validReplicaSet()
	rs.Members[0].ArbiterOnly = true
	rs.Members[0].Priority = 1
	Config = &Configuration{ReplicaSet: rs, Transport: TransportConfiguration{RequestTimeoutMS: 1}}

	if err := Validate(); err == nil {
		t.Error("expected error for arbiter with nonzero priority")
	}
}

func TestValidate_InvalidProtocolVersion(t *testing.T) {
	original := Config
	defer func() { Config = original }()

	rs := validReplicaSet()
	rs.ProtocolVersion = 2
	Config = &Configuration{ReplicaSet: rs, Transport: TransportConfiguration{RequestTimeoutMS: 1}}

	if err := Validate(); err == nil {
		t.Error("expected error for protocol version 2")
	}
}

func TestValidate_HeartbeatTimeoutBelowInterval(t *testing.T) {
	original := Config
	defer func() { Config = original }()

	rs := validReplicaSet()
	rs.HeartbeatTimeoutMS = rs.HeartbeatIntervalMS - 1
	Config = &Configuration{ReplicaSet: rs, Transport: TransportConfiguration{RequestTimeoutMS: 1}}

	if err := Validate(); err == nil {
		t.Error("expected error when heartbeat_timeout_ms < heartbeat_interval_ms")
	}
}

func TestValidate_AdminPortBounds(t *testing.T) {
	original := Config
	defer func() { Config = original }()

	for _, port := range []int{-1, 0, 70000} {
		Config = &Configuration{
			ReplicaSet: validReplicaSet(),
			Transport:  TransportConfiguration{RequestTimeoutMS: 1},
			Admin:      AdminConfiguration{Enabled: true, Port: port},
		}
		if err := Validate(); err == nil {
			t.Errorf("expected error for invalid admin port %d", port)
		}
	}
}

func TestValidate_SelfMemberIDMustExist(t *testing.T) {
	original := Config
	defer func() { Config = original }()

	rs := validReplicaSet()
	rs.SelfMemberID = 99
	Config = &Configuration{ReplicaSet: rs, Transport: TransportConfiguration{RequestTimeoutMS: 1}}

	if err := Validate(); err == nil {
		t.Error("expected error for self_member_id with no matching member")
	}
}

func TestGenerateNodeID_Deterministic(t *testing.T) {
	a, err := generateNodeID()
	if err != nil {
		t.Fatalf("generateNodeID: %v", err)
	}
	b, err := generateNodeID()
	if err != nil {
		t.Fatalf("generateNodeID: %v", err)
	}
	if a != b {
		t.Errorf("expected stable node id across calls, got %d and %d", a, b)
	}
}
