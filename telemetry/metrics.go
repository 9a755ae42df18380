package telemetry

// Histogram bucket definitions for different latency profiles.
var (
	// HeartbeatRTTBuckets for inter-member heartbeat round-trip time.
	HeartbeatRTTBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}

	// ElectionDurationBuckets for time spent between becoming candidate and a
	// win/loss decision.
	ElectionDurationBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

	// CommitLagBuckets for the gap between a node's last applied opTime and
	// the last computed majority-committed opTime, in seconds.
	CommitLagBuckets = []float64{0, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30}

	// SyncSourceLagBuckets for the gap between self and the chosen sync
	// source, in seconds.
	SyncSourceLagBuckets = []float64{0, 0.5, 1, 2.5, 5, 10, 30, 60}
)

// Role / State Machine metrics.
var (
	// CurrentRole is 1 for the currently reported MemberState, 0 otherwise,
	// labeled by state (PRIMARY, SECONDARY, STARTUP2, RECOVERING, ROLLBACK).
	CurrentRole GaugeVec = noopGaugeVec{}

	// CurrentTerm is the node's current term.
	CurrentTerm Gauge = NoopStat{}

	// CanAcceptWrites is 1 iff canAcceptWrites() holds.
	CanAcceptWrites Gauge = NoopStat{}

	// MaintenanceCount is the current maintenance mode nesting counter.
	MaintenanceCount Gauge = NoopStat{}

	// RoleTransitionsTotal counts Role transitions, labeled (from, to).
	RoleTransitionsTotal CounterVec = noopCounterVec{}
)

// Member Registry metrics.
var (
	// MembersUp counts members currently believed up.
	MembersUp Gauge = NoopStat{}

	// MembersDown counts members currently believed down.
	MembersDown Gauge = NoopStat{}

	// MemberDownTotal counts setMemberAsDown transitions, labeled by member id.
	MemberDownTotal CounterVec = noopCounterVec{}

	// MemberTimeoutsTotal counts checkMemberTimeouts-driven down transitions.
	MemberTimeoutsTotal Counter = NoopStat{}
)

// Heartbeat Engine metrics.
var (
	// HeartbeatsTotal counts processed heartbeat responses, labeled by result
	// (ok, error, duplicate).
	HeartbeatsTotal CounterVec = noopCounterVec{}

	// HeartbeatRTTSeconds measures round-trip time of heartbeat exchanges.
	HeartbeatRTTSeconds Histogram = NoopStat{}

	// HeartbeatActionsTotal counts HeartbeatResponseAction results, labeled
	// by action kind.
	HeartbeatActionsTotal CounterVec = noopCounterVec{}
)

// Election Engine metrics.
var (
	// ElectionsStartedTotal counts becomeCandidateIfElectable successes,
	// labeled by trigger reason.
	ElectionsStartedTotal CounterVec = noopCounterVec{}

	// ElectionsWonTotal counts processWinElection calls.
	ElectionsWonTotal Counter = NoopStat{}

	// ElectionsLostTotal counts processLoseElection calls.
	ElectionsLostTotal Counter = NoopStat{}

	// ElectionDurationSeconds measures candidate-to-decision latency.
	ElectionDurationSeconds Histogram = NoopStat{}

	// VotesGrantedTotal counts processReplSetRequestVotes grants.
	VotesGrantedTotal Counter = NoopStat{}

	// VotesRefusedTotal counts processReplSetRequestVotes refusals, labeled
	// by reason.
	VotesRefusedTotal CounterVec = noopCounterVec{}
)

// Step-down metrics.
var (
	// StepDownsTotal counts completed stepdowns, labeled by kind (attempted,
	// unconditional).
	StepDownsTotal CounterVec = noopCounterVec{}

	// StepDownAttemptsFailedTotal counts attemptStepDown calls returning
	// an error.
	StepDownAttemptsFailedTotal Counter = NoopStat{}
)

// Commit Calculator metrics.
var (
	// LastCommittedOpTimeTerm is the term component of lastCommittedOpTime.
	LastCommittedOpTimeTerm Gauge = NoopStat{}

	// LastCommittedOpTimeTimestamp is the timestamp component (unix seconds)
	// of lastCommittedOpTime.
	LastCommittedOpTimeTimestamp Gauge = NoopStat{}

	// CommitAdvancesTotal counts updateLastCommittedOpTime calls that moved
	// the commit point forward.
	CommitAdvancesTotal Counter = NoopStat{}

	// CommitLagSeconds measures lastApplied - lastCommittedOpTime.
	CommitLagSeconds Histogram = NoopStat{}
)

// Sync-Source Selector metrics.
var (
	// SyncSourceChangesTotal counts chooseNewSyncSource calls that changed
	// the sync source.
	SyncSourceChangesTotal Counter = NoopStat{}

	// SyncSourceBlacklistedTotal counts blacklistSyncSource calls.
	SyncSourceBlacklistedTotal Counter = NoopStat{}

	// SyncSourceLagSeconds measures lag behind the chosen sync source.
	SyncSourceLagSeconds Histogram = NoopStat{}
)

// InitMetrics wires every metric variable above to the active registry (or
// to no-op implementations if Prometheus is disabled). Must run after
// InitializeTelemetry.
func InitMetrics() {
	CurrentRole = NewGaugeVec("current_role", "1 for the reported member state, labeled by state", []string{"state"})
	CurrentTerm = NewGauge("current_term", "Current election term")
	CanAcceptWrites = NewGauge("can_accept_writes", "1 iff this node can accept writes")
	MaintenanceCount = NewGauge("maintenance_count", "Current maintenance mode nesting counter")
	RoleTransitionsTotal = NewCounterVec("role_transitions_total", "Role transitions", []string{"from", "to"})

	MembersUp = NewGauge("members_up", "Members currently believed up")
	MembersDown = NewGauge("members_down", "Members currently believed down")
	MemberDownTotal = NewCounterVec("member_down_total", "setMemberAsDown transitions", []string{"member_id"})
	MemberTimeoutsTotal = NewCounter("member_timeouts_total", "checkMemberTimeouts-driven down transitions")

	HeartbeatsTotal = NewCounterVec("heartbeats_total", "Processed heartbeat responses", []string{"result"})
	HeartbeatRTTSeconds = NewHistogramWithBuckets("heartbeat_rtt_seconds", "Heartbeat round-trip time", HeartbeatRTTBuckets)
	HeartbeatActionsTotal = NewCounterVec("heartbeat_actions_total", "HeartbeatResponseAction results", []string{"action"})

	ElectionsStartedTotal = NewCounterVec("elections_started_total", "becomeCandidateIfElectable successes", []string{"reason"})
	ElectionsWonTotal = NewCounter("elections_won_total", "processWinElection calls")
	ElectionsLostTotal = NewCounter("elections_lost_total", "processLoseElection calls")
	ElectionDurationSeconds = NewHistogramWithBuckets("election_duration_seconds", "Candidate-to-decision latency", ElectionDurationBuckets)
	VotesGrantedTotal = NewCounter("votes_granted_total", "processReplSetRequestVotes grants")
	VotesRefusedTotal = NewCounterVec("votes_refused_total", "processReplSetRequestVotes refusals", []string{"reason"})

	StepDownsTotal = NewCounterVec("step_downs_total", "Completed stepdowns", []string{"kind"})
	StepDownAttemptsFailedTotal = NewCounter("step_down_attempts_failed_total", "Failed attemptStepDown calls")

	LastCommittedOpTimeTerm = NewGauge("last_committed_optime_term", "Term component of lastCommittedOpTime")
	LastCommittedOpTimeTimestamp = NewGauge("last_committed_optime_timestamp", "Timestamp component of lastCommittedOpTime")
	CommitAdvancesTotal = NewCounter("commit_advances_total", "updateLastCommittedOpTime calls that advanced the commit point")
	CommitLagSeconds = NewHistogramWithBuckets("commit_lag_seconds", "lastApplied minus lastCommittedOpTime", CommitLagBuckets)

	SyncSourceChangesTotal = NewCounter("sync_source_changes_total", "chooseNewSyncSource calls that changed source")
	SyncSourceBlacklistedTotal = NewCounter("sync_source_blacklisted_total", "blacklistSyncSource calls")
	SyncSourceLagSeconds = NewHistogramWithBuckets("sync_source_lag_seconds", "Lag behind the chosen sync source", SyncSourceLagBuckets)
}
