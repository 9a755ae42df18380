package topology

import (
	"time"

	"github.com/hieutrieu/replset/optime"
)

// This file is the exported entry-point surface for every operation the
// doc comment on Coordinator promises: "every exported method is an entry
// point from spec.md §4". The operations implemented on coordinator.go,
// role.go, election.go, heartbeat.go, stepdown.go, syncsource.go, and
// commit.go were written as unexported methods first (so package-internal
// tests could exercise them directly by their spec name); this file is
// their public face for a runtime package that owns the exclusive lock
// spec.md §5 requires of every caller.

// UpdateConfig implements updateConfig(newConfig, now).
func (c *Coordinator) UpdateConfig(newConfig *ConfigSnapshot, now time.Time) {
	c.updateConfig(newConfig, now)
}

// GetTerm implements getTerm().
func (c *Coordinator) GetTerm() int64 {
	return c.getTerm()
}

// UpdateTerm implements updateTerm(t).
func (c *Coordinator) UpdateTerm(t int64) UpdateTermResult {
	return c.updateTerm(t)
}

// GetCurrentPrimaryIndex implements getCurrentPrimaryIndex().
func (c *Coordinator) GetCurrentPrimaryIndex() int {
	return c.getCurrentPrimaryIndex()
}

// SetPrimaryIndex implements setPrimaryIndex(idx).
func (c *Coordinator) SetPrimaryIndex(idx int) {
	c.setPrimaryIndex(idx)
}

// GetMaintenanceCount implements getMaintenanceCount().
func (c *Coordinator) GetMaintenanceCount() int {
	return c.getMaintenanceCount()
}

// GetStepDownTime implements getStepDownTime().
func (c *Coordinator) GetStepDownTime() time.Time {
	return c.getStepDownTime()
}

// LoadLastVote implements loadLastVote(v).
func (c *Coordinator) LoadLastVote(v LastVote) {
	c.loadLastVote(v)
}

// GetLastVote implements getLastVote().
func (c *Coordinator) GetLastVote() LastVote {
	return c.getLastVote()
}

// SetElectionInfo implements setElectionInfo(electionId, electionOpTime).
func (c *Coordinator) SetElectionInfo(electionID string, electionOpTime optime.OpTime) {
	c.setElectionInfo(electionID, electionOpTime)
}

// SetMyHeartbeatMessage implements setMyHeartbeatMessage(now, msg).
func (c *Coordinator) SetMyHeartbeatMessage(now time.Time, msg string) {
	c.setMyHeartbeatMessage(now, msg)
}

// RecordLocalProgress implements the local-progress entry point.
func (c *Coordinator) RecordLocalProgress(now time.Time, applied, durable optime.OpTime) {
	c.recordLocalProgress(now, applied, durable)
}

// CheckShouldStandForElection implements checkShouldStandForElection(now).
func (c *Coordinator) CheckShouldStandForElection(now time.Time) ElectionCheckReason {
	return c.checkShouldStandForElection(now)
}

// BecomeCandidateIfElectable implements becomeCandidateIfElectable(now, reason).
func (c *Coordinator) BecomeCandidateIfElectable(now time.Time, reason StartElectionReason) ElectionCheckReason {
	return c.becomeCandidateIfElectable(now, reason)
}

// VoteForMyself implements voteForMyself(now) / voteForMyselfV1(now).
func (c *Coordinator) VoteForMyself(now time.Time) bool {
	return c.voteForMyself(now)
}

// ProcessReplSetRequestVotes implements processReplSetRequestVotes(args).
func (c *Coordinator) ProcessReplSetRequestVotes(args RequestVotesArgs) RequestVotesResponse {
	return c.processReplSetRequestVotes(args)
}

// PrepareFreshResponse implements prepareFreshResponse(args) (legacy v0).
func (c *Coordinator) PrepareFreshResponse(args FreshArgs) FreshResponse {
	return c.prepareFreshResponse(args)
}

// PrepareElectResponse implements prepareElectResponse(now, args) (legacy v0).
func (c *Coordinator) PrepareElectResponse(now time.Time, args ElectArgs) ElectResponse {
	return c.prepareElectResponse(now, args)
}

// ProcessWinElection implements processWinElection(id, opTime).
func (c *Coordinator) ProcessWinElection(electionID string, opTime optime.OpTime) {
	c.processWinElection(electionID, opTime)
}

// ProcessLoseElection implements processLoseElection().
func (c *Coordinator) ProcessLoseElection() {
	c.processLoseElection()
}

// BecomeCandidateIfStepdownPeriodOverAndSingleNodeSet implements the
// single-node replica set re-election path.
func (c *Coordinator) BecomeCandidateIfStepdownPeriodOverAndSingleNodeSet(now time.Time) bool {
	return c.becomeCandidateIfStepdownPeriodOverAndSingleNodeSet(now)
}

// PrepareHeartbeatRequest implements prepareHeartbeatRequest(now, ourSetName, target).
func (c *Coordinator) PrepareHeartbeatRequest(now time.Time, ourSetName string, targetIdx int) (HeartbeatArgs, time.Duration) {
	return c.prepareHeartbeatRequest(now, ourSetName, targetIdx)
}

// PrepareHeartbeatResponse implements prepareHeartbeatResponse(now, args, ourSetName).
func (c *Coordinator) PrepareHeartbeatResponse(now time.Time, args HeartbeatArgs, ourSetName string) (HeartbeatResponse, error) {
	return c.prepareHeartbeatResponse(now, args, ourSetName)
}

// ProcessHeartbeatResponse implements processHeartbeatResponse(now, rtt, target, result).
func (c *Coordinator) ProcessHeartbeatResponse(now time.Time, rtt time.Duration, targetIdx int, result HeartbeatResult) HeartbeatResponseAction {
	return c.processHeartbeatResponse(now, rtt, targetIdx, result)
}

// CheckMemberTimeouts implements checkMemberTimeouts(now).
func (c *Coordinator) CheckMemberTimeouts(now time.Time) HeartbeatResponseAction {
	return c.checkMemberTimeouts(now)
}

// RestartHeartbeats implements restartHeartbeats().
func (c *Coordinator) RestartHeartbeats(now time.Time) {
	c.restartHeartbeats(now)
}

// SetFollowerMode implements setFollowerMode(newMode).
func (c *Coordinator) SetFollowerMode(newMode MemberState) {
	c.setFollowerMode(newMode)
}

// AdjustMaintenanceCountBy implements adjustMaintenanceCountBy(n).
func (c *Coordinator) AdjustMaintenanceCountBy(n int) {
	c.adjustMaintenanceCountBy(n)
}

// CompleteTransitionToPrimary implements completeTransitionToPrimary(firstOpTimeOfTerm).
func (c *Coordinator) CompleteTransitionToPrimary(firstOpTimeOfTerm optime.OpTime) {
	c.completeTransitionToPrimary(firstOpTimeOfTerm)
}

// IsSteppingDown implements isSteppingDown().
func (c *Coordinator) IsSteppingDown() bool {
	return c.isSteppingDown()
}

// PrepareForStepDownAttempt implements prepareForStepDownAttempt().
func (c *Coordinator) PrepareForStepDownAttempt() error {
	return c.prepareForStepDownAttempt()
}

// IsSafeToStepDown implements isSafeToStepDown().
func (c *Coordinator) IsSafeToStepDown() bool {
	return c.isSafeToStepDown()
}

// AttemptStepDown implements attemptStepDown(termAtStart, now, waitUntil, stepDownUntil, force).
func (c *Coordinator) AttemptStepDown(termAtStart int64, now, waitUntil, stepDownUntil time.Time, force bool) (bool, error) {
	return c.attemptStepDown(termAtStart, now, waitUntil, stepDownUntil, force)
}

// AbortAttemptedStepDownIfNeeded implements abortAttemptedStepDownIfNeeded().
func (c *Coordinator) AbortAttemptedStepDownIfNeeded() {
	c.abortAttemptedStepDownIfNeeded()
}

// PrepareForUnconditionalStepDown implements prepareForUnconditionalStepDown().
func (c *Coordinator) PrepareForUnconditionalStepDown() bool {
	return c.prepareForUnconditionalStepDown()
}

// FinishUnconditionalStepDown implements finishUnconditionalStepDown(now).
func (c *Coordinator) FinishUnconditionalStepDown(now time.Time) {
	c.finishUnconditionalStepDown(now)
}

// SetForceSyncSourceIndex implements setForceSyncSourceIndex(idx).
func (c *Coordinator) SetForceSyncSourceIndex(idx int) {
	c.setForceSyncSourceIndex(idx)
}

// GetSyncSourceAddress implements getSyncSourceAddress().
func (c *Coordinator) GetSyncSourceAddress() string {
	return c.getSyncSourceAddress()
}

// BlacklistSyncSource implements blacklistSyncSource(host, until).
func (c *Coordinator) BlacklistSyncSource(host string, until time.Time) {
	c.blacklistSyncSource(host, until)
}

// UnblacklistSyncSource implements unblacklistSyncSource(host, now).
func (c *Coordinator) UnblacklistSyncSource(host string, now time.Time) {
	c.unblacklistSyncSource(host, now)
}

// ClearSyncSourceBlacklist implements clearSyncSourceBlacklist().
func (c *Coordinator) ClearSyncSourceBlacklist() {
	c.clearSyncSourceBlacklist()
}

// IsBlacklisted implements isBlacklisted(host, now).
func (c *Coordinator) IsBlacklisted(host string, now time.Time) bool {
	return c.isBlacklisted(host, now)
}

// ChooseNewSyncSource implements chooseNewSyncSource(now, myLastFetched, pref).
func (c *Coordinator) ChooseNewSyncSource(now time.Time, myLastFetched optime.OpTime, pref ChainingPreference) (string, bool) {
	return c.chooseNewSyncSource(now, myLastFetched, pref)
}

// AcceptSyncSource implements acceptSyncSource(idx).
func (c *Coordinator) AcceptSyncSource(idx int) string {
	return c.acceptSyncSource(idx)
}

// ShouldChangeSyncSource implements shouldChangeSyncSource(current, replMetadata, oqMetadata, now).
func (c *Coordinator) ShouldChangeSyncSource(current string, replMetadata ReplSetMetadata, oqMetadata OplogQueryMetadata, now time.Time) bool {
	return c.shouldChangeSyncSource(current, replMetadata, oqMetadata, now)
}

// UpdateLastCommittedOpTime implements updateLastCommittedOpTime().
func (c *Coordinator) UpdateLastCommittedOpTime() bool {
	return c.updateLastCommittedOpTime()
}

// AdvanceLastCommittedOpTime implements advanceLastCommittedOpTime(op).
func (c *Coordinator) AdvanceLastCommittedOpTime(op optime.OpTime) bool {
	return c.advanceLastCommittedOpTime(op)
}

// PrepareStatusResponse implements prepareStatusResponse(args).
func (c *Coordinator) PrepareStatusResponse(args ReplSetStatusArgs) ReplSetStatusResponse {
	return c.prepareStatusResponse(args)
}

// FillIsMasterForReplSet implements fillIsMasterForReplSet().
func (c *Coordinator) FillIsMasterForReplSet() IsMasterResponse {
	return c.fillIsMasterForReplSet()
}

// PrepareReplSetUpdatePositionCommand implements prepareReplSetUpdatePositionCommand().
func (c *Coordinator) PrepareReplSetUpdatePositionCommand() []UpdatePositionEntry {
	return c.prepareReplSetUpdatePositionCommand()
}

// PrepareReplSetMetadata implements prepareReplSetMetadata().
func (c *Coordinator) PrepareReplSetMetadata() ReplSetMetadataResponse {
	return c.prepareReplSetMetadata()
}

// PrepareOplogQueryMetadata implements prepareOplogQueryMetadata().
func (c *Coordinator) PrepareOplogQueryMetadata() OplogQueryMetadataResponse {
	return c.prepareOplogQueryMetadata()
}

// SummarizeAsHtml implements summarizeAsHtml().
func (c *Coordinator) SummarizeAsHtml() string {
	return c.summarizeAsHtml()
}

// PrepareSyncFromResponse implements prepareSyncFromResponse(targetHost).
func (c *Coordinator) PrepareSyncFromResponse(targetHost string) (SyncFromResponse, error) {
	return c.prepareSyncFromResponse(targetHost)
}

// PrepareFreezeResponse implements prepareFreezeResponse(now, secs).
func (c *Coordinator) PrepareFreezeResponse(now time.Time, secs time.Duration) (PrepareFreezeResponseResult, error) {
	return c.prepareFreezeResponse(now, secs)
}
