package topology

import (
	"time"

	"github.com/hieutrieu/replset/optime"
)

// ElectionCheckReason explains why checkShouldStandForElection refused, or
// ElectionCheckOK if standing for election is currently legal.
type ElectionCheckReason int

const (
	ElectionCheckOK ElectionCheckReason = iota
	ElectionCheckNotSecondary
	ElectionCheckInMaintenance
	ElectionCheckFrozen
	ElectionCheckNotInitialized
	ElectionCheckNotAVoter
	ElectionCheckNotElectable
	ElectionCheckPrimaryExists
	ElectionCheckNotFresh
)

func (r ElectionCheckReason) String() string {
	switch r {
	case ElectionCheckOK:
		return "ok"
	case ElectionCheckNotSecondary:
		return "not secondary"
	case ElectionCheckInMaintenance:
		return "in maintenance mode"
	case ElectionCheckFrozen:
		return "election sleep period in effect"
	case ElectionCheckNotInitialized:
		return "no configuration installed"
	case ElectionCheckNotAVoter:
		return "not a voting member"
	case ElectionCheckNotElectable:
		return "priority is zero or an arbiter"
	case ElectionCheckPrimaryExists:
		return "a primary is already known"
	case ElectionCheckNotFresh:
		return "lagging the highest observed applied opTime"
	default:
		return "unknown"
	}
}

// freshnessThreshold bounds how far our last applied opTime may trail the
// highest observed applied opTime across the registry while still
// standing for ordinary (non-relaxed) election.
const freshnessThreshold = 10 * time.Second

// checkShouldStandForElection implements checkShouldStandForElection(now).
func (c *Coordinator) checkShouldStandForElection(now time.Time) ElectionCheckReason {
	return c.checkShouldStandForElectionImpl(now, false)
}

func (c *Coordinator) checkShouldStandForElectionImpl(now time.Time, relaxedFreshness bool) ElectionCheckReason {
	if c.role != RoleFollower {
		return ElectionCheckNotSecondary
	}
	if c.memberState() != MemberStateSecondary {
		return ElectionCheckNotSecondary
	}
	if c.maintenanceCount > 0 {
		return ElectionCheckInMaintenance
	}
	if now.Before(c.electionSleepUntil) {
		return ElectionCheckFrozen
	}
	if !c.config.IsInstalled() {
		return ElectionCheckNotInitialized
	}
	self, ok := c.config.Self()
	if !ok || !self.IsVoter() {
		return ElectionCheckNotAVoter
	}
	if !self.IsElectable() {
		return ElectionCheckNotElectable
	}
	if c.currentPrimaryIndex != NoSelfIndex {
		return ElectionCheckPrimaryExists
	}
	if !relaxedFreshness {
		highest := c.highestObservedAppliedOpTime()
		mine := c.registry.getMyLastAppliedOpTime()
		if optime.Less(mine, highest) && highest.Timestamp.Sub(mine.Timestamp) > freshnessThreshold {
			return ElectionCheckNotFresh
		}
	}
	return ElectionCheckOK
}

func (c *Coordinator) highestObservedAppliedOpTime() optime.OpTime {
	best := optime.Zero
	for i := range c.registry.members {
		best = optime.Max(best, c.registry.members[i].LastAppliedOpTime)
	}
	return best
}

// becomeCandidateIfElectable implements becomeCandidateIfElectable(now,
// reason). On success transitions Role to candidate and returns
// ElectionCheckOK.
func (c *Coordinator) becomeCandidateIfElectable(now time.Time, reason StartElectionReason) ElectionCheckReason {
	check := c.checkShouldStandForElectionImpl(now, reason.relaxedFreshness())
	if check != ElectionCheckOK {
		return check
	}
	c.role = RoleCandidate
	return ElectionCheckOK
}

// voteForMyself implements voteForMyself / voteForMyselfV1: in candidate
// role, records a vote for self in (currentTerm, selfId). Fails if
// LastVote.Term == currentTerm and VotedFor != self.
func (c *Coordinator) voteForMyself(now time.Time) bool {
	Precondition(c.role == RoleCandidate, "voteForMyself: role is %s, not candidate", c.role)

	self, ok := c.config.Self()
	Precondition(ok, "voteForMyself: self is not a member of the installed configuration")

	if c.lastVote.Term == c.currentTerm && c.lastVote.VotedFor != self.ID {
		return false
	}
	c.lastVote = LastVote{Term: c.currentTerm, VotedFor: self.ID}
	return true
}

// RequestVotesArgs is the logical content of a ReplSetRequestVotes RPC
// (protocol v1).
type RequestVotesArgs struct {
	SetName         string
	Term            int64
	CandidateID     int
	ConfigVersion   int64
	LastCommittedOp optime.OpTime
	DryRun          bool
}

// RequestVotesResponse is the reply to a ReplSetRequestVotes RPC.
type RequestVotesResponse struct {
	VoteGranted bool
	Term        int64
	Reason      string
}

// processReplSetRequestVotes implements processReplSetRequestVotes(args) ->
// response. Grants a vote iff the set name matches, args.Term >= ourTerm,
// args.Term > LastVote.Term (or args.Term == LastVote.Term and
// LastVote.VotedFor == args.CandidateID), and args.LastCommittedOp is >=
// our lastApplied. Dry-run votes never mutate LastVote.
func (c *Coordinator) processReplSetRequestVotes(args RequestVotesArgs) RequestVotesResponse {
	if c.config.IsInstalled() && args.SetName != c.config.SetName {
		return RequestVotesResponse{VoteGranted: false, Term: c.currentTerm, Reason: "replica set name mismatch"}
	}
	if args.Term < c.currentTerm {
		return RequestVotesResponse{VoteGranted: false, Term: c.currentTerm, Reason: "stale term"}
	}

	alreadyVotedThisTerm := args.Term == c.lastVote.Term && c.lastVote.VotedFor != args.CandidateID
	if alreadyVotedThisTerm {
		return RequestVotesResponse{VoteGranted: false, Term: c.currentTerm, Reason: "already voted for a different candidate this term"}
	}

	if optime.Less(args.LastCommittedOp, c.registry.getMyLastAppliedOpTime()) {
		return RequestVotesResponse{VoteGranted: false, Term: c.currentTerm, Reason: "candidate is behind on committed optime"}
	}

	if !args.DryRun {
		if args.Term > c.currentTerm {
			c.updateTerm(args.Term)
		}
		c.lastVote = LastVote{Term: args.Term, VotedFor: args.CandidateID}
	}

	return RequestVotesResponse{VoteGranted: true, Term: c.currentTerm}
}

// FreshArgs is the legacy (protocol v0) freshness-check request.
type FreshArgs struct {
	SetName       string
	ConfigVersion int64
	OpTime        optime.OpTime
	CandidateID   int
}

// FreshResponse is the legacy freshness-check reply.
type FreshResponse struct {
	FresherOpTime optime.OpTime
	Veto          bool
	Reason        string
}

// prepareFreshResponse implements prepareFreshResponse (legacy v0).
func (c *Coordinator) prepareFreshResponse(args FreshArgs) FreshResponse {
	mine := c.registry.getMyLastAppliedOpTime()

	if args.ConfigVersion != c.config.Version {
		return FreshResponse{FresherOpTime: mine, Veto: true, Reason: "config version stale"}
	}
	if _, ok := c.config.Self(); !ok {
		return FreshResponse{FresherOpTime: mine, Veto: true, Reason: "not in config"}
	}
	candidateIdx := c.config.MemberByID(args.CandidateID)
	if candidateIdx < 0 {
		return FreshResponse{FresherOpTime: mine, Veto: true, Reason: "not in config"}
	}
	candidateCfg := c.config.Members[candidateIdx]
	self, _ := c.config.Self()
	if candidateCfg.Priority < self.Priority {
		return FreshResponse{FresherOpTime: mine, Veto: true, Reason: "priority too low"}
	}
	if optime.Equal(args.OpTime, mine) && candidateCfg.ID > self.ID {
		return FreshResponse{FresherOpTime: mine, Veto: true, Reason: "tied and lower id"}
	}

	return FreshResponse{FresherOpTime: mine, Veto: false}
}

// ElectArgs is the legacy (protocol v0) elect-vote request.
type ElectArgs struct {
	SetName       string
	ConfigVersion int64
	OpTime        optime.OpTime
	CandidateID   int
	Round         int64 // the 60-second election window the candidate is running
}

// ElectResponse is the legacy elect-vote reply.
type ElectResponse struct {
	VoteGranted bool
	Reason      string
}

// electionWindow is the legacy v0 once-per-window voting restriction.
const electionWindow = 60 * time.Second

// prepareElectResponse implements prepareElectResponse (legacy v0): grants
// a vote-weight to the candidate iff the freshness/identity constraints of
// prepareFreshResponse hold and we have not already voted in the current
// 60-second election window.
func (c *Coordinator) prepareElectResponse(now time.Time, args ElectArgs) ElectResponse {
	fresh := c.prepareFreshResponse(FreshArgs{
		SetName:       args.SetName,
		ConfigVersion: args.ConfigVersion,
		OpTime:        args.OpTime,
		CandidateID:   args.CandidateID,
	})
	if fresh.Veto {
		return ElectResponse{VoteGranted: false, Reason: fresh.Reason}
	}

	if now.Before(c.electionSleepUntil) {
		return ElectResponse{VoteGranted: false, Reason: "already voted in the current election window"}
	}
	c.electionSleepUntil = now.Add(electionWindow)

	return ElectResponse{VoteGranted: true}
}

// processWinElection implements processWinElection(id, opTime). Requires
// Role = candidate; sets Role = leader, LeaderMode = leader-elect,
// electionId, electionOpTime, currentPrimaryIndex = selfIndex.
func (c *Coordinator) processWinElection(electionID string, opTime optime.OpTime) {
	Precondition(c.role == RoleCandidate, "processWinElection: role is %s, not candidate", c.role)

	c.role = RoleLeader
	c.leaderMode = LeaderModeLeaderElect
	c.electionID = electionID
	c.electionOpTime = opTime
	c.currentPrimaryIndex = c.config.SelfIndex
}

// processLoseElection implements processLoseElection(). Requires Role =
// candidate; returns to follower.
func (c *Coordinator) processLoseElection() {
	Precondition(c.role == RoleCandidate, "processLoseElection: role is %s, not candidate", c.role)
	c.role = RoleFollower
	c.followerMode = MemberStateSecondary
}

// becomeCandidateIfStepdownPeriodOverAndSingleNodeSet implements the
// single-node replica set re-election path: a 1-voter set must not stay
// parked in follower mode forever after a freeze/stepdown expires.
func (c *Coordinator) becomeCandidateIfStepdownPeriodOverAndSingleNodeSet(now time.Time) bool {
	if c.config.VoterWeight() != 1 || len(c.config.Members) != 1 {
		return false
	}
	check := c.becomeCandidateIfElectable(now, ReasonSingleNodePromotion)
	return check == ElectionCheckOK
}
