package runtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hieutrieu/replset/telemetry"
	"github.com/hieutrieu/replset/topology"
)

// Node is the lock-holding runtime wrapper around a topology.Coordinator.
// Every Coordinator entry point assumes its caller already holds the
// exclusive lock described in spec.md §5; Node is that caller. It fans
// heartbeats and vote requests out over a NatsHeartbeatTransport, applies
// the HeartbeatResponseAction the coordinator returns, and publishes role/
// term/commit changes on a Hub for anything downstream (admin SSE, a
// readiness probe) to observe.
type Node struct {
	mu sync.Mutex

	coord         *topology.Coordinator
	setName       string
	transport     *NatsHeartbeatTransport
	hub           *Hub
	healthSrv     *HealthServer
	lastVoteStore *LastVoteStore

	voteDedupe *voteReplyDedupe
	hbSeen     *heartbeatSeenCache

	lastRole topology.Role
}

// NewNode wires a Coordinator to its transport, event hub, and health
// surface. setName is used to prepare heartbeat requests before any
// configuration is installed (mirrors prepareHeartbeatRequest's
// ourSetName parameter).
func NewNode(coord *topology.Coordinator, setName string, transport *NatsHeartbeatTransport, hub *Hub, healthSrv *HealthServer, lastVoteStore *LastVoteStore) *Node {
	hbSeen, err := newHeartbeatSeenCache(defaultHeartbeatSeenCacheSize)
	if err != nil {
		// Only fails on a non-positive size, which defaultHeartbeatSeenCacheSize never is.
		panic(err)
	}
	return &Node{
		coord:         coord,
		setName:       setName,
		transport:     transport,
		hub:           hub,
		healthSrv:     healthSrv,
		lastVoteStore: lastVoteStore,
		voteDedupe:    newVoteReplyDedupe(),
		hbSeen:        hbSeen,
		lastRole:      coord.Role(),
	}
}

// persistLastVoteLocked must be called with n.mu held, after a vote grant
// or self-vote actually mutated the coordinator's LastVote. Spec.md's
// persistence contract requires this to happen before the grant is acted
// on any further — before a vote reply is sent, and before a self-vote
// proceeds into vote requests to peers.
func (n *Node) persistLastVoteLocked() {
	if err := n.lastVoteStore.Persist(n.coord.GetLastVote()); err != nil {
		log.Error().Err(err).Msg("failed to persist last vote")
	}
}

// defaultHeartbeatSeenCacheSize comfortably covers any replica set this
// runtime targets; the cache just needs one slot per peer.
const defaultHeartbeatSeenCacheSize = 64

// --- admin.Service ---

// Status implements admin.Service.
func (n *Node) Status() topology.ReplSetStatusResponse {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.coord.PrepareStatusResponse(topology.ReplSetStatusArgs{Now: time.Now()})
}

// IsMaster implements admin.Service.
func (n *Node) IsMaster() topology.IsMasterResponse {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.coord.FillIsMasterForReplSet()
}

// Config implements admin.Service.
func (n *Node) Config() *topology.ConfigSnapshot {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.coord.Config()
}

// SummarizeAsHtml implements admin.Service.
func (n *Node) SummarizeAsHtml() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.coord.SummarizeAsHtml()
}

// SyncFrom implements admin.Service.
func (n *Node) SyncFrom(host string) (topology.SyncFromResponse, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.coord.PrepareSyncFromResponse(host)
}

// Freeze implements admin.Service.
func (n *Node) Freeze(secs time.Duration) (topology.PrepareFreezeResponseResult, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.coord.PrepareFreezeResponse(time.Now(), secs)
}

// StepDown implements admin.Service: drives an attempted stepdown to
// completion or abandonment, calling AttemptStepDown every 100ms until it
// reports done (after waitFor elapses, force, if set, steps down without a
// caught-up secondary), it returns an error (e.g. stepDownFor is reached
// with no caught-up secondary), or ctx is cancelled.
func (n *Node) StepDown(ctx context.Context, waitFor, stepDownFor time.Duration, force bool) error {
	n.mu.Lock()
	termAtStart := n.coord.GetTerm()
	if err := n.coord.PrepareForStepDownAttempt(); err != nil {
		n.mu.Unlock()
		return err
	}
	n.mu.Unlock()

	now := time.Now()
	waitUntil := now.Add(waitFor)
	stepDownUntil := now.Add(stepDownFor)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			n.mu.Lock()
			n.coord.AbortAttemptedStepDownIfNeeded()
			n.mu.Unlock()
			return ctx.Err()
		case t := <-ticker.C:
			n.mu.Lock()
			done, err := n.coord.AttemptStepDown(termAtStart, t, waitUntil, stepDownUntil, force)
			if done {
				n.publishRoleChange()
			}
			n.mu.Unlock()
			if err != nil {
				telemetry.StepDownAttemptsFailedTotal.Inc()
				return err
			}
			if done {
				telemetry.StepDownsTotal.With("attempted").Inc()
				return nil
			}
		}
	}
}

// --- heartbeat loop ---

// RunHeartbeats blocks, dispatching one heartbeat round per
// HeartbeatInterval until ctx is cancelled.
func (n *Node) RunHeartbeats(ctx context.Context) {
	n.mu.Lock()
	interval := 2 * time.Second
	if cfg := n.coord.Config(); cfg.IsInstalled() {
		interval = cfg.HeartbeatInterval
	}
	n.mu.Unlock()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.dispatchHeartbeatRound(ctx)
		}
	}
}

func (n *Node) dispatchHeartbeatRound(ctx context.Context) {
	n.mu.Lock()
	cfg := n.coord.Config()
	if !cfg.IsInstalled() {
		n.mu.Unlock()
		return
	}

	now := time.Now()
	ourFingerprint := ConfigFingerprint(cfg)
	targets := make([]int, 0, len(cfg.Members))
	argsByIdx := make(map[int]topology.HeartbeatArgs, len(cfg.Members))
	timeoutByIdx := make(map[int]time.Duration, len(cfg.Members))
	hostByIdx := make(map[int]string, len(cfg.Members))

	for i, m := range cfg.Members {
		if i == cfg.SelfIndex {
			continue
		}
		args, timeout := n.coord.PrepareHeartbeatRequest(now, n.setName, i)
		args.ConfigFingerprint = ourFingerprint
		targets = append(targets, i)
		argsByIdx[i] = args
		timeoutByIdx[i] = timeout
		hostByIdx[i] = m.Host
	}
	n.mu.Unlock()

	sender := func(ctx context.Context, idx int, args topology.HeartbeatArgs, timeout time.Duration) (*topology.HeartbeatResponse, time.Duration, error) {
		return n.transport.Send(hostByIdx[idx], args, timeout)
	}
	outcomes := fanOutHeartbeats(ctx, targets, argsByIdx, timeoutByIdx, sender)

	n.mu.Lock()
	defer n.mu.Unlock()

	processAt := time.Now()
	for idx, outcome := range outcomes {
		telemetry.HeartbeatRTTSeconds.Observe(outcome.RTT.Seconds())
		result := "ok"
		if outcome.Result.Err != nil {
			result = "error"
		}
		telemetry.HeartbeatsTotal.With(result).Inc()

		if resp := outcome.Result.Response; resp != nil {
			fp := heartbeatFingerprint{
				term:    resp.Term,
				rbid:    resp.RBID,
				applied: uint64(resp.AppliedOpTime.Timestamp.UnixNano()),
			}
			if n.hbSeen.SeenAndRecord(idx, fp) {
				telemetry.HeartbeatsTotal.With("duplicate").Inc()
				continue
			}
			if resp.ConfigVersion == cfg.Version && resp.ConfigFingerprint != 0 &&
				resp.ConfigFingerprint != ourFingerprint {
				log.Warn().Int("member_idx", idx).Int64("config_version", resp.ConfigVersion).
					Msg("peer reports the same config version but a different config fingerprint, possible split-brain configuration")
			}
		}

		action := n.coord.ProcessHeartbeatResponse(processAt, outcome.RTT, idx, outcome.Result)
		n.applyActionLocked(ctx, processAt, action)
	}

	timeoutAction := n.coord.CheckMemberTimeouts(processAt)
	n.applyActionLocked(ctx, processAt, timeoutAction)

	if n.coord.UpdateLastCommittedOpTime() {
		telemetry.CommitAdvancesTotal.Inc()
	}
}

// applyActionLocked must be called with n.mu held.
func (n *Node) applyActionLocked(ctx context.Context, now time.Time, action topology.HeartbeatResponseAction) {
	telemetry.HeartbeatActionsTotal.With(actionLabel(action.Kind)).Inc()

	switch action.Kind {
	case topology.ActionNoAction:
		return
	case topology.ActionStepDownSelf:
		if n.coord.PrepareForUnconditionalStepDown() {
			n.coord.FinishUnconditionalStepDown(now)
			telemetry.StepDownsTotal.With("unconditional").Inc()
			n.publishRoleChange()
		}
	case topology.ActionStepDownRemotePrimary:
		log.Warn().Int("remote_primary_idx", action.RemotePrimaryIdx).Msg("observed two primaries, stepping down the stale one is out of band")
	case topology.ActionReconfig:
		log.Info().Int64("config_version", action.ReconfigVersion).Msg("peer reports a newer configuration version, reconfig required")
	case topology.ActionStartElection:
		go n.runElection(ctx, topology.ReasonElectionTimeout)
	case topology.ActionPriorityTakeover:
		go n.runElection(ctx, topology.ReasonPriorityTakeover)
	case topology.ActionCatchupTakeover:
		go n.runElection(ctx, topology.ReasonCatchupTakeover)
	}
}

func actionLabel(kind topology.HeartbeatActionKind) string {
	switch kind {
	case topology.ActionNoAction:
		return "none"
	case topology.ActionStartElection:
		return "start_election"
	case topology.ActionStepDownSelf:
		return "step_down_self"
	case topology.ActionStepDownRemotePrimary:
		return "step_down_remote_primary"
	case topology.ActionReconfig:
		return "reconfig"
	case topology.ActionPriorityTakeover:
		return "priority_takeover"
	case topology.ActionCatchupTakeover:
		return "catchup_takeover"
	default:
		return "unknown"
	}
}

// --- election ---

// runElection drives one candidacy from becomeCandidateIfElectable through
// to processWinElection/processLoseElection, fanning ReplSetRequestVotes
// out to every voting peer.
func (n *Node) runElection(ctx context.Context, reason topology.StartElectionReason) {
	start := time.Now()

	n.mu.Lock()
	check := n.coord.BecomeCandidateIfElectable(start, reason)
	if check != topology.ElectionCheckOK {
		n.mu.Unlock()
		return
	}
	telemetry.ElectionsStartedTotal.With(electionReasonLabel(reason)).Inc()

	if result := n.coord.UpdateTerm(n.coord.GetTerm() + 1); result == topology.UpdateTermTriggerStepDown {
		// Role is always candidate here (becomeCandidateIfElectable just
		// succeeded), so a term bump can never observe an outgoing leader;
		// this guards the invariant rather than handling a reachable case.
		log.Error().Msg("unexpected step-down trigger while becoming a candidate")
	}
	granted := n.coord.VoteForMyself(start)
	if !granted {
		n.coord.ProcessLoseElection()
		n.mu.Unlock()
		return
	}
	n.persistLastVoteLocked()

	cfg := n.coord.Config()
	myApplied := n.coord.GetMyLastAppliedOpTime()
	currentTerm := n.coord.GetTerm()

	votersNeeded := cfg.MajorityVoteCount()
	selfWeight := 0
	if self, ok := cfg.Self(); ok {
		selfWeight = self.Votes
	}
	weight := selfWeight

	type target struct {
		idx  int
		host string
	}
	var targets []target
	for i, m := range cfg.Members {
		if i == cfg.SelfIndex || !m.IsVoter() {
			continue
		}
		targets = append(targets, target{idx: i, host: m.Host})
	}
	args := topology.RequestVotesArgs{
		SetName:         cfg.SetName,
		Term:            currentTerm,
		CandidateID:     mustSelfID(cfg),
		ConfigVersion:   cfg.Version,
		LastCommittedOp: myApplied,
	}
	timeout := cfg.ElectionTimeout
	n.mu.Unlock()

	type reply struct {
		idx  int
		resp *topology.RequestVotesResponse
	}
	replies := make(chan reply, len(targets))
	var wg sync.WaitGroup
	for _, t := range targets {
		wg.Add(1)
		go func(t target) {
			defer wg.Done()
			resp, err := n.transport.RequestVote(t.host, args, timeout)
			if err != nil {
				log.Debug().Err(err).Str("host", t.host).Msg("vote request failed")
				return
			}
			replies <- reply{idx: t.idx, resp: resp}
		}(t)
	}
	go func() { wg.Wait(); close(replies) }()

	won := false
	for r := range replies {
		if n.voteDedupe.Seen(currentTerm, r.idx) {
			continue
		}
		if r.resp.VoteGranted && r.resp.Term == currentTerm {
			n.mu.Lock()
			voterCfg := cfg.Members[r.idx]
			weight += voterCfg.Votes
			n.mu.Unlock()
		} else if r.resp.Term > currentTerm {
			n.mu.Lock()
			if n.coord.UpdateTerm(r.resp.Term) == topology.UpdateTermTriggerStepDown {
				n.coord.FinishUnconditionalStepDown(time.Now())
			}
			n.mu.Unlock()
		}
		if weight >= votersNeeded {
			won = true
			break
		}
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	voterIDs := make([]int, 0, len(targets))
	for _, t := range targets {
		voterIDs = append(voterIDs, t.idx)
	}
	n.voteDedupe.ForgetTerm(currentTerm, voterIDs)

	telemetry.ElectionDurationSeconds.Observe(time.Since(start).Seconds())

	if won {
		n.coord.ProcessWinElection(newElectionID(), myApplied)
		n.coord.CompleteTransitionToPrimary(myApplied)
		telemetry.ElectionsWonTotal.Inc()
	} else {
		n.coord.ProcessLoseElection()
		telemetry.ElectionsLostTotal.Inc()
	}
	n.publishRoleChange()
}

func electionReasonLabel(reason topology.StartElectionReason) string {
	switch reason {
	case topology.ReasonElectionTimeout:
		return "election_timeout"
	case topology.ReasonStepUpRequest:
		return "step_up_request"
	case topology.ReasonPriorityTakeover:
		return "priority_takeover"
	case topology.ReasonCatchupTakeover:
		return "catchup_takeover"
	case topology.ReasonSingleNodePromotion:
		return "single_node_promotion"
	default:
		return "unknown"
	}
}

func mustSelfID(cfg *topology.ConfigSnapshot) int {
	self, ok := cfg.Self()
	if !ok {
		return -1
	}
	return self.ID
}

// --- inbound RPC handlers, wired to the transport at startup ---

// HandleInboundHeartbeat answers a peer's heartbeat request.
func (n *Node) HandleInboundHeartbeat(args topology.HeartbeatArgs) (topology.HeartbeatResponse, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	resp, err := n.coord.PrepareHeartbeatResponse(time.Now(), args, n.setName)
	if err != nil {
		return resp, err
	}
	resp.ConfigFingerprint = ConfigFingerprint(n.coord.Config())
	return resp, nil
}

// HandleInboundRequestVote answers a peer's ReplSetRequestVotes RPC.
func (n *Node) HandleInboundRequestVote(args topology.RequestVotesArgs) topology.RequestVotesResponse {
	n.mu.Lock()
	defer n.mu.Unlock()
	resp := n.coord.ProcessReplSetRequestVotes(args)
	if resp.VoteGranted {
		telemetry.VotesGrantedTotal.Inc()
		if !args.DryRun {
			n.persistLastVoteLocked()
		}
	} else {
		telemetry.VotesRefusedTotal.With(resp.Reason).Inc()
	}
	return resp
}

// Serve registers the node's inbound heartbeat and vote handlers with its
// transport for selfHost.
func (n *Node) Serve(selfHost string) error {
	if _, err := n.transport.ServeHeartbeats(selfHost, n.HandleInboundHeartbeat); err != nil {
		return fmt.Errorf("serve heartbeats: %w", err)
	}
	if _, err := n.transport.ServeRequestVotes(selfHost, n.HandleInboundRequestVote); err != nil {
		return fmt.Errorf("serve request-votes: %w", err)
	}
	return nil
}

// --- events + metrics ---

// publishRoleChange must be called with n.mu held; publishes an
// EventRoleChanged notification if the reported role actually changed
// since the last call, and updates the health surface. The role/term
// gauges and the role_transitions_total counter are left to
// telemetry.StatusCollector, which polls MetricsProvider on its own
// cadence; this only needs to push what the poller can't observe
// between ticks.
func (n *Node) publishRoleChange() {
	newRole := n.coord.Role()
	from := n.lastRole
	n.lastRole = newRole

	state := n.coord.MemberState()

	if n.hub != nil && from != newRole {
		n.hub.Publish(RoleEvent{
			Kind: EventRoleChanged,
			Term: n.coord.GetTerm(),
			From: from.String(),
			To:   newRole.String(),
		})
	}
	if n.healthSrv != nil {
		n.healthSrv.SetCanServe("replset", state == topology.MemberStatePrimary || state == topology.MemberStateSecondary)
	}
}

// metricsSnapshot must be called with n.mu held; it builds the
// telemetry.StatusSnapshot the status collector polls for.
func (n *Node) metricsSnapshot() telemetry.StatusSnapshot {
	committed := n.coord.GetLastCommittedOpTime()
	snap := telemetry.StatusSnapshot{
		State:                   n.coord.MemberState().String(),
		Term:                    n.coord.GetTerm(),
		CanAcceptWrites:         n.coord.CanAcceptWrites(),
		MaintenanceCount:        n.coord.GetMaintenanceCount(),
		LastCommittedOpTimeSecs: committed.Timestamp.Unix(),
		LastCommittedOpTimeTerm: committed.Term,
	}

	cfg := n.coord.Config()
	if !cfg.IsInstalled() {
		return snap
	}
	for i := range cfg.Members {
		if i == cfg.SelfIndex {
			continue
		}
		md, err := n.coord.FindMemberDataByMemberID(cfg.Members[i].ID)
		if err != nil {
			continue
		}
		if md.Down {
			snap.MembersDown++
		} else {
			snap.MembersUp++
		}
	}
	return snap
}

// nodeMetricsProvider adapts Node to telemetry.StatusProvider: Node can't
// implement Status() telemetry.StatusSnapshot directly, since
// admin.Service already claims Status() topology.ReplSetStatusResponse.
type nodeMetricsProvider struct {
	node *Node
}

// Status implements telemetry.StatusProvider.
func (p nodeMetricsProvider) Status() telemetry.StatusSnapshot {
	p.node.mu.Lock()
	defer p.node.mu.Unlock()
	return p.node.metricsSnapshot()
}

// MetricsProvider returns the telemetry.StatusProvider a
// telemetry.StatusCollector should poll for this node.
func (n *Node) MetricsProvider() telemetry.StatusProvider {
	return nodeMetricsProvider{node: n}
}
