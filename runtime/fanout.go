package runtime

import (
	"context"
	"time"

	future "github.com/jizhuozhi/go-future"

	"github.com/hieutrieu/replset/topology"
)

// HeartbeatSender issues one heartbeat RPC to the member at idx and
// returns its response, or an error if the exchange failed or timed out.
type HeartbeatSender func(ctx context.Context, idx int, args topology.HeartbeatArgs, timeout time.Duration) (*topology.HeartbeatResponse, time.Duration, error)

type heartbeatJob struct {
	idx     int
	started time.Time
	promise *future.Promise[heartbeatOutcome]
}

type heartbeatOutcome struct {
	response *topology.HeartbeatResponse
	rtt      time.Duration
}

// fanOutHeartbeats dispatches one heartbeat per target concurrently and
// blocks until every response (or error) has arrived, returning each
// outcome keyed by member index. Each send runs on its own goroutine; the
// promise/future pair collects results without the caller managing a
// WaitGroup or result channel directly.
func fanOutHeartbeats(ctx context.Context, targets []int, args map[int]topology.HeartbeatArgs, timeouts map[int]time.Duration, send HeartbeatSender) map[int]HeartbeatOutcome {
	jobs := make([]heartbeatJob, len(targets))
	for i, idx := range targets {
		p := future.NewPromise[heartbeatOutcome]()
		jobs[i] = heartbeatJob{idx: idx, started: time.Now(), promise: p}

		go func(idx int, p *future.Promise[heartbeatOutcome]) {
			resp, rtt, err := send(ctx, idx, args[idx], timeouts[idx])
			p.Set(heartbeatOutcome{response: resp, rtt: rtt}, err)
		}(idx, p)
	}

	results := make(map[int]HeartbeatOutcome, len(jobs))
	for _, j := range jobs {
		outcome, err := j.promise.Future().Get()
		results[j.idx] = HeartbeatOutcome{
			Result: topology.HeartbeatResult{Response: outcome.response, Err: err},
			RTT:    outcome.rtt,
		}
	}
	return results
}

// HeartbeatOutcome bundles a heartbeat's result with the measured
// round-trip time, for feeding into Coordinator.processHeartbeatResponse.
type HeartbeatOutcome struct {
	Result topology.HeartbeatResult
	RTT    time.Duration
}
