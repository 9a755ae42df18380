package runtime

import (
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/hieutrieu/replset/encoding"
	"github.com/hieutrieu/replset/topology"
)

// NatsHeartbeatTransport sends heartbeat requests as NATS request/reply
// exchanges, one subject per target member. Payloads are msgpack-encoded
// and transparently zstd-compressed once they cross compressAboveBytes.
type NatsHeartbeatTransport struct {
	conn               *nats.Conn
	subjectPrefix      string
	compressAboveBytes int
	encoder            *zstd.Encoder
	decoder            *zstd.Decoder
}

// NewNatsHeartbeatTransport connects to url and returns a transport ready
// to send heartbeats. subjectPrefix namespaces the request subjects so
// multiple replica sets can share one NATS deployment.
func NewNatsHeartbeatTransport(url, subjectPrefix string, compressAboveBytes int) (*NatsHeartbeatTransport, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to build zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to build zstd decoder: %w", err)
	}

	return &NatsHeartbeatTransport{
		conn:               conn,
		subjectPrefix:      subjectPrefix,
		compressAboveBytes: compressAboveBytes,
		encoder:            enc,
		decoder:            dec,
	}, nil
}

func (t *NatsHeartbeatTransport) subjectFor(host string) string {
	return t.subjectPrefix + ".heartbeat." + host
}

func (t *NatsHeartbeatTransport) voteSubjectFor(host string) string {
	return t.subjectPrefix + ".requestvotes." + host
}

const compressionFlagByte = 0x01
const plainFlagByte = 0x00

func (t *NatsHeartbeatTransport) encodeFrame(v interface{}) ([]byte, error) {
	raw, err := encoding.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal heartbeat payload: %w", err)
	}
	if len(raw) <= t.compressAboveBytes {
		return append([]byte{plainFlagByte}, raw...), nil
	}
	compressed := t.encoder.EncodeAll(raw, nil)
	return append([]byte{compressionFlagByte}, compressed...), nil
}

func (t *NatsHeartbeatTransport) decodeFrame(frame []byte, v interface{}) error {
	if len(frame) == 0 {
		return fmt.Errorf("empty heartbeat frame")
	}
	body := frame[1:]
	if frame[0] == compressionFlagByte {
		decompressed, err := t.decoder.DecodeAll(body, nil)
		if err != nil {
			return fmt.Errorf("decompress heartbeat payload: %w", err)
		}
		body = decompressed
	}
	return encoding.Unmarshal(body, v)
}

// Send issues a NATS heartbeat request to host and waits up to timeout for
// a reply. Node adapts it to the HeartbeatSender shape fanOutHeartbeats
// takes by mapping a member index to its host.
func (t *NatsHeartbeatTransport) Send(host string, args topology.HeartbeatArgs, timeout time.Duration) (*topology.HeartbeatResponse, time.Duration, error) {
	payload, err := t.encodeFrame(args)
	if err != nil {
		return nil, 0, err
	}

	start := time.Now()
	msg, err := t.conn.Request(t.subjectFor(host), payload, timeout)
	rtt := time.Since(start)
	if err != nil {
		return nil, rtt, fmt.Errorf("heartbeat request to %s: %w", host, err)
	}

	var resp topology.HeartbeatResponse
	if err := t.decodeFrame(msg.Data, &resp); err != nil {
		return nil, rtt, err
	}
	return &resp, rtt, nil
}

// ServeHeartbeats subscribes to this node's own heartbeat subject and
// answers inbound requests with handle, which should wrap
// topology.Coordinator.prepareHeartbeatResponse under the owning lock.
func (t *NatsHeartbeatTransport) ServeHeartbeats(selfHost string, handle func(topology.HeartbeatArgs) (topology.HeartbeatResponse, error)) (*nats.Subscription, error) {
	subject := t.subjectFor(selfHost)
	sub, err := t.conn.Subscribe(subject, func(msg *nats.Msg) {
		var args topology.HeartbeatArgs
		if err := t.decodeFrame(msg.Data, &args); err != nil {
			log.Error().Err(err).Str("subject", subject).Msg("failed to decode inbound heartbeat")
			return
		}

		resp, err := handle(args)
		if err != nil {
			log.Warn().Err(err).Str("subject", subject).Msg("heartbeat handler rejected request")
			return
		}

		frame, err := t.encodeFrame(resp)
		if err != nil {
			log.Error().Err(err).Str("subject", subject).Msg("failed to encode heartbeat response")
			return
		}
		if err := msg.Respond(frame); err != nil {
			log.Error().Err(err).Str("subject", subject).Msg("failed to respond to heartbeat request")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	return sub, nil
}

// RequestVote sends a ReplSetRequestVotes RPC to host and waits up to
// timeout for a reply.
func (t *NatsHeartbeatTransport) RequestVote(host string, args topology.RequestVotesArgs, timeout time.Duration) (*topology.RequestVotesResponse, error) {
	payload, err := t.encodeFrame(args)
	if err != nil {
		return nil, err
	}

	msg, err := t.conn.Request(t.voteSubjectFor(host), payload, timeout)
	if err != nil {
		return nil, fmt.Errorf("request-votes request to %s: %w", host, err)
	}

	var resp topology.RequestVotesResponse
	if err := t.decodeFrame(msg.Data, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ServeRequestVotes subscribes to this node's own ReplSetRequestVotes
// subject and answers inbound requests with handle, which should wrap
// topology.Coordinator.processReplSetRequestVotes under the owning lock.
func (t *NatsHeartbeatTransport) ServeRequestVotes(selfHost string, handle func(topology.RequestVotesArgs) topology.RequestVotesResponse) (*nats.Subscription, error) {
	subject := t.voteSubjectFor(selfHost)
	sub, err := t.conn.Subscribe(subject, func(msg *nats.Msg) {
		var args topology.RequestVotesArgs
		if err := t.decodeFrame(msg.Data, &args); err != nil {
			log.Error().Err(err).Str("subject", subject).Msg("failed to decode inbound vote request")
			return
		}

		resp := handle(args)

		frame, err := t.encodeFrame(resp)
		if err != nil {
			log.Error().Err(err).Str("subject", subject).Msg("failed to encode vote response")
			return
		}
		if err := msg.Respond(frame); err != nil {
			log.Error().Err(err).Str("subject", subject).Msg("failed to respond to vote request")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	return sub, nil
}

// Close releases the zstd decoder and the underlying NATS connection.
func (t *NatsHeartbeatTransport) Close() {
	t.decoder.Close()
	if t.conn != nil {
		t.conn.Close()
	}
}
