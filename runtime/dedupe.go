package runtime

import (
	"encoding/binary"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	cuckoo "github.com/linvon/cuckoo-filter"
	"github.com/rs/zerolog/log"
)

const (
	voteReplyBucketSize      = 4
	voteReplyFingerprintSize = 16
	voteReplyNumBuckets      = 4096 // 16K-tuple capacity, comfortably above any one term's fan-out
)

// voteReplyDedupe guards an election's vote tally against double-counting
// a RequestVotes reply that NATS redelivered after a slow ack. A cuckoo
// filter is the right shape here: membership-only, bounded memory,
// supports deleting a term's entries in bulk once the election concludes.
type voteReplyDedupe struct {
	mu     sync.Mutex
	filter *cuckoo.Filter
}

func newVoteReplyDedupe() *voteReplyDedupe {
	return &voteReplyDedupe{
		filter: cuckoo.NewFilter(voteReplyBucketSize, voteReplyFingerprintSize,
			voteReplyNumBuckets, cuckoo.TableTypePacked),
	}
}

func voteReplyKey(term int64, voterID int) []byte {
	buf := make([]byte, 12)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(term))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(voterID))
	return buf
}

// Seen reports whether a reply from voterID for term has already been
// tallied, and records it if not.
func (d *voteReplyDedupe) Seen(term int64, voterID int) bool {
	key := voteReplyKey(term, voterID)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.filter.Contain(key) {
		return true
	}
	if !d.filter.Add(key) {
		log.Warn().Int64("term", term).Int("voter", voterID).Msg("vote reply dedupe filter full, counting anyway")
	}
	return false
}

// ForgetTerm drops every reply recorded for a concluded term so the
// filter doesn't accumulate stale entries across elections.
func (d *voteReplyDedupe) ForgetTerm(term int64, voterIDs []int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, id := range voterIDs {
		d.filter.Delete(voteReplyKey(term, id))
	}
}

// heartbeatFingerprint is a compact summary of a heartbeat reply used to
// recognize an exact-duplicate redelivery without re-running
// processHeartbeatResponse, which (while idempotent) still touches
// telemetry gauges we'd rather not double-tick.
type heartbeatFingerprint struct {
	term    int64
	rbid    int64
	applied uint64
}

// heartbeatSeenCache is a small bounded cache, one entry per member,
// recording the last heartbeat fingerprint processed from that member.
type heartbeatSeenCache struct {
	cache *lru.Cache[int, heartbeatFingerprint]
}

func newHeartbeatSeenCache(members int) (*heartbeatSeenCache, error) {
	size := members
	if size < 1 {
		size = 1
	}
	c, err := lru.New[int, heartbeatFingerprint](size)
	if err != nil {
		return nil, err
	}
	return &heartbeatSeenCache{cache: c}, nil
}

// SeenAndRecord reports whether this exact fingerprint was already the
// last one recorded for memberIdx, recording it either way.
func (h *heartbeatSeenCache) SeenAndRecord(memberIdx int, fp heartbeatFingerprint) bool {
	prev, ok := h.cache.Get(memberIdx)
	h.cache.Add(memberIdx, fp)
	return ok && prev == fp
}
