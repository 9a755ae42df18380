package runtime

import (
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/hieutrieu/replset/topology"
)

// ConfigFingerprint hashes the electable shape of a configuration snapshot
// (set name, version, and every member's id/host/votes/priority) so peers
// can cheaply compare "do we agree on the current config" without shipping
// or diffing the full member list on every heartbeat. dispatchHeartbeatRound
// stamps it onto outbound HeartbeatArgs and HandleInboundHeartbeat stamps it
// onto replies, so a ConfigVersion match that masks an actual member-set
// divergence still gets caught and logged.
func ConfigFingerprint(cfg *topology.ConfigSnapshot) uint64 {
	if cfg == nil || !cfg.IsInstalled() {
		return 0
	}

	var sb strings.Builder
	sb.WriteString(cfg.SetName)
	sb.WriteByte('|')
	sb.WriteString(strconv.FormatInt(cfg.Version, 10))

	members := make([]topology.MemberConfig, len(cfg.Members))
	copy(members, cfg.Members)
	sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })

	for _, m := range members {
		sb.WriteByte('|')
		sb.WriteString(strconv.Itoa(m.ID))
		sb.WriteByte(':')
		sb.WriteString(m.Host)
		sb.WriteByte(':')
		sb.WriteString(strconv.Itoa(m.Votes))
		sb.WriteByte(':')
		sb.WriteString(strconv.FormatFloat(m.Priority, 'f', -1, 64))
	}

	return xxhash.Sum64String(sb.String())
}
