// Package cfg loads and validates the on-disk configuration for a replset
// node. Parsing and validation happen entirely here; the topology package
// never sees a TOML file, only the ConfigSnapshot that
// runtime.BuildConfigSnapshot builds from this package's Configuration.
package cfg

import (
	"flag"
	"fmt"
	"hash/fnv"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/denisbrodbeck/machineid"
	"github.com/rs/zerolog/log"
)

// MemberConfiguration describes one member of the replica set as parsed
// from file, before it is turned into a topology.MemberConfig.
type MemberConfiguration struct {
	ID           int               `toml:"id"`
	Host         string            `toml:"host"`
	Priority     float64           `toml:"priority"`
	Votes        int               `toml:"votes"`
	Tags         map[string]string `toml:"tags"`
	ArbiterOnly  bool              `toml:"arbiter_only"`
	Hidden       bool              `toml:"hidden"`
	SlaveDelayMS int               `toml:"slave_delay_ms"`
	BuildIndexes bool              `toml:"build_indexes"`
}

// ReplicaSetConfiguration is the parsed, unvalidated shape of a replica-set
// config document. runtime.BuildConfigSnapshot turns this, once validated,
// into a topology.ConfigSnapshot.
type ReplicaSetConfiguration struct {
	SetName                         string                 `toml:"set_name"`
	ConfigVersion                   int64                  `toml:"config_version"`
	Members                         []MemberConfiguration  `toml:"members"`
	SelfMemberID                    int                    `toml:"self_member_id"`
	ProtocolVersion                 int                    `toml:"protocol_version"`
	ChainingAllowed                 bool                   `toml:"chaining_allowed"`
	ElectionTimeoutMS               int64                  `toml:"election_timeout_ms"`
	HeartbeatIntervalMS             int64                  `toml:"heartbeat_interval_ms"`
	HeartbeatTimeoutMS              int64                  `toml:"heartbeat_timeout_ms"`
	CatchupTakeoverDelayMS          int64                  `toml:"catchup_takeover_delay_ms"`
	PriorityTakeoverStepMS          int64                  `toml:"priority_takeover_step_ms"`
	MaxSyncSourceLagSecs            int64                  `toml:"max_sync_source_lag_secs"`
	WriteConcernMajorityJournalDflt bool                   `toml:"write_concern_majority_journal_default"`
}

// LoggingConfiguration controls logging behavior.
type LoggingConfiguration struct {
	Verbose bool   `toml:"verbose"`
	Format  string `toml:"format"` // "console" or "json"
}

// PrometheusConfiguration controls the metrics endpoint.
type PrometheusConfiguration struct {
	Enabled bool   `toml:"enabled"`
	Address string `toml:"address"`
	Port    int    `toml:"port"`
}

// AdminConfiguration controls the admin HTTP surface.
type AdminConfiguration struct {
	Enabled   bool   `toml:"enabled"`
	Address   string `toml:"address"`
	Port      int    `toml:"port"`
	AuthToken string `toml:"auth_token"`
}

// TransportConfiguration controls the NATS-based heartbeat transport.
type TransportConfiguration struct {
	URL                string `toml:"url"`
	RequestTimeoutMS    int64  `toml:"request_timeout_ms"`
	CompressAboveBytes  int    `toml:"compress_above_bytes"`
}

// Configuration is the root configuration document for a replset node.
type Configuration struct {
	NodeID     uint64                  `toml:"node_id"`
	DataDir    string                  `toml:"data_dir"`
	ReplicaSet ReplicaSetConfiguration `toml:"replica_set"`
	Transport  TransportConfiguration  `toml:"transport"`
	Logging    LoggingConfiguration    `toml:"logging"`
	Prometheus PrometheusConfiguration `toml:"prometheus"`
	Admin      AdminConfiguration      `toml:"admin"`
}

// Command line flags.
var (
	ConfigPathFlag   = flag.String("config", "config.toml", "Path to configuration file")
	DataDirFlag      = flag.String("data-dir", "", "Data directory (overrides config)")
	NodeIDFlag       = flag.Uint64("node-id", 0, "Node ID (overrides config, 0=auto)")
	AdminPortFlag    = flag.Int("admin-port", 0, "Admin HTTP port (overrides config)")
	SelfMemberIDFlag = flag.Int("self-member-id", -1, "This node's replica_set member id (overrides config, -1=use config)")
)

// Config holds the process-wide configuration, populated by Load.
var Config = &Configuration{
	NodeID:  0, // Auto-generate
	DataDir: "./replset-data",

	ReplicaSet: ReplicaSetConfiguration{
		SelfMemberID:                    -1,
		ProtocolVersion:                 1,
		ChainingAllowed:                 true,
		ElectionTimeoutMS:               10000,
		HeartbeatIntervalMS:             2000,
		HeartbeatTimeoutMS:              10000,
		CatchupTakeoverDelayMS:          30000,
		PriorityTakeoverStepMS:          1000,
		MaxSyncSourceLagSecs:            30,
		WriteConcernMajorityJournalDflt: true,
	},

	Transport: TransportConfiguration{
		URL:                "nats://127.0.0.1:4222",
		RequestTimeoutMS:   5000,
		CompressAboveBytes: 8192,
	},

	Logging: LoggingConfiguration{
		Verbose: false,
		Format:  "console",
	},

	Prometheus: PrometheusConfiguration{
		Enabled: true,
		Address: "0.0.0.0",
		Port:    9090,
	},

	Admin: AdminConfiguration{
		Enabled: true,
		Address: "0.0.0.0",
		Port:    8081,
	},
}

// Load loads configuration from file and applies CLI overrides.
func Load(configPath string) error {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			log.Info().Str("path", configPath).Msg("Loading configuration")
			if _, err := toml.DecodeFile(configPath, Config); err != nil {
				return fmt.Errorf("failed to decode config: %w", err)
			}
		} else {
			log.Warn().Str("path", configPath).Msg("Config file not found, using defaults")
		}
	}

	if *DataDirFlag != "" {
		Config.DataDir = *DataDirFlag
	}
	if *NodeIDFlag != 0 {
		Config.NodeID = *NodeIDFlag
	}
	if *AdminPortFlag != 0 {
		Config.Admin.Port = *AdminPortFlag
	}
	if *SelfMemberIDFlag != -1 {
		Config.ReplicaSet.SelfMemberID = *SelfMemberIDFlag
	}

	if Config.NodeID == 0 {
		var err error
		Config.NodeID, err = generateNodeID()
		if err != nil {
			return fmt.Errorf("failed to generate node ID: %w", err)
		}
		log.Info().Uint64("node_id", Config.NodeID).Msg("Auto-generated node ID")
	}

	if err := os.MkdirAll(Config.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	return nil
}

// generateNodeID derives a stable id from the machine's protected id.
func generateNodeID() (uint64, error) {
	id, err := machineid.ProtectedID("replset")
	if err != nil {
		return 0, err
	}

	h := fnv.New64a()
	h.Write([]byte(id))
	return h.Sum64(), nil
}

// Validate checks configuration for errors.
func Validate() error {
	rs := Config.ReplicaSet

	if rs.SetName == "" {
		return fmt.Errorf("replica_set.set_name must not be empty")
	}

	if len(rs.Members) < 1 || len(rs.Members) > 50 {
		return fmt.Errorf("replica_set.members must have between 1 and 50 entries, got %d", len(rs.Members))
	}

	seenIDs := make(map[int]bool, len(rs.Members))
	voteWeight := 0
	for _, m := range rs.Members {
		if seenIDs[m.ID] {
			return fmt.Errorf("duplicate member id %d", m.ID)
		}
		seenIDs[m.ID] = true

		if m.Host == "" {
			return fmt.Errorf("member %d: host must not be empty", m.ID)
		}
		if m.Priority < 0 {
			return fmt.Errorf("member %d: priority must be >= 0", m.ID)
		}
		if m.Votes != 0 && m.Votes != 1 {
			return fmt.Errorf("member %d: votes must be 0 or 1", m.ID)
		}
		if m.ArbiterOnly && m.Priority != 0 {
			return fmt.Errorf("member %d: arbiter must have priority 0", m.ID)
		}
		voteWeight += m.Votes
	}

	if voteWeight < 1 || voteWeight > 7 {
		return fmt.Errorf("replica_set: total voting member weight must be between 1 and 7, got %d", voteWeight)
	}

	if rs.SelfMemberID != -1 && !seenIDs[rs.SelfMemberID] {
		return fmt.Errorf("replica_set.self_member_id %d does not match any configured member", rs.SelfMemberID)
	}

	if rs.ProtocolVersion != 0 && rs.ProtocolVersion != 1 {
		return fmt.Errorf("replica_set.protocol_version must be 0 or 1, got %d", rs.ProtocolVersion)
	}

	if rs.ElectionTimeoutMS < 1 {
		return fmt.Errorf("replica_set.election_timeout_ms must be >= 1")
	}
	if rs.HeartbeatIntervalMS < 1 {
		return fmt.Errorf("replica_set.heartbeat_interval_ms must be >= 1")
	}
	if rs.HeartbeatTimeoutMS < rs.HeartbeatIntervalMS {
		return fmt.Errorf("replica_set.heartbeat_timeout_ms must be >= heartbeat_interval_ms")
	}
	if rs.ConfigVersion < 1 {
		return fmt.Errorf("replica_set.config_version must be >= 1")
	}

	if Config.Prometheus.Enabled && (Config.Prometheus.Port < 1 || Config.Prometheus.Port > 65535) {
		return fmt.Errorf("invalid prometheus port: %d", Config.Prometheus.Port)
	}

	if Config.Admin.Enabled && (Config.Admin.Port < 1 || Config.Admin.Port > 65535) {
		return fmt.Errorf("invalid admin port: %d", Config.Admin.Port)
	}

	if Config.Transport.RequestTimeoutMS < 1 {
		return fmt.Errorf("transport.request_timeout_ms must be >= 1")
	}

	return nil
}
