package runtime

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/hieutrieu/replset/topology"
)

// lastVoteFileName is the record spec.md's vote-persistence contract
// requires: the highest term we have voted in, and who we voted for,
// written before any vote grant or self-vote is allowed to go further.
const lastVoteFileName = "last_vote.json"

// LastVoteStore persists a Coordinator's LastVote under dataDir so a
// crash-restart can reload it instead of resetting to {0, -1}, which
// would let a node vote twice in the same term.
type LastVoteStore struct {
	mu   sync.Mutex
	path string
}

// NewLastVoteStore returns a store rooted at dataDir. dataDir is assumed
// to already exist (cfg.Load creates it via os.MkdirAll).
func NewLastVoteStore(dataDir string) *LastVoteStore {
	return &LastVoteStore{path: filepath.Join(dataDir, lastVoteFileName)}
}

// Load reads the persisted LastVote, or the unvoted zero value if no
// record has been written yet (first boot).
func (s *LastVoteStore) Load() (topology.LastVote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return topology.LastVote{Term: 0, VotedFor: -1}, nil
	}
	if err != nil {
		return topology.LastVote{}, fmt.Errorf("read last vote: %w", err)
	}

	var v topology.LastVote
	if err := json.Unmarshal(data, &v); err != nil {
		return topology.LastVote{}, fmt.Errorf("decode last vote: %w", err)
	}
	return v, nil
}

// Persist writes v to disk, replacing any previous record via a
// write-temp-then-rename so a crash mid-write never leaves a torn file
// for the next Load to trip over.
func (s *LastVoteStore) Persist(v topology.LastVote) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode last vote: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0640); err != nil {
		return fmt.Errorf("write last vote: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("rename last vote: %w", err)
	}
	return nil
}
