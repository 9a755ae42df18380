package runtime

import "github.com/google/uuid"

// newElectionID mints a fresh identifier for a won election, stamped into
// topology.Coordinator via processWinElection/setElectionInfo and surfaced
// in the isMaster response so clients can detect a primary change even
// when the term also happens to repeat (it shouldn't, but cheap to avoid).
func newElectionID() string {
	return uuid.New().String()
}
