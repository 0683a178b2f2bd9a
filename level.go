package handel

import (
	"math/rand"
	"sync"
)

// levelState is one of Inactive, Active, ReceiveCompleted (spec.md §4.3).
type levelState int

const (
	levelInactive levelState = iota
	levelActive
	levelReceiveCompleted
)

func (s levelState) String() string {
	switch s {
	case levelActive:
		return "active"
	case levelReceiveCompleted:
		return "receive-completed"
	default:
		return "inactive"
	}
}

// level holds the per-level peer list, rotation cursor, and send/receive
// flags described in spec.md §4.3. Each level has its own lock so that
// state transitions on one level never block work on another.
type level struct {
	mu sync.RWMutex

	id      int
	peerIDs []int
	state   levelState

	sendPeersPos         int
	sendSignatureSize    int
	sendExpectedFullSize int
}

// newLevel constructs a level with the given peer list, in the order
// given (already shuffled by the caller if requested).
func newLevel(id int, peerIDs []int, sendExpectedFullSize int) *level {
	l := &level{
		id:                   id,
		peerIDs:              peerIDs,
		sendExpectedFullSize: sendExpectedFullSize,
	}
	if id == 0 {
		// Level 0 is born Active; the agent immediately marks it
		// ReceiveCompleted once the node's own contribution is stored.
		l.state = levelActive
	}
	return l
}

// createLevels builds every level for a partitioner, in ascending order,
// optionally shuffling each level's peer order (disableShuffling=false
// is the default; tests set it true for determinism).
func createLevels(part Partitioner, disableShuffling bool, rng *rand.Rand) ([]*level, error) {
	n := part.NumLevels()
	levels := make([]*level, n)
	fullSize := 0
	for i := 0; i < n; i++ {
		ids, err := part.IdentitiesAt(i)
		if err != nil {
			return nil, err
		}
		peerIDs := make([]int, len(ids))
		for j, id := range ids {
			peerIDs[j] = int(id.ID())
		}
		if !disableShuffling && len(peerIDs) > 1 {
			rng.Shuffle(len(peerIDs), func(a, b int) {
				peerIDs[a], peerIDs[b] = peerIDs[b], peerIDs[a]
			})
		}
		levels[i] = newLevel(i, peerIDs, fullSize)
		fullSize += len(peerIDs)
	}
	return levels, nil
}

func (l *level) State() levelState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

func (l *level) NumPeers() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.peerIDs)
}

// activate transitions Inactive -> Active, either from a timeout or from
// the previous level completing reception. Returns true iff the
// transition actually happened (it's a no-op otherwise, per spec.md §9's
// decision on late timeouts).
func (l *level) activate() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != levelInactive {
		return false
	}
	l.state = levelActive
	return true
}

// markReceiveCompleted transitions the level to ReceiveCompleted, from
// either Inactive or Active, once the level's best signature covers
// every peer. Returns true iff the transition happened.
func (l *level) markReceiveCompleted() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == levelReceiveCompleted {
		return false
	}
	l.state = levelReceiveCompleted
	return true
}

// selectNextPeers returns up to count peer ids, advancing and wrapping
// the rotation cursor.
func (l *level) selectNextPeers(count int) []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.peerIDs) == 0 {
		return nil
	}
	size := count
	if size > len(l.peerIDs) {
		size = len(l.peerIDs)
	}
	out := make([]int, size)
	for i := 0; i < size; i++ {
		out[i] = l.peerIDs[l.sendPeersPos]
		l.sendPeersPos++
		if l.sendPeersPos >= len(l.peerIDs) {
			l.sendPeersPos = 0
		}
	}
	return out
}

// updateSignatureToSend records that a candidate of the given size is now
// available to disseminate from this level. It returns true iff that's
// an improvement over what was previously tracked, and separately
// reports whether the candidate is now as large as this level can ever
// produce ("fully-formed for sending").
func (l *level) updateSignatureToSend(size int) (grew bool, fullyFormed bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if size <= l.sendSignatureSize {
		return false, false
	}
	l.sendSignatureSize = size
	return true, size == l.sendExpectedFullSize
}
