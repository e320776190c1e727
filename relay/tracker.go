package relay

import (
	"sync"
	"time"
)

const (
	trackerTTL        = 5 * time.Second
	trackerMaxEntries = 200
)

// BroadcastTracker is a last-resort guard against re-delivering content that
// was already broadcast: it remembers, per room, when each exact
// (speaker, original, translated) triple last went out.
type BroadcastTracker struct {
	mu    sync.Mutex
	rooms map[string]map[string]time.Time
	now   func() time.Time
}

// NewBroadcastTracker returns an empty tracker.
func NewBroadcastTracker() *BroadcastTracker {
	return &BroadcastTracker{
		rooms: make(map[string]map[string]time.Time),
		now:   time.Now,
	}
}

// Check reports whether the triple is fresh for the room, recording it if so.
// A triple already tracked within the TTL returns false.
func (t *BroadcastTracker) Check(roomID, speaker, originalText, translatedText string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	seen := t.rooms[roomID]
	if seen == nil {
		seen = make(map[string]time.Time)
		t.rooms[roomID] = seen
	}

	key := speaker + "|" + originalText + "|" + translatedText
	if at, ok := seen[key]; ok && now.Sub(at) < trackerTTL {
		return false
	}

	for k, at := range seen {
		if now.Sub(at) >= trackerTTL {
			delete(seen, k)
		}
	}
	// Hard cap regardless of TTL, evicting oldest first.
	for len(seen) >= trackerMaxEntries {
		var oldestKey string
		var oldest time.Time
		for k, at := range seen {
			if oldestKey == "" || at.Before(oldest) {
				oldestKey, oldest = k, at
			}
		}
		delete(seen, oldestKey)
	}

	seen[key] = now
	return true
}

// ClearRoom drops all tracked broadcasts for a room.
func (t *BroadcastTracker) ClearRoom(roomID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.rooms, roomID)
}
