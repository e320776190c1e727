package relay

import (
	"regexp"
	"sync"
	"time"
)

// Dedup thresholds, tuned against the upstream speech recognizer's observed
// behavior. Not configurable per room.
const (
	// rescoreThreshold catches the recognizer finalizing the same utterance
	// twice with a corrected transcription. Only the original text is
	// compared at this tier, and a match blocks unconditionally.
	rescoreThreshold = 0.98

	// fuzzyThreshold is the standard near-duplicate bar, applied to the
	// original and translated text together.
	fuzzyThreshold = 0.82

	dedupWindow     = 2 * time.Second
	dedupMaxEntries = 5
)

var digitRuns = regexp.MustCompile(`[0-9]+`)

type recentMessage struct {
	originalText   string
	translatedText string
	at             time.Time
}

// Deduper decides whether a just-finalized transcription should be suppressed
// as a duplicate of something the same speaker emitted moments ago in the
// same room. Recency state mutates only when a message is allowed through.
type Deduper struct {
	mu     sync.Mutex
	recent map[string][]recentMessage
	now    func() time.Time
}

// NewDeduper returns an empty dedup engine.
func NewDeduper() *Deduper {
	return &Deduper{
		recent: make(map[string][]recentMessage),
		now:    time.Now,
	}
}

// Check reports whether the (speaker, originalText, translatedText) triple is
// new enough to broadcast. Allowed messages are appended to the speaker's
// recency window; blocked messages leave all state untouched.
func (d *Deduper) Check(roomID, speaker, originalText, translatedText string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	key := roomID + "|" + speaker

	window := d.recent[key][:0]
	for _, rm := range d.recent[key] {
		if now.Sub(rm.at) <= dedupWindow {
			window = append(window, rm)
		}
	}
	d.recent[key] = window

	for _, rm := range window {
		origSim := Similarity(originalText, rm.originalText)
		if origSim >= rescoreThreshold {
			return false
		}
		if origSim >= fuzzyThreshold && Similarity(translatedText, rm.translatedText) >= fuzzyThreshold {
			// Numbers changing between two otherwise-similar messages means a
			// correction ("3 PM" -> "5 PM"), not a duplicate.
			if digitsChanged(originalText, rm.originalText) || digitsChanged(translatedText, rm.translatedText) {
				continue
			}
			return false
		}
	}

	window = append(window, recentMessage{
		originalText:   originalText,
		translatedText: translatedText,
		at:             now,
	})
	if len(window) > dedupMaxEntries {
		window = window[len(window)-dedupMaxEntries:]
	}
	d.recent[key] = window
	return true
}

// RemoveSpeaker discards one speaker's recency window, used when that speaker
// intentionally leaves the room.
func (d *Deduper) RemoveSpeaker(roomID, speaker string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.recent, roomID+"|"+speaker)
}

// ClearRoom discards all dedup state for a room.
func (d *Deduper) ClearRoom(roomID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key := range d.recent {
		if len(key) > len(roomID) && key[:len(roomID)+1] == roomID+"|" {
			delete(d.recent, key)
		}
	}
}

// digitsChanged reports whether both texts carry ASCII digit runs and those
// runs differ. Non-ASCII numerals and spelled-out numbers are intentionally
// not considered; see the extraction note in DESIGN.md.
func digitsChanged(a, b string) bool {
	da := digitRuns.FindAllString(a, -1)
	db := digitRuns.FindAllString(b, -1)
	if len(da) == 0 || len(db) == 0 {
		return false
	}
	if len(da) != len(db) {
		return true
	}
	for i := range da {
		if da[i] != db[i] {
			return true
		}
	}
	return false
}
