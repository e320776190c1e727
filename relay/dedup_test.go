package relay

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestDeduper(now *time.Time) *Deduper {
	d := NewDeduper()
	d.now = func() time.Time { return *now }
	return d
}

func TestDeduperAllowsFirstMessage(t *testing.T) {
	now := time.Now()
	d := newTestDeduper(&now)

	assert.True(t, d.Check("r1", RoleCreator, "hello there", "hola"))
}

func TestDeduperBlocksExactRepeat(t *testing.T) {
	now := time.Now()
	d := newTestDeduper(&now)

	assert.True(t, d.Check("r1", RoleCreator, "hello there", "hola"))
	now = now.Add(500 * time.Millisecond)
	assert.False(t, d.Check("r1", RoleCreator, "hello there", "hola"))
}

func TestDeduperBlocksRecognizerRescore(t *testing.T) {
	// Same utterance finalized twice with a corrected translation: the
	// original text alone decides.
	now := time.Now()
	d := newTestDeduper(&now)

	assert.True(t, d.Check("r1", RoleCreator, "16 people killed", "16 personas murieron"))
	now = now.Add(300 * time.Millisecond)
	assert.False(t, d.Check("r1", RoleCreator, "16 people killed.", "16 personas fueron asesinadas"))
}

func TestDeduperBlocksFuzzyNearDuplicate(t *testing.T) {
	now := time.Now()
	d := newTestDeduper(&now)

	assert.True(t, d.Check("r1", RoleCreator, "I will see you tomorrow morning", "te veré mañana por la mañana"))
	now = now.Add(400 * time.Millisecond)
	assert.False(t, d.Check("r1", RoleCreator, "I will see you tomorrow mornings", "te veré mañana por las mañana"))
}

func TestDeduperAllowsNumericCorrection(t *testing.T) {
	// "3 PM" -> "5 PM" is a correction, not a duplicate, even though the
	// surrounding text is nearly identical.
	now := time.Now()
	d := newTestDeduper(&now)

	assert.True(t, d.Check("r1", RoleCreator, "meet me at 3 pm today", "nos vemos a las 3 pm hoy"))
	now = now.Add(300 * time.Millisecond)
	assert.True(t, d.Check("r1", RoleCreator, "meet me at 5 pm today", "nos vemos a las 5 pm hoy"))
}

func TestDeduperAllowsAfterWindowExpires(t *testing.T) {
	now := time.Now()
	d := newTestDeduper(&now)

	assert.True(t, d.Check("r1", RoleCreator, "hello there", "hola"))
	now = now.Add(dedupWindow + time.Millisecond)
	assert.True(t, d.Check("r1", RoleCreator, "hello there", "hola"))
}

func TestDeduperSpeakersIndependent(t *testing.T) {
	now := time.Now()
	d := newTestDeduper(&now)

	assert.True(t, d.Check("r1", RoleCreator, "hello there", "hola"))
	assert.True(t, d.Check("r1", RoleParticipant, "hello there", "hola"))
}

func TestDeduperRoomsIndependent(t *testing.T) {
	now := time.Now()
	d := newTestDeduper(&now)

	assert.True(t, d.Check("r1", RoleCreator, "hello there", "hola"))
	assert.True(t, d.Check("r2", RoleCreator, "hello there", "hola"))
}

func TestDeduperBlockedMessageLeavesStateUntouched(t *testing.T) {
	now := time.Now()
	d := newTestDeduper(&now)

	assert.True(t, d.Check("r1", RoleCreator, "hello there", "hola"))
	now = now.Add(500 * time.Millisecond)
	assert.False(t, d.Check("r1", RoleCreator, "hello there", "hola"))

	// The blocked repeat must not have refreshed the window: expiry still
	// counts from the first, allowed message.
	now = now.Add(dedupWindow - 200*time.Millisecond)
	assert.True(t, d.Check("r1", RoleCreator, "hello there", "hola"))
}

func TestDeduperWindowCapped(t *testing.T) {
	now := time.Now()
	d := newTestDeduper(&now)

	for i := 0; i < dedupMaxEntries+3; i++ {
		assert.True(t, d.Check("r1", RoleCreator,
			fmt.Sprintf("unrelated message number %d bananas", i*7),
			fmt.Sprintf("mensaje sin relación número %d plátanos", i*7)))
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	assert.LessOrEqual(t, len(d.recent["r1|"+RoleCreator]), dedupMaxEntries)
}

func TestDeduperRemoveSpeaker(t *testing.T) {
	now := time.Now()
	d := newTestDeduper(&now)

	assert.True(t, d.Check("r1", RoleCreator, "hello there", "hola"))
	d.RemoveSpeaker("r1", RoleCreator)
	assert.True(t, d.Check("r1", RoleCreator, "hello there", "hola"))
}

func TestDeduperClearRoom(t *testing.T) {
	now := time.Now()
	d := newTestDeduper(&now)

	assert.True(t, d.Check("r1", RoleCreator, "hello there", "hola"))
	assert.True(t, d.Check("r1", RoleParticipant, "good morning", "buenos días"))
	assert.True(t, d.Check("r2", RoleCreator, "hello there", "hola"))

	d.ClearRoom("r1")

	assert.True(t, d.Check("r1", RoleCreator, "hello there", "hola"))
	assert.True(t, d.Check("r1", RoleParticipant, "good morning", "buenos días"))
	// untouched room still dedupes
	assert.False(t, d.Check("r2", RoleCreator, "hello there", "hola"))
}

func TestDigitsChanged(t *testing.T) {
	assert.True(t, digitsChanged("meet at 3 pm", "meet at 5 pm"))
	assert.True(t, digitsChanged("rooms 12 and 14", "rooms 12 and 15"))
	assert.True(t, digitsChanged("call 555", "call 555 1234"))
	assert.False(t, digitsChanged("meet at 3 pm", "meet at 3 pm"))
	// one side without digits never counts as a numeric correction
	assert.False(t, digitsChanged("meet at three", "meet at 3"))
	assert.False(t, digitsChanged("no numbers", "none here"))
}
