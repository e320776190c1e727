package relay

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequencerAssignsMonotonicSeq(t *testing.T) {
	s := NewSequencer()

	for i := uint64(1); i <= 5; i++ {
		m := s.Assign("r1", SequencedMessage{OriginalText: fmt.Sprintf("msg %d", i)})
		assert.Equal(t, i, m.Seq)
	}
}

func TestSequencerRoomsIndependent(t *testing.T) {
	s := NewSequencer()

	m1 := s.Assign("r1", SequencedMessage{})
	m2 := s.Assign("r2", SequencedMessage{})
	assert.Equal(t, uint64(1), m1.Seq)
	assert.Equal(t, uint64(1), m2.Seq)
}

func TestSequencerCatchUpFirstJoinYieldsNothing(t *testing.T) {
	s := NewSequencer()
	s.Assign("r1", SequencedMessage{})
	s.Assign("r1", SequencedMessage{})

	assert.Nil(t, s.CatchUp("r1", 0))
}

func TestSequencerCatchUpReturnsMissedInOrder(t *testing.T) {
	s := NewSequencer()
	for i := 0; i < 15; i++ {
		s.Assign("r1", SequencedMessage{OriginalText: fmt.Sprintf("msg %d", i)})
	}

	missed := s.CatchUp("r1", 12)
	assert.Len(t, missed, 3)
	assert.Equal(t, uint64(13), missed[0].Seq)
	assert.Equal(t, uint64(14), missed[1].Seq)
	assert.Equal(t, uint64(15), missed[2].Seq)
}

func TestSequencerCatchUpFullyCurrent(t *testing.T) {
	s := NewSequencer()
	for i := 0; i < 5; i++ {
		s.Assign("r1", SequencedMessage{})
	}

	assert.Empty(t, s.CatchUp("r1", 5))
}

func TestSequencerCatchUpUnknownRoom(t *testing.T) {
	s := NewSequencer()
	assert.Nil(t, s.CatchUp("nope", 3))
}

func TestSequencerBufferEvictsOldest(t *testing.T) {
	s := NewSequencer()
	for i := 0; i < replayBufferSize+10; i++ {
		s.Assign("r1", SequencedMessage{})
	}

	// the oldest ten fell off; asking from seq 1 only returns what survives
	missed := s.CatchUp("r1", 1)
	assert.Len(t, missed, replayBufferSize)
	assert.Equal(t, uint64(11), missed[0].Seq)
	assert.Equal(t, uint64(replayBufferSize+10), missed[len(missed)-1].Seq)
}

func TestSequencerClearRestartsNumbering(t *testing.T) {
	s := NewSequencer()
	s.Assign("r1", SequencedMessage{})
	s.Assign("r1", SequencedMessage{})

	s.Clear("r1")

	m := s.Assign("r1", SequencedMessage{})
	assert.Equal(t, uint64(1), m.Seq)
	assert.Nil(t, s.CatchUp("r1", 0))
}
