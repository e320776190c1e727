package relay

import (
	"sync"
	"time"
)

// replayBufferSize bounds the per-room history kept for reconnect catch-up.
const replayBufferSize = 100

// SequencedMessage is a translated utterance stamped with its room-scoped
// broadcast order. Sequence numbers start at 1 and never repeat within a
// room's lifetime.
type SequencedMessage struct {
	Seq            uint64    `json:"seq"`
	MessageID      string    `json:"messageId"`
	OriginalText   string    `json:"originalText"`
	TranslatedText string    `json:"translatedText"`
	Speaker        string    `json:"speaker"`
	SourceLanguage string    `json:"sourceLanguage"`
	TargetLanguage string    `json:"targetLanguage"`
	Timestamp      time.Time `json:"timestamp"`
}

type roomSequence struct {
	nextSeq uint64
	buffer  []SequencedMessage
}

// Sequencer assigns room-monotonic sequence numbers and retains a bounded
// ring of recent messages so a reconnecting client can be caught up.
type Sequencer struct {
	mu    sync.Mutex
	rooms map[string]*roomSequence
}

// NewSequencer returns an empty sequencer.
func NewSequencer() *Sequencer {
	return &Sequencer{rooms: make(map[string]*roomSequence)}
}

// Assign stamps the message with the room's next sequence number and buffers
// it, evicting the oldest entry once the buffer is full. Room state is
// created lazily on first use.
func (s *Sequencer) Assign(roomID string, m SequencedMessage) SequencedMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	rs := s.rooms[roomID]
	if rs == nil {
		rs = &roomSequence{nextSeq: 1}
		s.rooms[roomID] = rs
	}

	m.Seq = rs.nextSeq
	rs.nextSeq++
	rs.buffer = append(rs.buffer, m)
	if len(rs.buffer) > replayBufferSize {
		rs.buffer = rs.buffer[1:]
	}
	return m
}

// CatchUp returns all buffered messages with seq greater than lastReceivedSeq
// in ascending order. A lastReceivedSeq of zero is a first-time join and
// yields nothing; the backlog is only for clients resuming mid-session.
func (s *Sequencer) CatchUp(roomID string, lastReceivedSeq uint64) []SequencedMessage {
	if lastReceivedSeq == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rs := s.rooms[roomID]
	if rs == nil {
		return nil
	}

	var missed []SequencedMessage
	for _, m := range rs.buffer {
		if m.Seq > lastReceivedSeq {
			missed = append(missed, m)
		}
	}
	return missed
}

// Clear removes the room's sequence state entirely. A recreated room starts
// numbering over from 1.
func (s *Sequencer) Clear(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, roomID)
}
