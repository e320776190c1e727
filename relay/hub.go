// Package relay implements the real-time translation-room engine: websocket
// presence, transcription dedup, translation fan-out with room-monotonic
// sequencing, reconnect catch-up and concurrent credit metering.
package relay

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/linguacall/linguacall-api/models"
	"github.com/linguacall/linguacall-api/translation"
)

// RoomStore is the persistence surface the relay needs for rooms. Get
// returns a nil room when the id is unknown.
type RoomStore interface {
	Get(ctx context.Context, roomID string) (*models.Room, error)
	SetParticipant(ctx context.Context, roomID, language, voiceGender string) error
	Touch(ctx context.Context, roomID string) error
	Deactivate(ctx context.Context, roomID string) error
}

// UserResolver resolves the authenticated user for a websocket upgrade
// request, via the short-lived ws token or the ambient session cookie.
type UserResolver interface {
	Resolve(r *http.Request) (userID string, ok bool)
}

const (
	defaultGracePeriod = 60 * time.Second

	storeTimeout     = 5 * time.Second
	translateTimeout = 10 * time.Second
)

// Config wires the hub's collaborators.
type Config struct {
	Store      RoomStore
	Users      UserResolver
	Translator translation.Translator
	Credits    CreditConsumer

	// GracePeriod is how long an accidentally-disconnected peer may take to
	// reconnect before the session ends. MeterInterval overrides the credit
	// tick cadence; both default when zero.
	GracePeriod   time.Duration
	MeterInterval time.Duration
}

// Hub owns the room registry and runs every websocket connection's
// lifecycle. Each room's mutable state sits behind its own mutex; nothing
// outside the hub touches membership, and nothing outside the meter touches
// a room's tick loop.
type Hub struct {
	store      RoomStore
	users      UserResolver
	translator translation.Translator

	meter   *Meter
	seq     *Sequencer
	dedup   *Deduper
	tracker *BroadcastTracker

	gracePeriod time.Duration
	upgrader    websocket.Upgrader

	mu    sync.Mutex
	rooms map[string]*room
}

// room is the in-memory registry entry for one active room. None of this
// survives process restart; only the room document and credits persist.
type room struct {
	id        string
	creatorID string

	mu                    sync.Mutex
	clients               map[*client]struct{}
	graceTimer            *time.Timer
	participantEverJoined bool
	ended                 bool
}

// NewHub creates the relay engine.
func NewHub(cfg Config) *Hub {
	h := &Hub{
		store:       cfg.Store,
		users:       cfg.Users,
		translator:  cfg.Translator,
		gracePeriod: cfg.GracePeriod,
		seq:         NewSequencer(),
		dedup:       NewDeduper(),
		tracker:     NewBroadcastTracker(),
		rooms:       make(map[string]*room),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	if h.gracePeriod <= 0 {
		h.gracePeriod = defaultGracePeriod
	}
	h.meter = NewMeter(cfg.Credits, cfg.MeterInterval, h.creditUpdate, h.creditsExhausted)
	return h
}

// HandleConn upgrades the request and runs the connection until it closes.
func (h *Hub) HandleConn(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.S().Errorw("websocket upgrade failed", "error", err)
		return
	}

	userID := ""
	if h.users != nil {
		userID, _ = h.users.Resolve(r)
	}

	c := newClient(conn, userID)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go c.pingLoop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			h.handleClose(c, err)
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))
		h.dispatch(c, data)
	}
}

// dispatch decodes and routes one inbound frame. Errors, including panics
// from a malformed payload, stay contained to this connection.
func (h *Hub) dispatch(c *client, data []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			zap.S().Errorw("recovered from frame handler panic",
				"roomId", c.roomID,
				"panic", rec,
			)
			c.send(newErrorFrame("internal error"))
		}
	}()

	frame, err := decodeFrame(data)
	if err != nil {
		c.send(newErrorFrame(err.Error()))
		return
	}

	switch f := frame.(type) {
	case joinFrame:
		h.handleJoin(c, f)
	case transcriptionFrame:
		h.handleTranscription(c, f)
	case pingFrame:
		c.send(pongFrame{Type: "pong"})
	}
}

func (h *Hub) handleJoin(c *client, f joinFrame) {
	if f.Language == "" || f.VoiceGender == "" {
		c.send(newErrorFrame("language and voiceGender are required"))
		return
	}
	if f.Role != RoleCreator && f.Role != RoleParticipant {
		c.send(newErrorFrame("role must be creator or participant"))
		return
	}
	if f.Role == RoleCreator && c.userID == "" {
		// Participants may join as guests via invite link; creators may not.
		c.send(newErrorFrame("authentication required"))
		c.close()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	dbRoom, err := h.store.Get(ctx, f.RoomID)
	cancel()
	if err != nil {
		zap.S().Errorw("room lookup failed", "roomId", f.RoomID, "error", err)
		c.send(newErrorFrame("room not found"))
		return
	}
	if dbRoom == nil {
		c.send(newErrorFrame("room not found"))
		return
	}

	rm := h.getOrCreateRoom(f.RoomID, dbRoom.CreatorID)

	c.roomID = f.RoomID
	c.role = f.Role
	c.language = f.Language
	c.voiceGender = f.VoiceGender
	c.joined = true

	rm.mu.Lock()
	if rm.ended {
		rm.mu.Unlock()
		c.send(newErrorFrame("room not found"))
		return
	}
	reconnect := false
	if rm.graceTimer != nil {
		rm.graceTimer.Stop()
		rm.graceTimer = nil
		reconnect = true
	}
	peers := make([]*client, 0, len(rm.clients))
	for p := range rm.clients {
		peers = append(peers, p)
	}
	rm.clients[c] = struct{}{}
	if f.Role == RoleParticipant {
		rm.participantEverJoined = true
	}
	rm.mu.Unlock()

	if reconnect {
		h.meter.Resume(f.RoomID)
		for _, p := range peers {
			p.send(peerReconnectedFrame{Type: "peer-reconnected"})
		}
	}

	// Tell the new socket who is already here, and the peers who arrived.
	for _, p := range peers {
		c.send(participantJoinedFrame{
			Type:        "participant-joined",
			RoomID:      f.RoomID,
			Language:    p.language,
			VoiceGender: p.voiceGender,
		})
		p.send(participantJoinedFrame{
			Type:        "participant-joined",
			RoomID:      f.RoomID,
			Language:    f.Language,
			VoiceGender: f.VoiceGender,
		})
	}

	if f.Role == RoleParticipant {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		if err := h.store.SetParticipant(ctx, f.RoomID, f.Language, f.VoiceGender); err != nil {
			zap.S().Errorw("failed to record participant on room", "roomId", f.RoomID, "error", err)
		}
		cancel()

		if remaining, started := h.meter.Start(f.RoomID, rm.creatorID); started {
			h.broadcast(f.RoomID, sessionStartedFrame{
				Type:             "session-started",
				CreditsRemaining: remaining,
			})
		}
	}

	for _, m := range h.seq.CatchUp(f.RoomID, f.LastReceivedSeq) {
		c.send(newTranslationFrame(m))
	}

	go h.touch(f.RoomID)

	zap.S().Infow("client joined room",
		"roomId", f.RoomID,
		"role", f.Role,
		"language", f.Language,
		"reconnect", reconnect,
	)
}

func (h *Hub) handleTranscription(c *client, f transcriptionFrame) {
	if !c.joined {
		c.send(newErrorFrame("join a room first"))
		return
	}
	rm := h.getRoom(c.roomID)
	if rm == nil {
		c.send(newErrorFrame("room not found"))
		return
	}

	language := f.Language
	if language == "" {
		language = c.language
	}

	if f.Interim {
		// Live partial captions are relayed verbatim: no translation, no
		// dedup, no sequence number.
		h.broadcast(c.roomID, interimTranscriptionFrame{
			Type:     "transcription",
			Text:     f.Text,
			Speaker:  c.role,
			Language: language,
			Interim:  true,
		})
		return
	}

	var partner *client
	rm.mu.Lock()
	for p := range rm.clients {
		if p != c && p.role != c.role {
			partner = p
			break
		}
	}
	rm.mu.Unlock()
	if partner == nil {
		c.send(newErrorFrame("the other party has not joined yet"))
		return
	}

	translated := h.translate(f.Text, language, partner.language)

	if !h.dedup.Check(c.roomID, c.role, f.Text, translated) {
		return
	}
	if !h.tracker.Check(c.roomID, c.role, f.Text, translated) {
		return
	}

	msg := h.seq.Assign(c.roomID, SequencedMessage{
		MessageID:      uuid.New().String(),
		OriginalText:   f.Text,
		TranslatedText: translated,
		Speaker:        c.role,
		SourceLanguage: language,
		TargetLanguage: partner.language,
		Timestamp:      time.Now(),
	})

	go h.touch(c.roomID)

	h.broadcast(c.roomID, newTranslationFrame(msg))
}

// translate calls the external translator, passing the original text through
// unchanged on any failure so the conversation degrades instead of stalling.
func (h *Hub) translate(text, from, to string) string {
	ctx, cancel := context.WithTimeout(context.Background(), translateTimeout)
	defer cancel()
	out, err := h.translator.Translate(ctx, text, from, to)
	if err != nil {
		zap.S().Warnw("translation failed, passing original through",
			"from", from,
			"to", to,
			"error", err,
		)
		return text
	}
	return out
}

// handleClose runs when a connection's read loop ends for any reason.
func (h *Hub) handleClose(c *client, err error) {
	defer c.close()
	if !c.joined {
		return
	}
	rm := h.getRoom(c.roomID)
	if rm == nil {
		return
	}

	if intentionalClose(err) {
		h.dedup.RemoveSpeaker(c.roomID, c.role)
		h.endSession(c.roomID, reasonForRole(c.role))
		return
	}

	// Accidental drop: pause billing and give them a grace window to come
	// back before anything ends.
	rm.mu.Lock()
	if rm.ended {
		rm.mu.Unlock()
		return
	}
	delete(rm.clients, c)
	peers := make([]*client, 0, len(rm.clients))
	for p := range rm.clients {
		peers = append(peers, p)
	}
	role := c.role
	if rm.graceTimer != nil {
		rm.graceTimer.Stop()
	}
	rm.graceTimer = time.AfterFunc(h.gracePeriod, func() {
		h.graceExpired(rm.id, role)
	})
	rm.mu.Unlock()

	h.meter.Pause(c.roomID)
	for _, p := range peers {
		p.send(peerDisconnectedFrame{
			Type:                "peer-disconnected",
			WaitingForReconnect: true,
			GraceSeconds:        int(h.gracePeriod.Seconds()),
		})
	}

	zap.S().Infow("client disconnected, grace period armed",
		"roomId", c.roomID,
		"role", role,
		"graceSeconds", int(h.gracePeriod.Seconds()),
	)
}

// graceExpired fires when the grace window lapses without a reconnect.
func (h *Hub) graceExpired(roomID, role string) {
	rm := h.getRoom(roomID)
	if rm == nil {
		return
	}

	rm.mu.Lock()
	rm.graceTimer = nil
	ended := rm.ended
	creatorAlone := role == RoleCreator && !rm.participantEverJoined
	rm.mu.Unlock()

	if ended {
		return
	}
	if creatorAlone {
		// A creator waiting for a first participant stays joinable; there is
		// no session to end.
		return
	}
	h.endSession(roomID, reasonForRole(role))
}

// endSession is the shared teardown: exactly one session-ended broadcast per
// room, timers stopped, state cleared, sockets closed, room soft-deleted.
func (h *Hub) endSession(roomID, reason string) {
	h.mu.Lock()
	rm := h.rooms[roomID]
	delete(h.rooms, roomID)
	h.mu.Unlock()
	if rm == nil {
		return
	}

	rm.mu.Lock()
	if rm.ended {
		rm.mu.Unlock()
		return
	}
	rm.ended = true
	if rm.graceTimer != nil {
		rm.graceTimer.Stop()
		rm.graceTimer = nil
	}
	clients := make([]*client, 0, len(rm.clients))
	for c := range rm.clients {
		clients = append(clients, c)
	}
	rm.clients = make(map[*client]struct{})
	rm.mu.Unlock()

	h.meter.End(roomID)
	h.seq.Clear(roomID)
	h.dedup.ClearRoom(roomID)
	h.tracker.ClearRoom(roomID)

	frame := sessionEndedFrame{Type: "session-ended", Reason: reason}
	for _, c := range clients {
		c.send(frame)
		c.close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	if err := h.store.Deactivate(ctx, roomID); err != nil {
		zap.S().Errorw("failed to deactivate room", "roomId", roomID, "error", err)
	}
	cancel()

	zap.S().Infow("session ended", "roomId", roomID, "reason", reason)
}

func (h *Hub) creditUpdate(roomID string, remaining int64, exhausted bool) {
	h.broadcast(roomID, creditUpdateFrame{
		Type:             "credit-update",
		CreditsRemaining: remaining,
		Exhausted:        exhausted,
	})
}

func (h *Hub) creditsExhausted(roomID string) {
	h.endSession(roomID, ReasonCreditsExhausted)
}

// broadcast sends one frame to every open socket in the room.
func (h *Hub) broadcast(roomID string, v interface{}) {
	rm := h.getRoom(roomID)
	if rm == nil {
		return
	}
	rm.mu.Lock()
	clients := make([]*client, 0, len(rm.clients))
	for c := range rm.clients {
		clients = append(clients, c)
	}
	rm.mu.Unlock()

	for _, c := range clients {
		c.send(v)
	}
}

// touch refreshes the room's activity timestamp; the janitor uses it to
// reap long-dead rooms.
func (h *Hub) touch(roomID string) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := h.store.Touch(ctx, roomID); err != nil {
		zap.S().Debugw("failed to refresh room activity", "roomId", roomID, "error", err)
	}
}

func (h *Hub) getRoom(roomID string) *room {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rooms[roomID]
}

func (h *Hub) getOrCreateRoom(roomID, creatorID string) *room {
	h.mu.Lock()
	defer h.mu.Unlock()
	rm := h.rooms[roomID]
	if rm == nil {
		rm = &room{
			id:        roomID,
			creatorID: creatorID,
			clients:   make(map[*client]struct{}),
		}
		h.rooms[roomID] = rm
	}
	return rm
}

func reasonForRole(role string) string {
	if role == RoleCreator {
		return ReasonCreatorLeft
	}
	return ReasonParticipantLeft
}
