package relay

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// CreditConsumer debits seconds of usage from a user's balance. Consuming
// zero seconds reads the balance without debiting.
type CreditConsumer interface {
	Consume(ctx context.Context, userID string, seconds int64) (remaining int64, exhausted bool, err error)
}

// defaultMeterInterval is how often an active session is debited. One credit
// buys one second of conversation; the tick just batches the deduction.
const defaultMeterInterval = 10 * time.Second

const consumeTimeout = 5 * time.Second

// meterSession is the runtime credit-tracking record for one room.
type meterSession struct {
	userID        string
	startedAt     time.Time
	lastDeduction time.Time
	pausedAt      *time.Time
	// cancel stops the running tick loop. Nil while paused. Every transition
	// that starts a new loop must cancel the previous handle first, so two
	// loops can never debit the same room concurrently.
	cancel context.CancelFunc
}

// Meter runs the per-room credit metering loop: debit the creator's balance
// every tick while the session is active, report the new balance, and end the
// session when the balance hits zero.
type Meter struct {
	credits  CreditConsumer
	interval time.Duration

	mu       sync.Mutex
	sessions map[string]*meterSession

	onUpdate    func(roomID string, remaining int64, exhausted bool)
	onExhausted func(roomID string)
	now         func() time.Time
}

// NewMeter creates a metering loop. onUpdate is invoked after every
// successful deduction; onExhausted fires once when a balance reaches zero.
// Both callbacks run outside the meter's lock.
func NewMeter(credits CreditConsumer, interval time.Duration, onUpdate func(string, int64, bool), onExhausted func(string)) *Meter {
	if interval <= 0 {
		interval = defaultMeterInterval
	}
	return &Meter{
		credits:     credits,
		interval:    interval,
		sessions:    make(map[string]*meterSession),
		onUpdate:    onUpdate,
		onExhausted: onExhausted,
		now:         time.Now,
	}
}

// Start begins metering a room against the given user's balance. Returns the
// current balance and whether a new session was actually created; a room
// that already has a session is left untouched.
func (m *Meter) Start(roomID, userID string) (int64, bool) {
	m.mu.Lock()
	if _, exists := m.sessions[roomID]; exists {
		m.mu.Unlock()
		return 0, false
	}

	now := m.now()
	s := &meterSession{
		userID:        userID,
		startedAt:     now,
		lastDeduction: now,
	}
	m.sessions[roomID] = s
	s.cancel = m.startLoop(roomID)
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), consumeTimeout)
	defer cancel()
	remaining, _, err := m.credits.Consume(ctx, userID, 0)
	if err != nil {
		zap.S().Errorw("failed to read starting balance", "roomId", roomID, "error", err)
	}
	return remaining, true
}

// Pause stops the room's tick loop without discarding the session. Paused
// time is never charged.
func (m *Meter) Pause(roomID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.sessions[roomID]
	if s == nil || s.cancel == nil {
		return
	}
	s.cancel()
	s.cancel = nil
	now := m.now()
	s.pausedAt = &now
}

// Resume restarts a paused session's tick loop. The deduction clock resets to
// now, so the pause itself is free.
func (m *Meter) Resume(roomID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.sessions[roomID]
	if s == nil {
		return
	}
	if s.cancel != nil {
		// Already running; cancel before starting a replacement loop.
		s.cancel()
	}
	s.pausedAt = nil
	s.lastDeduction = m.now()
	s.cancel = m.startLoop(roomID)
}

// End tears down the room's session and tick loop. Safe to call for rooms
// that never had a session.
func (m *Meter) End(roomID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.sessions[roomID]
	if s == nil {
		return
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	delete(m.sessions, roomID)
}

// Active reports whether the room has a session record, running or paused.
func (m *Meter) Active(roomID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[roomID] != nil
}

// startLoop launches the tick goroutine. Caller must hold m.mu.
func (m *Meter) startLoop(roomID string) context.CancelFunc {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.tick(ctx, roomID)
			}
		}
	}()
	return cancel
}

// tick debits the seconds elapsed since the last successful deduction. A
// failed debit is logged and skipped; the elapsed time carries over to the
// next tick so a billing-side outage never blocks the conversation.
func (m *Meter) tick(loopCtx context.Context, roomID string) {
	m.mu.Lock()
	s := m.sessions[roomID]
	if s == nil || s.pausedAt != nil {
		m.mu.Unlock()
		return
	}
	userID := s.userID
	elapsed := int64(m.now().Sub(s.lastDeduction).Seconds())
	m.mu.Unlock()

	if elapsed <= 0 {
		return
	}

	ctx, cancel := context.WithTimeout(loopCtx, consumeTimeout)
	remaining, exhausted, err := m.credits.Consume(ctx, userID, elapsed)
	cancel()
	if err != nil {
		zap.S().Warnw("credit deduction failed, skipping tick",
			"roomId", roomID,
			"seconds", elapsed,
			"error", err,
		)
		return
	}

	m.mu.Lock()
	if s := m.sessions[roomID]; s != nil {
		s.lastDeduction = m.now()
	}
	m.mu.Unlock()

	if m.onUpdate != nil {
		m.onUpdate(roomID, remaining, exhausted)
	}
	if exhausted && m.onExhausted != nil {
		m.onExhausted(roomID)
	}
}
