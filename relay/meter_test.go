package relay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConsumer records debits and serves a scripted balance.
type fakeConsumer struct {
	mu       sync.Mutex
	balance  int64
	failNext bool
	debits   []int64
	debited  chan int64
}

func newFakeConsumer(balance int64) *fakeConsumer {
	return &fakeConsumer{balance: balance, debited: make(chan int64, 16)}
}

func (f *fakeConsumer) Consume(ctx context.Context, userID string, seconds int64) (int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if seconds <= 0 {
		return f.balance, f.balance <= 0, nil
	}
	if f.failNext {
		f.failNext = false
		return 0, false, errors.New("billing backend down")
	}
	f.balance -= seconds
	if f.balance < 0 {
		f.balance = 0
	}
	f.debits = append(f.debits, seconds)
	f.debited <- seconds
	return f.balance, f.balance <= 0, nil
}

func (f *fakeConsumer) setFailNext() {
	f.mu.Lock()
	f.failNext = true
	f.mu.Unlock()
}

// testClock is a manually-advanced clock safe to share with the tick loop.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Unix(1700000000, 0)}
}

func (c *testClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func waitForDebit(t *testing.T, f *fakeConsumer) int64 {
	t.Helper()
	select {
	case d := <-f.debited:
		return d
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a debit")
		return 0
	}
}

func assertNoDebit(t *testing.T, f *fakeConsumer) {
	t.Helper()
	select {
	case d := <-f.debited:
		t.Fatalf("unexpected debit of %d seconds", d)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestMeterStartReturnsBalanceOnce(t *testing.T) {
	f := newFakeConsumer(500)
	m := NewMeter(f, time.Hour, nil, nil)

	remaining, started := m.Start("r1", "u1")
	assert.True(t, started)
	assert.Equal(t, int64(500), remaining)
	assert.True(t, m.Active("r1"))

	_, started = m.Start("r1", "u1")
	assert.False(t, started)

	m.End("r1")
	assert.False(t, m.Active("r1"))
}

func TestMeterDebitsElapsedSeconds(t *testing.T) {
	f := newFakeConsumer(500)
	clock := newTestClock()
	m := NewMeter(f, 10*time.Millisecond, nil, nil)
	m.now = clock.now

	_, started := m.Start("r1", "u1")
	require.True(t, started)
	defer m.End("r1")

	clock.advance(3 * time.Second)
	assert.Equal(t, int64(3), waitForDebit(t, f))
}

func TestMeterFailedDebitCarriesOver(t *testing.T) {
	f := newFakeConsumer(500)
	clock := newTestClock()
	m := NewMeter(f, 10*time.Millisecond, nil, nil)
	m.now = clock.now

	_, started := m.Start("r1", "u1")
	require.True(t, started)
	defer m.End("r1")

	f.setFailNext()
	clock.advance(2 * time.Second)
	// the failed attempt is skipped; once billing recovers the full elapsed
	// time since the last successful deduction is charged
	clock.advance(3 * time.Second)
	assert.Equal(t, int64(5), waitForDebit(t, f))
}

func TestMeterPauseStopsDebiting(t *testing.T) {
	f := newFakeConsumer(500)
	clock := newTestClock()
	m := NewMeter(f, 10*time.Millisecond, nil, nil)
	m.now = clock.now

	_, started := m.Start("r1", "u1")
	require.True(t, started)
	defer m.End("r1")

	m.Pause("r1")
	clock.advance(30 * time.Second)
	assertNoDebit(t, f)
	assert.True(t, m.Active("r1"))
}

func TestMeterResumeResetsDeductionClock(t *testing.T) {
	f := newFakeConsumer(500)
	clock := newTestClock()
	m := NewMeter(f, 10*time.Millisecond, nil, nil)
	m.now = clock.now

	_, started := m.Start("r1", "u1")
	require.True(t, started)
	defer m.End("r1")

	m.Pause("r1")
	clock.advance(50 * time.Second)
	m.Resume("r1")

	// only time after the resume is charged
	clock.advance(4 * time.Second)
	assert.Equal(t, int64(4), waitForDebit(t, f))
}

func TestMeterEndStopsLoop(t *testing.T) {
	f := newFakeConsumer(500)
	clock := newTestClock()
	m := NewMeter(f, 10*time.Millisecond, nil, nil)
	m.now = clock.now

	_, started := m.Start("r1", "u1")
	require.True(t, started)

	m.End("r1")
	clock.advance(30 * time.Second)
	assertNoDebit(t, f)
}

func TestMeterCallbacksFireOnDebitAndExhaustion(t *testing.T) {
	f := newFakeConsumer(2)
	clock := newTestClock()

	updates := make(chan int64, 16)
	exhausted := make(chan string, 1)
	var m *Meter
	m = NewMeter(f, 10*time.Millisecond,
		func(roomID string, remaining int64, ex bool) {
			updates <- remaining
		},
		func(roomID string) {
			// mirrors the hub, which tears the session down from inside the
			// exhaustion callback
			m.End(roomID)
			exhausted <- roomID
		})
	m.now = clock.now

	_, started := m.Start("r1", "u1")
	require.True(t, started)

	clock.advance(5 * time.Second)

	select {
	case remaining := <-updates:
		assert.Equal(t, int64(0), remaining)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a credit update")
	}

	select {
	case roomID := <-exhausted:
		assert.Equal(t, "r1", roomID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for exhaustion")
	}
	assert.False(t, m.Active("r1"))
}
