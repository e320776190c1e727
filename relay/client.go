package relay

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Transport keepalive. A peer that misses a full ping cycle is forced closed,
// which then flows through the accidental-leave path.
const (
	pingPeriod = 30 * time.Second
	pongWait   = 65 * time.Second
	writeWait  = 10 * time.Second
)

// closeCodeEndCall is the application close code the browser sends for an
// explicit "end call" action, as opposed to a tab close or network drop.
const closeCodeEndCall = 4000

// client is one websocket connection's membership in a room. All fields
// except the write mutex are set once during join and read-only afterwards.
type client struct {
	conn *websocket.Conn

	userID      string
	roomID      string
	role        string
	language    string
	voiceGender string
	joined      bool

	// gorilla/websocket permits one concurrent writer per connection.
	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

func newClient(conn *websocket.Conn, userID string) *client {
	return &client{
		conn:   conn,
		userID: userID,
		done:   make(chan struct{}),
	}
}

// send writes one JSON frame to the client. Write failures are logged and
// otherwise ignored; the read loop will observe the dead connection and run
// the leave path.
func (c *client) send(v interface{}) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(v); err != nil {
		zap.S().Debugw("websocket write failed", "roomId", c.roomID, "error", err)
	}
}

// close tears the connection down exactly once.
func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// pingLoop sends transport-level pings until the connection goes away. A
// failed ping write force-closes the socket.
func (c *client) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			c.writeMu.Unlock()
			if err != nil {
				c.close()
				return
			}
		}
	}
}

// intentionalClose reports whether the read loop ended because the client
// deliberately hung up. Anything else (network drop, backgrounding, missed
// keepalive) is treated as accidental and gets the grace period.
func intentionalClose(err error) bool {
	if ce, ok := err.(*websocket.CloseError); ok {
		return ce.Code == websocket.CloseNormalClosure || ce.Code == closeCodeEndCall
	}
	return false
}
