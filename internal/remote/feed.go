package remote

import (
	"sync"
	"time"

	"github.com/existflow/irontodo/internal/model"
	"github.com/gorilla/websocket"
)

const (
	// feedIdleTimeout is how long the feed waits for a message or ping
	feedIdleTimeout = 75 * time.Second
	feedWriteWait   = 5 * time.Second
	feedBuffer      = 64
)

// socketFeed reads JSON changes from a websocket into a channel
type socketFeed struct {
	conn    *websocket.Conn
	changes chan model.Change
	done    chan struct{}

	closeOnce sync.Once
	mu        sync.Mutex
	err       error
}

func newSocketFeed(conn *websocket.Conn) *socketFeed {
	f := &socketFeed{
		conn:    conn,
		changes: make(chan model.Change, feedBuffer),
		done:    make(chan struct{}),
	}

	_ = conn.SetReadDeadline(time.Now().Add(feedIdleTimeout))
	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(feedIdleTimeout))
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(feedWriteWait))
		if err == websocket.ErrCloseSent {
			return nil
		}
		return err
	})

	go f.readLoop()
	return f
}

func (f *socketFeed) readLoop() {
	defer close(f.changes)

	for {
		var c model.Change
		if err := f.conn.ReadJSON(&c); err != nil {
			select {
			case <-f.done:
			default:
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					f.setErr(err)
				}
			}
			return
		}
		_ = f.conn.SetReadDeadline(time.Now().Add(feedIdleTimeout))

		select {
		case f.changes <- c:
		case <-f.done:
			return
		}
	}
}

func (f *socketFeed) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *socketFeed) Changes() <-chan model.Change {
	return f.changes
}

func (f *socketFeed) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *socketFeed) Close() error {
	var err error
	f.closeOnce.Do(func() {
		close(f.done)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = f.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(feedWriteWait))
		err = f.conn.Close()
	})
	return err
}
