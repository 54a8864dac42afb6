package blockbook_backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

type wsClient struct {
	conn    *websocket.Conn
	nextID  uint64
	timeout time.Duration

	lock      *sync.Mutex
	writeLock *sync.Mutex
	pending   map[string]chan response
	closed    bool

	chNotifications chan error

	log  func(format string, a ...interface{})
	warn func(err error, format string, a ...interface{})
}

func newWSClient(addr string, timeout time.Duration) (*wsClient, error) {
	conn, _, err := websocket.DefaultDialer.Dial(addr, nil)
	if err != nil {
		return nil, err
	}

	logFn := func(format string, a ...interface{}) {
		format = fmt.Sprintf("backend: %s", format)
		log.Debugf(format, a...)
	}
	warnFn := func(err error, format string, a ...interface{}) {
		format = fmt.Sprintf("backend: %s", format)
		log.WithError(err).Warnf(format, a...)
	}

	c := &wsClient{
		conn:            conn,
		timeout:         timeout,
		lock:            &sync.Mutex{},
		writeLock:       &sync.Mutex{},
		pending:         make(map[string]chan response),
		chNotifications: make(chan error, 1),
		log:             logFn,
		warn:            warnFn,
	}
	go c.listen()

	return c, nil
}

func (c *wsClient) listen() {
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if errors.Is(err, net.ErrClosed) ||
				websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return
			}
			c.notify(fmt.Errorf("connection with backend dropped: %s", err))
			return
		}

		var resp response
		if err := json.Unmarshal(msg, &resp); err != nil {
			c.warn(err, "skipping malformed message from backend")
			continue
		}

		ch := c.takePending(resp.ID)
		if ch == nil {
			c.log("skipping message with unknown id %s", resp.ID)
			continue
		}
		ch <- resp
	}
}

func (c *wsClient) call(
	ctx context.Context, method string, params interface{},
) (json.RawMessage, error) {
	id := strconv.FormatUint(atomic.AddUint64(&c.nextID, 1), 10)
	ch := make(chan response, 1)
	c.addPending(id, ch)
	defer c.takePending(id)

	req := request{ID: id, Method: method, Params: params}
	c.writeLock.Lock()
	err := c.conn.WriteJSON(req)
	c.writeLock.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to send request %s: %s", method, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	select {
	case resp := <-ch:
		if err := resp.error(); err != nil {
			return nil, err
		}
		return resp.Data, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("request %s timed out", method)
	}
}

func (c *wsClient) notifications() <-chan error {
	return c.chNotifications
}

func (c *wsClient) close() {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.conn.Close()
	close(c.chNotifications)
}

// notify delivers a connection-level error, dropped if the client was
// closed on purpose.
func (c *wsClient) notify(err error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.closed {
		return
	}
	select {
	case c.chNotifications <- err:
	default:
	}
}

func (c *wsClient) addPending(id string, ch chan response) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.pending[id] = ch
}

func (c *wsClient) takePending(id string) chan response {
	c.lock.Lock()
	defer c.lock.Unlock()

	ch := c.pending[id]
	delete(c.pending, id)
	return ch
}
