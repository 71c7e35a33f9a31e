// Copyright The Stack Master Tool Authors.
// SPDX-License-Identifier: MIT

package p2p

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
	"github.com/guitarbeat/stack-master-tool/internal/domain"
	"github.com/guitarbeat/stack-master-tool/internal/logging"
)

const (
	// reconnectInitialInterval is the first retry delay after a dropped
	// connection; each retry doubles up to reconnectMaxInterval.
	reconnectInitialInterval = time.Second
	reconnectMaxInterval     = 30 * time.Second
	// reconnectMaxTries bounds the retries before the session goes terminal.
	reconnectMaxTries = 5

	writeTimeout = 10 * time.Second
)

// SignalingClient is a websocket transport through a relay server. It dials
// the relay, joins its room, and reconnects with exponential backoff when the
// connection drops. After the retry budget is spent the client transitions to
// the error state and stays there.
type SignalingClient struct {
	url  string
	room string
	peer string

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool

	frames     chan Frame
	states     chan ConnState
	done       chan struct{}
	doneOnce   sync.Once
	streamOnce sync.Once
}

// NewSignalingClient connects a peer to a room through the relay at url. The
// initial dial runs through the same backoff policy as reconnects.
func NewSignalingClient(ctx context.Context, url, room, peer string) (*SignalingClient, error) {
	c := &SignalingClient{
		url:    url,
		room:   room,
		peer:   peer,
		frames: make(chan Frame, 64),
		states: make(chan ConnState, 8),
		done:   make(chan struct{}),
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	go c.readLoop(ctx)
	return c, nil
}

func (c *SignalingClient) setState(state ConnState) {
	select {
	case c.states <- state:
	default:
		// A slow consumer only misses intermediate transitions.
	}
}

func (c *SignalingClient) connect(ctx context.Context) error {
	c.setState(ConnStateConnecting)

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = reconnectInitialInterval
	policy.MaxInterval = reconnectMaxInterval

	conn, err := backoff.Retry(ctx, func() (*websocket.Conn, error) {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
		if err != nil {
			slog.WarnContext(ctx, "signaling dial failed, retrying",
				logging.ErrKey, err, "room", c.room)
			return nil, err
		}
		return conn, nil
	}, backoff.WithBackOff(policy), backoff.WithMaxTries(reconnectMaxTries))
	if err != nil {
		c.setState(ConnStateError)
		return domain.NewUnavailableError("signaling server is unreachable", err)
	}

	join := Frame{Kind: FrameJoin, Room: c.room, Peer: c.peer}
	if err := conn.WriteJSON(join); err != nil {
		conn.Close()
		c.setState(ConnStateError)
		return domain.NewUnavailableError("failed to join signaling room", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.setState(ConnStateConnected)
	return nil
}

// closeStreams closes the frame and state channels so consumers ranging over
// them terminate. Only the read loop's exit reaches this, which keeps the
// channel-close on the single writing goroutine.
func (c *SignalingClient) closeStreams() {
	c.streamOnce.Do(func() {
		close(c.frames)
		close(c.states)
	})
}

func (c *SignalingClient) readLoop(ctx context.Context) {
	defer c.closeStreams()
	for {
		c.mu.Lock()
		conn := c.conn
		closed := c.closed
		c.mu.Unlock()
		if closed || conn == nil {
			return
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			closed = c.closed
			c.mu.Unlock()
			if closed {
				return
			}

			slog.WarnContext(ctx, "signaling connection dropped, reconnecting",
				logging.ErrKey, err, "room", c.room)
			c.setState(ConnStateDisconnected)
			if err := c.connect(ctx); err != nil {
				slog.ErrorContext(ctx, "signaling reconnect budget exhausted",
					logging.ErrKey, err, "room", c.room, logging.PriorityCritical())
				c.doneOnce.Do(func() { close(c.done) })
				return
			}
			continue
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			slog.WarnContext(ctx, "dropping malformed signaling frame", logging.ErrKey, err)
			continue
		}
		if frame.Peer == c.peer {
			continue
		}

		select {
		case c.frames <- frame:
		case <-c.done:
			return
		}
	}
}

// Broadcast sends a frame to the other peers in the room via the relay.
func (c *SignalingClient) Broadcast(ctx context.Context, frame Frame) error {
	frame.Room = c.room
	frame.Peer = c.peer

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.conn == nil {
		return domain.NewUnavailableError("signaling connection is closed")
	}

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return domain.NewInternalError("failed to set write deadline", err)
	}
	if err := c.conn.WriteJSON(frame); err != nil {
		return domain.NewUnavailableError("failed to send signaling frame", err)
	}
	return nil
}

// Frames is the stream of inbound frames from other peers.
func (c *SignalingClient) Frames() <-chan Frame { return c.frames }

// States reports connection transitions.
func (c *SignalingClient) States() <-chan ConnState { return c.states }

// Close tears down the connection. Safe to call more than once.
func (c *SignalingClient) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}

	// The read loop observes the closed connection and closes the frame and
	// state channels on its way out; sending a final state here would race
	// that close.
	c.doneOnce.Do(func() { close(c.done) })
	return nil
}
