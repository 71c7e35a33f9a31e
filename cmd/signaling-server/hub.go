// Copyright The Stack Master Tool Authors.
// SPDX-License-Identifier: MIT

package main

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/guitarbeat/stack-master-tool/internal/logging"
	"github.com/guitarbeat/stack-master-tool/internal/p2p"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
)

// envelope is the part of a frame the relay needs to route: the room it
// belongs to. Payloads pass through opaque.
type envelope struct {
	Kind string `json:"kind"`
	Room string `json:"room"`
	Peer string `json:"peer"`
}

// client is one websocket connection attached to the hub.
type client struct {
	hub  *hub
	conn *websocket.Conn
	send chan []byte
	room string
}

// hub relays frames between the clients of each room. All membership changes
// and broadcasts run on the single run loop, so no locking is needed.
type hub struct {
	rooms      map[string]map[*client]bool
	register   chan *client
	unregister chan *client
	broadcast  chan broadcastFrame
}

type broadcastFrame struct {
	sender *client
	data   []byte
}

func newHub() *hub {
	return &hub{
		rooms:      make(map[string]map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan broadcastFrame),
	}
}

func (h *hub) run() {
	for {
		select {
		case c := <-h.register:
			if h.rooms[c.room] == nil {
				h.rooms[c.room] = make(map[*client]bool)
			}
			h.rooms[c.room][c] = true
			slog.Info("peer joined room", "room", c.room, "peers", len(h.rooms[c.room]))

		case c := <-h.unregister:
			if members, ok := h.rooms[c.room]; ok && members[c] {
				delete(members, c)
				close(c.send)
				if len(members) == 0 {
					delete(h.rooms, c.room)
				}
				slog.Info("peer left room", "room", c.room, "peers", len(members))
			}

		case frame := <-h.broadcast:
			for member := range h.rooms[frame.sender.room] {
				if member == frame.sender {
					continue
				}
				select {
				case member.send <- frame.data:
				default:
					// Slow consumer, drop the connection.
					delete(h.rooms[frame.sender.room], member)
					close(member.send)
				}
			}
		}
	}
}

// readPump reads frames from the client and hands them to the hub. The first
// frame must be a join carrying the room name.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("websocket read error", logging.ErrKey, err)
			}
			return
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			slog.Warn("dropping malformed frame", logging.ErrKey, err)
			continue
		}

		if c.room == "" {
			if env.Kind != p2p.FrameJoin || env.Room == "" {
				slog.Warn("first frame must join a room", "kind", env.Kind)
				return
			}
			c.room = env.Room
			c.hub.register <- c
			continue
		}

		c.hub.broadcast <- broadcastFrame{sender: c, data: data}
	}
}

// writePump writes hub frames and keepalive pings to the client.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
