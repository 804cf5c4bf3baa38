/*
Package chat contains the core logic of the real-time chat.

This file defines the Client struct, representing an active WebSocket connection. It runs the
read and write pumps and hands every inbound frame to the EventHandler under the client's handle.
*/
package chat

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"livechat/internal/pkg/logx"
	"livechat/internal/pkg/randx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a frame sent by the client.
	maxMessageSize = 16384

	// number of outbound frames queued per client before it counts as slow.
	sendBufferSize = 256
)

// EventHandler consumes the inbound side of a connection.
type EventHandler interface {
	Dispatch(handle string, frame []byte)
	Disconnect(handle string)
}

// Client struct represents an active WebSocket connection.
type Client struct {
	// id is the connection handle, unrelated to the user id.
	id string

	// hub tracks the client for outbound delivery.
	hub *Hub

	// handler receives inbound frames and the final disconnect.
	handler EventHandler

	// underlying WebSocket connection object.
	conn *websocket.Conn

	// a buffered channel used to queue frames waiting to be sent to the client.
	send chan []byte

	// closeOnce guards closing send.
	closeOnce sync.Once

	// structured logger with connection context.
	logger zerolog.Logger
}

// NewClient constructs a Client with a fresh connection handle.
func NewClient(hub *Hub, handler EventHandler, conn *websocket.Conn) *Client {
	id := randx.ConnID()

	return &Client{
		id:      id,
		hub:     hub,
		handler: handler,
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		logger:  logx.Logger().With().Str("conn_id", id).Logger(),
	}
}

// ID returns the connection handle.
func (c *Client) ID() string {
	return c.id
}

// closeSend closes the outbound queue once; the write pump then sends a close frame.
func (c *Client) closeSend() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// ReadPump reads frames until the connection fails, then reports the disconnect.
// It must run on a single goroutine per client.
func (c *Client) ReadPump() {
	defer c.cleanupOnDisconnect()

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading message (Client close/going away)")
			}
			break
		}

		c.handler.Dispatch(c.id, frame)
	}
}

// cleanupOnDisconnect runs when ReadPump terminates.
func (c *Client) cleanupOnDisconnect() {
	c.logger.Debug().Msg("Client connection cleanup starting.")

	c.handler.Disconnect(c.id)
	c.hub.Detach(c)

	if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
		c.logger.Error().Err(err).Msg("Client connection close error")
	}
}

// WritePump writes queued frames and periodic pings until the queue is closed or a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.logger.Error().Err(err).Msg("Client connection close error in WritePump")
		}
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if !c.writeQueuedFrame(frame, ok) {
				return
			}

		case <-ticker.C:
			if !c.writePingMessage() {
				return
			}
		}
	}
}

// writeQueuedFrame writes one frame, or a close frame when the queue was closed.
// Returns true if the WritePump loop should continue.
func (c *Client) writeQueuedFrame(frame []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if !ok {
		closeMessage := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		if err := c.conn.WriteMessage(websocket.CloseMessage, closeMessage); err != nil && !isExpectedCloseError(err) {
			c.logger.Warn().Err(err).Msg("Error writing close message")
		}
		return false
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		c.logger.Error().Err(err).Msg("Error writing message")
		return false
	}

	return true
}

// writePingMessage sends a periodic WebSocket Ping message to maintain the connection heartbeat.
func (c *Client) writePingMessage() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
		return false
	}

	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Error().Err(err).Msg("Error writing ping")
		return false
	}

	return true
}
