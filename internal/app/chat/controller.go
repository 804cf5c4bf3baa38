/*
Package chat contains the core logic of the real-time chat.

This file defines the Controller, the protocol state machine. It validates inbound events,
mutates the Registry and MessageLog, and emits outbound events through a Transport.
All of this happens inside one critical section per event, so broadcast order equals
commit order and presence lists never reflect a stale registry.
*/
package chat

import (
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"livechat/internal/app/user"
	"livechat/internal/pkg/errs"
	"livechat/internal/pkg/logx"
	"livechat/internal/pkg/randx"
)

// DefaultHistorySize is the number of recent messages sent in the joined event.
const DefaultHistorySize = 50

// ErrSessionClosed is returned for events addressed to a connection that is closed or unknown.
var ErrSessionClosed = errors.New("chat: session closed")

// SessionState is the protocol state of one connection.
type SessionState int

const (
	// StateClosed is terminal. Unknown handles also report it.
	StateClosed SessionState = iota

	// StateAnonymous is a connected handle that has not joined.
	StateAnonymous

	// StateJoined is a handle with a registered user.
	StateJoined
)

func (s SessionState) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateJoined:
		return "joined"
	default:
		return "closed"
	}
}

// Transport delivers encoded frames to connections.
type Transport interface {
	// Deliver queues frame for handle without blocking. It returns false when
	// the connection is unknown or cannot accept more frames.
	Deliver(handle string, frame []byte) bool

	// Close terminates the connection identified by handle.
	Close(handle string)
}

// ControllerOptions tunes the protocol limits.
type ControllerOptions struct {
	// HistorySize is the number of messages included in the joined event.
	HistorySize int

	// MaxContentBytes bounds message content after trimming; zero disables the check.
	MaxContentBytes int

	// Now overrides the clock used for message timestamps.
	Now func() time.Time
}

// Stats is a point-in-time read of the chat for status endpoints.
type Stats struct {
	TotalUsers    int             `json:"totalUsers"`
	TotalMessages int             `json:"totalMessages"`
	OnlineUsers   []user.Presence `json:"onlineUsers"`
}

// Controller is the event-driven orchestrator of the single chat room.
type Controller struct {
	// mu is the room lock, held across mutate + compute recipients + enqueue.
	mu sync.Mutex

	registry  *Registry
	messages  *MessageLog
	transport Transport

	// sessions holds Anonymous and Joined handles; closed handles are deleted.
	sessions map[string]SessionState

	// slow collects handles whose delivery failed during the current critical section.
	slow []string

	historySize     int
	maxContentBytes int
	now             func() time.Time

	logger zerolog.Logger
}

// NewController wires a Controller over the given registry, log and transport.
func NewController(registry *Registry, messages *MessageLog, transport Transport, opts ControllerOptions) *Controller {
	if opts.HistorySize <= 0 {
		opts.HistorySize = DefaultHistorySize
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}

	return &Controller{
		registry:        registry,
		messages:        messages,
		transport:       transport,
		sessions:        make(map[string]SessionState),
		historySize:     opts.HistorySize,
		maxContentBytes: opts.MaxContentBytes,
		now:             opts.Now,
		logger:          logx.Component("ChatController"),
	}
}

// Connect records a new connection in the Anonymous state.
func (c *Controller) Connect(handle string) {
	c.critical(func() {
		if _, ok := c.sessions[handle]; ok {
			c.logger.Warn().Str("conn_id", handle).Msg("Connection handle already known. Ignoring connect.")
			return
		}

		c.sessions[handle] = StateAnonymous
		c.logger.Debug().Str("conn_id", handle).Msg("Connection opened.")
	})
}

// State returns the protocol state of handle.
func (c *Controller) State(handle string) SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.sessions[handle]
}

// Dispatch decodes one inbound frame and routes it to the matching event handler.
func (c *Controller) Dispatch(handle string, frame []byte) {
	var envelope Envelope
	if err := json.Unmarshal(frame, &envelope); err != nil {
		c.logger.Warn().Err(err).Str("conn_id", handle).Msg("Client sent invalid JSON")
		c.rejectEvent(handle, errs.NewError(errs.ErrInvalidJSONFormat))
		return
	}

	switch envelope.Type {
	case EventJoin:
		var payload JoinPayload
		if err := decodePayload(envelope.Payload, &payload); err != nil {
			c.rejectPayload(handle, envelope.Type, err)
			return
		}
		_ = c.Join(handle, payload.Username)

	case EventMessage:
		var payload MessagePayload
		if err := decodePayload(envelope.Payload, &payload); err != nil {
			// A sender without a user learns that first, whatever the payload.
			if _, lookupErr := c.registry.Lookup(handle); lookupErr != nil {
				c.rejectEvent(handle, lookupErr)
				return
			}
			c.rejectPayload(handle, envelope.Type, err)
			return
		}
		_, _ = c.PostMessage(handle, payload.Content)

	case EventTyping:
		var payload TypingPayload
		if err := decodePayload(envelope.Payload, &payload); err != nil {
			c.rejectPayload(handle, envelope.Type, err)
			return
		}
		c.Typing(handle, payload.IsTyping)

	default:
		c.logger.Warn().Str("conn_id", handle).Str("event", string(envelope.Type)).Msg("Client sent unsupported event type")
		c.rejectEvent(handle, errs.NewError(errs.ErrUnsupportedEvent))
	}
}

// decodePayload binds raw into dst. A missing payload leaves dst zeroed.
func decodePayload(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return nil
	}

	return json.Unmarshal(raw, dst)
}

func (c *Controller) rejectPayload(handle string, eventType EventType, err error) {
	c.logger.Warn().Err(err).Str("conn_id", handle).Str("event", string(eventType)).Msg("Client sent invalid payload")
	c.rejectEvent(handle, errs.NewError(errs.ErrInvalidParams))
}

// rejectEvent sends an error event to handle if its connection is still open.
func (c *Controller) rejectEvent(handle string, err error) {
	c.critical(func() {
		if c.sessions[handle] == StateClosed {
			return
		}

		c.reject(handle, err)
	})
}

// Join registers username for handle and announces the new user to the room.
func (c *Controller) Join(handle, username string) error {
	var err error
	c.critical(func() {
		err = c.join(handle, username)
	})

	return err
}

func (c *Controller) join(handle, username string) error {
	switch c.sessions[handle] {
	case StateClosed:
		c.logger.Debug().Str("conn_id", handle).Msg("Join on closed connection ignored.")
		return ErrSessionClosed

	case StateJoined:
		err := errs.NewError(errs.ErrAlreadyJoined)
		c.reject(handle, err)
		return err
	}

	joined, err := c.registry.Register(handle, username)
	if err != nil {
		c.logger.Info().Err(err).Str("conn_id", handle).Str("username", username).Msg("Join rejected.")
		c.reject(handle, err)
		return err
	}

	c.sessions[handle] = StateJoined

	c.emit(handle, ToSender, EventJoined, JoinedPayload{
		UserID:   joined.ID,
		Username: joined.Username,
		Messages: c.messages.Tail(c.historySize),
	})

	onlineCount := c.registry.Size()
	c.emit(handle, ToOthers, EventUserJoined, JoinNotification(joined, onlineCount))
	c.emit(handle, ToRoom, EventUserList, PresenceList(c.registry))

	c.logger.Info().
		Str("conn_id", handle).
		Str("user_id", joined.ID).
		Str("username", joined.Username).
		Int("total_users", onlineCount).
		Msg("User joined the chat.")

	return nil
}

// PostMessage appends a message from the user joined on handle and broadcasts it to the room.
func (c *Controller) PostMessage(handle, content string) (Message, error) {
	var (
		msg Message
		err error
	)
	c.critical(func() {
		msg, err = c.postMessage(handle, content)
	})

	return msg, err
}

func (c *Controller) postMessage(handle, content string) (Message, error) {
	if c.sessions[handle] == StateClosed {
		return Message{}, ErrSessionClosed
	}

	author, err := c.registry.Lookup(handle)
	if err != nil {
		c.logger.Warn().Str("conn_id", handle).Msg("Message from connection without a joined user.")
		c.reject(handle, err)
		return Message{}, err
	}

	content = strings.TrimSpace(content)
	if content == "" {
		err := errs.NewError(errs.ErrMessageContentRequired)
		c.reject(handle, err)
		return Message{}, err
	}

	if c.maxContentBytes > 0 && len(content) > c.maxContentBytes {
		err := errs.NewError(errs.ErrMessageContentTooLong, c.maxContentBytes)
		c.reject(handle, err)
		return Message{}, err
	}

	msg := Message{
		ID:        randx.MessageID(),
		UserID:    author.ID,
		Username:  author.Username,
		Content:   content,
		Timestamp: c.now(),
	}

	c.messages.Append(msg)

	if author.IsTyping {
		if _, err := c.registry.SetTyping(handle, false); err != nil {
			c.logger.Error().Err(err).Str("conn_id", handle).Msg("Failed to clear typing flag after message.")
		}
	}

	c.emit(handle, ToRoom, EventNewMessage, msg)

	c.logger.Info().
		Str("message_id", msg.ID).
		Str("user_id", author.ID).
		Int("log_size", c.messages.Size()).
		Msg("Message broadcast.")
	c.logger.Debug().Str("message_id", msg.ID).Str("content", msg.Content).Msg("Message content.")

	return msg, nil
}

// Typing updates the typing flag of the user joined on handle and relays it to the other users.
// Connections without a joined user are ignored.
func (c *Controller) Typing(handle string, isTyping bool) {
	c.critical(func() {
		if c.sessions[handle] == StateClosed {
			return
		}

		typist, err := c.registry.SetTyping(handle, isTyping)
		if err != nil {
			c.logger.Debug().Str("conn_id", handle).Msg("Typing from connection without a joined user ignored.")
			return
		}

		c.emit(handle, ToOthers, EventUserTyping, TypingNotification(typist))
	})
}

// Disconnect closes the session of handle. If a user was joined, the room is told it left.
func (c *Controller) Disconnect(handle string) {
	c.critical(func() {
		c.disconnect(handle, "connection closed")
	})
}

// Kick force-removes handle as if it disconnected and closes its connection.
func (c *Controller) Kick(handle, reason string) {
	c.critical(func() {
		c.kick(handle, reason)
	})
}

// kick closes the session and schedules the transport close. Caller holds mu.
func (c *Controller) kick(handle, reason string) {
	c.disconnect(handle, reason)

	if !slices.Contains(c.slow, handle) {
		c.slow = append(c.slow, handle)
	}
}

// disconnect reports whether handle had an open session. Caller holds mu.
func (c *Controller) disconnect(handle, reason string) bool {
	if _, ok := c.sessions[handle]; !ok {
		return false
	}

	delete(c.sessions, handle)

	left, err := c.registry.Remove(handle)
	if err != nil {
		c.logger.Debug().Str("conn_id", handle).Str("reason", reason).Msg("Anonymous connection closed.")
		return true
	}

	onlineCount := c.registry.Size()
	c.emit(handle, ToOthers, EventUserLeft, LeaveNotification(left, onlineCount))
	c.emit(handle, ToRoom, EventUserList, PresenceList(c.registry))

	c.logger.Info().
		Str("conn_id", handle).
		Str("user_id", left.ID).
		Str("username", left.Username).
		Str("reason", reason).
		Int("total_users", onlineCount).
		Msg("User left the chat.")

	return true
}

// Stats reads the registry and log without taking the room lock.
func (c *Controller) Stats() Stats {
	return Stats{
		TotalUsers:    c.registry.Size(),
		TotalMessages: c.messages.Size(),
		OnlineUsers:   PresenceList(c.registry).Users,
	}
}

// reject sends err to handle as an error event. Caller holds mu.
func (c *Controller) reject(handle string, err error) {
	customErr := errs.From(err)

	c.emit(handle, ToSender, EventError, ErrorPayload{
		Code:    customErr.Code,
		Message: customErr.Message,
	})
}

// emit encodes one event and queues it for the audience. Caller holds mu.
// Recipients are read from the registry at emission time, after the triggering mutation.
func (c *Controller) emit(sender string, audience Audience, eventType EventType, payload any) {
	frame, err := encodeEvent(eventType, payload)
	if err != nil {
		c.logger.Error().Err(err).Str("event", string(eventType)).Msg("Failed to encode outbound event.")
		return
	}

	var targets []string
	switch audience {
	case ToSender:
		targets = []string{sender}
	case ToOthers, ToRoom:
		for _, handle := range c.registry.Handles() {
			if audience == ToOthers && handle == sender {
				continue
			}
			targets = append(targets, handle)
		}
	}

	for _, handle := range targets {
		if slices.Contains(c.slow, handle) {
			continue
		}

		if !c.transport.Deliver(handle, frame) {
			c.logger.Warn().
				Str("conn_id", handle).
				Str("event", string(eventType)).
				Str("audience", audience.String()).
				Msg("Connection send queue full or closed. Scheduling removal.")
			c.slow = append(c.slow, handle)
		}
	}
}

// critical runs fn under the room lock, then removes connections that could not keep up.
// A removal can itself overflow other queues, so the loop drains until no handle is pending.
func (c *Controller) critical(fn func()) {
	pending := c.locked(fn)

	closed := make(map[string]struct{})
	for len(pending) > 0 {
		handle := pending[0]
		pending = pending[1:]

		if _, done := closed[handle]; done {
			continue
		}
		closed[handle] = struct{}{}

		pending = append(pending, c.locked(func() {
			c.disconnect(handle, "send queue full")
		})...)

		c.transport.Close(handle)
	}
}

// locked runs fn under mu and returns the handles flagged slow meanwhile.
// A panic in fn is logged and does not escape, so one bad event cannot take down the room.
func (c *Controller) locked(fn func()) (slow []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().Interface("panic", r).Msg("Recovered from panic while handling chat event.")
		}

		slow = c.slow
		c.slow = nil
	}()

	fn()

	return nil
}
