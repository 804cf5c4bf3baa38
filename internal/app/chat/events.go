/*
Package chat contains the core logic of the real-time chat.

This file defines the wire protocol: the {type, payload} envelope carried by every
websocket frame, the inbound and outbound event names, and their payload shapes.
*/
package chat

import (
	"encoding/json"

	"livechat/internal/app/user"
)

// EventType names an inbound or outbound protocol event.
type EventType string

// Inbound events.
const (
	EventJoin    EventType = "join"
	EventMessage EventType = "message"
	EventTyping  EventType = "typing"

	// EventDisconnect is raised by the transport when a connection closes.
	// Clients cannot send it.
	EventDisconnect EventType = "disconnect"
)

// Outbound events.
const (
	EventJoined     EventType = "joined"
	EventUserJoined EventType = "userJoined"
	EventUserList   EventType = "userList"
	EventNewMessage EventType = "newMessage"
	EventUserTyping EventType = "userTyping"
	EventUserLeft   EventType = "userLeft"
	EventError      EventType = "error"
)

// Audience selects which connections receive an outbound event.
type Audience int

const (
	// ToSender addresses only the originating connection.
	ToSender Audience = iota

	// ToOthers addresses every joined connection except the originating one.
	ToOthers

	// ToRoom addresses every joined connection.
	ToRoom
)

func (a Audience) String() string {
	switch a {
	case ToSender:
		return "sender"
	case ToOthers:
		return "room-except-sender"
	case ToRoom:
		return "room"
	default:
		return "unknown"
	}
}

// Envelope is the JSON frame exchanged over the websocket.
type Envelope struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// outboundEnvelope is the frame written to clients.
type outboundEnvelope struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

// encodeEvent marshals an outbound event into a websocket frame.
func encodeEvent(eventType EventType, payload any) ([]byte, error) {
	return json.Marshal(outboundEnvelope{Type: eventType, Payload: payload})
}

// JoinPayload is the payload of an inbound join event.
type JoinPayload struct {
	Username string `json:"username"`
}

// MessagePayload is the payload of an inbound message event.
type MessagePayload struct {
	Content string `json:"content"`
}

// TypingPayload is the payload of an inbound typing event.
type TypingPayload struct {
	IsTyping bool `json:"isTyping"`
}

// JoinedPayload is sent to a connection whose join succeeded.
type JoinedPayload struct {
	UserID   string    `json:"userId"`
	Username string    `json:"username"`
	Messages []Message `json:"messages"`
}

// UserEventPayload announces a user joining or leaving, with the online count after the change.
type UserEventPayload struct {
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	UserCount int    `json:"userCount"`
}

// UserListPayload carries the full online-user list.
type UserListPayload struct {
	Users []user.Presence `json:"users"`
}

// UserTypingPayload relays a typing state change.
type UserTypingPayload struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	IsTyping bool   `json:"isTyping"`
}

// ErrorPayload is sent to the originating connection when an event is rejected.
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
