/*
Package chat contains the core logic of the real-time chat.

This file defines the Message record and the MessageLog, a bounded in-memory log that keeps
the most recent messages in send order and evicts the oldest first.
*/
package chat

import (
	"sync"
	"time"
)

// DefaultMaxMessages is the log capacity used when none is configured.
const DefaultMaxMessages = 100

// Message is one chat utterance. The author fields are copied from the sender at send
// time and stay valid after the author disconnects.
type Message struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// MessageLog is an append-only log holding at most capacity messages.
type MessageLog struct {
	// mu guards messages; append and eviction happen in one critical section.
	mu sync.RWMutex

	messages []Message
	capacity int
}

// NewMessageLog creates an empty log. A non-positive capacity falls back to DefaultMaxMessages.
func NewMessageLog(capacity int) *MessageLog {
	if capacity <= 0 {
		capacity = DefaultMaxMessages
	}

	return &MessageLog{
		messages: make([]Message, 0, capacity),
		capacity: capacity,
	}
}

// Append adds msg at the tail and evicts from the head while the log exceeds its capacity.
// msg must already be well-formed.
func (l *MessageLog) Append(msg Message) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.messages = append(l.messages, msg)

	if excess := len(l.messages) - l.capacity; excess > 0 {
		n := copy(l.messages, l.messages[excess:])
		clear(l.messages[n:])
		l.messages = l.messages[:n]
	}
}

// Tail returns a copy of the last min(n, size) messages in send order.
func (l *MessageLog) Tail(n int) []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n <= 0 {
		return []Message{}
	}

	start := max(len(l.messages)-n, 0)

	out := make([]Message, len(l.messages)-start)
	copy(out, l.messages[start:])

	return out
}

// Size returns the number of retained messages.
func (l *MessageLog) Size() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return len(l.messages)
}

// Capacity returns the maximum number of retained messages.
func (l *MessageLog) Capacity() int {
	return l.capacity
}
