/*
Package user contains core data structures related to the identity of a connected participant.

It defines the User record owned by the connection registry and the Presence snapshot that is
copied out of it for online-user lists.
*/
package user

import "time"

// User represents one connected participant of the chat.
// Values of this type are snapshots; the registry owns the live record.
type User struct {

	// ID is assigned at join time and never reused.
	ID string `json:"id"`

	// Username is the display name, unique case-insensitively among connected users.
	Username string `json:"username"`

	// ConnID is the transport handle used to address this user's connection.
	ConnID string `json:"-"`

	// JoinTime records when the join succeeded.
	JoinTime time.Time `json:"joinTime"`

	// IsTyping is only changed by typing events from the same connection.
	IsTyping bool `json:"isTyping"`
}

// Presence is the public view of a user in online-user lists.
type Presence struct {
	ID       string    `json:"id"`
	Username string    `json:"username"`
	JoinTime time.Time `json:"joinTime"`
}

// Presence returns the public snapshot of u.
func (u User) Presence() Presence {
	return Presence{
		ID:       u.ID,
		Username: u.Username,
		JoinTime: u.JoinTime,
	}
}
