/*
Package randx provides functions for generating unique identifiers.

User ids, message ids and connection handles are all UUID v4 strings. They are drawn
from independent calls so a connection handle never doubles as a user id.
*/
package randx

import (
	"github.com/google/uuid"
)

// UserID generates the identifier assigned to a user when a join succeeds.
func UserID() string {
	return uuid.New().String()
}

// MessageID generates a standard UUID v4 string to serve as a unique identifier for a message.
func MessageID() string {
	return uuid.New().String()
}

// ConnID generates the opaque handle the transport uses to address one live connection.
func ConnID() string {
	return uuid.New().String()
}
