/*
Package errs provides custom error types and application-level error code constants.

These error codes are used to clearly identify specific protocol or system errors
both internally within the server and in the error events sent to clients.
*/
package errs

// 1xxx: General Request and Frame Handling Errors
const (
	// ErrInvalidParams indicates that an event payload could not be bound to its expected shape.
	ErrInvalidParams = 1001

	// ErrInvalidJSONFormat indicates that an inbound frame is not a valid JSON event envelope.
	ErrInvalidJSONFormat = 1003

	// ErrRouteNotFound indicates that no API endpoint matches the request path.
	ErrRouteNotFound = 1004

	// ErrMethodNotAllowed indicates that the API endpoint exists but not for the request method.
	ErrMethodNotAllowed = 1005

	// ErrUnsupportedEvent indicates that the client sent an event type the server does not handle.
	ErrUnsupportedEvent = 1008
)

// 2xxx: Session and Content Business Logic Errors
const (
	// ErrUsernameRequired indicates that the username was empty or whitespace only.
	ErrUsernameRequired = 2001

	// ErrUsernameTaken indicates that a connected user already holds the username (case-insensitive).
	ErrUsernameTaken = 2002

	// ErrUsernameTooLong indicates that the username exceeded the configured length.
	ErrUsernameTooLong = 2003

	// ErrUserNotFound indicates that no joined user is registered for the connection.
	ErrUserNotFound = 2004

	// ErrAlreadyJoined indicates that the connection already completed a join.
	ErrAlreadyJoined = 2005

	// ErrMessageContentRequired indicates that the message content was empty after trimming.
	ErrMessageContentRequired = 2201

	// ErrMessageContentTooLong indicates that the message content exceeded the maximum length limit.
	ErrMessageContentTooLong = 2202
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000
)
