/*
Package errs provides custom error types and application-level error code constants.

This file defines the map from error codes to the CustomError struct, used to standardize
HTTP responses and the error events emitted over the chat protocol.
*/
package errs

import "net/http"

// errorMap stores the detailed CustomError struct corresponding to every application error code.
// The key is the error code (int), and the value contains the user message and HTTP status code.
var errorMap = map[int]CustomError{
	// 1xxx: General Request and Frame Handling Errors
	ErrInvalidParams:     {Code: ErrInvalidParams, Message: "Invalid event payload.", Status: http.StatusBadRequest},
	ErrInvalidJSONFormat: {Code: ErrInvalidJSONFormat, Message: "Unsupported message format.", Status: http.StatusBadRequest},
	ErrRouteNotFound:     {Code: ErrRouteNotFound, Message: "Endpoint not found.", Status: http.StatusNotFound},
	ErrMethodNotAllowed:  {Code: ErrMethodNotAllowed, Message: "Method not allowed.", Status: http.StatusMethodNotAllowed},
	ErrUnsupportedEvent:  {Code: ErrUnsupportedEvent, Message: "Unsupported event type.", Status: http.StatusBadRequest},

	// 2xxx: Session and Content Business Logic Errors
	ErrUsernameRequired:       {Code: ErrUsernameRequired, Message: "Username is required"},
	ErrUsernameTaken:          {Code: ErrUsernameTaken, Message: "Username is already taken", Status: http.StatusConflict},
	ErrUsernameTooLong:        {Code: ErrUsernameTooLong, Message: "Username must be at most %d characters"},
	ErrUserNotFound:           {Code: ErrUserNotFound, Message: "User not found", Status: http.StatusNotFound},
	ErrAlreadyJoined:          {Code: ErrAlreadyJoined, Message: "You have already joined the chat"},
	ErrMessageContentRequired: {Code: ErrMessageContentRequired, Message: "Message content is required"},
	ErrMessageContentTooLong:  {Code: ErrMessageContentTooLong, Message: "Message must be at most %d bytes"},

	// 5xxx: Internal System Errors
	ErrUnknown: {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
}
