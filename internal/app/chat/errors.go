package chat

import (
	"errors"
	"net"
	"strings"

	"github.com/gorilla/websocket"
)

// isExpectedCloseError reports errors that are normal while a connection is being torn down.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}

	if errors.Is(err, net.ErrClosed) || errors.Is(err, websocket.ErrCloseSent) {
		return true
	}

	return strings.Contains(err.Error(), "broken pipe")
}
