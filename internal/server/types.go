package server

import (
	"errors"
	"strings"
)

var (
	// ErrSendBufferFull is returned by Client.Deliver when the session's
	// outbound buffer has no room left.
	ErrSendBufferFull = errors.New("send buffer full")
	// ErrSessionClosed is returned by Client.Deliver after the session has
	// been torn down.
	ErrSessionClosed = errors.New("session closed")
)

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
