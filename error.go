package deepstream

import (
	"fmt"
)

var ErrInvalidName = fmt.Errorf("RPC name must be a non-empty string")
var ErrInvalidProvider = fmt.Errorf("RPC provider must be a non-nil function")
var ErrInvalidCallback = fmt.Errorf("RPC callback must be a non-nil function")
var ErrShutdown = fmt.Errorf("RPC handler is stopped")

// AlreadyRegisteredError reports a second provide for a name this process
// already provides.
type AlreadyRegisteredError struct {
	Name string
}

func (err *AlreadyRegisteredError) Error() string {
	return fmt.Sprintf("RPC %s already registered", err.Name)
}

// RPCError is the failure delivered to a call's completion sink. Event is a
// protocol event label (ACCEPT_TIMEOUT, RESPONSE_TIMEOUT, REQUEST_ERROR,
// MESSAGE_DENIED, MESSAGE_PERMISSION_ERROR); Data carries the payload
// delivered with the failure, if any.
type RPCError struct {
	Event   string
	Message string
	Data    interface{}
}

func (err *RPCError) Error() string {
	if err.Message == "" {
		return err.Event
	}
	return fmt.Sprintf("%s: %s", err.Event, err.Message)
}
