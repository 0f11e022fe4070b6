package rpc

// Call is the deferred-result handle returned by Handler.Go. It is resolved
// asynchronously by a later inbound message or timer; callers must not
// assume synchronous completion.
type Call struct {
	Name          string
	CorrelationID string
	Data          interface{}
	Result        interface{} // reply payload, nil on failure
	Error         error       // nil on success
	Done          chan *Call  // strobes when the call completes
}

// finish signals completion. Done is buffered; if the caller abandoned the
// handle and the channel is full, the signal is dropped rather than blocking
// the delivery sequence.
func (call *Call) finish() {
	select {
	case call.Done <- call:
	default:
	}
}
