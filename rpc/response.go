package rpc

import (
	"sync"
	"time"

	"github.com/op/go-logging"

	deepstream "github.com/aduycuong/deepstream-client-go"
)

// Response lets a provider reply to one inbound request. The reply path may
// be used exactly once: Send, Error and Reject are terminal, Accept may
// precede them and is itself allowed once. If the provider does neither, the
// accept watchdog sends an ACCEPT at the end of the accept window and the
// response watchdog seals the response with a REQUEST_ERROR at the end of
// the response window, so a hung provider never leaves the caller waiting on
// a request that was delivered.
type Response struct {
	sync.Mutex
	conn          deepstream.Connection
	log           *logging.Logger
	name          string
	correlationID string
	accepted      bool
	sent          bool
	acceptTimer   *time.Timer
	responseTimer *time.Timer
}

func newResponse(conn deepstream.Connection, timeouts deepstream.Timeouts, name, correlationID string, log *logging.Logger) *Response {
	response := &Response{
		conn:          conn,
		log:           log,
		name:          name,
		correlationID: correlationID,
	}
	response.acceptTimer = time.AfterFunc(timeouts.RPC.Accept, response.autoAccept)
	response.responseTimer = time.AfterFunc(timeouts.RPC.Accept+timeouts.RPC.Response, response.expire)
	return response
}

// Accept acknowledges receipt without replying. Calling it again, or after a
// terminal reply, is a no-op.
func (r *Response) Accept() {
	r.Lock()
	if r.accepted || r.sent {
		r.Unlock()
		return
	}
	r.accepted = true
	r.acceptTimer.Stop()
	r.Unlock()
	r.sendMessage(r.message(deepstream.ActionAccept, nil))
}

// Send delivers the success payload. An ACCEPT is sent first if the provider
// never accepted explicitly.
func (r *Response) Send(result interface{}) {
	first, needAccept := r.seal()
	if !first {
		r.log.Warning("RPC", r.name, "already replied, dropping response for", r.correlationID)
		return
	}
	if needAccept {
		r.sendMessage(r.message(deepstream.ActionAccept, nil))
	}
	r.sendMessage(r.message(deepstream.ActionResponse, result))
}

// Error delivers an error payload to the caller. Terminal.
func (r *Response) Error(message string) {
	first, _ := r.seal()
	if !first {
		r.log.Warning("RPC", r.name, "already replied, dropping error for", r.correlationID)
		return
	}
	r.sendMessage(r.message(deepstream.ActionRequestError, message))
}

// Reject declines the request without an application error, letting the
// caller fail fast instead of waiting out the accept window.
func (r *Response) Reject() {
	first, _ := r.seal()
	if !first {
		r.log.Warning("RPC", r.name, "already replied, dropping reject for", r.correlationID)
		return
	}
	r.sendMessage(r.message(deepstream.ActionReject, nil))
}

// seal claims the reply path. It reports whether the caller won it and
// whether an implicit ACCEPT is still owed.
func (r *Response) seal() (first bool, needAccept bool) {
	r.Lock()
	defer r.Unlock()
	if r.sent {
		return false, false
	}
	r.sent = true
	needAccept = !r.accepted
	r.accepted = true
	r.acceptTimer.Stop()
	r.responseTimer.Stop()
	return true, needAccept
}

func (r *Response) autoAccept() {
	r.Lock()
	if r.accepted || r.sent {
		r.Unlock()
		return
	}
	r.accepted = true
	r.Unlock()
	r.log.Info("auto-accepting request", r.correlationID, "for RPC", r.name)
	r.sendMessage(r.message(deepstream.ActionAccept, nil))
}

func (r *Response) expire() {
	first, _ := r.seal()
	if !first {
		return
	}
	r.log.Warning("provider for RPC", r.name, "never replied to", r.correlationID)
	r.sendMessage(r.message(deepstream.ActionRequestError, deepstream.EventResponseTimeout))
}

func (r *Response) message(action string, data interface{}) deepstream.Message {
	return deepstream.Message{
		Topic:         deepstream.TopicRPC,
		Action:        action,
		Name:          r.name,
		Data:          data,
		CorrelationID: r.correlationID,
	}
}

func (r *Response) sendMessage(message deepstream.Message) {
	if err := r.conn.SendMessage(message); err != nil {
		r.log.Error("send error:", err, "action:", message.Action, "name:", r.name)
	}
}
