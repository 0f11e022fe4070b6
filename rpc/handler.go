package rpc

/*
*	RPC layer of the client: provider registry, outbound-call correlation
*	and the two-phase (accept, response) timeout protocol.
 */

import (
	"context"
	"fmt"
	"sync"

	"github.com/golang/groupcache/lru"
	"github.com/op/go-logging"
	uuid "github.com/satori/go.uuid"

	deepstream "github.com/aduycuong/deepstream-client-go"
)

// Provider handles one inbound request for a procedure this process
// registered. It may reply through response from any goroutine, exactly
// once.
type Provider func(data interface{}, response *Response)

// ResponseCallback receives a call's completion. err is nil on success and
// carries a *deepstream.RPCError on every protocol-level failure.
type ResponseCallback func(err error, result interface{})

//	redelivered inbound requests within this window are dropped
const dispatchedCacheSize = 512

type pendingCall struct {
	name          string
	correlationID string
	accepted      bool
	//	exactly one of callback / call is set, chosen at Make/Go time
	callback ResponseCallback
	call     *Call
}

func (entry *pendingCall) complete(err error, result interface{}) {
	if entry.callback != nil {
		entry.callback(err, result)
		return
	}
	entry.call.Error = err
	entry.call.Result = result
	entry.call.finish()
}

// Handler owns the provider table and the outbound-call table for one
// connection. All table mutations are serialized by its mutex; inbound
// messages and synthetic timer events both enter through Handle. Completion
// sinks and providers run with the lock released, so they may call back into
// the handler.
type Handler struct {
	sync.Mutex
	conn       deepstream.Connection
	timeouts   deepstream.Timeouts
	registry   *deepstream.TimeoutRegistry
	log        *logging.Logger
	instance   string
	providers  map[string]Provider
	calls      map[string]*pendingCall
	dispatched *lru.Cache
	stopped    bool
}

func NewHandler(conn deepstream.Connection, timeoutsOverride *deepstream.Timeouts, log *logging.Logger) *Handler {
	timeouts := deepstream.DefaultTimeouts()
	if timeoutsOverride != nil {
		timeouts = *timeoutsOverride
	}
	handler := &Handler{
		conn:       conn,
		timeouts:   timeouts,
		log:        log,
		instance:   uuid.NewV4().String(),
		providers:  map[string]Provider{},
		calls:      map[string]*pendingCall{},
		dispatched: lru.New(dispatchedCacheSize),
	}
	handler.registry = deepstream.NewTimeoutRegistry(timeouts, handler.Handle, log)
	return handler
}

// Provide registers provider for name and announces it to the peer. At most
// one provider per name; a second registration fails with
// *deepstream.AlreadyRegisteredError before anything is sent.
func (h *Handler) Provide(name string, provider Provider) error {
	if name == "" {
		return deepstream.ErrInvalidName
	}
	if provider == nil {
		return deepstream.ErrInvalidProvider
	}
	h.Lock()
	if h.stopped {
		h.Unlock()
		return deepstream.ErrShutdown
	}
	if _, registered := h.providers[name]; registered {
		h.Unlock()
		return &deepstream.AlreadyRegisteredError{Name: name}
	}
	h.providers[name] = provider
	h.Unlock()

	message := deepstream.Message{Topic: deepstream.TopicRPC, Action: deepstream.ActionProvide, Name: name}
	h.registry.Add(deepstream.EventAckTimeout, message)
	return h.send(message)
}

// Unprovide withdraws the provider for name. Unproviding a name that is not
// registered is a no-op: nothing is sent and no timer is armed.
func (h *Handler) Unprovide(name string) error {
	if name == "" {
		return deepstream.ErrInvalidName
	}
	h.Lock()
	if h.stopped {
		h.Unlock()
		return deepstream.ErrShutdown
	}
	if _, registered := h.providers[name]; !registered {
		h.Unlock()
		return nil
	}
	delete(h.providers, name)
	h.Unlock()

	message := deepstream.Message{Topic: deepstream.TopicRPC, Action: deepstream.ActionUnprovide, Name: name}
	h.registry.Add(deepstream.EventAckTimeout, message)
	return h.send(message)
}

// Make invokes a remote procedure and delivers the completion through cb,
// exactly once.
func (h *Handler) Make(name string, data interface{}, cb ResponseCallback) error {
	if cb == nil {
		return deepstream.ErrInvalidCallback
	}
	_, err := h.start(name, data, cb, nil)
	return err
}

// Go invokes a remote procedure and returns a deferred-result handle. done
// is strobed with the handle when the call completes; if nil, a fresh
// buffered channel is allocated. An unbuffered done panics.
func (h *Handler) Go(name string, data interface{}, done chan *Call) (*Call, error) {
	if done == nil {
		done = make(chan *Call, 10)
	} else if cap(done) == 0 {
		h.log.Panic("rpc: done channel is unbuffered")
	}
	call := &Call{Name: name, Data: data, Done: done}
	if _, err := h.start(name, data, nil, call); err != nil {
		return nil, err
	}
	return call, nil
}

// Call invokes a remote procedure and blocks until completion or until ctx
// is cancelled. Cancellation abandons the wait only; the call itself is
// finalized later by a response or a timeout.
func (h *Handler) Call(ctx context.Context, name string, data interface{}) (interface{}, error) {
	call, err := h.Go(name, data, make(chan *Call, 1))
	if err != nil {
		return nil, err
	}
	select {
	case done := <-call.Done:
		return done.Result, done.Error
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *Handler) start(name string, data interface{}, cb ResponseCallback, call *Call) (*pendingCall, error) {
	if name == "" {
		return nil, deepstream.ErrInvalidName
	}
	correlationID, err := deepstream.Rand128Base62()
	if err != nil {
		return nil, err
	}
	if call != nil {
		call.CorrelationID = correlationID
	}
	entry := &pendingCall{
		name:          name,
		correlationID: correlationID,
		callback:      cb,
		call:          call,
	}
	h.Lock()
	if h.stopped {
		h.Unlock()
		return nil, deepstream.ErrShutdown
	}
	h.calls[correlationID] = entry
	h.Unlock()

	message := deepstream.Message{
		Topic:         deepstream.TopicRPC,
		Action:        deepstream.ActionRequest,
		Name:          name,
		Data:          data,
		CorrelationID: correlationID,
	}
	h.registry.Add(deepstream.EventAcceptTimeout, message)
	//	a failed send is not fatal: the accept timer reaps the entry
	h.send(message)
	return entry, nil
}

// Handle is the single entry point for every RPC-topic message delivered by
// the connection, and for the synthetic timeout events the registry emits.
func (h *Handler) Handle(message deepstream.Message) {
	switch message.Action {
	case deepstream.ActionRequest:
		h.handleRequest(message)
	case deepstream.ActionProvideAck:
		h.registry.Remove(deepstream.Message{Topic: deepstream.TopicRPC, Action: deepstream.ActionProvide, Name: message.Name})
	case deepstream.ActionUnprovideAck:
		h.registry.Remove(deepstream.Message{Topic: deepstream.TopicRPC, Action: deepstream.ActionUnprovide, Name: message.Name})
	case deepstream.ActionAccept:
		h.handleAccept(message)
	case deepstream.ActionResponse:
		if !h.finalize(message.CorrelationID, nil, message.Data) {
			h.unknownCorrelation(message)
		}
	case deepstream.ActionRequestError:
		err := &deepstream.RPCError{Event: deepstream.ActionRequestError, Message: text(message.Data), Data: message.Data}
		if !h.finalize(message.CorrelationID, err, nil) {
			h.unknownCorrelation(message)
		}
	case deepstream.ActionReject:
		//	the remote end had no provider; the accept timer finalizes the call
		h.log.Info("request", message.CorrelationID, "for RPC", message.Name, "rejected by remote")
	case deepstream.EventAcceptTimeout, deepstream.EventResponseTimeout:
		h.handleTimeout(message)
	case deepstream.EventAckTimeout:
		h.log.Warning("no acknowledgement received for", message.OriginalAction, message.Name)
	case deepstream.ActionPermissionError, deepstream.ActionMessageDenied:
		h.handleDenial(message)
	default:
		if message.CorrelationID != "" {
			h.unknownCorrelation(message)
		} else {
			h.log.Warning("unsolicited RPC message:", message.Action, message.Name)
		}
	}
}

// Stop cancels every armed timer, fails all pending calls with ErrShutdown
// and rejects further use. Called when the connection is lost for good.
func (h *Handler) Stop() {
	h.Lock()
	if h.stopped {
		h.Unlock()
		return
	}
	h.stopped = true
	pending := h.calls
	h.calls = map[string]*pendingCall{}
	h.providers = map[string]Provider{}
	h.Unlock()

	h.registry.Stop()
	for _, entry := range pending {
		entry.complete(deepstream.ErrShutdown, nil)
	}
}

func (h *Handler) handleRequest(message deepstream.Message) {
	h.Lock()
	if h.stopped {
		h.Unlock()
		return
	}
	provider, registered := h.providers[message.Name]
	if !registered {
		h.Unlock()
		h.send(deepstream.Message{
			Topic:         deepstream.TopicRPC,
			Action:        deepstream.ActionReject,
			Name:          message.Name,
			CorrelationID: message.CorrelationID,
		})
		return
	}
	if message.CorrelationID != "" {
		if _, seen := h.dispatched.Get(message.CorrelationID); seen {
			h.Unlock()
			h.log.Info("dropping redelivered request", message.CorrelationID, "for RPC", message.Name)
			return
		}
		h.dispatched.Add(message.CorrelationID, nil)
	}
	h.Unlock()

	response := newResponse(h.conn, h.timeouts, message.Name, message.CorrelationID, h.log)
	provider(message.Data, response)
}

func (h *Handler) handleAccept(message deepstream.Message) {
	h.Lock()
	entry, pending := h.calls[message.CorrelationID]
	if !pending || entry.accepted {
		h.Unlock()
		h.log.Info("ignoring accept for", message.CorrelationID)
		return
	}
	entry.accepted = true
	h.Unlock()

	request := deepstream.Message{
		Topic:         deepstream.TopicRPC,
		Action:        deepstream.ActionRequest,
		Name:          entry.name,
		CorrelationID: entry.correlationID,
	}
	h.registry.Remove(request)
	h.registry.Add(deepstream.EventResponseTimeout, request)
}

func (h *Handler) handleTimeout(message deepstream.Message) {
	h.Lock()
	entry, pending := h.calls[message.CorrelationID]
	if !pending {
		h.Unlock()
		return
	}
	//	an accepted call outlived its accept timer, a never-accepted call
	//	cannot fail with RESPONSE_TIMEOUT
	if (message.Action == deepstream.EventAcceptTimeout && entry.accepted) ||
		(message.Action == deepstream.EventResponseTimeout && !entry.accepted) {
		h.Unlock()
		return
	}
	delete(h.calls, message.CorrelationID)
	h.Unlock()

	entry.complete(&deepstream.RPCError{Event: message.Action}, nil)
}

func (h *Handler) handleDenial(message deepstream.Message) {
	switch message.OriginalAction {
	case deepstream.ActionProvide, deepstream.ActionUnprovide:
		h.registry.Remove(deepstream.Message{Topic: deepstream.TopicRPC, Action: message.OriginalAction, Name: message.Name})
		h.log.Warning(message.Action, "for", message.OriginalAction, message.Name+":", text(message.Data))
	case deepstream.ActionRequest:
		err := &deepstream.RPCError{Event: message.Action, Message: text(message.Data), Data: message.Data}
		if !h.finalize(message.CorrelationID, err, nil) {
			h.unknownCorrelation(message)
		}
	default:
		h.log.Warning(message.Action, "for unknown action", message.OriginalAction, message.Name)
	}
}

// finalize pops the table entry for a correlation id and fires its
// completion sink. The pop is what makes completion exactly-once: any later
// message bearing the same id finds no entry and falls through to the
// unknown-correlation branch.
func (h *Handler) finalize(correlationID string, err error, result interface{}) bool {
	h.Lock()
	entry, pending := h.calls[correlationID]
	if pending {
		delete(h.calls, correlationID)
	}
	h.Unlock()
	if !pending {
		return false
	}
	h.registry.Remove(deepstream.Message{
		Topic:         deepstream.TopicRPC,
		Action:        deepstream.ActionRequest,
		Name:          entry.name,
		CorrelationID: correlationID,
	})
	entry.complete(err, result)
	return true
}

func (h *Handler) send(message deepstream.Message) error {
	err := h.conn.SendMessage(message)
	if err != nil {
		h.log.Error("send error:", err, "action:", message.Action, "name:", message.Name)
	}
	return err
}

func (h *Handler) unknownCorrelation(message deepstream.Message) {
	h.log.Errorf("%s: %s %s correlationId=%s instance=%s",
		deepstream.EventUnknownCorrelationID, message.Action, message.Name, message.CorrelationID, h.instance)
}

func text(data interface{}) string {
	switch payload := data.(type) {
	case nil:
		return ""
	case string:
		return payload
	default:
		return fmt.Sprintf("%v", payload)
	}
}
