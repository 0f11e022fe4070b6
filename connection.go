package deepstream

import (
	"sync"
)

// Connection delivers protocol messages to the remote peer. Sends are
// fire-and-forget: a non-nil error means the message could not be handed to
// the transport, not that the peer rejected it.
type Connection interface {
	SendMessage(message Message) error
}

// PipeConnection is one end of an in-process duplex message link. Inbound
// messages are delivered on a single goroutine per end, so each receiver
// observes them serialized and asynchronously, the way a real connection
// delivers them.
type PipeConnection struct {
	sync.Mutex
	peer      *PipeConnection
	onMessage func(Message)
	queue     chan Message
	done      chan struct{}
	closed    bool
}

// Pipe returns two connected ends. A message sent on one end is delivered to
// the receiver registered on the other.
func Pipe() (*PipeConnection, *PipeConnection) {
	a := &PipeConnection{queue: make(chan Message, 128), done: make(chan struct{})}
	b := &PipeConnection{queue: make(chan Message, 128), done: make(chan struct{})}
	a.peer, b.peer = b, a
	go a.deliver()
	go b.deliver()
	return a, b
}

// OnMessage registers the receiver for messages sent by the peer.
func (c *PipeConnection) OnMessage(fn func(Message)) {
	c.Lock()
	c.onMessage = fn
	c.Unlock()
}

func (c *PipeConnection) SendMessage(message Message) error {
	c.Lock()
	closed := c.closed
	c.Unlock()
	c.peer.Lock()
	peerClosed := c.peer.closed
	c.peer.Unlock()
	if closed || peerClosed {
		return ErrShutdown
	}
	select {
	case c.peer.queue <- message:
		return nil
	case <-c.peer.done:
		return ErrShutdown
	}
}

// Close stops delivery on this end. The peer's sends fail afterwards.
func (c *PipeConnection) Close() {
	c.Lock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
	c.Unlock()
}

func (c *PipeConnection) deliver() {
	for {
		select {
		case message := <-c.queue:
			c.Lock()
			fn := c.onMessage
			c.Unlock()
			if fn != nil {
				fn(message)
			}
		case <-c.done:
			return
		}
	}
}
