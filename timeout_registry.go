package deepstream

import (
	"sync"
	"time"

	"github.com/op/go-logging"
)

// TimeoutRegistry arms one timer per outbound message awaiting a matching
// inbound acknowledgement. Entries are keyed by message identity: action plus
// correlation id when the message carries one, action plus name otherwise.
// The window is derived from the armed event, configured once at
// construction. When a timer expires the registry emits a synthetic message
// whose Action is the armed event and whose Name, CorrelationID and
// OriginalAction identify the message it was armed for.
type TimeoutRegistry struct {
	sync.Mutex
	timeouts Timeouts
	onExpiry func(Message)
	timers   map[string]*timeoutEntry
	log      *logging.Logger
	stopped  bool
}

type timeoutEntry struct {
	event   string
	message Message
	timer   *time.Timer
}

func NewTimeoutRegistry(timeouts Timeouts, onExpiry func(Message), log *logging.Logger) *TimeoutRegistry {
	return &TimeoutRegistry{
		timeouts: timeouts,
		onExpiry: onExpiry,
		timers:   map[string]*timeoutEntry{},
		log:      log,
	}
}

func timerKey(message Message) string {
	if message.CorrelationID != "" {
		return message.Action + "/" + message.CorrelationID
	}
	return message.Action + "/" + message.Name
}

func (r *TimeoutRegistry) duration(event string) time.Duration {
	switch event {
	case EventAcceptTimeout:
		return r.timeouts.RPC.Accept
	case EventResponseTimeout:
		return r.timeouts.RPC.Response
	}
	return r.timeouts.Ack
}

// Add arms a timer for an outbound message. Arming a second timer for the
// same message identity replaces the first; this is how the accept window
// hands over to the response window for one REQUEST.
func (r *TimeoutRegistry) Add(event string, message Message) {
	key := timerKey(message)
	r.Lock()
	defer r.Unlock()
	if r.stopped {
		return
	}
	if old, armed := r.timers[key]; armed {
		old.timer.Stop()
	}
	entry := &timeoutEntry{event: event, message: message}
	entry.timer = time.AfterFunc(r.duration(event), func() {
		r.expire(key, entry)
	})
	r.timers[key] = entry
}

// Remove cancels the timer armed for a message with the same identity as the
// one passed to Add. Removing an unknown or already expired entry is a
// no-op, never an error.
func (r *TimeoutRegistry) Remove(message Message) {
	key := timerKey(message)
	r.Lock()
	defer r.Unlock()
	if entry, armed := r.timers[key]; armed {
		entry.timer.Stop()
		delete(r.timers, key)
	}
}

// Len reports how many timers are currently armed.
func (r *TimeoutRegistry) Len() int {
	r.Lock()
	defer r.Unlock()
	return len(r.timers)
}

// Stop cancels every armed timer and rejects further arming. Expiries
// already in flight find their entry gone and are dropped.
func (r *TimeoutRegistry) Stop() {
	r.Lock()
	defer r.Unlock()
	r.stopped = true
	for key, entry := range r.timers {
		entry.timer.Stop()
		delete(r.timers, key)
	}
}

func (r *TimeoutRegistry) expire(key string, entry *timeoutEntry) {
	r.Lock()
	current, armed := r.timers[key]
	if !armed || current != entry {
		//	removed, replaced or stopped while this expiry was queued
		r.Unlock()
		return
	}
	delete(r.timers, key)
	onExpiry := r.onExpiry
	r.Unlock()

	r.log.Debug("timeout", entry.event, "for", key)
	onExpiry(Message{
		Topic:          entry.message.Topic,
		Action:         entry.event,
		Name:           entry.message.Name,
		CorrelationID:  entry.message.CorrelationID,
		OriginalAction: entry.message.Action,
	})
}
