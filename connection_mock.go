package deepstream

import (
	"sync"
	"testing"
	"time"
)

// MockConnection records every message handed to it. Tests drive inbound
// traffic by calling the handler's Handle directly.
type MockConnection struct {
	sync.Mutex
	messages []Message
	//	when set, SendMessage fails with this error instead of recording
	SendErr error
}

func (c *MockConnection) SendMessage(message Message) error {
	c.Lock()
	defer c.Unlock()
	if c.SendErr != nil {
		return c.SendErr
	}
	c.messages = append(c.messages, message)
	return nil
}

func (c *MockConnection) Sent() []Message {
	c.Lock()
	defer c.Unlock()
	sent := make([]Message, len(c.messages))
	copy(sent, c.messages)
	return sent
}

func (c *MockConnection) SentCount() int {
	c.Lock()
	defer c.Unlock()
	return len(c.messages)
}

func (c *MockConnection) LastSent() (message Message, ok bool) {
	c.Lock()
	defer c.Unlock()
	if len(c.messages) == 0 {
		return
	}
	return c.messages[len(c.messages)-1], true
}

func (c *MockConnection) Reset() {
	c.Lock()
	defer c.Unlock()
	c.messages = nil
}

// TrueBefore polls pred until it returns true or the deadline passes.
func TrueBefore(t *testing.T, pred func() bool, deadline time.Time) {
	for time.Now().Before(deadline) {
		if pred() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not true before deadline")
}
