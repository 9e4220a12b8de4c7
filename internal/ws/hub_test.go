package ws

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakeConn struct {
	mu       sync.Mutex
	messages []string
	failing  bool
	closed   bool
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failing {
		return errors.New("broken pipe")
	}
	c.messages = append(c.messages, string(data))
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) received() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.messages...)
}

func TestHub_SendToUsers(t *testing.T) {
	hub := NewHub(zap.NewNop())
	go hub.Run()

	alice := &fakeConn{}
	bob := &fakeConn{}
	hub.Register <- NewClient("alice", alice)
	hub.Register <- NewClient("bob", bob)

	hub.SendToUsers(map[string]string{"type": "chat"}, "alice")
	hub.Broadcast(map[string]string{"type": "all"})

	assert.Eventually(t, func() bool { return len(alice.received()) == 2 }, time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return len(bob.received()) == 1 }, time.Second, 10*time.Millisecond)
	assert.JSONEq(t, `{"type":"chat"}`, alice.received()[0])
	assert.JSONEq(t, `{"type":"all"}`, bob.received()[0])
	assert.True(t, hub.Online("alice"))
}

func TestHub_DropsBrokenConnections(t *testing.T) {
	hub := NewHub(zap.NewNop())
	go hub.Run()

	broken := &fakeConn{failing: true}
	hub.Register <- NewClient("carol", broken)
	hub.SendToUsers("ping", "carol")

	assert.Eventually(t, func() bool { return !hub.Online("carol") }, time.Second, 10*time.Millisecond)
	assert.True(t, broken.isClosed())
}

func TestHub_Unregister(t *testing.T) {
	hub := NewHub(zap.NewNop())
	go hub.Run()

	conn := &fakeConn{}
	client := NewClient("dave", conn)
	hub.Register <- client
	hub.Unregister <- client

	assert.Eventually(t, func() bool { return !hub.Online("dave") }, time.Second, 10*time.Millisecond)
}

// stuckConn blocks every write until it is closed.
type stuckConn struct {
	once    sync.Once
	release chan struct{}
}

func (c *stuckConn) WriteMessage(int, []byte) error {
	<-c.release
	return errors.New("closed")
}

func (c *stuckConn) Close() error {
	c.once.Do(func() { close(c.release) })
	return nil
}

func TestHub_SlowClientDoesNotStallOthers(t *testing.T) {
	hub := NewHub(zap.NewNop())
	go hub.Run()

	stuck := &stuckConn{release: make(chan struct{})}
	fast := &fakeConn{}
	hub.Register <- NewClient("erin", stuck)
	hub.Register <- NewClient("erin", fast)

	total := sendQueueSize + 5
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 1; i <= total; i++ {
			hub.SendToUsers(i, "erin")
			want := i
			assert.Eventually(t, func() bool { return len(fast.received()) == want }, time.Second, time.Millisecond)
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("deliveries stalled behind a stuck connection")
	}
	assert.Len(t, fast.received(), total)
	assert.True(t, hub.Online("erin"))
	assert.Eventually(t, func() bool {
		select {
		case <-stuck.release:
			return true
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond, "stuck connection should be dropped")
}
