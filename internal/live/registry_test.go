package live

import (
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ringer-im/server/internal/domain"
)

type fakeConn struct {
	mu     sync.Mutex
	frames [][]byte
	fail   bool
	closed bool
}

func (c *fakeConn) ReadMessage() (int, []byte, error) { return 0, nil, io.EOF }

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("broken pipe")
	}
	if messageType == websocket.TextMessage {
		c.frames = append(c.frames, append([]byte(nil), data...))
	}
	return nil
}

func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) frameCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

// decoded splits received frames into responses and events.
func (c *fakeConn) decoded(t *testing.T) ([]Response, []Event) {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()

	var responses []Response
	var events []Event
	for _, frame := range c.frames {
		var head struct {
			MsgType string `json:"msgType"`
		}
		require.NoError(t, json.Unmarshal(frame, &head))
		switch head.MsgType {
		case msgTypeResponse:
			var resp Response
			require.NoError(t, json.Unmarshal(frame, &resp))
			responses = append(responses, resp)
		case msgTypeEvent:
			var ev Event
			require.NoError(t, json.Unmarshal(frame, &ev))
			events = append(events, ev)
		default:
			t.Fatalf("unexpected msgType %q", head.MsgType)
		}
	}
	return responses, events
}

type transition struct {
	identity string
	online   bool
}

func TestAttachDetachTransitions(t *testing.T) {
	r := NewRegistry()

	var mu sync.Mutex
	var transitions []transition
	r.SetPresenceNotifier(func(identity string, online bool) {
		mu.Lock()
		transitions = append(transitions, transition{identity, online})
		mu.Unlock()
	})

	h1 := NewHandle("alice", &fakeConn{})
	h2 := NewHandle("alice", &fakeConn{})

	assert.True(t, r.Attach(h1), "first session must report presence transition")
	assert.False(t, r.Attach(h2), "second session must not")
	assert.True(t, r.IsPresent("alice"))

	assert.False(t, r.Detach(h1), "closing one of two sessions is not a transition")
	assert.True(t, r.IsPresent("alice"))
	assert.True(t, r.Detach(h2), "closing the last session is")
	assert.False(t, r.IsPresent("alice"))

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []transition{{"alice", true}, {"alice", false}}, transitions)
}

func TestDetachIsIdempotent(t *testing.T) {
	r := NewRegistry()
	h := NewHandle("alice", &fakeConn{})

	r.Attach(h)
	assert.True(t, r.Detach(h))
	assert.False(t, r.Detach(h), "double detach must be a no-op")
}

func TestBroadcastOncePerHandle(t *testing.T) {
	r := NewRegistry()

	phone := &fakeConn{}
	laptop := &fakeConn{}
	r.Attach(NewHandle("alice", phone))
	r.Attach(NewHandle("alice", laptop))

	// duplicate target must not duplicate delivery
	r.Broadcast([]string{"alice", "alice"}, NewEvent(EventUserTyping, nil))

	assert.Equal(t, 1, phone.frameCount(), "each device receives the event exactly once")
	assert.Equal(t, 1, laptop.frameCount())
}

func TestBroadcastSkipsNonTargets(t *testing.T) {
	r := NewRegistry()

	bob := &fakeConn{}
	carol := &fakeConn{}
	r.Attach(NewHandle("bob", bob))
	r.Attach(NewHandle("carol", carol))

	r.Broadcast([]string{"bob"}, NewEvent(EventDeleteMessage, nil))

	assert.Equal(t, 1, bob.frameCount())
	assert.Zero(t, carol.frameCount())
}

func TestBroadcastFailureDetachesHandle(t *testing.T) {
	r := NewRegistry()

	broken := &fakeConn{fail: true}
	h := NewHandle("bob", broken)
	r.Attach(h)

	r.Broadcast([]string{"bob"}, NewEvent(EventNewMessage, nil))

	assert.False(t, r.IsPresent("bob"), "failed send must detach")
	broken.mu.Lock()
	defer broken.mu.Unlock()
	assert.True(t, broken.closed)
}

func TestPresenceOf(t *testing.T) {
	r := NewRegistry()
	r.Attach(NewHandle("alice", &fakeConn{}))

	presence := r.PresenceOf([]string{"alice", "bob"})
	require.Equal(t, []domain.Presence{
		{Identity: "alice", Online: true},
		{Identity: "bob", Online: false},
	}, presence)
}
