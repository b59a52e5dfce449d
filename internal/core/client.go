package core

import (
	"sync"
	"sync/atomic"
	"time"
)

// State is the lifecycle stage of a connection.
type State int32

const (
	StateConnecting State = iota
	StateConnected
	StateRegistered
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateRegistered:
		return "registered"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// DefaultEventBuffer is the Events capacity used when none is given.
const DefaultEventBuffer = 64

// Client is one live connection as seen by the core layer.
//
// Events is closed when the client is closed; the transport stops writing then.
type Client struct {
	ID       string
	Commands chan *Command
	Events   chan *Event

	mu       sync.Mutex
	closed   bool
	state    State
	userID   int64
	name     string
	pinned   int64
	done     chan struct{}
	stopped  chan struct{}
	lastSeen atomic.Int64
}

// NewClient constructs a client with initialized channels.
func NewClient(id string, buffer int) *Client {
	if buffer <= 0 {
		buffer = DefaultEventBuffer
	}
	c := &Client{
		ID:       id,
		Commands: make(chan *Command, 16),
		Events:   make(chan *Event, buffer),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	c.Touch()
	return c
}

// Pin restricts the connection to userID. Used for token authenticated sockets.
func (c *Client) Pin(userID int64) {
	c.mu.Lock()
	c.pinned = userID
	c.mu.Unlock()
}

// PinnedUser returns the pinned user, if any.
func (c *Client) PinnedUser() (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pinned, c.pinned != 0
}

// Submit queues cmd for the hub. It returns false once the client is closed.
func (c *Client) Submit(cmd *Command) bool {
	c.Touch()
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.Commands <- cmd:
		return true
	case <-c.done:
		return false
	}
}

// Send queues ev without blocking. A full buffer or a closed client drops the event.
func (c *Client) Send(ev *Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.Events <- ev:
		return true
	default:
		return false
	}
}

// Close marks the client disconnected and closes Events. Safe to call more than once.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.state = StateDisconnected
	close(c.done)
	close(c.Events)
}

// Done is closed when the client is closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	if !c.closed {
		c.state = s
	}
	c.mu.Unlock()
}

// User returns the registered user id and display name.
func (c *Client) User() (int64, string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID, c.name, c.state == StateRegistered
}

func (c *Client) setUser(userID int64, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.userID = userID
	c.name = name
	c.state = StateRegistered
}

// Touch records inbound activity.
func (c *Client) Touch() {
	c.lastSeen.Store(time.Now().UnixNano())
}

// LastSeen returns the time of the last inbound activity.
func (c *Client) LastSeen() time.Time {
	return time.Unix(0, c.lastSeen.Load())
}
