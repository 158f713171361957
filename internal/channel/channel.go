// Package channel provides the transport-agnostic named-message channel used
// between the key gate and a remote command consumer.
package channel

import (
	"fmt"
	"log"
	"sync"

	"keyrelay/internal/protocol"
)

// Sender delivers outbound commands. Send is fire-and-forget and must not
// block; implementations preserve the order in which Send is called.
type Sender interface {
	Send(cmd protocol.Command)
}

// Handler processes an inbound call and reports its outcome
type Handler func(name string, args map[string]any) protocol.Result

// SenderFunc adapts a function to the Sender interface
type SenderFunc func(cmd protocol.Command)

// Send calls f(cmd)
func (f SenderFunc) Send(cmd protocol.Command) { f(cmd) }

// Channel pairs an outbound Sender with the single inbound handler
type Channel struct {
	out Sender

	mu      sync.RWMutex
	handler Handler
}

// New creates a channel sending through out
func New(out Sender) *Channel {
	return &Channel{out: out}
}

// Send forwards cmd to the underlying transport
func (c *Channel) Send(cmd protocol.Command) {
	if c.out == nil {
		return
	}
	c.out.Send(cmd)
}

// OnReceive registers the handler for inbound calls, replacing any previous one
func (c *Channel) OnReceive(h Handler) {
	c.mu.Lock()
	c.handler = h
	c.mu.Unlock()
}

// Receive dispatches an inbound call to the registered handler
func (c *Channel) Receive(name string, args map[string]any) protocol.Result {
	c.mu.RLock()
	h := c.handler
	c.mu.RUnlock()

	if h == nil {
		return protocol.NotImplemented(name)
	}
	return invoke(h, name, args)
}

// invoke runs h, turning a panic into an error result so a misbehaving
// handler cannot take the receiver down.
func invoke(h Handler, name string, args map[string]any) (res protocol.Result) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Channel: handler for '%s' panicked: %v", name, r)
			res = protocol.Failed(fmt.Errorf("handler panic: %v", r))
		}
	}()
	return h(name, args)
}

// Router dispatches inbound calls by name
type Router struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRouter creates an empty router
func NewRouter() *Router {
	return &Router{handlers: make(map[string]Handler)}
}

// Handle registers h for name
func (r *Router) Handle(name string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
}

// Dispatch routes a call; unknown names yield a not-implemented result
func (r *Router) Dispatch(name string, args map[string]any) protocol.Result {
	r.mu.RLock()
	h, ok := r.handlers[name]
	r.mu.RUnlock()

	if !ok {
		log.Printf("Channel: no handler for '%s'", name)
		return protocol.NotImplemented(name)
	}
	return invoke(h, name, args)
}
