package channel

import (
	"log"
	"sync"

	"keyrelay/internal/protocol"
)

// Loopback is an in-process ordered sender. Commands are queued and delivered
// to the sink on a single goroutine, so Send never blocks on the sink and
// delivery order equals Send order.
type Loopback struct {
	sink func(protocol.Command)

	mu     sync.Mutex
	queue  chan protocol.Command
	closed bool
	done   chan struct{}
}

// NewLoopback starts a loopback delivering to sink with the given queue size
func NewLoopback(sink func(protocol.Command), size int) *Loopback {
	if size <= 0 {
		size = 64
	}
	l := &Loopback{
		sink:  sink,
		queue: make(chan protocol.Command, size),
		done:  make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *Loopback) run() {
	defer close(l.done)
	for cmd := range l.queue {
		l.sink(cmd)
	}
}

// Send queues cmd; when the queue is full the command is dropped
func (l *Loopback) Send(cmd protocol.Command) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	select {
	case l.queue <- cmd:
	default:
		log.Printf("Loopback: queue full, dropping '%s'", cmd.Name())
	}
}

// Close stops accepting commands and waits until queued ones are delivered
func (l *Loopback) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	close(l.queue)
	l.mu.Unlock()
	<-l.done
}
