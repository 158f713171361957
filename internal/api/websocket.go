package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"keyrelay/internal/protocol"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var (
	errGateGone    = errors.New("gate disconnected")
	errNotApproved = errors.New("device not approved")
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow all origins as this is a local network tool
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSManager is the hub of connected gates
type WSManager struct {
	server     *Server
	clients    map[*WebSocketClient]bool
	clientsMu  sync.RWMutex
	register   chan *WebSocketClient
	unregister chan *WebSocketClient
	shutdown   chan struct{}
	stopOnce   sync.Once
}

// WebSocketClient represents a connected gate
type WebSocketClient struct {
	manager *WSManager
	conn    *websocket.Conn
	send    chan []byte
	ip      string
	gone    chan struct{}

	mu      sync.Mutex
	device  string
	state   DeviceState // set by hello
	pending map[string]chan protocol.Result
}

func newWSManager(s *Server) *WSManager {
	return &WSManager{
		server:     s,
		clients:    make(map[*WebSocketClient]bool),
		register:   make(chan *WebSocketClient),
		unregister: make(chan *WebSocketClient),
		shutdown:   make(chan struct{}),
	}
}

func (m *WSManager) start() {
	for {
		select {
		case client := <-m.register:
			m.clientsMu.Lock()
			m.clients[client] = true
			total := len(m.clients)
			m.clientsMu.Unlock()
			log.Printf("WS: New gate connected from %s. Total gates: %d", client.ip, total)

		case client := <-m.unregister:
			m.remove(client)

		case <-m.shutdown:
			m.clientsMu.Lock()
			for client := range m.clients {
				delete(m.clients, client)
				close(client.send)
				close(client.gone)
			}
			m.clientsMu.Unlock()
			return
		}
	}
}

func (m *WSManager) remove(client *WebSocketClient) {
	m.clientsMu.Lock()
	defer m.clientsMu.Unlock()
	if _, ok := m.clients[client]; ok {
		delete(m.clients, client)
		close(client.send)
		close(client.gone)
		log.Printf("WS: Gate '%s' disconnected. Total gates: %d", client.name(), len(m.clients))
	}
}

func (m *WSManager) stop() {
	m.stopOnce.Do(func() { close(m.shutdown) })
}

func (m *WSManager) count() int {
	m.clientsMu.RLock()
	defer m.clientsMu.RUnlock()
	return len(m.clients)
}

func (m *WSManager) snapshot() []*WebSocketClient {
	m.clientsMu.RLock()
	defer m.clientsMu.RUnlock()
	out := make([]*WebSocketClient, 0, len(m.clients))
	for c := range m.clients {
		out = append(out, c)
	}
	return out
}

// approvedSnapshot returns the clients that said hello as approved devices
func (m *WSManager) approvedSnapshot() []*WebSocketClient {
	clients := m.snapshot()
	out := clients[:0]
	for _, c := range clients {
		if c.approved() {
			out = append(out, c)
		}
	}
	return out
}

func (m *WSManager) gates() []string {
	clients := m.approvedSnapshot()
	names := make([]string, 0, len(clients))
	for _, c := range clients {
		names = append(names, c.name())
	}
	sort.Strings(names)
	return names
}

// deviceChanged applies an approval decision to connected clients of name
func (m *WSManager) deviceChanged(name string, state DeviceState) {
	for _, c := range m.snapshot() {
		c.mu.Lock()
		match := c.device == name
		was := c.state
		if match {
			c.state = state
		}
		c.mu.Unlock()
		if !match {
			continue
		}

		switch {
		case state == DeviceBlocked:
			c.refuse("device blocked")
		case state == DeviceApproved && was != DeviceApproved:
			log.Printf("WS: Gate '%s' approved", name)
			m.replayPolicy(c)
		}
	}
}

// replayPolicy sends the current policy; a gate starts with interception off
func (m *WSManager) replayPolicy(c *WebSocketClient) {
	if enabled, ok := m.server.Policy(); ok {
		m.sendTo(c, protocol.Message{
			Type: protocol.TypeCall,
			ID:   uuid.NewString(),
			Name: protocol.CallSetInterceptVolume,
			Args: map[string]any{"enabled": enabled},
		})
	}
}

// sendTo queues a message for one client. It never blocks; a full queue
// drops the message.
func (m *WSManager) sendTo(c *WebSocketClient, msg protocol.Message) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("WS: Failed to marshal %s message: %v", msg.Type, err)
		return false
	}

	m.clientsMu.RLock()
	defer m.clientsMu.RUnlock()
	if !m.clients[c] {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		log.Printf("WS: Send queue full for '%s', dropping %s", c.name(), msg.Type)
		return false
	}
}

// CallAll invokes name on every connected gate and waits for their results
// until ctx is done. Results are keyed by gate name.
func (m *WSManager) CallAll(ctx context.Context, name string, args map[string]any) map[string]protocol.Result {
	clients := m.approvedSnapshot()

	type reply struct {
		gate string
		res  protocol.Result
	}
	replies := make(chan reply, len(clients))
	for _, c := range clients {
		go func(c *WebSocketClient) {
			replies <- reply{gate: c.name(), res: m.call(ctx, c, name, args)}
		}(c)
	}

	results := make(map[string]protocol.Result, len(clients))
	for range clients {
		r := <-replies
		key := r.gate
		for i := 2; ; i++ {
			if _, dup := results[key]; !dup {
				break
			}
			key = r.gate + "#" + strconv.Itoa(i)
		}
		results[key] = r.res
	}
	return results
}

func (m *WSManager) call(ctx context.Context, c *WebSocketClient, name string, args map[string]any) protocol.Result {
	id := uuid.NewString()
	ch := c.expect(id)
	defer c.forget(id)

	if !m.sendTo(c, protocol.Message{Type: protocol.TypeCall, ID: id, Name: name, Args: args}) {
		return protocol.Failed(errGateGone)
	}

	select {
	case res := <-ch:
		return res
	case <-c.gone:
		return protocol.Failed(errGateGone)
	case <-ctx.Done():
		return protocol.Failed(ctx.Err())
	}
}

func (m *WSManager) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WS: Failed to upgrade connection: %v", err)
		return
	}

	client := &WebSocketClient{
		manager: m,
		conn:    conn,
		send:    make(chan []byte, 256),
		ip:      r.RemoteAddr,
		gone:    make(chan struct{}),
		pending: make(map[string]chan protocol.Result),
	}

	select {
	case m.register <- client:
	case <-m.shutdown:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (c *WebSocketClient) name() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device != "" {
		return c.device
	}
	return c.ip
}

func (c *WebSocketClient) approved() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == DeviceApproved
}

// refuse closes the connection with a policy violation; readPump then
// unregisters the client.
func (c *WebSocketClient) refuse(reason string) {
	log.Printf("WS: Closing gate '%s': %s", c.name(), reason)
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason),
		time.Now().Add(time.Second))
	c.conn.Close()
}

func (c *WebSocketClient) expect(id string) chan protocol.Result {
	ch := make(chan protocol.Result, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()
	return ch
}

func (c *WebSocketClient) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *WebSocketClient) resolve(id string, res protocol.Result) bool {
	c.mu.Lock()
	ch, ok := c.pending[id]
	delete(c.pending, id)
	c.mu.Unlock()
	if ok {
		ch <- res
	}
	return ok
}

// readPump reads the gate's messages and handles them in arrival order.
func (c *WebSocketClient) readPump() {
	defer func() {
		select {
		case c.manager.unregister <- c:
		case <-c.manager.shutdown:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WS: Read error: %v", err)
			}
			break
		}
		// Any traffic proves the gate is alive
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		c.handleMessage(message)
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(50 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WebSocketClient) handleMessage(data []byte) {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("WS: Invalid message format: %v", err)
		return
	}

	m := c.manager
	switch msg.Type {
	case protocol.TypeHello:
		device, _ := msg.Args[protocol.HelloDevice].(string)
		if device == "" {
			device = c.ip
		}
		state := m.server.devices.Check(device)
		c.mu.Lock()
		c.device = device
		c.state = state
		c.mu.Unlock()
		log.Printf("WS: Gate '%s' said hello from %s (%s)", device, c.ip, state)

		switch state {
		case DeviceBlocked:
			c.refuse("device blocked")
		case DeviceApproved:
			m.replayPolicy(c)
		}

	case protocol.TypeCommand:
		if !c.approved() {
			log.Printf("WS: Dropping '%s' from unapproved gate '%s'", msg.Name, c.name())
			return
		}
		m.server.Dispatch(c.name(), protocol.NewCommand(msg.Name, msg.Args))

	case protocol.TypeCall:
		res := protocol.Failed(errNotApproved)
		if c.approved() {
			res = m.server.host.Invoke(msg.Name, msg.Args)
		}
		m.sendTo(c, protocol.ResultMessage(msg.ID, res))

	case protocol.TypeResult:
		res := protocol.ResultFromMessage(msg)
		if !c.resolve(msg.ID, res) && !res.IsOK() {
			log.Printf("WS: Gate '%s' answered %s: %s", c.name(), res.Status, res.Err)
		}

	default:
		log.Printf("WS: Ignoring message type '%s' from '%s'", msg.Type, c.name())
	}
}
