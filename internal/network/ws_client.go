package network

import (
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"keyrelay/internal/channel"
	"keyrelay/internal/protocol"

	"github.com/gorilla/websocket"
)

const (
	wsSendBuffer     = 256
	wsReconnectDelay = 5 * time.Second
)

// WSClient is the gate's WebSocket connection to the desktop. It satisfies
// channel.Sender: commands are queued in order and written by one goroutine.
type WSClient struct {
	hostAddr string
	token    string
	device   string
	version  string

	send chan protocol.Message
	done chan struct{}

	// OnCall handles inbound calls from the desktop (e.g. setInterceptVolume)
	OnCall channel.Handler

	// OnConnect is invoked after each successful connection
	OnConnect func()

	mu          sync.Mutex
	isConnected bool
	closeOnce   sync.Once
}

// NewWSClient creates a new WebSocket client
func NewWSClient(hostAddr, token, device, version string) *WSClient {
	return &WSClient{
		hostAddr: hostAddr,
		token:    token,
		device:   device,
		version:  version,
		send:     make(chan protocol.Message, wsSendBuffer),
		done:     make(chan struct{}),
	}
}

// Start begins the client loop (connect & process)
func (c *WSClient) Start() {
	go c.loop()
}

func (c *WSClient) loop() {
	for {
		c.connect()

		// If connect returns, it means we disconnected. Wait a bit and retry.
		select {
		case <-c.done:
			return
		case <-time.After(wsReconnectDelay):
			log.Println("WS Client: Attempting reconnection...")
		}
	}
}

func (c *WSClient) connect() {
	u := url.URL{Scheme: "ws", Host: c.hostAddr, Path: "/ws"}
	log.Printf("WS Client: Connecting to %s", u.String())

	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), header)
	if err != nil {
		log.Printf("WS Client: Connection failed: %v", err)
		return
	}
	defer conn.Close()

	// Drop anything queued while we were offline; stale key presses must not
	// replay on the desktop.
	c.drain()

	c.mu.Lock()
	c.isConnected = true
	c.mu.Unlock()

	log.Println("WS Client: Connected to desktop")

	c.enqueue(protocol.Message{
		Type: protocol.TypeHello,
		Args: map[string]any{
			protocol.HelloDevice:  c.device,
			protocol.HelloVersion: c.version,
		},
	})
	if c.OnConnect != nil {
		c.OnConnect()
	}

	connDone := make(chan struct{})
	stopWrite := make(chan struct{})
	go func() {
		defer close(connDone)
		c.writePump(conn, stopWrite)
	}()

	c.readPump(conn)

	c.mu.Lock()
	c.isConnected = false
	c.mu.Unlock()

	close(stopWrite)
	<-connDone
}

func (c *WSClient) readPump(conn *websocket.Conn) {
	conn.SetReadLimit(4096)
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error { conn.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WS Client: Read error: %v", err)
			}
			return
		}

		var msg protocol.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("WS Client: Invalid message: %v", err)
			continue
		}

		c.handleMessage(msg)
	}
}

func (c *WSClient) writePump(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(30 * time.Second) // Ping ticker
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.send:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("WS Client: Write error: %v", err)
				conn.Close()
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}

		case <-stop:
			return

		case <-c.done:
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			conn.Close()
			return
		}
	}
}

func (c *WSClient) handleMessage(msg protocol.Message) {
	switch msg.Type {
	case protocol.TypeCall:
		res := protocol.NotImplemented(msg.Name)
		if c.OnCall != nil {
			res = c.OnCall(msg.Name, msg.Args)
		}
		log.Printf("WS Client: call '%s' -> %s", msg.Name, res.Status)
		c.enqueue(protocol.ResultMessage(msg.ID, res))

	case protocol.TypeResult:
		if !protocol.ResultFromMessage(msg).IsOK() {
			log.Printf("WS Client: desktop rejected %s: %s", msg.ID, msg.Error)
		}

	default:
		log.Printf("WS Client: ignoring message type '%s'", msg.Type)
	}
}

// Send queues a command for the desktop. It never blocks: commands are
// dropped while disconnected or when the queue is full.
func (c *WSClient) Send(cmd protocol.Command) {
	if !c.IsConnected() {
		log.Printf("WS Client: not connected, dropping '%s'", cmd.Name())
		return
	}
	c.enqueue(cmd.Message())
}

func (c *WSClient) enqueue(msg protocol.Message) {
	select {
	case c.send <- msg:
	default:
		log.Printf("WS Client: send queue full, dropping %s '%s'", msg.Type, msg.Name)
	}
}

func (c *WSClient) drain() {
	for {
		select {
		case <-c.send:
		default:
			return
		}
	}
}

// IsConnected returns true if client is connected to the desktop
func (c *WSClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isConnected
}

// Close stops the client
func (c *WSClient) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}
