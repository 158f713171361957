package network

import (
	"log"
	"net"
	"sort"
	"sync"
	"time"

	"keyrelay/internal/protocol"
)

// registerWindow bounds the clock skew accepted on a Register timestamp
const registerWindow = 30 * time.Second

// UDPReceiver is the desktop-side listener for gate command datagrams.
// Only sources that registered with the API token are served. Commands from
// each gate are delivered in sequence order; duplicates and datagrams
// overtaken by a newer one are dropped.
type UDPReceiver struct {
	port  int
	token string
	conn  *net.UDPConn
	done  chan struct{}

	// OnCommand is called for each accepted command, on the read goroutine.
	// from is the device name the gate registered with.
	OnCommand func(from string, cmd protocol.Command)

	// Authorize, if set, decides whether a registered device may send
	// commands. It is consulted on register and on every command.
	Authorize func(device string) bool

	gatesMu sync.Mutex
	gates   map[string]*udpGate
}

type udpGate struct {
	device     string
	registered int64 // timestamp of the accepted Register
	lastSeq    uint32
	lastSeen   time.Time
}

// NewUDPReceiver creates a receiver bound to port (0 picks a free port).
// With a non-empty token every packet must carry its MAC.
func NewUDPReceiver(port int, token string) *UDPReceiver {
	return &UDPReceiver{
		port:  port,
		token: token,
		done:  make(chan struct{}),
		gates: make(map[string]*udpGate),
	}
}

// Start binds the socket and begins receiving.
func (r *UDPReceiver) Start() error {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: r.port})
	if err != nil {
		return err
	}
	r.conn = conn
	conn.SetReadBuffer(1 << 16)

	log.Printf("UDP Receiver: Listening on :%d", r.Port())

	go r.readLoop()
	go r.cleanupLoop()
	return nil
}

// Port returns the bound port
func (r *UDPReceiver) Port() int {
	if r.conn == nil {
		return r.port
	}
	return r.conn.LocalAddr().(*net.UDPAddr).Port
}

func (r *UDPReceiver) readLoop() {
	buf := make([]byte, protocol.MaxUDPPacketSize)
	for {
		n, remote, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-r.done:
				return
			default:
				continue
			}
		}

		pkt, err := protocol.OpenUDPPacket(buf[:n], r.token)
		if err != nil {
			continue
		}
		r.handlePacket(pkt, remote)
	}
}

func (r *UDPReceiver) handlePacket(pkt *protocol.UDPPacket, remote *net.UDPAddr) {
	key := remote.String()

	switch pkt.Type {
	case protocol.UDPPacketRegister:
		if !r.register(key, pkt) {
			return
		}
		ack, _ := protocol.EncodeUDPPacket(&protocol.UDPPacket{
			Type:      protocol.UDPPacketAck,
			Timestamp: time.Now().UnixMilli(),
		})
		r.conn.WriteToUDP(ack, remote)

	case protocol.UDPPacketCommand:
		device, ok := r.accept(key, pkt.Seq)
		if !ok {
			return
		}
		if r.Authorize != nil && !r.Authorize(device) {
			return
		}
		if r.OnCommand != nil {
			r.OnCommand(device, protocol.NewCommand(pkt.Name, pkt.Args))
		}
	}
}

// register records key as a gate. Gates re-register periodically; a
// register with seq 0 starts a new sequence (gate restarted). Stale or
// replayed registers and unauthorized devices are refused.
func (r *UDPReceiver) register(key string, pkt *protocol.UDPPacket) bool {
	if pkt.Name == "" {
		return false
	}
	skew := time.Since(time.UnixMilli(pkt.Timestamp))
	if r.token != "" && (skew > registerWindow || skew < -registerWindow) {
		log.Printf("UDP Receiver: Refusing register from %s, timestamp off by %s", key, skew.Round(time.Second))
		return false
	}
	if r.Authorize != nil && !r.Authorize(pkt.Name) {
		log.Printf("UDP Receiver: Device '%s' at %s is not authorized", pkt.Name, key)
		return false
	}

	r.gatesMu.Lock()
	defer r.gatesMu.Unlock()
	prev, exists := r.gates[key]
	if exists && r.token != "" && pkt.Timestamp <= prev.registered {
		if pkt.Timestamp == prev.registered && pkt.Name == prev.device {
			// Retry of the register we already accepted; ack again
			return true
		}
		return false
	}
	g := &udpGate{device: pkt.Name, registered: pkt.Timestamp, lastSeq: pkt.Seq, lastSeen: time.Now()}
	if exists && prev.device == pkt.Name {
		if pkt.Seq != 0 {
			g.lastSeq = max(prev.lastSeq, pkt.Seq)
		}
	} else {
		log.Printf("UDP Receiver: Gate '%s' registered from %s", pkt.Name, key)
	}
	r.gates[key] = g
	return true
}

// accept reports whether seq is newer than anything delivered from key and
// returns the registered device name. Unregistered sources are dropped.
func (r *UDPReceiver) accept(key string, seq uint32) (string, bool) {
	r.gatesMu.Lock()
	defer r.gatesMu.Unlock()

	g, ok := r.gates[key]
	if !ok {
		return "", false
	}
	g.lastSeen = time.Now()
	if seq <= g.lastSeq {
		return "", false
	}
	g.lastSeq = seq
	return g.device, true
}

// cleanupLoop forgets gates that stopped re-registering.
func (r *UDPReceiver) cleanupLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.gatesMu.Lock()
			for key, g := range r.gates {
				if time.Since(g.lastSeen) > 30*time.Second {
					log.Printf("UDP Receiver: Removing stale gate '%s' (%s)", g.device, key)
					delete(r.gates, key)
				}
			}
			r.gatesMu.Unlock()
		case <-r.done:
			return
		}
	}
}

// Gates returns the device names of registered gates
func (r *UDPReceiver) Gates() []string {
	r.gatesMu.Lock()
	defer r.gatesMu.Unlock()
	names := make([]string, 0, len(r.gates))
	for _, g := range r.gates {
		names = append(names, g.device)
	}
	sort.Strings(names)
	return names
}

// Stop shuts down the receiver.
func (r *UDPReceiver) Stop() {
	select {
	case <-r.done:
		return
	default:
	}
	close(r.done)
	if r.conn != nil {
		r.conn.Close()
	}
}
