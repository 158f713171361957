package network

import (
	"errors"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"keyrelay/internal/protocol"
)

// commandRedundancy is how many copies of each command datagram are sent;
// the receiver drops the duplicates by sequence number.
const commandRedundancy = 2

// ErrUDPBlocked is returned when the desktop never acknowledges a register
// packet: the path is blocked, the token is wrong or the device is refused.
var ErrUDPBlocked = errors.New("udp: no ack from desktop")

// UDPSender is the gate-side low-latency command path. It registers with the
// desktop, re-registers every few seconds so a restarted desktop picks it up
// again, and sends each command with an increasing sequence number.
type UDPSender struct {
	hostAddr string
	token    string
	device   string
	conn     *net.UDPConn
	seq      uint32 // atomic, monotonically increasing
	done     chan struct{}
	stopOnce sync.Once
}

// NewUDPSender creates a sender for the desktop at hostAddr ("ip:port").
// device names the gate at registration; token signs every packet.
func NewUDPSender(hostAddr, token, device string) *UDPSender {
	return &UDPSender{
		hostAddr: hostAddr,
		token:    token,
		device:   device,
		done:     make(chan struct{}),
	}
}

// Start connects the socket and registers with the desktop. It returns
// ErrUDPBlocked when no Ack arrives, in which case the caller should fall
// back to WebSocket.
func (s *UDPSender) Start() error {
	hostUDP, err := net.ResolveUDPAddr("udp", s.hostAddr)
	if err != nil {
		return err
	}

	conn, err := net.DialUDP("udp", nil, hostUDP)
	if err != nil {
		return err
	}
	s.conn = conn

	if !s.register() {
		conn.Close()
		return ErrUDPBlocked
	}

	go s.keepaliveLoop()
	return nil
}

// register sends register packets and waits for an Ack.
func (s *UDPSender) register() bool {
	buf := make([]byte, protocol.MaxUDPPacketSize)
	for attempt := 0; attempt < 3; attempt++ {
		s.sendControl(protocol.UDPPacketRegister)

		s.conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
		n, err := s.conn.Read(buf)
		if err != nil {
			continue // timeout or error, retry
		}
		resp, err := protocol.DecodeUDPPacket(buf[:n])
		if err != nil {
			continue
		}
		if resp.Type == protocol.UDPPacketAck {
			s.conn.SetReadDeadline(time.Time{})
			log.Printf("UDP Sender: desktop replied with Ack (attempt %d), UDP path is open", attempt+1)
			return true
		}
	}
	log.Printf("UDP Sender: no Ack received after 3 attempts, UDP path blocked")
	return false
}

// keepaliveLoop re-registers every 5 s. The desktop forgets gates it has
// not heard from in 30 s.
func (s *UDPSender) keepaliveLoop() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sendControl(protocol.UDPPacketRegister)
		case <-s.done:
			return
		}
	}
}

func (s *UDPSender) sendControl(pktType uint8) {
	pkt := &protocol.UDPPacket{
		Type:      pktType,
		Timestamp: time.Now().UnixMilli(),
	}
	if pktType == protocol.UDPPacketRegister {
		pkt.Seq = atomic.LoadUint32(&s.seq)
		pkt.Name = s.device
	}
	data, err := protocol.SealUDPPacket(pkt, s.token)
	if err != nil {
		return
	}
	s.conn.Write(data)
}

// Send encodes cmd as a datagram. Fire-and-forget; ordering is restored on
// the receiving side by sequence number.
func (s *UDPSender) Send(cmd protocol.Command) {
	if s.conn == nil {
		return
	}
	data, err := protocol.SealUDPPacket(&protocol.UDPPacket{
		Type:      protocol.UDPPacketCommand,
		Seq:       atomic.AddUint32(&s.seq, 1),
		Timestamp: time.Now().UnixMilli(),
		Name:      cmd.Name(),
		Args:      cmd.Args(),
	}, s.token)
	if err != nil {
		log.Printf("UDP Sender: cannot encode '%s': %v", cmd.Name(), err)
		return
	}
	for i := 0; i < commandRedundancy; i++ {
		if _, err := s.conn.Write(data); err != nil {
			log.Printf("UDP Sender: write failed: %v", err)
			return
		}
	}
}

// Stop shuts down the sender.
func (s *UDPSender) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		if s.conn != nil {
			s.conn.Close()
		}
	})
}
