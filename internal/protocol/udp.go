package protocol

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"errors"
)

// UDP Packet types
const (
	UDPPacketCommand  uint8 = 0x01
	UDPPacketRegister uint8 = 0x10 // Gate -> Desktop: also sent periodically as the keepalive
	UDPPacketAck      uint8 = 0x12 // Desktop -> Gate: confirms UDP path is open
)

// Header: [type(1)] [seq(4)] [timestamp(8)] = 13 bytes
const UDPHeaderSize = 13

// UDPMACSize is the length of the HMAC-SHA256 trailer on sealed packets
const UDPMACSize = sha256.Size

// MaxUDPPacketSize bounds a single datagram; commands are tiny
const MaxUDPPacketSize = 1024

var (
	ErrPacketTooShort   = errors.New("udp: packet too short")
	ErrUnknownPacket    = errors.New("udp: unknown packet type")
	ErrNameTooLong      = errors.New("udp: command name too long")
	ErrPayloadTooLarge  = errors.New("udp: payload too large")
	ErrMalformedPayload = errors.New("udp: malformed command payload")
	ErrBadMAC           = errors.New("udp: missing or invalid mac")
)

// UDPPacket is a command datagram for low-latency UDP transport.
//
// Wire format per type:
//
//	Command   (0x01): header + nameLen(uint8) + name + argsLen(uint16) + argsJSON
//	Register  (0x10): header + nameLen(uint8) + device name
//	Ack       (0x12): header only
//
// A Register's Seq is the last command seq the gate sent.
//
// A sealed packet is followed by HMAC-SHA256(token, everything before it).
type UDPPacket struct {
	Type      uint8
	Seq       uint32
	Timestamp int64
	Name      string // command name, or the device name of a Register
	Args      map[string]any
}

// EncodeUDPPacket serializes a UDPPacket to wire format.
func EncodeUDPPacket(pkt *UDPPacket) ([]byte, error) {
	return encodeUDP(pkt, 0)
}

// SealUDPPacket encodes pkt and appends its MAC under token. With an empty
// token it is the same as EncodeUDPPacket.
func SealUDPPacket(pkt *UDPPacket, token string) ([]byte, error) {
	if token == "" {
		return EncodeUDPPacket(pkt)
	}
	buf, err := encodeUDP(pkt, UDPMACSize)
	if err != nil {
		return nil, err
	}
	body := len(buf) - UDPMACSize
	copy(buf[body:], udpMAC(token, buf[:body]))
	return buf, nil
}

func encodeUDP(pkt *UDPPacket, trailer int) ([]byte, error) {
	var args []byte
	switch pkt.Type {
	case UDPPacketCommand, UDPPacketRegister:
		if len(pkt.Name) > 255 {
			return nil, ErrNameTooLong
		}
	}
	if pkt.Type == UDPPacketCommand && len(pkt.Args) > 0 {
		var err error
		if args, err = json.Marshal(pkt.Args); err != nil {
			return nil, err
		}
	}

	size := UDPHeaderSize
	switch pkt.Type {
	case UDPPacketCommand:
		size += 1 + len(pkt.Name) + 2 + len(args)
	case UDPPacketRegister:
		size += 1 + len(pkt.Name)
	}
	if size+trailer > MaxUDPPacketSize {
		return nil, ErrPayloadTooLarge
	}

	buf := make([]byte, size+trailer)
	buf[0] = pkt.Type
	binary.BigEndian.PutUint32(buf[1:5], pkt.Seq)
	binary.BigEndian.PutUint64(buf[5:13], uint64(pkt.Timestamp))

	p := buf[UDPHeaderSize:]
	switch pkt.Type {
	case UDPPacketCommand:
		p[0] = uint8(len(pkt.Name))
		n := copy(p[1:], pkt.Name)
		binary.BigEndian.PutUint16(p[1+n:3+n], uint16(len(args)))
		copy(p[3+n:], args)
	case UDPPacketRegister:
		p[0] = uint8(len(pkt.Name))
		copy(p[1:], pkt.Name)
	}

	return buf, nil
}

// DecodeUDPPacket deserializes wire bytes into a UDPPacket. A MAC trailer,
// if any, is ignored.
func DecodeUDPPacket(data []byte) (*UDPPacket, error) {
	pkt, _, err := decodeUDP(data)
	return pkt, err
}

// OpenUDPPacket decodes data and, when token is set, requires a valid MAC
// trailer.
func OpenUDPPacket(data []byte, token string) (*UDPPacket, error) {
	pkt, n, err := decodeUDP(data)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return pkt, nil
	}
	if len(data)-n != UDPMACSize || !hmac.Equal(data[n:], udpMAC(token, data[:n])) {
		return nil, ErrBadMAC
	}
	return pkt, nil
}

// decodeUDP returns the packet and the length of its body
func decodeUDP(data []byte) (*UDPPacket, int, error) {
	if len(data) < UDPHeaderSize {
		return nil, 0, ErrPacketTooShort
	}

	pkt := &UDPPacket{
		Type:      data[0],
		Seq:       binary.BigEndian.Uint32(data[1:5]),
		Timestamp: int64(binary.BigEndian.Uint64(data[5:13])),
	}

	p := data[UDPHeaderSize:]
	n := UDPHeaderSize
	switch pkt.Type {
	case UDPPacketCommand:
		if len(p) < 1 {
			return nil, 0, ErrMalformedPayload
		}
		nameLen := int(p[0])
		if len(p) < 1+nameLen+2 {
			return nil, 0, ErrMalformedPayload
		}
		pkt.Name = string(p[1 : 1+nameLen])
		argsLen := int(binary.BigEndian.Uint16(p[1+nameLen : 3+nameLen]))
		rest := p[3+nameLen:]
		if len(rest) < argsLen {
			return nil, 0, ErrMalformedPayload
		}
		if argsLen > 0 {
			if err := json.Unmarshal(rest[:argsLen], &pkt.Args); err != nil {
				return nil, 0, ErrMalformedPayload
			}
		}
		n += 3 + nameLen + argsLen
	case UDPPacketRegister:
		if len(p) < 1 || len(p) < 1+int(p[0]) {
			return nil, 0, ErrMalformedPayload
		}
		pkt.Name = string(p[1 : 1+int(p[0])])
		n += 1 + int(p[0])
	case UDPPacketAck:
		// no payload
	default:
		return nil, 0, ErrUnknownPacket
	}

	return pkt, n, nil
}

func udpMAC(token string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(token))
	mac.Write(body)
	return mac.Sum(nil)
}
