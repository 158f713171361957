package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandIsImmutable(t *testing.T) {
	args := map[string]any{"enabled": true}
	cmd := NewCommand(CallSetInterceptVolume, args)

	args["enabled"] = false
	got := cmd.Args()
	assert.Equal(t, true, got["enabled"])

	got["enabled"] = "mutated"
	assert.Equal(t, true, cmd.Args()["enabled"])
}

func TestCommandWithoutArgs(t *testing.T) {
	cmd := NewCommand(CmdVolumeUp, nil)
	assert.Nil(t, cmd.Args())

	data, err := json.Marshal(cmd.Message())
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"command","name":"volume_up"}`, string(data))
}

func TestIntArg(t *testing.T) {
	args := map[string]any{"a": float64(5), "b": -3, "c": 1.5, "d": "7"}

	v, ok := IntArg(args, "a")
	assert.True(t, ok)
	assert.Equal(t, 5, v)

	v, ok = IntArg(args, "b")
	assert.True(t, ok)
	assert.Equal(t, -3, v)

	_, ok = IntArg(args, "c")
	assert.False(t, ok, "fractional numbers are rejected")

	_, ok = IntArg(args, "d")
	assert.False(t, ok)

	_, ok = IntArg(args, "missing")
	assert.False(t, ok)
}

func TestBoolArg(t *testing.T) {
	_, ok := BoolArg(map[string]any{"enabled": "yes"}, "enabled")
	assert.False(t, ok)

	v, ok := BoolArg(map[string]any{"enabled": true}, "enabled")
	assert.True(t, ok)
	assert.True(t, v)
}

func TestResultMessage(t *testing.T) {
	msg := ResultMessage("abc", NotImplemented("unknown_action"))
	assert.Equal(t, TypeResult, msg.Type)
	assert.Equal(t, "abc", msg.ID)

	r := ResultFromMessage(msg)
	assert.Equal(t, StatusNotImplemented, r.Status)
	assert.False(t, r.IsOK())
}

func TestUDPCommandPacket(t *testing.T) {
	data, err := EncodeUDPPacket(&UDPPacket{
		Type:      UDPPacketCommand,
		Seq:       42,
		Timestamp: 1700000000000,
		Name:      CallMovePointer,
		Args:      map[string]any{"dx": 5, "dy": -3},
	})
	require.NoError(t, err)

	pkt, err := DecodeUDPPacket(data)
	require.NoError(t, err)
	assert.Equal(t, UDPPacketCommand, pkt.Type)
	assert.Equal(t, uint32(42), pkt.Seq)
	assert.Equal(t, int64(1700000000000), pkt.Timestamp)
	assert.Equal(t, CallMovePointer, pkt.Name)
	assert.Equal(t, float64(5), pkt.Args["dx"])
	assert.Equal(t, float64(-3), pkt.Args["dy"])
}

func TestUDPCommandWithoutArgs(t *testing.T) {
	data, err := EncodeUDPPacket(&UDPPacket{Type: UDPPacketCommand, Seq: 1, Name: CmdPowerDown})
	require.NoError(t, err)
	assert.Len(t, data, UDPHeaderSize+1+len(CmdPowerDown)+2)

	pkt, err := DecodeUDPPacket(data)
	require.NoError(t, err)
	assert.Equal(t, CmdPowerDown, pkt.Name)
	assert.Nil(t, pkt.Args)
}

func TestUDPAckPacket(t *testing.T) {
	data, err := EncodeUDPPacket(&UDPPacket{Type: UDPPacketAck})
	require.NoError(t, err)
	assert.Len(t, data, UDPHeaderSize)

	pkt, err := DecodeUDPPacket(data)
	require.NoError(t, err)
	assert.Equal(t, UDPPacketAck, pkt.Type)
}

func TestUDPRegisterCarriesDevice(t *testing.T) {
	data, err := EncodeUDPPacket(&UDPPacket{Type: UDPPacketRegister, Timestamp: 7, Name: "phone"})
	require.NoError(t, err)
	assert.Len(t, data, UDPHeaderSize+1+len("phone"))

	pkt, err := DecodeUDPPacket(data)
	require.NoError(t, err)
	assert.Equal(t, UDPPacketRegister, pkt.Type)
	assert.Equal(t, "phone", pkt.Name)
}

func TestUDPSealedPackets(t *testing.T) {
	cmd := &UDPPacket{Type: UDPPacketCommand, Seq: 3, Name: CmdVolumeUp, Args: map[string]any{"n": 1}}
	data, err := SealUDPPacket(cmd, "secret")
	require.NoError(t, err)

	pkt, err := OpenUDPPacket(data, "secret")
	require.NoError(t, err)
	assert.Equal(t, CmdVolumeUp, pkt.Name)
	assert.Equal(t, uint32(3), pkt.Seq)

	_, err = OpenUDPPacket(data, "other")
	assert.ErrorIs(t, err, ErrBadMAC, "wrong token")

	tampered := append([]byte(nil), data...)
	tampered[1] ^= 0xff
	_, err = OpenUDPPacket(tampered, "secret")
	assert.ErrorIs(t, err, ErrBadMAC, "tampered header")

	plain, err := EncodeUDPPacket(cmd)
	require.NoError(t, err)
	_, err = OpenUDPPacket(plain, "secret")
	assert.ErrorIs(t, err, ErrBadMAC, "unsigned packet")

	// Without a token the trailer is not checked
	_, err = OpenUDPPacket(data, "")
	assert.NoError(t, err)

	reg, err := SealUDPPacket(&UDPPacket{Type: UDPPacketRegister, Name: "phone"}, "secret")
	require.NoError(t, err)
	pkt, err = OpenUDPPacket(reg, "secret")
	require.NoError(t, err)
	assert.Equal(t, "phone", pkt.Name)
}

func TestUDPDecodeErrors(t *testing.T) {
	_, err := DecodeUDPPacket([]byte{0x01, 0x00})
	assert.ErrorIs(t, err, ErrPacketTooShort)

	bad := make([]byte, UDPHeaderSize)
	bad[0] = 0x7f
	_, err = DecodeUDPPacket(bad)
	assert.ErrorIs(t, err, ErrUnknownPacket)

	truncated := make([]byte, UDPHeaderSize+2)
	truncated[0] = UDPPacketCommand
	truncated[UDPHeaderSize] = 10 // claims a 10 byte name
	_, err = DecodeUDPPacket(truncated)
	assert.ErrorIs(t, err, ErrMalformedPayload)
}
