// Package gate decides, per physical key event, whether the event is consumed
// locally and relayed as a named command or left to the OS default handling.
package gate

import (
	"log"

	"keyrelay/internal/channel"
	"keyrelay/internal/protocol"
)

// KeyCode identifies a hardware key the gate understands
type KeyCode int

const (
	KeyUnknown KeyCode = iota
	KeyVolumeUp
	KeyVolumeDown
	KeyPower
)

func (k KeyCode) String() string {
	switch k {
	case KeyVolumeUp:
		return "VOLUME_UP"
	case KeyVolumeDown:
		return "VOLUME_DOWN"
	case KeyPower:
		return "POWER"
	default:
		return "UNKNOWN"
	}
}

// Phase is the key transition
type Phase int

const (
	PhaseDown Phase = iota
	PhaseUp
)

func (p Phase) String() string {
	if p == PhaseUp {
		return "UP"
	}
	return "DOWN"
}

// KeyEvent is a single hardware key transition delivered by the OS input layer
type KeyEvent struct {
	Code  KeyCode
	Phase Phase
}

// KeyHandler is the capability the host input wiring calls. The returned
// flag tells the caller whether default OS handling must be suppressed.
type KeyHandler interface {
	OnKeyDown(code KeyCode) bool
	OnKeyUp(code KeyCode) bool
}

// Gate applies the interception policy and emits commands for consumed keys
type Gate struct {
	policy *Policy
	out    channel.Sender
}

// New creates a gate emitting on out. A nil policy means gated mode with
// interception disabled.
func New(policy *Policy, out channel.Sender) *Gate {
	if policy == nil {
		policy = NewPolicy(VolumeGated)
	}
	return &Gate{policy: policy, out: out}
}

// Policy returns the gate's policy
func (g *Gate) Policy() *Policy { return g.policy }

// OnKeyDown handles a key press
func (g *Gate) OnKeyDown(code KeyCode) bool {
	switch code {
	case KeyPower:
		g.emit(protocol.CmdPowerDown)
		return true
	case KeyVolumeUp:
		if g.policy.InterceptsVolume() {
			g.emit(protocol.CmdVolumeUp)
			return true
		}
	case KeyVolumeDown:
		if g.policy.InterceptsVolume() {
			g.emit(protocol.CmdVolumeDown)
			return true
		}
	}
	return false
}

// OnKeyUp handles a key release. Only POWER releases are consumed.
func (g *Gate) OnKeyUp(code KeyCode) bool {
	if code == KeyPower {
		g.emit(protocol.CmdPowerUp)
		return true
	}
	return false
}

// Handle dispatches ev by phase
func (g *Gate) Handle(ev KeyEvent) bool {
	if ev.Phase == PhaseUp {
		return g.OnKeyUp(ev.Code)
	}
	return g.OnKeyDown(ev.Code)
}

// SetPolicy overwrites the volume interception flag. Events already
// dispatched are unaffected.
func (g *Gate) SetPolicy(enabled bool) {
	g.policy.SetInterceptVolume(enabled)
	log.Printf("Gate: volume interception enabled=%v (mode %s)", enabled, g.policy.Mode())
}

// HandleCall is the inbound call handler for the gate's channel
func (g *Gate) HandleCall(name string, args map[string]any) protocol.Result {
	switch name {
	case protocol.CallSetInterceptVolume:
		enabled, ok := protocol.BoolArg(args, "enabled")
		if !ok {
			return protocol.InvalidArgs("setInterceptVolume requires boolean 'enabled'")
		}
		g.SetPolicy(enabled)
		return protocol.OK()
	default:
		return protocol.NotImplemented(name)
	}
}

func (g *Gate) emit(name string) {
	if g.out == nil {
		return
	}
	g.out.Send(protocol.NewCommand(name, nil))
}
