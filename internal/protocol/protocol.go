// Package protocol defines the named-command wire format shared by the gate
// and the desktop.
package protocol

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// TypeCommand is a fire-and-forget command (gate -> desktop)
	TypeCommand MessageType = "command"

	// TypeCall is a request that expects a TypeResult reply carrying the same ID
	TypeCall MessageType = "call"

	// TypeResult answers a TypeCall
	TypeResult MessageType = "result"

	// TypeHello is sent by the gate right after connecting
	TypeHello MessageType = "hello"
)

// Outbound command names emitted by the gate
const (
	CmdVolumeUp   = "volume_up"
	CmdVolumeDown = "volume_down"
	CmdPowerDown  = "power_down"
	CmdPowerUp    = "power_up"

	// CmdMediaControl drives the desktop media player. Args: {"action": MediaPlayPause, ...}
	CmdMediaControl = "media_control"
)

// Media actions carried by CmdMediaControl and CallMediaControl
const (
	MediaPlayPause = "play_pause"
	MediaPlay      = "play"
	MediaPause     = "pause"
	MediaNext      = "next"
	MediaPrevious  = "previous"
	MediaStop      = "stop"
)

// IsMediaAction reports whether action is one of the media actions
func IsMediaAction(action string) bool {
	switch action {
	case MediaPlayPause, MediaPlay, MediaPause, MediaNext, MediaPrevious, MediaStop:
		return true
	}
	return false
}

// Inbound call names
const (
	// CallSetInterceptVolume updates the gate's interception policy. Args: {"enabled": bool}
	CallSetInterceptVolume = "setInterceptVolume"

	// CallMovePointer is the desktop entry point for relative pointer movement. Args: {"dx": int, "dy": int}
	CallMovePointer = "movePointer"

	// CallMediaControl is the desktop entry point for media keys. Args: {"action": string}
	CallMediaControl = "mediaControl"
)

// Status is the outcome of a call
type Status string

const (
	StatusOK             Status = "ok"
	StatusNotImplemented Status = "not_implemented"
	StatusInvalidArgs    Status = "invalid_args"
	StatusError          Status = "error"
)

// Message is the generic container for all WebSocket messages
type Message struct {
	Type   MessageType    `json:"type"`
	ID     string         `json:"id,omitempty"`
	Name   string         `json:"name,omitempty"`
	Args   map[string]any `json:"args,omitempty"`
	Status Status         `json:"status,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// HelloPayload keys carried in a TypeHello message's Args
const (
	HelloDevice  = "device"
	HelloVersion = "version"
)

// Command is a named action with optional arguments. A Command is immutable:
// NewCommand copies the args it is given and Args returns a copy.
type Command struct {
	name string
	args map[string]any
}

// NewCommand builds a Command, copying args
func NewCommand(name string, args map[string]any) Command {
	return Command{name: name, args: copyArgs(args)}
}

// Name returns the command name
func (c Command) Name() string { return c.name }

// Args returns a copy of the command arguments (nil when there are none)
func (c Command) Args() map[string]any { return copyArgs(c.args) }

// Message converts the command into its wire envelope
func (c Command) Message() Message {
	return Message{Type: TypeCommand, Name: c.name, Args: copyArgs(c.args)}
}

func copyArgs(args map[string]any) map[string]any {
	if len(args) == 0 {
		return nil
	}
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = v
	}
	return out
}

// Result is the outcome of an inbound call
type Result struct {
	Status Status
	Err    string
}

// OK returns a successful result
func OK() Result { return Result{Status: StatusOK} }

// NotImplemented is returned for names the receiver does not know. It is a
// soft failure so either side can evolve the protocol independently.
func NotImplemented(name string) Result {
	return Result{Status: StatusNotImplemented, Err: "not implemented: " + name}
}

// InvalidArgs is returned when a known call carries malformed arguments
func InvalidArgs(reason string) Result {
	return Result{Status: StatusInvalidArgs, Err: reason}
}

// Failed wraps an execution error
func Failed(err error) Result {
	return Result{Status: StatusError, Err: err.Error()}
}

// IsOK reports whether the call succeeded
func (r Result) IsOK() bool { return r.Status == StatusOK }

// ResultMessage builds the reply envelope for a call
func ResultMessage(id string, r Result) Message {
	return Message{Type: TypeResult, ID: id, Status: r.Status, Error: r.Err}
}

// ResultFromMessage extracts a Result from a TypeResult envelope
func ResultFromMessage(m Message) Result {
	return Result{Status: m.Status, Err: m.Error}
}

// BoolArg reads a boolean argument
func BoolArg(args map[string]any, key string) (bool, bool) {
	v, ok := args[key]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// IntArg reads an integral argument. JSON numbers decode as float64, so both
// float64 without a fractional part and Go integer types are accepted.
func IntArg(args map[string]any, key string) (int, bool) {
	switch v := args[key].(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case float64:
		if v != float64(int(v)) {
			return 0, false
		}
		return int(v), true
	default:
		return 0, false
	}
}
