// Package consumer performs gate commands on the desktop.
package consumer

import (
	"errors"
	"log"
	"sync"
	"time"

	"keyrelay/internal/automation"
	"keyrelay/internal/channel"
	"keyrelay/internal/osutils"
	"keyrelay/internal/protocol"
)

// Actuator changes the system volume
type Actuator interface {
	VolumeUp() error
	VolumeDown() error
}

// MediaController is implemented by actuators that can also drive the
// media player. action is one of the protocol.Media* names.
type MediaController interface {
	Media(action string) error
}

// ErrNoMediaControl is returned when the actuator has no media backend
var ErrNoMediaControl = errors.New("media control unavailable")

// Display puts the displays to sleep and wakes them
type Display interface {
	Sleep() error
	Wake() error
}

// Unavailable is an Actuator for desktops without a volume backend; every
// call returns err.
func Unavailable(err error) Actuator {
	return unavailable{err}
}

type unavailable struct{ err error }

func (u unavailable) VolumeUp() error   { return u.err }
func (u unavailable) VolumeDown() error { return u.err }

func (u unavailable) Media(string) error { return u.err }

// SystemDisplay drives the real displays through osutils
type SystemDisplay struct{}

func (SystemDisplay) Sleep() error { return osutils.TurnOffDisplay() }
func (SystemDisplay) Wake() error  { return osutils.WakeUp() }

// Consumer executes volume and power commands
type Consumer struct {
	act     Actuator
	display Display
	router  *channel.Router
	now     func() time.Time

	mu          sync.Mutex
	powerDownAt time.Time
	asleep      bool
}

// New creates a consumer driving act and display
func New(act Actuator, display Display) *Consumer {
	c := &Consumer{
		act:     act,
		display: display,
		router:  channel.NewRouter(),
		now:     time.Now,
	}
	c.router.Handle(protocol.CmdVolumeUp, c.volumeUp)
	c.router.Handle(protocol.CmdVolumeDown, c.volumeDown)
	c.router.Handle(protocol.CmdPowerDown, c.powerDown)
	c.router.Handle(protocol.CmdPowerUp, c.powerUp)
	c.router.Handle(protocol.CmdMediaControl, c.mediaControl)
	return c
}

// Register exposes media control on host as protocol.CallMediaControl so
// shortcuts and the HTTP API can reach it.
func (c *Consumer) Register(host *automation.Host) (func(), error) {
	return host.Register(protocol.CallMediaControl, c.mediaControl)
}

// Handle executes cmd. Its signature matches the API command sink and the
// UDP receiver callback.
func (c *Consumer) Handle(from string, cmd protocol.Command) {
	res := c.Execute(cmd)
	if !res.IsOK() {
		log.Printf("Consumer: '%s' from %s: %s %s", cmd.Name(), from, res.Status, res.Err)
	}
}

// Execute runs cmd and returns its outcome. Unknown names yield
// not_implemented.
func (c *Consumer) Execute(cmd protocol.Command) protocol.Result {
	return c.router.Dispatch(cmd.Name(), cmd.Args())
}

// Asleep reports whether the consumer put the displays to sleep
func (c *Consumer) Asleep() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.asleep
}

func (c *Consumer) volumeUp(string, map[string]any) protocol.Result {
	if err := c.act.VolumeUp(); err != nil {
		return protocol.Failed(err)
	}
	return protocol.OK()
}

func (c *Consumer) volumeDown(string, map[string]any) protocol.Result {
	if err := c.act.VolumeDown(); err != nil {
		return protocol.Failed(err)
	}
	return protocol.OK()
}

func (c *Consumer) mediaControl(_ string, args map[string]any) protocol.Result {
	action, _ := args["action"].(string)
	if !protocol.IsMediaAction(action) {
		return protocol.InvalidArgs("media_control requires 'action' play_pause, play, pause, next, previous or stop")
	}
	mc, ok := c.act.(MediaController)
	if !ok {
		return protocol.Failed(ErrNoMediaControl)
	}
	if err := mc.Media(action); err != nil {
		return protocol.Failed(err)
	}
	return protocol.OK()
}

func (c *Consumer) powerDown(string, map[string]any) protocol.Result {
	c.mu.Lock()
	c.powerDownAt = c.now()
	c.mu.Unlock()
	return protocol.OK()
}

// powerUp completes a power press by toggling display sleep
func (c *Consumer) powerUp(string, map[string]any) protocol.Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.powerDownAt.IsZero() {
		log.Println("Consumer: power_up without power_down, ignored")
		return protocol.OK()
	}
	held := c.now().Sub(c.powerDownAt)
	c.powerDownAt = time.Time{}

	var err error
	if c.asleep {
		err = c.display.Wake()
	} else {
		err = c.display.Sleep()
	}
	if err != nil {
		return protocol.Failed(err)
	}
	c.asleep = !c.asleep
	log.Printf("Consumer: power press (%s) -> displays asleep=%v", held.Round(time.Millisecond), c.asleep)
	return protocol.OK()
}
