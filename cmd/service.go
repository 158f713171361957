package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"keyrelay/internal/api"
	"keyrelay/internal/automation"
	"keyrelay/internal/channel"
	"keyrelay/internal/config"
	"keyrelay/internal/consumer"
	"keyrelay/internal/gate"
	"keyrelay/internal/hotkey"
	"keyrelay/internal/input"
	"keyrelay/internal/network"
	"keyrelay/internal/osutils"
	"keyrelay/internal/pointer"
	"keyrelay/internal/protocol"
	"keyrelay/internal/tray"
)

// localGateName is how the in-process gate of the local role is listed
const localGateName = "local"

// runDesktop runs the consumer, automation host and API server. With
// withGate the key gate runs in the same process (local role).
func runDesktop(cfgMgr *config.Manager, withGate bool) {
	cfg := cfgMgr.Get()

	host := automation.NewHost()
	unregister, err := pointer.NewService(pointer.NewSystemSession()).Register(host)
	if err != nil {
		log.Fatalf("Failed to register %s: %v", protocol.CallMovePointer, err)
	}
	defer unregister()

	act, closeAct, err := consumer.NewSystemActuator()
	if err != nil {
		log.Printf("Warning: volume control unavailable: %v", err)
		act = consumer.Unavailable(err)
	} else {
		defer closeAct()
	}
	cons := consumer.New(act, consumer.SystemDisplay{})
	unregisterMedia, err := cons.Register(host)
	if err != nil {
		log.Fatalf("Failed to register %s: %v", protocol.CallMediaControl, err)
	}
	defer unregisterMedia()

	apiServer := api.NewServer(cfgMgr, host, cons.Handle)

	if runtime.GOOS == "windows" {
		go func() {
			if err := osutils.EnsureFirewallRule(cfg.General.ListenPort); err != nil {
				log.Printf("Firewall warning: %v", err)
			}
		}()
	}

	go func() {
		if err := apiServer.Start(cfg.General.ListenPort); err != nil {
			log.Printf("API server error: %v", err)
		}
	}()

	if cfg.General.UDPEnabled {
		udpRecv := network.NewUDPReceiver(cfg.General.ListenPort, cfg.General.APIToken)
		udpRecv.OnCommand = apiServer.Dispatch
		udpRecv.Authorize = apiServer.Devices().Allowed
		apiServer.AttachUDP(udpRecv)
		if err := udpRecv.Start(); err != nil {
			log.Printf("Warning: UDP receiver failed to start, gates will use WebSocket: %v", err)
		} else {
			defer udpRecv.Stop()
		}
	}

	hkMgr := hotkey.NewManager(cfg.General.ShortcutDevices)
	refreshShortcuts := func() {
		hkMgr.Clear()
		hkMgr.Bind(cfgMgr.Get().Shortcuts, host)
	}
	refreshShortcuts()
	cfgMgr.RegisterChangeCallback(refreshShortcuts)
	if err := hkMgr.Start(); err != nil {
		log.Printf("Warning: Hotkey Engine failed to start: %v", err)
	}
	defer hkMgr.Stop()

	if withGate {
		stopGate := startLocalGate(cfg, apiServer)
		defer stopGate()
	}

	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := apiServer.Shutdown(ctx); err != nil {
			log.Printf("API shutdown error: %v", err)
		}
	}()

	if !cfg.General.ShowTray {
		log.Println("keyrelay desktop running. Press Ctrl+C to stop.")
		waitForSignal()
		log.Println("Shutting down...")
		return
	}

	t := tray.New("keyrelay", "keyrelay desktop")
	intercepting, _ := apiServer.Policy()
	t.AddCheckbox("Intercept phone volume keys", intercepting, func(checked bool) {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		for name, res := range apiServer.SetPolicy(ctx, checked) {
			if !res.IsOK() {
				log.Printf("Tray: gate '%s' did not apply policy: %s %s", name, res.Status, res.Err)
			}
		}
	})
	t.AddSeparator()
	t.AddMenuItem("Quit", func() {
		t.Stop()
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Shutting down...")
		t.Stop()
	}()

	log.Println("keyrelay desktop running. Press Ctrl+C to stop.")
	t.Run()
}

// startLocalGate joins a gate to the consumer through a loopback channel and
// attaches it to the API server so policy changes reach it.
func startLocalGate(cfg *config.Config, apiServer *api.Server) func() {
	loop := channel.NewLoopback(func(cmd protocol.Command) {
		apiServer.Dispatch(localGateName, cmd)
	}, 0)
	ch := channel.New(loop)

	g := gate.New(newPolicy(cfg), ch)
	ch.OnReceive(g.HandleCall)
	apiServer.AttachLocal(localGateName, ch.Receive)

	src := input.NewSource(cfg.General.InputDevices, cfg.General.GrabDevices, input.GateHandler(g))
	if err := src.Start(); err != nil {
		log.Printf("Warning: local gate cannot read keys: %v", err)
	}

	return func() {
		src.Stop()
		loop.Close()
	}
}

// runGate intercepts keys on this device and relays them to the desktop
func runGate(cfgMgr *config.Manager) {
	cfg := cfgMgr.Get()
	addr := cfg.General.CoordinatorAddr

	ws := network.NewWSClient(addr, cfg.General.APIToken, deviceName(cfg), version)

	// The transport is fixed at startup so command order never spans two paths
	var out channel.Sender = ws
	if cfg.General.UDPEnabled {
		udp := network.NewUDPSender(addr, cfg.General.APIToken, deviceName(cfg))
		if err := udp.Start(); err != nil {
			log.Printf("Gate: UDP unavailable (%v), sending commands over WebSocket", err)
		} else {
			log.Printf("Gate: Sending commands over UDP to %s", addr)
			out = udp
			defer udp.Stop()
		}
	}

	g := gate.New(newPolicy(cfg), out)
	ws.OnCall = g.HandleCall
	ws.OnConnect = func() {
		log.Printf("Gate: Connected to desktop %s", addr)
	}
	ws.Start()
	defer ws.Close()

	src := input.NewSource(cfg.General.InputDevices, cfg.General.GrabDevices, input.GateHandler(g))
	if err := src.Start(); err != nil {
		log.Fatalf("Gate: failed to read key events: %v", err)
	}
	defer src.Stop()

	log.Println("keyrelay gate running. Press Ctrl+C to stop.")
	waitForSignal()
	log.Println("Shutting down...")
}

func newPolicy(cfg *config.Config) *gate.Policy {
	mode, err := gate.ParseVolumeMode(cfg.General.VolumeMode)
	if err != nil {
		log.Printf("Warning: %v, using %s", err, gate.VolumeGated)
		mode = gate.VolumeGated
	}
	return gate.NewPolicy(mode)
}

func deviceName(cfg *config.Config) string {
	if cfg.General.DeviceName != "" {
		return cfg.General.DeviceName
	}
	if name, err := os.Hostname(); err == nil {
		return name
	}
	return "gate"
}

func waitForSignal() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
}
