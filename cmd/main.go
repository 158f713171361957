// keyrelay - phone keys as desktop controls
// Intercepts volume/power keys on a gate device and relays them to a desktop
package main

import (
	"flag"
	"fmt"
	"log"
	"strings"

	"keyrelay/internal/autostart"
	"keyrelay/internal/config"
	"keyrelay/internal/input"
	"keyrelay/internal/network"
)

var (
	version     = "0.3.0"
	showVer     = flag.Bool("version", false, "Show version")
	configPath  = flag.String("config", "", "Path to config.json (default: per-user config dir)")
	roleFlag    = flag.String("role", "", "Override the configured role (gate, desktop, local)")
	addrFlag    = flag.String("addr", "", "Desktop address for -move and -intercept-volume (default: from config)")
	listDevs    = flag.Bool("list-devices", false, "List input devices")
	discover    = flag.Bool("discover", false, "Scan the LAN for desktops")
	moveBy      = flag.String("move", "", "Move the desktop pointer by \"dx,dy\"")
	intercept   = flag.String("intercept-volume", "", "Turn volume interception on connected gates \"on\" or \"off\"")
	autostartTo = flag.String("autostart", "", "Turn start on login \"on\" or \"off\"")
	watchKeys   = flag.Bool("watch-keys", false, "Print key events from the configured input devices")
	listGates   = flag.Bool("devices", false, "List gates known to the desktop and their approval state")
	deviceCmd   = flag.String("device", "", "Manage a gate on the desktop \"approve|reject|block|unblock:NAME\"")
)

func main() {
	flag.Parse()

	if *showVer {
		fmt.Printf("keyrelay version %s\n", version)
		return
	}

	cfgMgr, err := openConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}
	if err := cfgMgr.Load(); err != nil {
		log.Printf("Warning: failed to load config: %v", err)
	}

	if *roleFlag != "" {
		cfg := *cfgMgr.Get()
		cfg.General.Role = *roleFlag
		cfgMgr.Set(&cfg)
	}

	switch {
	case *listDevs:
		listDevices()
		return
	case *discover:
		discoverDesktops(cfgMgr)
		return
	case *moveBy != "":
		if err := runMove(cfgMgr, *moveBy); err != nil {
			log.Fatalf("Move failed: %v", err)
		}
		return
	case *intercept != "":
		if err := runIntercept(cfgMgr, *intercept); err != nil {
			log.Fatalf("Policy update failed: %v", err)
		}
		return
	case *autostartTo != "":
		if err := setAutostart(cfgMgr, *autostartTo); err != nil {
			log.Fatalf("Autostart failed: %v", err)
		}
		return
	case *watchKeys:
		runWatchKeys(cfgMgr)
		return
	case *listGates:
		if err := runDevices(cfgMgr); err != nil {
			log.Fatalf("Device list failed: %v", err)
		}
		return
	case *deviceCmd != "":
		if err := runDeviceAction(cfgMgr, *deviceCmd); err != nil {
			log.Fatalf("Device action failed: %v", err)
		}
		return
	}

	cfg := cfgMgr.Get()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration (%s): %v", cfgMgr.Path(), err)
	}
	syncAutostart(cfgMgr)

	log.Printf("keyrelay %s starting as %s", version, cfg.General.Role)
	switch cfg.General.Role {
	case config.RoleGate:
		runGate(cfgMgr)
	case config.RoleLocal:
		runDesktop(cfgMgr, true)
	default:
		runDesktop(cfgMgr, false)
	}
}

func openConfig(path string) (*config.Manager, error) {
	if path != "" {
		return config.NewManagerAt(path), nil
	}
	return config.NewManager()
}

func listDevices() {
	devices, err := input.ListDevices()
	if err != nil {
		log.Fatalf("Failed to list input devices: %v", err)
	}

	fmt.Println("Input Devices:")
	fmt.Println("--------------")
	for _, d := range devices {
		fmt.Printf("%s\n", d.Name)
		if d.Path != "" {
			fmt.Printf("  Path: %s\n", d.Path)
		}
		if d.HasVolumeKeys() {
			fmt.Printf("  Volume keys: yes\n")
		}
		fmt.Println()
	}
}

func discoverDesktops(cfgMgr *config.Manager) {
	port := cfgMgr.Get().General.ListenPort
	log.Printf("Scanning LAN for desktops on port %d...", port)

	desktops, err := network.ScanLAN(port)
	if err != nil {
		log.Fatalf("Scan failed: %v", err)
	}
	if len(desktops) == 0 {
		fmt.Println("No desktops found")
		return
	}
	for _, d := range desktops {
		fmt.Printf("%s\n", d.Addr())
		if len(d.Gates) > 0 {
			fmt.Printf("  Gates: %s\n", strings.Join(d.Gates, ", "))
		}
		if len(d.EntryPoints) > 0 {
			fmt.Printf("  Entry points: %s\n", strings.Join(d.EntryPoints, ", "))
		}
	}
}

func runWatchKeys(cfgMgr *config.Manager) {
	cfg := cfgMgr.Get()
	src := input.NewSource(cfg.General.InputDevices, false, func(ev input.Event) bool {
		name := input.KeyName(ev.Code)
		if name == "" {
			name = fmt.Sprintf("0x%X", ev.Code)
		}
		fmt.Printf("key %-12s value=%d\n", name, ev.Value)
		return false
	})
	if err := src.Start(); err != nil {
		log.Fatalf("Failed to read input devices: %v", err)
	}
	defer src.Stop()

	log.Println("Watching key events... Press Ctrl+C to stop")
	waitForSignal()
}

func setAutostart(cfgMgr *config.Manager, value string) error {
	on, err := parseOnOff(value)
	if err != nil {
		return err
	}

	cfg := *cfgMgr.Get()
	cfg.General.StartOnBoot = on
	cfgMgr.Set(&cfg)
	if err := cfgMgr.Save(); err != nil {
		return err
	}

	if on {
		return autostart.Enable(launchArgs(cfgMgr)...)
	}
	return autostart.Disable()
}

// syncAutostart makes the login entry match start_on_boot
func syncAutostart(cfgMgr *config.Manager) {
	cfg := cfgMgr.Get()
	enabled := autostart.IsEnabled()
	switch {
	case cfg.General.StartOnBoot && !enabled:
		if err := autostart.Enable(launchArgs(cfgMgr)...); err != nil {
			log.Printf("Warning: failed to enable autostart: %v", err)
		}
	case !cfg.General.StartOnBoot && enabled:
		if err := autostart.Disable(); err != nil {
			log.Printf("Warning: failed to disable autostart: %v", err)
		}
	}
}

func launchArgs(cfgMgr *config.Manager) []string {
	return []string{"-role", cfgMgr.Get().General.Role, "-config", cfgMgr.Path()}
}
