package main

import (
	"fmt"
	"log"
	"net"
	"sort"
	"strconv"
	"strings"

	"keyrelay/internal/api"
	"keyrelay/internal/config"
	"keyrelay/internal/protocol"
)

// desktopAddr picks the desktop to talk to: -addr, then coordinator_addr
// for gates, then this machine.
func desktopAddr(cfg *config.Config) string {
	if *addrFlag != "" {
		return *addrFlag
	}
	if cfg.General.Role == config.RoleGate && cfg.General.CoordinatorAddr != "" {
		return cfg.General.CoordinatorAddr
	}
	return net.JoinHostPort("127.0.0.1", strconv.Itoa(cfg.General.ListenPort))
}

func runMove(cfgMgr *config.Manager, value string) error {
	dx, dy, err := parseMove(value)
	if err != nil {
		return err
	}

	cfg := cfgMgr.Get()
	addr := desktopAddr(cfg)
	res := api.NewClient(addr, cfg.General.APIToken).Call(protocol.CallMovePointer, map[string]any{"dx": dx, "dy": dy})
	if !res.IsOK() {
		return fmt.Errorf("%s: %s", res.Status, res.Err)
	}
	log.Printf("Moved pointer on %s by (%d,%d)", addr, dx, dy)
	return nil
}

func runIntercept(cfgMgr *config.Manager, value string) error {
	on, err := parseOnOff(value)
	if err != nil {
		return err
	}

	cfg := cfgMgr.Get()
	gates, err := api.NewClient(desktopAddr(cfg), cfg.General.APIToken).SetPolicy(on)
	if err != nil {
		return err
	}
	if len(gates) == 0 {
		fmt.Println("No gates connected; the policy applies when one connects")
		return nil
	}

	names := make([]string, 0, len(gates))
	for name := range gates {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		r := gates[name]
		if r.Err != "" {
			fmt.Printf("%s: %s (%s)\n", name, r.Status, r.Err)
		} else {
			fmt.Printf("%s: %s\n", name, r.Status)
		}
	}
	return nil
}

func runDevices(cfgMgr *config.Manager) error {
	cfg := cfgMgr.Get()
	devices, err := api.NewClient(desktopAddr(cfg), cfg.General.APIToken).Devices()
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		fmt.Println("No known gates")
		return nil
	}
	for _, d := range devices {
		fmt.Printf("%-24s %s\n", d.Name, d.State)
	}
	return nil
}

func runDeviceAction(cfgMgr *config.Manager, value string) error {
	action, name, ok := strings.Cut(value, ":")
	if !ok || name == "" {
		return fmt.Errorf("invalid device action %q: expected \"action:name\"", value)
	}

	cfg := cfgMgr.Get()
	d, err := api.NewClient(desktopAddr(cfg), cfg.General.APIToken).DeviceAction(name, strings.ToLower(action))
	if err != nil {
		return err
	}
	fmt.Printf("%s: %s\n", d.Name, d.State)
	return nil
}

// parseMove parses "dx,dy" into pointer deltas
func parseMove(s string) (int, int, error) {
	xs, ys, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, fmt.Errorf("invalid move %q: expected \"dx,dy\"", s)
	}
	dx, err := strconv.Atoi(strings.TrimSpace(xs))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid dx %q", xs)
	}
	dy, err := strconv.Atoi(strings.TrimSpace(ys))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid dy %q", ys)
	}
	return dx, dy, nil
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "true", "1":
		return true, nil
	case "off", "false", "0":
		return false, nil
	}
	return false, fmt.Errorf(`expected "on" or "off", got %q`, s)
}
