//go:build !windows

package autostart

import "errors"

var errNotWindows = errors.New("registry autostart is Windows only")

func enableWindows(launchEntry) error { return errNotWindows }
func disableWindows() error           { return errNotWindows }
func isEnabledWindows() bool          { return false }
