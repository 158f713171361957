package api

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"keyrelay/internal/config"
	"keyrelay/internal/gate"
	"keyrelay/internal/protocol"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireApproval(cfg *config.Config) {
	cfg.General.RequireApproval = true
}

func TestDevicesApply(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfgMgr := config.NewManagerAt(path)
	cfg := config.DefaultConfig()
	cfg.General.RequireApproval = true
	cfgMgr.Set(cfg)

	d := newDevices(cfgMgr)
	var changes []string
	d.OnChange(func(name string, state DeviceState) {
		changes = append(changes, name+"="+string(state))
	})

	assert.Equal(t, DevicePending, d.Check("phone"))
	assert.Equal(t, []string{"phone"}, d.Pending())
	assert.False(t, d.Allowed("phone"))

	require.NoError(t, d.Apply("phone", ActionApprove))
	assert.Equal(t, DeviceApproved, d.State("phone"))
	assert.Empty(t, d.Pending())

	// Decisions survive a restart
	reloaded := config.NewManagerAt(path)
	require.NoError(t, reloaded.Load())
	assert.Equal(t, []string{"phone"}, reloaded.Get().General.ApprovedDevices)

	require.NoError(t, d.Apply("phone", ActionBlock))
	assert.Equal(t, DeviceBlocked, d.Check("phone"))
	assert.Equal(t, []DeviceInfo{{Name: "phone", State: DeviceBlocked}}, d.List())

	require.NoError(t, d.Apply("phone", ActionUnblock))
	assert.Equal(t, DevicePending, d.State("phone"), "unblock does not approve")

	d.Check("tablet")
	require.NoError(t, d.Apply("tablet", ActionReject))
	assert.Empty(t, d.Pending())

	assert.ErrorIs(t, d.Apply("phone", "wave"), ErrUnknownAction)
	assert.ErrorIs(t, d.Apply("", ActionApprove), ErrNoDevice)
	assert.Equal(t, []string{"phone=approved", "phone=blocked", "phone=pending", "tablet=pending"}, changes)
}

func TestDevicesOpenByDefault(t *testing.T) {
	d := newDevices(config.NewManagerAt(filepath.Join(t.TempDir(), "config.json")))
	assert.Equal(t, DeviceApproved, d.Check("anyone"))
	assert.Empty(t, d.Pending())
}

func TestPendingGateHeldUntilApproved(t *testing.T) {
	f := newFixture(t, "", requireApproval)
	f.srv.SetPolicy(testContext(t), true)

	g, client := f.startGate(t, "phone", "")
	require.Eventually(t, func() bool {
		return slices.Contains(f.srv.Devices().Pending(), "phone")
	}, 3*time.Second, 10*time.Millisecond)

	// Pending gates get no policy and their commands are dropped
	client.Send(protocol.NewCommand(protocol.CmdVolumeUp, nil))
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, f.rec.get())
	assert.Empty(t, f.srv.Gates())
	assert.NotContains(t, f.srv.SetPolicy(testContext(t), true), "phone")
	assert.False(t, g.Policy().InterceptVolume())

	var status map[string]any
	require.NoError(t, json.NewDecoder(f.do(t, "GET", "/api/status", "", "").Body).Decode(&status))
	assert.Equal(t, []any{"phone"}, status["pending_devices"])

	resp := f.do(t, "POST", "/api/devices/phone/approve", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var info DeviceInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	assert.Equal(t, DeviceApproved, info.State)

	require.Eventually(t, func() bool { return g.Policy().InterceptVolume() }, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"phone"}, f.srv.Gates())

	assert.True(t, g.OnKeyDown(gate.KeyVolumeDown))
	require.Eventually(t, func() bool { return len(f.rec.get()) > 0 }, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"phone:volume_down"}, f.rec.get())
}

func TestBlockedGateIsDisconnected(t *testing.T) {
	f := newFixture(t, "")
	f.connectGate(t, "phone", "")

	resp := f.do(t, "POST", "/api/devices/phone/block", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Eventually(t, func() bool { return len(f.srv.Gates()) == 0 }, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, DeviceBlocked, f.srv.Devices().State("phone"))

	resp = f.do(t, "GET", "/api/devices", "", "")
	var list []DeviceInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	assert.Equal(t, []DeviceInfo{{Name: "phone", State: DeviceBlocked}}, list)
}

func TestDeviceActionErrors(t *testing.T) {
	f := newFixture(t, "")
	assert.Equal(t, http.StatusBadRequest, f.do(t, "POST", "/api/devices/phone/wave", "", "").StatusCode)
	assert.Equal(t, http.StatusBadRequest, f.do(t, "POST", "/api/devices/approve", "", "").StatusCode)
	assert.Equal(t, http.StatusMethodNotAllowed, f.do(t, "GET", "/api/devices/phone/approve", "", "").StatusCode)
}

type fixedGates []string

func (g fixedGates) Gates() []string { return g }

func TestStatusListsUDPGates(t *testing.T) {
	f := newFixture(t, "")
	f.srv.AttachUDP(fixedGates{"phone"})

	var status map[string]any
	require.NoError(t, json.NewDecoder(f.do(t, "GET", "/api/status", "", "").Body).Decode(&status))
	assert.Equal(t, []any{"phone"}, status["udp_gates"])
}

func TestClientDevices(t *testing.T) {
	f := newFixture(t, "secret", requireApproval)
	f.srv.Devices().Check("phone")
	client := NewClient(f.http.Listener.Addr().String(), "secret")

	list, err := client.Devices()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, DevicePending, list[0].State)

	info, err := client.DeviceAction("phone", ActionApprove)
	require.NoError(t, err)
	assert.Equal(t, DeviceApproved, info.State)

	_, err = client.DeviceAction("phone", "wave")
	assert.Error(t, err)
}
