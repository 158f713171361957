// Package network provides the gate-side transports and LAN discovery of
// keyrelay desktops.
package network

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ServiceName is reported by the desktop's /health endpoint
const ServiceName = "keyrelay"

// DiscoveredDesktop represents a keyrelay desktop found on the network
type DiscoveredDesktop struct {
	IP          string   `json:"ip"`
	Port        int      `json:"port"`
	Gates       []string `json:"gates"`
	EntryPoints []string `json:"entry_points"`
}

// Addr returns the "ip:port" form used by config.coordinator_addr
func (d DiscoveredDesktop) Addr() string {
	return net.JoinHostPort(d.IP, strconv.Itoa(d.Port))
}

// GetLocalIP returns the primary local IP address
func GetLocalIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String(), nil
}

// ScanLAN queries every address of the local /24 for a keyrelay desktop
// listening on port.
func ScanLAN(port int) ([]DiscoveredDesktop, error) {
	localIP, err := GetLocalIP()
	if err != nil {
		return nil, fmt.Errorf("failed to get local IP: %w", err)
	}

	// Parse the local IP to get the subnet
	parts := strings.Split(localIP, ".")
	if len(parts) != 4 {
		return nil, fmt.Errorf("invalid IP address format: %s", localIP)
	}

	subnet := fmt.Sprintf("%s.%s.%s", parts[0], parts[1], parts[2])

	var hosts []DiscoveredDesktop
	var mu sync.Mutex
	var wg sync.WaitGroup

	// Scan IPs 1-254 in the subnet
	for i := 1; i <= 254; i++ {
		wg.Add(1)
		go func(hostNum int) {
			defer wg.Done()

			ip := fmt.Sprintf("%s.%d", subnet, hostNum)

			// Skip our own IP
			if ip == localIP {
				return
			}

			if host, ok := QueryDesktop(ip, port); ok {
				mu.Lock()
				hosts = append(hosts, host)
				mu.Unlock()
			}
		}(i)
	}

	wg.Wait()
	return hosts, nil
}

// QueryDesktop checks whether ip:port answers like a keyrelay desktop
func QueryDesktop(ip string, port int) (DiscoveredDesktop, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	base := "http://" + net.JoinHostPort(ip, strconv.Itoa(port))
	client := &http.Client{
		Timeout: 500 * time.Millisecond,
	}

	req, err := http.NewRequestWithContext(ctx, "GET", base+"/health", nil)
	if err != nil {
		return DiscoveredDesktop{}, false
	}
	resp, err := client.Do(req)
	if err != nil {
		return DiscoveredDesktop{}, false
	}
	var health struct {
		Service string `json:"service"`
	}
	err = json.NewDecoder(resp.Body).Decode(&health)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || err != nil || health.Service != ServiceName {
		return DiscoveredDesktop{}, false
	}

	found := DiscoveredDesktop{IP: ip, Port: port}

	// Status may be behind a token; the desktop is still reported
	req, err = http.NewRequestWithContext(ctx, "GET", base+"/api/status", nil)
	if err != nil {
		return found, true
	}
	resp, err = client.Do(req)
	if err != nil {
		return found, true
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return found, true
	}

	var status struct {
		Gates       []string `json:"gates"`
		EntryPoints []string `json:"entry_points"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err == nil {
		found.Gates = status.Gates
		found.EntryPoints = status.EntryPoints
	}
	return found, true
}

// GetLocalIPs returns all available local IPv4 addresses
func GetLocalIPs() ([]string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	var ips []string
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 {
			continue // interface down
		}
		if iface.Flags&net.FlagLoopback != 0 {
			continue // loopback interface
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			if ip == nil || ip.IsLoopback() {
				continue
			}
			ip = ip.To4()
			if ip == nil {
				continue // not an ipv4 address
			}
			ips = append(ips, ip.String())
		}
	}
	return ips, nil
}
