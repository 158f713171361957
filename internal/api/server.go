// Package api provides the desktop HTTP API and the WebSocket hub gates
// connect to.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"keyrelay/internal/automation"
	"keyrelay/internal/channel"
	"keyrelay/internal/config"
	"keyrelay/internal/network"
	"keyrelay/internal/protocol"
)

// callTimeout bounds how long HTTP-triggered calls wait for gate replies
const callTimeout = 3 * time.Second

// CommandSink receives every command a gate sends, in arrival order per gate
type CommandSink func(from string, cmd protocol.Command)

// Server provides the desktop HTTP API and hosts the gate WebSocket hub
type Server struct {
	configMgr *config.Manager
	host      *automation.Host
	sink      CommandSink
	token     string
	wsMgr     *WSManager
	devices   *Devices

	hubOnce sync.Once
	srvMu   sync.Mutex
	srv     *http.Server

	policyMu   sync.Mutex
	lastPolicy *bool

	localMu sync.Mutex
	local   map[string]channel.Handler
	udp     GateLister
}

// GateLister reports the gates registered on another transport
type GateLister interface {
	Gates() []string
}

// NewServer creates a new API server. sink may be nil, in which case gate
// commands are logged and dropped.
func NewServer(configMgr *config.Manager, host *automation.Host, sink CommandSink) *Server {
	s := &Server{
		configMgr: configMgr,
		host:      host,
		sink:      sink,
		token:     configMgr.Get().General.APIToken,
	}
	s.wsMgr = newWSManager(s)
	s.devices = newDevices(configMgr)
	s.devices.OnChange(s.wsMgr.deviceChanged)
	return s
}

// Devices returns the gate approval registry
func (s *Server) Devices() *Devices {
	return s.devices
}

// Handler returns the API routes wrapped in auth and recover middleware and
// starts the WebSocket hub on first use.
func (s *Server) Handler() http.Handler {
	s.hubOnce.Do(func() { go s.wsMgr.start() })

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/policy", s.handlePolicy)
	mux.HandleFunc("/api/call/", s.handleCall)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/discover", s.handleDiscover)
	mux.HandleFunc("/api/devices", s.handleDevices)
	mux.HandleFunc("/api/devices/", s.handleDeviceAction)
	mux.HandleFunc("/ws", s.wsMgr.handleWebSocket)

	return s.authMiddleware(s.recoverMiddleware(mux))
}

// Start serves the API on port. It blocks until Shutdown is called.
func (s *Server) Start(port int) error {
	// Explicitly use tcp4 to avoid IPv6-only binding issues on Windows
	addr := fmt.Sprintf("0.0.0.0:%d", port)

	if ips, err := network.GetLocalIPs(); err == nil {
		for _, ip := range ips {
			log.Printf("API: Reachable at %s:%d", ip, port)
		}
	}

	ln, err := net.Listen("tcp4", addr)
	if err != nil {
		log.Printf("ERROR: API server failed to listen on %s: %v", addr, err)
		return err
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.srvMu.Lock()
	s.srv = srv
	s.srvMu.Unlock()

	log.Printf("API: Listening on %s", addr)
	if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		log.Printf("ERROR: API server stopped: %v", err)
		return err
	}
	return nil
}

// Shutdown stops the HTTP server and disconnects all gates
func (s *Server) Shutdown(ctx context.Context) error {
	s.wsMgr.stop()

	s.srvMu.Lock()
	srv := s.srv
	s.srvMu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// SetPolicy pushes setInterceptVolume to every connected gate and remembers
// the value for gates that connect later.
func (s *Server) SetPolicy(ctx context.Context, enabled bool) map[string]protocol.Result {
	s.policyMu.Lock()
	s.lastPolicy = &enabled
	s.policyMu.Unlock()

	args := map[string]any{"enabled": enabled}
	log.Printf("API: Setting volume interception to %v on %d gate(s)", enabled, s.wsMgr.count())
	results := s.wsMgr.CallAll(ctx, protocol.CallSetInterceptVolume, args)

	s.localMu.Lock()
	defer s.localMu.Unlock()
	for name, h := range s.local {
		results[name] = h(protocol.CallSetInterceptVolume, args)
	}
	return results
}

// AttachLocal adds an in-process gate that receives policy calls through h
func (s *Server) AttachLocal(name string, h channel.Handler) {
	s.localMu.Lock()
	defer s.localMu.Unlock()
	if s.local == nil {
		s.local = make(map[string]channel.Handler)
	}
	s.local[name] = h
}

// AttachUDP lists the gates registered with the UDP receiver in /api/status
func (s *Server) AttachUDP(l GateLister) {
	s.localMu.Lock()
	defer s.localMu.Unlock()
	s.udp = l
}

// Policy returns the last policy pushed to gates, if any
func (s *Server) Policy() (enabled bool, ok bool) {
	s.policyMu.Lock()
	defer s.policyMu.Unlock()
	if s.lastPolicy == nil {
		return false, false
	}
	return *s.lastPolicy, true
}

// Gates returns the names of connected and in-process gates
func (s *Server) Gates() []string {
	names := s.wsMgr.gates()
	s.localMu.Lock()
	for name := range s.local {
		names = append(names, name)
	}
	s.localMu.Unlock()
	sort.Strings(names)
	return names
}

// Dispatch hands a gate command to the sink. It is also used by the UDP
// receiver so both transports share one consumer.
func (s *Server) Dispatch(from string, cmd protocol.Command) {
	if s.sink == nil {
		log.Printf("API: No consumer, dropping '%s' from %s", cmd.Name(), from)
		return
	}
	s.sink(from, cmd)
}

// recoverMiddleware prevents panics from crashing the whole server
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("PANIC RECOV: %v", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// authMiddleware checks API token if configured
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("API: %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)

		// Skip auth for health check
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		if s.token != "" && r.Header.Get("Authorization") != "Bearer "+s.token {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// handleHealth handles GET /health (for monitoring and discovery)
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": network.ServiceName,
	})
}

// handleStatus handles GET /api/status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := map[string]any{
		"role":         s.configMgr.Get().General.Role,
		"gates":        s.Gates(),
		"entry_points": s.host.Names(),
	}
	if enabled, ok := s.Policy(); ok {
		status["intercept_volume"] = enabled
	}
	s.localMu.Lock()
	udp := s.udp
	s.localMu.Unlock()
	if udp != nil {
		status["udp_gates"] = udp.Gates()
	}
	if pending := s.devices.Pending(); len(pending) > 0 {
		status["pending_devices"] = pending
	}
	writeJSON(w, http.StatusOK, status)
}

// handleDevices handles GET /api/devices
func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	devices := s.devices.List()
	if devices == nil {
		devices = []DeviceInfo{}
	}
	writeJSON(w, http.StatusOK, devices)
}

// handleDeviceAction handles POST /api/devices/{name}/{approve|reject|block|unblock}
func (s *Server) handleDeviceAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/devices/")
	i := strings.LastIndex(rest, "/")
	if i <= 0 {
		http.Error(w, "Expected /api/devices/{name}/{action}", http.StatusBadRequest)
		return
	}
	name, action := rest[:i], rest[i+1:]

	if err := s.devices.Apply(name, action); err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, ErrUnknownAction) || errors.Is(err, ErrNoDevice) {
			code = http.StatusBadRequest
		}
		http.Error(w, err.Error(), code)
		return
	}
	writeJSON(w, http.StatusOK, DeviceInfo{Name: name, State: s.devices.State(name)})
}

// handlePolicy handles POST /api/policy?enabled=<bool>
func (s *Server) handlePolicy(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	enabled, err := strconv.ParseBool(r.URL.Query().Get("enabled"))
	if err != nil {
		http.Error(w, "Missing or invalid enabled parameter", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), callTimeout)
	defer cancel()
	results := s.SetPolicy(ctx, enabled)

	replies := make(map[string]resultBody, len(results))
	for gate, res := range results {
		replies[gate] = toBody(res)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"enabled": enabled,
		"gates":   replies,
	})
}

// handleCall handles POST /api/call/{name} with an optional JSON object body
func (s *Server) handleCall(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/api/call/")
	if name == "" || strings.Contains(name, "/") {
		http.Error(w, "Missing entry point name", http.StatusBadRequest)
		return
	}

	var args map[string]any
	body, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
	if err != nil {
		http.Error(w, "Cannot read body", http.StatusBadRequest)
		return
	}
	if len(strings.TrimSpace(string(body))) > 0 {
		if err := json.Unmarshal(body, &args); err != nil {
			http.Error(w, "Arguments must be a JSON object", http.StatusBadRequest)
			return
		}
	}

	res := s.host.Invoke(name, args)
	writeJSON(w, statusCode(res), toBody(res))
}

// handleConfig handles GET (read) and POST (update) for configuration
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "GET":
		writeJSON(w, http.StatusOK, s.configMgr.Get())

	case "POST":
		newCfg := config.DefaultConfig()
		if err := json.NewDecoder(r.Body).Decode(newCfg); err != nil {
			http.Error(w, "Invalid configuration data", http.StatusBadRequest)
			return
		}
		if err := newCfg.Validate(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		log.Printf("API: Receiving configuration update from %s", r.RemoteAddr)

		s.configMgr.Set(newCfg)
		if err := s.configMgr.Save(); err != nil {
			log.Printf("API: Failed to save received config: %v", err)
			http.Error(w, "Failed to save configuration", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleDiscover handles GET /api/discover - scans LAN for other desktops
func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	port := s.configMgr.Get().General.ListenPort
	log.Printf("API: Starting LAN scan on port %d", port)

	desktops, err := network.ScanLAN(port)
	if err != nil {
		log.Printf("API: Scan error: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	log.Printf("API: Found %d desktop(s) on LAN", len(desktops))
	writeJSON(w, http.StatusOK, desktops)
}

type resultBody struct {
	Status protocol.Status `json:"status"`
	Error  string          `json:"error,omitempty"`
}

func toBody(r protocol.Result) resultBody {
	return resultBody{Status: r.Status, Error: r.Err}
}

func statusCode(r protocol.Result) int {
	switch r.Status {
	case protocol.StatusOK:
		return http.StatusOK
	case protocol.StatusNotImplemented:
		return http.StatusNotFound
	case protocol.StatusInvalidArgs:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
