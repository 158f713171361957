package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"keyrelay/internal/protocol"
)

// ErrUnauthorized is returned when the desktop rejects the API token
var ErrUnauthorized = errors.New("unauthorized (check api_token)")

// Client talks to a running desktop's HTTP API
type Client struct {
	base   string
	token  string
	client *http.Client
}

// NewClient creates a client for the desktop at addr (host:port)
func NewClient(addr, token string) *Client {
	return &Client{
		base:   "http://" + addr,
		token:  token,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

// Call invokes an entry point on the desktop
func (c *Client) Call(name string, args map[string]any) protocol.Result {
	var body resultBody
	code, err := c.post("/api/call/"+name, args, &body)
	if err != nil {
		return protocol.Failed(err)
	}
	if body.Status == "" {
		if code == http.StatusOK {
			return protocol.OK()
		}
		return protocol.Failed(fmt.Errorf("%s: HTTP %d", name, code))
	}
	return protocol.Result{Status: body.Status, Err: body.Error}
}

// SetPolicy pushes volume interception to every gate of the desktop and
// returns the per-gate outcome.
func (c *Client) SetPolicy(enabled bool) (map[string]protocol.Result, error) {
	var body struct {
		Gates map[string]resultBody `json:"gates"`
	}
	code, err := c.post("/api/policy?enabled="+strconv.FormatBool(enabled), nil, &body)
	if err != nil {
		return nil, err
	}
	if code != http.StatusOK {
		return nil, fmt.Errorf("policy: HTTP %d", code)
	}

	results := make(map[string]protocol.Result, len(body.Gates))
	for name, r := range body.Gates {
		results[name] = protocol.Result{Status: r.Status, Err: r.Error}
	}
	return results, nil
}

// Devices lists the gates known to the desktop
func (c *Client) Devices() ([]DeviceInfo, error) {
	var out []DeviceInfo
	code, err := c.do("GET", "/api/devices", nil, &out)
	if err != nil {
		return nil, err
	}
	if code != http.StatusOK {
		return nil, fmt.Errorf("devices: HTTP %d", code)
	}
	return out, nil
}

// DeviceAction approves, rejects, blocks or unblocks a gate
func (c *Client) DeviceAction(name, action string) (DeviceInfo, error) {
	var out DeviceInfo
	code, err := c.do("POST", "/api/devices/"+url.PathEscape(name)+"/"+action, nil, &out)
	if err != nil {
		return out, err
	}
	if code != http.StatusOK {
		return out, fmt.Errorf("%s %s: HTTP %d", action, name, code)
	}
	return out, nil
}

func (c *Client) post(path string, in map[string]any, out any) (int, error) {
	return c.do("POST", path, in, out)
}

func (c *Client) do(method, path string, in map[string]any, out any) (int, error) {
	var reader io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.base+path, reader)
	if err != nil {
		return 0, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return resp.StatusCode, ErrUnauthorized
	}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}
