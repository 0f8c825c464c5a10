// Package ubus is the public entry point to the ubus client runtime.
//
// It exposes a Client handle type and, layered on top of it, a
// package-level free-function facade (Connect, Disconnect, Send, Listen,
// Add, Call, OnDisconnect) that operates on a lazily-created default
// Client, for callers that want module-level functions instead of an
// explicit handle. The facade delegates to an ordinary instance underneath.
//
// Called by: cmd/ubus, application code
// Calls: internal/client
package ubus

import (
	"encoding/json"
	"sync"

	"github.com/tenzoki/ubus/internal/client"
)

// Handler is a locally-registered method, invoked when a peer calls it.
type Handler = client.Handler

// EventCallback receives the payload of a subscribed event.
type EventCallback = client.EventCallback

// Config controls the socket path and timeouts a Client connects with.
type Config = client.Config

// DefaultConfig returns the package defaults (broker's well-known socket
// path, 15s call timeout, 4-worker handler pool).
func DefaultConfig() Config {
	return client.DefaultConfig()
}

// Client is one connection to the broker, bundling the connect/disconnect
// lifecycle, object registration, calls, and subscriptions.
type Client struct {
	mu                  sync.Mutex
	conn                *client.Conn
	pendingDisconnectCB func()
}

// NewClient returns a disconnected Client ready for Connect.
func NewClient() *Client {
	return &Client{}
}

// Connect opens a connection to the broker at cfg.SocketPath (the default
// well-known path if cfg is the zero value). It returns false on any
// connection failure and leaves the Client disconnected.
func (c *Client) Connect(cfg Config) bool {
	conn, err := client.Dial(cfg)
	if err != nil {
		return false
	}

	c.mu.Lock()
	c.conn = conn
	cb := c.pendingDisconnectCB
	c.mu.Unlock()

	if cb != nil {
		conn.OnDisconnect(cb)
	}
	return true
}

// ConnectDefault connects using DefaultConfig.
func (c *Client) ConnectDefault() bool {
	return c.Connect(DefaultConfig())
}

func (c *Client) handle() *client.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

// Disconnect closes the connection, if any.
func (c *Client) Disconnect() {
	if conn := c.handle(); conn != nil {
		conn.Close()
	}
}

// OnDisconnect registers cb to run the first time the connection is lost.
// It may be called before Connect; cb is then applied to the connection
// established by the next successful Connect/ConnectDefault.
func (c *Client) OnDisconnect(cb func()) {
	c.mu.Lock()
	c.pendingDisconnectCB = cb
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		conn.OnDisconnect(cb)
	}
}

// Send publishes an event; it never waits for an acknowledgement.
func (c *Client) Send(event string, data any) error {
	conn := c.handle()
	if conn == nil {
		return errNotConnected
	}
	return conn.Publish(event, data)
}

// Listen subscribes to event, delivering future notifications to cb.
func (c *Client) Listen(event string, cb EventCallback) bool {
	conn := c.handle()
	if conn == nil {
		return false
	}
	return conn.Subscribe(event, cb)
}

// Add registers object with the broker and installs methods locally.
func (c *Client) Add(object string, methods map[string]Handler) bool {
	conn := c.handle()
	if conn == nil {
		return false
	}
	return conn.Register(object, methods)
}

// Call invokes object.fn on its owning peer and returns its reply data.
// The second return value is false on validation failure, no such
// object/method, or timeout.
func (c *Client) Call(object, fn string, data any) (json.RawMessage, bool) {
	conn := c.handle()
	if conn == nil {
		return nil, false
	}
	return conn.Call(object, fn, data)
}

var errNotConnected = &notConnectedError{}

type notConnectedError struct{}

func (*notConnectedError) Error() string { return "ubus: client is not connected" }
