// Package client implements the ubus client runtime: a connection handle
// that frames and dispatches messages to and from the broker, letting an
// application thread issue a synchronous call while a background reader
// goroutine receives both replies and unsolicited invocations against
// locally-registered methods.
//
// All state is encapsulated in Conn rather than package-level variables;
// package public/ubus layers a free-function facade over a default Conn for
// callers that want a process-wide client instead of an explicit handle.
//
// Called by: public/ubus
// Calls: internal/wire
package client

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tenzoki/ubus/internal/wire"
)

// Conn is one client's connection to the broker. All exported methods are
// safe to call concurrently from multiple goroutines.
type Conn struct {
	cfg Config
	log *log.Logger

	nc      net.Conn
	writeMu sync.Mutex

	closeMu sync.Mutex
	closed  bool

	disconnectMu   sync.Mutex
	disconnectOnce sync.Once
	disconnectCB   func()

	pendingMu sync.Mutex
	pending   map[string]chan *ackBody

	objectsMu sync.Mutex
	objects   map[string]map[string]Handler

	subsMu sync.Mutex
	subs   map[string][]EventCallback

	sem chan struct{} // bounds concurrent handler/callback execution
}

// Dial opens a connection to the broker at cfg.SocketPath and starts its
// reader goroutine. A failed dial returns a non-nil error and no Conn.
func Dial(cfg Config) (*Conn, error) {
	cfg = cfg.withDefaults()

	nc, err := net.Dial("unix", cfg.SocketPath)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", cfg.SocketPath, err)
	}

	c := &Conn{
		cfg:     cfg,
		log:     log.New(os.Stderr, "[ubus] ", log.LstdFlags),
		nc:      nc,
		pending: make(map[string]chan *ackBody),
		objects: make(map[string]map[string]Handler),
		subs:    make(map[string][]EventCallback),
		sem:     make(chan struct{}, cfg.HandlerWorkers),
	}

	go c.readLoop()
	return c, nil
}

// SetOutput redirects the client's log output.
func (c *Conn) SetOutput(w io.Writer) {
	c.log = log.New(w, "[ubus] ", log.LstdFlags)
}

// OnDisconnect registers cb to run the first time this connection is lost,
// whether by peer EOF, transport error, or an explicit Close.
func (c *Conn) OnDisconnect(cb func()) {
	c.disconnectMu.Lock()
	c.disconnectCB = cb
	c.disconnectMu.Unlock()
}

func (c *Conn) fireDisconnect() {
	c.disconnectOnce.Do(func() {
		c.disconnectMu.Lock()
		cb := c.disconnectCB
		c.disconnectMu.Unlock()
		if cb != nil {
			cb()
		}
	})
}

// Close closes the connection. It is idempotent and triggers the
// disconnect callback exactly once, same as a peer-initiated loss.
func (c *Conn) Close() error {
	c.closeMu.Lock()
	if c.closed {
		c.closeMu.Unlock()
		return nil
	}
	c.closed = true
	c.closeMu.Unlock()

	err := c.nc.Close()
	c.fireDisconnect()
	return err
}

func (c *Conn) writeFrame(tag wire.Tag, body any) error {
	frame, err := wire.Encode(tag, body)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err = c.nc.Write(frame)
	return err
}

// request sends a frame expecting a correlated ack/reply and blocks for it
// up to cfg.CallTimeout. The rendezvous slot is installed before the frame
// is sent, closing the race where the reply arrives first.
func (c *Conn) request(id string, tag wire.Tag, body any) (*ackBody, error) {
	ch := make(chan *ackBody, 1)

	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()

	if err := c.writeFrame(tag, body); err != nil {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		return nil, err
	}

	select {
	case resp := <-ch:
		return resp, nil
	case <-time.After(c.cfg.CallTimeout):
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		return nil, nil // timeout: caller treats nil as "no reply"
	}
}

func newID() string {
	return uuid.New().String()
}

// Register advertises object's methods to the broker and, on success,
// installs methods locally so forwarded invocations can be served. It
// reports false on argument validation failure, duplicate registration, or
// timeout.
func (c *Conn) Register(object string, methods map[string]Handler) bool {
	if object == "" || len(methods) == 0 {
		return false
	}

	funcs := make([]string, 0, len(methods))
	for name := range methods {
		if name == "" {
			return false
		}
		funcs = append(funcs, name)
	}

	id := newID()
	resp, err := c.request(id, wire.TagRegister, wire.RegisterBody{ID: id, Object: object, Funcs: funcs})
	if err != nil {
		c.log.Printf("register %s: %v", object, err)
		return false
	}
	if resp == nil || resp.Ret != 1 {
		return false
	}

	c.objectsMu.Lock()
	c.objects[object] = methods
	c.objectsMu.Unlock()
	return true
}

// Call invokes object.fn on its owning connection and returns the reply's
// raw JSON data and true on success. It returns (nil, false) on validation
// failure, no-such-object/method, or timeout.
func (c *Conn) Call(object, fn string, data any) (json.RawMessage, bool) {
	if object == "" || fn == "" {
		return nil, false
	}

	payload, err := encodeObjectData(data)
	if err != nil {
		c.log.Printf("call %s.%s: %v", object, fn, err)
		return nil, false
	}

	id := newID()
	resp, err := c.request(id, wire.TagInvoke, wire.InvokeBody{ID: id, Object: object, Func: fn, Data: payload})
	if err != nil {
		c.log.Printf("call %s.%s: %v", object, fn, err)
		return nil, false
	}
	if resp == nil || resp.Ret != 1 {
		return nil, false
	}
	return resp.Data, true
}

// Subscribe asks the broker to deliver event notifications to this
// connection and, on success, registers cb locally. Multiple callbacks per
// event are supported.
func (c *Conn) Subscribe(event string, cb EventCallback) bool {
	if event == "" || cb == nil {
		return false
	}

	id := newID()
	resp, err := c.request(id, wire.TagSubscribe, wire.SubscribeBody{ID: id, Event: event})
	if err != nil {
		c.log.Printf("subscribe %s: %v", event, err)
		return false
	}
	if resp == nil || resp.Ret != 1 {
		return false
	}

	c.subsMu.Lock()
	c.subs[event] = append(c.subs[event], cb)
	c.subsMu.Unlock()
	return true
}

// Publish broadcasts event to every subscriber (including this connection,
// if subscribed). It never waits for an acknowledgement.
func (c *Conn) Publish(event string, data any) error {
	if event == "" {
		return fmt.Errorf("client: event name must not be empty")
	}
	payload, err := encodeObjectData(data)
	if err != nil {
		return err
	}
	return c.writeFrame(wire.TagPublish, wire.PublishBody{Event: event, Data: payload})
}
