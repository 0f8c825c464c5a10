package broker

import (
	"net"
	"sync"
	"sync/atomic"
	"syscall"
)

// conn is the broker's per-connection state: the socket, a stable handle
// used to route replies, the objects this connection owns, and the events
// it subscribes to.
type conn struct {
	handle int64
	nc     net.Conn

	writeMu sync.Mutex // serializes frame writes on this connection

	mu      sync.Mutex
	objects map[string]map[string]struct{} // object name -> method set
	subs    map[string]struct{}            // subscribed event names
}

func newConn(handle int64, nc net.Conn) *conn {
	return &conn{
		handle:  handle,
		nc:      nc,
		objects: make(map[string]map[string]struct{}),
		subs:    make(map[string]struct{}),
	}
}

func (c *conn) write(b []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := c.nc.Write(b)
	return err
}

// ownsMethod reports whether this connection owns object and advertised fn
// as one of its methods.
func (c *conn) ownsMethod(object, fn string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	funcs, ok := c.objects[object]
	if !ok {
		return false
	}
	_, ok = funcs[fn]
	return ok
}

func (c *conn) ownsObject(object string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.objects[object]
	return ok
}

func (c *conn) addObject(object string, funcs []string) {
	set := make(map[string]struct{}, len(funcs))
	for _, f := range funcs {
		set[f] = struct{}{}
	}
	c.mu.Lock()
	c.objects[object] = set
	c.mu.Unlock()
}

func (c *conn) subscribe(event string) {
	c.mu.Lock()
	c.subs[event] = struct{}{}
	c.mu.Unlock()
}

func (c *conn) subscribed(event string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.subs[event]
	return ok
}

// syntheticHandle hands out a unique negative handle for connections whose
// underlying kernel file descriptor we can't read (e.g. in tests that use
// net.Pipe). Real file descriptors are always non-negative, so the two
// numbering spaces never collide.
var syntheticHandle int64

func nextSyntheticHandle() int64 {
	return atomic.AddInt64(&syntheticHandle, -1)
}

// connHandle derives a stable integer handle for routing replies to nc: the
// connection's own file descriptor when the net.Conn exposes one, falling
// back to a synthetic monotonic counter otherwise. Either way the value is
// unique and stable for the connection's lifetime, which is all the
// protocol requires.
func connHandle(nc net.Conn) int64 {
	sc, ok := nc.(syscall.Conn)
	if !ok {
		return nextSyntheticHandle()
	}

	rc, err := sc.SyscallConn()
	if err != nil {
		return nextSyntheticHandle()
	}

	var fd int64 = -1
	if ctrlErr := rc.Control(func(fdPtr uintptr) {
		fd = int64(fdPtr)
	}); ctrlErr != nil || fd < 0 {
		return nextSyntheticHandle()
	}
	return fd
}
