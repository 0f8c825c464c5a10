package client

import (
	"encoding/json"
	"io"

	"github.com/tenzoki/ubus/internal/wire"
)

// readLoop is the client's single reader goroutine, the sole owner of the
// receive direction. It runs until the connection is closed or a framing
// error occurs.
func (c *Conn) readLoop() {
	for {
		tag, body, err := wire.ReadFrame(c.nc)
		if err != nil {
			if err != io.EOF {
				c.log.Printf("read: %v", err)
			}
			c.closeMu.Lock()
			c.closed = true
			c.closeMu.Unlock()
			c.nc.Close()
			c.fireDisconnect()
			return
		}

		switch tag {
		case wire.TagForward:
			c.handleForward(body)
		case wire.TagInvokeReply, wire.TagRegisterAck, wire.TagSubscribeOK:
			c.handleAck(body)
		case wire.TagEvent:
			c.handleEvent(body)
		default:
			c.log.Printf("unknown tag %#x", byte(tag))
		}
	}
}

// handleAck delivers a 0xf0/0xf1/0xf3 reply to its waiting request, if
// still pending. An ack with an unknown _id (already timed out, or never
// ours) is dropped silently.
func (c *Conn) handleAck(body []byte) {
	var ack ackBody
	if err := wire.Decode(body, &ack); err != nil {
		c.log.Printf("decode ack: %v", err)
		return
	}

	c.pendingMu.Lock()
	ch, ok := c.pending[ack.ID]
	if ok {
		delete(c.pending, ack.ID)
	}
	c.pendingMu.Unlock()

	if !ok {
		return
	}

	select {
	case ch <- &ack:
	default:
	}
}

// handleForward executes a forwarded invocation on the handler worker pool,
// keeping the reader goroutine free to keep receiving even if the handler
// itself re-enters the broker. A handler that panics is recovered so the
// reply still goes out, carrying JSON null.
func (c *Conn) handleForward(body []byte) {
	var fwd wire.ForwardBody
	if err := wire.Decode(body, &fwd); err != nil {
		c.log.Printf("decode forward: %v", err)
		return
	}

	c.objectsMu.Lock()
	methods := c.objects[fwd.Object]
	var handler Handler
	if methods != nil {
		handler = methods[fwd.Func]
	}
	c.objectsMu.Unlock()

	c.sem <- struct{}{}
	go func() {
		defer func() { <-c.sem }()

		var result json.RawMessage
		if handler != nil {
			result = runHandler(c.log, handler, fwd.Data)
		}
		if result == nil {
			result = json.RawMessage("null")
		}

		reply := wire.ReplyBody{ID: fwd.ID, CS: fwd.CS, Data: result}
		if err := c.writeFrame(wire.TagReply, reply); err != nil {
			c.log.Printf("reply %s.%s: %v", fwd.Object, fwd.Func, err)
		}
	}()
}

// runHandler invokes handler, recovering a panic and reporting it as if
// the handler had returned an error, and marshals its result to JSON
// (nil -> JSON null).
func runHandler(logf interface{ Printf(string, ...any) }, handler Handler, data json.RawMessage) (result json.RawMessage) {
	defer func() {
		if r := recover(); r != nil {
			logf.Printf("handler panic: %v", r)
			result = json.RawMessage("null")
		}
	}()

	v, err := handler(data)
	if err != nil {
		logf.Printf("handler error: %v", err)
		return json.RawMessage("null")
	}
	if v == nil {
		return json.RawMessage("null")
	}

	encoded, err := json.Marshal(v)
	if err != nil {
		logf.Printf("marshal handler result: %v", err)
		return json.RawMessage("null")
	}
	return encoded
}

// handleEvent fans a 0xf4 notification out to every locally-registered
// callback for its event name, each on the handler worker pool so a slow
// or reentrant callback cannot stall delivery to the others.
func (c *Conn) handleEvent(body []byte) {
	var evt wire.EventBody
	if err := wire.Decode(body, &evt); err != nil {
		c.log.Printf("decode event: %v", err)
		return
	}

	c.subsMu.Lock()
	cbs := append([]EventCallback(nil), c.subs[evt.Event]...)
	c.subsMu.Unlock()

	for _, cb := range cbs {
		cb := cb
		c.sem <- struct{}{}
		go func() {
			defer func() { <-c.sem }()
			defer func() {
				if r := recover(); r != nil {
					c.log.Printf("event callback panic: %v", r)
				}
			}()
			cb(evt.Data)
		}()
	}
}
