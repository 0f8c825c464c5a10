package client

import (
	"encoding/json"
	"net"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tenzoki/ubus/internal/wire"
)

// fakeBroker is a minimal stand-in for the real broker: it accepts one
// connection and lets the test script exactly which frames go back, so
// client-side behavior (rendezvous, timeout, dispatch) can be tested without
// a full internal/broker.Service.
type fakeBroker struct {
	ln   net.Listener
	conn net.Conn
}

func newFakeBroker(t *testing.T) (*fakeBroker, string) {
	t.Helper()
	sockPath := filepath.Join(t.TempDir(), "fake.sock")
	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	return &fakeBroker{ln: ln}, sockPath
}

func (f *fakeBroker) accept(t *testing.T) net.Conn {
	t.Helper()
	nc, err := f.ln.Accept()
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	f.conn = nc
	return nc
}

func (f *fakeBroker) readFrame(t *testing.T) (wire.Tag, []byte) {
	t.Helper()
	f.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	tag, body, err := wire.ReadFrame(f.conn)
	if err != nil {
		t.Fatalf("fake broker read: %v", err)
	}
	return tag, body
}

func (f *fakeBroker) sendFrame(t *testing.T, tag wire.Tag, body any) {
	t.Helper()
	frame, err := wire.Encode(tag, body)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := f.conn.Write(frame); err != nil {
		t.Fatalf("fake broker write: %v", err)
	}
}

// TestRegisterSuccess exercises the register rendezvous: a request goes out,
// the fake broker acks it, and Register returns true.
func TestRegisterSuccess(t *testing.T) {
	fb, sockPath := newFakeBroker(t)
	defer fb.ln.Close()

	conn, err := Dial(Config{SocketPath: sockPath})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	fb.accept(t)
	defer conn.Close()

	go func() {
		tag, body := fb.readFrame(t)
		if tag != wire.TagRegister {
			t.Errorf("expected register, got %#x", byte(tag))
			return
		}
		var req wire.RegisterBody
		wire.Decode(body, &req)
		fb.sendFrame(t, wire.TagRegisterAck, wire.RegisterAckBody{ID: req.ID, Ret: 1})
	}()

	ok := conn.Register("calc", map[string]Handler{
		"add": func(data json.RawMessage) (any, error) { return nil, nil },
	})
	if !ok {
		t.Fatalf("expected register to succeed")
	}
}

// TestCallTimesOutWithoutReply checks that Call gives up after CallTimeout
// and returns false rather than blocking forever.
func TestCallTimesOutWithoutReply(t *testing.T) {
	fb, sockPath := newFakeBroker(t)
	defer fb.ln.Close()

	conn, err := Dial(Config{SocketPath: sockPath, CallTimeout: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	fb.accept(t)
	defer conn.Close()

	go func() {
		fb.readFrame(t) // consume the invoke, never reply
	}()

	_, ok := conn.Call("calc", "add", map[string]int{"a": 1})
	if ok {
		t.Fatalf("expected call to time out and fail")
	}
}

// TestForwardedInvocationDispatchesAndReplies checks that a 0xf2 forward for
// a registered method runs the handler and writes a 0x02 reply, without
// blocking the reader loop.
func TestForwardedInvocationDispatchesAndReplies(t *testing.T) {
	fb, sockPath := newFakeBroker(t)
	defer fb.ln.Close()

	conn, err := Dial(Config{SocketPath: sockPath})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	fb.accept(t)
	defer conn.Close()

	registered := make(chan struct{})
	go func() {
		tag, body := fb.readFrame(t)
		var req wire.RegisterBody
		wire.Decode(body, &req)
		fb.sendFrame(t, wire.TagRegisterAck, wire.RegisterAckBody{ID: req.ID, Ret: 1})
		close(registered)
		_ = tag

		fb.sendFrame(t, wire.TagForward, wire.ForwardBody{
			ID: "inv-1", CS: 7, Object: "calc", Func: "add", Data: json.RawMessage(`{"a":1,"b":2}`),
		})

		replyTag, replyBody := fb.readFrame(t)
		if replyTag != wire.TagReply {
			t.Errorf("expected reply tag, got %#x", byte(replyTag))
			return
		}
		var reply wire.ReplyBody
		wire.Decode(replyBody, &reply)
		if reply.ID != "inv-1" || reply.CS != 7 {
			t.Errorf("unexpected reply correlation: %+v", reply)
		}
		if string(reply.Data) != `{"sum":3}` {
			t.Errorf("unexpected reply data: %s", reply.Data)
		}
	}()

	conn.Register("calc", map[string]Handler{
		"add": func(data json.RawMessage) (any, error) {
			var args struct{ A, B int }
			json.Unmarshal(data, &args)
			return map[string]int{"sum": args.A + args.B}, nil
		},
	})
	<-registered
	time.Sleep(100 * time.Millisecond)
}

// TestHandlerPanicStillRepliesWithNull checks that a panicking handler is
// recovered and the reply still goes out, carrying JSON null.
func TestHandlerPanicStillRepliesWithNull(t *testing.T) {
	fb, sockPath := newFakeBroker(t)
	defer fb.ln.Close()

	conn, err := Dial(Config{SocketPath: sockPath})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	fb.accept(t)
	defer conn.Close()

	go func() {
		_, body := fb.readFrame(t)
		var req wire.RegisterBody
		wire.Decode(body, &req)
		fb.sendFrame(t, wire.TagRegisterAck, wire.RegisterAckBody{ID: req.ID, Ret: 1})

		fb.sendFrame(t, wire.TagForward, wire.ForwardBody{
			ID: "inv-2", CS: 9, Object: "boom", Func: "explode", Data: json.RawMessage(`{}`),
		})

		_, replyBody := fb.readFrame(t)
		var reply wire.ReplyBody
		wire.Decode(replyBody, &reply)
		if string(reply.Data) != "null" {
			t.Errorf("expected null reply after panic, got %s", reply.Data)
		}
	}()

	conn.Register("boom", map[string]Handler{
		"explode": func(data json.RawMessage) (any, error) {
			panic("boom")
		},
	})
	time.Sleep(150 * time.Millisecond)
}

// TestDisconnectCallbackFiresExactlyOnce checks that an explicit Close and
// the reader's own EOF detection don't both invoke the disconnect callback.
func TestDisconnectCallbackFiresExactlyOnce(t *testing.T) {
	fb, sockPath := newFakeBroker(t)
	defer fb.ln.Close()

	go func() {
		fb.accept(t)
	}()

	conn, err := Dial(Config{SocketPath: sockPath})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	var calls int32
	var wg sync.WaitGroup
	wg.Add(1)
	conn.OnDisconnect(func() {
		atomic.AddInt32(&calls, 1)
		wg.Done()
	})

	conn.Close()
	wg.Wait()
	time.Sleep(50 * time.Millisecond)

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected disconnect callback exactly once, got %d", got)
	}
}
