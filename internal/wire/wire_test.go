package wire

import (
	"bytes"
	"encoding/json"
	"io"
	"testing"
)

// TestEncodeDecodeRoundTrip verifies decode(encode(T, B)) == (T, B) for a
// representative body on every tag.
func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		tag  Tag
		body any
	}{
		{"register", TagRegister, RegisterBody{ID: "a", Object: "obj", Funcs: []string{"m"}}},
		{"invoke", TagInvoke, InvokeBody{ID: "b", Object: "obj", Func: "m", Data: json.RawMessage(`{"x":1}`)}},
		{"reply", TagReply, ReplyBody{ID: "c", CS: 7, Data: json.RawMessage(`{"y":2}`)}},
		{"subscribe", TagSubscribe, SubscribeBody{ID: "d", Event: "ev"}},
		{"publish", TagPublish, PublishBody{Event: "ev", Data: json.RawMessage(`{}`)}},
		{"registerAck", TagRegisterAck, RegisterAckBody{ID: "e", Ret: 1}},
		{"invokeReply", TagInvokeReply, InvokeReplyBody{ID: "f", Ret: 1, Data: json.RawMessage(`{"z":3}`)}},
		{"forward", TagForward, ForwardBody{ID: "g", CS: 9, Object: "obj", Func: "m", Data: json.RawMessage(`{}`)}},
		{"subscribeAck", TagSubscribeOK, SubscribeAckBody{ID: "h", Ret: 1}},
		{"event", TagEvent, EventBody{Event: "ev", Data: json.RawMessage(`{"k":"v"}`)}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			frame, err := Encode(c.tag, c.body)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}

			gotTag, gotBody, err := ReadFrame(bytes.NewReader(frame))
			if err != nil {
				t.Fatalf("ReadFrame: %v", err)
			}
			if gotTag != c.tag {
				t.Fatalf("tag = %v, want %v", gotTag, c.tag)
			}

			wantBody, _ := json.Marshal(c.body)
			if !bytes.Equal(gotBody, wantBody) {
				t.Fatalf("body = %s, want %s", gotBody, wantBody)
			}
		})
	}
}

func TestReadFrameEOFOnCleanClose(t *testing.T) {
	_, _, err := ReadFrame(bytes.NewReader(nil))
	if err != io.EOF {
		t.Fatalf("err = %v, want io.EOF", err)
	}
}

func TestReadFrameTruncatedLength(t *testing.T) {
	_, _, err := ReadFrame(bytes.NewReader([]byte{1, 2}))
	if err == nil {
		t.Fatal("expected error for truncated length prefix")
	}
}

func TestReadFrameTruncatedBody(t *testing.T) {
	frame, err := Encode(TagPublish, PublishBody{Event: "ev", Data: json.RawMessage(`{}`)})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	_, _, err = ReadFrame(bytes.NewReader(frame[:len(frame)-2]))
	if err == nil {
		t.Fatal("expected error for truncated body")
	}
}

func TestReadFrameConsecutive(t *testing.T) {
	var buf bytes.Buffer
	f1, _ := Encode(TagPublish, PublishBody{Event: "e1", Data: json.RawMessage(`1`)})
	f2, _ := Encode(TagPublish, PublishBody{Event: "e2", Data: json.RawMessage(`2`)})
	buf.Write(f1)
	buf.Write(f2)

	var got []string
	for i := 0; i < 2; i++ {
		tag, body, err := ReadFrame(&buf)
		if err != nil {
			t.Fatalf("ReadFrame %d: %v", i, err)
		}
		if tag != TagPublish {
			t.Fatalf("tag = %v, want TagPublish", tag)
		}
		var p PublishBody
		if err := Decode(body, &p); err != nil {
			t.Fatalf("Decode: %v", err)
		}
		got = append(got, p.Event)
	}

	if got[0] != "e1" || got[1] != "e2" {
		t.Fatalf("frames out of order: %v", got)
	}
}
