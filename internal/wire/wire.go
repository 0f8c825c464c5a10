// Package wire implements the ubus framing protocol: a 4-byte little-endian
// length prefix, a 1-byte type tag, and a JSON body.
//
// Called by: internal/broker, internal/client
// Calls: encoding/binary, encoding/json
package wire

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// Tag identifies the kind of frame on the wire.
type Tag byte

// Message type tags, per the wire protocol.
const (
	TagRegister  Tag = 0x00 // client -> broker: register object
	TagInvoke    Tag = 0x01 // client -> broker: invoke method
	TagReply     Tag = 0x02 // client -> broker: reply to a forwarded invocation
	TagSubscribe Tag = 0x03 // client -> broker: subscribe to event
	TagPublish   Tag = 0x04 // client -> broker: publish event

	TagRegisterAck Tag = 0xf0 // broker -> client: registration ack/nack
	TagInvokeReply Tag = 0xf1 // broker -> client: reply to an invoke
	TagForward     Tag = 0xf2 // broker -> client: forwarded invocation to execute
	TagSubscribeOK Tag = 0xf3 // broker -> client: subscription ack
	TagEvent       Tag = 0xf4 // broker -> client: event notification
)

// maxFrameBody caps the body length we're willing to allocate for a single
// frame, guarding against a corrupt or hostile length prefix.
const maxFrameBody = 64 << 20 // 64MiB

// Encode serializes body to JSON and wraps it in a length-prefixed, tagged
// frame ready to write to the wire.
func Encode(tag Tag, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("wire: encode %v: %w", tag, err)
	}

	frame := make([]byte, 4+1+len(payload))
	binary.LittleEndian.PutUint32(frame[0:4], uint32(1+len(payload)))
	frame[4] = byte(tag)
	copy(frame[5:], payload)
	return frame, nil
}

// ReadFrame blocks until one complete frame has arrived on r, returning the
// tag and the raw JSON body. It returns io.EOF, unwrapped, when the peer
// closed the connection cleanly between frames.
func ReadFrame(r io.Reader) (Tag, []byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return 0, nil, fmt.Errorf("wire: truncated length prefix: %w", err)
		}
		return 0, nil, err
	}

	length := binary.LittleEndian.Uint32(lenBuf[:])
	if length == 0 {
		return 0, nil, fmt.Errorf("wire: zero-length frame")
	}
	if length > maxFrameBody {
		return 0, nil, fmt.Errorf("wire: frame body too large: %d bytes", length)
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, nil, fmt.Errorf("wire: truncated frame body: %w", err)
	}

	return Tag(buf[0]), buf[1:], nil
}

// Decode unmarshals a frame body into v.
func Decode(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("wire: decode body: %w", err)
	}
	return nil
}
