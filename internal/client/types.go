package client

import "encoding/json"

// Handler is a locally-registered method: it receives a forwarded
// invocation's decoded argument and returns a reply (or nil for "nothing").
type Handler func(data json.RawMessage) (any, error)

// EventCallback receives the payload of an event this client subscribed to.
type EventCallback func(data json.RawMessage)

// ackBody is the common shape of the broker's three "did it work"
// acknowledgements (0xf0 register-ack, 0xf1 invoke-reply, 0xf3
// subscribe-ack): a correlated _id, a ret flag, and optional data.
type ackBody struct {
	ID   string          `json:"_id"`
	Ret  int             `json:"ret"`
	Data json.RawMessage `json:"data,omitempty"`
}
