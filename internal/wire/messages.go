package wire

import "encoding/json"

// RegisterBody is the 0x00 client->broker body: register an object.
type RegisterBody struct {
	ID     string   `json:"_id"`
	Object string   `json:"object"`
	Funcs  []string `json:"funcs"`
}

// RegisterAckBody is the 0xf0 broker->client reply to RegisterBody.
type RegisterAckBody struct {
	ID  string `json:"_id"`
	Ret int    `json:"ret"`
}

// InvokeBody is the 0x01 client->broker body: invoke a method.
type InvokeBody struct {
	ID     string          `json:"_id"`
	Object string          `json:"object"`
	Func   string          `json:"func"`
	Data   json.RawMessage `json:"data"`
}

// ForwardBody is the 0xf2 broker->client body: a forwarded invocation the
// owner must execute and reply to.
type ForwardBody struct {
	ID     string          `json:"_id"`
	CS     int64           `json:"_cs"`
	Object string          `json:"object"`
	Func   string          `json:"func"`
	Data   json.RawMessage `json:"data"`
}

// ReplyBody is the 0x02 client->broker body: the owner's reply to a
// forwarded invocation.
type ReplyBody struct {
	ID   string          `json:"_id"`
	CS   int64           `json:"_cs"`
	Data json.RawMessage `json:"data"`
}

// InvokeReplyBody is the 0xf1 broker->client body: the result of a call.
type InvokeReplyBody struct {
	ID   string          `json:"_id"`
	Ret  int             `json:"ret"`
	Data json.RawMessage `json:"data,omitempty"`
}

// SubscribeBody is the 0x03 client->broker body: subscribe to an event.
type SubscribeBody struct {
	ID    string `json:"_id"`
	Event string `json:"event"`
}

// SubscribeAckBody is the 0xf3 broker->client reply to SubscribeBody.
type SubscribeAckBody struct {
	ID  string `json:"_id"`
	Ret int    `json:"ret"`
}

// PublishBody is the 0x04 client->broker body: publish an event.
type PublishBody struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// EventBody is the 0xf4 broker->client body: an event notification.
type EventBody struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}
