package ubus

import (
	"encoding/json"
	"sync"
)

var (
	defaultMu     sync.Mutex
	defaultClient *Client
)

func shared() *Client {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultClient == nil {
		defaultClient = NewClient()
	}
	return defaultClient
}

// Connect opens the default Client's connection to the broker's well-known
// socket.
func Connect() bool {
	return shared().ConnectDefault()
}

// Disconnect closes the default Client's connection.
func Disconnect() {
	shared().Disconnect()
}

// OnDisconnect registers the default Client's disconnect callback.
func OnDisconnect(cb func()) {
	shared().OnDisconnect(cb)
}

// Send publishes event via the default Client.
func Send(event string, data any) error {
	return shared().Send(event, data)
}

// Listen subscribes to event via the default Client.
func Listen(event string, cb EventCallback) bool {
	return shared().Listen(event, cb)
}

// Add registers object via the default Client.
func Add(object string, methods map[string]Handler) bool {
	return shared().Add(object, methods)
}

// Call invokes object.fn via the default Client.
func Call(object, fn string, data any) (json.RawMessage, bool) {
	return shared().Call(object, fn, data)
}
