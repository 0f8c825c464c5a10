package client

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// encodeObjectData marshals data to JSON and enforces that it encodes to a
// JSON object. A nil data argument becomes an empty object.
func encodeObjectData(data any) (json.RawMessage, error) {
	if data == nil {
		return json.RawMessage(`{}`), nil
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("client: marshal data: %w", err)
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("client: data must encode to a JSON object, got %s", raw)
	}
	return raw, nil
}
