package framework

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Server side of the Socket.IO v5 framing over Engine.IO v4 text frames,
// limited to what the fake backend exchanges with a client

const (
	frameConnect = "40"
	frameEvent   = "42"
)

func openFrame(sid string) string {
	return fmt.Sprintf(`0{"sid":%q,"upgrades":[],"pingInterval":25000,"pingTimeout":20000,"maxPayload":1000000}`, sid)
}

func connectFrame(sid string) string {
	return fmt.Sprintf(`40{"sid":%q}`, sid)
}

func encodeEvent(event string, args ...interface{}) ([]byte, error) {
	data, err := json.Marshal(append([]interface{}{event}, args...))
	if err != nil {
		return nil, fmt.Errorf("failed to encode %q event: %w", event, err)
	}
	return append([]byte(frameEvent), data...), nil
}

// decodeEvent returns the name and raw arguments of a client event frame
func decodeEvent(frame string) (string, []json.RawMessage, bool) {
	if !strings.HasPrefix(frame, frameEvent) {
		return "", nil, false
	}
	body := strings.TrimLeft(frame[len(frameEvent):], "0123456789")

	var parts []json.RawMessage
	if err := json.Unmarshal([]byte(body), &parts); err != nil || len(parts) == 0 {
		return "", nil, false
	}
	var name string
	if err := json.Unmarshal(parts[0], &name); err != nil {
		return "", nil, false
	}
	return name, parts[1:], true
}
