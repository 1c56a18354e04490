package pushchannel

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Engine.IO v4 packet types
const (
	engineOpen    = '0'
	engineClose   = '1'
	enginePing    = '2'
	enginePong    = '3'
	engineMessage = '4'
	engineUpgrade = '5'
	engineNoop    = '6'
)

// Socket.IO v5 packet types, carried inside Engine.IO messages
const (
	socketConnect      = '0'
	socketDisconnect   = '1'
	socketEvent        = '2'
	socketAck          = '3'
	socketConnectError = '4'
	socketBinaryEvent  = '5'
	socketBinaryAck    = '6'
)

// recordSeparator splits packets in a long-polling payload
const recordSeparator = "\x1e"

var errMalformedPacket = errors.New("malformed packet")

// handshake is the Engine.IO open packet body
type handshake struct {
	SID          string   `json:"sid"`
	Upgrades     []string `json:"upgrades"`
	PingInterval int      `json:"pingInterval"`
	PingTimeout  int      `json:"pingTimeout"`
	MaxPayload   int      `json:"maxPayload"`
}

func decodeHandshake(pkt string) (handshake, error) {
	var hs handshake
	if len(pkt) == 0 || pkt[0] != engineOpen {
		return hs, fmt.Errorf("expected open packet, got %q: %w", truncate(pkt), errMalformedPacket)
	}
	if err := json.Unmarshal([]byte(pkt[1:]), &hs); err != nil {
		return hs, fmt.Errorf("decode open packet: %w", err)
	}
	return hs, nil
}

// socketPacket is a decoded Socket.IO packet
type socketPacket struct {
	kind      byte
	namespace string
	ackID     string
	data      string
}

func decodeSocketPacket(s string) (socketPacket, error) {
	if len(s) == 0 {
		return socketPacket{}, errMalformedPacket
	}
	p := socketPacket{kind: s[0], namespace: "/"}
	if p.kind == socketBinaryEvent || p.kind == socketBinaryAck {
		return p, fmt.Errorf("binary packets are not supported: %w", errMalformedPacket)
	}
	rest := s[1:]
	if strings.HasPrefix(rest, "/") {
		idx := strings.IndexByte(rest, ',')
		if idx < 0 {
			p.namespace, rest = rest, ""
		} else {
			p.namespace, rest = rest[:idx], rest[idx+1:]
		}
	}
	i := 0
	for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
		i++
	}
	p.ackID, p.data = rest[:i], rest[i:]
	return p, nil
}

// event splits an EVENT packet body into its name and first argument
func (p socketPacket) event() (string, json.RawMessage, error) {
	var args []json.RawMessage
	if err := json.Unmarshal([]byte(p.data), &args); err != nil {
		return "", nil, fmt.Errorf("decode event: %w", err)
	}
	if len(args) == 0 {
		return "", nil, fmt.Errorf("event without name: %w", errMalformedPacket)
	}
	var name string
	if err := json.Unmarshal(args[0], &name); err != nil {
		return "", nil, fmt.Errorf("decode event name: %w", err)
	}
	if len(args) == 1 {
		return name, nil, nil
	}
	return name, args[1], nil
}

// errorMessage extracts the message of a CONNECT_ERROR packet
func (p socketPacket) errorMessage() string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(p.data), &body); err == nil && body.Message != "" {
		return body.Message
	}
	if p.data != "" {
		return p.data
	}
	return "connection refused"
}

func encodeConnect(token string) (string, error) {
	prefix := string([]byte{engineMessage, socketConnect})
	if token == "" {
		return prefix, nil
	}
	auth, err := json.Marshal(map[string]string{"token": token})
	if err != nil {
		return "", err
	}
	return prefix + string(auth), nil
}

func encodeEvent(name string, payload any) (string, error) {
	args := []any{name}
	if payload != nil {
		args = append(args, payload)
	}
	b, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("encode event %q: %w", name, err)
	}
	return string([]byte{engineMessage, socketEvent}) + string(b), nil
}

func splitPayload(body string) []string {
	if body == "" {
		return nil
	}
	return strings.Split(body, recordSeparator)
}

func truncate(s string) string {
	if len(s) > 64 {
		return s[:64] + "..."
	}
	return s
}
