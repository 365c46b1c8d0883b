// Package ws is the subscriber-facing WebSocket gateway: clients
// subscribe to match channels, get an immediate snapshot replay and
// then live deltas bridged from the Redis fanout.
package ws

import (
	"encoding/json"
	"errors"
)

// ErrSubscriptionLimit reports a connection at its channel cap.
var ErrSubscriptionLimit = errors.New("ws: subscription limit reached")

// Client operations.
const (
	opSubscribe   = "subscribe"
	opUnsubscribe = "unsubscribe"
	opPing        = "ping"
)

// Server frame types.
const (
	msgState    = "state"
	msgSnapshot = "snapshot"
	msgDelta    = "delta"
	msgPong     = "pong"
	msgError    = "error"
)

// clientMessage is the single inbound frame shape. tiers defaults to
// scoreboard-only on subscribe and all tiers on unsubscribe.
type clientMessage struct {
	Op      string `json:"op"`
	MatchID string `json:"match_id,omitempty"`
	Tiers   []int  `json:"tiers,omitempty"`
}

// stateFrame is the welcome/confirmation frame.
type stateFrame struct {
	Type              string   `json:"type"`
	ConnectionID      string   `json:"connection_id,omitempty"`
	MaxSubscriptions  int      `json:"max_subscriptions,omitempty"`
	HeartbeatInterval float64  `json:"heartbeat_interval,omitempty"`
	Subscribed        []string `json:"subscribed,omitempty"`
}

// snapshotFrame carries replayed state to a new subscriber.
type snapshotFrame struct {
	Type    string          `json:"type"`
	MatchID string          `json:"match_id"`
	Tier    int             `json:"tier"`
	Data    json.RawMessage `json:"data"`
	Replay  bool            `json:"replay"`
	Kind    string          `json:"kind,omitempty"`
}

// deltaFrame carries one live update.
type deltaFrame struct {
	Type      string          `json:"type"`
	MatchID   string          `json:"match_id"`
	Tier      int             `json:"tier"`
	Data      json.RawMessage `json:"data"`
	Timestamp float64         `json:"timestamp"`
}

type pongFrame struct {
	Type      string  `json:"type"`
	Timestamp float64 `json:"timestamp"`
}

type errorFrame struct {
	Type  string      `json:"type"`
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		// frames are built from plain structs; this cannot fail at runtime
		panic(err)
	}
	return data
}
