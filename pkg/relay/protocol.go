// Package relay is the room media transport: a websocket fan-out server
// plus the client used by voxroom binaries. Members of a room exchange
// binary PCM frames and JSON text events; the relay forwards each frame
// to every other member of the same room.
package relay

import (
	"encoding/json"
	"fmt"
	"strings"
)

// join is the mandatory first text frame on a new connection.
type join struct {
	Type          string `json:"type"`
	Room          string `json:"room"`
	ParticipantID string `json:"participant_id"`
	Name          string `json:"name"`
}

// joined acknowledges a successful join.
type joined struct {
	Type    string `json:"type"`
	Room    string `json:"room"`
	Members int    `json:"members"`
}

// wsError is sent before the server closes a rejected connection.
type wsError struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func decodeJoin(data []byte) (join, error) {
	var j join
	if err := json.Unmarshal(data, &j); err != nil {
		return join{}, fmt.Errorf("decode join: %w", err)
	}
	if j.Type != "join" {
		return join{}, fmt.Errorf("first frame must be join, got %q", j.Type)
	}
	if strings.TrimSpace(j.Room) == "" {
		return join{}, fmt.Errorf("join missing room")
	}
	if strings.TrimSpace(j.ParticipantID) == "" {
		return join{}, fmt.Errorf("join missing participant_id")
	}
	return j, nil
}
