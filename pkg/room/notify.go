package room

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const (
	messageChannel     = "voxroom_messages"
	participantChannel = "voxroom_participants"
)

// ParticipantChange is one presence mutation observed via notify.
type ParticipantChange struct {
	Op          string // INSERT, UPDATE or DELETE
	Participant Participant
}

// SubscribeMessages streams remote message inserts for one room. A
// dedicated connection is held for the listen loop; it is released and
// the returned channel closed when ctx is cancelled. Notification
// payloads carry only the row reference because NOTIFY caps payloads at
// 8000 bytes, so each delivery re-fetches the full message through the
// pool. Malformed payloads are logged and skipped, never fatal to the
// subscription.
func (s *Store) SubscribeMessages(ctx context.Context, roomID string) (<-chan Message, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire listen conn: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+messageChannel); err != nil {
		conn.Release()
		return nil, fmt.Errorf("listen %s: %w", messageChannel, err)
	}

	out := make(chan Message, 64)
	go func() {
		defer close(out)
		defer conn.Release()
		for {
			n, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				if ctx.Err() == nil {
					s.log.Warn("message subscription ended", "err", err)
				}
				return
			}
			ref, err := decodeMessageRef([]byte(n.Payload))
			if err != nil {
				s.log.Warn("bad message notification", "err", err)
				continue
			}
			if ref.RoomID != roomID {
				continue
			}
			m, err := s.FetchMessage(ctx, ref.ID)
			if err != nil {
				if ctx.Err() == nil {
					s.log.Warn("fetch notified message", "id", ref.ID, "err", err)
				}
				continue
			}
			select {
			case out <- m:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// SubscribeParticipants streams presence changes for one room.
func (s *Store) SubscribeParticipants(ctx context.Context, roomID string) (<-chan ParticipantChange, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire listen conn: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+participantChannel); err != nil {
		conn.Release()
		return nil, fmt.Errorf("listen %s: %w", participantChannel, err)
	}

	out := make(chan ParticipantChange, 64)
	go func() {
		defer close(out)
		defer conn.Release()
		for {
			n, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				if ctx.Err() == nil {
					s.log.Warn("participant subscription ended", "err", err)
				}
				return
			}
			change, err := decodeParticipantPayload([]byte(n.Payload))
			if err != nil {
				s.log.Warn("bad participant notification", "err", err)
				continue
			}
			if change.Participant.RoomID != roomID {
				continue
			}
			select {
			case out <- change:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Wire forms for trigger payloads. Message notifications carry only the
// row reference; participant rows are small and arrive whole, with
// timestamps as ISO 8601 text with a numeric offset.

type messageRef struct {
	ID     string `json:"id"`
	RoomID string `json:"room_id"`
}

type participantPayload struct {
	Op  string `json:"op"`
	Row struct {
		ID             string `json:"id"`
		RoomID         string `json:"room_id"`
		Name           string `json:"name"`
		Language       string `json:"language"`
		IsBroadcasting bool   `json:"is_broadcasting"`
		JoinedAt       string `json:"joined_at"`
	} `json:"row"`
}

func parsePGTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999-07"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func decodeMessageRef(b []byte) (messageRef, error) {
	var ref messageRef
	if err := json.Unmarshal(b, &ref); err != nil {
		return messageRef{}, fmt.Errorf("decode message payload: %w", err)
	}
	if ref.ID == "" {
		return messageRef{}, fmt.Errorf("message payload missing id")
	}
	return ref, nil
}

func decodeParticipantPayload(b []byte) (ParticipantChange, error) {
	var p participantPayload
	if err := json.Unmarshal(b, &p); err != nil {
		return ParticipantChange{}, fmt.Errorf("decode participant payload: %w", err)
	}
	if p.Row.ID == "" {
		return ParticipantChange{}, fmt.Errorf("participant payload missing id")
	}
	joined, err := parsePGTime(p.Row.JoinedAt)
	if err != nil {
		return ParticipantChange{}, fmt.Errorf("decode participant payload: %w", err)
	}
	return ParticipantChange{
		Op: p.Op,
		Participant: Participant{
			ID:             p.Row.ID,
			RoomID:         p.Row.RoomID,
			Name:           p.Row.Name,
			Language:       p.Row.Language,
			IsBroadcasting: p.Row.IsBroadcasting,
			JoinedAt:       joined,
		},
	}, nil
}
