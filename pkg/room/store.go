// Package room is the persistence and presence collaborator: rooms,
// participants, and the durable message log live in Postgres, with
// LISTEN/NOTIFY fan-out so every client observes remote inserts and
// presence changes without polling.
package room

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Message is one finalized utterance in a room's durable log. The
// broadcaster persists the original text plus its own translation;
// listeners on other language pairs re-translate locally.
type Message struct {
	ID             string    `json:"id"`
	RoomID         string    `json:"room_id"`
	SenderID       string    `json:"sender_id"`
	SenderName     string    `json:"sender_name"`
	SourceLanguage string    `json:"source_language"`
	OriginalText   string    `json:"original_text"`
	TranslatedText string    `json:"translated_text"`
	CreatedAt      time.Time `json:"created_at"`
}

// Participant is one present member of a room.
type Participant struct {
	ID             string    `json:"id"`
	RoomID         string    `json:"room_id"`
	Name           string    `json:"name"`
	Language       string    `json:"language"`
	IsBroadcasting bool      `json:"is_broadcasting"`
	JoinedAt       time.Time `json:"joined_at"`
}

// Store wraps the connection pool. All methods are safe for concurrent
// use.
type Store struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, dsn string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open room store: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping room store: %w", err)
	}
	return &Store{pool: pool, log: log}, nil
}

func (s *Store) Close() { s.pool.Close() }

// FetchMessages returns up to limit messages for the room in creation
// order, oldest first.
func (s *Store) FetchMessages(ctx context.Context, roomID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, room_id, sender_id, sender_name, source_language,
		       original_text, translated_text, created_at
		FROM messages
		WHERE room_id = $1
		ORDER BY created_at ASC
		LIMIT $2`, roomID, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}
	msgs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Message, error) {
		var m Message
		err := row.Scan(&m.ID, &m.RoomID, &m.SenderID, &m.SenderName,
			&m.SourceLanguage, &m.OriginalText, &m.TranslatedText, &m.CreatedAt)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan messages: %w", err)
	}
	return msgs, nil
}

// FetchMessage returns a single message by id. Used by the notify
// subscription, whose payloads carry only the row reference.
func (s *Store) FetchMessage(ctx context.Context, id string) (Message, error) {
	var m Message
	err := s.pool.QueryRow(ctx, `
		SELECT id, room_id, sender_id, sender_name, source_language,
		       original_text, translated_text, created_at
		FROM messages
		WHERE id = $1`, id).Scan(
		&m.ID, &m.RoomID, &m.SenderID, &m.SenderName,
		&m.SourceLanguage, &m.OriginalText, &m.TranslatedText, &m.CreatedAt)
	if err != nil {
		return Message{}, fmt.Errorf("fetch message %s: %w", id, err)
	}
	return m, nil
}

// InsertMessage appends one finalized message to the room log. The
// insert fires the notify trigger, so remote clients see it through
// SubscribeMessages.
func (s *Store) InsertMessage(ctx context.Context, m Message) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO messages
			(id, room_id, sender_id, sender_name, source_language,
			 original_text, translated_text, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		m.ID, m.RoomID, m.SenderID, m.SenderName, m.SourceLanguage,
		m.OriginalText, m.TranslatedText, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// UpsertParticipant registers presence, replacing any previous row for
// the same participant id.
func (s *Store) UpsertParticipant(ctx context.Context, p Participant) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO participants (id, room_id, name, language, is_broadcasting, joined_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			room_id = EXCLUDED.room_id,
			name = EXCLUDED.name,
			language = EXCLUDED.language,
			is_broadcasting = EXCLUDED.is_broadcasting`,
		p.ID, p.RoomID, p.Name, p.Language, p.IsBroadcasting, p.JoinedAt)
	if err != nil {
		return fmt.Errorf("upsert participant: %w", err)
	}
	return nil
}

// SetBroadcasting flips the participant's broadcasting flag.
func (s *Store) SetBroadcasting(ctx context.Context, participantID string, on bool) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE participants SET is_broadcasting = $2 WHERE id = $1`,
		participantID, on)
	if err != nil {
		return fmt.Errorf("set broadcasting: %w", err)
	}
	return nil
}

// SetLanguage updates the participant's listening language.
func (s *Store) SetLanguage(ctx context.Context, participantID, language string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE participants SET language = $2 WHERE id = $1`,
		participantID, language)
	if err != nil {
		return fmt.Errorf("set language: %w", err)
	}
	return nil
}

// RemoveParticipant drops the presence row on leave.
func (s *Store) RemoveParticipant(ctx context.Context, participantID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM participants WHERE id = $1`, participantID)
	if err != nil {
		return fmt.Errorf("remove participant: %w", err)
	}
	return nil
}

// Participants returns the room's present members, oldest join first.
func (s *Store) Participants(ctx context.Context, roomID string) ([]Participant, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, room_id, name, language, is_broadcasting, joined_at
		FROM participants
		WHERE room_id = $1
		ORDER BY joined_at ASC`, roomID)
	if err != nil {
		return nil, fmt.Errorf("fetch participants: %w", err)
	}
	ps, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Participant, error) {
		var p Participant
		err := row.Scan(&p.ID, &p.RoomID, &p.Name, &p.Language, &p.IsBroadcasting, &p.JoinedAt)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan participants: %w", err)
	}
	return ps, nil
}
