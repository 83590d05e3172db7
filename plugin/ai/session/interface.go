// Package session keeps chat transcripts in memory and mirrors each one to a
// JSON snapshot on disk after every change.
package session

import (
	"context"
	"errors"
	"time"
)

// ErrSessionNotFound is returned for unknown session ids.
var ErrSessionNotFound = errors.New("session not found")

// SessionService defines the transcript store consumed by the chat service.
type SessionService interface {
	// CreateSession starts a transcript holding a single assistant welcome turn.
	CreateSession(ctx context.Context) (*Session, error)

	// AppendTurn appends one turn and rewrites the session snapshot.
	// Unknown ids fail with ErrSessionNotFound and write nothing.
	AppendTurn(ctx context.Context, sessionID string, role Role, content string) error

	// GetSession returns a copy of the transcript.
	GetSession(ctx context.Context, sessionID string) (*Session, error)

	// ListTranscripts lists the snapshots available for download.
	ListTranscripts(ctx context.Context) ([]TranscriptInfo, error)

	// DeleteTranscript removes a snapshot by file name and reports whether it existed.
	DeleteTranscript(ctx context.Context, name string) (bool, error)
}

// Role identifies the author of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message of a transcript. Turns are never modified after append.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is an ordered transcript.
type Session struct {
	ID        string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
	Turns     []Turn    `json:"turns"`
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	out := *s
	out.Turns = append([]Turn(nil), s.Turns...)
	return &out
}

// TranscriptInfo describes a persisted snapshot.
type TranscriptInfo struct {
	File string `json:"file"`
	Name string `json:"name"`
}
