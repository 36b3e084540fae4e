package model

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleHuman     Role = "human"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool { return r == RoleHuman || r == RoleAssistant }

// Turn is one utterance in a conversation. Turns are immutable once created;
// new turns are appended, never rewritten.
type Turn struct {
	UserID    string    `json:"userId"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTurn builds a turn stamped with the current time.
func NewTurn(userID string, role Role, content string) Turn {
	return Turn{UserID: userID, Role: role, Content: content, Timestamp: time.Now().UTC()}
}

// TurnID returns a deterministic identifier for the turn: the hex SHA-256 of
// user, role, content and the minute-truncated timestamp. Re-processing the
// same inbound message after a queue redelivery yields the same ID, which the
// archive uses to make inserts idempotent.
func (t Turn) TurnID() string {
	h := sha256.New()
	h.Write([]byte(t.UserID))
	h.Write([]byte{0})
	h.Write([]byte(t.Role))
	h.Write([]byte{0})
	h.Write([]byte(t.Content))
	h.Write([]byte{0})
	h.Write([]byte(t.Timestamp.UTC().Truncate(time.Minute).Format(time.RFC3339)))
	return hex.EncodeToString(h.Sum(nil))
}

// ArchivedTurn is a turn together with its embedding vector, as stored in the
// vector archive.
type ArchivedTurn struct {
	TurnID       string    `json:"turnId"`
	UserID       string    `json:"userId"`
	Role         Role      `json:"role"`
	Content      string    `json:"content"`
	CreationTime time.Time `json:"creationTime"`
	Vector       []float32 `json:"-"`
}

// ArchiveHit is a similarity-search result from the vector archive. Distance
// is the store's native metric; lower means more similar.
type ArchiveHit struct {
	TurnID       string    `json:"turnId"`
	UserID       string    `json:"userId"`
	Role         Role      `json:"role"`
	Content      string    `json:"content"`
	CreationTime time.Time `json:"creationTime"`
	Distance     float64   `json:"distance"`
}

// Turn reconstructs the archived turn as a conversation turn.
func (h ArchiveHit) Turn() Turn {
	return Turn{UserID: h.UserID, Role: h.Role, Content: h.Content, Timestamp: h.CreationTime}
}
