package model

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
)

type MemoryID string

// NewMemoryID generates a new unique MemoryID
func NewMemoryID() MemoryID {
	return MemoryID(uuid.New().String())
}

// Metadata keys shared between the sync coordinator, the store and the CLI
const (
	MetaSource    = "source"
	MetaRole      = "role"
	MetaType      = "type"
	MetaAgentID   = "agent_id"
	MetaMessageID = "message_id"
	MetaTimestamp = "timestamp"
	MetaQuery     = "query"
)

// Values for the "source" metadata key
const (
	SourceCoreMemory  = "agent_core_memory"
	SourceChatHistory = "agent_chat_history"
	SourceWebSearch   = "web_search"
	SourceChat        = "chat"
	SourceManual      = "manual"
)

// TypeToolUsage tags chat history entries that carry a tool call trace
const TypeToolUsage = "tool_usage"

// MemoryRecord is the atomic unit of persisted memory. A record is immutable
// once inserted; updates are modeled as new inserts.
type MemoryRecord struct {
	ID        MemoryID
	Text      string
	Embedding firestore.Vector32
	Metadata  map[string]string
	CreatedAt time.Time
}

// SearchResult pairs a retrieved record with its similarity score. Result
// sequences are ordered by descending score, ties broken by CreatedAt
// descending.
type SearchResult struct {
	Record *MemoryRecord
	Score  float64
}

// SyncCursor tracks which agent items have already been synchronized,
// identified by content fingerprint. It is persisted alongside the records so
// re-running sync is idempotent.
type SyncCursor struct {
	AgentID      string
	Fingerprints []string
	UpdatedAt    time.Time
}

// Set returns the cursor fingerprints as a lookup set.
func (c *SyncCursor) Set() map[string]struct{} {
	set := make(map[string]struct{}, len(c.Fingerprints))
	for _, fp := range c.Fingerprints {
		set[fp] = struct{}{}
	}
	return set
}

// Fingerprint derives a stable content identifier used to detect whether an
// item has already been synchronized. Equal inputs always yield the same
// fingerprint across runs and processes.
func Fingerprint(kind, role, text string) string {
	h := sha256.New()
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write([]byte(role))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}
