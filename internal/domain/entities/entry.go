// Package entities contains core domain data structures.
package entities

import (
	"crypto/sha1"
	"encoding/hex"
)

// Entry is a single work log record belonging to an entity.
// Date and Time are free-form strings as supplied by the source data.
type Entry struct {
	ID         string `json:"id"`
	Date       string `json:"date"`
	Time       string `json:"time"`
	Content    string `json:"content"`
	EntityKey  string `json:"entity_key"`
	EntityID   string `json:"entity_id"`
	EntityName string `json:"entity_name"`
}

// MakeEntryID returns the content fingerprint of an entry.
// The same (date, time, content) triple always yields the same ID.
func MakeEntryID(date, timeStr, content string) string {
	h := sha1.New()
	h.Write([]byte(date + "||" + timeStr + "||" + content))
	return hex.EncodeToString(h.Sum(nil))
}

// NewEntry builds an entry for the given entity key, deriving the ID and the
// entity sub-keys.
func NewEntry(entityKey, date, timeStr, content string) Entry {
	id, name := SplitEntityKey(entityKey)
	return Entry{
		ID:         MakeEntryID(date, timeStr, content),
		Date:       date,
		Time:       timeStr,
		Content:    content,
		EntityKey:  entityKey,
		EntityID:   id,
		EntityName: name,
	}
}

// WithEntity returns a copy of e tagged with the given entity key.
// A missing ID is filled in from the content fingerprint.
func (e Entry) WithEntity(entityKey string) Entry {
	e.EntityKey = entityKey
	e.EntityID, e.EntityName = SplitEntityKey(entityKey)
	if e.ID == "" {
		e.ID = MakeEntryID(e.Date, e.Time, e.Content)
	}
	return e
}

// ScoredEntry is an entry returned by semantic search.
type ScoredEntry struct {
	Entry
	Score float32 `json:"score"`
}

// Record is the Secondary Index projection of an entry: the entry plus the
// source file it was read from and that file's modification time.
type Record struct {
	Entry
	FilePath string  `json:"filepath"`
	MTime    float64 `json:"mtime"`
}

// SourceFile is a ledger row for one ingested physical file.
type SourceFile struct {
	Path  string  `json:"filepath"`
	MTime float64 `json:"mtime"`
}
