// Package parsers decodes work log source files into raw entries.
package parsers

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ersonp/farmlog/internal/domain/entities"
)

// DefaultListField is the field wrapping entry lists in source documents.
const DefaultListField = "farming_work_log"

// RawEntry is one entry record as found in a source file, before it is
// tagged with an entity and an ID.
type RawEntry map[string]any

// String returns the field as text. Missing and null fields are empty;
// numbers and booleans are rendered as they appeared in the source.
func (r RawEntry) String(key string) string {
	switch v := r[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// Usable reports whether the entry has a content or a date.
func (r RawEntry) Usable() bool {
	return r.String("content") != "" || r.String("date") != ""
}

// Entry converts the raw record into an entry of the given entity. The ID
// is always derived from (date, time, content); an "id" field in the
// source is ignored.
func (r RawEntry) Entry(entityKey string) entities.Entry {
	return entities.NewEntry(entityKey, r.String("date"), r.String("time"), r.String("content"))
}

// Parser defines the interface for parsing entries from a source format.
type Parser interface {
	Parse(r io.Reader) ([]RawEntry, error)
}

// ForFormat returns the appropriate parser for the given format.
// Supported formats: "json", "csv".
func ForFormat(format, listField string) Parser {
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "json":
		return &JSONParser{ListField: listField}
	case "csv":
		return &CSVParser{}
	default:
		return nil
	}
}

// ForFile returns the appropriate parser based on file extension.
func ForFile(filename, listField string) Parser {
	return ForFormat(filepath.Ext(filename), listField)
}

// NormalizeExtensions returns the set of extensions lowercased with a
// leading dot. Blank entries are dropped.
func NormalizeExtensions(list []string) map[string]bool {
	out := make(map[string]bool, len(list))
	for _, e := range list {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out[e] = true
	}
	return out
}

// RemoveDate rewrites a source file without the entries dated date.
// It returns the new file content and the number of entries left in it.
func RemoveDate(filename string, data []byte, listField, date string) ([]byte, int, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".json":
		doc, err := DecodeDocument(data)
		if err != nil {
			return nil, 0, err
		}
		doc = RemoveDateFromDocument(doc, listField, date)
		out, err := EncodeDocument(doc)
		if err != nil {
			return nil, 0, err
		}
		return out, len(Normalize(doc, listField)), nil
	case ".csv":
		return removeDateCSV(data, date)
	default:
		return nil, 0, fmt.Errorf("unsupported source format %q", filepath.Ext(filename))
	}
}
