package parsers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// JSONParser parses entries from JSON documents of any supported shape.
type JSONParser struct {
	// ListField names the wrapping list field. Empty means DefaultListField.
	ListField string
}

// Parse reads one JSON document and normalizes it to raw entries.
// Documents of an unrecognized shape yield no entries and no error.
func (p *JSONParser) Parse(r io.Reader) ([]RawEntry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading JSON: %w", err)
	}
	doc, err := DecodeDocument(data)
	if err != nil {
		return nil, err
	}
	return Normalize(doc, p.listField()), nil
}

func (p *JSONParser) listField() string {
	if p.ListField == "" {
		return DefaultListField
	}
	return p.ListField
}

// DecodeDocument decodes a JSON document keeping numbers in their source form.
func DecodeDocument(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("parsing JSON: trailing data after document")
	}
	return doc, nil
}

// EncodeDocument renders a document as indented JSON without escaping
// non-ASCII text.
func EncodeDocument(doc any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encoding JSON: %w", err)
	}
	return buf.Bytes(), nil
}
