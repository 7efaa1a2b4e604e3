package parsers

import (
	"maps"
	"slices"
)

// Shape classifies the layout of a decoded JSON source document.
type Shape int

const (
	// ShapeUnknown documents yield no entries.
	ShapeUnknown Shape = iota
	// ShapeWrapped is an object whose list field holds the entries
	// (a single object in the list field counts as one entry).
	ShapeWrapped
	// ShapeRecord is a single entry object.
	ShapeRecord
	// ShapeNested is an object with some other field holding a list of entry objects.
	ShapeNested
	// ShapeList is a list of entry objects, each possibly wrapping the list field.
	ShapeList
)

func (s Shape) String() string {
	switch s {
	case ShapeWrapped:
		return "wrapped"
	case ShapeRecord:
		return "record"
	case ShapeNested:
		return "nested"
	case ShapeList:
		return "list"
	default:
		return "unknown"
	}
}

// Classify returns the shape of doc.
func Classify(doc any, listField string) Shape {
	switch v := doc.(type) {
	case map[string]any:
		switch field := v[listField].(type) {
		case map[string]any:
			return ShapeWrapped
		case []any:
			// A list field without entry objects defers to other list fields.
			if len(objectsOf(field)) > 0 || !hasNested(v, listField) {
				return ShapeWrapped
			}
			return ShapeNested
		}
		if _, ok := v["content"]; ok {
			return ShapeRecord
		}
		if _, ok := v["date"]; ok {
			return ShapeRecord
		}
		if hasNested(v, listField) {
			return ShapeNested
		}
	case []any:
		return ShapeList
	}
	return ShapeUnknown
}

// Normalize maps a decoded document to its flat list of raw entries.
// Unrecognized shapes map to an empty list.
func Normalize(doc any, listField string) []RawEntry {
	switch Classify(doc, listField) {
	case ShapeWrapped:
		return wrappedEntries(doc.(map[string]any)[listField])
	case ShapeRecord:
		return []RawEntry{doc.(map[string]any)}
	case ShapeNested:
		v := doc.(map[string]any)
		var out []RawEntry
		for _, k := range slices.Sorted(maps.Keys(v)) {
			out = append(out, objectsOf(v[k])...)
		}
		return out
	case ShapeList:
		var out []RawEntry
		for _, item := range doc.([]any) {
			obj, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if inner, ok := obj[listField]; ok {
				out = append(out, wrappedEntries(inner)...)
				continue
			}
			if _, ok := obj["content"]; ok {
				out = append(out, obj)
			} else if _, ok := obj["date"]; ok {
				out = append(out, obj)
			} else if _, ok := obj["time"]; ok {
				out = append(out, obj)
			}
		}
		return out
	}
	return nil
}

// hasNested reports whether a field other than listField holds entry objects.
func hasNested(v map[string]any, listField string) bool {
	for k, field := range v {
		if k != listField && len(objectsOf(field)) > 0 {
			return true
		}
	}
	return false
}

// firstNested returns the first field, by name, other than listField that
// holds entry objects.
func firstNested(v map[string]any, listField string) string {
	for _, k := range slices.Sorted(maps.Keys(v)) {
		if k != listField && len(objectsOf(v[k])) > 0 {
			return k
		}
	}
	return ""
}

// wrappedEntries returns the objects held by a list field value.
func wrappedEntries(v any) []RawEntry {
	if obj, ok := v.(map[string]any); ok {
		return []RawEntry{obj}
	}
	return objectsOf(v)
}

// objectsOf returns the object elements of a list value.
func objectsOf(v any) []RawEntry {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []RawEntry
	for _, item := range list {
		if obj, ok := item.(map[string]any); ok {
			out = append(out, obj)
		}
	}
	return out
}

// AppendEntry appends entry to doc keeping its shape where possible.
// An object gets the entry appended to its list field (created if missing)
// or to the other list field holding its entries, a single record becomes a
// wrapped list of both, a list gets the entry appended, anything else is
// replaced by a fresh wrapped document.
func AppendEntry(doc any, listField string, entry map[string]any) any {
	switch Classify(doc, listField) {
	case ShapeRecord:
		return map[string]any{listField: []any{doc, entry}}
	case ShapeNested:
		v := doc.(map[string]any)
		k := firstNested(v, listField)
		v[k] = append(v[k].([]any), entry)
		return v
	}
	switch v := doc.(type) {
	case map[string]any:
		switch field := v[listField].(type) {
		case []any:
			v[listField] = append(field, entry)
		case map[string]any:
			v[listField] = []any{field, entry}
		default:
			v[listField] = []any{entry}
		}
		return v
	case []any:
		return append(v, entry)
	default:
		return map[string]any{listField: []any{entry}}
	}
}

// RemoveDateFromDocument drops every entry dated date from doc, preserving
// the rest of the document. A single-record document whose entry matches
// becomes nil.
func RemoveDateFromDocument(doc any, listField, date string) any {
	switch Classify(doc, listField) {
	case ShapeWrapped:
		v := doc.(map[string]any)
		v[listField] = filterWrapped(v[listField], date)
		return v
	case ShapeRecord:
		if RawEntry(doc.(map[string]any)).String("date") == date {
			return nil
		}
		return doc
	case ShapeNested:
		v := doc.(map[string]any)
		for k, field := range v {
			if len(objectsOf(field)) > 0 {
				v[k] = filterList(field.([]any), date)
			}
		}
		return v
	case ShapeList:
		items := doc.([]any)
		out := make([]any, 0, len(items))
		for _, item := range items {
			obj, ok := item.(map[string]any)
			if !ok {
				out = append(out, item)
				continue
			}
			if inner, ok := obj[listField]; ok {
				obj[listField] = filterWrapped(inner, date)
				out = append(out, obj)
				continue
			}
			if RawEntry(obj).String("date") == date {
				continue
			}
			out = append(out, obj)
		}
		return out
	}
	return doc
}

func filterWrapped(v any, date string) any {
	if obj, ok := v.(map[string]any); ok {
		if RawEntry(obj).String("date") == date {
			return []any{}
		}
		return obj
	}
	if list, ok := v.([]any); ok {
		return filterList(list, date)
	}
	return v
}

func filterList(list []any, date string) []any {
	out := make([]any, 0, len(list))
	for _, item := range list {
		if obj, ok := item.(map[string]any); ok && RawEntry(obj).String("date") == date {
			continue
		}
		out = append(out, item)
	}
	return out
}
