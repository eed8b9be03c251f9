package memorykeep

import (
	"bytes"
	"encoding/json"
)

// DefaultCategory is the category used when a caller does not name one.
const DefaultCategory = "experience"

// Format identifies which representation backs a stored memory.
type Format string

const (
	// FormatStructured is the JSON-document representation.
	FormatStructured Format = "json"
	// FormatRaw is the append-only plain-text log representation.
	FormatRaw Format = "text"
)

// Payload is one category's stored memory as served by the Memory API.
//
// Exactly one of JSON and Text carries content, selected by Format.
type Payload struct {
	// Format tags which representation the payload holds.
	Format Format
	// JSON holds the structured document when Format is FormatStructured.
	JSON json.RawMessage
	// Text holds the log content when Format is FormatRaw.
	Text string
}

// EntryShape classifies a request entry by its JSON value shape.
type EntryShape int

const (
	// ShapeRaw marks entries stored as one plain-text log line.
	ShapeRaw EntryShape = iota
	// ShapeObject marks a JSON object entry.
	ShapeObject
	// ShapeArray marks a JSON array entry.
	ShapeArray
)

// ShapeOf classifies a raw JSON entry value.
//
// The append/overwrite contract is shape-driven: objects are structured for
// both operations, arrays are structured for overwrite only, and every other
// value is raw text.
func ShapeOf(entry json.RawMessage) EntryShape {
	trimmed := bytes.TrimLeft(entry, " \t\r\n")
	if len(trimmed) == 0 {
		return ShapeRaw
	}
	switch trimmed[0] {
	case '{':
		return ShapeObject
	case '[':
		return ShapeArray
	default:
		return ShapeRaw
	}
}

// RawText converts a non-object entry value into its log line text.
//
// JSON strings are unquoted; other scalars keep their literal JSON text.
func RawText(entry json.RawMessage) string {
	var text string
	if err := json.Unmarshal(entry, &text); err == nil {
		return text
	}

	return string(bytes.TrimSpace(entry))
}
