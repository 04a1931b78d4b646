// Package metadata defensively extracts market metadata from untrusted JSON
// payloads. One malformed nested record never invalidates its siblings or the
// parent document.
package metadata

import (
	"bytes"
	"encoding/json"
)

// Parsed is the partial result of walking one metadata payload. Nil fields
// were absent or null in the source; that is not an error.
type Parsed struct {
	Name        *string
	Description *string
	Image       *string
	Events      []ParsedEvent
}

// ParsedEvent is one well-formed element of the properties.events array.
type ParsedEvent struct {
	ID          int64
	Name        string
	Description string
}

// Parse walks an alleged-JSON buffer. ok=false means the document failed the
// structural parse (or is not an object) and nothing usable was extracted;
// callers persist an identity-only record on that path so the attempt stays
// observable. Field-level problems never flip ok: optional fields are simply
// left nil and malformed nested events are skipped one by one.
func Parse(data []byte) (Parsed, bool) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return Parsed{}, false
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return Parsed{}, false
	}

	p := Parsed{
		Name:        optString(obj, "name"),
		Description: optString(obj, "description"),
		Image:       optString(obj, "image"),
	}

	// properties present but not an object is silently "no events".
	props, ok := obj["properties"].(map[string]any)
	if !ok {
		return p, true
	}
	events, ok := props["events"].([]any)
	if !ok {
		return p, true
	}

	for _, el := range events {
		item, ok := el.(map[string]any)
		if !ok {
			continue
		}
		ev, ok := parseEvent(item)
		if !ok {
			continue
		}
		p.Events = append(p.Events, ev)
	}

	return p, true
}

// parseEvent requires id (numeric), name, and description to all be present,
// non-null, and of the right type; anything else disqualifies this single
// element.
func parseEvent(item map[string]any) (ParsedEvent, bool) {
	num, ok := item["id"].(json.Number)
	if !ok {
		return ParsedEvent{}, false
	}
	id, err := num.Int64()
	if err != nil {
		return ParsedEvent{}, false
	}

	name, ok := item["name"].(string)
	if !ok {
		return ParsedEvent{}, false
	}
	description, ok := item["description"].(string)
	if !ok {
		return ParsedEvent{}, false
	}

	return ParsedEvent{ID: id, Name: name, Description: description}, true
}

func optString(obj map[string]any, key string) *string {
	s, ok := obj[key].(string)
	if !ok {
		return nil
	}
	return &s
}
