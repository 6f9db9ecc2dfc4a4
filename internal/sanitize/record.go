package sanitize

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Field is one key/value pair of a structured log record. The value is kept as
// raw JSON so its type and any nested structure pass through byte-for-byte.
type Field struct {
	Name  string
	Value json.RawMessage
}

var errTrailingData = errors.New("trailing data after record")

// parseRecord decodes a single JSON object while preserving the original field
// appearance order, which encoding/json's map decoding would destroy.
func parseRecord(line []byte) ([]Field, error) {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("read opening token: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}

	var fields []Field
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("read field name: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("field name is not a string: %v", keyTok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("read value for %q: %w", key, err)
		}
		fields = append(fields, Field{Name: key, Value: raw})
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("read closing token: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errTrailingData
	}
	return fields, nil
}

// encodeRecord re-serializes surviving fields in their original order.
func encodeRecord(fields []Field) (string, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, field := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(field.Name)
		if err != nil {
			return "", fmt.Errorf("encode field name %q: %w", field.Name, err)
		}
		buf.Write(name)
		buf.WriteByte(':')
		if err := json.Compact(&buf, field.Value); err != nil {
			return "", fmt.Errorf("encode value for %q: %w", field.Name, err)
		}
	}
	buf.WriteByte('}')
	return buf.String(), nil
}

// stringValue unwraps a raw JSON string. Returns false for any other type.
func stringValue(raw json.RawMessage) (string, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return "", false
	}
	return s, true
}

func jsonString(s string) json.RawMessage {
	encoded, err := json.Marshal(s)
	if err != nil {
		// json.Marshal of a string cannot fail; keep the compiler honest.
		return json.RawMessage(`""`)
	}
	return json.RawMessage(encoded)
}
