package trie

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Record is an opaque terminal payload. Only the id and the display name are
// interpreted; the full object is kept in Raw and re-emitted as is.
type Record struct {
	ID   string
	Name string
	Raw  json.RawMessage
}

// ParseRecord decodes one record object.
func ParseRecord(data []byte) (Record, error) {
	var r Record
	if err := r.UnmarshalJSON(data); err != nil {
		return Record{}, err
	}
	return r, nil
}

// UnmarshalJSON accepts an object with a string or numeric "id".
func (r *Record) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("%w: record: %v", ErrMalformed, err)
	}
	if fields == nil {
		return fmt.Errorf("%w: record is null", ErrMalformed)
	}

	id, err := decodeRecordID(fields["id"])
	if err != nil {
		return err
	}

	var name string
	if raw, ok := fields["name"]; ok {
		// Non-string names are displayed as their JSON text.
		if err := json.Unmarshal(raw, &name); err != nil {
			name = string(raw)
		}
	}

	r.ID = id
	r.Name = name
	r.Raw = append(json.RawMessage(nil), bytes.TrimSpace(data)...)
	return nil
}

func decodeRecordID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", fmt.Errorf("%w: record without id", ErrMalformed)
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("%w: record id: %v", ErrMalformed, err)
		}
		if s == "" {
			return "", fmt.Errorf("%w: empty record id", ErrMalformed)
		}
		return s, nil
	default:
		var n json.Number
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&n); err != nil || n == "" {
			return "", fmt.Errorf("%w: record id must be a string or a number", ErrMalformed)
		}
		return n.String(), nil
	}
}

// MarshalJSON re-emits the original object when there is one.
func (r Record) MarshalJSON() ([]byte, error) {
	if len(r.Raw) > 0 {
		return r.Raw, nil
	}
	out := map[string]string{"id": r.ID}
	if r.Name != "" {
		out["name"] = r.Name
	}
	return json.Marshal(out)
}

// DisplayName is the name shown on a record node.
func (r Record) DisplayName() string {
	if r.Name != "" {
		return r.Name
	}
	return r.ID
}

// Pretty renders the full payload as indented JSON.
func (r Record) Pretty() string {
	data, err := r.MarshalJSON()
	if err != nil {
		return r.ID
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return string(data)
	}
	return buf.String()
}

// StringValues returns every top-level string field except the id, ordered
// by field name.
func (r Record) StringValues() []string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(r.Raw, &fields); err != nil {
		if r.Name != "" {
			return []string{r.Name}
		}
		return nil
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if k != "id" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var values []string
	for _, k := range keys {
		var s string
		if err := json.Unmarshal(fields[k], &s); err == nil && strings.TrimSpace(s) != "" {
			values = append(values, s)
		}
	}
	return values
}
