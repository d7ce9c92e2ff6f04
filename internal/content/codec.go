package content

import (
	"bytes"
	"encoding/json"
	"fmt"
)

var (
	collectionFields = []string{"campaigns", "news", "staff", "services"}
	requiredFields   = append(append([]string{}, collectionFields...), "settings")
)

// Decode parses a raw document and checks that it is complete: all five
// top-level fields present, collections are arrays and settings is an object.
func Decode(raw []byte) (*Document, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, &ValidationError{Reason: "document is not a JSON object"}
	}

	fields := map[string]string{}
	for _, k := range requiredFields {
		v, ok := top[k]
		if !ok || isNull(v) {
			fields[k] = "is required"
		}
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Reason: "missing top-level fields", Fields: fields}
	}
	for _, k := range collectionFields {
		if firstByte(top[k]) != '[' {
			fields[k] = "must be an array"
		}
	}
	if firstByte(top["settings"]) != '{' {
		fields["settings"] = "must be an object"
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Reason: "malformed top-level fields", Fields: fields}
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("decode: %v", err)}
	}
	if doc.SchemaVersion == 0 {
		doc.SchemaVersion = doc.Settings.SchemaVersion
	}
	doc.Normalize()
	return &doc, nil
}

// Encode writes the document as compact JSON.
func Encode(doc *Document) ([]byte, error) {
	return json.Marshal(doc)
}

// EncodeIndent is the export form.
func EncodeIndent(doc *Document) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}

// Validate checks ids of an in-memory document before it is persisted.
func (d *Document) Validate() error {
	if d == nil {
		return &ValidationError{Reason: "document is nil"}
	}
	fields := map[string]string{}
	checkIDs(fields, "campaigns", d.Campaigns)
	checkIDs(fields, "news", d.News)
	checkIDs(fields, "staff", d.Staff)
	checkIDs(fields, "services", d.Services)
	if len(fields) > 0 {
		return &ValidationError{Reason: "invalid ids", Fields: fields}
	}
	return nil
}

func checkIDs[T Entity](fields map[string]string, name string, items []T) {
	seen := make(map[int]struct{}, len(items))
	for _, it := range items {
		id := it.EntityID()
		if id <= 0 {
			fields[name] = fmt.Sprintf("id %d is not positive", id)
			return
		}
		if _, dup := seen[id]; dup {
			fields[name] = fmt.Sprintf("duplicate id %d", id)
			return
		}
		seen[id] = struct{}{}
	}
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

func firstByte(v json.RawMessage) byte {
	t := bytes.TrimSpace(v)
	if len(t) == 0 {
		return 0
	}
	return t[0]
}
