// Package jsondoc encodes and decodes the AppData sync document, tolerating
// the on-disk/on-wire quirks a partially-written or BOM-prefixed file can
// exhibit: a leading UTF-8 BOM, trailing NUL padding, surrounding
// whitespace, and truncation past the last balanced '}' caused by a write
// that was interrupted mid-flush.
package jsondoc

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tonimelisma/mindwtr-sync/internal/model"
	"github.com/tonimelisma/mindwtr-sync/internal/transport"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Decode parses raw bytes into an AppData document. A nil/empty input
// decodes to nil, nil (the caller's "remote document absent" case). Decode
// first tries a straight unmarshal; on failure it sanitizes the bytes
// (BOM/NUL/whitespace strip, truncate to the last balanced '}') and retries
// once before giving up with transport.ErrParse.
func Decode(raw []byte) (*model.AppData, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var doc model.AppData
	if err := json.Unmarshal(raw, &doc); err == nil {
		return &doc, nil
	}

	cleaned := Sanitize(raw)
	if err := json.Unmarshal(cleaned, &doc); err != nil {
		return nil, fmt.Errorf("jsondoc: %w: %v", transport.ErrParse, err)
	}
	return &doc, nil
}

// Encode marshals an AppData document to its canonical UTF-8, BOM-less wire
// form.
func Encode(doc *model.AppData) ([]byte, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("jsondoc: encoding document: %w", err)
	}
	return data, nil
}

// Sanitize strips a leading BOM, trailing NUL bytes, and surrounding
// whitespace, then truncates to the last balanced top-level '}' to recover
// from a write that was interrupted partway through.
func Sanitize(raw []byte) []byte {
	raw = bytes.TrimPrefix(raw, utf8BOM)
	raw = bytes.TrimRight(raw, "\x00")
	raw = bytes.TrimSpace(raw)
	return truncateToBalancedObject(raw)
}

// truncateToBalancedObject walks the byte stream tracking brace depth and
// string-literal state, returning the prefix up to and including the '}'
// that closes the outermost object. If the input never reaches balance
// (severe truncation), the original bytes are returned unchanged so the
// caller's JSON error is informative rather than silently empty.
func truncateToBalancedObject(raw []byte) []byte {
	depth := 0
	inString := false
	escaped := false

	for i, b := range raw {
		if inString {
			switch {
			case escaped:
				escaped = false
			case b == '\\':
				escaped = true
			case b == '"':
				inString = false
			}
			continue
		}

		switch b {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return raw[:i+1]
			}
		}
	}

	return raw
}
