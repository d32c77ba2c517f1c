// Package codec serializes and restores a single stored dictionary payload.
//
// Two read formats are recognized: the canonical "binary-v1" format (magic
// MGB1, optionally Snappy-compressed) and a legacy JSON format kept for
// backward-read compatibility with older databases. Only binary-v1 is ever
// written.
package codec

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"strings"

	"github.com/golang/snappy"
)

var binaryV1Magic = [4]byte{'M', 'G', 'B', '1'}

const absentLen = 0xFFFFFFFF

// Payload is the decoded form of one stored term/kanji-meta record.
type Payload struct {
	Popularity      int64
	Content         []json.RawMessage
	DefinitionTags  string
	HasDefTags      bool
	TermTags        string
	HasTermTags     bool
	Reading         string
	HasReading      bool
	Headword        string
	HasHeadword     bool
}

// Tag is a single tag name split out of a raw whitespace-separated tag
// string, with empty category/description and order 0 per spec.
type Tag struct {
	Name        string
	Category    string
	Description string
	Order       int
}

// SplitTags splits a raw tag string on ASCII whitespace, deduplicating in
// insertion order, and produces a Tag per distinct name.
func SplitTags(raw string) []Tag {
	if raw == "" {
		return nil
	}
	seen := make(map[string]struct{})
	var tags []Tag
	for _, field := range strings.Fields(raw) {
		if _, ok := seen[field]; ok {
			continue
		}
		seen[field] = struct{}{}
		tags = append(tags, Tag{Name: field})
	}
	return tags
}

// Encode serializes p into the binary-v1 format and optionally Snappy
// compresses the result. When compress is false, the raw bytes are returned
// unmodified so the Store can persist them verbatim.
func Encode(p Payload, compress bool) ([]byte, error) {
	buf := make([]byte, 0, 64+contentBudget(p.Content))
	buf = append(buf, binaryV1Magic[:]...)
	buf = appendI64(buf, p.Popularity)
	buf = appendRawValues(buf, p.Content)

	var err error
	buf, err = appendOptString(buf, p.DefinitionTags, p.HasDefTags)
	if err != nil {
		return nil, err
	}
	buf, err = appendOptString(buf, p.TermTags, p.HasTermTags)
	if err != nil {
		return nil, err
	}
	buf, err = appendOptString(buf, p.Reading, p.HasReading)
	if err != nil {
		return nil, err
	}
	buf, err = appendOptString(buf, p.Headword, p.HasHeadword)
	if err != nil {
		return nil, err
	}

	if !compress {
		return buf, nil
	}
	return snappy.Encode(nil, buf), nil
}

func contentBudget(items []json.RawMessage) int {
	n := 0
	for _, item := range items {
		n += len(item) + 4
	}
	return n
}

func appendI64(buf []byte, v int64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], uint64(v))
	return append(buf, tmp[:]...)
}

func appendU32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendRawValues(buf []byte, items []json.RawMessage) []byte {
	buf = appendU32(buf, uint32(len(items)))
	for _, item := range items {
		buf = appendU32(buf, uint32(len(item)))
		buf = append(buf, item...)
	}
	return buf
}

func appendOptString(buf []byte, s string, present bool) ([]byte, error) {
	if !present {
		return appendU32(buf, absentLen), nil
	}
	if uint64(len(s)) >= absentLen {
		return nil, errors.New("codec: string too long to encode")
	}
	buf = appendU32(buf, uint32(len(s)))
	buf = append(buf, s...)
	return buf, nil
}

// Decode restores a Payload from raw bytes, transparently undoing Snappy
// compression when present. ok is false when the bytes could not be
// interpreted as either format; this is never an error condition for the
// caller (spec: "Decode skip" — treated as no entry for the row).
func Decode(raw []byte) (Payload, bool) {
	decoded, ok := tryDecompress(raw)
	if !ok {
		decoded = raw
	}

	if len(decoded) >= 4 && [4]byte{decoded[0], decoded[1], decoded[2], decoded[3]} == binaryV1Magic {
		return decodeBinaryV1(decoded[4:])
	}
	return decodeLegacyJSON(decoded)
}

func tryDecompress(raw []byte) ([]byte, bool) {
	n, err := snappy.DecodedLen(raw)
	if err != nil || n < 0 {
		return nil, false
	}
	out, err := snappy.Decode(nil, raw)
	if err != nil {
		return nil, false
	}
	return out, true
}

func decodeBinaryV1(b []byte) (Payload, bool) {
	var p Payload
	var ok bool

	p.Popularity, b, ok = readI64(b)
	if !ok {
		return Payload{}, false
	}

	p.Content, b, ok = readRawValues(b)
	if !ok {
		return Payload{}, false
	}

	p.DefinitionTags, p.HasDefTags, b, ok = readOptString(b)
	if !ok {
		return Payload{}, false
	}
	p.TermTags, p.HasTermTags, b, ok = readOptString(b)
	if !ok {
		return Payload{}, false
	}
	p.Reading, p.HasReading, b, ok = readOptString(b)
	if !ok {
		return Payload{}, false
	}
	p.Headword, p.HasHeadword, _, ok = readOptString(b)
	if !ok {
		return Payload{}, false
	}

	return p, true
}

func readI64(b []byte) (int64, []byte, bool) {
	if len(b) < 8 {
		return 0, nil, false
	}
	return int64(binary.LittleEndian.Uint64(b[:8])), b[8:], true
}

func readU32(b []byte) (uint32, []byte, bool) {
	if len(b) < 4 {
		return 0, nil, false
	}
	return binary.LittleEndian.Uint32(b[:4]), b[4:], true
}

func readRawValues(b []byte) ([]json.RawMessage, []byte, bool) {
	count, b, ok := readU32(b)
	if !ok {
		return nil, nil, false
	}
	// every item carries at least a 4-byte length, so the remaining bytes
	// bound how many items can really follow a (possibly corrupt) count
	capacity := int(count)
	if maxItems := len(b) / 4; capacity > maxItems {
		capacity = maxItems
	}
	items := make([]json.RawMessage, 0, capacity)
	for i := uint32(0); i < count; i++ {
		var length uint32
		length, b, ok = readU32(b)
		if !ok || uint64(length) > uint64(len(b)) {
			return nil, nil, false
		}
		items = append(items, json.RawMessage(append([]byte(nil), b[:length]...)))
		b = b[length:]
	}
	return items, b, true
}

func readOptString(b []byte) (string, bool, []byte, bool) {
	length, b, ok := readU32(b)
	if !ok {
		return "", false, nil, false
	}
	if length == absentLen {
		return "", false, b, true
	}
	if uint64(length) > uint64(len(b)) {
		return "", false, nil, false
	}
	return string(b[:length]), true, b[length:], true
}

// legacyPayload mirrors the JSON shape read (never written) from older
// databases: the same logical fields as binary-v1, with content carried as
// raw strings that may themselves be quoted JSON strings or structured
// blocks.
type legacyPayload struct {
	Popularity      int64             `json:"popularity"`
	ContentRaw      []json.RawMessage `json:"content_raw"`
	DefinitionTags  *string           `json:"definition_tags_raw"`
	TermTags        *string           `json:"term_tags_raw"`
	Reading         *string           `json:"reading"`
	Headword        *string           `json:"headword"`
}

func decodeLegacyJSON(b []byte) (Payload, bool) {
	// A handful of older writers tagged the JSON body with a 4-byte magic
	// of its own (MGC1) before the object; strip it if present so the
	// JSON decoder sees a clean object.
	if len(b) >= 4 && string(b[:4]) == "MGC1" {
		b = b[4:]
	}

	var lp legacyPayload
	if err := json.Unmarshal(b, &lp); err != nil {
		return Payload{}, false
	}

	p := Payload{Popularity: lp.Popularity}
	for _, raw := range lp.ContentRaw {
		trimmed := strings.TrimSpace(string(raw))
		if trimmed == "" {
			continue
		}
		switch trimmed[0] {
		case '"':
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				continue
			}
			quoted, err := json.Marshal(s)
			if err != nil {
				continue
			}
			p.Content = append(p.Content, json.RawMessage(quoted))
		case '{', '[':
			p.Content = append(p.Content, json.RawMessage(append([]byte(nil), raw...)))
		default:
			// neither a quoted string nor a structured block: dropped
			// silently, by design (forward compatibility).
		}
	}

	if lp.DefinitionTags != nil {
		p.DefinitionTags, p.HasDefTags = *lp.DefinitionTags, true
	}
	if lp.TermTags != nil {
		p.TermTags, p.HasTermTags = *lp.TermTags, true
	}
	if lp.Reading != nil {
		p.Reading, p.HasReading = *lp.Reading, true
	}
	if lp.Headword != nil {
		p.Headword, p.HasHeadword = *lp.Headword, true
	}

	return p, true
}
