package importer

import (
	"encoding/json"
)

// TermBankRow is one positional tuple from a term_bank_*.json array, decoded
// tolerantly: any missing or mistyped element degrades to a zero value
// instead of aborting the whole file.
type TermBankRow struct {
	Headword       string
	Reading        string
	DefinitionTags string
	Popularity     int64
	Definitions    []json.RawMessage
	TermTags       string
}

// TermMetaBankRow is one positional tuple from a term_meta_bank_*.json array.
type TermMetaBankRow struct {
	Term string
	Mode string
	Data json.RawMessage
}

// KanjiBankRow is one positional tuple from a kanji_bank_*.json array.
type KanjiBankRow struct {
	Character string
	Onyomi    string
	Kunyomi   string
	Tags      string
	Meanings  []json.RawMessage
	Stats     json.RawMessage
}

// KanjiMetaBankRow is one positional tuple from a kanji_meta_bank_*.json
// array.
type KanjiMetaBankRow struct {
	Character string
	MetaType  string
	Data      json.RawMessage
}

// decodeTuple reads a single JSON array token stream into dst positional
// slots, each populated tolerantly: a slot whose JSON value is absent,
// null, or the wrong type is left at its zero value rather than raising an
// error. Any elements beyond len(dst) are drained and discarded.
func decodeTuple(dec *json.Decoder, dst []any) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != '[' {
		return errNotArray
	}

	for i := 0; i < len(dst); i++ {
		if !dec.More() {
			break
		}
		if err := decodeLossySlot(dec, dst[i]); err != nil {
			return err
		}
	}

	for dec.More() {
		if err := skipValue(dec); err != nil {
			return err
		}
	}

	tok, err = dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != ']' {
		return errNotArray
	}
	return nil
}

func decodeLossySlot(dec *json.Decoder, dst any) error {
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	switch v := dst.(type) {
	case *string:
		var s string
		if json.Unmarshal(raw, &s) == nil {
			*v = s
		}
	case *int64:
		var n int64
		if json.Unmarshal(raw, &n) == nil {
			*v = n
		} else {
			var f float64
			if json.Unmarshal(raw, &f) == nil {
				*v = int64(f)
			}
		}
	case *json.RawMessage:
		*v = raw
	case *[]json.RawMessage:
		var arr []json.RawMessage
		if json.Unmarshal(raw, &arr) == nil {
			*v = arr
		}
	}
	return nil
}

func skipValue(dec *json.Decoder) error {
	var discard json.RawMessage
	return dec.Decode(&discard)
}

var errNotArray = decodeError("expected a JSON array")

type decodeError string

func (e decodeError) Error() string { return string(e) }

// decodeTermBankRow decodes one 8-element term_bank tuple:
// [headword, reading, definition_tags, <ignored>, popularity, definitions,
// <ignored>, term_tags].
func decodeTermBankRow(dec *json.Decoder) (TermBankRow, error) {
	var row TermBankRow
	var ignored1, ignored2 json.RawMessage
	slots := []any{
		&row.Headword, &row.Reading, &row.DefinitionTags, &ignored1,
		&row.Popularity, &row.Definitions, &ignored2, &row.TermTags,
	}
	err := decodeTuple(dec, slots)
	return row, err
}

// decodeTermMetaBankRow decodes one 3-element [term, mode, data] tuple.
func decodeTermMetaBankRow(dec *json.Decoder) (TermMetaBankRow, error) {
	var row TermMetaBankRow
	slots := []any{&row.Term, &row.Mode, &row.Data}
	err := decodeTuple(dec, slots)
	return row, err
}

// decodeKanjiBankRow decodes one 6-element
// [character, onyomi, kunyomi, tags, meanings, stats] tuple.
func decodeKanjiBankRow(dec *json.Decoder) (KanjiBankRow, error) {
	var row KanjiBankRow
	slots := []any{
		&row.Character, &row.Onyomi, &row.Kunyomi, &row.Tags, &row.Meanings, &row.Stats,
	}
	err := decodeTuple(dec, slots)
	return row, err
}

// decodeKanjiMetaBankRow decodes one 3-element [character, meta_type, data]
// tuple.
func decodeKanjiMetaBankRow(dec *json.Decoder) (KanjiMetaBankRow, error) {
	var row KanjiMetaBankRow
	slots := []any{&row.Character, &row.MetaType, &row.Data}
	err := decodeTuple(dec, slots)
	return row, err
}

// decodeBankArray reads the outer array token, then calls decodeRow once
// per element, draining arrays whose elements are themselves positional
// tuples. It stops as soon as dec reaches the matching closing bracket.
func decodeBankArray(dec *json.Decoder, decodeRow func(*json.Decoder) error) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return errNotArray
	}
	for dec.More() {
		if err := decodeRow(dec); err != nil {
			return err
		}
	}
	tok, err = dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != ']' {
		return errNotArray
	}
	return nil
}
