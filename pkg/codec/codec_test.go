package codec

import (
	"encoding/json"
	"testing"
)

func TestRoundTripUncompressed(t *testing.T) {
	p := Payload{
		Popularity:  42,
		Content:     []json.RawMessage{json.RawMessage(`"cat"`), json.RawMessage(`{"type":"structured"}`)},
		DefinitionTags: "n common",
		HasDefTags:     true,
		Reading:        "ねこ",
		HasReading:     true,
		Headword:       "猫",
		HasHeadword:    true,
	}

	encoded, err := Encode(p, false)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	decoded, ok := Decode(encoded)
	if !ok {
		t.Fatalf("decode failed")
	}

	if decoded.Popularity != p.Popularity {
		t.Fatalf("popularity mismatch: got %d want %d", decoded.Popularity, p.Popularity)
	}
	if decoded.Headword != p.Headword || !decoded.HasHeadword {
		t.Fatalf("headword mismatch: got %q", decoded.Headword)
	}
	if decoded.Reading != p.Reading || !decoded.HasReading {
		t.Fatalf("reading mismatch: got %q", decoded.Reading)
	}
	if len(decoded.Content) != 2 {
		t.Fatalf("expected 2 content items, got %d", len(decoded.Content))
	}
}

func TestRoundTripCompressed(t *testing.T) {
	p := Payload{
		Popularity: 7,
		Content:    []json.RawMessage{json.RawMessage(`"dog"`)},
		Headword:   "犬",
		HasHeadword: true,
	}

	encoded, err := Encode(p, true)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	decoded, ok := Decode(encoded)
	if !ok {
		t.Fatalf("decode failed")
	}
	if decoded.Headword != "犬" {
		t.Fatalf("headword mismatch after compressed round trip: got %q", decoded.Headword)
	}
}

func TestDecodeAbsentOptionalFields(t *testing.T) {
	p := Payload{Popularity: 1, Content: []json.RawMessage{json.RawMessage(`"x"`)}}
	encoded, err := Encode(p, false)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	decoded, ok := Decode(encoded)
	if !ok {
		t.Fatalf("decode failed")
	}
	if decoded.HasHeadword || decoded.HasReading || decoded.HasDefTags || decoded.HasTermTags {
		t.Fatalf("expected all optional fields absent, got %+v", decoded)
	}
}

func TestDecodeLegacyJSON(t *testing.T) {
	legacy := []byte(`{"popularity":5,"content_raw":["\"meow\"",{"structured":true},"123"],"headword":"猫","reading":"ねこ"}`)
	decoded, ok := Decode(legacy)
	if !ok {
		t.Fatalf("expected legacy JSON to decode")
	}
	if decoded.Popularity != 5 {
		t.Fatalf("popularity mismatch: got %d", decoded.Popularity)
	}
	if decoded.Headword != "猫" {
		t.Fatalf("headword mismatch: got %q", decoded.Headword)
	}
	// all three raw entries start with '"' or '{', so all three survive
	// the content_raw inspection step.
	if len(decoded.Content) != 3 {
		t.Fatalf("expected 3 surviving content items, got %d: %v", len(decoded.Content), decoded.Content)
	}
}

func TestDecodeMalformedBinaryNeverPanics(t *testing.T) {
	cases := [][]byte{
		nil,
		{},
		{'M', 'G', 'B', '1'},
		{'M', 'G', 'B', '1', 0, 0, 0},
		append([]byte{'M', 'G', 'B', '1'}, make([]byte, 100)...),
	}
	for i, c := range cases {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Fatalf("case %d: Decode panicked: %v", i, r)
				}
			}()
			Decode(c)
		}()
	}
}

func TestSplitTagsDedupAndOrder(t *testing.T) {
	tags := SplitTags("n   common n  jlpt-n5")
	want := []string{"n", "common", "jlpt-n5"}
	if len(tags) != len(want) {
		t.Fatalf("expected %d tags, got %d: %+v", len(want), len(tags), tags)
	}
	for i, w := range want {
		if tags[i].Name != w {
			t.Fatalf("tag %d: got %q want %q", i, tags[i].Name, w)
		}
	}
}
