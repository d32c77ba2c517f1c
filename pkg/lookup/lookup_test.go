package lookup

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kotoba-dict/yomitan-engine/pkg/codec"
	"github.com/kotoba-dict/yomitan-engine/pkg/deinflect"
	"github.com/kotoba-dict/yomitan-engine/pkg/store"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := store.InitSchema(db); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func insertTerm(t *testing.T, db *sql.DB, dictID store.DictionaryID, term string, payload codec.Payload) {
	t.Helper()
	encoded, err := codec.Encode(payload, false)
	if err != nil {
		t.Fatalf("encode payload: %v", err)
	}
	row := store.TermRow{
		Term:         term,
		DictionaryID: dictID,
		Payload:      encoded,
	}
	if payload.HasReading {
		row.Reading, row.HasReading = payload.Reading, true
	}
	if err := store.InsertTermsBatch(db, []store.TermRow{row}, 200); err != nil {
		t.Fatalf("insert term: %v", err)
	}
}

func TestSnapToCharBoundary(t *testing.T) {
	text := "猫は可愛い"
	// offset 1 lands mid-rune (each han character is 3 bytes in UTF-8)
	got := SnapToCharBoundary(text, 1)
	if got != 0 {
		t.Fatalf("expected snap back to 0, got %d", got)
	}
	if got := SnapToCharBoundary(text, len(text)+5); got != len(text) {
		t.Fatalf("expected clamp to len(text), got %d", got)
	}
}

func TestSearchExactMatchAndLongestPrefixFirst(t *testing.T) {
	db := openTestDB(t)
	if err := store.InsertDictionary(db, 1, "Test Dict", 0, true); err != nil {
		t.Fatalf("insert dictionary: %v", err)
	}

	insertTerm(t, db, 1, "猫", codec.Payload{Popularity: 10})
	insertTerm(t, db, 1, "猫は", codec.Payload{Popularity: 5})

	cfgs := map[store.DictionaryID]DictionaryConfig{1: {Enabled: true, Priority: 0}}
	results := Search(db, "猫は可愛い", 0, deinflect.Japanese, cfgs)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d: %+v", len(results), results)
	}
	if results[0].Term != "猫は" {
		t.Fatalf("expected longest match first, got %q", results[0].Term)
	}
}

func TestSearchSkipsDisabledDictionary(t *testing.T) {
	db := openTestDB(t)
	if err := store.InsertDictionary(db, 1, "Disabled Dict", 0, false); err != nil {
		t.Fatalf("insert dictionary: %v", err)
	}
	insertTerm(t, db, 1, "猫", codec.Payload{Popularity: 1})

	cfgs := map[store.DictionaryID]DictionaryConfig{1: {Enabled: false, Priority: 0}}
	results := Search(db, "猫", 0, deinflect.Japanese, cfgs)
	if len(results) != 0 {
		t.Fatalf("expected no results from disabled dictionary, got %+v", results)
	}
}

func TestSearchKatakanaNormalizesToHiraganaEntry(t *testing.T) {
	db := openTestDB(t)
	if err := store.InsertDictionary(db, 1, "Kana Dict", 0, true); err != nil {
		t.Fatalf("insert dictionary: %v", err)
	}
	insertTerm(t, db, 1, "ねこ", codec.Payload{Popularity: 1})

	cfgs := map[store.DictionaryID]DictionaryConfig{1: {Enabled: true, Priority: 0}}
	results := Search(db, "ネコ", 0, deinflect.Japanese, cfgs)
	if len(results) == 0 {
		t.Fatalf("expected katakana input to match hiragana-stored term")
	}
}

func TestSearchDeinflectsEnglishVerb(t *testing.T) {
	db := openTestDB(t)
	if err := store.InsertDictionary(db, 1, "En Dict", 0, true); err != nil {
		t.Fatalf("insert dictionary: %v", err)
	}
	// "carry" is not a prefix of "carries", so only the ies->y rule can
	// produce it
	insertTerm(t, db, 1, "carry", codec.Payload{Popularity: 1})

	cfgs := map[store.DictionaryID]DictionaryConfig{1: {Enabled: true, Priority: 0}}
	results := Search(db, "carries", 0, deinflect.English, cfgs)
	found := false
	for _, r := range results {
		if r.Term == "carry" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected deinflected 'carry' candidate to match, got %+v", results)
	}
}

func TestSearchSortsByPriorityThenFrequency(t *testing.T) {
	db := openTestDB(t)
	if err := store.InsertDictionary(db, 1, "Low Priority", 5, true); err != nil {
		t.Fatalf("insert dictionary 1: %v", err)
	}
	if err := store.InsertDictionary(db, 2, "High Priority", 1, true); err != nil {
		t.Fatalf("insert dictionary 2: %v", err)
	}
	insertTerm(t, db, 1, "猫", codec.Payload{Popularity: 100})
	insertTerm(t, db, 2, "猫", codec.Payload{Popularity: 1})

	cfgs := map[store.DictionaryID]DictionaryConfig{
		1: {Enabled: true, Priority: 5},
		2: {Enabled: true, Priority: 1},
	}
	results := Search(db, "猫", 0, deinflect.Japanese, cfgs)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].DictionaryID != 2 {
		t.Fatalf("expected higher-priority (lower number) dictionary first, got dict %d", results[0].DictionaryID)
	}
}

func TestSearchKanji(t *testing.T) {
	db := openTestDB(t)
	if err := store.InsertDictionary(db, 1, "Kanji Dict", 0, true); err != nil {
		t.Fatalf("insert dictionary: %v", err)
	}
	if err := store.InsertKanji(db, store.KanjiRow{
		Character:    "猫",
		DictionaryID: 1,
		Onyomi:       "ビョウ",
		Kunyomi:      "ねこ",
		MeaningsJSON: `["cat"]`,
		StatsJSON:    `{}`,
	}); err != nil {
		t.Fatalf("insert kanji: %v", err)
	}

	cfgs := map[store.DictionaryID]DictionaryConfig{1: {Enabled: true, Priority: 0}}
	results := SearchKanji(db, "猫は可愛い", 0, cfgs)
	if len(results) != 1 {
		t.Fatalf("expected 1 kanji result, got %d", len(results))
	}
	if results[0].Character != "猫" {
		t.Fatalf("expected character 猫, got %q", results[0].Character)
	}
	if len(results[0].Meanings) != 1 || results[0].Meanings[0] != "cat" {
		t.Fatalf("expected meanings [cat], got %+v", results[0].Meanings)
	}
}

func TestSearchKanjiEmptyAtEndOfText(t *testing.T) {
	db := openTestDB(t)
	if got := SearchKanji(db, "猫", len("猫"), nil); got != nil {
		t.Fatalf("expected nil results at end of text, got %+v", got)
	}
}
