package store

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := InitSchema(db); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestInsertDictionaryConflict(t *testing.T) {
	db := openTestDB(t)

	if err := InsertDictionary(db, 1, "Dict A", 0, true); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}

	err := InsertDictionary(db, 1, "Dict B", 0, true)
	if err == nil {
		t.Fatalf("expected unique id conflict")
	}
	var conflict *ErrUniqueIDConflict
	if !isUniqueConflict(err, &conflict) {
		t.Fatalf("expected *ErrUniqueIDConflict, got %v (%T)", err, err)
	}
}

func isUniqueConflict(err error, target **ErrUniqueIDConflict) bool {
	c, ok := err.(*ErrUniqueIDConflict)
	if ok {
		*target = c
	}
	return ok
}

func TestDictionaryNameExistsCaseInsensitiveTrim(t *testing.T) {
	db := openTestDB(t)
	if err := InsertDictionary(db, 1, "  My Dict  ", 0, true); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	exists, err := DictionaryNameExists(db, "my dict")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if !exists {
		t.Fatalf("expected case-insensitive/trimmed name match")
	}
}

func TestInsertTermsBatchChunking(t *testing.T) {
	db := openTestDB(t)
	if err := InsertDictionary(db, 1, "Dict", 0, true); err != nil {
		t.Fatalf("insert dict: %v", err)
	}

	rows := make([]TermRow, 0, 1000)
	for i := 0; i < 1000; i++ {
		rows = append(rows, TermRow{Term: "word", DictionaryID: 1, Payload: []byte{byte(i)}})
	}

	if err := InsertTermsBatch(db, rows, 4096); err != nil {
		t.Fatalf("insert batch failed: %v", err)
	}

	hits, err := QueryTerms(db, "word")
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(hits) != 1000 {
		t.Fatalf("expected 1000 rows, got %d", len(hits))
	}
}

func TestSetDictionaryEnabledAndPriority(t *testing.T) {
	db := openTestDB(t)
	if err := InsertDictionary(db, 1, "Dict", 5, true); err != nil {
		t.Fatalf("insert dict: %v", err)
	}
	if err := SetDictionaryEnabled(db, 1, false); err != nil {
		t.Fatalf("set enabled: %v", err)
	}
	if err := SetDictionaryPriority(db, 1, 2); err != nil {
		t.Fatalf("set priority: %v", err)
	}

	dicts, err := ListDictionaries(db)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(dicts) != 1 {
		t.Fatalf("expected 1 dictionary, got %d", len(dicts))
	}
	if dicts[0].Enabled {
		t.Fatalf("expected disabled")
	}
	if dicts[0].Priority != 2 {
		t.Fatalf("expected priority 2, got %d", dicts[0].Priority)
	}
}

func TestKanjiUpsert(t *testing.T) {
	db := openTestDB(t)
	if err := InsertDictionary(db, 1, "Dict", 0, true); err != nil {
		t.Fatalf("insert dict: %v", err)
	}
	row := KanjiRow{Character: "猫", DictionaryID: 1, Onyomi: "ビョウ", Kunyomi: "ねこ", MeaningsJSON: `["cat"]`}
	if err := InsertKanji(db, row); err != nil {
		t.Fatalf("insert kanji: %v", err)
	}
	// re-insert to exercise INSERT OR REPLACE semantics on the primary key
	row.Onyomi = "updated"
	if err := InsertKanji(db, row); err != nil {
		t.Fatalf("re-insert kanji: %v", err)
	}

	hits, err := QueryKanji(db, "猫")
	if err != nil {
		t.Fatalf("query kanji: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected exactly one kanji row after upsert, got %d", len(hits))
	}
	if hits[0].Onyomi != "updated" {
		t.Fatalf("expected updated onyomi, got %q", hits[0].Onyomi)
	}
}
