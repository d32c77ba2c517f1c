package importer

import (
	"archive/zip"
	"bytes"
	"database/sql"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kotoba-dict/yomitan-engine/pkg/config"
	"github.com/kotoba-dict/yomitan-engine/pkg/store"
)

type zipEntry struct {
	name string
	body string
}

func buildZip(t *testing.T, entries []zipEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, e := range entries {
		f, err := w.Create(e.name)
		if err != nil {
			t.Fatalf("create entry %q: %v", e.name, err)
		}
		if _, err := f.Write([]byte(e.body)); err != nil {
			t.Fatalf("write entry %q: %v", e.name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close zip writer: %v", err)
	}
	return buf.Bytes()
}

func minimalV3Zip(t *testing.T, title string) []byte {
	return buildZip(t, []zipEntry{
		{name: "index.json", body: `{"title":"` + title + `","format":3}`},
		{
			name: "term_bank_1.json",
			body: `[["猫","ねこ","","",10,[{"type":"text","text":"cat"}],"",""]]`,
		},
		{
			name: "kanji_bank_1.json",
			body: `[["猫","ビョウ","ねこ","",["cat"],{}]]`,
		},
	})
}

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

func testConfig() config.Config {
	return config.Config{
		FastDBMode:       false,
		DeferTermIndexes: false,
		SkipMedia:        true,
		WorkerCount:      1,
		RowsPerStatement: 50,
	}
}

func TestImportMinimalV3Archive(t *testing.T) {
	db := openTestDB(t)
	archive := minimalV3Zip(t, "Test Dict")

	result, err := ImportZip(db, archive, t.TempDir(), t.TempDir(), Limits{}, testConfig(), 0, 1, nil)
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if result.TermCount != 1 {
		t.Fatalf("expected 1 term row, got %d", result.TermCount)
	}
	if result.KanjiCount != 1 {
		t.Fatalf("expected 1 kanji row, got %d", result.KanjiCount)
	}

	hits, err := store.QueryTerms(db, "猫")
	if err != nil {
		t.Fatalf("query terms: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 stored term row, got %d", len(hits))
	}
}

func TestImportDuplicateNameRejected(t *testing.T) {
	db := openTestDB(t)
	archive := minimalV3Zip(t, "Dup Dict")

	if _, err := ImportZip(db, archive, t.TempDir(), t.TempDir(), Limits{}, testConfig(), 0, 1, nil); err != nil {
		t.Fatalf("first import failed: %v", err)
	}

	_, err := ImportZip(db, archive, t.TempDir(), t.TempDir(), Limits{}, testConfig(), 0, 2, nil)
	if err == nil {
		t.Fatalf("expected duplicate name rejection")
	}
	var impErr *Error
	if !errorsAs(err, &impErr) || impErr.Kind != ErrDuplicateName {
		t.Fatalf("expected ErrDuplicateName, got %v", err)
	}
}

func TestImportNonV3Rejected(t *testing.T) {
	db := openTestDB(t)
	archive := buildZip(t, []zipEntry{
		{name: "index.json", body: `{"title":"Old Dict","format":1}`},
	})

	_, err := ImportZip(db, archive, t.TempDir(), t.TempDir(), Limits{}, testConfig(), 0, 1, nil)
	if err == nil {
		t.Fatalf("expected rejection of non-v3 format")
	}
	var impErr *Error
	if !errorsAs(err, &impErr) || impErr.Kind != ErrUnsupportedFormat {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestImportOverSizeRejected(t *testing.T) {
	db := openTestDB(t)
	archive := minimalV3Zip(t, "Big Dict")

	limits := Limits{MaxArchiveBytes: 4}
	_, err := ImportZip(db, archive, t.TempDir(), t.TempDir(), limits, testConfig(), 0, 1, nil)
	if err == nil {
		t.Fatalf("expected rejection of oversized archive")
	}
	var impErr *Error
	if !errorsAs(err, &impErr) || impErr.Kind != ErrInputTooLarge {
		t.Fatalf("expected ErrInputTooLarge, got %v", err)
	}
}

func TestImportRepairsMalformedEscapes(t *testing.T) {
	db := openTestDB(t)
	// \q is not a recognized JSON escape; repairEscapes should neutralize
	// it into a literal backslash-backslash-q rather than erroring.
	archive := buildZip(t, []zipEntry{
		{name: "index.json", body: `{"title":"Escape Dict","format":3}`},
		{
			name: "term_bank_1.json",
			body: `[["word","","","",1,[{"type":"text","text":"bad \q escape"}],"",""]]`,
		},
	})

	result, err := ImportZip(db, archive, t.TempDir(), t.TempDir(), Limits{}, testConfig(), 0, 1, nil)
	if err != nil {
		t.Fatalf("expected escape repair to allow import to succeed, got: %v", err)
	}
	if result.TermCount != 1 {
		t.Fatalf("expected 1 term row, got %d", result.TermCount)
	}
}

func TestImportTruncatedBankRollsBackWholeTransaction(t *testing.T) {
	db := openTestDB(t)
	archive := buildZip(t, []zipEntry{
		{name: "index.json", body: `{"title":"Truncated Dict","format":3}`},
		{
			name: "term_bank_1.json",
			body: `[["good","","","",1,[{"type":"text","text":"fine"}],"",""]`, // missing closing bracket
		},
	})

	_, err := ImportZip(db, archive, t.TempDir(), t.TempDir(), Limits{}, testConfig(), 0, 1, nil)
	if err == nil {
		t.Fatalf("expected truncated bank file to fail the import")
	}

	exists, existsErr := store.DictionaryNameExists(db, "Truncated Dict")
	if existsErr != nil {
		t.Fatalf("checking dictionary existence: %v", existsErr)
	}
	if exists {
		t.Fatalf("expected failed import to roll back the dictionary row")
	}
}

func TestRepairEscapesIdempotent(t *testing.T) {
	input := []byte(`{"a":"bad \q escape","b":"\u00"}`)
	once := repairEscapes(input)
	twice := repairEscapes(once)
	if !bytes.Equal(once, twice) {
		t.Fatalf("expected repairEscapes to be idempotent, got %q then %q", once, twice)
	}
}

func TestSafeJoinPathRejectsTraversal(t *testing.T) {
	if _, err := safeJoinPath("/data/media", "../../etc/passwd"); err == nil {
		t.Fatalf("expected traversal path to be rejected")
	}
	if _, err := safeJoinPath("/data/media", "/etc/passwd"); err == nil {
		t.Fatalf("expected absolute path to be rejected")
	}
	got, err := safeJoinPath("/data/media", "img/cat.png")
	if err != nil {
		t.Fatalf("expected normal relative path to be accepted: %v", err)
	}
	if !strings.HasSuffix(got, "img/cat.png") {
		t.Fatalf("expected joined path to end with img/cat.png, got %q", got)
	}
}

func errorsAs(err error, target **Error) bool {
	e, ok := err.(*Error)
	if ok {
		*target = e
	}
	return ok
}
