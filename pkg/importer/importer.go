// Package importer ingests Yomitan v3 dictionary archives: it validates
// ZIP structure and safety bounds, tolerantly parses heterogeneous bank
// files, encodes each record via pkg/codec, and persists the result
// through pkg/store — all inside a single transaction so a failure at any
// point leaves the database untouched.
package importer

import (
	"archive/zip"
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/kotoba-dict/yomitan-engine/pkg/codec"
	"github.com/kotoba-dict/yomitan-engine/pkg/config"
	"github.com/kotoba-dict/yomitan-engine/pkg/store"
)

const expectedFormatVersion = 3

// IndexJSON is the Yomitan v3 manifest at the archive root.
type IndexJSON struct {
	Title   string `json:"title"`
	Format  int    `json:"format"`
	Version int    `json:"version"`
}

func formatVersion(idx IndexJSON) int {
	if idx.Format != 0 {
		return idx.Format
	}
	return idx.Version
}

// Result summarizes a successful import.
type Result struct {
	DictionaryID    store.DictionaryID
	DictionaryName  string
	TermCount       int64
	KanjiCount      int64
	MediaCount      int64
	Styles          string
	HasStyles       bool
	SkippedForError []string
}

// ErrorKind classifies why ImportZip failed, mirroring spec.md §7's error
// kind list so a caller can classify the failure instead of substring
// matching a message.
type ErrorKind int

const (
	// ErrInputTooLarge covers any exceeded byte-size bound: archive size,
	// per-entry size, or total uncompressed size.
	ErrInputTooLarge ErrorKind = iota
	// ErrTooManyEntries covers exceeded count bounds: archive entry count
	// or total inserted term row count.
	ErrTooManyEntries
	// ErrRatioSuspect is a per-entry compression ratio over the configured
	// bound, a zip-bomb signal.
	ErrRatioSuspect
	// ErrUnsupportedFormat covers a missing/non-v3 format version or a
	// structurally incomplete index.json.
	ErrUnsupportedFormat
	// ErrDuplicateName is returned when a dictionary with the same
	// (trimmed, case-insensitive) name already exists.
	ErrDuplicateName
	// ErrArchiveEntryCorrupt is a CRC/checksum failure on one bank entry;
	// callers see this only via logging, since the entry is skipped and
	// the import continues rather than failing.
	ErrArchiveEntryCorrupt
	// ErrParseError is a non-skippable parse failure (malformed zip,
	// unreadable index.json, or a bank row that fails even after escape
	// repair); the whole import is rolled back.
	ErrParseError
	// ErrStoreError covers underlying database/filesystem failures during
	// the transaction.
	ErrStoreError
)

// Error wraps an importer failure with a classification and the original
// cause.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("importer: %s: %v", e.Msg, e.Err)
	}
	return fmt.Sprintf("importer: %s", e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func fail(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// AllocateID picks the next free dictionary id, retrying on unique
// conflicts up to 1024 times, mirroring the original's retry loop against
// concurrent imports.
func AllocateID(tx store.DBExecutor, name string, priority int64, enabled bool, nextID store.DictionaryID) (store.DictionaryID, error) {
	id := nextID
	for attempt := 0; attempt < 1024; attempt++ {
		err := store.InsertDictionary(tx, id, name, priority, enabled)
		if err == nil {
			return id, nil
		}
		var conflict *store.ErrUniqueIDConflict
		if !asUniqueConflict(err, &conflict) {
			return 0, err
		}
		id++
	}
	return 0, fmt.Errorf("importer: exhausted dictionary id allocation attempts")
}

func asUniqueConflict(err error, target **store.ErrUniqueIDConflict) bool {
	conflict, ok := err.(*store.ErrUniqueIDConflict)
	if ok {
		*target = conflict
	}
	return ok
}

// ImportZip validates and ingests a Yomitan v3 archive, persisting the
// result inside a single transaction against db. mediaDir receives
// extracted media files (or, if cfg.SkipMedia is true and the archive
// carries media entries, the raw archive bytes are written to archiveDir
// instead).
func ImportZip(db *sql.DB, archiveBytes []byte, mediaDir, archiveDir string, limits Limits, cfg config.Config, priority int64, nextID store.DictionaryID, logger *log.Logger) (Result, error) {
	limits = limits.WithDefaults()

	if int64(len(archiveBytes)) > limits.MaxArchiveBytes {
		return Result{}, fail(ErrInputTooLarge, "archive exceeds maximum size", nil)
	}

	reader, err := zip.NewReader(bytes.NewReader(archiveBytes), int64(len(archiveBytes)))
	if err != nil {
		return Result{}, fail(ErrParseError, "not a valid zip archive", err)
	}
	if len(reader.File) > limits.MaxEntries {
		return Result{}, fail(ErrTooManyEntries, "archive has too many entries", nil)
	}

	var totalUncompressed int64
	for _, f := range reader.File {
		totalUncompressed += int64(f.UncompressedSize64)
		if int64(f.UncompressedSize64) > limits.MaxEntryBytes {
			return Result{}, fail(ErrInputTooLarge, fmt.Sprintf("entry %q exceeds maximum entry size", f.Name), nil)
		}
		if f.CompressedSize64 > 0 {
			ratio := int64(f.UncompressedSize64) / int64(f.CompressedSize64)
			if ratio > limits.MaxCompressionRatio {
				return Result{}, fail(ErrRatioSuspect, fmt.Sprintf("entry %q exceeds maximum compression ratio", f.Name), nil)
			}
		}
	}
	if totalUncompressed > limits.MaxTotalUncompressed {
		return Result{}, fail(ErrInputTooLarge, "archive exceeds maximum total uncompressed size", nil)
	}

	idx, err := readIndex(reader, limits.MaxIndexBytes)
	if err != nil {
		return Result{}, fail(ErrParseError, "cannot read index.json", err)
	}
	if formatVersion(idx) != expectedFormatVersion {
		return Result{}, fail(ErrUnsupportedFormat, fmt.Sprintf("unsupported format version %d, want %d", formatVersion(idx), expectedFormatVersion), nil)
	}
	if strings.TrimSpace(idx.Title) == "" {
		return Result{}, fail(ErrUnsupportedFormat, "index.json is missing a title", nil)
	}

	exists, err := store.DictionaryNameExists(db, idx.Title)
	if err != nil {
		return Result{}, fail(ErrStoreError, "checking existing dictionary names", err)
	}
	if exists {
		return Result{}, fail(ErrDuplicateName, fmt.Sprintf("dictionary %q already exists", idx.Title), nil)
	}

	tx, err := db.Begin()
	if err != nil {
		return Result{}, fail(ErrStoreError, "beginning transaction", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if cfg.FastDBMode {
		store.SetFastImportMode(db)
		defer store.SetSteadyStateMode(db)
	}
	if cfg.DeferTermIndexes {
		if err := store.DropTermIndexes(tx); err != nil {
			return Result{}, fail(ErrStoreError, "dropping term indexes", err)
		}
		defer func() {
			if committed {
				_ = store.CreateTermIndexes(db)
			}
		}()
	}

	dictID, err := AllocateID(tx, idx.Title, priority, true, nextID)
	if err != nil {
		return Result{}, fail(ErrStoreError, "allocating dictionary id", err)
	}

	result := Result{DictionaryID: dictID, DictionaryName: idx.Title}
	rowsPerStatement := rowsPerStatementFor(cfg.RowsPerStatement)
	accumulator := newTermBatchAccumulator(tx, rowsPerStatement)

	hasMediaEntries := false

	for _, f := range reader.File {
		name := f.Name
		base := path.Base(strings.ToLower(name))

		switch {
		case strings.ToLower(name) == "index.json":
			continue

		case strings.ToLower(name) == "styles.css":
			body, err := importStyles(tx, dictID, f)
			if err != nil {
				return Result{}, fail(ErrStoreError, "reading styles.css", err)
			}
			result.Styles = body
			result.HasStyles = true

		case strings.HasPrefix(base, "term_bank_") && strings.HasSuffix(base, ".json"):
			count, skip, err := importTermBank(f, dictID, accumulator, cfg.WorkerCount)
			if skip {
				logSkip(logger, name, err)
				continue
			}
			if err != nil {
				return Result{}, fail(ErrParseError, fmt.Sprintf("parsing %q", name), err)
			}
			result.TermCount += count
			if result.TermCount > limits.MaxTermRows {
				return Result{}, fail(ErrTooManyEntries, "archive exceeds maximum term row count", nil)
			}

		case strings.HasPrefix(base, "term_meta_bank_") && strings.HasSuffix(base, ".json"):
			skip, err := importTermMetaBank(f, dictID, accumulator)
			if skip {
				logSkip(logger, name, err)
				continue
			}
			if err != nil {
				return Result{}, fail(ErrParseError, fmt.Sprintf("parsing %q", name), err)
			}

		case strings.HasPrefix(base, "kanji_bank_") && strings.HasSuffix(base, ".json"):
			count, skip, err := importKanjiBank(tx, f, dictID)
			if skip {
				logSkip(logger, name, err)
				continue
			}
			if err != nil {
				return Result{}, fail(ErrParseError, fmt.Sprintf("parsing %q", name), err)
			}
			result.KanjiCount += count

		case strings.HasPrefix(base, "kanji_meta_bank_") && strings.HasSuffix(base, ".json"):
			skip, err := importKanjiMetaBank(f, dictID, accumulator)
			if skip {
				logSkip(logger, name, err)
				continue
			}
			if err != nil {
				return Result{}, fail(ErrParseError, fmt.Sprintf("parsing %q", name), err)
			}

		default:
			hasMediaEntries = true
			if !cfg.SkipMedia {
				if err := extractMedia(mediaDir, idx.Title, f); err != nil {
					return Result{}, fail(ErrStoreError, fmt.Sprintf("extracting media %q", name), err)
				}
				result.MediaCount++
			}
		}
	}

	if err := accumulator.Flush(); err != nil {
		return Result{}, fail(ErrStoreError, "flushing term batch", err)
	}

	if cfg.SkipMedia && hasMediaEntries {
		if err := persistArchiveBytes(archiveDir, dictID, archiveBytes); err != nil {
			return Result{}, fail(ErrStoreError, "persisting archive bytes", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Result{}, fail(ErrStoreError, "committing import transaction", err)
	}
	committed = true

	return result, nil
}

func readIndex(reader *zip.Reader, maxBytes int64) (IndexJSON, error) {
	for _, f := range reader.File {
		if strings.ToLower(f.Name) == "index.json" {
			if int64(f.UncompressedSize64) > maxBytes {
				return IndexJSON{}, fmt.Errorf("index.json exceeds maximum size")
			}
			rc, err := f.Open()
			if err != nil {
				return IndexJSON{}, err
			}
			defer rc.Close()
			raw, err := io.ReadAll(io.LimitReader(rc, maxBytes+1))
			if err != nil {
				return IndexJSON{}, err
			}
			var idx IndexJSON
			if err := json.Unmarshal(repairEscapes(raw), &idx); err != nil {
				return IndexJSON{}, err
			}
			return idx, nil
		}
	}
	return IndexJSON{}, fmt.Errorf("archive has no index.json")
}

func importStyles(tx store.DBExecutor, dictID store.DictionaryID, f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()
	raw, err := io.ReadAll(rc)
	if err != nil {
		return "", err
	}
	if err := store.SetDictionaryStyles(tx, dictID, string(raw)); err != nil {
		return "", err
	}
	return string(raw), nil
}

func isSkippableBankError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "checksum") || strings.Contains(msg, "crc") || strings.Contains(msg, "invalidarchive") || strings.Contains(msg, "invalid archive")
}

func logSkip(logger *log.Logger, name string, err error) {
	if logger == nil {
		return
	}
	logger.Printf("importer: skipping %q due to checksum/CRC error: %v", name, err)
}

// importTermBank streams term_bank_*.json into a row slice, then fans the
// per-row Codec encoding out across encodeTermRowsParallel before adding
// each encoded row to acc in original order (acc.Add must stay sequential:
// it shares tx, which cannot be written from multiple goroutines).
func importTermBank(f *zip.File, dictID store.DictionaryID, acc *termBatchAccumulator, workerCount int) (count int64, skip bool, err error) {
	raw, err := readRepairedEntry(f)
	if err != nil {
		if isSkippableBankError(err) {
			return 0, true, err
		}
		return 0, false, err
	}

	var rows []TermBankRow
	dec := json.NewDecoder(bytes.NewReader(raw))
	err = decodeBankArray(dec, func(d *json.Decoder) error {
		row, err := decodeTermBankRow(d)
		if err != nil {
			return err
		}
		rows = append(rows, row)
		return nil
	})
	if err != nil {
		if isSkippableBankError(err) {
			return 0, true, err
		}
		return 0, false, err
	}

	encoded, err := encodeTermRowsParallel(rows, workerCount, func(row TermBankRow) ([]byte, error) {
		payload := codec.Payload{
			Popularity: row.Popularity,
			Content:    row.Definitions,
		}
		if row.Reading != "" {
			payload.Reading, payload.HasReading = row.Reading, true
		}
		if row.Headword != "" {
			payload.Headword, payload.HasHeadword = row.Headword, true
		}
		if row.DefinitionTags != "" {
			payload.DefinitionTags, payload.HasDefTags = row.DefinitionTags, true
		}
		if row.TermTags != "" {
			payload.TermTags, payload.HasTermTags = row.TermTags, true
		}
		return codec.Encode(payload, true)
	})
	if err != nil {
		return 0, false, err
	}

	for i, row := range rows {
		termRow := store.TermRow{
			Term:         row.Headword,
			DictionaryID: dictID,
			Payload:      encoded[i],
		}
		if row.Reading != "" {
			termRow.Reading, termRow.HasReading = row.Reading, true
		}
		if err := acc.Add(termRow); err != nil {
			return count, false, err
		}
		count++
	}
	return count, false, nil
}

func importTermMetaBank(f *zip.File, dictID store.DictionaryID, acc *termBatchAccumulator) (skip bool, err error) {
	raw, err := readRepairedEntry(f)
	if err != nil {
		if isSkippableBankError(err) {
			return true, err
		}
		return false, err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	err = decodeBankArray(dec, func(d *json.Decoder) error {
		row, err := decodeTermMetaBankRow(d)
		if err != nil {
			return err
		}

		var content, reading string
		var ok bool
		switch row.Mode {
		case "freq":
			var displayValue string
			displayValue, reading, ok = parseFrequencyValue(row.Data)
			if ok {
				if reading != "" && reading != row.Term {
					content = fmt.Sprintf("Frequency: %s (%s)", displayValue, reading)
				} else {
					content = "Frequency: " + displayValue
				}
			}
		case "pitch":
			content, reading, ok = parsePitchMeta(row.Data)
		case "ipa":
			content, reading, ok = parseIPAMeta(row.Data)
		default:
			return nil
		}
		if !ok || content == "" {
			return nil
		}

		payload := codec.Payload{
			Content: []json.RawMessage{json.RawMessage(mustMarshalString(content))},
			Headword: row.Term,
			HasHeadword: true,
		}
		if reading != "" {
			payload.Reading, payload.HasReading = reading, true
		}
		encoded, err := codec.Encode(payload, true)
		if err != nil {
			return err
		}

		termRow := store.TermRow{Term: row.Term, DictionaryID: dictID, Payload: encoded}
		if reading != "" {
			termRow.Reading, termRow.HasReading = reading, true
		}
		return acc.Add(termRow)
	})
	if err != nil {
		if isSkippableBankError(err) {
			return true, err
		}
		return false, err
	}
	return false, nil
}

func importKanjiBank(tx store.DBExecutor, f *zip.File, dictID store.DictionaryID) (count int64, skip bool, err error) {
	raw, err := readRepairedEntry(f)
	if err != nil {
		if isSkippableBankError(err) {
			return 0, true, err
		}
		return 0, false, err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	err = decodeBankArray(dec, func(d *json.Decoder) error {
		row, err := decodeKanjiBankRow(d)
		if err != nil {
			return err
		}
		if utf8.RuneCountInString(row.Character) != 1 {
			return nil
		}
		meanings, _ := json.Marshal(row.Meanings)
		stats := row.Stats
		if len(stats) == 0 {
			stats = json.RawMessage("{}")
		}
		count++
		return store.InsertKanji(tx, store.KanjiRow{
			Character:    row.Character,
			DictionaryID: dictID,
			Onyomi:       row.Onyomi,
			Kunyomi:      row.Kunyomi,
			Tags:         row.Tags,
			MeaningsJSON: string(meanings),
			StatsJSON:    string(stats),
		})
	})
	if err != nil {
		if isSkippableBankError(err) {
			return count, true, err
		}
		return count, false, err
	}
	return count, false, nil
}

// importKanjiMetaBank matches importTermMetaBank's pattern: a kanji-meta
// entry's only surviving meta type is "freq", which is synthesized as a
// "Frequency: <value>" content string and inserted into the terms table
// (keyed by the kanji character) so a character's frequency surfaces
// through the same lookup path as a term's. Every other meta type is
// dropped.
func importKanjiMetaBank(f *zip.File, dictID store.DictionaryID, acc *termBatchAccumulator) (skip bool, err error) {
	raw, err := readRepairedEntry(f)
	if err != nil {
		if isSkippableBankError(err) {
			return true, err
		}
		return false, err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	err = decodeBankArray(dec, func(d *json.Decoder) error {
		row, err := decodeKanjiMetaBankRow(d)
		if err != nil {
			return err
		}
		if row.MetaType != "freq" {
			return nil
		}

		displayValue, _, ok := parseFrequencyValue(row.Data)
		if !ok {
			return nil
		}
		content := "Frequency: " + displayValue

		payload := codec.Payload{
			Content:     []json.RawMessage{json.RawMessage(mustMarshalString(content))},
			Headword:    row.Character,
			HasHeadword: true,
		}
		encoded, err := codec.Encode(payload, true)
		if err != nil {
			return err
		}
		return acc.Add(store.TermRow{Term: row.Character, DictionaryID: dictID, Payload: encoded})
	})
	if err != nil {
		if isSkippableBankError(err) {
			return true, err
		}
		return false, err
	}
	return false, nil
}

func readRepairedEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	return repairEscapes(raw), nil
}

func mustMarshalString(s string) []byte {
	out, _ := json.Marshal(s)
	return out
}
