// Package store persists Dictionary, Term, Kanji and Kanji-meta records in
// an embedded SQLite database and exposes batched-insert and point-lookup
// operations used by the importer and lookup packages.
package store

import (
	"database/sql"
	"fmt"
	"strings"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS dictionaries (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	priority INTEGER NOT NULL DEFAULT 0,
	enabled BOOLEAN NOT NULL DEFAULT 1,
	styles TEXT
);
CREATE TABLE IF NOT EXISTS terms (
	term TEXT NOT NULL,
	reading TEXT,
	dictionary_id INTEGER NOT NULL,
	json BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_term ON terms(term);
CREATE INDEX IF NOT EXISTS idx_dict_term ON terms(dictionary_id);
CREATE INDEX IF NOT EXISTS idx_term_dict ON terms(term, dictionary_id);
CREATE TABLE IF NOT EXISTS kanji (
	character TEXT NOT NULL,
	dictionary_id INTEGER NOT NULL,
	onyomi TEXT,
	kunyomi TEXT,
	tags TEXT,
	meanings TEXT,
	stats TEXT,
	PRIMARY KEY (character, dictionary_id)
);
CREATE INDEX IF NOT EXISTS idx_kanji_character ON kanji(character);
CREATE TABLE IF NOT EXISTS kanji_meta (
	character TEXT NOT NULL,
	dictionary_id INTEGER NOT NULL,
	meta_type TEXT NOT NULL,
	data TEXT,
	PRIMARY KEY (character, dictionary_id, meta_type)
);
CREATE INDEX IF NOT EXISTS idx_kanji_meta_character ON kanji_meta(character);
CREATE TABLE IF NOT EXISTS metadata (
	key TEXT PRIMARY KEY,
	value TEXT
);
`

// SQLiteMaxBindParams is the embedded DB's hard cap on bind parameters per
// statement (spec.md §4.2).
const SQLiteMaxBindParams = 900

// DBExecutor is satisfied by both *sql.DB and *sql.Tx, letting Store methods
// run identically inside the importer's single transaction and standalone
// for reads.
type DBExecutor interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// InitSchema creates all tables/indexes if absent and applies any column
// migrations for databases created by an earlier revision.
func InitSchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("store: init schema: %w", err)
	}
	if err := ensureColumn(db, "dictionaries", "styles", "TEXT"); err != nil {
		return fmt.Errorf("store: migrate dictionaries.styles: %w", err)
	}
	return nil
}

func ensureColumn(db *sql.DB, table, column, ddl string) error {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid        int
			name       string
			ctype      string
			notNull    int
			defaultVal any
			pk         int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &defaultVal, &pk); err != nil {
			return err
		}
		if name == column {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	_, err = db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, ddl))
	return err
}

// SetFastImportMode switches the database to the weakened-durability
// pragma set used for the duration of an import transaction (spec.md §4.2).
// Callers must call SetSteadyStateMode after the transaction concludes.
func SetFastImportMode(db *sql.DB) {
	_, _ = db.Exec(`
		PRAGMA journal_mode = MEMORY;
		PRAGMA synchronous = OFF;
		PRAGMA temp_store = MEMORY;
		PRAGMA cache_size = -200000;
		PRAGMA locking_mode = EXCLUSIVE;
	`)
}

// SetSteadyStateMode reverts to the durable, concurrent-reader-friendly
// pragma set used outside of imports.
func SetSteadyStateMode(db *sql.DB) {
	_, _ = db.Exec(`
		PRAGMA locking_mode = NORMAL;
		PRAGMA journal_mode = DELETE;
		PRAGMA synchronous = NORMAL;
	`)
}

// DropTermIndexes removes the term indexes for the duration of a bulk
// import so individual inserts don't pay per-row index maintenance.
func DropTermIndexes(tx DBExecutor) error {
	_, err := tx.Exec(`
		DROP INDEX IF EXISTS idx_term;
		DROP INDEX IF EXISTS idx_dict_term;
		DROP INDEX IF EXISTS idx_term_dict;
	`)
	return err
}

// CreateTermIndexes recreates the term indexes dropped by DropTermIndexes.
func CreateTermIndexes(tx DBExecutor) error {
	_, err := tx.Exec(`
		CREATE INDEX IF NOT EXISTS idx_term ON terms(term);
		CREATE INDEX IF NOT EXISTS idx_dict_term ON terms(dictionary_id);
		CREATE INDEX IF NOT EXISTS idx_term_dict ON terms(term, dictionary_id);
	`)
	return err
}

// ErrUniqueIDConflict is returned by InsertDictionary when the requested id
// already exists; the importer retries with the next id.
type ErrUniqueIDConflict struct {
	ID DictionaryID
}

func (e *ErrUniqueIDConflict) Error() string {
	return fmt.Sprintf("store: dictionary id %d already exists", e.ID)
}

// InsertDictionary inserts a dictionary row with the given id, returning
// *ErrUniqueIDConflict if the id is already taken.
func InsertDictionary(tx DBExecutor, id DictionaryID, name string, priority int64, enabled bool) error {
	_, err := tx.Exec(
		"INSERT INTO dictionaries (id, name, priority, enabled) VALUES (?, ?, ?, ?)",
		int64(id), name, priority, enabled,
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return &ErrUniqueIDConflict{ID: id}
	}
	return err
}

// SetDictionaryStyles attaches a styles.css body to a dictionary row.
func SetDictionaryStyles(tx DBExecutor, id DictionaryID, styles string) error {
	_, err := tx.Exec("UPDATE dictionaries SET styles = ? WHERE id = ?", styles, int64(id))
	return err
}

// SetDictionaryEnabled mutates the enabled flag of an existing dictionary.
func SetDictionaryEnabled(db DBExecutor, id DictionaryID, enabled bool) error {
	_, err := db.Exec("UPDATE dictionaries SET enabled = ? WHERE id = ?", enabled, int64(id))
	return err
}

// SetDictionaryPriority mutates the priority of an existing dictionary.
func SetDictionaryPriority(db DBExecutor, id DictionaryID, priority int64) error {
	_, err := db.Exec("UPDATE dictionaries SET priority = ? WHERE id = ?", priority, int64(id))
	return err
}

// ListDictionaries returns every dictionary row, in id order.
func ListDictionaries(db DBExecutor) ([]Dictionary, error) {
	rows, err := db.Query("SELECT id, name, priority, enabled, styles FROM dictionaries ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Dictionary
	for rows.Next() {
		var (
			d      Dictionary
			id     int64
			styles sql.NullString
		)
		if err := rows.Scan(&id, &d.Name, &d.Priority, &d.Enabled, &styles); err != nil {
			return nil, err
		}
		d.ID = DictionaryID(id)
		if styles.Valid {
			d.Styles, d.HasStyles = styles.String, true
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// DictionaryNameExists reports whether a dictionary with the given
// trimmed, lower-cased name already exists.
func DictionaryNameExists(db DBExecutor, name string) (bool, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	rows, err := db.Query("SELECT name FROM dictionaries")
	if err != nil {
		return false, err
	}
	defer rows.Close()
	for rows.Next() {
		var existing string
		if err := rows.Scan(&existing); err != nil {
			return false, err
		}
		if strings.ToLower(strings.TrimSpace(existing)) == normalized {
			return true, nil
		}
	}
	return false, rows.Err()
}

// InsertTermsBatch inserts rows in statements sized to respect the bind
// parameter cap, caching one SQL string per distinct chunk length.
func InsertTermsBatch(tx DBExecutor, rows []TermRow, rowsPerStatement int) error {
	if len(rows) == 0 {
		return nil
	}
	maxRows := rowsPerStatement
	if cap := SQLiteMaxBindParams / 4; maxRows > cap {
		maxRows = cap
	}
	if maxRows < 1 {
		maxRows = 1
	}

	sqlCache := make(map[int]string)
	for start := 0; start < len(rows); start += maxRows {
		end := start + maxRows
		if end > len(rows) {
			end = len(rows)
		}
		chunk := rows[start:end]

		sqlText, ok := sqlCache[len(chunk)]
		if !ok {
			var b strings.Builder
			b.WriteString("INSERT INTO terms (term, reading, dictionary_id, json) VALUES ")
			for i := range chunk {
				if i > 0 {
					b.WriteByte(',')
				}
				b.WriteString("(?, ?, ?, ?)")
			}
			sqlText = b.String()
			sqlCache[len(chunk)] = sqlText
		}

		args := make([]any, 0, len(chunk)*4)
		for _, row := range chunk {
			args = append(args, row.Term)
			if row.HasReading {
				args = append(args, row.Reading)
			} else {
				args = append(args, nil)
			}
			args = append(args, int64(row.DictionaryID), row.Payload)
		}
		if _, err := tx.Exec(sqlText, args...); err != nil {
			return err
		}
	}
	return nil
}

// InsertKanji upserts a single kanji row.
func InsertKanji(tx DBExecutor, row KanjiRow) error {
	_, err := tx.Exec(
		`INSERT OR REPLACE INTO kanji (character, dictionary_id, onyomi, kunyomi, tags, meanings, stats)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		row.Character, int64(row.DictionaryID), row.Onyomi, row.Kunyomi, row.Tags, row.MeaningsJSON, row.StatsJSON,
	)
	return err
}

// InsertKanjiMeta upserts a single kanji-meta row.
func InsertKanjiMeta(tx DBExecutor, row KanjiMetaRow) error {
	_, err := tx.Exec(
		`INSERT OR REPLACE INTO kanji_meta (character, dictionary_id, meta_type, data)
		 VALUES (?, ?, ?, ?)`,
		row.Character, int64(row.DictionaryID), row.MetaType, row.Data,
	)
	return err
}

// QueryTerms streams every (dictionary_id, payload) pair whose term column
// equals key.
func QueryTerms(db DBExecutor, term string) ([]TermHit, error) {
	rows, err := db.Query("SELECT dictionary_id, json FROM terms WHERE term = ?", term)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []TermHit
	for rows.Next() {
		var (
			id      int64
			payload []byte
		)
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, err
		}
		hits = append(hits, TermHit{DictionaryID: DictionaryID(id), Payload: payload})
	}
	return hits, rows.Err()
}

// QueryKanji streams every kanji row for the given character.
func QueryKanji(db DBExecutor, character string) ([]KanjiHit, error) {
	rows, err := db.Query(
		"SELECT dictionary_id, onyomi, kunyomi, tags, meanings, stats FROM kanji WHERE character = ?",
		character,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []KanjiHit
	for rows.Next() {
		var (
			id  int64
			hit KanjiHit
		)
		if err := rows.Scan(&id, &hit.Onyomi, &hit.Kunyomi, &hit.Tags, &hit.MeaningsJSON, &hit.StatsJSON); err != nil {
			return nil, err
		}
		hit.DictionaryID = DictionaryID(id)
		out = append(out, hit)
	}
	return out, rows.Err()
}

// QueryKanjiMeta streams kanji-meta rows for a character, joined with the
// owning dictionary's name.
func QueryKanjiMeta(db DBExecutor, character string) ([]KanjiMetaHit, error) {
	rows, err := db.Query(
		`SELECT km.meta_type, km.data, d.name
		 FROM kanji_meta km JOIN dictionaries d ON km.dictionary_id = d.id
		 WHERE km.character = ?`,
		character,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []KanjiMetaHit
	for rows.Next() {
		var hit KanjiMetaHit
		if err := rows.Scan(&hit.MetaType, &hit.Data, &hit.DictionaryName); err != nil {
			return nil, err
		}
		out = append(out, hit)
	}
	return out, rows.Err()
}

// DictionaryName looks up a single dictionary's name by id.
func DictionaryName(db DBExecutor, id DictionaryID) (string, error) {
	var name string
	err := db.QueryRow("SELECT name FROM dictionaries WHERE id = ?", int64(id)).Scan(&name)
	return name, err
}
