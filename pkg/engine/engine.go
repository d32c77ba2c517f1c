// Package engine is the in-process façade over pkg/importer, pkg/lookup
// and pkg/store: it owns the dictionary registry, the database handle,
// and the post-startup import guard, and exposes the eight operations an
// external caller drives a running instance through.
package engine

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kotoba-dict/yomitan-engine/pkg/config"
	"github.com/kotoba-dict/yomitan-engine/pkg/deinflect"
	"github.com/kotoba-dict/yomitan-engine/pkg/importer"
	"github.com/kotoba-dict/yomitan-engine/pkg/lookup"
	"github.com/kotoba-dict/yomitan-engine/pkg/store"
)

// startupGuard bounds how long after process start ImportArchive refuses
// new imports, giving any slower initial load a clear run at the database
// before a second writer can contend for it.
const startupGuardProd = 30 * time.Second

// TestStartupGuard is the drastically shortened guard window tests should
// install via Engine.SetStartupGuardForTest, mirroring the original's
// 50ms #[cfg(test)] constant.
const TestStartupGuard = 50 * time.Millisecond

// Engine holds everything one running server instance needs: the open
// database, the in-memory dictionary registry, and import-concurrency
// bookkeeping.
type Engine struct {
	db      *sql.DB
	dataDir string
	logger  *log.Logger

	mu           sync.RWMutex
	dictionaries map[store.DictionaryID]store.Dictionary
	nextDictID   store.DictionaryID

	loading      atomic.Bool
	startedAt    time.Time
	startupGuard time.Duration
	importLimits importer.Limits
	importConfig config.Config
}

// Open creates (or reopens) an engine rooted at dataDir, creating the
// schema if the database file is new.
func Open(dataDir string, logger *log.Logger) (*Engine, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("engine: creating data dir: %w", err)
	}
	dbPath := filepath.Join(dataDir, "yomitan.db")

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("engine: opening database: %w", err)
	}
	db.SetMaxOpenConns(10)

	if err := store.InitSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("engine: initializing schema: %w", err)
	}

	dicts, err := store.ListDictionaries(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("engine: loading dictionaries: %w", err)
	}

	registry := make(map[store.DictionaryID]store.Dictionary, len(dicts))
	var maxID store.DictionaryID
	for _, d := range dicts {
		registry[d.ID] = d
		if d.ID > maxID {
			maxID = d.ID
		}
	}

	if logger == nil {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	logger.Printf("engine: database initialized, loaded %d dictionaries", len(dicts))

	return &Engine{
		db:           db,
		dataDir:      dataDir,
		logger:       logger,
		dictionaries: registry,
		nextDictID:   maxID + 1,
		startedAt:    time.Now(),
		startupGuard: startupGuardProd,
		importLimits: importer.DefaultLimits(),
		importConfig: config.FromEnv(),
	}, nil
}

// SetStartupGuardForTest installs a shortened startup guard window; tests
// should call this immediately after Open.
func (e *Engine) SetStartupGuardForTest(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.startupGuard = d
}

// Close releases the underlying database handle.
func (e *Engine) Close() error {
	return e.db.Close()
}

// IsLoading reports whether an import is currently in flight.
func (e *Engine) IsLoading() bool {
	return e.loading.Load()
}

// IsStartupGuardActive reports whether the post-startup import guard
// window is still open.
func (e *Engine) IsStartupGuardActive() bool {
	e.mu.RLock()
	guard := e.startupGuard
	e.mu.RUnlock()
	return time.Since(e.startedAt) < guard
}

// StartupGuardRemaining returns the whole seconds remaining in the
// startup guard window, floored at zero.
func (e *Engine) StartupGuardRemaining() int64 {
	e.mu.RLock()
	guard := e.startupGuard
	e.mu.RUnlock()
	remaining := guard - time.Since(e.startedAt)
	if remaining < 0 {
		return 0
	}
	return int64(remaining / time.Second)
}

func (e *Engine) mediaDir() string   { return filepath.Join(e.dataDir, "dict_media") }
func (e *Engine) archiveDir() string { return filepath.Join(e.dataDir, "dict_archives") }

// ImportArchive validates and ingests a Yomitan v3 archive, registering
// the resulting dictionary at the given priority (enabled by default).
func (e *Engine) ImportArchive(archiveBytes []byte, priority int64) (importer.Result, error) {
	if e.IsStartupGuardActive() {
		return importer.Result{}, newImportError(
			ErrKindStartupGuard,
			fmt.Sprintf("import rejected, startup guard active for %d more seconds", e.StartupGuardRemaining()),
			nil,
		)
	}

	if !e.loading.CompareAndSwap(false, true) {
		return importer.Result{}, newImportError(ErrKindStoreError, "another import is already in progress", nil)
	}
	defer e.loading.Store(false)

	e.mu.Lock()
	nextID := e.nextDictID
	e.mu.Unlock()

	result, err := importer.ImportZip(
		e.db, archiveBytes, e.mediaDir(), e.archiveDir(),
		e.importLimits, e.importConfig, priority, nextID, e.logger,
	)
	if err != nil {
		return importer.Result{}, translateImportError(err)
	}

	e.mu.Lock()
	e.dictionaries[result.DictionaryID] = store.Dictionary{
		ID:        result.DictionaryID,
		Name:      result.DictionaryName,
		Priority:  priority,
		Enabled:   true,
		Styles:    result.Styles,
		HasStyles: result.HasStyles,
	}
	if result.DictionaryID >= e.nextDictID {
		e.nextDictID = result.DictionaryID + 1
	}
	e.mu.Unlock()

	return result, nil
}

// ListDictionaries returns every registered dictionary, in ascending id
// order.
func (e *Engine) ListDictionaries() []store.Dictionary {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]store.Dictionary, 0, len(e.dictionaries))
	for _, d := range e.dictionaries {
		out = append(out, d)
	}
	sortDictionaries(out)
	return out
}

func sortDictionaries(dicts []store.Dictionary) {
	for i := 1; i < len(dicts); i++ {
		for j := i; j > 0 && dicts[j-1].ID > dicts[j].ID; j-- {
			dicts[j-1], dicts[j] = dicts[j], dicts[j-1]
		}
	}
}

// SetDictionaryEnabled toggles a dictionary's enabled flag, both on disk
// and in the in-memory registry.
func (e *Engine) SetDictionaryEnabled(id store.DictionaryID, enabled bool) error {
	if err := store.SetDictionaryEnabled(e.db, id, enabled); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if d, ok := e.dictionaries[id]; ok {
		d.Enabled = enabled
		e.dictionaries[id] = d
	}
	return nil
}

// SetDictionaryPriority updates a dictionary's sort priority, both on disk
// and in the in-memory registry.
func (e *Engine) SetDictionaryPriority(id store.DictionaryID, priority int64) error {
	if err := store.SetDictionaryPriority(e.db, id, priority); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if d, ok := e.dictionaries[id]; ok {
		d.Priority = priority
		e.dictionaries[id] = d
	}
	return nil
}

func (e *Engine) dictionaryConfigs() map[store.DictionaryID]lookup.DictionaryConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()
	cfgs := make(map[store.DictionaryID]lookup.DictionaryConfig, len(e.dictionaries))
	for id, d := range e.dictionaries {
		cfgs[id] = lookup.DictionaryConfig{Enabled: d.Enabled, Priority: d.Priority}
	}
	return cfgs
}

// Lookup searches for dictionary entries at cursorByteOffset in text.
func (e *Engine) Lookup(text string, cursorByteOffset int, language deinflect.Language) []lookup.Entry {
	return lookup.Search(e.db, text, cursorByteOffset, language, e.dictionaryConfigs())
}

// LookupKanji searches for kanji entries at cursorByteOffset in text.
func (e *Engine) LookupKanji(text string, cursorByteOffset int) []lookup.KanjiEntry {
	return lookup.SearchKanji(e.db, text, cursorByteOffset, e.dictionaryConfigs())
}

// StylesFor returns the styles.css body attached to a dictionary, if any.
func (e *Engine) StylesFor(id store.DictionaryID) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	d, ok := e.dictionaries[id]
	if !ok || !d.HasStyles {
		return "", false
	}
	return d.Styles, true
}

// MediaBytes reads an extracted media file belonging to the dictionary
// named dictName, per the media_bytes(dict_name, relative_path) interface.
func (e *Engine) MediaBytes(dictName string, relativePath string) ([]byte, error) {
	dictDir := filepath.Join(e.mediaDir(), dictName)
	fullPath, err := importer.SafeJoinPathForRead(dictDir, relativePath)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(fullPath)
}
