package engine

import (
	"fmt"

	"github.com/kotoba-dict/yomitan-engine/pkg/importer"
)

// ImportErrorKind classifies why ImportArchive failed, mirroring
// spec.md §7's error taxonomy so callers can branch on kind rather than
// string-match messages.
type ImportErrorKind int

const (
	// ErrKindInputTooLarge covers any exceeded byte-size bound: archive
	// size, per-entry size, or total uncompressed size.
	ErrKindInputTooLarge ImportErrorKind = iota
	// ErrKindTooManyEntries covers exceeded count bounds: archive entry
	// count or total inserted term row count.
	ErrKindTooManyEntries
	// ErrKindRatioSuspect is a per-entry compression ratio over the
	// configured bound, a zip-bomb signal.
	ErrKindRatioSuspect
	// ErrKindUnsupportedFormat covers a missing/non-v3 format version or
	// a structurally incomplete index.json.
	ErrKindUnsupportedFormat
	// ErrKindDuplicateName is returned when a dictionary with the same
	// (trimmed, case-insensitive) name already exists.
	ErrKindDuplicateName
	// ErrKindArchiveEntryCorrupt is a CRC/checksum failure on one bank
	// entry; in normal operation the entry is skipped and the import
	// continues, so this kind surfaces only if a corrupt entry somehow
	// escapes that skip path.
	ErrKindArchiveEntryCorrupt
	// ErrKindParseError is a non-skippable parse failure (malformed zip,
	// unreadable index.json, or a bank row that fails even after escape
	// repair); the whole import is rolled back.
	ErrKindParseError
	// ErrKindStoreError covers underlying database/filesystem failures.
	ErrKindStoreError
	// ErrKindStartupGuard is returned when an import is attempted while
	// the post-startup guard window is still active.
	ErrKindStartupGuard
)

func (k ImportErrorKind) String() string {
	switch k {
	case ErrKindInputTooLarge:
		return "input_too_large"
	case ErrKindTooManyEntries:
		return "too_many_entries"
	case ErrKindRatioSuspect:
		return "ratio_suspect"
	case ErrKindUnsupportedFormat:
		return "unsupported_format"
	case ErrKindDuplicateName:
		return "duplicate_name"
	case ErrKindArchiveEntryCorrupt:
		return "archive_entry_corrupt"
	case ErrKindParseError:
		return "parse_error"
	case ErrKindStoreError:
		return "store_error"
	case ErrKindStartupGuard:
		return "startup_guard"
	default:
		return "unknown"
	}
}

// ImportError wraps an underlying cause with a classified kind.
type ImportError struct {
	Kind ImportErrorKind
	Msg  string
	Err  error
}

func (e *ImportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("import: %s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("import: %s: %s", e.Kind, e.Msg)
}

func (e *ImportError) Unwrap() error { return e.Err }

func newImportError(kind ImportErrorKind, msg string, err error) *ImportError {
	return &ImportError{Kind: kind, Msg: msg, Err: err}
}

// translateImportError maps a *importer.Error's classification onto the
// engine's own ImportErrorKind space, one-to-one.
func translateImportError(err error) *ImportError {
	impErr, ok := err.(*importer.Error)
	if !ok {
		return newImportError(ErrKindStoreError, err.Error(), err)
	}
	var kind ImportErrorKind
	switch impErr.Kind {
	case importer.ErrInputTooLarge:
		kind = ErrKindInputTooLarge
	case importer.ErrTooManyEntries:
		kind = ErrKindTooManyEntries
	case importer.ErrRatioSuspect:
		kind = ErrKindRatioSuspect
	case importer.ErrUnsupportedFormat:
		kind = ErrKindUnsupportedFormat
	case importer.ErrDuplicateName:
		kind = ErrKindDuplicateName
	case importer.ErrArchiveEntryCorrupt:
		kind = ErrKindArchiveEntryCorrupt
	case importer.ErrParseError:
		kind = ErrKindParseError
	case importer.ErrStoreError:
		kind = ErrKindStoreError
	default:
		kind = ErrKindParseError
	}
	return newImportError(kind, impErr.Msg, impErr.Err)
}
