package importer

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/kotoba-dict/yomitan-engine/pkg/store"
)

// safeJoinPath joins base with relative, rejecting any relative path that
// could escape base via "..", an absolute root, or a drive-letter/UNC
// prefix. Only normal and current-directory path components are allowed,
// mirroring the zip-slip protection in the original importer.
func safeJoinPath(base, relative string) (string, error) {
	cleanRel := path.Clean(strings.ReplaceAll(relative, "\\", "/"))
	if cleanRel == "." || cleanRel == "" {
		return "", fmt.Errorf("importer: empty media path")
	}
	if strings.HasPrefix(cleanRel, "/") {
		return "", fmt.Errorf("importer: media path %q is absolute", relative)
	}
	if len(cleanRel) >= 2 && cleanRel[1] == ':' {
		return "", fmt.Errorf("importer: media path %q has a drive prefix", relative)
	}

	for _, part := range strings.Split(cleanRel, "/") {
		switch part {
		case "..":
			return "", fmt.Errorf("importer: media path %q escapes the dictionary directory", relative)
		case "", ".":
			continue
		}
	}

	return path.Join(base, cleanRel), nil
}

// SafeJoinPathForRead exposes safeJoinPath for callers outside this
// package (the engine's media-read path) that need the same zip-slip
// protection when resolving a caller-supplied relative media path.
func SafeJoinPathForRead(base, relative string) (string, error) {
	return safeJoinPath(base, relative)
}

// extractMedia writes a non-structural zip entry under
// mediaDir/<dictionary-name>/<relative-path>, rejecting any path that
// would escape the dictionary's media directory.
func extractMedia(mediaDir string, dictName string, f *zip.File) error {
	if f.FileInfo().IsDir() {
		return nil
	}

	dictDir := filepath.Join(mediaDir, dictName)
	destPath, err := safeJoinPath(dictDir, f.Name)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return err
	}

	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, rc)
	return err
}

// persistArchiveBytes saves the full archive under
// archiveDir/<dictionary_id>.zip, used when media extraction is skipped
// but the archive carries media entries a reader may later want.
func persistArchiveBytes(archiveDir string, dictID store.DictionaryID, archiveBytes []byte) error {
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return err
	}
	destPath := filepath.Join(archiveDir, fmt.Sprintf("%d.zip", int64(dictID)))
	return os.WriteFile(destPath, archiveBytes, 0o644)
}
