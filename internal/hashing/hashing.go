// Package hashing computes content-addressed integrity fingerprints for
// model artifacts. A fingerprint covers either a single file or a whole
// directory tree, and is stable across filesystem enumeration order.
//
// Hashing is deliberately best-effort: a missing artifact yields an empty
// fingerprint ("unknown") and per-file read errors inside a directory are
// logged and skipped, so a partially unreadable store never fails a
// registration outright.
package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/zjrosen/modelver/internal/log"
)

// chunkSize is the read buffer used when streaming file contents.
const chunkSize = 64 * 1024

// HashPath fingerprints the file or directory at path.
// Returns "" if the path does not exist or cannot be read.
func HashPath(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.ErrorErr(log.CatHash, "Failed to stat artifact path", err, "path", path)
		}
		return ""
	}
	if info.IsDir() {
		return HashDir(path)
	}
	return HashFile(path)
}

// HashFile streams the file through SHA-256 in fixed-size chunks and
// returns the hex digest. A missing or unreadable file yields "".
func HashFile(path string) string {
	f, err := os.Open(path) //nolint:gosec // G304: artifact paths come from the owning application
	if err != nil {
		if !os.IsNotExist(err) {
			log.ErrorErr(log.CatHash, "Failed to open file for hashing", err, "path", path)
		}
		return ""
	}
	defer f.Close()

	digest := sha256.New()
	buf := make([]byte, chunkSize)
	if _, err := io.CopyBuffer(digest, f, buf); err != nil {
		log.ErrorErr(log.CatHash, "Failed to read file for hashing", err, "path", path)
		return ""
	}
	return hex.EncodeToString(digest.Sum(nil))
}

// HashDir folds every regular file under root into one SHA-256 digest.
//
// Files are visited in sorted relative-path order so the result does not
// depend on filesystem enumeration order. Hidden files (base name starting
// with ".") are excluded. Each file contributes the UTF-8 bytes of its
// slash-separated relative path followed by the hex digest of its own
// content; files that cannot be read contribute nothing.
func HashDir(root string) string {
	paths, err := collectFiles(root)
	if err != nil {
		log.ErrorErr(log.CatHash, "Failed to enumerate directory for hashing", err, "path", root)
		return ""
	}

	digest := sha256.New()
	for _, rel := range paths {
		fileHash := HashFile(filepath.Join(root, filepath.FromSlash(rel)))
		if fileHash == "" {
			// Already logged by HashFile; skip this file's contribution.
			continue
		}
		digest.Write([]byte(rel))
		digest.Write([]byte(fileHash))
	}
	return hex.EncodeToString(digest.Sum(nil))
}

// collectFiles returns the sorted slash-separated relative paths of all
// non-hidden regular files under root.
func collectFiles(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Skip the unreadable entry, keep the rest of the tree.
			log.ErrorErr(log.CatHash, "Failed to walk directory entry", err, "path", path)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}
