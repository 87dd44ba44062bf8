package manager

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/zjrosen/modelver/internal/log"
)

// PathIndexFilename is the sidecar document under the storage root
// mapping model ids to the artifact path last seen at registration, so
// drift checks keep working after a process restart.
const PathIndexFilename = "model_paths.json"

// loadPaths reads the path index. A missing or unparseable file leaves
// the index empty; drift detection is best-effort and degrades to
// silence rather than failing manager construction.
func (m *Manager) loadPaths() {
	data, err := os.ReadFile(m.pathIndexPath)
	if err != nil {
		if !os.IsNotExist(err) {
			log.ErrorErr(log.CatManager, "Failed to read path index, drift checks start blind", err, "path", m.pathIndexPath)
		}
		return
	}

	paths := make(map[string]string)
	if err := json.Unmarshal(data, &paths); err != nil {
		log.ErrorErr(log.CatManager, "Path index corrupt, drift checks start blind", err, "path", m.pathIndexPath)
		return
	}
	m.paths = paths
}

// savePaths writes the path index atomically (temp file + rename).
// Failures are logged and absorbed; registration must not fail because
// the drift sidecar could not be written.
func (m *Manager) savePaths() {
	data, err := json.MarshalIndent(m.paths, "", "  ")
	if err != nil {
		log.ErrorErr(log.CatManager, "Failed to marshal path index", err, "path", m.pathIndexPath)
		return
	}

	dir := filepath.Dir(m.pathIndexPath)
	temp, err := os.CreateTemp(dir, ".model_paths.json.tmp.*")
	if err != nil {
		log.ErrorErr(log.CatManager, "Failed to create path index temp file", err, "path", m.pathIndexPath)
		return
	}
	tempPath := temp.Name()

	if _, err := temp.Write(data); err != nil {
		_ = temp.Close()
		_ = os.Remove(tempPath)
		log.ErrorErr(log.CatManager, "Failed to write path index", err, "path", m.pathIndexPath)
		return
	}
	if err := temp.Close(); err != nil {
		_ = os.Remove(tempPath)
		log.ErrorErr(log.CatManager, "Failed to close path index temp file", err, "path", m.pathIndexPath)
		return
	}
	if err := os.Rename(tempPath, m.pathIndexPath); err != nil {
		_ = os.Remove(tempPath)
		log.ErrorErr(log.CatManager, "Failed to replace path index", err, "path", m.pathIndexPath)
	}
}
