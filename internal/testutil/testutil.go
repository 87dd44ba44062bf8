// Package testutil provides fixture builders shared across test packages.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/modelver/internal/version"
)

// Artifact is a test double for the artifact descriptor the owning
// application supplies.
type Artifact struct {
	ModelID string
	Dir     string
	Version string
}

// ID returns the model identifier.
func (a *Artifact) ID() string { return a.ModelID }

// Path returns the backing storage path.
func (a *Artifact) Path() string { return a.Dir }

// SetVersion records the version the artifact currently carries.
func (a *Artifact) SetVersion(v string) { a.Version = v }

// NewArtifact creates an artifact descriptor backed by a fresh temp
// directory populated with the given files.
func NewArtifact(t *testing.T, modelID string, files map[string]string) *Artifact {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
	return &Artifact{ModelID: modelID, Dir: dir}
}

// MustVersion constructs a Version or fails the test.
func MustVersion(t *testing.T, versionStr, modelID string, opts ...version.Option) *version.Version {
	t.Helper()
	v, err := version.New(versionStr, modelID, opts...)
	require.NoError(t, err)
	return v
}
