package manifest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/modelver/internal/manager"
)

func writeManifest(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "models.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_ValidManifest(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, `
models:
  - id: llama-7b
    path: ./llama-7b
    version: 1.0.0
    features: [generation, chat]
    dependencies:
      tokenizer: 1.2.0
    metadata:
      params: 7B
  - id: whisper
    path: ./whisper
    version: 2.1.0
    compatible_with: ["2.0.0"]
`)

	file, err := Load(path)

	require.NoError(t, err)
	require.Len(t, file.Models, 2)
	require.Equal(t, "llama-7b", file.Models[0].ID)
	require.Equal(t, []string{"generation", "chat"}, file.Models[0].Features)
	require.Equal(t, map[string]string{"tokenizer": "1.2.0"}, file.Models[0].Dependencies)
	require.Equal(t, []string{"2.0.0"}, file.Models[1].CompatibleWith)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))

	require.Error(t, err)
}

func TestLoad_RejectsEmptyManifest(t *testing.T) {
	path := writeManifest(t, t.TempDir(), "models: []\n")

	_, err := Load(path)

	require.ErrorContains(t, err, "declares no models")
}

func TestLoad_RejectsEntryWithoutVersion(t *testing.T) {
	path := writeManifest(t, t.TempDir(), `
models:
  - id: llama-7b
    path: ./llama-7b
`)

	_, err := Load(path)

	require.ErrorContains(t, err, "missing version")
}

func TestApply_RegistersAllModels(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "llama-7b"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "llama-7b", "weights.bin"), []byte("w"), 0o600))
	path := writeManifest(t, dir, `
models:
  - id: llama-7b
    path: ./llama-7b
    version: 1.0.0
    features: [generation]
`)

	mgr, err := manager.New(t.TempDir())
	require.NoError(t, err)

	file, err := Load(path)
	require.NoError(t, err)
	registered, err := Apply(context.Background(), mgr, path, file)

	require.NoError(t, err)
	require.Len(t, registered, 1)
	require.NotEmpty(t, registered[0].ContentHash())

	v, ok := mgr.GetVersion("llama-7b", "1.0.0")
	require.True(t, ok)
	require.True(t, v.HasFeature("generation"))
}

func TestApply_InvalidVersionStopsRun(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, `
models:
  - id: llama-7b
    path: ./llama-7b
    version: not-semver
`)

	mgr, err := manager.New(t.TempDir())
	require.NoError(t, err)

	file, err := Load(path)
	require.NoError(t, err)
	_, err = Apply(context.Background(), mgr, path, file)

	require.ErrorContains(t, err, "register model llama-7b")
}
