package registry

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/modelver/internal/hashing"
	"github.com/zjrosen/modelver/internal/storage"
	"github.com/zjrosen/modelver/internal/testutil"
	"github.com/zjrosen/modelver/internal/version"
)

func newRegistry(t *testing.T) (*Registry, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "registry.json")
	reg, err := New(storage.NewFileStore(path))
	require.NoError(t, err)
	return reg, path
}

func TestNew_EmptyRegistry(t *testing.T) {
	reg, path := newRegistry(t)

	require.Empty(t, reg.Models())
	// The file is rewritten as a valid empty document at construction
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.JSONEq(t, "{}", string(data))
}

func TestNew_CorruptFileStartsEmptyAndRewrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	require.NoError(t, os.WriteFile(path, []byte("%%% not json"), 0o600))

	reg, err := New(storage.NewFileStore(path))

	require.NoError(t, err)
	require.Empty(t, reg.Models())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.JSONEq(t, "{}", string(data))
}

func TestNew_ReloadsPersistedState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	first, err := New(storage.NewFileStore(path))
	require.NoError(t, err)
	require.NoError(t, first.Register(testutil.MustVersion(t, "1.0.0", "llama-7b",
		version.WithFeatures("chat"))))

	second, err := New(storage.NewFileStore(path))
	require.NoError(t, err)

	v, ok := second.Get("llama-7b", "1.0.0")
	require.True(t, ok)
	require.Equal(t, []string{"chat"}, v.Features())
}

func TestRegister_NewVersion(t *testing.T) {
	reg, _ := newRegistry(t)

	err := reg.Register(testutil.MustVersion(t, "1.0.0", "llama-7b"))

	require.NoError(t, err)
	_, ok := reg.Get("llama-7b", "1.0.0")
	require.True(t, ok)
}

func TestRegister_IdenticalIsIdempotent(t *testing.T) {
	reg, _ := newRegistry(t)
	v := testutil.MustVersion(t, "1.0.0", "llama-7b",
		version.WithContentHash("abc"),
		version.WithFeatures("chat"),
		version.WithMetadata(map[string]any{"params": "7B"}))
	require.NoError(t, reg.Register(v))

	same := testutil.MustVersion(t, "1.0.0", "llama-7b",
		version.WithContentHash("abc"),
		version.WithFeatures("chat"),
		version.WithMetadata(map[string]any{"params": "7B"}))
	err := reg.Register(same)

	require.NoError(t, err)
	require.Len(t, reg.All("llama-7b"), 1)
}

func TestRegister_ConflictingContentHash(t *testing.T) {
	reg, _ := newRegistry(t)
	require.NoError(t, reg.Register(testutil.MustVersion(t, "1.0.0", "llama-7b",
		version.WithContentHash("abc"))))

	err := reg.Register(testutil.MustVersion(t, "1.0.0", "llama-7b",
		version.WithContentHash("def")))

	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, "content", conflict.Field)
	// Original entry is left intact
	v, ok := reg.Get("llama-7b", "1.0.0")
	require.True(t, ok)
	require.Equal(t, "abc", v.ContentHash())
}

func TestRegister_ConflictingFeatures(t *testing.T) {
	reg, _ := newRegistry(t)
	require.NoError(t, reg.Register(testutil.MustVersion(t, "1.0.0", "llama-7b",
		version.WithContentHash("abc"), version.WithFeatures("chat"))))

	err := reg.Register(testutil.MustVersion(t, "1.0.0", "llama-7b",
		version.WithContentHash("abc"), version.WithFeatures("vision")))

	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, "features", conflict.Field)
}

func TestRegister_ConflictingMetadata(t *testing.T) {
	reg, _ := newRegistry(t)
	require.NoError(t, reg.Register(testutil.MustVersion(t, "1.0.0", "llama-7b",
		version.WithContentHash("abc"), version.WithMetadata(map[string]any{"q": "4bit"}))))

	err := reg.Register(testutil.MustVersion(t, "1.0.0", "llama-7b",
		version.WithContentHash("abc"), version.WithMetadata(map[string]any{"q": "8bit"})))

	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, "metadata", conflict.Field)
}

func TestRegister_HashConflictTakesPrecedence(t *testing.T) {
	reg, _ := newRegistry(t)
	require.NoError(t, reg.Register(testutil.MustVersion(t, "1.0.0", "llama-7b",
		version.WithContentHash("abc"), version.WithFeatures("chat"))))

	// Both hash and features differ; the hash conflict is reported
	err := reg.Register(testutil.MustVersion(t, "1.0.0", "llama-7b",
		version.WithContentHash("def"), version.WithFeatures("vision")))

	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, "content", conflict.Field)
}

func TestLatest_DescendingSemverOrder(t *testing.T) {
	reg, _ := newRegistry(t)
	for _, s := range []string{"1.2.0", "1.10.0", "1.0.0"} {
		require.NoError(t, reg.Register(testutil.MustVersion(t, s, "llama-7b")))
	}

	latest, ok := reg.Latest("llama-7b")

	require.True(t, ok)
	// Semantic ordering, not lexicographic: 1.10.0 > 1.2.0
	require.Equal(t, "1.10.0", latest.String())
}

func TestLatest_UnknownModel(t *testing.T) {
	reg, _ := newRegistry(t)

	_, ok := reg.Latest("nope")

	require.False(t, ok)
}

func TestAll_SortedDescending(t *testing.T) {
	reg, _ := newRegistry(t)
	for _, s := range []string{"1.0.0", "2.0.0", "1.5.0"} {
		require.NoError(t, reg.Register(testutil.MustVersion(t, s, "llama-7b")))
	}

	all := reg.All("llama-7b")

	require.Len(t, all, 3)
	require.Equal(t, "2.0.0", all[0].String())
	require.Equal(t, "1.5.0", all[1].String())
	require.Equal(t, "1.0.0", all[2].String())
}

func TestDelete_RemovesAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	reg, err := New(storage.NewFileStore(path))
	require.NoError(t, err)
	require.NoError(t, reg.Register(testutil.MustVersion(t, "1.0.0", "llama-7b")))

	removed, err := reg.Delete("llama-7b", "1.0.0")

	require.NoError(t, err)
	require.True(t, removed)
	require.Empty(t, reg.Models())

	// Deletion survives a reload
	reloaded, err := New(storage.NewFileStore(path))
	require.NoError(t, err)
	_, ok := reloaded.Get("llama-7b", "1.0.0")
	require.False(t, ok)
}

// failAfterStore delegates to a real file store until armed, then
// fails every save.
type failAfterStore struct {
	*storage.FileStore
	failSaves bool
}

func (s *failAfterStore) Save(doc storage.Document) error {
	if s.failSaves {
		return errors.New("disk full")
	}
	return s.FileStore.Save(doc)
}

func TestDelete_RestoresEntryWhenPersistFails(t *testing.T) {
	store := &failAfterStore{FileStore: storage.NewFileStore(filepath.Join(t.TempDir(), "registry.json"))}
	reg, err := New(store)
	require.NoError(t, err)
	require.NoError(t, reg.Register(testutil.MustVersion(t, "1.0.0", "llama-7b")))

	store.failSaves = true
	removed, err := reg.Delete("llama-7b", "1.0.0")

	require.Error(t, err)
	require.False(t, removed)
	// The entry survives in memory, matching what is still on disk
	v, ok := reg.Get("llama-7b", "1.0.0")
	require.True(t, ok)
	require.Equal(t, "1.0.0", v.String())
	latest, ok := reg.Latest("llama-7b")
	require.True(t, ok)
	require.Equal(t, "1.0.0", latest.String())
}

func TestDelete_UnknownVersion(t *testing.T) {
	reg, _ := newRegistry(t)
	require.NoError(t, reg.Register(testutil.MustVersion(t, "1.0.0", "llama-7b")))

	removed, err := reg.Delete("llama-7b", "9.9.9")

	require.NoError(t, err)
	require.False(t, removed)
}

func TestCheckCompatibility_SameModel(t *testing.T) {
	reg, _ := newRegistry(t)
	require.NoError(t, reg.Register(testutil.MustVersion(t, "1.0.0", "m",
		version.WithFeatures("generation"))))
	require.NoError(t, reg.Register(testutil.MustVersion(t, "2.0.0", "m",
		version.WithCompatibleWith("1.0.0"))))

	// Override on the 2.0.0 side only
	require.True(t, reg.CheckCompatibility("m", "2.0.0", "m", "1.0.0"))
	require.False(t, reg.CheckCompatibility("m", "1.0.0", "m", "2.0.0"))
}

func TestCheckCompatibility_MissingVersion(t *testing.T) {
	reg, _ := newRegistry(t)
	require.NoError(t, reg.Register(testutil.MustVersion(t, "1.0.0", "m")))

	require.False(t, reg.CheckCompatibility("m", "1.0.0", "m", "2.0.0"))
	require.False(t, reg.CheckCompatibility("ghost", "1.0.0", "m", "1.0.0"))
}

func TestCheckCompatibility_CrossModelDefaultsFalse(t *testing.T) {
	reg, _ := newRegistry(t)
	require.NoError(t, reg.Register(testutil.MustVersion(t, "1.0.0", "a")))
	require.NoError(t, reg.Register(testutil.MustVersion(t, "1.0.0", "b")))

	require.False(t, reg.CheckCompatibility("a", "1.0.0", "b", "1.0.0"))
}

func TestCheckCompatibility_CrossModelPolicyHook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	reg, err := New(storage.NewFileStore(path),
		WithCrossModelPolicy(func(src, dst *version.Version) bool {
			return src.Major() == dst.Major()
		}))
	require.NoError(t, err)
	require.NoError(t, reg.Register(testutil.MustVersion(t, "1.0.0", "a")))
	require.NoError(t, reg.Register(testutil.MustVersion(t, "1.2.0", "b")))

	require.True(t, reg.CheckCompatibility("a", "1.0.0", "b", "1.2.0"))
}

func TestCreateFromArtifact_ComputesHash(t *testing.T) {
	reg, _ := newRegistry(t)
	artifact := testutil.NewArtifact(t, "llama-7b", map[string]string{
		"weights.bin": "weights",
		"config.json": `{"layers": 32}`,
	})

	v, err := reg.CreateFromArtifact(artifact, "1.0.0", version.WithFeatures("generation"))

	require.NoError(t, err)
	require.Equal(t, hashing.HashDir(artifact.Dir), v.ContentHash())
	require.NotEmpty(t, v.ContentHash())

	stored, ok := reg.Get("llama-7b", "1.0.0")
	require.True(t, ok)
	require.Equal(t, v.ContentHash(), stored.ContentHash())
}

func TestCreateFromArtifact_MissingPathEmptyHash(t *testing.T) {
	reg, _ := newRegistry(t)
	artifact := &testutil.Artifact{ModelID: "ghost", Dir: filepath.Join(t.TempDir(), "missing")}

	v, err := reg.CreateFromArtifact(artifact, "1.0.0")

	// Unknown content is degraded, not an error
	require.NoError(t, err)
	require.Empty(t, v.ContentHash())
}

func TestCreateFromArtifact_InvalidVersion(t *testing.T) {
	reg, _ := newRegistry(t)
	artifact := testutil.NewArtifact(t, "llama-7b", map[string]string{"w": "x"})

	_, err := reg.CreateFromArtifact(artifact, "not-semver")

	require.ErrorIs(t, err, version.ErrInvalidVersion)
}
