package version

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestNew_ValidVersion(t *testing.T) {
	v, err := New("1.2.3", "llama-7b")

	require.NoError(t, err)
	require.Equal(t, "1.2.3", v.String())
	require.Equal(t, "llama-7b", v.ModelID())
	require.Equal(t, uint64(1), v.Major())
	require.Equal(t, uint64(2), v.Minor())
	require.Equal(t, uint64(3), v.Patch())
}

func TestNew_PreReleaseAndBuild(t *testing.T) {
	v, err := New("2.0.0-rc.1+build.5", "llama-7b")

	require.NoError(t, err)
	require.Equal(t, "2.0.0-rc.1+build.5", v.String())
	require.Equal(t, uint64(2), v.Major())
}

func TestNew_InvalidVersion(t *testing.T) {
	cases := []string{"", "abc", "1", "1.2", "1.2.x", "v1.2.3.4", "1..3"}
	for _, s := range cases {
		t.Run(s, func(t *testing.T) {
			_, err := New(s, "llama-7b")
			require.ErrorIs(t, err, ErrInvalidVersion)
		})
	}
}

func TestNew_EmptyModelID(t *testing.T) {
	_, err := New("1.0.0", "")

	require.ErrorIs(t, err, ErrEmptyModelID)
}

func TestNew_DefaultsCreatedAt(t *testing.T) {
	before := time.Now().Add(-time.Second)

	v, err := New("1.0.0", "llama-7b")

	require.NoError(t, err)
	require.False(t, v.CreatedAt().Before(before))
}

func TestNew_FeaturesSortedAndDeduplicated(t *testing.T) {
	v, err := New("1.0.0", "llama-7b", WithFeatures("generation", "chat", "generation"))

	require.NoError(t, err)
	require.Equal(t, []string{"chat", "generation"}, v.Features())
	require.True(t, v.HasFeature("chat"))
	require.False(t, v.HasFeature("vision"))
}

func TestVersion_Equal(t *testing.T) {
	a, _ := New("1.0.0", "llama-7b", WithContentHash("abc"))
	b, _ := New("1.0.0", "llama-7b", WithContentHash("def"), WithFeatures("chat"))
	c, _ := New("1.0.1", "llama-7b")
	d, _ := New("1.0.0", "mistral-7b")

	// Identity is version string + model id only
	require.True(t, a.Equal(b))
	require.False(t, a.Equal(c))
	require.False(t, a.Equal(d))
	require.False(t, a.Equal(nil))
}

func TestVersion_Compare(t *testing.T) {
	v100, _ := New("1.0.0", "m")
	v110, _ := New("1.10.0", "m")
	v200, _ := New("2.0.0", "m")
	v200rc, _ := New("2.0.0-rc.1", "m")

	require.Equal(t, -1, v100.Compare(v110))
	require.Equal(t, 1, v200.Compare(v110))
	require.Equal(t, 0, v100.Compare(v100))
	// Pre-release sorts below its release
	require.Equal(t, -1, v200rc.Compare(v200))
}

func TestSort_DescendingOrder(t *testing.T) {
	v1, _ := New("1.0.0", "m")
	v2, _ := New("1.2.0", "m")
	v3, _ := New("1.10.0", "m")

	versions := []*Version{v1, v3, v2}
	Sort(versions)

	require.Equal(t, "1.10.0", versions[0].String())
	require.Equal(t, "1.2.0", versions[1].String())
	require.Equal(t, "1.0.0", versions[2].String())
}

func TestIsCompatibleWith_SameMajor(t *testing.T) {
	a, _ := New("1.0.0", "m")
	b, _ := New("1.9.3", "m")

	require.True(t, a.IsCompatibleWith(b))
	require.True(t, b.IsCompatibleWith(a))
}

func TestIsCompatibleWith_DifferentMajor(t *testing.T) {
	a, _ := New("1.0.0", "m")
	b, _ := New("2.0.0", "m")

	require.False(t, a.IsCompatibleWith(b))
	require.False(t, b.IsCompatibleWith(a))
}

func TestIsCompatibleWith_ExplicitOverrideIsOneDirectional(t *testing.T) {
	older, _ := New("1.0.0", "m")
	newer, _ := New("2.0.0", "m", WithCompatibleWith("1.0.0"))

	// Only the side declaring the override is affected by it
	require.True(t, newer.IsCompatibleWith(older))
	require.False(t, older.IsCompatibleWith(newer))
}

func TestIsCompatibleWithString_UnparseableTarget(t *testing.T) {
	v, _ := New("1.0.0", "m", WithCompatibleWith("legacy-build"))

	// Literal override wins even for non-semver strings
	require.True(t, v.IsCompatibleWithString("legacy-build"))
	require.False(t, v.IsCompatibleWithString("also-not-semver"))
}

func TestFeaturesEqual(t *testing.T) {
	a, _ := New("1.0.0", "m", WithFeatures("chat", "generation"))
	b, _ := New("1.0.0", "m", WithFeatures("generation", "chat"))
	c, _ := New("1.0.0", "m", WithFeatures("chat"))

	// Order-insensitive set comparison
	require.True(t, a.FeaturesEqual(b))
	require.False(t, a.FeaturesEqual(c))
}

func TestMetadataEqual(t *testing.T) {
	a, _ := New("1.0.0", "m", WithMetadata(map[string]any{"quantization": "q4", "params": 7}))
	b, _ := New("1.0.0", "m", WithMetadata(map[string]any{"params": 7, "quantization": "q4"}))
	c, _ := New("1.0.0", "m", WithMetadata(map[string]any{"quantization": "q8"}))

	require.True(t, a.MetadataEqual(b))
	require.False(t, a.MetadataEqual(c))
}

func TestAccessors_ReturnCopies(t *testing.T) {
	v, _ := New("1.0.0", "m",
		WithFeatures("chat"),
		WithDependencies(map[string]string{"tokenizer": ">=0.4"}),
		WithMetadata(map[string]any{"k": "v"}))

	v.Features()[0] = "mutated"
	v.Dependencies()["tokenizer"] = "mutated"
	v.Metadata()["k"] = "mutated"

	require.Equal(t, []string{"chat"}, v.Features())
	require.Equal(t, ">=0.4", v.Dependencies()["tokenizer"])
	require.Equal(t, "v", v.Metadata()["k"])
}

// ===========================================================================
// Property-Based Tests (using pgregory.net/rapid)
// ===========================================================================

func TestProperty_ValidTripleAlwaysConstructs(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		major := rapid.Uint64Range(0, 1000).Draw(rt, "major")
		minor := rapid.Uint64Range(0, 1000).Draw(rt, "minor")
		patch := rapid.Uint64Range(0, 1000).Draw(rt, "patch")

		s := fmt.Sprintf("%d.%d.%d", major, minor, patch)
		v, err := New(s, "m")

		require.NoError(rt, err)
		require.Equal(rt, major, v.Major())
		require.Equal(rt, minor, v.Minor())
		require.Equal(rt, patch, v.Patch())
	})
}

func TestProperty_CompatibilitySymmetricWithoutOverrides(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		majorA := rapid.Uint64Range(0, 5).Draw(rt, "majorA")
		majorB := rapid.Uint64Range(0, 5).Draw(rt, "majorB")
		minorA := rapid.Uint64Range(0, 20).Draw(rt, "minorA")
		minorB := rapid.Uint64Range(0, 20).Draw(rt, "minorB")

		a, err := New(fmt.Sprintf("%d.%d.0", majorA, minorA), "m")
		require.NoError(rt, err)
		b, err := New(fmt.Sprintf("%d.%d.0", majorB, minorB), "m")
		require.NoError(rt, err)

		// With no overrides the relation reduces to major equality,
		// which is symmetric by construction.
		require.Equal(rt, majorA == majorB, a.IsCompatibleWith(b))
		require.Equal(rt, a.IsCompatibleWith(b), b.IsCompatibleWith(a))
	})
}
