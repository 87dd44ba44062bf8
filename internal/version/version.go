// Package version implements the domain layer for model version tracking.
//
// A Version is an immutable value describing one release of one model:
// its semantic version, integrity fingerprint, declared features and
// compatibility. Versions are compared and ordered by semantic version
// only; features, hash, and metadata are not part of identity.
package version

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Masterminds/semver/v3"
)

// Version errors
var (
	ErrInvalidVersion = errors.New("invalid semantic version")
	ErrEmptyModelID   = errors.New("model id cannot be empty")
)

// Version represents one release of one model.
// Construct with New; the zero value is not valid.
type Version struct {
	raw            string // version string exactly as supplied
	parsed         *semver.Version
	modelID        string
	createdAt      time.Time
	contentHash    string
	features       []string // sorted, deduplicated
	dependencies   map[string]string
	compatibleWith []string // explicit overrides, registration order preserved
	metadata       map[string]any
}

// Option configures a Version during construction.
type Option func(*Version)

// WithCreatedAt sets the creation timestamp.
// Without this option the timestamp defaults to the construction time.
func WithCreatedAt(t time.Time) Option {
	return func(v *Version) {
		v.createdAt = t
	}
}

// WithContentHash sets the integrity fingerprint.
func WithContentHash(hash string) Option {
	return func(v *Version) {
		v.contentHash = hash
	}
}

// WithFeatures adds feature names. Duplicates are collapsed.
func WithFeatures(features ...string) Option {
	return func(v *Version) {
		v.features = append(v.features, features...)
	}
}

// WithDependencies sets the dependency name to version-constraint mapping.
func WithDependencies(deps map[string]string) Option {
	return func(v *Version) {
		for k, val := range deps {
			v.dependencies[k] = val
		}
	}
}

// WithCompatibleWith declares explicit compatibility overrides.
// An override wins over the major-version rule, in one direction only.
func WithCompatibleWith(versions ...string) Option {
	return func(v *Version) {
		v.compatibleWith = append(v.compatibleWith, versions...)
	}
}

// WithMetadata sets open-ended metadata. Values must be JSON-serializable.
func WithMetadata(metadata map[string]any) Option {
	return func(v *Version) {
		for k, val := range metadata {
			v.metadata[k] = val
		}
	}
}

// New creates a Version for the given model.
// The version string must parse as a semantic version
// (major.minor.patch with optional pre-release/build).
func New(versionStr, modelID string, opts ...Option) (*Version, error) {
	if modelID == "" {
		return nil, ErrEmptyModelID
	}
	parsed, err := semver.StrictNewVersion(versionStr)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidVersion, versionStr, err)
	}

	v := &Version{
		raw:            versionStr,
		parsed:         parsed,
		modelID:        modelID,
		features:       []string{},
		dependencies:   map[string]string{},
		compatibleWith: []string{},
		metadata:       map[string]any{},
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.createdAt.IsZero() {
		v.createdAt = time.Now().UTC()
	}
	v.features = normalizeFeatures(v.features)
	return v, nil
}

// normalizeFeatures sorts and deduplicates the feature set.
func normalizeFeatures(features []string) []string {
	seen := make(map[string]bool, len(features))
	out := make([]string, 0, len(features))
	for _, f := range features {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return out
}

// String returns the version string exactly as supplied at construction.
func (v *Version) String() string {
	return v.raw
}

// ModelID returns the identifier of the model this version belongs to.
func (v *Version) ModelID() string {
	return v.modelID
}

// Major returns the major version number.
func (v *Version) Major() uint64 {
	return v.parsed.Major()
}

// Minor returns the minor version number.
func (v *Version) Minor() uint64 {
	return v.parsed.Minor()
}

// Patch returns the patch version number.
func (v *Version) Patch() uint64 {
	return v.parsed.Patch()
}

// CreatedAt returns the creation timestamp.
func (v *Version) CreatedAt() time.Time {
	return v.createdAt
}

// ContentHash returns the integrity fingerprint, or "" if never computed.
func (v *Version) ContentHash() string {
	return v.contentHash
}

// Features returns the sorted feature set.
func (v *Version) Features() []string {
	out := make([]string, len(v.features))
	copy(out, v.features)
	return out
}

// HasFeature reports whether the version declares the given feature.
func (v *Version) HasFeature(feature string) bool {
	for _, f := range v.features {
		if f == feature {
			return true
		}
	}
	return false
}

// Dependencies returns the dependency mapping.
func (v *Version) Dependencies() map[string]string {
	out := make(map[string]string, len(v.dependencies))
	for k, val := range v.dependencies {
		out[k] = val
	}
	return out
}

// CompatibleWith returns the explicit compatibility overrides.
func (v *Version) CompatibleWith() []string {
	out := make([]string, len(v.compatibleWith))
	copy(out, v.compatibleWith)
	return out
}

// Metadata returns the open-ended metadata mapping.
func (v *Version) Metadata() map[string]any {
	out := make(map[string]any, len(v.metadata))
	for k, val := range v.metadata {
		out[k] = val
	}
	return out
}

// Equal reports identity equality: same version string and model id.
// Hash, features, and metadata are not part of identity.
func (v *Version) Equal(other *Version) bool {
	if other == nil {
		return false
	}
	return v.raw == other.raw && v.modelID == other.modelID
}

// Compare orders versions by semantic version value.
// Returns -1 if v < other, 0 if equal, 1 if v > other.
func (v *Version) Compare(other *Version) int {
	return v.parsed.Compare(other.parsed)
}

// IsCompatibleWith reports whether v declares itself compatible with other.
//
// An explicit entry in the compatible_with list wins unconditionally.
// Otherwise versions are compatible iff they share a major version number:
// minor and patch differences are assumed backward compatible, major
// differences breaking. The relation is deliberately not symmetric - only
// the side carrying an override is affected by it.
func (v *Version) IsCompatibleWith(other *Version) bool {
	if other == nil {
		return false
	}
	return v.IsCompatibleWithString(other.raw)
}

// IsCompatibleWithString is IsCompatibleWith against a raw version string.
// A string that fails to parse as a semantic version is incompatible
// unless it appears literally in the override list.
func (v *Version) IsCompatibleWithString(other string) bool {
	for _, cw := range v.compatibleWith {
		if cw == other {
			return true
		}
	}
	parsed, err := semver.StrictNewVersion(other)
	if err != nil {
		return false
	}
	return v.parsed.Major() == parsed.Major()
}

// FeaturesEqual reports whether both versions declare the same feature set.
func (v *Version) FeaturesEqual(other *Version) bool {
	if len(v.features) != len(other.features) {
		return false
	}
	// Both sides are sorted and deduplicated at construction.
	for i, f := range v.features {
		if other.features[i] != f {
			return false
		}
	}
	return true
}

// MetadataEqual reports whether both versions carry equal metadata.
// Equality is judged on the canonical JSON encoding so that values that
// round-tripped through the registry file compare equal to fresh ones.
func (v *Version) MetadataEqual(other *Version) bool {
	a, errA := json.Marshal(v.metadata)
	b, errB := json.Marshal(other.metadata)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(a, b)
}

// Sort sorts versions in place in descending semantic-version order,
// newest first.
func Sort(versions []*Version) {
	sort.SliceStable(versions, func(i, j int) bool {
		return versions[i].Compare(versions[j]) > 0
	})
}
