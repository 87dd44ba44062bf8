package version

import (
	"time"
)

// Record is the storage representation of a Version.
// Field names match the persisted registry document; the round trip
// Version -> Record -> Version is lossless for every field.
type Record struct {
	Version        string            `json:"version"`
	ModelID        string            `json:"model_id"`
	Timestamp      time.Time         `json:"timestamp"`
	HashValue      string            `json:"hash_value"`
	Features       []string          `json:"features"`
	Dependencies   map[string]string `json:"dependencies"`
	CompatibleWith []string          `json:"is_compatible_with"`
	Metadata       map[string]any    `json:"metadata"`
}

// ToRecord converts the Version to its storage representation.
// Empty collections are emitted as empty (never nil) so the JSON
// document always carries [] and {} rather than null.
func (v *Version) ToRecord() Record {
	return Record{
		Version:        v.raw,
		ModelID:        v.modelID,
		Timestamp:      v.createdAt,
		HashValue:      v.contentHash,
		Features:       v.Features(),
		Dependencies:   v.Dependencies(),
		CompatibleWith: v.CompatibleWith(),
		Metadata:       v.Metadata(),
	}
}

// FromRecord reconstructs a Version from its storage representation.
// The version string is re-validated; a record with an invalid version
// fails exactly like direct construction would.
func FromRecord(r Record) (*Version, error) {
	opts := []Option{
		WithContentHash(r.HashValue),
		WithFeatures(r.Features...),
		WithDependencies(r.Dependencies),
		WithCompatibleWith(r.CompatibleWith...),
		WithMetadata(r.Metadata),
	}
	if !r.Timestamp.IsZero() {
		opts = append(opts, WithCreatedAt(r.Timestamp))
	}
	return New(r.Version, r.ModelID, opts...)
}
