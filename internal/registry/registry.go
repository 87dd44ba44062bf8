// Package registry implements the persistent store of all known versions
// per model.
//
// State is a nested mapping model id -> version string -> Version, persisted
// verbatim to a single JSON document after every mutating call. Registration
// enforces the conflict policy: for a given (model, version) key at most one
// distinct (content hash, feature set, metadata) triple may ever be
// committed; an identical re-registration is an idempotent no-op.
//
// The registry performs no internal locking. It assumes a single logical
// owner process; embedders calling from multiple goroutines must serialize
// mutating calls externally, because each save is a full read-modify-write
// of the document with no optimistic-concurrency check.
package registry

import (
	"fmt"
	"sort"

	"github.com/zjrosen/modelver/internal/hashing"
	"github.com/zjrosen/modelver/internal/log"
	"github.com/zjrosen/modelver/internal/model"
	"github.com/zjrosen/modelver/internal/storage"
	"github.com/zjrosen/modelver/internal/version"
)

// ConflictError reports a re-registration whose content differs from the
// committed entry for the same (model, version) key.
type ConflictError struct {
	ModelID string
	Version string
	Field   string // "content", "features", or "metadata"
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("version %s of model %s already exists with different %s",
		e.Version, e.ModelID, e.Field)
}

// Store abstracts the persisted registry document.
type Store interface {
	Load() (storage.Document, error)
	Save(storage.Document) error
}

// CrossModelPolicy decides compatibility between versions of different
// models. The default policy always returns false; cross-model semantics
// are an extension point owned by the embedding application.
type CrossModelPolicy func(src, dst *version.Version) bool

// Registry tracks all known versions for all models.
type Registry struct {
	store       Store
	versions    map[string]map[string]*version.Version
	crossPolicy CrossModelPolicy
}

// Option configures a Registry during construction.
type Option func(*Registry)

// WithCrossModelPolicy installs a policy for compatibility checks that
// span two different models.
func WithCrossModelPolicy(policy CrossModelPolicy) Option {
	return func(r *Registry) {
		r.crossPolicy = policy
	}
}

// New creates a registry over the given store and loads its state.
// A missing or corrupt document starts the registry empty; the document is
// rewritten immediately so the on-disk state is valid again. Individual
// records that no longer validate are logged and dropped.
func New(store Store, opts ...Option) (*Registry, error) {
	r := &Registry{
		store:    store,
		versions: make(map[string]map[string]*version.Version),
	}
	for _, opt := range opts {
		opt(r)
	}

	doc, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("loading registry: %w", err)
	}
	for modelID, records := range doc {
		for versionStr, rec := range records {
			v, err := version.FromRecord(rec)
			if err != nil {
				log.ErrorErr(log.CatRegistry, "Dropping invalid registry record", err,
					"model", modelID, "version", versionStr)
				continue
			}
			if r.versions[modelID] == nil {
				r.versions[modelID] = make(map[string]*version.Version)
			}
			r.versions[modelID][versionStr] = v
		}
	}

	// Rewrite so a missing or corrupt file becomes a valid document again.
	if err := r.persist(); err != nil {
		return nil, fmt.Errorf("initializing registry file: %w", err)
	}
	return r, nil
}

// Register commits a version.
// Re-registering an identical version is an idempotent no-op. A key that
// already exists with different content hash, feature set, or metadata is
// rejected with a ConflictError and the committed entry is left intact.
func (r *Registry) Register(v *version.Version) error {
	modelID := v.ModelID()
	versionStr := v.String()

	if existing, ok := r.versions[modelID][versionStr]; ok {
		switch {
		case existing.ContentHash() != v.ContentHash():
			return &ConflictError{ModelID: modelID, Version: versionStr, Field: "content"}
		case !existing.FeaturesEqual(v):
			return &ConflictError{ModelID: modelID, Version: versionStr, Field: "features"}
		case !existing.MetadataEqual(v):
			return &ConflictError{ModelID: modelID, Version: versionStr, Field: "metadata"}
		default:
			log.Info(log.CatRegistry, "Version already registered, no-op",
				"model", modelID, "version", versionStr)
			return nil
		}
	}

	if r.versions[modelID] == nil {
		r.versions[modelID] = make(map[string]*version.Version)
	}
	r.versions[modelID][versionStr] = v

	if err := r.persist(); err != nil {
		// Roll back the in-memory insert so state matches disk.
		delete(r.versions[modelID], versionStr)
		if len(r.versions[modelID]) == 0 {
			delete(r.versions, modelID)
		}
		return err
	}
	log.Info(log.CatRegistry, "Registered version",
		"model", modelID, "version", versionStr, "hash", v.ContentHash())
	return nil
}

// Get returns the version registered under (modelID, versionStr).
func (r *Registry) Get(modelID, versionStr string) (*version.Version, bool) {
	v, ok := r.versions[modelID][versionStr]
	return v, ok
}

// Latest returns the highest semantic version registered for the model.
func (r *Registry) Latest(modelID string) (*version.Version, bool) {
	all := r.All(modelID)
	if len(all) == 0 {
		return nil, false
	}
	return all[0], true
}

// All returns every version registered for the model in descending
// semantic-version order, newest first.
func (r *Registry) All(modelID string) []*version.Version {
	byVersion := r.versions[modelID]
	out := make([]*version.Version, 0, len(byVersion))
	for _, v := range byVersion {
		out = append(out, v)
	}
	version.Sort(out)
	return out
}

// Models returns the sorted ids of all models with at least one version.
func (r *Registry) Models() []string {
	out := make([]string, 0, len(r.versions))
	for modelID := range r.versions {
		out = append(out, modelID)
	}
	sort.Strings(out)
	return out
}

// Delete removes the version registered under (modelID, versionStr) and
// persists. Reports whether anything was removed.
func (r *Registry) Delete(modelID, versionStr string) (bool, error) {
	byVersion, ok := r.versions[modelID]
	if !ok {
		return false, nil
	}
	if _, ok := byVersion[versionStr]; !ok {
		return false, nil
	}

	held := byVersion[versionStr]
	delete(byVersion, versionStr)
	removedModel := false
	if len(byVersion) == 0 {
		delete(r.versions, modelID)
		removedModel = true
	}
	if err := r.persist(); err != nil {
		// Restore the in-memory entry so state matches disk.
		if removedModel {
			r.versions[modelID] = byVersion
		}
		byVersion[versionStr] = held
		return false, err
	}
	log.Info(log.CatRegistry, "Deleted version", "model", modelID, "version", versionStr)
	return true, nil
}

// CheckCompatibility reports whether the source version may stand in for
// the destination version. Either side missing from the registry is
// incompatible. Versions of the same model delegate to the Version
// compatibility rules; versions of different models go through the
// cross-model policy, which defaults to always-false.
func (r *Registry) CheckCompatibility(srcModel, srcVersion, dstModel, dstVersion string) bool {
	src, ok := r.Get(srcModel, srcVersion)
	if !ok {
		return false
	}
	dst, ok := r.Get(dstModel, dstVersion)
	if !ok {
		return false
	}
	if srcModel == dstModel {
		return src.IsCompatibleWith(dst)
	}
	if r.crossPolicy != nil {
		return r.crossPolicy(src, dst)
	}
	return false
}

// CreateFromArtifact fingerprints the artifact's backing path, constructs
// a Version carrying the hash, and registers it. A missing artifact yields
// an empty hash ("unknown"), never an error.
func (r *Registry) CreateFromArtifact(info model.Info, versionStr string, opts ...version.Option) (*version.Version, error) {
	hash := hashing.HashPath(info.Path())
	if hash == "" {
		log.Warn(log.CatRegistry, "Artifact path yielded no content hash",
			"model", info.ID(), "path", info.Path())
	}

	opts = append(opts, version.WithContentHash(hash))
	v, err := version.New(versionStr, info.ID(), opts...)
	if err != nil {
		return nil, err
	}
	if err := r.Register(v); err != nil {
		return nil, err
	}
	return v, nil
}

// persist writes the full in-memory state through the store.
func (r *Registry) persist() error {
	doc := make(storage.Document, len(r.versions))
	for modelID, byVersion := range r.versions {
		records := make(map[string]version.Record, len(byVersion))
		for versionStr, v := range byVersion {
			records[versionStr] = v.ToRecord()
		}
		doc[modelID] = records
	}
	if err := r.store.Save(doc); err != nil {
		return fmt.Errorf("persisting registry: %w", err)
	}
	return nil
}
