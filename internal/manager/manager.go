// Package manager composes the version registry and the migration tool
// into the operations an owning application calls: register, resolve,
// load with an integrity check, migrate. One Manager serves one backing
// storage root.
package manager

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zjrosen/modelver/internal/cachemanager"
	"github.com/zjrosen/modelver/internal/hashing"
	"github.com/zjrosen/modelver/internal/log"
	"github.com/zjrosen/modelver/internal/migration"
	"github.com/zjrosen/modelver/internal/model"
	"github.com/zjrosen/modelver/internal/registry"
	"github.com/zjrosen/modelver/internal/storage"
	"github.com/zjrosen/modelver/internal/version"
)

// ErrVersionNotFound is returned when a lookup names a version the
// registry does not hold.
var ErrVersionNotFound = errors.New("model version not found")

// DefaultRegistryFilename is the registry document name under the
// storage root.
const DefaultRegistryFilename = "model_registry.json"

// Recorder receives audit events for mutations and migration runs.
// Recording failures are logged and absorbed; registry correctness
// never depends on the recorder.
type Recorder interface {
	RecordRegister(ctx context.Context, modelID, versionStr, contentHash string) error
	RecordDelete(ctx context.Context, modelID, versionStr string) error
	RecordMigration(ctx context.Context, modelID, from, to string, err error) error
}

type loadRequest struct {
	modelID string
	opts    model.Options
}

// Manager is the facade over one registry file plus an in-process
// migration graph. Not safe for concurrent use; callers serialize.
type Manager struct {
	registry *registry.Registry
	tool     *migration.Tool
	loader   model.Loader
	tracer   trace.Tracer
	recorder Recorder

	// paths remembers the backing path last seen per artifact so the
	// drift check can re-hash without the caller passing it again.
	// Persisted as a sidecar document so a fresh Manager over the same
	// root still detects drift for versions registered earlier.
	paths         map[string]string
	pathIndexPath string

	handles  *cachemanager.ReadThroughCache[string, any, loadRequest]
	cacheTTL time.Duration

	crossPolicy      registry.CrossModelPolicy
	registryFilename string
}

// Option customizes a Manager.
type Option func(*Manager)

// WithLoader sets the external collaborator that turns a resolved
// version into a usable handle.
func WithLoader(loader model.Loader) Option {
	return func(m *Manager) { m.loader = loader }
}

// WithTracer instruments register/load/migrate with spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(m *Manager) { m.tracer = tracer }
}

// WithRecorder attaches an audit recorder.
func WithRecorder(rec Recorder) Option {
	return func(m *Manager) { m.recorder = rec }
}

// WithHandleCache caches loaded handles keyed by artifact and version.
// Off by default so every load re-checks drift.
func WithHandleCache(ttl time.Duration) Option {
	return func(m *Manager) { m.cacheTTL = ttl }
}

// WithCrossModelPolicy forwards a cross-artifact compatibility policy
// to the registry.
func WithCrossModelPolicy(policy registry.CrossModelPolicy) Option {
	return func(m *Manager) { m.crossPolicy = policy }
}

// WithRegistryFilename overrides the registry document name under the
// storage root.
func WithRegistryFilename(name string) Option {
	return func(m *Manager) { m.registryFilename = name }
}

// New builds a Manager over the given storage root. The registry
// document lives at root/model_registry.json.
func New(root string, opts ...Option) (*Manager, error) {
	m := &Manager{
		tool:             migration.NewTool(),
		tracer:           noop.NewTracerProvider().Tracer("noop"),
		paths:            make(map[string]string),
		registryFilename: DefaultRegistryFilename,
	}
	for _, opt := range opts {
		opt(m)
	}

	var regOpts []registry.Option
	if m.crossPolicy != nil {
		regOpts = append(regOpts, registry.WithCrossModelPolicy(m.crossPolicy))
	}
	reg, err := registry.New(storage.NewFileStore(filepath.Join(root, m.registryFilename)), regOpts...)
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}
	m.registry = reg

	m.pathIndexPath = filepath.Join(root, PathIndexFilename)
	m.loadPaths()

	if m.cacheTTL > 0 {
		m.handles = cachemanager.NewReadThroughCache[string, any, loadRequest](
			cachemanager.NewInMemoryCacheManager[string, any]("model-handles",
				cachemanager.DefaultExpiration, cachemanager.DefaultCleanupInterval),
			m.loadHandle, false)
	}

	return m, nil
}

// Registry exposes the underlying registry for read/maintenance
// operations the facade does not wrap.
func (m *Manager) Registry() *registry.Registry {
	return m.registry
}

// RegisterMigration stores a migration function between two versions of
// a model. Edges live only for the lifetime of this Manager.
func (m *Manager) RegisterMigration(modelID, from, to string, fn migration.Func) {
	m.tool.RegisterMigration(modelID, from, to, fn)
}

// CanMigrate reports whether a chain of registered migrations connects
// the two versions.
func (m *Manager) CanMigrate(modelID, from, to string) bool {
	return m.tool.CanMigrate(modelID, from, to)
}

// RegisterVersion hashes the artifact's backing path, registers the
// version, and stamps the version string back onto the descriptor.
func (m *Manager) RegisterVersion(ctx context.Context, info model.Info, versionStr string, opts ...version.Option) (*version.Version, error) {
	ctx, span := m.tracer.Start(ctx, "manager.register", trace.WithAttributes(
		attribute.String("model.id", info.ID()),
		attribute.String("model.version", versionStr),
	))
	defer span.End()

	v, err := m.registry.CreateFromArtifact(info, versionStr, opts...)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	m.paths[info.ID()] = info.Path()
	m.savePaths()
	info.SetVersion(versionStr)
	m.record(func() error { return m.recorder.RecordRegister(ctx, info.ID(), versionStr, v.ContentHash()) })
	return v, nil
}

// GetVersion resolves an explicit version, or the latest when
// versionStr is empty.
func (m *Manager) GetVersion(modelID, versionStr string) (*version.Version, bool) {
	if versionStr == "" {
		return m.registry.Latest(modelID)
	}
	return m.registry.Get(modelID, versionStr)
}

// DeleteVersion removes a version from the registry.
func (m *Manager) DeleteVersion(ctx context.Context, modelID, versionStr string) (bool, error) {
	removed, err := m.registry.Delete(modelID, versionStr)
	if err == nil && removed {
		m.record(func() error { return m.recorder.RecordDelete(ctx, modelID, versionStr) })
		if m.handles != nil {
			if cerr := m.handles.Invalidate(ctx, handleKey(modelID, versionStr)); cerr != nil {
				log.ErrorErr(log.CatManager, "invalidate handle cache", cerr, "model", modelID)
			}
		}
	}
	return removed, err
}

// LoadVersion resolves a version (explicit, or latest when versionStr
// is empty), runs the drift check, and delegates the actual load to the
// configured loader. Drift warns but never blocks.
func (m *Manager) LoadVersion(ctx context.Context, modelID, versionStr string, opts model.Options) (any, error) {
	ctx, span := m.tracer.Start(ctx, "manager.load", trace.WithAttributes(
		attribute.String("model.id", modelID),
		attribute.String("model.version", versionStr),
	))
	defer span.End()

	if m.loader == nil {
		return nil, fmt.Errorf("load %s: no loader configured", modelID)
	}

	v, ok := m.GetVersion(modelID, versionStr)
	if !ok {
		err := fmt.Errorf("load %s version %q: %w", modelID, versionStr, ErrVersionNotFound)
		span.RecordError(err)
		return nil, err
	}

	m.checkDrift(v)

	if m.handles != nil {
		return m.handles.Get(ctx, handleKey(modelID, v.String()), loadRequest{modelID: modelID, opts: opts}, m.cacheTTL)
	}
	return m.loadHandle(ctx, loadRequest{modelID: modelID, opts: opts})
}

// Migrate resolves the model's current latest version and migrates the
// descriptor to the target. Already at target is a no-op.
func (m *Manager) Migrate(ctx context.Context, info model.Info, target string, opts model.Options) (model.Info, error) {
	ctx, span := m.tracer.Start(ctx, "manager.migrate", trace.WithAttributes(
		attribute.String("model.id", info.ID()),
		attribute.String("model.target", target),
	))
	defer span.End()

	latest, ok := m.registry.Latest(info.ID())
	if !ok {
		err := fmt.Errorf("migrate %s: no registered versions: %w", info.ID(), ErrVersionNotFound)
		span.RecordError(err)
		return nil, err
	}
	if latest.String() == target {
		log.Debug(log.CatManager, "already at target version", "model", info.ID(), "version", target)
		return info, nil
	}

	migrated, err := m.tool.Migrate(ctx, info, latest.String(), target, opts)
	m.record(func() error { return m.recorder.RecordMigration(ctx, info.ID(), latest.String(), target, err) })
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	migrated.SetVersion(target)
	return migrated, nil
}

// CheckCompatibility passes through to the registry.
func (m *Manager) CheckCompatibility(srcModel, srcVersion, dstModel, dstVersion string) bool {
	return m.registry.CheckCompatibility(srcModel, srcVersion, dstModel, dstVersion)
}

func (m *Manager) loadHandle(ctx context.Context, req loadRequest) (any, error) {
	return m.loader.Load(ctx, req.modelID, req.opts)
}

// checkDrift warns when the artifact's content no longer matches the
// recorded hash. Never blocks the load.
func (m *Manager) checkDrift(v *version.Version) {
	current, drifted := m.artifactDrift(v)
	if drifted {
		log.Warn(log.CatManager, "artifact may have been modified since this version was recorded",
			"model", v.ModelID(), "version", v.String(), "recorded", v.ContentHash(), "current", current)
	}
}

// artifactDrift re-hashes the artifact's last known backing path and
// reports whether it differs from the recorded content hash. Versions
// without a hash, or artifacts with no known path, never drift.
func (m *Manager) artifactDrift(v *version.Version) (string, bool) {
	if v.ContentHash() == "" {
		return "", false
	}
	path, ok := m.paths[v.ModelID()]
	if !ok {
		return "", false
	}
	current := hashing.HashPath(path)
	return current, current != v.ContentHash()
}

func (m *Manager) record(fn func() error) {
	if m.recorder == nil {
		return
	}
	if err := fn(); err != nil {
		log.ErrorErr(log.CatHistory, "record audit event", err)
	}
}

func handleKey(modelID, versionStr string) string {
	return modelID + "@" + versionStr
}
