// Package manifest loads YAML files declaring model versions to
// register in bulk, so a deployment can describe its artifacts in one
// reviewable document instead of imperative registration calls.
package manifest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/zjrosen/modelver/internal/manager"
	"github.com/zjrosen/modelver/internal/version"
)

// File is the root structure for a models manifest.
type File struct {
	Models []ModelDef `yaml:"models"`
}

// ModelDef declares one model version to register.
type ModelDef struct {
	ID             string            `yaml:"id"`              // artifact identifier, e.g. "llama-7b"
	Path           string            `yaml:"path"`            // backing file or directory, relative paths resolve against the manifest
	Version        string            `yaml:"version"`         // semantic version string
	Features       []string          `yaml:"features"`        // optional capability tags
	Dependencies   map[string]string `yaml:"dependencies"`    // optional name -> version constraints
	CompatibleWith []string          `yaml:"compatible_with"` // explicit compatibility overrides
	Metadata       map[string]any    `yaml:"metadata"`        // open key-value annotations
}

// descriptor adapts a ModelDef to the artifact descriptor contract.
type descriptor struct {
	def     ModelDef
	path    string
	applied string
}

func (d *descriptor) ID() string { return d.def.ID }

func (d *descriptor) Path() string { return d.path }

func (d *descriptor) SetVersion(v string) { d.applied = v }

// Load reads and validates a manifest file.
func Load(path string) (*File, error) {
	content, err := os.ReadFile(path) // #nosec G304 -- caller-chosen manifest path
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}

	var file File
	if err := yaml.Unmarshal(content, &file); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}

	if len(file.Models) == 0 {
		return nil, fmt.Errorf("manifest %s declares no models", path)
	}
	for i, def := range file.Models {
		if def.ID == "" {
			return nil, fmt.Errorf("manifest %s: entry %d missing id", path, i)
		}
		if def.Version == "" {
			return nil, fmt.Errorf("manifest %s: model %s missing version", path, def.ID)
		}
		if def.Path == "" {
			return nil, fmt.Errorf("manifest %s: model %s missing path", path, def.ID)
		}
	}

	return &file, nil
}

// Apply registers every declared model version through the manager.
// Relative artifact paths resolve against the manifest's directory. The
// first failure stops the run; entries already registered stay
// registered.
func Apply(ctx context.Context, mgr *manager.Manager, manifestPath string, file *File) ([]*version.Version, error) {
	baseDir := filepath.Dir(manifestPath)

	registered := make([]*version.Version, 0, len(file.Models))
	for _, def := range file.Models {
		artifactPath := def.Path
		if !filepath.IsAbs(artifactPath) {
			artifactPath = filepath.Join(baseDir, artifactPath)
		}

		v, err := mgr.RegisterVersion(ctx, &descriptor{def: def, path: artifactPath}, def.Version, buildOptions(def)...)
		if err != nil {
			return registered, fmt.Errorf("register model %s version %s: %w", def.ID, def.Version, err)
		}
		registered = append(registered, v)
	}

	return registered, nil
}

// buildOptions converts a ModelDef's optional fields into version options.
func buildOptions(def ModelDef) []version.Option {
	var opts []version.Option

	if len(def.Features) > 0 {
		opts = append(opts, version.WithFeatures(def.Features...))
	}
	if len(def.Dependencies) > 0 {
		opts = append(opts, version.WithDependencies(def.Dependencies))
	}
	if len(def.CompatibleWith) > 0 {
		opts = append(opts, version.WithCompatibleWith(def.CompatibleWith...))
	}
	if len(def.Metadata) > 0 {
		opts = append(opts, version.WithMetadata(def.Metadata))
	}

	return opts
}
