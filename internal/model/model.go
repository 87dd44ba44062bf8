// Package model defines the collaborator interfaces this subsystem consumes
// from the owning application: the artifact descriptor and the model loader.
package model

import "context"

// Info describes one model artifact owned by the embedding application.
// The registry reads the identifier and backing path; the only mutation
// this subsystem ever performs is SetVersion after a successful
// registration or migration.
type Info interface {
	// ID returns the stable model identifier.
	ID() string
	// Path returns the backing storage path (file or directory).
	Path() string
	// SetVersion records the version the artifact currently carries.
	SetVersion(version string)
}

// Options carries open-ended keyword options forwarded verbatim to
// loaders and migration functions.
type Options map[string]any

// Loader loads model binaries into runtime memory. It is external to this
// subsystem; the handle it returns is opaque here.
type Loader interface {
	Load(ctx context.Context, modelID string, opts Options) (any, error)
}
