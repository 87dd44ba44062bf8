package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zjrosen/modelver/internal/manifest"
	ver "github.com/zjrosen/modelver/internal/version"
)

var (
	registerID       string
	registerPath     string
	registerVersion  string
	registerFeatures []string
	registerCompat   []string
	registerDeps     []string
	registerMeta     []string
	registerManifest string
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a model version from its artifact on disk",
	Long: `Registers one model version, hashing the artifact's file or directory
tree for later drift detection. With --manifest, registers every model
declared in a YAML manifest instead.`,
	RunE: runRegister,
}

func init() {
	registerCmd.Flags().StringVar(&registerID, "id", "", "model identifier")
	registerCmd.Flags().StringVar(&registerPath, "path", "", "artifact file or directory")
	registerCmd.Flags().StringVar(&registerVersion, "version", "", "semantic version, e.g. 1.2.0")
	registerCmd.Flags().StringSliceVar(&registerFeatures, "feature", nil, "capability tag (repeatable)")
	registerCmd.Flags().StringSliceVar(&registerCompat, "compatible-with", nil, "explicit compatible version (repeatable)")
	registerCmd.Flags().StringSliceVar(&registerDeps, "dep", nil, "dependency as name=version (repeatable)")
	registerCmd.Flags().StringSliceVar(&registerMeta, "meta", nil, "metadata as key=value (repeatable)")
	registerCmd.Flags().StringVar(&registerManifest, "manifest", "", "YAML manifest declaring models to register in bulk")
	rootCmd.AddCommand(registerCmd)
}

// artifact is the CLI's descriptor for a model's on-disk location.
type artifact struct {
	id   string
	path string
}

func (a *artifact) ID() string          { return a.id }
func (a *artifact) Path() string        { return a.path }
func (a *artifact) SetVersion(_ string) {}

func runRegister(cmd *cobra.Command, args []string) error {
	mgr, cleanup, err := openManager()
	if err != nil {
		return err
	}
	defer cleanup()

	if registerManifest != "" {
		file, err := manifest.Load(registerManifest)
		if err != nil {
			return err
		}
		registered, err := manifest.Apply(cmd.Context(), mgr, registerManifest, file)
		for _, v := range registered {
			cmd.Printf("registered %s %s\n", v.ModelID(), v.String())
		}
		return err
	}

	if registerID == "" || registerPath == "" || registerVersion == "" {
		return fmt.Errorf("--id, --path and --version are required (or use --manifest)")
	}

	opts, err := buildVersionOptions()
	if err != nil {
		return err
	}

	v, err := mgr.RegisterVersion(cmd.Context(), &artifact{id: registerID, path: registerPath}, registerVersion, opts...)
	if err != nil {
		return err
	}

	cmd.Printf("registered %s %s\n", v.ModelID(), v.String())
	if v.ContentHash() == "" {
		cmd.Println("warning: artifact path missing or unreadable, content hash is empty")
	} else {
		cmd.Printf("hash %s\n", v.ContentHash())
	}
	return nil
}

func buildVersionOptions() ([]ver.Option, error) {
	var opts []ver.Option

	if len(registerFeatures) > 0 {
		opts = append(opts, ver.WithFeatures(registerFeatures...))
	}
	if len(registerCompat) > 0 {
		opts = append(opts, ver.WithCompatibleWith(registerCompat...))
	}
	if len(registerDeps) > 0 {
		deps, err := parsePairs(registerDeps, "--dep")
		if err != nil {
			return nil, err
		}
		opts = append(opts, ver.WithDependencies(deps))
	}
	if len(registerMeta) > 0 {
		meta, err := parsePairs(registerMeta, "--meta")
		if err != nil {
			return nil, err
		}
		metadata := make(map[string]any, len(meta))
		for k, v := range meta {
			metadata[k] = v
		}
		opts = append(opts, ver.WithMetadata(metadata))
	}

	return opts, nil
}

func parsePairs(pairs []string, flag string) (map[string]string, error) {
	parsed := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%s expects key=value, got %q", flag, pair)
		}
		parsed[key] = value
	}
	return parsed, nil
}
