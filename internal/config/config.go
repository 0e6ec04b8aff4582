// Package config loads the project-level slipway configuration: the build
// matrix, the external tool command lines, and the publish endpoints. All of
// it lives in .slipway/config.yaml inside the project directory.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// SlipwayDir is the per-project directory holding config, state, logs,
	// and build output.
	SlipwayDir = ".slipway"
	// ConfigFileName is the config file inside SlipwayDir.
	ConfigFileName = "config.yaml"
)

// knownPlatforms lists the platform identifiers a matrix entry may target.
var knownPlatforms = map[string]struct{}{
	"linux":   {},
	"macos":   {},
	"windows": {},
}

// MatrixEntry declares one platform build: the platform identifier and the
// architecture set handed to the build toolchain. A single entry may fan out
// to several architecture-tagged packages (cross-compilation targets).
type MatrixEntry struct {
	Platform string `yaml:"platform"`
	// Archs is the architecture set, e.g. [x86_64, universal2, arm64] or
	// the toolchain shorthand [auto64].
	Archs []string `yaml:"archs"`
	// Env holds platform-specific environment overrides for the toolchain
	// invocation, e.g. the flag enabling the native acceleration path.
	Env map[string]string `yaml:"env,omitempty"`
}

// Validate ensures the entry targets a known platform with at least one arch.
func (e MatrixEntry) Validate() error {
	if e.Platform == "" {
		return fmt.Errorf("config: matrix entry missing platform")
	}
	if _, ok := knownPlatforms[e.Platform]; !ok {
		return fmt.Errorf("config: unknown platform %q", e.Platform)
	}
	if len(e.Archs) == 0 {
		return fmt.Errorf("config: matrix entry for %s has an empty architecture set", e.Platform)
	}
	for _, arch := range e.Archs {
		if strings.TrimSpace(arch) == "" {
			return fmt.Errorf("config: matrix entry for %s has a blank architecture", e.Platform)
		}
	}
	return nil
}

// Commands configures the external tools the pipeline shells out to. Each
// value is a command line executed via the shell; the pipeline only models
// exit status and output files.
type Commands struct {
	// BinaryBuild produces platform binary packages. The architecture set is
	// exported as SLIPWAY_ARCHS and the platform as SLIPWAY_PLATFORM.
	BinaryBuild string `yaml:"binary_build"`
	// PureBuild produces the source archive and the portable package.
	PureBuild string `yaml:"pure_build"`
	// Install installs the portable package plus test dependencies.
	Install string `yaml:"install"`
	// Test runs the suite against the installed portable package.
	Test string `yaml:"test"`
}

// IndexConfig configures the package index uploads.
type IndexConfig struct {
	// Backend selects the uploader: "http" or "s3".
	Backend string `yaml:"backend"`
	// URL is the legacy-upload endpoint for the http backend.
	URL string `yaml:"url,omitempty"`
	// UsernameEnv / PasswordEnv name the environment variables carrying the
	// http backend credentials. Credentials never live in the config file.
	UsernameEnv string `yaml:"username_env,omitempty"`
	PasswordEnv string `yaml:"password_env,omitempty"`
	// S3 settings for the object-store backend.
	Endpoint     string `yaml:"endpoint,omitempty"`
	Bucket       string `yaml:"bucket,omitempty"`
	Region       string `yaml:"region,omitempty"`
	AccessKeyEnv string `yaml:"access_key_env,omitempty"`
	SecretKeyEnv string `yaml:"secret_key_env,omitempty"`
	UseSSL       bool   `yaml:"use_ssl,omitempty"`
}

// ReleaseHostConfig configures the release-hosting service.
type ReleaseHostConfig struct {
	APIBase  string `yaml:"api_base"`
	Owner    string `yaml:"owner"`
	Repo     string `yaml:"repo"`
	TokenEnv string `yaml:"token_env,omitempty"`
}

// Config is the full project configuration.
type Config struct {
	// Project names the package being released.
	Project string `yaml:"project"`
	// ProjectDir is the directory config was loaded from (not serialized).
	ProjectDir string `yaml:"-"`

	Matrix      []MatrixEntry     `yaml:"matrix"`
	Commands    Commands          `yaml:"commands"`
	Index       IndexConfig       `yaml:"index"`
	ReleaseHost ReleaseHostConfig `yaml:"release_host"`
	// Pipeline optionally names a YAML pipeline definition under
	// .slipway/pipelines/ to run instead of the built-in release pipeline.
	Pipeline string `yaml:"pipeline,omitempty"`
	// MaxParallel caps concurrently running jobs; 0 means unlimited.
	MaxParallel int `yaml:"max_parallel,omitempty"`
	// Debug enables verbose logging.
	Debug bool `yaml:"debug,omitempty"`
}

// Validate checks the configuration for structural problems.
func (c Config) Validate() error {
	if c.Project == "" {
		return fmt.Errorf("config: project name is required")
	}
	if len(c.Matrix) == 0 {
		return fmt.Errorf("config: at least one matrix entry is required")
	}
	seen := map[string]struct{}{}
	for _, entry := range c.Matrix {
		if err := entry.Validate(); err != nil {
			return err
		}
		if _, dup := seen[entry.Platform]; dup {
			return fmt.Errorf("config: duplicate matrix platform %s", entry.Platform)
		}
		seen[entry.Platform] = struct{}{}
	}
	if c.MaxParallel < 0 {
		return fmt.Errorf("config: max_parallel must be >= 0")
	}
	switch c.Index.Backend {
	case "", "http", "s3":
	default:
		return fmt.Errorf("config: unknown index backend %q", c.Index.Backend)
	}
	return nil
}

// Dir returns the project's .slipway directory.
func (c Config) Dir() string {
	return filepath.Join(c.ProjectDir, SlipwayDir)
}

// StateDir returns where engine run state is persisted.
func (c Config) StateDir() string {
	return filepath.Join(c.Dir(), "state")
}

// LogDir returns where log files are written.
func (c Config) LogDir() string {
	return filepath.Join(c.Dir(), "logs")
}

// OutputDir returns the isolated output directory for one job. Outputs are
// namespaced by job identity so no two jobs ever share a location.
func (c Config) OutputDir(jobID string) string {
	return filepath.Join(c.Dir(), "dist", jobID)
}

// PipelineDir returns where YAML pipeline definitions live.
func (c Config) PipelineDir() string {
	return filepath.Join(c.Dir(), "pipelines")
}

// PluginDir returns where job definition plugins live.
func (c Config) PluginDir() string {
	return filepath.Join(c.Dir(), "plugins")
}

// Load reads and validates the config for projectDir.
func Load(projectDir string) (Config, error) {
	path := filepath.Join(projectDir, SlipwayDir, ConfigFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	cfg.ProjectDir = projectDir
	return cfg, nil
}

// Parse decodes and validates config bytes.
func Parse(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// InitDir creates the .slipway tree for a project directory.
func InitDir(projectDir string) error {
	for _, dir := range []string{
		filepath.Join(projectDir, SlipwayDir),
		filepath.Join(projectDir, SlipwayDir, "state"),
		filepath.Join(projectDir, SlipwayDir, "logs"),
		filepath.Join(projectDir, SlipwayDir, "dist"),
		filepath.Join(projectDir, SlipwayDir, "pipelines"),
		filepath.Join(projectDir, SlipwayDir, "plugins"),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: ensure %s: %w", dir, err)
		}
	}
	return nil
}
