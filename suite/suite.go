// Package suite loads the snapshot suite configuration file, which describes
// how the tool-under-test is built and invoked.
package suite

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const DefaultConfigFile = "snapcheck.yaml"

// Config describes a snapshot suite and the tool it exercises.
// Relative paths are resolved against the repository root.
type Config struct {
	SuiteDir    string   `yaml:"suite_dir" toml:"suite_dir"`
	Workspace   string   `yaml:"workspace,omitempty" toml:"workspace"`
	Build       []string `yaml:"build,omitempty" toml:"build"`
	Tool        string   `yaml:"tool" toml:"tool"`
	Helper      string   `yaml:"helper" toml:"helper"`
	Privilege   []string `yaml:"privilege,omitempty" toml:"privilege"`
	ScratchEnv  string   `yaml:"scratch_env,omitempty" toml:"scratch_env"`
	HelperEnv   string   `yaml:"helper_env,omitempty" toml:"helper_env"`
	Format      string   `yaml:"format,omitempty" toml:"format"`
	Shell       string   `yaml:"shell,omitempty" toml:"shell"`
	ScriptExt   string   `yaml:"script_ext,omitempty" toml:"script_ext"`
	SnapshotExt string   `yaml:"snapshot_ext,omitempty" toml:"snapshot_ext"`
}

// Default returns the configuration of the mkcheck2 snapshot suite
func Default() Config {
	return Config{
		SuiteDir: "Tests/SnapshotTests",
		Build: []string{
			"ninja -C build",
			"touch Sources/mkcheck2/mkcheck2.swift",
			"swift build --product mkcheck2",
			"swift build --product mkcheck2-test-utils",
		},
		Tool:        ".build/debug/mkcheck2",
		Helper:      ".build/debug/mkcheck2-test-utils",
		Privilege:   []string{"sudo"},
		ScratchEnv:  "t",
		HelperEnv:   "utils",
		Format:      "ascii",
		Shell:       "bash",
		ScriptExt:   ".sh",
		SnapshotExt: ".txt",
	}
}

// Load reads a yaml or toml suite file on top of the defaults
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "failed to read suite config %s", path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return Config{}, errors.Wrapf(err, "failed to parse toml suite config %s", path)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, errors.Wrapf(err, "failed to parse yaml suite config %s", path)
		}
	default:
		return Config{}, errors.Errorf("unsupported suite config format %q", filepath.Ext(path))
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, errors.Wrapf(err, "invalid suite config %s", path)
	}
	return cfg, nil
}

// Validate checks that the fields needed to run a suite are present
func (c Config) Validate() error {
	if c.SuiteDir == "" {
		return errors.New("suite_dir is required")
	}
	if c.Tool == "" {
		return errors.New("tool is required")
	}
	if c.ScratchEnv == "" || c.HelperEnv == "" {
		return errors.New("scratch_env and helper_env must be set")
	}
	if c.ScratchEnv == c.HelperEnv {
		return errors.Errorf("scratch_env and helper_env must differ, both are %q", c.ScratchEnv)
	}
	if c.Shell == "" {
		return errors.New("shell is required")
	}
	if !strings.HasPrefix(c.ScriptExt, ".") || !strings.HasPrefix(c.SnapshotExt, ".") {
		return errors.New("script_ext and snapshot_ext must start with a dot")
	}
	if c.ScriptExt == c.SnapshotExt {
		return errors.New("script_ext and snapshot_ext must differ")
	}
	return nil
}

// Resolve returns a copy with every relative path made absolute under root
func (c Config) Resolve(root string) Config {
	out := c
	out.SuiteDir = resolvePath(root, c.SuiteDir)
	if c.Workspace != "" {
		out.Workspace = resolvePath(root, c.Workspace)
	}
	out.Tool = resolvePath(root, c.Tool)
	if c.Helper != "" {
		out.Helper = resolvePath(root, c.Helper)
	}
	out.Build = append([]string(nil), c.Build...)
	out.Privilege = append([]string(nil), c.Privilege...)
	return out
}

func resolvePath(root, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}
