// Package config provides configuration loading and strict schema
// validation for the hookd daemon. A daemon never enters RUNNING on an
// invalid document; validation errors abort startup verbatim.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	tomlparser "github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/smykla-labs/hookd/pkg/config"
)

var (
	// ErrInvalidTOML is returned when a TOML file cannot be parsed.
	ErrInvalidTOML = errors.New("invalid TOML")

	// ErrInvalidPermissions is returned when a config file is world-writable.
	ErrInvalidPermissions = errors.New("config file has insecure permissions")
)

const (
	// GlobalConfigDir is the directory under the user config home.
	GlobalConfigDir = "hookd"

	// GlobalConfigFile is the global configuration file name.
	GlobalConfigFile = "config.toml"

	// ProjectConfigDir is the project state directory.
	ProjectConfigDir = ".hookd"

	// ProjectConfigFile is the primary project configuration file name.
	ProjectConfigFile = "config.toml"

	// ProjectConfigFileAlt is the alternative project configuration file name.
	ProjectConfigFileAlt = "hookd.toml"

	// EnvPrefix is the environment variable prefix for overrides.
	EnvPrefix = "HOOKD_"
)

// Loader loads the configuration document from layered sources.
// Precedence (lowest to highest): defaults, global TOML, project TOML,
// HOOKD_* environment variables.
type Loader struct {
	k       *koanf.Koanf
	homeDir string
	workDir string
}

// NewLoader creates a Loader rooted at the given project directory.
func NewLoader(projectRoot string) (*Loader, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get home directory")
	}

	return NewLoaderWithDirs(homeDir, projectRoot), nil
}

// NewLoaderWithDirs creates a Loader with explicit directories (for tests).
func NewLoaderWithDirs(homeDir, workDir string) *Loader {
	return &Loader{
		k:       koanf.New("."),
		homeDir: homeDir,
		workDir: workDir,
	}
}

// Load reads and merges all sources. It returns the typed document plus
// the raw merged map; the raw map is what the validator inspects to
// distinguish "key absent" from "key present but null or mistyped".
func (l *Loader) Load() (*config.Document, map[string]any, error) {
	l.k = koanf.New(".")

	if err := l.k.Load(confmap.Provider(defaultsMap(), "."), nil); err != nil {
		return nil, nil, errors.Wrap(err, "failed to load defaults")
	}

	globalPath := l.GlobalConfigPath()
	if err := l.loadTOMLFile(globalPath); err != nil && !os.IsNotExist(err) {
		return nil, nil, errors.Wrap(err, "failed to load global config")
	}

	if projectPath := l.findProjectConfig(); projectPath != "" {
		if err := l.loadTOMLFile(projectPath); err != nil {
			return nil, nil, errors.Wrap(err, "failed to load project config")
		}
	}

	envOpt := env.Opt{
		Prefix:        EnvPrefix,
		TransformFunc: envTransform,
	}

	if err := l.k.Load(env.Provider(".", envOpt), nil); err != nil {
		return nil, nil, errors.Wrap(err, "failed to load env vars")
	}

	var doc config.Document

	unmarshalConf := koanf.UnmarshalConf{
		Tag:       "koanf",
		FlatPaths: false,
	}

	if err := l.k.UnmarshalWithConf("", &doc, unmarshalConf); err != nil {
		return nil, nil, errors.Wrap(err, "failed to unmarshal config")
	}

	return &doc, l.k.Raw(), nil
}

// loadTOMLFile loads a TOML configuration file with a permission check.
func (l *Loader) loadTOMLFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	// Reject world-writable files: the daemon makes trust decisions from
	// this document.
	if info.Mode().Perm()&0o002 != 0 {
		return errors.Wrapf(
			ErrInvalidPermissions,
			"%s is world-writable (mode: %s)",
			path, info.Mode().Perm(),
		)
	}

	if err := l.k.Load(file.Provider(path), tomlparser.Parser()); err != nil {
		return errors.Wrapf(ErrInvalidTOML, "%s: %v", path, err)
	}

	return nil
}

// envTransform maps environment variable names to config paths. A double
// underscore separates path segments, single underscores stay literal:
// HOOKD_DAEMON__SOCKET_PATH → daemon.socket_path
func envTransform(key, value string) (string, any) {
	key = strings.TrimPrefix(key, EnvPrefix)
	key = strings.ToLower(key)
	key = strings.ReplaceAll(key, "__", ".")

	return key, value
}

// GlobalConfigPath returns the path of the global configuration file.
func (l *Loader) GlobalConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		configHome = filepath.Join(l.homeDir, ".config")
	}

	return filepath.Join(configHome, GlobalConfigDir, GlobalConfigFile)
}

// ProjectConfigPaths returns the candidate project configuration paths.
func (l *Loader) ProjectConfigPaths() []string {
	return []string{
		filepath.Join(l.workDir, ProjectConfigDir, ProjectConfigFile),
		filepath.Join(l.workDir, ProjectConfigFileAlt),
	}
}

func (l *Loader) findProjectConfig() string {
	for _, path := range l.ProjectConfigPaths() {
		if fileExists(path) {
			return path
		}
	}

	return ""
}

// HasProjectConfig reports whether a project configuration file exists.
func (l *Loader) HasProjectConfig() bool {
	return l.findProjectConfig() != ""
}

// defaultsMap holds the built-in defaults loaded below every other source.
func defaultsMap() map[string]any {
	return map[string]any{
		"version": config.CurrentConfigVersion,
		"daemon": map[string]any{
			"debug":           false,
			"handler_timeout": "10s",
			"shutdown_grace":  "5s",
			"max_connections": 64,
		},
		"handlers": map[string]any{
			"PreToolUse": map[string]any{
				"git-force-push": map[string]any{"enabled": true},
				"shell-danger":   map[string]any{"enabled": true},
			},
			"SessionStart": map[string]any{
				"session-brief": map[string]any{"enabled": true},
			},
		},
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}

	return !info.IsDir()
}
