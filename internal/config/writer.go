package config

import (
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	toml "github.com/pelletier/go-toml/v2"

	"github.com/smykla-labs/hookd/pkg/config"
)

const configFileMode = 0o600

// ErrConfigExists is returned when init would overwrite an existing file.
var ErrConfigExists = errors.New("configuration file already exists")

// DefaultDocument returns the document `hookd init` writes for a new
// project: the built-in handlers enabled with their default priorities.
func DefaultDocument() *config.Document {
	enabled := true

	return &config.Document{
		Version: config.CurrentConfigVersion,
		Daemon:  &config.DaemonConfig{},
		Handlers: map[string]map[string]*config.HandlerEntry{
			"PreToolUse": {
				"git-force-push": {Enabled: &enabled},
				"shell-danger":   {Enabled: &enabled},
			},
			"SessionStart": {
				"session-brief": {Enabled: &enabled},
			},
		},
	}
}

// WriteDefault writes the default document to the project config path.
// Refuses to overwrite an existing file.
func WriteDefault(projectRoot string) (string, error) {
	dir := filepath.Join(projectRoot, ProjectConfigDir)
	path := filepath.Join(dir, ProjectConfigFile)

	if fileExists(path) {
		return path, errors.Wrapf(ErrConfigExists, "%s", path)
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", errors.Wrapf(err, "failed to create %s", dir)
	}

	data, err := toml.Marshal(DefaultDocument())
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal default config")
	}

	if err := os.WriteFile(path, data, configFileMode); err != nil {
		return "", errors.Wrapf(err, "failed to write %s", path)
	}

	return path, nil
}
