package plugin

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
)

const (
	// GlobalPluginDir is the user's global plugin directory relative to
	// XDG_CONFIG_HOME.
	GlobalPluginDir = "hookd/plugins"

	// ProjectPluginDir is the project-local plugin directory.
	ProjectPluginDir = ".hookd/plugins"
)

var (
	// ErrPathTraversal is returned when path traversal patterns are detected.
	ErrPathTraversal = errors.New("path traversal detected")

	// ErrPathNotAllowed is returned when the plugin path is not in an
	// allowed directory.
	ErrPathNotAllowed = errors.New("plugin path not in allowed directory")

	// ErrInvalidExtension is returned when the plugin file extension is not
	// allowed.
	ErrInvalidExtension = errors.New("invalid plugin file extension")
)

// pathTraversalPattern matches common path traversal attempts.
var pathTraversalPattern = regexp.MustCompile(`(?:^|/)\.\.(?:/|$)`)

// ValidatePath checks a plugin path for traversal patterns and containment
// in an allowed directory, with symlinks resolved on both sides.
func ValidatePath(path string, allowedDirs []string) error {
	if path == "" {
		return errors.New("path is required")
	}

	resolved, err := resolvePath(path)
	if err != nil {
		return err
	}

	if len(allowedDirs) == 0 {
		return nil
	}

	for _, dir := range allowedDirs {
		if isPathUnderDir(resolved, dir) {
			return nil
		}
	}

	return errors.Wrapf(ErrPathNotAllowed, "path %s not in allowed directories", path)
}

// ValidateExtension checks the plugin file extension.
func ValidateExtension(path string, allowed []string) error {
	ext := filepath.Ext(path)
	if ext == "" {
		return errors.Wrap(ErrInvalidExtension, "file has no extension")
	}

	for _, allowedExt := range allowed {
		if strings.EqualFold(ext, allowedExt) {
			return nil
		}
	}

	return errors.Wrapf(ErrInvalidExtension,
		"extension %q not in allowed list %v", ext, allowed)
}

// AllowedDirs returns the directories plugins may be loaded from: the
// global plugin directory and the project-local one.
func AllowedDirs(projectRoot string) []string {
	var dirs []string

	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		if home, err := os.UserHomeDir(); err == nil {
			configHome = filepath.Join(home, ".config")
		}
	}

	if configHome != "" {
		dirs = append(dirs, filepath.Join(configHome, GlobalPluginDir))
	}

	if projectRoot != "" {
		dirs = append(dirs, filepath.Join(projectRoot, ProjectPluginDir))
	}

	return dirs
}

// resolvePath expands, validates, and resolves a path to canonical form.
func resolvePath(path string) (string, error) {
	expanded, err := expandPath(path)
	if err != nil {
		return "", errors.Wrap(err, "failed to expand path")
	}

	if pathTraversalPattern.MatchString(expanded) {
		return "", errors.Wrapf(ErrPathTraversal, "path contains traversal pattern: %s", path)
	}

	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", errors.Wrap(err, "failed to resolve absolute path")
	}

	if real, evalErr := filepath.EvalSymlinks(abs); evalErr == nil {
		abs = real
	}

	return abs, nil
}

// isPathUnderDir checks if resolvedPath is under the given directory.
func isPathUnderDir(resolvedPath, dir string) bool {
	expanded, err := expandPath(dir)
	if err != nil {
		return false
	}

	absDir, err := filepath.Abs(expanded)
	if err != nil {
		return false
	}

	if real, evalErr := filepath.EvalSymlinks(absDir); evalErr == nil {
		absDir = real
	}

	if resolvedPath == absDir {
		return true
	}

	return strings.HasPrefix(resolvedPath, absDir+string(filepath.Separator))
}

// expandPath expands a leading ~ to the user's home directory.
func expandPath(path string) (string, error) {
	if path == "" || !strings.HasPrefix(path, "~") {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get home directory")
	}

	if path == "~" {
		return homeDir, nil
	}

	if len(path) > 1 && (path[1] == '/' || path[1] == filepath.Separator) {
		return filepath.Join(homeDir, path[2:]), nil
	}

	// ~user style paths not supported
	return path, nil
}
