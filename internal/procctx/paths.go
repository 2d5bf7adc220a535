package procctx

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"

	"github.com/smykla-labs/hookd/pkg/logger"
)

const (
	// SocketPathEnv overrides the resolved socket path. Surfaced in bind
	// errors so operators know the escape hatch.
	SocketPathEnv = "HOOKD_SOCKET_PATH"

	// RuntimeDirEnv overrides the runtime directory used by the fallback
	// chain.
	RuntimeDirEnv = "HOOKD_RUNTIME_DIR"

	// maxSocketPathLen is the portable ceiling for Unix domain socket
	// paths (sun_path is 108 bytes on Linux, 104 on the BSDs).
	maxSocketPathLen = 103

	// projectDirName is the project-local state directory.
	projectDirName = ".hookd"

	socketFileName = "hookd.sock"
	pidFileName    = "hookd.pid"
	logFileName    = "hookd.log"

	dirMode = 0o700

	hashPrefixLen = 12
)

// ErrSocketPathTooLong is returned when no candidate path fits the
// transport's path-length ceiling.
var ErrSocketPathTooLong = errors.New("socket path exceeds unix socket path limit")

type resolvedPaths struct {
	socket string
	pid    string
	log    string
}

// resolvePaths picks the directory holding the socket, PID and log files.
// Preference order: explicit override, project-local .hookd/, then the
// length-constrained fallback chain (XDG runtime dir, per-UID runtime dir,
// shared temp dir). PID and log paths always follow the socket's directory
// so one project never scatters its state.
func resolvePaths(projectRoot, override string, log logger.Logger) (resolvedPaths, error) {
	if override == "" {
		override = os.Getenv(SocketPathEnv)
	}

	if override != "" {
		if len(override) > maxSocketPathLen {
			return resolvedPaths{}, errors.Wrapf(
				ErrSocketPathTooLong,
				"%s (%d bytes, limit %d); set %s to a shorter path",
				override, len(override), maxSocketPathLen, SocketPathEnv,
			)
		}

		return pathsInDir(filepath.Dir(override), filepath.Base(override))
	}

	projectDir := filepath.Join(projectRoot, projectDirName)
	projectSocket := filepath.Join(projectDir, socketFileName)

	if len(projectSocket) <= maxSocketPathLen {
		return pathsInDir(projectDir, socketFileName)
	}

	// Project path is over the limit: fall back to a runtime directory
	// keyed by a short hash of the project root.
	name := fmt.Sprintf("%s.sock", projectHash(projectRoot))

	for _, dir := range fallbackDirs() {
		candidate := filepath.Join(dir, name)
		if len(candidate) > maxSocketPathLen {
			continue
		}

		log.Info("project socket path exceeds unix limit, using fallback",
			"project", projectSocket,
			"fallback", candidate,
		)

		return pathsInDir(dir, name)
	}

	return resolvedPaths{}, errors.Wrapf(
		ErrSocketPathTooLong,
		"no fallback directory yields a path under %d bytes; set %s",
		maxSocketPathLen, SocketPathEnv,
	)
}

// fallbackDirs returns the fallback directories in preference order.
func fallbackDirs() []string {
	var dirs []string

	if v := os.Getenv(RuntimeDirEnv); v != "" {
		dirs = append(dirs, v)
	}

	if v := os.Getenv("XDG_RUNTIME_DIR"); v != "" {
		dirs = append(dirs, filepath.Join(v, "hookd"))
	}

	uid := os.Getuid()
	dirs = append(dirs,
		filepath.Join("/run", "user", fmt.Sprintf("%d", uid), "hookd"),
		filepath.Join(os.TempDir(), fmt.Sprintf("hookd-%d", uid)),
	)

	return dirs
}

// pathsInDir builds the path triple inside dir, creating the directory.
func pathsInDir(dir, socketName string) (resolvedPaths, error) {
	if err := EnsureDir(dir); err != nil {
		return resolvedPaths{}, err
	}

	return resolvedPaths{
		socket: filepath.Join(dir, socketName),
		pid:    filepath.Join(dir, pidFileName),
		log:    filepath.Join(dir, logFileName),
	}, nil
}

// projectHash returns a short stable hash of the project root, used to key
// per-project files in shared runtime directories.
func projectHash(projectRoot string) string {
	sum := sha256.Sum256([]byte(projectRoot))

	return hex.EncodeToString(sum[:])[:hashPrefixLen]
}

// EnsureDir creates a directory with 0700 permissions if it doesn't exist.
// Pre-existing directories keep their permissions: an operator-chosen
// override may point into a directory hookd does not own, and chmod there
// either tightens a shared directory or fails outright.
func EnsureDir(path string) error {
	if info, err := os.Stat(path); err == nil {
		if !info.IsDir() {
			return errors.Newf("%s exists and is not a directory", path)
		}

		return nil
	} else if !os.IsNotExist(err) {
		return errors.Wrapf(err, "failed to stat directory %s", path)
	}

	if err := os.MkdirAll(path, dirMode); err != nil {
		return errors.Wrapf(err, "failed to create directory %s", path)
	}

	// MkdirAll is subject to the umask; tighten the leaf we just created.
	if err := os.Chmod(path, dirMode); err != nil {
		return errors.Wrapf(err, "failed to set permissions on %s", path)
	}

	return nil
}
