package daemon

import (
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/cockroachdb/errors"
)

const pidFileMode = 0o600

// ErrNoPIDFile is returned when the PID file does not exist.
var ErrNoPIDFile = errors.New("pid file not found")

// writePIDFile records the current process ID.
func writePIDFile(path string) error {
	data := []byte(strconv.Itoa(os.Getpid()) + "\n")

	if err := os.WriteFile(path, data, pidFileMode); err != nil {
		return errors.Wrapf(err, "failed to write pid file %s", path)
	}

	return nil
}

// readPIDFile parses the recorded process ID.
func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, errors.Wrapf(ErrNoPIDFile, "%s", path)
		}

		return 0, errors.Wrapf(err, "failed to read pid file %s", path)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, errors.Newf("pid file %s is corrupt: %q", path, strings.TrimSpace(string(data)))
	}

	return pid, nil
}

// removePIDFile deletes the PID file, tolerating absence.
func removePIDFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "failed to remove pid file %s", path)
	}

	return nil
}

// processAlive reports whether the process exists, using signal 0. EPERM
// means the process exists but belongs to another user; still alive.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}

	return errors.Is(err, syscall.EPERM)
}
