// Package procctx computes the per-process context: project root, derived
// repository identity, and the resolved socket/PID/log paths. It is built
// exactly once at startup and passed by pointer into every component that
// needs it; nothing here is reachable through ambient global state.
package procctx

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	git "github.com/go-git/go-git/v6"

	"github.com/smykla-labs/hookd/pkg/logger"
)

// Context is the read-only per-process context. All fields are fixed at
// construction; concurrent readers need no synchronization.
type Context struct {
	// ProjectRoot is the absolute path of the project the daemon serves.
	ProjectRoot string

	// RepoIdentity is the repository slug derived from the origin remote,
	// or the project directory name when no repository is found.
	RepoIdentity string

	// SocketPath is the resolved Unix socket path.
	SocketPath string

	// PIDFile is the resolved PID file path.
	PIDFile string

	// LogFile is the resolved log file path.
	LogFile string
}

// Option customizes context construction.
type Option func(*options)

type options struct {
	socketOverride string
}

// WithSocketPath forces the socket path, bypassing resolution. The PID and
// log files follow the socket's directory for consistency.
func WithSocketPath(path string) Option {
	return func(o *options) {
		if path != "" {
			o.socketOverride = path
		}
	}
}

// New computes the process context for the given project root.
func New(projectRoot string, log logger.Logger, opts ...Option) (*Context, error) {
	if projectRoot == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, "failed to determine working directory")
		}

		projectRoot = wd
	}

	absRoot, err := filepath.Abs(projectRoot)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve project root %s", projectRoot)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	identity := deriveRepoIdentity(absRoot, log)

	paths, err := resolvePaths(absRoot, o.socketOverride, log)
	if err != nil {
		return nil, err
	}

	return &Context{
		ProjectRoot:  absRoot,
		RepoIdentity: identity,
		SocketPath:   paths.socket,
		PIDFile:      paths.pid,
		LogFile:      paths.log,
	}, nil
}

// deriveRepoIdentity derives a stable repository slug for the project.
// Falls back to the directory basename when the project is not a git
// repository or has no origin remote.
func deriveRepoIdentity(root string, log logger.Logger) string {
	repo, err := git.PlainOpenWithOptions(root, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		log.Debug("no git repository detected, using directory name",
			"root", root,
		)

		return filepath.Base(root)
	}

	remote, err := repo.Remote("origin")
	if err != nil || len(remote.Config().URLs) == 0 {
		return filepath.Base(root)
	}

	return slugFromRemoteURL(remote.Config().URLs[0], root)
}

// slugFromRemoteURL reduces a remote URL to an "owner/name" slug.
// Handles both SSH ("git@host:owner/name.git") and HTTP forms.
func slugFromRemoteURL(url, root string) string {
	s := strings.TrimSuffix(url, ".git")

	if idx := strings.Index(s, "://"); idx >= 0 {
		s = s[idx+3:]
	}

	if idx := strings.Index(s, "@"); idx >= 0 {
		s = s[idx+1:]
	}

	s = strings.ReplaceAll(s, ":", "/")

	parts := strings.Split(strings.Trim(s, "/"), "/")
	if len(parts) >= 2 {
		return parts[len(parts)-2] + "/" + parts[len(parts)-1]
	}

	return filepath.Base(root)
}
