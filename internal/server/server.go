// Package server implements the Unix domain socket server: one JSON
// request per connection, concurrent accept loop, and the status
// endpoint. Transport faults affect only their own connection.
package server

import (
	"context"
	"encoding/json"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/semaphore"

	"github.com/smykla-labs/hookd/internal/engine"
	"github.com/smykla-labs/hookd/internal/response"
	"github.com/smykla-labs/hookd/pkg/hook"
	"github.com/smykla-labs/hookd/pkg/logger"
)

const (
	// connIOTimeout bounds reading the request and writing the response on
	// one connection.
	connIOTimeout = 30 * time.Second

	// maxRequestBytes caps the size of a single request body.
	maxRequestBytes = 1 << 20
)

var (
	// ErrRequestTooLarge is returned when a request exceeds maxRequestBytes.
	ErrRequestTooLarge = errors.New("request exceeds size limit")

	// ErrSocketInUse is returned when the socket file is still accepting
	// connections, meaning another daemon owns it.
	ErrSocketInUse = errors.New("socket is in use by another process")
)

// Stats is a point-in-time snapshot of server counters.
type Stats struct {
	RequestsServed uint64 `json:"requests_served" yaml:"requests_served"`
	Denied         uint64 `json:"denied" yaml:"denied"`
	Asked          uint64 `json:"asked" yaml:"asked"`
	Faults         uint64 `json:"faults" yaml:"faults"`
}

// StatusReport is the payload answered to a Status request.
type StatusReport struct {
	PID       int                 `json:"pid" yaml:"pid"`
	Version   string              `json:"version" yaml:"version"`
	StartedAt time.Time           `json:"started_at" yaml:"started_at"`
	Project   string              `json:"project" yaml:"project"`
	Socket    string              `json:"socket" yaml:"socket"`
	Stats     Stats               `json:"stats" yaml:"stats"`
	Chains    map[string][]string `json:"chains" yaml:"chains"`
}

// Server owns the socket listener and the accept loop.
type Server struct {
	router     *engine.Router
	socketPath string
	project    string
	version    string
	grace      time.Duration
	sem        *semaphore.Weighted
	log        logger.Logger

	startedAt time.Time
	listener  net.Listener
	wg        sync.WaitGroup
	closed    atomic.Bool

	requestsServed atomic.Uint64
	denied         atomic.Uint64
	asked          atomic.Uint64
	faults         atomic.Uint64
}

// Options configures a Server.
type Options struct {
	SocketPath     string
	Project        string
	Version        string
	MaxConnections int
	ShutdownGrace  time.Duration
}

// New creates a Server. The listener is not bound until Serve.
func New(router *engine.Router, opts Options, log logger.Logger) *Server {
	maxConns := opts.MaxConnections
	if maxConns <= 0 {
		maxConns = 1
	}

	return &Server{
		router:     router,
		socketPath: opts.SocketPath,
		project:    opts.Project,
		version:    opts.Version,
		grace:      opts.ShutdownGrace,
		sem:        semaphore.NewWeighted(int64(maxConns)),
		log:        log,
	}
}

// Serve binds the socket and runs the accept loop until ctx is cancelled.
// A stale socket file from a dead daemon is removed before binding; a
// socket that still answers a dial has a live owner and is never stolen.
func (s *Server) Serve(ctx context.Context) error {
	if err := removeStaleSocket(s.socketPath); err != nil {
		return err
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return errors.Wrapf(err, "failed to bind socket %s", s.socketPath)
	}

	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		listener.Close()

		return errors.Wrapf(err, "failed to restrict socket %s", s.socketPath)
	}

	s.listener = listener
	s.startedAt = time.Now()

	s.log.Info("listening", "socket", s.socketPath)

	go func() {
		<-ctx.Done()
		s.closed.Store(true)
		s.listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if s.closed.Load() {
				return s.drain()
			}

			// Accept faults on a live listener affect nobody's request.
			s.log.Error("accept failed", "error", err)

			continue
		}

		if err := s.sem.Acquire(ctx, 1); err != nil {
			conn.Close()

			return s.drain()
		}

		s.wg.Add(1)

		go func() {
			defer s.wg.Done()
			defer s.sem.Release(1)
			s.handleConn(ctx, conn)
		}()
	}
}

// drain waits for in-flight connections up to the shutdown grace period,
// then removes the socket file.
func (s *Server) drain() error {
	done := make(chan struct{})

	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(s.grace):
		s.log.Error("shutdown grace expired with connections in flight")
	}

	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "failed to remove socket %s", s.socketPath)
	}

	s.log.Info("stopped", "requests_served", s.requestsServed.Load())

	return nil
}

// handleConn serves exactly one request on the connection. Every fault
// path here is local to this connection.
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(connIOTimeout)); err != nil {
		s.log.Error("failed to set connection deadline", "error", err)

		return
	}

	event, err := readEvent(conn)
	if err != nil {
		s.faults.Add(1)
		s.log.Error("bad request", "error", err)
		writeJSON(conn, s.log, map[string]string{"error": err.Error()})

		return
	}

	if event.Type == hook.EventTypeStatus {
		writeJSON(conn, s.log, s.statusReport())

		return
	}

	result := s.router.Dispatch(ctx, event)

	s.requestsServed.Add(1)

	switch result.Decision {
	case hook.DecisionDeny:
		s.denied.Add(1)
	case hook.DecisionAsk:
		s.asked.Add(1)
	case hook.DecisionAllow:
	}

	writeJSON(conn, s.log, response.Translate(event.Type, result))
}

// statusReport snapshots the server state for the status endpoint.
func (s *Server) statusReport() *StatusReport {
	chains := make(map[string][]string)

	for event, chain := range s.router.Chains() {
		keys := make([]string, 0, len(chain.Handlers()))
		for _, h := range chain.Handlers() {
			keys = append(keys, h.Descriptor().Key)
		}

		chains[string(event)] = keys
	}

	return &StatusReport{
		PID:       os.Getpid(),
		Version:   s.version,
		StartedAt: s.startedAt,
		Project:   s.project,
		Socket:    s.socketPath,
		Stats: Stats{
			RequestsServed: s.requestsServed.Load(),
			Denied:         s.denied.Load(),
			Asked:          s.asked.Load(),
			Faults:         s.faults.Load(),
		},
		Chains: chains,
	}
}

// readEvent decodes the single JSON request from the connection.
func readEvent(conn net.Conn) (*hook.Event, error) {
	dec := json.NewDecoder(&limitedReader{conn: conn, remaining: maxRequestBytes})

	var event hook.Event
	if err := dec.Decode(&event); err != nil {
		return nil, errors.Wrap(err, "failed to decode request")
	}

	if _, err := hook.ParseEventType(string(event.Type)); err != nil {
		return nil, err
	}

	return &event, nil
}

// writeJSON writes the response body; a write fault is logged and dropped.
func writeJSON(conn net.Conn, log logger.Logger, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error("failed to marshal response", "error", err)

		return
	}

	data = append(data, '\n')

	if _, err := conn.Write(data); err != nil {
		log.Error("failed to write response", "error", err)
	}
}

// removeStaleSocket unlinks a leftover socket file. A socket that still
// accepts a dial belongs to a live daemon; binding over it is refused.
func removeStaleSocket(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return errors.Wrapf(err, "failed to stat socket %s", path)
	}

	conn, err := net.DialTimeout("unix", path, time.Second)
	if err == nil {
		conn.Close()

		return errors.Wrapf(ErrSocketInUse, "%s", path)
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "failed to remove stale socket %s", path)
	}

	return nil
}

// limitedReader caps how many bytes a request may read from the conn.
type limitedReader struct {
	conn      net.Conn
	remaining int
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.remaining <= 0 {
		return 0, ErrRequestTooLarge
	}

	if len(p) > l.remaining {
		p = p[:l.remaining]
	}

	n, err := l.conn.Read(p)
	l.remaining -= n

	return n, err //nolint:wrapcheck // io.Reader contract
}
