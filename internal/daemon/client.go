package daemon

import (
	"encoding/json"
	"net"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/smykla-labs/hookd/internal/server"
	"github.com/smykla-labs/hookd/pkg/hook"
)

const clientTimeout = 10 * time.Second

// Client speaks the one-request-per-connection socket protocol.
type Client struct {
	socketPath string
}

// NewClient creates a Client for the given socket.
func NewClient(socketPath string) *Client {
	return &Client{socketPath: socketPath}
}

// Send submits one event and returns the raw response body.
func (c *Client) Send(event *hook.Event) (json.RawMessage, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, clientTimeout)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to %s", c.socketPath)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(clientTimeout)); err != nil {
		return nil, errors.Wrap(err, "failed to set deadline")
	}

	if err := json.NewEncoder(conn).Encode(event); err != nil {
		return nil, errors.Wrap(err, "failed to send request")
	}

	var raw json.RawMessage
	if err := json.NewDecoder(conn).Decode(&raw); err != nil {
		return nil, errors.Wrap(err, "failed to read response")
	}

	return raw, nil
}

// Status queries the daemon's status endpoint.
func (c *Client) Status() (*server.StatusReport, error) {
	raw, err := c.Send(&hook.Event{Type: hook.EventTypeStatus})
	if err != nil {
		return nil, err
	}

	var report server.StatusReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, errors.Wrap(err, "failed to decode status report")
	}

	return &report, nil
}
