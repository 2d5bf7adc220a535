package daemon

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/hako/durafmt"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/smykla-labs/hookd/internal/server"
)

// Status output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

const uptimeDisplayUnits = 2

// ErrUnknownFormat is returned for an unsupported status output format.
var ErrUnknownFormat = errors.New("unknown output format")

// FormatStatus renders a status report in the requested format.
func FormatStatus(report *server.StatusReport, format string) (string, error) {
	switch format {
	case FormatText, "":
		return formatText(report), nil
	case FormatJSON:
		out, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return "", errors.Wrap(err, "failed to marshal status")
		}

		return string(out), nil
	case FormatYAML:
		out, err := yaml.Marshal(report)
		if err != nil {
			return "", errors.Wrap(err, "failed to marshal status")
		}

		return string(out), nil
	default:
		return "", errors.Wrapf(ErrUnknownFormat, "%q", format)
	}
}

// formatText renders the human-readable status: a summary block followed
// by the chain table.
func formatText(report *server.StatusReport) string {
	var b strings.Builder

	uptime := durafmt.Parse(time.Since(report.StartedAt).Round(time.Second)).
		LimitFirstN(uptimeDisplayUnits).String()

	fmt.Fprintf(&b, "hookd %s\n", report.Version)
	fmt.Fprintf(&b, "  status:   running (pid %d)\n", report.PID)
	fmt.Fprintf(&b, "  project:  %s\n", report.Project)
	fmt.Fprintf(&b, "  socket:   %s\n", report.Socket)
	fmt.Fprintf(&b, "  uptime:   %s\n", uptime)
	fmt.Fprintf(&b, "  requests: %s (%s denied, %s asked, %s faults)\n",
		humanize.Comma(int64(report.Stats.RequestsServed)), //nolint:gosec // counter fits int64
		humanize.Comma(int64(report.Stats.Denied)),         //nolint:gosec // counter fits int64
		humanize.Comma(int64(report.Stats.Asked)),          //nolint:gosec // counter fits int64
		humanize.Comma(int64(report.Stats.Faults)),         //nolint:gosec // counter fits int64
	)

	if table := chainTable(report.Chains); table != "" {
		b.WriteString("\n")
		b.WriteString(table)
	}

	return b.String()
}

// chainTable renders the registered chains as an event/handlers table.
func chainTable(chains map[string][]string) string {
	if len(chains) == 0 {
		return ""
	}

	events := make([]string, 0, len(chains))
	for event := range chains {
		events = append(events, event)
	}

	sort.Strings(events)

	var buf bytes.Buffer

	t := tablewriter.NewTable(&buf)
	t.Header([]string{"Event", "Handlers"})

	for _, event := range events {
		_ = t.Append([]string{event, strings.Join(chains[event], ", ")})
	}

	_ = t.Render()

	return buf.String()
}

// StatusNotRunning renders the stopped-state message.
func StatusNotRunning(project string) string {
	return fmt.Sprintf("hookd\n  status:  stopped\n  project: %s\n", project)
}
