package parser

import (
	"strings"

	"github.com/cockroachdb/errors"
	"mvdan.cc/sh/v3/syntax"
)

var (
	// ErrEmptyCommand is returned when trying to parse an empty command.
	ErrEmptyCommand = errors.New("empty command")

	// ErrParseFailed is returned when parsing fails.
	ErrParseFailed = errors.New("failed to parse command")
)

// BashParser parses Bash command strings.
type BashParser struct {
	parser *syntax.Parser
}

// NewBashParser creates a BashParser.
func NewBashParser() *BashParser {
	return &BashParser{
		parser: syntax.NewParser(),
	}
}

// Parse extracts every simple command from the script, including those
// nested in pipes, chains, subshells, and command substitution.
func (p *BashParser) Parse(command string) ([]Command, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return nil, ErrEmptyCommand
	}

	file, err := p.parser.Parse(strings.NewReader(command), "")
	if err != nil {
		return nil, errors.Wrap(ErrParseFailed, err.Error())
	}

	var commands []Command

	syntax.Walk(file, func(node syntax.Node) bool {
		call, ok := node.(*syntax.CallExpr)
		if !ok || len(call.Args) == 0 {
			return true
		}

		name := wordToString(call.Args[0])
		if name == "" {
			return true
		}

		commands = append(commands, Command{
			Name: name,
			Args: wordsToStrings(call.Args[1:]),
		})

		return true
	})

	return commands, nil
}

// Filter returns the commands whose name matches.
func Filter(commands []Command, name string) []Command {
	var out []Command

	for _, cmd := range commands {
		if cmd.Name == name {
			out = append(out, cmd)
		}
	}

	return out
}
