// Package parser extracts simple commands from Bash command strings using
// mvdan.cc/sh. Handlers inspect the extracted commands instead of
// regex-matching raw strings, so pipes, chains, subshells, and command
// substitution are all seen.
package parser

import (
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// Command is one simple command found in a script.
type Command struct {
	// Name is the command name (e.g. "git").
	Name string

	// Args are the command arguments.
	Args []string
}

// String returns the command as a shell-like string.
func (c *Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}

	return c.Name + " " + strings.Join(c.Args, " ")
}

// HasFlag reports whether any argument equals one of the given flags, or
// carries one of the given short flag letters in a combined group like
// "-rf".
func (c *Command) HasFlag(flags ...string) bool {
	for _, arg := range c.Args {
		for _, flag := range flags {
			if arg == flag {
				return true
			}

			if len(flag) == 2 && flag[0] == '-' && isCombinedShortFlag(arg) &&
				strings.ContainsRune(arg[1:], rune(flag[1])) {
				return true
			}
		}
	}

	return false
}

// Positionals returns the non-flag arguments.
func (c *Command) Positionals() []string {
	out := make([]string, 0, len(c.Args))

	for _, arg := range c.Args {
		if !strings.HasPrefix(arg, "-") {
			out = append(out, arg)
		}
	}

	return out
}

func isCombinedShortFlag(arg string) bool {
	return len(arg) > 1 && arg[0] == '-' && arg[1] != '-'
}

// wordToString flattens a word to its literal text, descending into
// quoting. Expansions that cannot be resolved statically contribute
// nothing.
func wordToString(word *syntax.Word) string {
	if word == nil {
		return ""
	}

	var b strings.Builder

	for _, part := range word.Parts {
		switch p := part.(type) {
		case *syntax.Lit:
			b.WriteString(p.Value)
		case *syntax.SglQuoted:
			b.WriteString(p.Value)
		case *syntax.DblQuoted:
			for _, inner := range p.Parts {
				if lit, ok := inner.(*syntax.Lit); ok {
					b.WriteString(lit.Value)
				}
			}
		}
	}

	return b.String()
}

func wordsToStrings(words []*syntax.Word) []string {
	out := make([]string, 0, len(words))

	for _, word := range words {
		if s := wordToString(word); s != "" {
			out = append(out, s)
		}
	}

	return out
}
