package parser_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/smykla-labs/hookd/pkg/parser"
)

var _ = Describe("ParseGitCommand", func() {
	parse := func(args ...string) *parser.GitCommand {
		git, err := parser.ParseGitCommand(parser.Command{Name: "git", Args: args})
		Expect(err).NotTo(HaveOccurred())

		return git
	}

	It("rejects a non-git command", func() {
		_, err := parser.ParseGitCommand(parser.Command{Name: "hg", Args: []string{"push"}})

		Expect(err).To(MatchError(parser.ErrNotGitCommand))
	})

	It("rejects a git command with no subcommand", func() {
		_, err := parser.ParseGitCommand(parser.Command{Name: "git", Args: []string{"-P"}})

		Expect(err).To(MatchError(parser.ErrNoSubcommand))
	})

	It("separates subcommand, flags, and positionals", func() {
		git := parse("push", "--force", "origin", "main")

		Expect(git.Subcommand).To(Equal("push"))
		Expect(git.Flags).To(Equal([]string{"--force"}))
		Expect(git.Args).To(Equal([]string{"origin", "main"}))
	})

	It("skips global flags before the subcommand", func() {
		git := parse("-C", "/srv/repo", "--no-pager", "push", "-f")

		Expect(git.Subcommand).To(Equal("push"))
		Expect(git.Flags).To(Equal([]string{"-f"}))
	})

	It("skips global key=value flags", func() {
		git := parse("--git-dir=/srv/repo/.git", "status")

		Expect(git.Subcommand).To(Equal("status"))
	})

	It("splits combined short flag groups", func() {
		git := parse("clean", "-fdx")

		Expect(git.Flags).To(Equal([]string{"-f", "-d", "-x"}))
	})

	It("keeps refspecs as positionals", func() {
		git := parse("push", "origin", "fixup:main")

		Expect(git.Args).To(Equal([]string{"origin", "fixup:main"}))
	})
})

var _ = Describe("GitCommand.HasFlag", func() {
	It("matches bare flags and their =value forms", func() {
		git := &parser.GitCommand{
			Subcommand: "push",
			Flags:      []string{"--force-with-lease=origin/main"},
		}

		Expect(git.HasFlag("--force-with-lease")).To(BeTrue())
		Expect(git.HasFlag("--force")).To(BeFalse())
	})

	It("matches any of several candidates", func() {
		git := &parser.GitCommand{Subcommand: "push", Flags: []string{"-f"}}

		Expect(git.HasFlag("--force", "-f")).To(BeTrue())
	})
})
