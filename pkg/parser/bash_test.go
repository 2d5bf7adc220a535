package parser_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/smykla-labs/hookd/pkg/parser"
)

var _ = Describe("BashParser", func() {
	var p *parser.BashParser

	BeforeEach(func() {
		p = parser.NewBashParser()
	})

	names := func(commands []parser.Command) []string {
		out := make([]string, 0, len(commands))
		for _, cmd := range commands {
			out = append(out, cmd.Name)
		}

		return out
	}

	It("parses a single command with arguments", func() {
		commands, err := p.Parse("git push origin main")

		Expect(err).NotTo(HaveOccurred())
		Expect(commands).To(HaveLen(1))
		Expect(commands[0].Name).To(Equal("git"))
		Expect(commands[0].Args).To(Equal([]string{"push", "origin", "main"}))
	})

	It("finds every command in a pipeline", func() {
		commands, err := p.Parse("curl -s https://example.com | grep token | wc -l")

		Expect(err).NotTo(HaveOccurred())
		Expect(names(commands)).To(Equal([]string{"curl", "grep", "wc"}))
	})

	It("finds commands joined by && and ;", func() {
		commands, err := p.Parse("cd /tmp && make build; make test")

		Expect(err).NotTo(HaveOccurred())
		Expect(names(commands)).To(Equal([]string{"cd", "make", "make"}))
	})

	It("descends into subshells and command substitution", func() {
		commands, err := p.Parse("(rm -rf /etc) && echo $(whoami)")

		Expect(err).NotTo(HaveOccurred())
		Expect(names(commands)).To(ContainElements("rm", "echo", "whoami"))
	})

	It("flattens quoted arguments", func() {
		commands, err := p.Parse(`git commit -m 'fix: handle "quoted" paths'`)

		Expect(err).NotTo(HaveOccurred())
		Expect(commands[0].Args).To(ContainElement(`fix: handle "quoted" paths`))
	})

	It("rejects an empty command", func() {
		_, err := p.Parse("   ")

		Expect(err).To(MatchError(parser.ErrEmptyCommand))
	})

	It("reports unparseable input", func() {
		_, err := p.Parse("echo 'unterminated")

		Expect(err).To(MatchError(parser.ErrParseFailed))
	})
})

var _ = Describe("Filter", func() {
	It("keeps only commands with the given name", func() {
		p := parser.NewBashParser()

		commands, err := p.Parse("git fetch && ls && git push")
		Expect(err).NotTo(HaveOccurred())

		gits := parser.Filter(commands, "git")

		Expect(gits).To(HaveLen(2))
		Expect(gits[0].Args[0]).To(Equal("fetch"))
		Expect(gits[1].Args[0]).To(Equal("push"))
	})
})

var _ = Describe("Command", func() {
	It("matches exact long flags", func() {
		cmd := parser.Command{Name: "git", Args: []string{"push", "--force", "origin"}}

		Expect(cmd.HasFlag("--force")).To(BeTrue())
		Expect(cmd.HasFlag("--force-with-lease")).To(BeFalse())
	})

	It("matches short flags inside combined groups", func() {
		cmd := parser.Command{Name: "rm", Args: []string{"-rf", "/tmp/x"}}

		Expect(cmd.HasFlag("-f")).To(BeTrue())
		Expect(cmd.HasFlag("-r")).To(BeTrue())
		Expect(cmd.HasFlag("-i")).To(BeFalse())
	})

	It("does not treat long flags as combined groups", func() {
		cmd := parser.Command{Name: "git", Args: []string{"--fixup"}}

		Expect(cmd.HasFlag("-f")).To(BeFalse())
	})

	It("returns positionals without flags", func() {
		cmd := parser.Command{
			Name: "rm",
			Args: []string{"-rf", "--no-preserve-root", "/etc", "/usr"},
		}

		Expect(cmd.Positionals()).To(Equal([]string{"/etc", "/usr"}))
	})

	It("prints a shell-like string", func() {
		cmd := parser.Command{Name: "git", Args: []string{"push", "-f"}}

		Expect(cmd.String()).To(Equal("git push -f"))
	})
})
