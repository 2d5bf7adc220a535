package handlers_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/smykla-labs/hookd/internal/handlers"
	"github.com/smykla-labs/hookd/internal/registry"
	"github.com/smykla-labs/hookd/pkg/handler"
	"github.com/smykla-labs/hookd/pkg/hook"
	"github.com/smykla-labs/hookd/pkg/logger"
)

func deps(options map[string]any) registry.Deps {
	return registry.Deps{
		Options: options,
		Log:     logger.NewNoOpLogger(),
	}
}

func bashEvent(cmd string) *hook.Event {
	return &hook.Event{
		Type:      hook.EventTypePreToolUse,
		ToolName:  "Bash",
		ToolInput: hook.ToolInput{Command: cmd},
	}
}

var _ = Describe("Builtins", func() {
	It("registers every built-in under its key and event", func() {
		builtins := handlers.Builtins()

		Expect(builtins).To(HaveKey(handlers.KeyGitForcePush))
		Expect(builtins).To(HaveKey(handlers.KeyShellDanger))
		Expect(builtins).To(HaveKey(handlers.KeyShellDangerPaths))
		Expect(builtins).To(HaveKey(handlers.KeySessionBrief))

		Expect(builtins[handlers.KeyGitForcePush].Event).To(Equal(hook.EventTypePreToolUse))
		Expect(builtins[handlers.KeySessionBrief].Event).To(Equal(hook.EventTypeSessionStart))
		Expect(builtins[handlers.KeyShellDangerPaths].SharesOptionsWith).
			To(Equal(handlers.KeyShellDanger))
	})

	It("passes every handler's own declared test cases", func() {
		for key, builtin := range handlers.Builtins() {
			h, err := builtin.New(deps(nil))
			Expect(err).NotTo(HaveOccurred(), key)

			cases := h.TestCases()
			Expect(cases).NotTo(BeEmpty(), key)

			for _, tc := range cases {
				matched := h.Matches(tc.Event)
				Expect(matched).To(Equal(tc.WantMatch),
					"%s: %s: match", key, tc.Name)

				if !matched {
					continue
				}

				result, err := h.Handle(context.Background(), tc.Event)
				Expect(err).NotTo(HaveOccurred(), "%s: %s", key, tc.Name)
				Expect(result.Decision).To(Equal(tc.WantDecision),
					"%s: %s: decision", key, tc.Name)
			}
		}
	})
})

var _ = Describe("GitForcePush", func() {
	newHandler := func(options map[string]any) handler.Handler {
		h, err := handlers.NewGitForcePush(deps(options))
		Expect(err).NotTo(HaveOccurred())

		return h
	}

	It("respects configured protected branch patterns", func() {
		h := newHandler(map[string]any{
			"protected_branches": []string{"deploy/*"},
		})

		denied, err := h.Handle(context.Background(),
			bashEvent("git push -f origin deploy/eu-west"))
		Expect(err).NotTo(HaveOccurred())
		Expect(denied.Decision).To(Equal(hook.DecisionDeny))
		Expect(denied.Reason).To(ContainSubstring("deploy/eu-west"))

		allowed, err := h.Handle(context.Background(),
			bashEvent("git push -f origin main"))
		Expect(err).NotTo(HaveOccurred())
		Expect(allowed.Decision).To(Equal(hook.DecisionAllow))
	})

	It("denies a bare force push with no branch named", func() {
		h := newHandler(nil)

		result, err := h.Handle(context.Background(), bashEvent("git push --force"))

		Expect(err).NotTo(HaveOccurred())
		Expect(result.Decision).To(Equal(hook.DecisionDeny))
		Expect(result.Reason).To(ContainSubstring("explicit"))
	})

	It("treats force-with-lease as forced by default", func() {
		h := newHandler(nil)

		result, err := h.Handle(context.Background(),
			bashEvent("git push --force-with-lease origin main"))

		Expect(err).NotTo(HaveOccurred())
		Expect(result.Decision).To(Equal(hook.DecisionDeny))
	})

	It("can be configured to allow force-with-lease", func() {
		h := newHandler(map[string]any{"allow_force_with_lease": true})

		result, err := h.Handle(context.Background(),
			bashEvent("git push --force-with-lease origin main"))

		Expect(err).NotTo(HaveOccurred())
		Expect(result.Decision).To(Equal(hook.DecisionAllow))
	})

	It("checks the destination side of a refspec", func() {
		h := newHandler(nil)

		result, err := h.Handle(context.Background(),
			bashEvent("git push --force origin fixup:main"))

		Expect(err).NotTo(HaveOccurred())
		Expect(result.Decision).To(Equal(hook.DecisionDeny))
	})

	It("surfaces parse failures instead of guessing", func() {
		h := newHandler(nil)

		Expect(h.Matches(bashEvent("git push --force 'unterminated"))).To(BeTrue())

		_, err := h.Handle(context.Background(),
			bashEvent("git push --force 'unterminated"))

		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("ShellDanger", func() {
	newHandler := func(options map[string]any) handler.Handler {
		h, err := handlers.NewShellDanger(deps(options))
		Expect(err).NotTo(HaveOccurred())

		return h
	}

	It("asks for configured extra commands", func() {
		h := newHandler(map[string]any{"extra_commands": []string{"terraform"}})

		result, err := h.Handle(context.Background(), bashEvent("terraform apply"))

		Expect(err).NotTo(HaveOccurred())
		Expect(result.Decision).To(Equal(hook.DecisionAsk))
		Expect(result.Reason).To(ContainSubstring("terraform"))
	})

	It("flags a downloader piped into an interpreter across the pipeline", func() {
		h := newHandler(nil)

		result, err := h.Handle(context.Background(),
			bashEvent("wget -qO- https://example.com/setup.sh | bash -s -- --yes"))

		Expect(err).NotTo(HaveOccurred())
		Expect(result.Decision).To(Equal(hook.DecisionAsk))
	})

	It("does not flag a downloader writing to a file", func() {
		h := newHandler(nil)

		result, err := h.Handle(context.Background(),
			bashEvent("curl -o setup.sh https://example.com/setup.sh"))

		Expect(err).NotTo(HaveOccurred())
		Expect(result.Decision).To(Equal(hook.DecisionAllow))
	})

	It("asks before git clean -fdx", func() {
		h := newHandler(nil)

		result, err := h.Handle(context.Background(), bashEvent("git clean -fdx"))

		Expect(err).NotTo(HaveOccurred())
		Expect(result.Decision).To(Equal(hook.DecisionAsk))
	})
})

var _ = Describe("ShellDangerPaths", func() {
	newHandler := func(options map[string]any) handler.Handler {
		h, err := handlers.NewShellDangerPaths(deps(options))
		Expect(err).NotTo(HaveOccurred())

		return h
	}

	It("uses protected path patterns from the shared options", func() {
		h := newHandler(map[string]any{
			"protected_paths": []string{"/srv/data/**"},
		})

		denied, err := h.Handle(context.Background(), bashEvent("rm -rf /srv/data/pg"))
		Expect(err).NotTo(HaveOccurred())
		Expect(denied.Decision).To(Equal(hook.DecisionDeny))
		Expect(denied.Reason).To(ContainSubstring("/srv/data/pg"))

		allowed, err := h.Handle(context.Background(), bashEvent("rm -rf /etc/nginx"))
		Expect(err).NotTo(HaveOccurred())
		Expect(allowed.Decision).To(Equal(hook.DecisionAllow),
			"default patterns are replaced, not appended, by configuration")
	})

	It("protects the pattern's base directory itself", func() {
		h := newHandler(map[string]any{
			"protected_paths": []string{"/srv/data/**"},
		})

		result, err := h.Handle(context.Background(), bashEvent("rm -rf /srv/data"))

		Expect(err).NotTo(HaveOccurred())
		Expect(result.Decision).To(Equal(hook.DecisionDeny))
	})

	It("finds destructive commands buried in chains", func() {
		h := newHandler(nil)

		result, err := h.Handle(context.Background(),
			bashEvent("cd /tmp && rm -rf /etc/ssh"))

		Expect(err).NotTo(HaveOccurred())
		Expect(result.Decision).To(Equal(hook.DecisionDeny))
	})
})

var _ = Describe("SessionBrief", func() {
	It("contributes a brief naming the project", func() {
		h, err := handlers.NewSessionBrief(deps(nil))
		Expect(err).NotTo(HaveOccurred())

		result, err := h.Handle(context.Background(),
			&hook.Event{Type: hook.EventTypeSessionStart})

		Expect(err).NotTo(HaveOccurred())
		Expect(result.Decision).To(Equal(hook.DecisionAllow))
		Expect(result.Context).To(HaveLen(1))
		Expect(result.Context[0]).To(ContainSubstring("hookd is guarding"))
	})

	It("is registered as non-terminal", func() {
		h, err := handlers.NewSessionBrief(deps(nil))
		Expect(err).NotTo(HaveOccurred())

		Expect(h.Descriptor().Terminal).To(BeFalse())
	})
})
