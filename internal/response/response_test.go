package response_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/smykla-labs/hookd/internal/response"
	"github.com/smykla-labs/hookd/pkg/hook"
)

var _ = Describe("Translate", func() {
	Context("for PreToolUse", func() {
		It("carries an allow with accumulated context", func() {
			env := response.Translate(hook.EventTypePreToolUse, hook.ChainResult{
				Decision: hook.DecisionAllow,
				Context:  []string{"first", "second"},
			})

			Expect(env.HookSpecificOutput).NotTo(BeNil())
			Expect(env.HookSpecificOutput.HookEventName).To(Equal("PreToolUse"))
			Expect(env.HookSpecificOutput.PermissionDecision).To(Equal("allow"))
			Expect(env.HookSpecificOutput.AdditionalContext).To(Equal("first\nsecond"))
			Expect(env.HookSpecificOutput.PermissionDecisionReason).To(BeEmpty())
		})

		It("carries a deny with the reason in both fields", func() {
			env := response.Translate(hook.EventTypePreToolUse, hook.ChainResult{
				Decision: hook.DecisionDeny,
				Reason:   "force push to protected branch",
			})

			Expect(env.HookSpecificOutput.PermissionDecision).To(Equal("deny"))
			Expect(env.HookSpecificOutput.PermissionDecisionReason).
				To(Equal("force push to protected branch"))
			Expect(env.SystemMessage).To(Equal("force push to protected branch"))
		})

		It("carries an ask decision verbatim", func() {
			env := response.Translate(hook.EventTypePreToolUse, hook.ChainResult{
				Decision: hook.DecisionAsk,
				Reason:   "confirm this",
			})

			Expect(env.HookSpecificOutput.PermissionDecision).To(Equal("ask"))
		})
	})

	Context("for Stop and PostToolUse", func() {
		It("uses the top-level block shape for a deny", func() {
			env := response.Translate(hook.EventTypeStop, hook.ChainResult{
				Decision: hook.DecisionDeny,
				Reason:   "tests are failing",
			})

			Expect(env.Decision).To(Equal("block"))
			Expect(env.Reason).To(Equal("tests are failing"))
			Expect(env.HookSpecificOutput).To(BeNil())
		})

		It("serializes a clean allow to an empty object", func() {
			env := response.Translate(hook.EventTypePostToolUse, hook.ChainResult{
				Decision: hook.DecisionAllow,
			})

			data, err := json.Marshal(env)

			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(Equal("{}"))
		})
	})

	Context("for SessionStart", func() {
		It("flattens context into additionalContext", func() {
			env := response.Translate(hook.EventTypeSessionStart, hook.ChainResult{
				Decision: hook.DecisionAllow,
				Context:  []string{"project brief", "second note"},
			})

			Expect(env.HookSpecificOutput.AdditionalContext).
				To(Equal("project brief\nsecond note"))
			Expect(env.HookSpecificOutput.PermissionDecision).To(BeEmpty())
		})

		It("returns an empty envelope without context", func() {
			env := response.Translate(hook.EventTypeSessionStart, hook.ChainResult{
				Decision: hook.DecisionAllow,
			})

			Expect(env.HookSpecificOutput).To(BeNil())
		})
	})
})
