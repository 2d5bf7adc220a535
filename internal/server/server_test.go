package server_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"path/filepath"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/smykla-labs/hookd/internal/engine"
	"github.com/smykla-labs/hookd/internal/response"
	"github.com/smykla-labs/hookd/internal/server"
	"github.com/smykla-labs/hookd/pkg/handler"
	"github.com/smykla-labs/hookd/pkg/hook"
	"github.com/smykla-labs/hookd/pkg/logger"
)

// forcePushGuard denies force pushes to main; everything else passes.
type forcePushGuard struct{}

func (forcePushGuard) Descriptor() handler.Descriptor {
	return handler.Descriptor{Key: "force-push-guard", Priority: 10, Terminal: true}
}

func (forcePushGuard) Matches(event *hook.Event) bool {
	return event.IsBashTool()
}

func (forcePushGuard) Handle(_ context.Context, event *hook.Event) (*handler.Result, error) {
	cmd := event.GetCommand()
	if strings.Contains(cmd, "--force") && strings.Contains(cmd, "main") {
		return handler.Deny("force push to protected branch main"), nil
	}

	return handler.Allow(), nil
}

func (forcePushGuard) TestCases() []handler.TestCase {
	return []handler.TestCase{{Name: "guard"}}
}

// echoAdvisor contributes the command back as context.
type echoAdvisor struct{}

func (echoAdvisor) Descriptor() handler.Descriptor {
	return handler.Descriptor{Key: "echo-advisor", Priority: 5}
}

func (echoAdvisor) Matches(event *hook.Event) bool { return event.IsBashTool() }

func (echoAdvisor) Handle(_ context.Context, event *hook.Event) (*handler.Result, error) {
	return handler.Advise("observed: " + event.GetCommand()), nil
}

func (echoAdvisor) TestCases() []handler.TestCase {
	return []handler.TestCase{{Name: "advisor"}}
}

var _ = Describe("Server", func() {
	var (
		socketPath string
		cancel     context.CancelFunc
		done       chan error
	)

	startServer := func(chains map[hook.EventType]*engine.Chain) {
		socketPath = filepath.Join(GinkgoT().TempDir(), "hookd.sock")

		log := logger.NewNoOpLogger()
		router := engine.NewRouter(chains, log)

		srv := server.New(router, server.Options{
			SocketPath:     socketPath,
			Project:        "acme/widgets",
			Version:        "test",
			MaxConnections: 8,
			ShutdownGrace:  time.Second,
		}, log)

		var ctx context.Context
		ctx, cancel = context.WithCancel(context.Background())

		done = make(chan error, 1)

		go func() {
			done <- srv.Serve(ctx)
		}()

		Eventually(func() error {
			conn, err := net.Dial("unix", socketPath)
			if err == nil {
				conn.Close()
			}

			return err
		}).WithTimeout(2 * time.Second).Should(Succeed())
	}

	defaultChains := func() map[hook.EventType]*engine.Chain {
		log := logger.NewNoOpLogger()

		return map[hook.EventType]*engine.Chain{
			hook.EventTypePreToolUse: engine.NewChain(
				hook.EventTypePreToolUse,
				[]handler.Handler{echoAdvisor{}, forcePushGuard{}},
				time.Second,
				log,
			),
		}
	}

	roundTrip := func(payload string) map[string]any {
		conn, err := net.Dial("unix", socketPath)
		Expect(err).NotTo(HaveOccurred())

		defer conn.Close()

		_, err = conn.Write([]byte(payload))
		Expect(err).NotTo(HaveOccurred())

		var decoded map[string]any
		Expect(json.NewDecoder(conn).Decode(&decoded)).To(Succeed())

		return decoded
	}

	AfterEach(func() {
		cancel()
		Eventually(done).WithTimeout(3 * time.Second).Should(Receive(Succeed()))
	})

	It("denies a forbidden command end to end", func() {
		startServer(defaultChains())

		decoded := roundTrip(`{
			"hook_event_name": "PreToolUse",
			"tool_name": "Bash",
			"tool_input": {"command": "git push --force origin main"}
		}`)

		out := decoded["hookSpecificOutput"].(map[string]any)
		Expect(out["permissionDecision"]).To(Equal("deny"))
		Expect(out["permissionDecisionReason"]).
			To(Equal("force push to protected branch main"))
		Expect(out["additionalContext"]).
			To(ContainSubstring("observed: git push --force origin main"))
	})

	It("allows a clean command with advisory context", func() {
		startServer(defaultChains())

		decoded := roundTrip(`{
			"hook_event_name": "PreToolUse",
			"tool_name": "Bash",
			"tool_input": {"command": "git status"}
		}`)

		out := decoded["hookSpecificOutput"].(map[string]any)
		Expect(out["permissionDecision"]).To(Equal("allow"))
		Expect(out["additionalContext"]).To(Equal("observed: git status"))
	})

	It("answers unregistered event types with a plain allow", func() {
		startServer(defaultChains())

		decoded := roundTrip(`{"hook_event_name": "Notification"}`)

		Expect(decoded).To(BeEmpty())
	})

	It("rejects malformed requests without affecting later ones", func() {
		startServer(defaultChains())

		bad := roundTrip(`{"hook_event_name": "NoSuchEvent"}`)
		Expect(bad).To(HaveKey("error"))

		good := roundTrip(`{
			"hook_event_name": "PreToolUse",
			"tool_name": "Bash",
			"tool_input": {"command": "git status"}
		}`)
		out := good["hookSpecificOutput"].(map[string]any)
		Expect(out["permissionDecision"]).To(Equal("allow"))
	})

	It("keeps concurrent connections isolated", func() {
		startServer(defaultChains())

		const workers = 16

		var wg sync.WaitGroup

		results := make([]map[string]any, workers)

		for i := range workers {
			wg.Add(1)

			go func(n int) {
				defer wg.Done()
				defer GinkgoRecover()

				cmd := fmt.Sprintf("echo request-%d", n)
				results[n] = roundTrip(fmt.Sprintf(`{
					"hook_event_name": "PreToolUse",
					"tool_name": "Bash",
					"tool_input": {"command": %q}
				}`, cmd))
			}(i)
		}

		wg.Wait()

		for i, decoded := range results {
			out := decoded["hookSpecificOutput"].(map[string]any)
			Expect(out["permissionDecision"]).To(Equal("allow"))
			Expect(out["additionalContext"]).
				To(Equal(fmt.Sprintf("observed: echo request-%d", i)),
					"each connection must receive its own response")
		}
	})

	It("serves the status endpoint", func() {
		startServer(defaultChains())

		decoded := roundTrip(`{"hook_event_name": "Status"}`)

		var report server.StatusReport
		raw, err := json.Marshal(decoded)
		Expect(err).NotTo(HaveOccurred())
		Expect(json.Unmarshal(raw, &report)).To(Succeed())

		Expect(report.Project).To(Equal("acme/widgets"))
		Expect(report.Version).To(Equal("test"))
		Expect(report.Chains).To(HaveKey("PreToolUse"))
		Expect(report.Chains["PreToolUse"]).
			To(Equal([]string{"echo-advisor", "force-push-guard"}))
	})

	It("counts served and denied requests", func() {
		startServer(defaultChains())

		roundTrip(`{
			"hook_event_name": "PreToolUse",
			"tool_name": "Bash",
			"tool_input": {"command": "git push --force origin main"}
		}`)
		roundTrip(`{
			"hook_event_name": "PreToolUse",
			"tool_name": "Bash",
			"tool_input": {"command": "git status"}
		}`)

		decoded := roundTrip(`{"hook_event_name": "Status"}`)
		stats := decoded["stats"].(map[string]any)

		Expect(stats["requests_served"]).To(BeEquivalentTo(2))
		Expect(stats["denied"]).To(BeEquivalentTo(1))
	})

	It("refuses to bind over a socket with a live owner", func() {
		startServer(defaultChains())

		log := logger.NewNoOpLogger()
		second := server.New(engine.NewRouter(nil, log), server.Options{
			SocketPath:     socketPath,
			Project:        "acme/widgets",
			Version:        "test",
			MaxConnections: 8,
			ShutdownGrace:  time.Second,
		}, log)

		err := second.Serve(context.Background())
		Expect(err).To(MatchError(server.ErrSocketInUse))

		// The first server still owns the socket and keeps answering.
		decoded := roundTrip(`{
			"hook_event_name": "PreToolUse",
			"tool_name": "Bash",
			"tool_input": {"command": "git status"}
		}`)
		out := decoded["hookSpecificOutput"].(map[string]any)
		Expect(out["permissionDecision"]).To(Equal("allow"))
	})

	It("removes the socket file on shutdown", func() {
		startServer(defaultChains())

		path := socketPath
		cancel()
		Eventually(done).WithTimeout(3 * time.Second).Should(Receive(Succeed()))

		Expect(path).NotTo(BeAnExistingFile())

		// Restart for AfterEach symmetry.
		startServer(defaultChains())
	})
})

var _ = Describe("Envelope wire format", func() {
	It("matches the documented permission shape", func() {
		env := response.Translate(hook.EventTypePreToolUse, hook.ChainResult{
			Decision: hook.DecisionDeny,
			Reason:   "nope",
			Context:  []string{"ctx"},
		})

		data, err := json.Marshal(env)

		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(MatchJSON(`{
			"hookSpecificOutput": {
				"hookEventName": "PreToolUse",
				"permissionDecision": "deny",
				"permissionDecisionReason": "nope",
				"additionalContext": "ctx"
			},
			"systemMessage": "nope"
		}`))
	})
})
