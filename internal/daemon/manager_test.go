package daemon_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/smykla-labs/hookd/internal/daemon"
	"github.com/smykla-labs/hookd/internal/procctx"
	"github.com/smykla-labs/hookd/pkg/config"
	"github.com/smykla-labs/hookd/pkg/logger"
)

var _ = Describe("Manager", func() {
	It("refuses to run alongside a live daemon for the same project", func() {
		log := logger.NewNoOpLogger()

		GinkgoT().Setenv(procctx.SocketPathEnv, "")

		pctx, err := procctx.New(GinkgoT().TempDir(), log)
		Expect(err).NotTo(HaveOccurred())

		// The current test process stands in for the live daemon.
		Expect(daemon.WritePIDFile(pctx.PIDFile)).To(Succeed())

		mgr := daemon.NewManager(pctx, &config.Document{}, nil, "test", log)

		runErr := mgr.Run(context.Background())

		Expect(runErr).To(MatchError(daemon.ErrAlreadyRunning))

		// The live daemon's PID file was not overwritten or removed.
		pid, err := daemon.ReadPIDFile(pctx.PIDFile)
		Expect(err).NotTo(HaveOccurred())
		Expect(daemon.ProcessAlive(pid)).To(BeTrue())
	})
})
