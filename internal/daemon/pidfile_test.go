package daemon_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/smykla-labs/hookd/internal/daemon"
)

var _ = Describe("PID file", func() {
	var path string

	BeforeEach(func() {
		path = filepath.Join(GinkgoT().TempDir(), "hookd.pid")
	})

	It("writes and reads back the current process ID", func() {
		Expect(daemon.WritePIDFile(path)).To(Succeed())

		pid, err := daemon.ReadPIDFile(path)

		Expect(err).NotTo(HaveOccurred())
		Expect(pid).To(Equal(os.Getpid()))
	})

	It("writes the file readable only by the owner", func() {
		Expect(daemon.WritePIDFile(path)).To(Succeed())

		info, err := os.Stat(path)

		Expect(err).NotTo(HaveOccurred())
		Expect(info.Mode().Perm()).To(Equal(os.FileMode(0o600)))
	})

	It("reports a missing file as ErrNoPIDFile", func() {
		_, err := daemon.ReadPIDFile(path)

		Expect(err).To(MatchError(daemon.ErrNoPIDFile))
	})

	It("rejects garbage content", func() {
		Expect(os.WriteFile(path, []byte("not-a-pid\n"), 0o600)).To(Succeed())

		_, err := daemon.ReadPIDFile(path)

		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("corrupt"))
	})

	It("rejects a non-positive process ID", func() {
		Expect(os.WriteFile(path, []byte("-4\n"), 0o600)).To(Succeed())

		_, err := daemon.ReadPIDFile(path)

		Expect(err).To(HaveOccurred())
	})

	It("tolerates removing a file that is already gone", func() {
		Expect(daemon.RemovePIDFile(path)).To(Succeed())
	})

	It("removes an existing file", func() {
		Expect(daemon.WritePIDFile(path)).To(Succeed())
		Expect(daemon.RemovePIDFile(path)).To(Succeed())

		_, err := os.Stat(path)
		Expect(os.IsNotExist(err)).To(BeTrue())
	})
})

var _ = Describe("process liveness", func() {
	It("sees the current process as alive", func() {
		Expect(daemon.ProcessAlive(os.Getpid())).To(BeTrue())
	})

	It("sees an impossible process ID as dead", func() {
		// Max PID on Linux is bounded well below this.
		Expect(daemon.ProcessAlive(1 << 30)).To(BeFalse())
	})
})
