//go:build integration

package provider

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"sctrace/internal/tracing"
)

// checkIntegrationTestRequirements checks if we can run integration tests
func checkIntegrationTestRequirements(t *testing.T) {
	// Check if running as root
	if os.Geteuid() != 0 {
		t.Skip("Integration tests require root privileges (run with sudo)")
	}

	// Check if BPF filesystem is mounted
	if _, err := os.Stat("/sys/fs/bpf"); err != nil {
		t.Skip("BPF filesystem not mounted")
	}

	// raw_syscalls tracepoints live in tracefs
	if _, err := os.Stat("/sys/kernel/tracing/events/raw_syscalls"); err != nil {
		if _, err := os.Stat("/sys/kernel/debug/tracing/events/raw_syscalls"); err != nil {
			t.Skip("raw_syscalls tracepoints not available")
		}
	}
}

func newTestKernelProvider(t *testing.T) *KernelProvider {
	t.Helper()
	provider, err := NewKernelProvider(KernelOptions{PollTimeout: 50 * time.Millisecond}, zap.NewNop())
	require.NoError(t, err, "load kernel session")
	t.Cleanup(func() { provider.Close() })
	return provider
}

// waitForSyscall reads events until id shows up or the deadline passes.
func waitForSyscall(t *testing.T, p Provider, id uint32, within time.Duration) bool {
	t.Helper()
	deadline := time.Now().Add(within)
	for time.Now().Before(deadline) {
		e, err := p.ReadEvent()
		if err != nil {
			continue
		}
		if e.SyscallID == id {
			return true
		}
	}
	return false
}

func selfComm() string {
	return tracing.TaskCommName(filepath.Base(os.Args[0]))
}

func TestIntegration_KernelProvider_LoadAndAttach(t *testing.T) {
	checkIntegrationTestRequirements(t)

	provider := newTestKernelProvider(t)
	assert.False(t, provider.Session().IsActive())

	_, ok := provider.Session().GetTarget()
	assert.False(t, ok, "fresh config map reads as absent")
}

func TestIntegration_KernelProvider_SessionRoundTrip(t *testing.T) {
	checkIntegrationTestRequirements(t)

	provider := newTestKernelProvider(t)
	session := provider.Session()

	require.NoError(t, session.SetTarget("sctrace-test"))
	target, ok := session.GetTarget()
	require.True(t, ok)
	assert.Equal(t, "sctrace-test", target.String())

	require.NoError(t, session.OnEnterTrigger())
	assert.True(t, session.IsActive())
	require.NoError(t, session.OnExitTrigger())
	assert.False(t, session.IsActive())
}

func TestIntegration_KernelProvider_ArmedSessionEmits(t *testing.T) {
	checkIntegrationTestRequirements(t)

	provider := newTestKernelProvider(t)
	session := provider.Session()

	require.NoError(t, session.SetTarget(selfComm()))
	require.NoError(t, session.OnEnterTrigger())

	go func() {
		for i := 0; i < 20; i++ {
			unix.Getppid()
			time.Sleep(10 * time.Millisecond)
		}
	}()

	assert.True(t, waitForSyscall(t, provider, unix.SYS_GETPPID, 2*time.Second),
		"expected getppid from %s", selfComm())

	dropped, err := provider.Dropped()
	require.NoError(t, err)
	t.Logf("dropped events: %d", dropped)
}

func TestIntegration_KernelProvider_InactiveSessionIsSilent(t *testing.T) {
	checkIntegrationTestRequirements(t)

	provider := newTestKernelProvider(t)
	require.NoError(t, provider.Session().SetTarget(selfComm()))

	unix.Getppid()
	assert.False(t, waitForSyscall(t, provider, unix.SYS_GETPPID, 300*time.Millisecond))
}

//go:noinline
func tracedWork() int {
	return unix.Getppid()
}

func TestIntegration_KernelProvider_AttachFunction(t *testing.T) {
	checkIntegrationTestRequirements(t)

	provider := newTestKernelProvider(t)
	require.NoError(t, provider.Session().SetTarget(selfComm()))

	self, err := os.Executable()
	require.NoError(t, err)
	require.NoError(t, provider.AttachFunction(self, "sctrace/internal/provider.tracedWork", os.Getpid()))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 20; i++ {
			tracedWork()
			time.Sleep(10 * time.Millisecond)
		}
	}()

	assert.True(t, waitForSyscall(t, provider, unix.SYS_GETPPID, 2*time.Second))
	<-done
	assert.False(t, provider.Session().IsActive(), "exit trigger disarms after the call")
}

func TestIntegration_KernelProvider_AttachUnknownSymbolLeavesNothing(t *testing.T) {
	checkIntegrationTestRequirements(t)

	provider := newTestKernelProvider(t)
	self, err := os.Executable()
	require.NoError(t, err)

	err = provider.AttachFunction(self, "sctrace/internal/provider.doesNotExist", os.Getpid())
	assert.Error(t, err)
	assert.Empty(t, provider.triggers)
}
