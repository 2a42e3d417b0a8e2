package register

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsforge/scannerctl/internal/console"
	"github.com/opsforge/scannerctl/internal/domain"
	"github.com/opsforge/scannerctl/internal/execx"
	"github.com/opsforge/scannerctl/internal/prompt"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type staticContainer struct {
	state domain.ContainerState
}

func (s staticContainer) State(context.Context) (domain.ContainerState, error) {
	return s.state, nil
}

// listeningConsole starts a TCP listener standing in for the console, so the
// reachability probe passes for real.
func listeningConsole(t *testing.T) (string, int) {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	addr := l.Addr().(*net.TCPAddr)
	return "127.0.0.1", addr.Port
}

type fixture struct {
	orch *Orchestrator
	fake *execx.Fake
	out  *bytes.Buffer
}

func newFixture(t *testing.T, fake *execx.Fake, state domain.ContainerState, answers string) *fixture {
	t.Helper()
	host, port := listeningConsole(t)
	out := &bytes.Buffer{}

	cc := console.NewClient(host, port, time.Second, discardLogger())
	orch := New("scanner-engine", "/opt/scanner/nsc.sh", host, port,
		fake, prompt.New(strings.NewReader(answers), out), cc,
		staticContainer{state: state}, out, discardLogger())

	return &fixture{orch: orch, fake: fake, out: out}
}

func TestRun_SuccessEndToEnd(t *testing.T) {
	fake := &execx.Fake{}
	fx := newFixture(t, fake, domain.StateRunning, "ABCD1234EF\nengine-west-1\n")

	outcome, err := fx.orch.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, outcome.Code)
	assert.Contains(t, fx.out.String(), "engine-west-1")
	assert.Contains(t, outcome.Message, "registered successfully")

	// The registration command got the operator's inputs.
	var execLine string
	for _, line := range fake.CommandLines() {
		if strings.Contains(line, "nsc.sh -t console") {
			execLine = line
		}
	}
	require.NotEmpty(t, execLine, "expected the in-container registration call")
	assert.Contains(t, execLine, "-a ABCD1234EF")
	assert.Contains(t, execLine, "-n engine-west-1")
	assert.Contains(t, execLine, "docker exec scanner-engine")
}

func TestRun_PrefilledInputsSkipPrompts(t *testing.T) {
	fake := &execx.Fake{}
	fx := newFixture(t, fake, domain.StateRunning, "")
	fx.orch.ActivationKey = "ABCD1234EF"
	fx.orch.EngineName = "engine-west-1"

	outcome, err := fx.orch.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, outcome.Code)
}

func TestRun_ContainerNotRunningIsTerminal(t *testing.T) {
	fake := &execx.Fake{}
	fx := newFixture(t, fake, domain.StateStopped, "")
	fx.orch.ActivationKey = "ABCD1234EF"
	fx.orch.EngineName = "engine-west-1"

	_, err := fx.orch.Run(context.Background())
	var notRunning domain.ErrContainerNotRunning
	require.ErrorAs(t, err, &notRunning)
	assert.Empty(t, fake.Calls, "no command may run against a stopped container")
}

func TestRun_MissingBinaryStopsBeforeExecution(t *testing.T) {
	fake := &execx.Fake{
		ExitFn: func(name string, args ...string) (int, error) {
			// docker exec <name> test -x <path>
			return 1, nil
		},
	}
	fx := newFixture(t, fake, domain.StateRunning, "")
	fx.orch.ActivationKey = "ABCD1234EF"
	fx.orch.EngineName = "engine-west-1"

	_, err := fx.orch.Run(context.Background())
	var missing domain.ErrScannerBinMissing
	require.ErrorAs(t, err, &missing)
	assert.Contains(t, err.Error(), "/opt/scanner/nsc.sh")

	for _, line := range fake.CommandLines() {
		assert.NotContains(t, line, "-a ", "registration must not be attempted")
	}
}

func TestRun_NonzeroExitPrintsChecklist(t *testing.T) {
	fake := &execx.Fake{
		ExitFn: func(name string, args ...string) (int, error) {
			if args[len(args)-2] == "-x" {
				return 0, nil
			}
			return 2, nil
		},
	}
	fx := newFixture(t, fake, domain.StateRunning, "")
	fx.orch.ActivationKey = "ABCD1234EF"
	fx.orch.EngineName = "engine-west-1"

	outcome, err := fx.orch.Run(context.Background())
	var failed domain.ErrRegistrationFailed
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, 2, failed.Code)
	assert.Equal(t, 2, outcome.Code)
	assert.Contains(t, outcome.Message, "exit code 2")

	require.Len(t, Checklist, 5)
	for i, item := range Checklist {
		assert.Contains(t, outcome.Message, fmt.Sprintf("%d. %s", i+1, item))
	}
}

func TestRun_UnreachableConsoleAbort(t *testing.T) {
	fake := &execx.Fake{}
	out := &bytes.Buffer{}

	// Reserve a port, then close it so the dial is refused.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()

	cc := console.NewClient("127.0.0.1", port, time.Second, discardLogger())
	orch := New("scanner-engine", "/opt/scanner/nsc.sh", "127.0.0.1", port,
		fake, prompt.New(strings.NewReader("n\n"), out), cc,
		staticContainer{state: domain.StateRunning}, out, discardLogger())
	orch.ActivationKey = "ABCD1234EF"
	orch.EngineName = "engine-west-1"

	_, err = orch.Run(context.Background())
	var aborted domain.ErrAborted
	require.ErrorAs(t, err, &aborted)
	assert.Contains(t, out.String(), "not reachable")
}

func TestRun_UnreachableConsoleContinue(t *testing.T) {
	fake := &execx.Fake{}
	out := &bytes.Buffer{}

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()

	cc := console.NewClient("127.0.0.1", port, time.Second, discardLogger())
	orch := New("scanner-engine", "/opt/scanner/nsc.sh", "127.0.0.1", port,
		fake, prompt.New(strings.NewReader("y\n"), out), cc,
		staticContainer{state: domain.StateRunning}, out, discardLogger())
	orch.ActivationKey = "ABCD1234EF"
	orch.EngineName = "engine-west-1"

	outcome, err := orch.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, outcome.Code)
}
