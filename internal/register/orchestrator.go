// Package register runs the scanner registration handshake against the
// management console, from operator input to the final outcome banner.
package register

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/opsforge/scannerctl/internal/console"
	"github.com/opsforge/scannerctl/internal/domain"
	"github.com/opsforge/scannerctl/internal/execx"
	"github.com/opsforge/scannerctl/internal/prompt"
)

// Checklist is printed verbatim after a failed registration.
var Checklist = []string{
	"the activation key is correct and has not expired",
	"this host has network connectivity",
	"the management console is running and reachable",
	"no firewall is blocking the console port",
	"the engine name is not already registered on the console",
}

// ContainerStater reports the scanner container's state.
type ContainerStater interface {
	State(ctx context.Context) (domain.ContainerState, error)
}

// Orchestrator walks the linear registration state machine. The only loop is
// input revalidation; every failure is either operator-overridable or
// terminal.
type Orchestrator struct {
	containerName string
	binPath       string
	consoleHost   string
	consolePort   int

	// Prefilled values skip the corresponding prompt (non-interactive runs).
	ActivationKey string
	EngineName    string

	runner    execx.Runner
	prompter  *prompt.Prompter
	console   *console.Client
	container ContainerStater
	out       io.Writer
	logger    *slog.Logger
}

func New(containerName, binPath, consoleHost string, consolePort int,
	runner execx.Runner, prompter *prompt.Prompter, consoleClient *console.Client,
	container ContainerStater, out io.Writer, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		containerName: containerName,
		binPath:       binPath,
		consoleHost:   consoleHost,
		consolePort:   consolePort,
		runner:        runner,
		prompter:      prompter,
		console:       consoleClient,
		container:     container,
		out:           out,
		logger:        logger,
	}
}

// Run executes the registration workflow once. The returned Outcome carries
// the registration command's exit code; a nonzero code also yields
// ErrRegistrationFailed so callers exit nonzero.
func (o *Orchestrator) Run(ctx context.Context) (domain.Outcome, error) {
	req, err := o.collect()
	if err != nil {
		return domain.Outcome{Code: -1}, err
	}

	if err := o.checkContainer(ctx); err != nil {
		return domain.Outcome{Code: -1}, err
	}

	if err := o.checkReachability(ctx); err != nil {
		return domain.Outcome{Code: -1}, err
	}

	if err := o.checkScannerBin(ctx); err != nil {
		return domain.Outcome{Code: -1}, err
	}

	o.logger.Info("registering engine",
		"engine", req.EngineName,
		"console", o.console.Addr(),
		"container", o.containerName,
	)
	fmt.Fprintf(o.out, "Registering engine %q with console %s...\n", req.EngineName, o.console.Addr())

	code, err := o.runner.ExitCode(ctx, "docker", "exec", o.containerName, o.binPath,
		"-t", "console",
		"-h", req.ConsoleHost,
		"-p", strconv.Itoa(req.ConsolePort),
		"-a", req.ActivationKey,
		"-n", req.EngineName,
	)
	if err != nil {
		return domain.Outcome{Code: -1}, fmt.Errorf("execute registration command: %w", err)
	}

	if code == 0 {
		outcome := domain.Outcome{Code: 0, Message: successBanner(req.EngineName)}
		fmt.Fprintln(o.out, outcome.Message)
		o.logger.Info("registration succeeded", "engine", req.EngineName)
		return outcome, nil
	}

	outcome := domain.Outcome{Code: code, Message: failureBanner(code)}
	fmt.Fprintln(o.out, outcome.Message)
	o.logger.Error("registration failed", "engine", req.EngineName, "exit_code", code)
	return outcome, domain.ErrRegistrationFailed{Code: code}
}

// collect gathers and validates the activation key and engine name. The key
// is never written to the log.
func (o *Orchestrator) collect() (domain.RegistrationRequest, error) {
	req := domain.RegistrationRequest{
		ConsoleHost:   o.consoleHost,
		ConsolePort:   o.consolePort,
		ActivationKey: strings.TrimSpace(o.ActivationKey),
		EngineName:    strings.TrimSpace(o.EngineName),
	}

	if req.ActivationKey == "" {
		key, err := o.prompter.NonEmpty("Activation key")
		if err != nil {
			return req, fmt.Errorf("read activation key: %w", err)
		}
		req.ActivationKey = key
	}

	if req.EngineName == "" {
		for {
			name, err := o.prompter.LineDefault("Engine name", prompt.SuggestEngineName())
			if err != nil {
				return req, fmt.Errorf("read engine name: %w", err)
			}
			if prompt.Validate(name) == nil {
				req.EngineName = strings.TrimSpace(name)
				break
			}
			fmt.Fprintln(o.out, "Engine name must not be empty, please try again.")
		}
	}

	return req, nil
}

func (o *Orchestrator) checkContainer(ctx context.Context) error {
	state, err := o.container.State(ctx)
	if err != nil {
		return fmt.Errorf("query container state: %w", err)
	}
	if state != domain.StateRunning {
		return domain.ErrContainerNotRunning{Name: o.containerName}
	}
	return nil
}

// checkReachability probes the console at TCP level; failure is
// operator-overridable since registration may still work through proxies the
// probe doesn't see. The HTTPS probe only refines the report.
func (o *Orchestrator) checkReachability(ctx context.Context) error {
	if err := o.console.Reachable(ctx); err != nil {
		o.logger.Warn("console unreachable", "addr", o.console.Addr(), "err", err)
		fmt.Fprintf(o.out, "Warning: console %s is not reachable: %v\n", o.console.Addr(), err)

		cont, perr := o.prompter.Confirm("Attempt registration anyway?")
		if perr != nil {
			return perr
		}
		if !cont {
			return domain.ErrAborted{Step: "console reachability"}
		}
		return nil
	}

	if err := o.console.Healthz(ctx); err != nil {
		o.logger.Warn("console tcp port open but https probe failed", "err", err)
	}
	return nil
}

func (o *Orchestrator) checkScannerBin(ctx context.Context) error {
	code, err := o.runner.ExitCode(ctx, "docker", "exec", o.containerName, "test", "-x", o.binPath)
	if err != nil {
		return fmt.Errorf("check registration binary: %w", err)
	}
	if code != 0 {
		return domain.ErrScannerBinMissing{Path: o.binPath}
	}
	return nil
}

func successBanner(engine string) string {
	var b strings.Builder
	line := strings.Repeat("=", 60)
	b.WriteString(line + "\n")
	b.WriteString(fmt.Sprintf("  Engine %q registered successfully.\n", engine))
	b.WriteString("  The scanner is connected to the management console.\n")
	b.WriteString(line)
	return b.String()
}

func failureBanner(code int) string {
	var b strings.Builder
	line := strings.Repeat("=", 60)
	b.WriteString(line + "\n")
	b.WriteString(fmt.Sprintf("  Registration failed (exit code %d).\n", code))
	b.WriteString("  Please check that:\n")
	for i, item := range Checklist {
		b.WriteString(fmt.Sprintf("    %d. %s\n", i+1, item))
	}
	b.WriteString(line)
	return b.String()
}
