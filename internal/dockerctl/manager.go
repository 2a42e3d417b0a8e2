// Package dockerctl keeps the named scanner container existing and running.
package dockerctl

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/opsforge/scannerctl/internal/domain"
	"github.com/opsforge/scannerctl/internal/execx"
	"github.com/opsforge/scannerctl/internal/prompt"
)

// Manager drives the container runtime CLI for one fixed container name.
type Manager struct {
	spec     domain.ContainerSpec
	runner   execx.Runner
	prompter *prompt.Prompter
	out      io.Writer
	logger   *slog.Logger
}

func NewManager(spec domain.ContainerSpec, runner execx.Runner, prompter *prompt.Prompter, out io.Writer, logger *slog.Logger) *Manager {
	return &Manager{
		spec:     spec,
		runner:   runner,
		prompter: prompter,
		out:      out,
		logger:   logger,
	}
}

// State reports whether the named container is running, stopped or absent.
func (m *Manager) State(ctx context.Context) (domain.ContainerState, error) {
	running, err := m.listed(ctx, false)
	if err != nil {
		return "", err
	}
	if running {
		return domain.StateRunning, nil
	}

	exists, err := m.listed(ctx, true)
	if err != nil {
		return "", err
	}
	if exists {
		return domain.StateStopped, nil
	}
	return domain.StateAbsent, nil
}

// EnsureRunning converges on a running container:
// running is a no-op, stopped gets exactly one start, absent gets
// pull + storage setup + run, in that order.
func (m *Manager) EnsureRunning(ctx context.Context) error {
	state, err := m.State(ctx)
	if err != nil {
		return fmt.Errorf("query container state: %w", err)
	}

	switch state {
	case domain.StateRunning:
		m.logger.Info("container already running", "name", m.spec.Name)
		fmt.Fprintf(m.out, "Container %s is already running.\n", m.spec.Name)
		return nil

	case domain.StateStopped:
		m.logger.Info("container stopped, starting", "name", m.spec.Name)
		if err := m.runner.Run(ctx, "docker", "start", m.spec.Name); err != nil {
			return domain.ErrContainerCreate{Name: m.spec.Name, Err: err}
		}
		fmt.Fprintf(m.out, "Container %s started.\n", m.spec.Name)
		return nil

	default:
		return m.create(ctx)
	}
}

func (m *Manager) create(ctx context.Context) error {
	m.logger.Info("pulling image", "image", m.spec.Image)
	fmt.Fprintf(m.out, "Pulling %s...\n", m.spec.Image)

	if err := m.runner.Run(ctx, "docker", "pull", m.spec.Image); err != nil {
		pullErr := domain.ErrImagePull{Image: m.spec.Image, Err: err}
		m.logger.Warn("image pull failed", "image", m.spec.Image, "err", err)
		fmt.Fprintf(m.out, "Warning: %v\nThe image location is not guaranteed stable; a local or cached image may still work.\n", pullErr)

		cont, perr := m.prompter.Confirm("Continue without a fresh pull?")
		if perr != nil {
			return perr
		}
		if !cont {
			return domain.ErrAborted{Step: "image pull"}
		}
	}

	if err := m.setupDataDir(); err != nil {
		return fmt.Errorf("prepare data dir %s: %w", m.spec.DataDir, err)
	}

	args := []string{
		"run", "-d",
		"--name", m.spec.Name,
		"--restart", m.spec.RestartPolicy,
		"-p", fmt.Sprintf("%d:%d", m.spec.Port.HostPort, m.spec.Port.ContainerPort),
		"-v", m.spec.DataDir + ":" + m.spec.MountPath,
		m.spec.Image,
	}

	m.logger.Info("creating container", "name", m.spec.Name, "args", args)
	if err := m.runner.Run(ctx, "docker", args...); err != nil {
		return domain.ErrContainerCreate{Name: m.spec.Name, Err: err}
	}

	fmt.Fprintf(m.out, "Container %s created and started.\n", m.spec.Name)
	return nil
}

// setupDataDir creates the persistent storage path owned by the invoking
// user. Under sudo the invoking user comes from SUDO_UID/SUDO_GID.
func (m *Manager) setupDataDir() error {
	if err := os.MkdirAll(m.spec.DataDir, 0o755); err != nil {
		return err
	}

	uidStr, gidStr := os.Getenv("SUDO_UID"), os.Getenv("SUDO_GID")
	if uidStr == "" || gidStr == "" {
		return nil
	}
	uid, err := strconv.Atoi(uidStr)
	if err != nil {
		return nil
	}
	gid, err := strconv.Atoi(gidStr)
	if err != nil {
		return nil
	}
	return os.Chown(m.spec.DataDir, uid, gid)
}

// listed reports whether the container name shows up in docker ps; all=true
// includes stopped containers.
func (m *Manager) listed(ctx context.Context, all bool) (bool, error) {
	args := []string{"ps"}
	if all {
		args = append(args, "-a")
	}
	args = append(args,
		"--filter", "name=^"+m.spec.Name+"$",
		"--format", "{{.Names}}",
	)

	out, err := m.runner.Output(ctx, "docker", args...)
	if err != nil {
		return false, err
	}
	return out != "", nil
}
