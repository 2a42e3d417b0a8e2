// Package provision installs and starts the Docker engine using the package
// manager matching the detected distribution family. Every entry point is
// safe to re-run.
package provision

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/opsforge/scannerctl/internal/domain"
	"github.com/opsforge/scannerctl/internal/execx"
)

// Provisioner installs the container runtime for one detected host.
type Provisioner struct {
	profile domain.HostProfile
	runner  execx.Runner
	out     io.Writer
	logger  *slog.Logger
}

func New(profile domain.HostProfile, runner execx.Runner, out io.Writer, logger *slog.Logger) *Provisioner {
	return &Provisioner{
		profile: profile,
		runner:  runner,
		out:     out,
		logger:  logger,
	}
}

// EnsureDocker makes the Docker engine installed, running and enabled.
// Already-provisioned hosts are detected and left alone: a second run issues
// only the probes.
func (p *Provisioner) EnsureDocker(ctx context.Context) error {
	if p.dockerInstalled(ctx) {
		if p.daemonRunning(ctx) {
			p.logger.Info("docker already installed and running", "distro", p.profile.ID)
			fmt.Fprintln(p.out, "Docker is already installed and running.")
			return nil
		}

		p.logger.Info("docker installed but stopped, starting", "distro", p.profile.ID)
		if err := p.runner.Run(ctx, "systemctl", "start", "docker"); err != nil {
			return domain.ErrProvision{Op: "start docker", Err: err}
		}
		fmt.Fprintln(p.out, "Docker was installed but stopped; started it.")
		return nil
	}

	p.logger.Info("installing docker", "distro", p.profile.ID, "family", string(p.profile.Family))
	fmt.Fprintf(p.out, "Installing Docker for %s...\n", p.profile.PrettyName)

	var err error
	switch p.profile.Family {
	case domain.FamilyDebian:
		err = p.installDebian(ctx)
	case domain.FamilyRHEL:
		err = p.installRHEL(ctx)
	case domain.FamilyAmazon:
		err = p.installAmazon(ctx)
	default:
		return domain.ErrUnsupportedDistro{ID: p.profile.ID}
	}
	if err != nil {
		return err
	}

	if err := p.runner.Run(ctx, "systemctl", "enable", "--now", "docker"); err != nil {
		return domain.ErrProvision{Op: "enable docker service", Err: err}
	}

	fmt.Fprintln(p.out, "Docker installed and started.")
	return nil
}

// EnsureGroupMembership adds user to the docker group if missing, so later
// invocations work without elevated privilege. Group changes only apply to
// new sessions; the operator is told so instead of it being assumed.
func (p *Provisioner) EnsureGroupMembership(ctx context.Context, user string) error {
	if user == "" || user == "root" {
		return nil
	}

	groups, err := p.runner.Output(ctx, "id", "-nG", user)
	if err != nil {
		return domain.ErrProvision{Op: "read group membership", Err: err}
	}
	for _, g := range strings.Fields(groups) {
		if g == "docker" {
			p.logger.Debug("user already in docker group", "user", user)
			return nil
		}
	}

	if err := p.runner.Run(ctx, "usermod", "-aG", "docker", user); err != nil {
		return domain.ErrProvision{Op: "add user to docker group", Err: err}
	}

	p.logger.Info("added user to docker group", "user", user)
	fmt.Fprintf(p.out, "Added %s to the docker group. This takes effect in a new login session.\n", user)
	return nil
}

func (p *Provisioner) dockerInstalled(ctx context.Context) bool {
	_, err := p.runner.Output(ctx, "docker", "--version")
	return err == nil
}

func (p *Provisioner) daemonRunning(ctx context.Context) bool {
	return p.runner.Run(ctx, "docker", "info") == nil
}

func (p *Provisioner) installDebian(ctx context.Context) error {
	steps := []struct {
		op   string
		name string
		args []string
	}{
		{"apt update", "apt-get", []string{"update"}},
		{"install prerequisites", "apt-get", []string{"install", "-y", "ca-certificates", "curl", "gnupg"}},
		{"create keyring dir", "install", []string{"-m", "0755", "-d", "/etc/apt/keyrings"}},
		{"add docker gpg key", "sh", []string{"-c",
			fmt.Sprintf("curl -fsSL https://download.docker.com/linux/%s/gpg | gpg --dearmor --yes -o /etc/apt/keyrings/docker.gpg", p.profile.ID)}},
		{"add docker repository", "sh", []string{"-c",
			fmt.Sprintf(`echo "deb [arch=$(dpkg --print-architecture) signed-by=/etc/apt/keyrings/docker.gpg] https://download.docker.com/linux/%s $(. /etc/os-release && echo $VERSION_CODENAME) stable" > /etc/apt/sources.list.d/docker.list`, p.profile.ID)}},
		{"apt update", "apt-get", []string{"update"}},
		{"install docker packages", "apt-get", []string{"install", "-y", "docker-ce", "docker-ce-cli", "containerd.io"}},
	}

	for _, s := range steps {
		if err := p.runner.Run(ctx, s.name, s.args...); err != nil {
			return domain.ErrProvision{Op: s.op, Err: err}
		}
	}
	return nil
}

func (p *Provisioner) installRHEL(ctx context.Context) error {
	// Rocky, Alma and CentOS all consume the centos repo.
	steps := []struct {
		op   string
		name string
		args []string
	}{
		{"install dnf plugins", "dnf", []string{"-y", "install", "dnf-plugins-core"}},
		{"add docker repository", "dnf", []string{"config-manager", "--add-repo",
			"https://download.docker.com/linux/centos/docker-ce.repo"}},
		{"install docker packages", "dnf", []string{"-y", "install", "docker-ce", "docker-ce-cli", "containerd.io"}},
	}

	for _, s := range steps {
		if err := p.runner.Run(ctx, s.name, s.args...); err != nil {
			return domain.ErrProvision{Op: s.op, Err: err}
		}
	}
	return nil
}

func (p *Provisioner) installAmazon(ctx context.Context) error {
	// Amazon Linux carries docker in its own repos.
	if err := p.runner.Run(ctx, "yum", "install", "-y", "docker"); err != nil {
		return domain.ErrProvision{Op: "install docker package", Err: err}
	}
	return nil
}
