package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"os/user"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/opsforge/scannerctl/internal/config"
	"github.com/opsforge/scannerctl/internal/console"
	"github.com/opsforge/scannerctl/internal/dockerctl"
	"github.com/opsforge/scannerctl/internal/domain"
	"github.com/opsforge/scannerctl/internal/execx"
	"github.com/opsforge/scannerctl/internal/osrelease"
	"github.com/opsforge/scannerctl/internal/pipeline"
	"github.com/opsforge/scannerctl/internal/prompt"
	"github.com/opsforge/scannerctl/internal/provision"
	"github.com/opsforge/scannerctl/internal/register"
)

var flagImage = &cli.StringFlag{
	Name:  "image",
	Usage: "Scanner container image reference",
}
var flagContainerName = &cli.StringFlag{
	Name:  "container-name",
	Usage: "Name of the scanner container",
}
var flagConsoleHost = &cli.StringFlag{
	Name:  "console-host",
	Usage: "Management console host",
}
var flagConsolePort = &cli.IntFlag{
	Name:  "console-port",
	Usage: "Management console port",
}
var flagDataDir = &cli.StringFlag{
	Name:  "data-dir",
	Usage: "Host path for persistent scanner storage",
}
var flagLogDir = &cli.StringFlag{
	Name:  "log-dir",
	Usage: "Directory for scannerctl log files",
}
var flagDebug = &cli.BoolFlag{
	Name:  "debug",
	Usage: "Enable verbose logging",
}
var flagYes = &cli.BoolFlag{
	Name:    "yes",
	Aliases: []string{"y"},
	Usage:   "Assume yes on continue/abort confirmations (unattended runs)",
}
var flagActivationKey = &cli.StringFlag{
	Name:  "activation-key",
	Usage: "Console activation key (prompted for when omitted)",
}
var flagEngineName = &cli.StringFlag{
	Name:  "engine-name",
	Usage: "Engine name to register (prompted for when omitted)",
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM,
	)
	defer cancel()

	app := &cli.App{
		Name:    "scannerctl",
		Usage:   "provision a host to run the security scanner and register it with the management console",
		Version: fmt.Sprintf("%s (built %s)", config.Version, config.BuildTime),
		Flags: []cli.Flag{
			flagImage,
			flagContainerName,
			flagConsoleHost,
			flagConsolePort,
			flagDataDir,
			flagLogDir,
			flagDebug,
			flagYes,
		},
		Commands: []*cli.Command{
			{
				Name:  "up",
				Usage: "run the full workflow: detect OS, install docker, start the scanner, register it",
				Flags: []cli.Flag{flagActivationKey, flagEngineName},
				Action: func(cCtx *cli.Context) error {
					return withRun(cCtx, func(r *run) error {
						return r.up(cCtx)
					})
				},
			},
			{
				Name:  "install",
				Usage: "detect the OS and install and start docker",
				Action: func(cCtx *cli.Context) error {
					return withRun(cCtx, func(r *run) error {
						return r.install(cCtx)
					})
				},
			},
			{
				Name:  "container",
				Usage: "ensure the scanner container exists and is running",
				Action: func(cCtx *cli.Context) error {
					return withRun(cCtx, func(r *run) error {
						return r.container(cCtx)
					})
				},
			},
			{
				Name:  "register",
				Usage: "register a running scanner with the management console",
				Flags: []cli.Flag{flagActivationKey, flagEngineName},
				Action: func(cCtx *cli.Context) error {
					return withRun(cCtx, func(r *run) error {
						return r.register(cCtx)
					})
				},
			},
			{
				Name:  "status",
				Usage: "report docker, container and console status without side effects",
				Action: func(cCtx *cli.Context) error {
					return withRun(cCtx, func(r *run) error {
						return r.status(cCtx)
					})
				},
			},
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		var aborted domain.ErrAborted
		if errors.As(err, &aborted) {
			fmt.Fprintf(os.Stderr, "Aborted at %s.\n", aborted.Step)
			os.Exit(1)
		}
		var regFailed domain.ErrRegistrationFailed
		if errors.As(err, &regFailed) {
			// The failure banner was already printed by the orchestrator.
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run bundles the wired subsystems for one CLI invocation.
type run struct {
	cfg      *config.Config
	logger   *slog.Logger
	runner   execx.Runner
	prompter *prompt.Prompter
}

func withRun(cCtx *cli.Context, fn func(*run) error) error {
	cfg, err := loadConfig(cCtx)
	if err != nil {
		return err
	}

	logger, err := config.NewLogger(cfg, "scannerctl")
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logger.Info("scannerctl starting",
		"version", config.Version,
		"command", cCtx.Command.Name,
	)

	prompter := prompt.New(os.Stdin, os.Stdout)
	prompter.AssumeYes = cfg.AssumeYes

	return fn(&run{
		cfg:      cfg,
		logger:   logger,
		runner:   execx.NewLocal(),
		prompter: prompter,
	})
}

// loadConfig builds the immutable run configuration: env overrides first
// (config.Load), explicit flags on top.
func loadConfig(cCtx *cli.Context) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if v := cCtx.String("image"); v != "" {
		cfg.Image = v
	}
	if v := cCtx.String("container-name"); v != "" {
		cfg.ContainerName = v
	}
	if v := cCtx.String("console-host"); v != "" {
		cfg.ConsoleHost = v
	}
	if v := cCtx.Int("console-port"); v != 0 {
		cfg.ConsolePort = v
	}
	if v := cCtx.String("data-dir"); v != "" {
		cfg.DataDir = v
	}
	if v := cCtx.String("log-dir"); v != "" {
		cfg.LogDir = v
	}
	if cCtx.Bool("debug") {
		cfg.Debug = true
	}
	if cCtx.Bool("yes") {
		cfg.AssumeYes = true
	}

	return cfg, nil
}

func (r *run) containerManager() *dockerctl.Manager {
	return dockerctl.NewManager(r.cfg.ContainerSpec(), r.runner, r.prompter, os.Stdout, r.logger)
}

func (r *run) consoleClient() *console.Client {
	return console.NewClient(r.cfg.ConsoleHost, r.cfg.ConsolePort, r.cfg.DialTimeout, r.logger)
}

func (r *run) orchestrator(cCtx *cli.Context) *register.Orchestrator {
	orch := register.New(
		r.cfg.ContainerName,
		r.cfg.ScannerBinPath,
		r.cfg.ConsoleHost,
		r.cfg.ConsolePort,
		r.runner,
		r.prompter,
		r.consoleClient(),
		r.containerManager(),
		os.Stdout,
		r.logger,
	)
	orch.ActivationKey = cCtx.String("activation-key")
	orch.EngineName = cCtx.String("engine-name")
	return orch
}

// provisionStages returns the detect and install stages shared by the
// up/install/container commands. The detected profile flows through the
// closure into the provisioner.
func (r *run) provisionStages() []pipeline.Stage {
	var profile domain.HostProfile

	return []pipeline.Stage{
		{
			Name: "detect os",
			Run: func(ctx context.Context) error {
				p, err := osrelease.DetectFrom(r.cfg.OSReleasePath)
				if err != nil {
					return err
				}
				profile = p
				r.logger.Info("detected host",
					"distro", p.ID,
					"version", p.VersionID,
					"family", string(p.Family),
				)
				fmt.Printf("Detected %s (%s family).\n", p.PrettyName, p.Family)
				return nil
			},
		},
		{
			Name: "install docker",
			Run: func(ctx context.Context) error {
				prov := provision.New(profile, r.runner, os.Stdout, r.logger)
				if err := prov.EnsureDocker(ctx); err != nil {
					return err
				}
				return prov.EnsureGroupMembership(ctx, invokingUser())
			},
		},
	}
}

func (r *run) containerStage() pipeline.Stage {
	return pipeline.Stage{
		Name: "ensure container",
		Run: func(ctx context.Context) error {
			return r.containerManager().EnsureRunning(ctx)
		},
	}
}

func (r *run) registerStage(cCtx *cli.Context) pipeline.Stage {
	return pipeline.Stage{
		Name: "register engine",
		Run: func(ctx context.Context) error {
			_, err := r.orchestrator(cCtx).Run(ctx)
			return err
		},
	}
}

func (r *run) up(cCtx *cli.Context) error {
	stages := append(r.provisionStages(), r.containerStage(), r.registerStage(cCtx))
	return pipeline.New(r.logger, stages...).Run(cCtx.Context)
}

func (r *run) install(cCtx *cli.Context) error {
	return pipeline.New(r.logger, r.provisionStages()...).Run(cCtx.Context)
}

func (r *run) container(cCtx *cli.Context) error {
	stages := append(r.provisionStages(), r.containerStage())
	return pipeline.New(r.logger, stages...).Run(cCtx.Context)
}

func (r *run) register(cCtx *cli.Context) error {
	return pipeline.New(r.logger, r.registerStage(cCtx)).Run(cCtx.Context)
}

func (r *run) status(cCtx *cli.Context) error {
	ctx := cCtx.Context

	if _, err := r.runner.Output(ctx, "docker", "--version"); err != nil {
		fmt.Println("docker:    not installed")
	} else if err := r.runner.Run(ctx, "docker", "info"); err != nil {
		fmt.Println("docker:    installed, daemon not running")
	} else {
		fmt.Println("docker:    installed and running")
	}

	state, err := r.containerManager().State(ctx)
	if err != nil {
		fmt.Printf("container: %s (state unknown: %v)\n", r.cfg.ContainerName, err)
	} else {
		fmt.Printf("container: %s (%s)\n", r.cfg.ContainerName, state)
	}

	cc := r.consoleClient()
	if err := cc.Reachable(ctx); err != nil {
		fmt.Printf("console:   %s unreachable\n", cc.Addr())
	} else {
		fmt.Printf("console:   %s reachable\n", cc.Addr())
	}

	return nil
}

// invokingUser resolves the real operator, looking through sudo.
func invokingUser() string {
	if u := os.Getenv("SUDO_USER"); u != "" {
		return u
	}
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return ""
}
