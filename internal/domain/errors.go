package domain

import (
	"fmt"
	"strings"
)

type ErrNoOSRelease struct {
	Path string
}

func (e ErrNoOSRelease) Error() string {
	return fmt.Sprintf("cannot detect OS: %s not found", e.Path)
}

type ErrUnsupportedDistro struct {
	ID string
}

func (e ErrUnsupportedDistro) Error() string {
	return fmt.Sprintf("unsupported distribution %q (supported: %s)",
		e.ID, strings.Join(SupportedDistros, ", "))
}

type ErrProvision struct {
	Op  string
	Err error
}

func (e ErrProvision) Error() string {
	return fmt.Sprintf("provision %s: %v", e.Op, e.Err)
}

func (e ErrProvision) Unwrap() error {
	return e.Err
}

type ErrImagePull struct {
	Image string
	Err   error
}

func (e ErrImagePull) Error() string {
	return fmt.Sprintf("pull image %s: %v", e.Image, e.Err)
}

func (e ErrImagePull) Unwrap() error {
	return e.Err
}

type ErrContainerCreate struct {
	Name string
	Err  error
}

func (e ErrContainerCreate) Error() string {
	return fmt.Sprintf("create container %s: %v (likely causes: image unavailable, host port already in use, insufficient permission to reach the Docker daemon)", e.Name, e.Err)
}

func (e ErrContainerCreate) Unwrap() error {
	return e.Err
}

type ErrContainerNotRunning struct {
	Name string
}

func (e ErrContainerNotRunning) Error() string {
	return fmt.Sprintf("container %s is not running; run \"scannerctl container\" first", e.Name)
}

type ErrScannerBinMissing struct {
	Path string
}

func (e ErrScannerBinMissing) Error() string {
	return fmt.Sprintf("registration binary %s not found inside the container (image/documentation mismatch)", e.Path)
}

type ErrRegistrationFailed struct {
	Code int
}

func (e ErrRegistrationFailed) Error() string {
	return fmt.Sprintf("registration command exited with code %d", e.Code)
}

// ErrAborted marks an operator-declined confirmation. It is a clean stop,
// not a failure.
type ErrAborted struct {
	Step string
}

func (e ErrAborted) Error() string {
	return fmt.Sprintf("aborted by operator at %s", e.Step)
}
