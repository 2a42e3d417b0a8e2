package execx

import (
	"context"
	"strings"
)

// Call records one command issued through a Fake.
type Call struct {
	Name string
	Args []string
}

func (c Call) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Fake is a scripted Runner for tests. The zero value succeeds on
// everything; script behavior through the Fn hooks. Every call is recorded
// in order so tests can assert exact command sequences.
type Fake struct {
	Calls []Call

	RunFn    func(name string, args ...string) error
	OutputFn func(name string, args ...string) (string, error)
	ExitFn   func(name string, args ...string) (int, error)
}

func (f *Fake) Run(_ context.Context, name string, args ...string) error {
	f.record(name, args)
	if f.RunFn != nil {
		return f.RunFn(name, args...)
	}
	return nil
}

func (f *Fake) Output(_ context.Context, name string, args ...string) (string, error) {
	f.record(name, args)
	if f.OutputFn != nil {
		return f.OutputFn(name, args...)
	}
	return "", nil
}

func (f *Fake) ExitCode(_ context.Context, name string, args ...string) (int, error) {
	f.record(name, args)
	if f.ExitFn != nil {
		return f.ExitFn(name, args...)
	}
	return 0, nil
}

func (f *Fake) record(name string, args []string) {
	f.Calls = append(f.Calls, Call{Name: name, Args: args})
}

// CommandLines renders the recorded calls as space-joined strings.
func (f *Fake) CommandLines() []string {
	lines := make([]string, 0, len(f.Calls))
	for _, c := range f.Calls {
		lines = append(lines, c.String())
	}
	return lines
}
