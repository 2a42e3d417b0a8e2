// Package prompt gathers operator input. Interaction is kept apart from
// decision logic: callers receive plain values and make their own choices,
// and tests drive a Prompter with scripted readers.
package prompt

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
)

// Prompter reads answers from in and writes questions to out.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer

	// AssumeYes makes every Confirm return true without asking,
	// for unattended runs.
	AssumeYes bool
}

func New(r io.Reader, w io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(r), out: w}
}

// Validate implements the input rule for activation keys and engine names:
// empty or whitespace-only values are rejected.
func Validate(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("value must not be empty")
	}
	return nil
}

// Line asks once and returns the trimmed answer.
func (p *Prompter) Line(label string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", label)
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// NonEmpty reprompts until the answer passes Validate.
func (p *Prompter) NonEmpty(label string) (string, error) {
	for {
		answer, err := p.Line(label)
		if err != nil {
			return "", err
		}
		if Validate(answer) == nil {
			return answer, nil
		}
		fmt.Fprintln(p.out, "Input must not be empty, please try again.")
	}
}

// LineDefault asks once, returning def when the operator just presses enter.
func (p *Prompter) LineDefault(label, def string) (string, error) {
	answer, err := p.Line(fmt.Sprintf("%s [%s]", label, def))
	if err != nil {
		return "", err
	}
	if answer == "" {
		return def, nil
	}
	return answer, nil
}

// Confirm asks a yes/no question, reprompting on anything else.
func (p *Prompter) Confirm(question string) (bool, error) {
	if p.AssumeYes {
		return true, nil
	}
	for {
		answer, err := p.Line(question + " [y/n]")
		if err != nil {
			return false, err
		}
		switch strings.ToLower(answer) {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		fmt.Fprintln(p.out, `Please answer "y" or "n".`)
	}
}

// SuggestEngineName builds a default engine name from the hostname and a
// short random suffix, so parallel hosts don't collide on the console.
func SuggestEngineName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "scanner"
	}
	host = strings.ToLower(strings.Split(host, ".")[0])
	return fmt.Sprintf("engine-%s-%s", host, uuid.New().String()[:8])
}
