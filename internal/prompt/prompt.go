// Package prompt elicits missing or ambiguous fields interactively. The
// layer never inspects the IR; it only evaluates the condition predicates
// callers attach to their questions.
package prompt

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/csmcal/wf2wf/internal/errors"
	"github.com/csmcal/wf2wf/internal/output"
)

// Question is a declarative prompt. Condition gates whether the question is
// asked at all; Default is the answer applied in headless mode.
type Question struct {
	// Key groups repeated questions: an "always" answer to one instance
	// covers every later instance with the same key.
	Key string

	// Text is the question shown to the user, without the choice suffix.
	Text string

	// Default is the documented headless answer.
	Default bool

	// Condition, when non-nil, must return true for the question to fire.
	Condition func() bool
}

// Prompter asks questions one at a time on the controlling terminal.
// Scheduling is single-threaded; the pipeline pauses on each prompt.
type Prompter struct {
	headless bool
	in       *bufio.Scanner
	always   map[string]bool
}

// New creates a prompter. Headless mode (explicit, or forced when stdin is
// not a terminal) resolves every question to its default instantly.
func New(headless bool) *Prompter {
	if !output.StdinIsTTY() {
		headless = true
	}
	return &Prompter{
		headless: headless,
		in:       bufio.NewScanner(os.Stdin),
		always:   map[string]bool{},
	}
}

// NewWithReader creates a prompter reading from r; used by tests.
func NewWithReader(r io.Reader, headless bool) *Prompter {
	return &Prompter{
		headless: headless,
		in:       bufio.NewScanner(r),
		always:   map[string]bool{},
	}
}

// Headless reports whether the prompter resolves defaults without blocking.
func (p *Prompter) Headless() bool {
	return p.headless
}

// Ask resolves one question. The answer set is yes/no/always/quit; always is
// remembered for the remainder of the conversion, quit returns
// ErrPromptCancelled.
func (p *Prompter) Ask(q Question) (bool, error) {
	if q.Condition != nil && !q.Condition() {
		return false, nil
	}
	if answer, ok := p.always[q.Key]; ok {
		return answer, nil
	}
	if p.headless {
		return q.Default, nil
	}

	def := "y/N"
	if q.Default {
		def = "Y/n"
	}

	for {
		output.Prompt(fmt.Sprintf("%s [%s/always/quit]: ", q.Text, def))
		if !p.in.Scan() {
			// EOF on stdin behaves like headless.
			return q.Default, nil
		}
		switch strings.TrimSpace(strings.ToLower(p.in.Text())) {
		case "":
			return q.Default, nil
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		case "a", "always":
			p.always[q.Key] = true
			return true, nil
		case "q", "quit":
			return false, errors.ErrPromptCancelled
		default:
			output.Prompt("please answer yes, no, always, or quit\n")
		}
	}
}
