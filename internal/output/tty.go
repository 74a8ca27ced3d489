package output

import (
	"os"

	"golang.org/x/term"
)

// IsTTY reports whether stderr is attached to a terminal. Spinners are
// disabled otherwise; prompts check StdinIsTTY instead.
func IsTTY() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}

// StdinIsTTY reports whether stdin is attached to a terminal.
func StdinIsTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}
