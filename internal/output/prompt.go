package output

import (
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/huh/spinner"
)

// ConfirmDestructive gates an operation that deletes files, like clearing
// an output directory that does not look like build output. yesFlag skips
// the prompt. Without a terminal the operation fails with a hint instead
// of hanging on a prompt nobody will answer.
func (w *Writer) ConfirmDestructive(msg string, yesFlag bool) error {
	if yesFlag {
		return nil
	}
	if !w.interactive {
		return fmt.Errorf("%s; use --yes to confirm", msg)
	}

	w.Warning("%s", msg)

	var confirmed bool
	prompt := huh.NewConfirm().
		Title("Continue?").
		Affirmative("Yes").
		Negative("No").
		Value(&confirmed)
	if err := prompt.Run(); err != nil {
		return fmt.Errorf("confirmation prompt failed: %w", err)
	}
	if !confirmed {
		return fmt.Errorf("cancelled by user")
	}
	return nil
}

// SelectOption is one choice in a Select prompt.
type SelectOption struct {
	Label string
	Value string
}

// Select asks the user to pick one option, like choosing between several
// manifest.json candidates. Callers check IsInteractive first and fall
// back to a default; calling this without a terminal is an error.
func (w *Writer) Select(title string, options []SelectOption) (string, error) {
	if !w.interactive {
		return "", fmt.Errorf("cannot prompt for selection in non-interactive mode")
	}

	choices := make([]huh.Option[string], len(options))
	for i, opt := range options {
		choices[i] = huh.NewOption(opt.Label, opt.Value)
	}

	var value string
	prompt := huh.NewSelect[string]().
		Title(title).
		Options(choices...).
		Value(&value)
	if err := prompt.Run(); err != nil {
		return "", fmt.Errorf("selection prompt failed: %w", err)
	}
	return value, nil
}

// Spinner runs action behind a spinner while it works, used for archiving.
// Without a terminal it degrades to a step line and a plain call.
func (w *Writer) Spinner(title string, action func() error) error {
	if !w.interactive {
		w.Step("%s...", title)
		return action()
	}

	var actionErr error
	err := spinner.New().
		Title(" " + title + "...").
		Action(func() { actionErr = action() }).
		Run()
	if err != nil {
		return err
	}
	return actionErr
}
