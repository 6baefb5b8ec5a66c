package output

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestConfirmDestructive(t *testing.T) {
	t.Run("yes flag skips the prompt", func(t *testing.T) {
		w := NewTest(io.Discard)
		if err := w.ConfirmDestructive("clear output directory dist", true); err != nil {
			t.Fatalf("unexpected error with yes flag: %v", err)
		}
	})

	t.Run("non-interactive fails with a hint", func(t *testing.T) {
		w := NewTest(io.Discard)
		err := w.ConfirmDestructive("clear output directory dist", false)
		if err == nil {
			t.Fatal("expected error without a terminal, got nil")
		}
		if !strings.Contains(err.Error(), "clear output directory dist") {
			t.Errorf("error should carry the message, got: %v", err)
		}
		if !strings.Contains(err.Error(), "--yes") {
			t.Errorf("error should hint --yes, got: %v", err)
		}
	})
}

func TestSelectNonInteractive(t *testing.T) {
	w := NewTest(io.Discard)

	value, err := w.Select("Several manifest.json files found", []SelectOption{
		{Label: "manifest.json", Value: "manifest.json"},
		{Label: "src/manifest.json", Value: "src/manifest.json"},
	})
	if err == nil {
		t.Fatal("expected error without a terminal, got nil")
	}
	if !strings.Contains(err.Error(), "non-interactive") {
		t.Errorf("error = %v, want non-interactive", err)
	}
	if value != "" {
		t.Errorf("value = %q, want empty", value)
	}
}

func TestSpinnerNonInteractive(t *testing.T) {
	t.Run("runs the action and prints a step", func(t *testing.T) {
		var buf bytes.Buffer
		w := NewTest(&buf)

		called := false
		err := w.Spinner("Archiving", func() error {
			called = true
			return nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !called {
			t.Error("action was not called")
		}
		if !strings.Contains(buf.String(), "Archiving") {
			t.Errorf("output = %q, want the title as a step", buf.String())
		}
	})

	t.Run("returns the action error", func(t *testing.T) {
		w := NewTest(io.Discard)
		want := errors.New("archive failed")
		err := w.Spinner("Archiving", func() error { return want })
		if !errors.Is(err, want) {
			t.Errorf("error = %v, want %v", err, want)
		}
	})
}
