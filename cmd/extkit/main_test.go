package main

import (
	"io"
	"os"
	"testing"

	"github.com/extkit/cli/internal/config"
	"github.com/extkit/cli/internal/output"
	"github.com/extkit/cli/internal/reload"
)

func TestMain(m *testing.M) {
	out = output.NewTest(io.Discard)
	os.Exit(m.Run())
}

func TestResolveFlag(t *testing.T) {
	tests := []struct {
		name      string
		flagValue string
		envKey    string
		envValue  string
		want      string
	}{
		{
			name:      "flag value takes priority",
			flagValue: "from-flag",
			envKey:    "TEST_RESOLVE_FLAG",
			envValue:  "from-env",
			want:      "from-flag",
		},
		{
			name:      "falls back to env var",
			flagValue: "",
			envKey:    "TEST_RESOLVE_FLAG",
			envValue:  "from-env",
			want:      "from-env",
		},
		{
			name:      "returns empty when both empty",
			flagValue: "",
			envKey:    "TEST_RESOLVE_FLAG_EMPTY",
			envValue:  "",
			want:      "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv(tt.envKey, tt.envValue)
			}
			got := resolveFlag(tt.flagValue, tt.envKey)
			if got != tt.want {
				t.Errorf("resolveFlag(%q, %q) = %q, want %q", tt.flagValue, tt.envKey, got, tt.want)
			}
		})
	}
}

func TestResolvePort(t *testing.T) {
	t.Run("flag takes priority", func(t *testing.T) {
		devPort = 9200
		defer func() { devPort = 0 }()
		t.Setenv("EXTKIT_PORT", "9300")

		port, err := resolvePort(&config.ProjectConfig{Port: 9400})
		if err != nil {
			t.Fatal(err)
		}
		if port != 9200 {
			t.Errorf("got %d, want 9200", port)
		}
	})

	t.Run("env beats config", func(t *testing.T) {
		devPort = 0
		t.Setenv("EXTKIT_PORT", "9300")

		port, err := resolvePort(&config.ProjectConfig{Port: 9400})
		if err != nil {
			t.Fatal(err)
		}
		if port != 9300 {
			t.Errorf("got %d, want 9300", port)
		}
	})

	t.Run("config beats default", func(t *testing.T) {
		devPort = 0
		t.Setenv("EXTKIT_PORT", "")

		port, err := resolvePort(&config.ProjectConfig{Port: 9400})
		if err != nil {
			t.Fatal(err)
		}
		if port != 9400 {
			t.Errorf("got %d, want 9400", port)
		}
	})

	t.Run("default when nothing set", func(t *testing.T) {
		devPort = 0
		t.Setenv("EXTKIT_PORT", "")

		port, err := resolvePort(nil)
		if err != nil {
			t.Fatal(err)
		}
		if port != reload.DefaultPort {
			t.Errorf("got %d, want %d", port, reload.DefaultPort)
		}
	})

	t.Run("invalid env value errors", func(t *testing.T) {
		devPort = 0
		t.Setenv("EXTKIT_PORT", "not-a-port")

		if _, err := resolvePort(nil); err == nil {
			t.Fatal("expected error, got nil")
		}
	})
}

func TestResolveStrategy(t *testing.T) {
	t.Run("default is websocket", func(t *testing.T) {
		devStrategy = ""
		t.Setenv("EXTKIT_RELOAD_STRATEGY", "")

		got, err := resolveStrategy(nil)
		if err != nil {
			t.Fatal(err)
		}
		if got != reload.StrategyWebSocket {
			t.Errorf("got %q, want %q", got, reload.StrategyWebSocket)
		}
	})

	t.Run("config selects poll", func(t *testing.T) {
		devStrategy = ""
		t.Setenv("EXTKIT_RELOAD_STRATEGY", "")

		got, err := resolveStrategy(&config.ProjectConfig{Reload: config.ReloadPoll})
		if err != nil {
			t.Fatal(err)
		}
		if got != reload.StrategyPoll {
			t.Errorf("got %q, want %q", got, reload.StrategyPoll)
		}
	})

	t.Run("flag beats config", func(t *testing.T) {
		devStrategy = "websocket"
		defer func() { devStrategy = "" }()

		got, err := resolveStrategy(&config.ProjectConfig{Reload: config.ReloadPoll})
		if err != nil {
			t.Fatal(err)
		}
		if got != reload.StrategyWebSocket {
			t.Errorf("got %q, want %q", got, reload.StrategyWebSocket)
		}
	})

	t.Run("unknown value errors", func(t *testing.T) {
		devStrategy = "carrier-pigeon"
		defer func() { devStrategy = "" }()

		if _, err := resolveStrategy(nil); err == nil {
			t.Fatal("expected error, got nil")
		}
	})
}

func TestResolveOutputDir(t *testing.T) {
	t.Run("flag takes priority", func(t *testing.T) {
		globalOutputDir = "from-flag"
		defer func() { globalOutputDir = "" }()
		t.Setenv("EXTKIT_OUTPUT_DIR", "from-env")

		if got := resolveOutputDir(&config.ProjectConfig{OutputDir: "from-config"}); got != "from-flag" {
			t.Errorf("got %q, want %q", got, "from-flag")
		}
	})

	t.Run("env beats config", func(t *testing.T) {
		globalOutputDir = ""
		t.Setenv("EXTKIT_OUTPUT_DIR", "from-env")

		if got := resolveOutputDir(&config.ProjectConfig{OutputDir: "from-config"}); got != "from-env" {
			t.Errorf("got %q, want %q", got, "from-env")
		}
	})

	t.Run("empty without config", func(t *testing.T) {
		globalOutputDir = ""
		t.Setenv("EXTKIT_OUTPUT_DIR", "")

		if got := resolveOutputDir(nil); got != "" {
			t.Errorf("got %q, want empty", got)
		}
	})
}

func TestVersionCommand(t *testing.T) {
	if versionCmd.Use != "version" {
		t.Errorf("Use: got %q, want %q", versionCmd.Use, "version")
	}
}
