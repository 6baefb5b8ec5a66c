package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/extkit/cli/internal/build"
	"github.com/extkit/cli/internal/config"
	"github.com/extkit/cli/internal/env"
	"github.com/extkit/cli/internal/manifest"
	"github.com/extkit/cli/internal/reload"
	"github.com/extkit/cli/internal/watcher"
)

// shutdownTimeout bounds the cleanup sequence after the first interrupt.
// A second interrupt or a stall past this deadline forces the exit.
const shutdownTimeout = 5 * time.Second

var (
	devPort     int
	devReload   bool
	devStrategy string
)

var devCmd = &cobra.Command{
	Use:   "dev",
	Short: "Build continuously and hot-reload the running extension",
	Long: `Build the extension in development mode, watch the source tree, and
rebuild on every change.

Reload clients are injected into the compiled entries so running extension
contexts pick up rebuilds: with the default websocket strategy a local
session pushes reload messages; with the poll strategy clients watch the
dev timestamp in the built manifest and no server runs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDev()
	},
}

func registerDevFlags() {
	devCmd.Flags().IntVar(&devPort, "port", 0, "reload server port; the first free port in a range of 10 is used (env: EXTKIT_PORT)")
	devCmd.Flags().BoolVar(&devReload, "reload", true, "notify running extension contexts after rebuilds")
	devCmd.Flags().StringVar(&devStrategy, "reload-strategy", "", "reload strategy: websocket or poll (env: EXTKIT_RELOAD_STRATEGY)")
}

func runDev() error {
	projectDir := globalProjectDir
	if projectDir == "" {
		projectDir = "."
	}

	cfg, err := config.LoadDir(projectDir)
	if err != nil {
		return err
	}

	vars, err := env.Load(projectDir, string(manifest.ModeDevelopment))
	if err != nil {
		return err
	}

	opts := &build.Options{
		ProjectDir: projectDir,
		OutputDir:  resolveOutputDir(cfg),
		Mode:       manifest.ModeDevelopment,
		Defines:    env.PublicDefines(vars),
	}

	var session *reload.Session
	var tracker *reload.TimestampTracker
	if devReload {
		strategy, err := resolveStrategy(cfg)
		if err != nil {
			return err
		}
		switch strategy {
		case reload.StrategyWebSocket:
			port, err := resolvePort(cfg)
			if err != nil {
				return err
			}
			session = reload.NewSession(out)
			if err := session.Start(port); err != nil {
				return err
			}
			defer session.Close()
			opts.Inject = clientScripts(reload.ClientScripts(strategy, session.Port()))
		case reload.StrategyPoll:
			tracker = &reload.TimestampTracker{}
			opts.Inject = clientScripts(reload.ClientScripts(strategy, 0))
		}
	}

	driver := build.New(build.EsbuildCompiler{}, out)
	defer driver.Close()

	result, err := driver.Run(opts)
	if err != nil {
		if driver.Layout() == nil {
			return err
		}
		out.Error("build failed: %v", err)
	} else {
		reportDevBuild(result, tracker)
	}
	layout := driver.Layout()
	out.Info("load the unpacked extension from %s", layout.OutputDir)

	w, err := watcher.New(watcher.Options{
		Root:    layout.SourceRoot,
		Exclude: []string{"node_modules", filepath.Base(layout.OutputDir)},
		Out:     out,
	})
	if err != nil {
		return err
	}
	defer w.Close()
	out.Step("watching %s for changes", layout.SourceRoot)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		out.Println("")
		out.Info("shutting down")
		cancel()
		select {
		case <-sigCh:
			out.Warning("forced exit")
		case <-time.After(shutdownTimeout):
			out.Warning("shutdown timed out, forcing exit")
		}
		os.Exit(1)
	}()

	return w.Run(ctx, func(changed []string) {
		out.Debug("changed: %s", strings.Join(changed, ", "))
		res, err := driver.Run(opts)
		if err != nil {
			out.Error("rebuild failed: %v", err)
			return
		}
		reportDevBuild(res, tracker)
		if session != nil {
			session.Notify(changed, res.Entries)
		}
	})
}

func reportDevBuild(res *build.Result, tracker *reload.TimestampTracker) {
	out.Success("built %d entries, %d assets in %s",
		res.Entries.Total(), res.AssetCount, res.Duration.Round(time.Millisecond))
	if tracker != nil && tracker.Observe(res.Manifest.DevTimestamp) {
		out.Info("reload signal published; polling contexts restart shortly")
	}
}

func clientScripts(s reload.Scripts) *build.ClientScripts {
	return &build.ClientScripts{
		Background: s.Background,
		Content:    s.Content,
		Page:       s.Page,
	}
}
