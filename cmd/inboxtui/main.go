package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/talentpipe/inboxsync/internal/api"
	"github.com/talentpipe/inboxsync/internal/config"
	"github.com/talentpipe/inboxsync/internal/profile"
	"github.com/talentpipe/inboxsync/internal/tui"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	flag.Parse()

	name := profile.Resolve(*profileFlag)
	if err := profile.ValidateName(name); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	socketPath := profile.SocketPath(name)

	if !probeDaemon(socketPath) {
		fmt.Fprintf(os.Stderr, "daemon not running for profile %q, starting...\n", name)
		if err := startDaemon(name); err != nil {
			fmt.Fprintf(os.Stderr, "failed to start daemon: %v\n", err)
			os.Exit(1)
		}
		if !waitForDaemon(socketPath, 10*time.Second) {
			fmt.Fprintf(os.Stderr, "daemon did not become ready (see %s)\n", profile.LogPath(name))
			os.Exit(1)
		}
	}

	c, err := api.Dial(socketPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to daemon: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = c.Close() }()

	app := tui.NewApp(c, name)
	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// probeDaemon answers whether a daemon serves RPCs on the socket.
func probeDaemon(socketPath string) bool {
	if _, err := os.Stat(socketPath); err != nil {
		return false
	}
	c, err := api.Dial(socketPath)
	if err != nil {
		return false
	}
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = c.Status(ctx)
	return err == nil
}

// startDaemon launches inboxd: config.toml's daemon_path, else next to this
// binary, else from PATH.
func startDaemon(name string) error {
	inboxd := "inboxd"
	if cfg, err := config.Load(profile.ConfigPath()); err == nil && cfg.DaemonPath != "" {
		inboxd = cfg.DaemonPath
	} else if executable, err := os.Executable(); err == nil {
		if local := filepath.Join(filepath.Dir(executable), "inboxd"); fileExists(local) {
			inboxd = local
		}
	}

	// Quiet: the daemon outlives this terminal session and must not draw
	// over the UI. Startup failures land in the profile log.
	cmd := exec.Command(inboxd, "--profile", name, "--quiet")
	return cmd.Start()
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func waitForDaemon(socketPath string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if probeDaemon(socketPath) {
			return true
		}
		time.Sleep(300 * time.Millisecond)
	}
	return false
}
