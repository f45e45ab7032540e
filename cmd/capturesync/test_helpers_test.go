package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"capturesync/internal/config"
	"capturesync/internal/daemon"
	"capturesync/internal/ipc"
	"capturesync/internal/logging"
	"capturesync/internal/notifications"
	"capturesync/internal/queue"
	"capturesync/internal/testsupport"
	"capturesync/internal/workflow"
)

type cliTestEnv struct {
	cfg        *config.Config
	store      *queue.Store
	daemon     *daemon.Daemon
	server     *ipc.Server
	socketPath string
	configPath string
}

// setupCLITestEnv writes a config file and opens the store. The IPC server
// is only started when withDaemon is set.
func setupCLITestEnv(t *testing.T, withDaemon bool) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	t.Setenv("CAPTURESYNC_NOTES_DIR", "")
	base := testsupport.BaseDir(cfg)
	t.Setenv("HOME", filepath.Join(base, "home"))
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	configPath := filepath.Join(base, "capturesync.toml")
	writeTestConfig(t, configPath, cfg)

	env := &cliTestEnv{
		cfg:        cfg,
		store:      testsupport.MustOpenStore(t, cfg),
		socketPath: cfg.SocketPath(),
		configPath: configPath,
	}
	if !withDaemon {
		return env
	}

	logger := logging.NewNop()
	notifier := notifications.NewDispatcher(cfg, nil, nil, logger)
	notifier.Start(context.Background())
	connector := &testsupport.FakeConnector{Remote: testsupport.NewFakeRemote()}
	mgr := workflow.NewManager(cfg, env.store, connector, logger, workflow.WithNotifier(notifier))
	d, err := daemon.New(cfg, env.store, logger, mgr, notifier)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	srv, err := ipc.NewServer(ctx, env.socketPath, d, logger)
	if err != nil {
		cancel()
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()

	env.daemon = d
	env.server = srv
	t.Cleanup(func() {
		cancel()
		srv.Close()
		d.Stop()
		notifier.Stop()
	})
	return env
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--socket", socket}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(
		"[paths]\nnotes_dir = %q\nstate_dir = %q\nlog_dir = %q\n\n[remote]\ncredentials_file = %q\ntoken_file = %q\n",
		cfg.Paths.NotesDir,
		cfg.Paths.StateDir,
		cfg.Paths.LogDir,
		cfg.Remote.CredentialsFile,
		cfg.Remote.TokenFile,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
