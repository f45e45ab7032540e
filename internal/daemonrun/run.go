package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"capturesync/internal/auth"
	"capturesync/internal/config"
	"capturesync/internal/daemon"
	"capturesync/internal/ipc"
	"capturesync/internal/logging"
	"capturesync/internal/notifications"
	"capturesync/internal/queue"
	"capturesync/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the capturesync daemon and blocks until SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	// Nothing below may touch shared state until the instance lock is held.
	lock, err := daemon.AcquireLock(cfg.LockPath())
	if err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	level := opts.LogLevel
	if strings.TrimSpace(level) == "" {
		level = cfg.Logging.Level
	}
	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("capturesync-%s.log", runID))

	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout"},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	runHandler, err := logging.NewHandler(logging.Options{
		Level:       level,
		Format:      "json",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to open run log: %v\n", err)
	} else {
		logger = logging.TeeLogger(logger, runHandler)
	}
	logger = logger.With(logging.String("session_id", uuid.NewString()))

	logDependencySnapshot(logger, cfg)
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update capturesync.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "capturesync-*.log", Exclude: []string{logPath}},
	)
	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return err
	}
	defer store.Close()

	dispatcher := notifications.NewDispatcher(cfg, notifications.NewService(cfg), nil, logger)
	dispatcher.Start(context.WithoutCancel(signalCtx))
	defer dispatcher.Stop()

	connector := auth.NewConnector(cfg, logger)
	manager := workflow.NewManager(cfg, store, connector, logger, workflow.WithNotifier(dispatcher))

	recovery, err := manager.Recover(signalCtx)
	if err != nil {
		logging.WarnWithContext(logger, "startup recovery failed", "recovery_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "interrupted uploads stay in uploading until the next start"),
		)
	} else if len(recovery.Reset) > 0 || len(recovery.Enqueued) > 0 {
		logger.Info("startup recovery complete",
			logging.Int("reset", len(recovery.Reset)),
			logging.Int("enqueued", len(recovery.Enqueued)),
			logging.String(logging.FieldEventType, "recovery_complete"),
		)
	}
	if anomalies, err := manager.CheckIntegrity(signalCtx); err != nil {
		logging.WarnWithContext(logger, "integrity check failed", "integrity_failed", logging.Error(err))
	} else if len(anomalies) > 0 {
		logger.Info("integrity check repaired records",
			logging.Int("anomalies", len(anomalies)),
			logging.String(logging.FieldEventType, "integrity_repaired"),
		)
	}

	d, err := daemon.New(cfg, store, logger, manager, dispatcher, daemon.WithLock(lock))
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Stop()

	ipcServer, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check for another running daemon and queue database access"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("capturesync daemon shutting down")
	return nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "capturesync.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	ffprobe := cfg.FFprobeBinary()
	logger.Info("dependency snapshot",
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.String("backend", cfg.Remote.Backend),
		logging.String("notes_dir", cfg.Paths.NotesDir),
		logging.Bool("probe_durations", cfg.Upload.ProbeDurations),
		logging.Bool("ffprobe_available", binaryAvailable(ffprobe)),
		logging.String("ffprobe_binary", ffprobe),
		logging.Bool("ntfy_enabled", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
		logging.Bool("watch_enabled", cfg.Watch.Enabled),
		logging.Bool("api_enabled", strings.TrimSpace(cfg.Paths.APIBind) != ""),
	)
}

func binaryAvailable(name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	_, err := exec.LookPath(name)
	return err == nil
}
