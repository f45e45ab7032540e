package daemonctl

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"capturesync/internal/ipc"
)

// ErrDaemonNotRunning indicates there is no live daemon process to act on.
var ErrDaemonNotRunning = errors.New("daemon not running")

const pollInterval = 100 * time.Millisecond

// LaunchOptions controls daemon process launch.
type LaunchOptions struct {
	ConfigPath string
	LogLevel   string
}

// StartResult reports what Start did.
type StartResult struct {
	AlreadyRunning bool
	PID            int
}

// StopResult reports how the daemon went away.
type StopResult struct {
	PID    int
	Forced bool
}

// Launch starts a detached daemon process. Its console output is discarded;
// the daemon keeps its own run log.
func Launch(executable string, opts LaunchOptions) (int, error) {
	if strings.TrimSpace(executable) == "" {
		return 0, errors.New("launch daemon: executable path is empty")
	}
	args := []string{"daemon"}
	if path := strings.TrimSpace(opts.ConfigPath); path != "" {
		args = append(args, "--config", path)
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		args = append(args, "--log-level", level)
	}

	proc := exec.Command(executable, args...)
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return 0, fmt.Errorf("launch daemon: %w", err)
	}
	pid := proc.Process.Pid
	return pid, proc.Process.Release()
}

// WaitForClient polls the socket until the daemon answers or timeout passes.
func WaitForClient(socketPath string, timeout time.Duration) (*ipc.Client, error) {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for {
		client, err := ipc.Dial(socketPath)
		if err == nil {
			return client, nil
		}
		lastErr = err
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("daemon failed to start: %w", lastErr)
		}
		time.Sleep(pollInterval)
	}
}

// Start launches the daemon unless its socket already answers.
func Start(socketPath, executable string, opts LaunchOptions, timeout time.Duration) (StartResult, error) {
	if client, err := ipc.Dial(socketPath); err == nil {
		defer client.Close()
		result := StartResult{AlreadyRunning: true}
		if status, err := client.Status(); err == nil {
			result.PID = status.Status.PID
		}
		return result, nil
	}

	pid, err := Launch(executable, opts)
	if err != nil {
		return StartResult{}, err
	}
	client, err := WaitForClient(socketPath, timeout)
	if err != nil {
		return StartResult{PID: pid}, err
	}
	client.Close()
	return StartResult{PID: pid}, nil
}

// ReadPID returns the process id stored at path.
func ReadPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, ErrDaemonNotRunning
	}
	if err != nil {
		return 0, fmt.Errorf("read pid file %q: %w", path, err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("pid file %q holds %q", path, strings.TrimSpace(string(data)))
	}
	return pid, nil
}

// Alive reports whether a process with pid exists.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}

// Stop sends SIGTERM to the daemon named by pidPath and waits up to grace for
// it to exit before sending SIGKILL. Stale pid and socket files are removed.
func Stop(pidPath, socketPath string, grace time.Duration) (StopResult, error) {
	pid, err := ReadPID(pidPath)
	if err != nil {
		return StopResult{}, err
	}
	if pid == os.Getpid() {
		return StopResult{}, fmt.Errorf("refusing to signal current process (pid %d)", pid)
	}
	result := StopResult{PID: pid}
	if !Alive(pid) {
		cleanup(pidPath, socketPath)
		return result, ErrDaemonNotRunning
	}

	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		return result, fmt.Errorf("signal daemon %d: %w", pid, err)
	}
	if waitExit(pid, grace) {
		cleanup(pidPath, socketPath)
		return result, nil
	}

	if err := syscall.Kill(pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return result, fmt.Errorf("kill daemon %d: %w", pid, err)
	}
	result.Forced = true
	waitExit(pid, grace)
	cleanup(pidPath, socketPath)
	return result, nil
}

func waitExit(pid int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for Alive(pid) {
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(pollInterval)
	}
	return true
}

func cleanup(pidPath, socketPath string) {
	_ = os.Remove(pidPath)
	if socketPath != "" {
		_ = os.Remove(socketPath)
	}
}
