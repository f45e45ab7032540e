package preflight

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"capturesync/internal/config"
	"capturesync/internal/deps"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	return checkDirectory(name, path, unix.R_OK|unix.W_OK|unix.X_OK, "read/write ok")
}

// CheckReadableDirectory verifies that the directory exists and can be listed.
// The notes tree belongs to the capture application; write access is not needed.
func CheckReadableDirectory(name, path string) Result {
	return checkDirectory(name, path, unix.R_OK|unix.X_OK, "read ok")
}

func checkDirectory(name, path string, mode uint32, okDetail string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, mode); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s)", path, okDetail)}
}

// CheckCredentials verifies the remote credentials for the configured backend.
// Drive needs an OAuth client file; GCS needs a bucket and accepts ambient
// application default credentials when no key file exists.
func CheckCredentials(cfg *config.Config) Result {
	const name = "Remote credentials"

	path := strings.TrimSpace(cfg.Remote.CredentialsFile)
	if strings.TrimSpace(cfg.Remote.Backend) == config.BackendGCS {
		if strings.TrimSpace(cfg.Remote.GCSBucket) == "" {
			return Result{Name: name, Detail: "gcs_bucket not configured"}
		}
		if _, err := os.Stat(path); err != nil {
			return Result{Name: name, Passed: true, Detail: "using application default credentials"}
		}
		return Result{Name: name, Passed: true, Detail: path}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	var parsed map[string]json.RawMessage
	if err := json.Unmarshal(data, &parsed); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not valid JSON)", path)}
	}
	if _, ok := parsed["installed"]; !ok {
		if _, ok := parsed["web"]; !ok {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: not an OAuth client file)", path)}
		}
	}
	return Result{Name: name, Passed: true, Detail: path}
}

// CheckToken verifies that an OAuth token has been stored by `auth login`.
func CheckToken(path string) Result {
	const name = "Remote token"

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: "not linked (run `capturesync auth login`)"}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	if info.Mode().Perm()&0o077 != 0 {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (warning: readable by others)", path)}
	}
	return Result{Name: name, Passed: true, Detail: path}
}

// CheckNtfy verifies that the ntfy server answering topic is reachable.
func CheckNtfy(ctx context.Context, topic string) Result {
	const name = "ntfy"

	topic = strings.TrimSpace(topic)
	if topic == "" {
		return Result{Name: name, Detail: "topic not configured"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodHead, topic, nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("invalid topic url (%v)", err)}
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Result{Name: name, Detail: summarizeNetError(err)}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return Result{Name: name, Detail: fmt.Sprintf("server error (%d)", resp.StatusCode)}
	}
	return Result{Name: name, Passed: true, Detail: "Reachable"}
}

// CheckSystemDeps evaluates the external binaries for the given config.
// Both the daemon and the CLI status command use this to avoid duplicating
// the requirements list.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "FFprobe",
			Command:     cfg.FFprobeBinary(),
			Description: "Reads recording durations",
			Optional:    !cfg.Upload.ProbeDurations,
		},
	}
	return deps.CheckBinaries(requirements)
}

func summarizeNetError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "request timed out"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "request timed out"
	}
	return fmt.Sprintf("unreachable (%v)", err)
}
