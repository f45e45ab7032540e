package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateRemote(); err != nil {
		return err
	}
	if err := c.validateUpload(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.NotesDir) == "" {
		return errors.New("paths.notes_dir must be set (or export CAPTURESYNC_NOTES_DIR)")
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		return errors.New("paths.state_dir must be set")
	}
	return nil
}

func (c *Config) validateRemote() error {
	switch c.Remote.Backend {
	case BackendDrive:
	case BackendGCS:
		if c.Remote.GCSBucket == "" {
			return errors.New("remote.gcs_bucket must be set when remote.backend is \"gcs\"")
		}
	default:
		return fmt.Errorf("remote.backend: unsupported value %q (expected %q or %q)", c.Remote.Backend, BackendDrive, BackendGCS)
	}
	if c.Remote.RootFolder == "" {
		return errors.New("remote.root_folder must be set")
	}
	if strings.ContainsAny(c.Remote.RootFolder, "/\\") {
		return errors.New("remote.root_folder must be a single folder name")
	}
	if c.Remote.RequestTimeout <= 0 {
		return errors.New("remote.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateUpload() error {
	if err := ensurePositiveMap(map[string]int{
		"upload.max_retries":                  c.Upload.MaxRetries,
		"upload.backoff_base_seconds":         c.Upload.BackoffBaseSeconds,
		"upload.poll_interval_seconds":        c.Upload.PollIntervalSeconds,
		"upload.error_retry_interval_seconds": c.Upload.ErrorRetryIntervalSeconds,
	}); err != nil {
		return err
	}
	if c.Upload.PartialRetryDelaySeconds < 0 {
		return errors.New("upload.partial_retry_delay_seconds must be >= 0")
	}
	if len(c.Upload.NoteExtensions) == 0 && len(c.Upload.AudioExtensions) == 0 {
		return errors.New("upload.note_extensions and upload.audio_extensions cannot both be empty")
	}
	for _, note := range c.Upload.NoteExtensions {
		for _, audio := range c.Upload.AudioExtensions {
			if note == audio {
				return fmt.Errorf("extension %q listed as both note and audio", note)
			}
		}
	}
	if c.Watch.Enabled && c.Watch.DebounceMS < 0 {
		return errors.New("watch.debounce_ms must be >= 0")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	topic := c.Notifications.NtfyTopic
	if topic != "" && !strings.HasPrefix(topic, "http://") && !strings.HasPrefix(topic, "https://") {
		return errors.New("notifications.ntfy_topic must be a full http(s) URL")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
