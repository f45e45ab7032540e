package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeRemote(); err != nil {
		return err
	}
	c.normalizeUpload()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv("CAPTURESYNC_NOTES_DIR"); ok && strings.TrimSpace(value) != "" {
		c.Paths.NotesDir = strings.TrimSpace(value)
	}
	var err error
	if c.Paths.NotesDir, err = expandPath(c.Paths.NotesDir); err != nil {
		return fmt.Errorf("paths.notes_dir: %w", err)
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	return nil
}

func (c *Config) normalizeRemote() error {
	c.Remote.Backend = strings.ToLower(strings.TrimSpace(c.Remote.Backend))
	if c.Remote.Backend == "" {
		c.Remote.Backend = defaultRemoteBackend
	}
	c.Remote.RootFolder = strings.TrimSpace(c.Remote.RootFolder)
	c.Remote.GCSBucket = strings.TrimSpace(c.Remote.GCSBucket)
	if strings.TrimSpace(c.Remote.CredentialsFile) == "" {
		if value, ok := os.LookupEnv("GOOGLE_APPLICATION_CREDENTIALS"); ok {
			c.Remote.CredentialsFile = strings.TrimSpace(value)
		}
	}
	var err error
	if c.Remote.CredentialsFile, err = expandPath(c.Remote.CredentialsFile); err != nil {
		return fmt.Errorf("remote.credentials_file: %w", err)
	}
	if strings.TrimSpace(c.Remote.TokenFile) == "" {
		c.Remote.TokenFile = defaultTokenFile
	}
	if c.Remote.TokenFile, err = expandPath(c.Remote.TokenFile); err != nil {
		return fmt.Errorf("remote.token_file: %w", err)
	}
	return nil
}

func (c *Config) normalizeUpload() {
	c.Upload.NoteExtensions = normalizeExtensions(c.Upload.NoteExtensions, defaultNoteExtensions)
	c.Upload.AudioExtensions = normalizeExtensions(c.Upload.AudioExtensions, defaultAudioExtensions)
}

func (c *Config) normalizeNotifications() {
	if value, ok := os.LookupEnv("CAPTURESYNC_NTFY_TOPIC"); ok && strings.TrimSpace(c.Notifications.NtfyTopic) == "" {
		c.Notifications.NtfyTopic = value
	}
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.BufferSize <= 0 {
		c.Notifications.BufferSize = defaultNotifyBufferSize
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

// normalizeExtensions lowercases entries, adds the leading dot, and drops duplicates.
func normalizeExtensions(values, fallback []string) []string {
	if len(values) == 0 {
		values = fallback
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		ext := strings.ToLower(strings.TrimSpace(value))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if _, ok := seen[ext]; ok {
			continue
		}
		seen[ext] = struct{}{}
		out = append(out, ext)
	}
	return out
}
