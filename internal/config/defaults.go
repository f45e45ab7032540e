package config

const (
	defaultConfigPath                = "~/.config/capturesync/config.toml"
	defaultNotesDir                  = "~/Documents/Granular/notes"
	defaultStateDir                  = "~/.local/share/capturesync"
	defaultLogDir                    = "~/.local/share/capturesync/logs"
	defaultCredentialsFile           = "~/.config/capturesync/credentials.json"
	defaultTokenFile                 = "~/.config/capturesync/token.json"
	defaultRemoteBackend             = BackendDrive
	defaultRootFolder                = "Granular CaptureOnly"
	defaultRemoteRequestTimeout      = 120
	defaultMaxRetries                = 3
	defaultBackoffBaseSeconds        = 2
	defaultPartialRetryDelaySeconds  = 30
	defaultPollIntervalSeconds       = 15
	defaultErrorRetryIntervalSeconds = 10
	defaultWatchDebounceMS           = 1500
	defaultNotifyRequestTimeout      = 10
	defaultNotifyBufferSize          = 256
	defaultLogFormat                 = "console"
	defaultLogLevel                  = "info"
	defaultLogRetentionDays          = 30
)

// Supported remote storage backends.
const (
	BackendDrive = "drive"
	BackendGCS   = "gcs"
)

var (
	defaultNoteExtensions  = []string{".md", ".txt", ".json", ".docx", ".html"}
	defaultAudioExtensions = []string{".opus", ".m4a", ".mp3", ".wav", ".webm", ".ogg", ".aac", ".flac", ".audio"}
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			NotesDir: defaultNotesDir,
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Remote: Remote{
			Backend:         defaultRemoteBackend,
			RootFolder:      defaultRootFolder,
			CredentialsFile: defaultCredentialsFile,
			TokenFile:       defaultTokenFile,
			RequestTimeout:  defaultRemoteRequestTimeout,
		},
		Upload: Upload{
			MaxRetries:                defaultMaxRetries,
			BackoffBaseSeconds:        defaultBackoffBaseSeconds,
			PartialRetryDelaySeconds:  defaultPartialRetryDelaySeconds,
			PollIntervalSeconds:       defaultPollIntervalSeconds,
			ErrorRetryIntervalSeconds: defaultErrorRetryIntervalSeconds,
			NoteExtensions:            append([]string(nil), defaultNoteExtensions...),
			AudioExtensions:           append([]string(nil), defaultAudioExtensions...),
		},
		Watch: Watch{
			DebounceMS: defaultWatchDebounceMS,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			AuthRequired:   true,
			Failures:       true,
			BufferSize:     defaultNotifyBufferSize,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
