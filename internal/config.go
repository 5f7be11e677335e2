package internal

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port    string
	WorkDir string

	// TTS (script -> speech). Empty key disables the script branch;
	// audio_url / audio_base64 still work without it.
	TTSAPIKey  string
	TTSVoiceID string

	// Pipeline bounds
	MaxClips        int
	MaxDurationS    float64 // audio longer than this is trimmed
	OutputWidth     int
	OutputHeight    int
	FrameRate       int
	MaxScriptChars  int
	MinAudioBytes   int64
	FetchAttempts   int
	TTSAttempts     int
	RetryBaseDelay  time.Duration
	FetchTimeout    time.Duration
	ProbeTimeout    time.Duration
	EncodeTimeout   time.Duration
	WorkspaceTTL    time.Duration // janitor removes orphaned workspaces older than this
	JanitorSchedule string        // cron spec for the background sweep, empty disables

	// Optional artifact archive (S3-compatible). All four must be set
	// together; otherwise archiving is disabled.
	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3Prefix    string
}

func LoadConfig() (Config, error) {
	cfg := Config{
		Port:    firstNonEmpty(os.Getenv("PORT"), "5000"),
		WorkDir: firstNonEmpty(os.Getenv("WORK_DIR"), "/tmp/video_work"),

		TTSAPIKey:  firstNonEmpty(os.Getenv("ELEVENLABS_API_KEY"), os.Getenv("TTS_API_KEY")),
		TTSVoiceID: firstNonEmpty(os.Getenv("TTS_VOICE_ID"), "21m00Tcm4TlvDq8ikWAM"),

		MaxClips:        5,
		MaxDurationS:    60,
		OutputWidth:     1080,
		OutputHeight:    1920,
		FrameRate:       25,
		MaxScriptChars:  2500,
		MinAudioBytes:   1024,
		FetchAttempts:   3,
		TTSAttempts:     3,
		RetryBaseDelay:  2 * time.Second,
		FetchTimeout:    60 * time.Second,
		ProbeTimeout:    30 * time.Second,
		EncodeTimeout:   180 * time.Second,
		WorkspaceTTL:    30 * time.Minute,
		JanitorSchedule: firstNonEmpty(os.Getenv("JANITOR_SCHEDULE"), "@every 15m"),

		S3Endpoint:  os.Getenv("S3_ENDPOINT"),
		S3Region:    os.Getenv("S3_REGION"),
		S3Bucket:    os.Getenv("S3_BUCKET"),
		S3AccessKey: firstNonEmpty(os.Getenv("S3_ACCESS_KEY"), os.Getenv("S3_ACCESS_KEY_ID")),
		S3SecretKey: firstNonEmpty(os.Getenv("S3_SECRET_ACCESS_KEY"), os.Getenv("S3_SECRET_ACCESS_KEY_ID")),
		S3Prefix:    firstNonEmpty(os.Getenv("S3_PREFIX"), "shorts/"),
	}

	if v := os.Getenv("MAX_CLIPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxClips = n
		}
	}

	if v := os.Getenv("MAX_DURATION_SECONDS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.MaxDurationS = f
		}
	}

	if v := os.Getenv("OUTPUT_WIDTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.OutputWidth = n
		}
	}

	if v := os.Getenv("OUTPUT_HEIGHT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.OutputHeight = n
		}
	}

	if v := os.Getenv("FRAME_RATE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.FrameRate = n
		}
	}

	if v := os.Getenv("FETCH_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.FetchAttempts = n
		}
	}

	if v := os.Getenv("TTS_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.TTSAttempts = n
		}
	}

	if v := os.Getenv("RETRY_BASE_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.RetryBaseDelay = d
		}
	}

	if v := os.Getenv("FETCH_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.FetchTimeout = d
		}
	}

	if v := os.Getenv("ENCODE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.EncodeTimeout = d
		}
	}

	if v := os.Getenv("WORKSPACE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.WorkspaceTTL = d
		}
	}

	return cfg, nil
}

// ArchiveConfigured reports whether all required S3 settings are present.
func (c Config) ArchiveConfigured() bool {
	return c.S3Endpoint != "" && c.S3Region != "" && c.S3Bucket != "" &&
		c.S3AccessKey != "" && c.S3SecretKey != ""
}

func firstNonEmpty(v ...string) string {
	for _, s := range v {
		if s != "" {
			return s
		}
	}
	return ""
}
