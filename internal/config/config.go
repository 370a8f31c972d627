// Package config loads service settings from defaults, environment variables, .env files and CLI flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "VIDFETCH"

// Configuration keys
const (
	KeyServerHost   = "server.host"
	KeyServerPort   = "server.port"
	KeyServerDomain = "server.domain"

	KeyDownloadsDir             = "downloads.dir"
	KeyDownloadsTTL             = "downloads.ttl"
	KeyDownloadsCleanupInterval = "downloads.cleanup_interval"

	KeyExtractorPath          = "extractor.path"
	KeyExtractorAutoInstall   = "extractor.auto_install"
	KeyExtractorUserAgent     = "extractor.user_agent"
	KeyExtractorAudioFormat   = "extractor.audio_format"
	KeyExtractorAudioBitrate  = "extractor.audio_bitrate"
	KeyExtractorTimeout       = "extractor.timeout"
	KeyExtractorMaxConcurrent = "extractor.max_concurrent"
	KeyExtractorRetries       = "extractor.retries"

	KeyLogLevel = "log.level"
	KeyLogJSON  = "log.json"

	KeyArchiveBucket = "archive.bucket"
	KeyArchivePrefix = "archive.prefix"
	KeyArchiveRegion = "archive.region"
)

// DefaultUserAgent is sent to sites that reject unfamiliar clients
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Defaults holds the factory value for every configuration key
var Defaults = map[string]any{
	KeyServerHost:   "0.0.0.0",
	KeyServerPort:   5000,
	KeyServerDomain: "",

	KeyDownloadsDir:             "downloads",
	KeyDownloadsTTL:             time.Duration(0),
	KeyDownloadsCleanupInterval: time.Hour,

	KeyExtractorPath:          "",
	KeyExtractorAutoInstall:   false,
	KeyExtractorUserAgent:     DefaultUserAgent,
	KeyExtractorAudioFormat:   "mp3",
	KeyExtractorAudioBitrate:  192,
	KeyExtractorTimeout:       30 * time.Minute,
	KeyExtractorMaxConcurrent: 2,
	KeyExtractorRetries:       1,

	KeyLogLevel: "info",
	KeyLogJSON:  false,

	KeyArchiveBucket: "",
	KeyArchivePrefix: "",
	KeyArchiveRegion: "",
}

// EnvKeyReplacer maps "extractor.max_concurrent" to "EXTRACTOR_MAX_CONCURRENT"
var EnvKeyReplacer = strings.NewReplacer(".", "_")

var (
	ErrInvalidPort          = errors.New("server port must be between 1 and 65535")
	ErrEmptyDownloadsDir    = errors.New("downloads directory must not be empty")
	ErrInvalidConcurrency   = errors.New("extractor max_concurrent must be at least 1")
	ErrInvalidAudioBitrate  = errors.New("extractor audio_bitrate must be positive")
	ErrInvalidAudioFormat   = errors.New("extractor audio_format must not be empty")
	ErrInvalidRetries       = errors.New("extractor retries must not be negative")
	ErrInvalidCleanupPeriod = errors.New("downloads cleanup_interval must be positive when a ttl is set")
)

// Config is the resolved service configuration
type Config struct {
	Host   string
	Port   int
	Domain string

	DownloadsDir    string
	FileTTL         time.Duration
	CleanupInterval time.Duration

	ExtractorPath  string
	AutoInstall    bool
	UserAgent      string
	AudioFormat    string
	AudioBitrate   int
	Timeout        time.Duration
	MaxConcurrent  int
	ExtractRetries int

	LogLevel string
	LogJSON  bool

	ArchiveBucket string
	ArchivePrefix string
	ArchiveRegion string
}

// Address returns the host:port the server listens on
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AudioQuality returns the bitrate in the form yt-dlp expects, e.g. "192K"
func (c *Config) AudioQuality() string {
	return fmt.Sprintf("%dK", c.AudioBitrate)
}

// ArchiveEnabled reports whether completed downloads are mirrored to S3
func (c *Config) ArchiveEnabled() bool {
	return c.ArchiveBucket != ""
}

// LoadDotEnv loads variables from the given .env files into the process environment.
// Missing files are not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := godotenv.Read(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// Setup registers defaults and environment bindings on v
func Setup(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(EnvKeyReplacer)
	v.AutomaticEnv()

	for key, value := range Defaults {
		v.SetDefault(key, value)
	}
}

// Load resolves and validates the configuration held by v
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Host:   v.GetString(KeyServerHost),
		Port:   v.GetInt(KeyServerPort),
		Domain: v.GetString(KeyServerDomain),

		DownloadsDir:    v.GetString(KeyDownloadsDir),
		FileTTL:         v.GetDuration(KeyDownloadsTTL),
		CleanupInterval: v.GetDuration(KeyDownloadsCleanupInterval),

		ExtractorPath:  v.GetString(KeyExtractorPath),
		AutoInstall:    v.GetBool(KeyExtractorAutoInstall),
		UserAgent:      v.GetString(KeyExtractorUserAgent),
		AudioFormat:    strings.TrimPrefix(strings.ToLower(v.GetString(KeyExtractorAudioFormat)), "."),
		AudioBitrate:   v.GetInt(KeyExtractorAudioBitrate),
		Timeout:        v.GetDuration(KeyExtractorTimeout),
		MaxConcurrent:  v.GetInt(KeyExtractorMaxConcurrent),
		ExtractRetries: v.GetInt(KeyExtractorRetries),

		LogLevel: v.GetString(KeyLogLevel),
		LogJSON:  v.GetBool(KeyLogJSON),

		ArchiveBucket: v.GetString(KeyArchiveBucket),
		ArchivePrefix: v.GetString(KeyArchivePrefix),
		ArchiveRegion: v.GetString(KeyArchiveRegion),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: got %d", ErrInvalidPort, c.Port)
	}
	if strings.TrimSpace(c.DownloadsDir) == "" {
		return ErrEmptyDownloadsDir
	}
	if c.MaxConcurrent < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidConcurrency, c.MaxConcurrent)
	}
	if c.AudioBitrate <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidAudioBitrate, c.AudioBitrate)
	}
	if c.AudioFormat == "" {
		return ErrInvalidAudioFormat
	}
	if c.ExtractRetries < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidRetries, c.ExtractRetries)
	}
	if c.FileTTL > 0 && c.CleanupInterval <= 0 {
		return ErrInvalidCleanupPeriod
	}
	return nil
}
