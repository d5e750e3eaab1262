package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config stores runtime configuration. Values come from defaults, then an
// optional YAML file, then environment variables.
type Config struct {
	Deepgram    DeepgramConfig    `yaml:"deepgram"`
	Audio       AudioConfig       `yaml:"audio"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Rules       RulesConfig       `yaml:"rules"`
	Session     SessionConfig     `yaml:"session"`
	Log         LogConfig         `yaml:"log"`

	// File is the config file that was read, if any.
	File string `yaml:"-"`
}

type DeepgramConfig struct {
	APIKey      string `yaml:"api_key"`
	APIBaseURL  string `yaml:"api_base"`
	Model       string `yaml:"model"`
	Language    string `yaml:"language"`
	SmartFormat bool   `yaml:"smart_format"`
}

type AudioConfig struct {
	RecorderCommand string `yaml:"recorder_command"`
	InputFormat     string `yaml:"input_format"`
	InputDevice     string `yaml:"input_device"`
	SampleRate      int    `yaml:"sample_rate"`
	Channels        int    `yaml:"channels"`
}

type RecognitionConfig struct {
	Language       string `yaml:"language"`
	Continuous     bool   `yaml:"continuous"`
	InterimResults bool   `yaml:"interim_results"`
}

type RulesConfig struct {
	Path           string   `yaml:"path"`
	IterationLimit int      `yaml:"iteration_limit"`
	Inline         []string `yaml:"inline"`
}

type SessionConfig struct {
	ChunkSize       int           `yaml:"chunk_size"`
	FinalizeTimeout time.Duration `yaml:"finalize_timeout"`
	InterimDebounce time.Duration `yaml:"interim_debounce"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load resolves configuration from the config file, environment variables and defaults.
func Load() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errors.New("could not determine home directory")
	}
	configDir := filepath.Join(home, ".config", "voicescribe")

	cfg := defaults(configDir)

	path := strings.TrimSpace(os.Getenv("VOICESCRIBE_CONFIG"))
	explicit := path != ""
	if !explicit {
		path = filepath.Join(configDir, "config.yaml")
	}
	if err := readFile(path, explicit, &cfg); err != nil {
		return Config{}, err
	}

	applyEnv(&cfg)
	sanitize(&cfg)
	return cfg, nil
}

func defaults(configDir string) Config {
	return Config{
		Deepgram: DeepgramConfig{
			APIBaseURL:  "https://api.deepgram.com/v1",
			Model:       "nova-2",
			SmartFormat: true,
		},
		Audio: AudioConfig{
			RecorderCommand: "ffmpeg",
			InputFormat:     "pulse",
			InputDevice:     "default",
			SampleRate:      16000,
			Channels:        1,
		},
		Recognition: RecognitionConfig{
			Language:       "en-US",
			Continuous:     true,
			InterimResults: true,
		},
		Rules: RulesConfig{
			Path:           filepath.Join(configDir, "substitutions.rules"),
			IterationLimit: 30,
		},
		Session: SessionConfig{
			ChunkSize:       4096,
			FinalizeTimeout: 4 * time.Second,
			InterimDebounce: 50 * time.Millisecond,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func readFile(path string, explicit bool, cfg *Config) error {
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("failed to read config file %q: %w", path, err)
	}
	if err := yaml.Unmarshal(contents, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %q: %w", path, err)
	}
	cfg.File = path
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Deepgram.APIKey = envOrDefault("DEEPGRAM_API_KEY", cfg.Deepgram.APIKey)
	cfg.Deepgram.APIBaseURL = envOrDefault("DEEPGRAM_API_BASE", cfg.Deepgram.APIBaseURL)
	cfg.Deepgram.Model = envOrDefault("DEEPGRAM_MODEL", cfg.Deepgram.Model)
	cfg.Deepgram.Language = envOrDefault("DEEPGRAM_LANGUAGE", cfg.Deepgram.Language)
	cfg.Deepgram.SmartFormat = envOrDefaultBool("DEEPGRAM_SMART_FORMAT", cfg.Deepgram.SmartFormat)

	cfg.Audio.RecorderCommand = envOrDefault("VOICESCRIBE_FFMPEG_COMMAND", cfg.Audio.RecorderCommand)
	cfg.Audio.InputFormat = envOrDefault("VOICESCRIBE_AUDIO_INPUT_FORMAT", cfg.Audio.InputFormat)
	cfg.Audio.InputDevice = envOrDefault("VOICESCRIBE_AUDIO_INPUT_DEVICE", cfg.Audio.InputDevice)
	cfg.Audio.SampleRate = envOrDefaultInt("VOICESCRIBE_SAMPLE_RATE", cfg.Audio.SampleRate)
	cfg.Audio.Channels = envOrDefaultInt("VOICESCRIBE_CHANNELS", cfg.Audio.Channels)

	cfg.Recognition.Language = envOrDefault("VOICESCRIBE_LANGUAGE", cfg.Recognition.Language)
	cfg.Recognition.Continuous = envOrDefaultBool("VOICESCRIBE_CONTINUOUS", cfg.Recognition.Continuous)
	cfg.Recognition.InterimResults = envOrDefaultBool("VOICESCRIBE_INTERIM_RESULTS", cfg.Recognition.InterimResults)

	cfg.Rules.Path = envOrDefault("VOICESCRIBE_RULES_FILE", cfg.Rules.Path)
	cfg.Rules.IterationLimit = envOrDefaultInt("VOICESCRIBE_RULE_ITERATION_LIMIT", cfg.Rules.IterationLimit)

	cfg.Session.ChunkSize = envOrDefaultInt("VOICESCRIBE_AUDIO_CHUNK_SIZE", cfg.Session.ChunkSize)
	cfg.Session.FinalizeTimeout = envOrDefaultMillis("VOICESCRIBE_FINALIZE_TIMEOUT_MS", cfg.Session.FinalizeTimeout)
	cfg.Session.InterimDebounce = envOrDefaultMillis("VOICESCRIBE_INTERIM_DEBOUNCE_MS", cfg.Session.InterimDebounce)

	cfg.Log.Level = envOrDefault("VOICESCRIBE_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = envOrDefault("VOICESCRIBE_LOG_FORMAT", cfg.Log.Format)
}

func sanitize(cfg *Config) {
	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Rules.IterationLimit <= 0 {
		cfg.Rules.IterationLimit = 30
	}
	if cfg.Session.ChunkSize < 256 {
		cfg.Session.ChunkSize = 4096
	}
	if cfg.Session.FinalizeTimeout <= 0 {
		cfg.Session.FinalizeTimeout = 4 * time.Second
	}
	if cfg.Session.InterimDebounce < 0 {
		cfg.Session.InterimDebounce = 0
	}
	cfg.Deepgram.APIKey = strings.TrimSpace(cfg.Deepgram.APIKey)
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultMillis(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return fallback
	}
	return time.Duration(parsed) * time.Millisecond
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
