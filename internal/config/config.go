// Package config loads reachy-voice settings.
//
// Settings are layered: built-in defaults, then the YAML file, then
// environment overrides. Derived values (camera host, WebRTC signalling URL)
// are filled in last. Durations are written as strings in YAML ("30s").
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/teslashibe/reachy-voice/pkg/audioio"
	"github.com/teslashibe/reachy-voice/pkg/camera"
	"github.com/teslashibe/reachy-voice/pkg/conversation"
	"github.com/teslashibe/reachy-voice/pkg/faceid"
	"github.com/teslashibe/reachy-voice/pkg/inference"
	"github.com/teslashibe/reachy-voice/pkg/memory"
	"github.com/teslashibe/reachy-voice/pkg/stt"
	"github.com/teslashibe/reachy-voice/pkg/tts"
	"github.com/teslashibe/reachy-voice/pkg/vad"
	"github.com/teslashibe/reachy-voice/pkg/web"
)

// Identity store backends.
const (
	StoreJSON   = "json"
	StoreBadger = "badger"
)

// Playback modes.
const (
	// PlaybackBridge posts WAV clips to the robot-side audio bridge.
	PlaybackBridge = "bridge"
	// PlaybackPaced plays into a local real-time sink (dry runs).
	PlaybackPaced = "paced"
)

// DefaultChatFallbackModel is tried when the primary chat model fails.
const DefaultChatFallbackModel = "gpt-4.1-mini"

// ErrNoAPIKey is returned by Validate when no OpenAI key is configured.
var ErrNoAPIKey = errors.New("config: openai api key required (set OPENAI_API_KEY)")

// Config is the complete reachy-voice configuration.
type Config struct {
	LogLevel string `yaml:"log_level" json:"log_level"`

	Robot        Robot               `yaml:"robot" json:"robot"`
	Audio        audioio.Config      `yaml:"audio" json:"audio"`
	VAD          vad.Config          `yaml:"vad" json:"vad"`
	FaceID       FaceID              `yaml:"face_id" json:"face_id"`
	Camera       camera.Config       `yaml:"camera" json:"camera"`
	OpenAI       OpenAI              `yaml:"openai" json:"openai"`
	Memory       Memory              `yaml:"memory" json:"memory"`
	Conversation conversation.Config `yaml:"conversation" json:"conversation"`
	Playback     Playback            `yaml:"playback" json:"playback"`
	Server       web.Config          `yaml:"server" json:"server"`
}

// FaceID configures identification.
type FaceID struct {
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Store selects the identity backend: "json" or "badger".
	Store string `yaml:"store" json:"store"`

	// RegistryPath is the JSON registry file.
	RegistryPath string `yaml:"registry_path" json:"registry_path"`

	// BadgerDir is the badger database directory.
	BadgerDir string `yaml:"badger_dir" json:"badger_dir"`

	MatchThreshold           float64 `yaml:"match_threshold" json:"match_threshold"`
	MaxEmbeddingsPerUser     int     `yaml:"max_embeddings_per_user" json:"max_embeddings_per_user"`
	NewUserConsecutiveMisses int     `yaml:"new_user_consecutive_misses" json:"new_user_consecutive_misses"`

	Extractor faceid.ExtractorConfig `yaml:"extractor" json:"extractor"`
}

// Options returns the registry options for this section.
func (f FaceID) Options() []faceid.Option {
	return []faceid.Option{
		faceid.WithMatchThreshold(f.MatchThreshold),
		faceid.WithMaxEmbeddingsPerUser(f.MaxEmbeddingsPerUser),
		faceid.WithNewUserConsecutiveMisses(f.NewUserConsecutiveMisses),
	}
}

// OpenAI configures the speech-to-text, chat and text-to-speech clients.
type OpenAI struct {
	APIKey  string `yaml:"api_key" json:"-"`
	BaseURL string `yaml:"base_url" json:"base_url"`

	STTModel string `yaml:"stt_model" json:"stt_model"`
	Language string `yaml:"language" json:"language"`

	// ChatFallbackModel answers when ChatModel fails. Empty disables the
	// fallback.
	ChatModel         string `yaml:"chat_model" json:"chat_model"`
	ChatFallbackModel string `yaml:"chat_fallback_model" json:"chat_fallback_model"`

	TTSModel string  `yaml:"tts_model" json:"tts_model"`
	Voice    string  `yaml:"voice" json:"voice"`
	Speed    float64 `yaml:"speed" json:"speed"`
}

// Memory configures per-user memory.
type Memory struct {
	Enabled      bool   `yaml:"enabled" json:"enabled"`
	Path         string `yaml:"path" json:"path"`
	MaxExchanges int    `yaml:"max_exchanges" json:"max_exchanges"`
}

// Playback selects how synthesized speech reaches the speaker.
type Playback struct {
	Mode string `yaml:"mode" json:"mode"`
}

// Default returns the built-in configuration.
func Default() *Config {
	sttDefaults := stt.DefaultConfig()
	chatDefaults := inference.DefaultConfig()
	ttsDefaults := tts.DefaultConfig()

	conv := *conversation.DefaultConfig()
	conv.Logger = nil

	return &Config{
		LogLevel: "info",
		Audio:    audioio.DefaultConfig(),
		VAD:      vad.DefaultConfig(),
		FaceID: FaceID{
			Enabled:                  true,
			Store:                    StoreJSON,
			RegistryPath:             faceid.DefaultRegistryPath(),
			BadgerDir:                filepath.Join(reachyDir(), "faces.db"),
			MatchThreshold:           faceid.DefaultMatchThreshold,
			MaxEmbeddingsPerUser:     faceid.DefaultMaxEmbeddingsPerUser,
			NewUserConsecutiveMisses: faceid.DefaultNewUserConsecutiveMisses,
			Extractor:                faceid.DefaultExtractorConfig(),
		},
		Camera: camera.Config{Timeout: camera.DefaultTimeout},
		OpenAI: OpenAI{
			STTModel: sttDefaults.Model,
			Language: sttDefaults.Language,

			ChatModel:         chatDefaults.Model,
			ChatFallbackModel: DefaultChatFallbackModel,

			TTSModel: ttsDefaults.ModelID,
			Voice:    ttsDefaults.VoiceID,
			Speed:    ttsDefaults.Speed,
		},
		Memory: Memory{
			Enabled:      true,
			Path:         filepath.Join(reachyDir(), "memory.json"),
			MaxExchanges: memory.DefaultMaxExchanges,
		},
		Conversation: conv,
		Playback:     Playback{Mode: PlaybackBridge},
		Server:       web.DefaultConfig(),
	}
}

// DefaultPath returns ~/.reachy/voice.yaml.
func DefaultPath() string {
	return filepath.Join(reachyDir(), "voice.yaml")
}

func reachyDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".reachy")
}

// Load builds a Config from defaults, the YAML file at path and the
// environment. An empty path means DefaultPath, which may be absent; an
// explicit path must exist. Load does not validate.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := cfg.LoadEnv(); err != nil {
		return nil, err
	}
	cfg.derive()
	return cfg, nil
}

// LoadEnv applies environment overrides.
func (c *Config) LoadEnv() error {
	c.Robot.Host = RobotIP(c.Robot.Host)

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.OpenAI.APIKey = key
	}
	if url := os.Getenv("OPENAI_BASE_URL"); url != "" {
		c.OpenAI.BaseURL = url
	}
	if level := os.Getenv("REACHY_LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}
	if path := os.Getenv("REACHY_REGISTRY_PATH"); path != "" {
		c.FaceID.RegistryPath = path
	}
	if path := os.Getenv("REACHY_MEMORY_PATH"); path != "" {
		c.Memory.Path = path
	}
	if addr := os.Getenv("REACHY_API_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if backend := os.Getenv("REACHY_AUDIO_BACKEND"); backend != "" {
		c.Audio.Backend = audioio.Backend(strings.ToLower(backend))
	}
	if v := os.Getenv("REACHY_BARGE_IN"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return &ConfigError{Field: "REACHY_BARGE_IN", Message: fmt.Sprintf("not a boolean: %q", v)}
		}
		c.Conversation.BargeIn = enabled
	}
	return nil
}

// derive fills values that default from other sections.
func (c *Config) derive() {
	if c.Camera.Host == "" {
		c.Camera.Host = c.Robot.Host
	}
	if c.Audio.SignalURL == "" && c.Robot.Host != "" {
		c.Audio.SignalURL = SignalURL(c.Robot.Host)
	}
}

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Robot.Host == "" {
		errs = append(errs, &ConfigError{Field: "robot.host", Message: "robot host required (set ROBOT_IP)"})
	}
	if c.OpenAI.APIKey == "" {
		errs = append(errs, ErrNoAPIKey)
	}
	if err := c.Audio.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("audio: %w", err))
	}
	if err := c.VAD.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Conversation.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("conversation: %w", err))
	}
	if c.FaceID.Enabled {
		errs = append(errs, c.FaceID.validate())
		if err := c.Camera.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("camera: %w", err))
		}
	}
	if c.Memory.Enabled && c.Memory.Path == "" {
		errs = append(errs, &ConfigError{Field: "memory.path", Message: "memory path required when memory is enabled"})
	}
	switch c.Playback.Mode {
	case PlaybackBridge, PlaybackPaced:
	default:
		errs = append(errs, &ConfigError{Field: "playback.mode", Message: fmt.Sprintf("unknown playback mode %q", c.Playback.Mode)})
	}

	return errors.Join(errs...)
}

func (f FaceID) validate() error {
	switch f.Store {
	case StoreJSON:
		if f.RegistryPath == "" {
			return &ConfigError{Field: "face_id.registry_path", Message: "registry path required for the json store"}
		}
	case StoreBadger:
		if f.BadgerDir == "" {
			return &ConfigError{Field: "face_id.badger_dir", Message: "badger dir required for the badger store"}
		}
	default:
		return &ConfigError{Field: "face_id.store", Message: fmt.Sprintf("unknown store %q", f.Store)}
	}
	if f.MatchThreshold <= 0 {
		return &ConfigError{Field: "face_id.match_threshold", Message: "match threshold must be positive"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
