package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// RootConfig is the on-disk layout: named profiles plus the one to use.
type RootConfig struct {
	ActiveConfig string             `mapstructure:"active_config" yaml:"active_config"`
	Configs      map[string]*Config `mapstructure:"configs" yaml:"configs"`
}

type Config struct {
	Audio   AudioConfig   `mapstructure:"audio" yaml:"audio"`
	Output  OutputConfig  `mapstructure:"output" yaml:"output"`
	Display DisplayConfig `mapstructure:"display" yaml:"display"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`

	// Profile is the name of the profile this config was resolved from.
	Profile string `mapstructure:"-" yaml:"-"`
}

type AudioConfig struct {
	SampleRate     int      `mapstructure:"sample_rate" yaml:"sample_rate"`
	Channels       int      `mapstructure:"channels" yaml:"channels"`
	CaptureBackend string   `mapstructure:"capture_backend" yaml:"capture_backend"` // "auto", "pipewire", "pulse", "alsa", "command"
	CaptureDevice  string   `mapstructure:"capture_device" yaml:"capture_device"`
	CaptureCommand []string `mapstructure:"capture_command" yaml:"capture_command"`
	Player         string   `mapstructure:"player" yaml:"player"` // "auto", a player name, or "command"
	PlayerCommand  []string `mapstructure:"player_command" yaml:"player_command"`
}

type OutputConfig struct {
	Directory string `mapstructure:"directory" yaml:"directory"`
	Extension string `mapstructure:"extension" yaml:"extension"`
}

type DisplayConfig struct {
	Label        string        `mapstructure:"label" yaml:"label"`
	TickInterval time.Duration `mapstructure:"tick_interval" yaml:"tick_interval"`
}

type ServerConfig struct {
	Port string `mapstructure:"port" yaml:"port"`
}

var (
	captureBackends = []string{"auto", "pipewire", "pulse", "alsa", "command"}
	players         = []string{"auto", "pw-play", "paplay", "aplay", "ffplay", "mpv", "vlc", "command"}
)

// Default returns the built-in configuration used when no file exists and
// as the base every profile is merged over.
func Default() *Config {
	return &Config{
		Audio: AudioConfig{
			SampleRate:     44100,
			Channels:       1,
			CaptureBackend: "auto",
			Player:         "auto",
		},
		Output: OutputConfig{
			Directory: filepath.Join(os.Getenv("HOME"), "Audio", "Recordings"),
			Extension: "wav",
		},
		Display: DisplayConfig{
			Label:        "Record Time",
			TickInterval: time.Second,
		},
		Server: ServerConfig{
			Port: "8080",
		},
		Profile: "default",
	}
}

// DefaultPath is where the CLI looks for a config file when --config is not given.
func DefaultPath() string {
	return os.ExpandEnv("$HOME/.config/soundrecorder.yaml")
}

// LoadWithProfile resolves a profile from configFile. An empty profile
// selects active_config, then "default". When optional is true a missing
// file yields the built-in defaults instead of an error.
func LoadWithProfile(configFile, profile string, optional bool) (*Config, error) {
	if configFile == "" {
		return nil, fmt.Errorf("no config file specified, use --config flag")
	}

	if _, err := os.Stat(configFile); err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			cfg := Default()
			if profile != "" && profile != "default" {
				return nil, fmt.Errorf("configuration profile '%s' not found (no config file at %s)", profile, configFile)
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	rootConfig, err := ReadRootConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return Resolve(rootConfig, profile)
}

// Resolve picks a profile out of rootConfig and merges it over the
// "default" profile and the built-in defaults.
func Resolve(rootConfig *RootConfig, profile string) (*Config, error) {
	configName := profile
	if configName == "" {
		configName = rootConfig.ActiveConfig
	}
	if configName == "" {
		configName = "default"
	}

	selected, exists := rootConfig.Configs[configName]
	if !exists {
		if configName != "default" || len(rootConfig.Configs) > 0 {
			return nil, fmt.Errorf("configuration profile '%s' not found", configName)
		}
		selected = &Config{}
	}

	result := mergeConfigs(Default(), selected)
	if configName != "default" {
		if defaultProfile, ok := rootConfig.Configs["default"]; ok {
			result = mergeConfigs(mergeConfigs(Default(), defaultProfile), selected)
		}
	}
	result.Profile = configName

	result.Output.Directory = expandPath(result.Output.Directory)
	result.Output.Extension = strings.TrimPrefix(strings.ToLower(result.Output.Extension), ".")

	if err := Validate(result); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return result, nil
}

// ReadRootConfig reads configFile with viper. Environment variables with
// the SOUNDRECORDER prefix override file values.
func ReadRootConfig(configFile string) (*RootConfig, error) {
	v := viper.New()
	v.SetConfigFile(configFile)
	v.SetEnvPrefix("SOUNDRECORDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	var rootConfig RootConfig
	if err := v.Unmarshal(&rootConfig); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	for name, profile := range rootConfig.Configs {
		if profile == nil {
			return nil, fmt.Errorf("configs.%s: profile is empty", name)
		}
	}

	return &rootConfig, nil
}

// UpdateActiveConfig updates the active_config field in the config file
func UpdateActiveConfig(configFile, newActiveConfig string) error {
	if configFile == "" {
		return fmt.Errorf("no config file specified")
	}

	v := viper.New()
	v.SetConfigFile(configFile)

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	v.Set("active_config", newActiveConfig)

	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("error writing config file %s: %w", configFile, err)
	}

	return nil
}

// mergeConfigs overlays every non-zero field of profile onto base.
func mergeConfigs(base, profile *Config) *Config {
	result := *base
	result.Audio.CaptureCommand = append([]string(nil), base.Audio.CaptureCommand...)
	result.Audio.PlayerCommand = append([]string(nil), base.Audio.PlayerCommand...)

	if profile == nil {
		return &result
	}

	if profile.Audio.SampleRate != 0 {
		result.Audio.SampleRate = profile.Audio.SampleRate
	}
	if profile.Audio.Channels != 0 {
		result.Audio.Channels = profile.Audio.Channels
	}
	if profile.Audio.CaptureBackend != "" {
		result.Audio.CaptureBackend = profile.Audio.CaptureBackend
	}
	if profile.Audio.CaptureDevice != "" {
		result.Audio.CaptureDevice = profile.Audio.CaptureDevice
	}
	if len(profile.Audio.CaptureCommand) > 0 {
		result.Audio.CaptureCommand = append([]string(nil), profile.Audio.CaptureCommand...)
	}
	if profile.Audio.Player != "" {
		result.Audio.Player = profile.Audio.Player
	}
	if len(profile.Audio.PlayerCommand) > 0 {
		result.Audio.PlayerCommand = append([]string(nil), profile.Audio.PlayerCommand...)
	}

	if profile.Output.Directory != "" {
		result.Output.Directory = profile.Output.Directory
	}
	if profile.Output.Extension != "" {
		result.Output.Extension = profile.Output.Extension
	}

	if profile.Display.Label != "" {
		result.Display.Label = profile.Display.Label
	}
	if profile.Display.TickInterval != 0 {
		result.Display.TickInterval = profile.Display.TickInterval
	}

	if profile.Server.Port != "" {
		result.Server.Port = profile.Server.Port
	}

	return &result
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

// Validate checks a resolved config.
func Validate(cfg *Config) error {
	if cfg.Audio.SampleRate < 8000 || cfg.Audio.SampleRate > 192000 {
		return fmt.Errorf("audio.sample_rate must be between 8000 and 192000, got: %d", cfg.Audio.SampleRate)
	}
	if cfg.Audio.Channels != 1 && cfg.Audio.Channels != 2 {
		return fmt.Errorf("audio.channels must be 1 or 2, got: %d", cfg.Audio.Channels)
	}

	if !contains(captureBackends, cfg.Audio.CaptureBackend) {
		return fmt.Errorf("audio.capture_backend must be one of %s, got: %s", strings.Join(captureBackends, ", "), cfg.Audio.CaptureBackend)
	}
	if cfg.Audio.CaptureBackend == "command" && len(cfg.Audio.CaptureCommand) == 0 {
		return fmt.Errorf("audio.capture_command is required when capture_backend is 'command'")
	}

	if !contains(players, cfg.Audio.Player) {
		return fmt.Errorf("audio.player must be one of %s, got: %s", strings.Join(players, ", "), cfg.Audio.Player)
	}
	if cfg.Audio.Player == "command" {
		if len(cfg.Audio.PlayerCommand) == 0 {
			return fmt.Errorf("audio.player_command is required when player is 'command'")
		}
		if !hasFilePlaceholder(cfg.Audio.PlayerCommand) {
			return fmt.Errorf("audio.player_command must contain a {file} placeholder")
		}
	}

	if cfg.Output.Directory == "" {
		return fmt.Errorf("output.directory is required")
	}
	if cfg.Output.Extension != "wav" {
		return fmt.Errorf("output.extension must be 'wav', got: %s", cfg.Output.Extension)
	}

	if strings.TrimSpace(cfg.Display.Label) == "" {
		return fmt.Errorf("display.label cannot be empty")
	}
	if cfg.Display.TickInterval < 100*time.Millisecond {
		return fmt.Errorf("display.tick_interval must be at least 100ms, got: %s", cfg.Display.TickInterval)
	}

	if cfg.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}

	return nil
}

func hasFilePlaceholder(args []string) bool {
	for _, a := range args {
		if strings.Contains(a, "{file}") {
			return true
		}
	}
	return false
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

// Suffix is the file suffix saved recordings must carry, e.g. ".wav".
func (c *Config) Suffix() string {
	return "." + c.Output.Extension
}
