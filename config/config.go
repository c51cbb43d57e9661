// Package config handles persisted recording preferences.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	appName        = "pixelmark"
	configFileName = "config.json"
)

// Supported encoder codecs.
const (
	CodecH264 = "h264"
	CodecH265 = "h265"
)

// Quality presets, mapped to a bitrate at session start.
const (
	QualityLow      = "low"
	QualityStandard = "standard"
	QualityHigh     = "high"
)

// Settings are the user's recording preferences.
type Settings struct {
	Codec              string `json:"codec"`
	Quality            string `json:"quality"`
	FrameRate          int    `json:"frame_rate"`
	IncludeSystemAudio bool   `json:"include_system_audio"`
	OutputDir          string `json:"output_dir,omitempty"`
	FFmpegPath         string `json:"ffmpeg_path,omitempty"`
}

// Load reads settings from the config file.
// Returns defaults if the file doesn't exist.
func Load() (*Settings, error) {
	path, err := configPath()
	if err != nil {
		return nil, fmt.Errorf("get config path: %w", err)
	}
	return loadFrom(path)
}

func loadFrom(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultSettings(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	s.applyDefaults()

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &s, nil
}

// Save persists the settings to disk.
func (s *Settings) Save() error {
	path, err := configPath()
	if err != nil {
		return fmt.Errorf("get config path: %w", err)
	}
	return s.saveTo(path)
}

func (s *Settings) saveTo(path string) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate rejects settings no session could be started with.
func (s *Settings) Validate() error {
	switch s.Codec {
	case CodecH264, CodecH265:
	default:
		return fmt.Errorf("unsupported codec: %s", s.Codec)
	}
	switch s.Quality {
	case QualityLow, QualityStandard, QualityHigh:
	default:
		return fmt.Errorf("unknown quality preset: %s", s.Quality)
	}
	if s.FrameRate < 1 || s.FrameRate > 120 {
		return fmt.Errorf("frame rate out of range: %d", s.FrameRate)
	}
	return nil
}

// BitrateKbps maps the quality preset to a target bitrate for the session's
// pixel area and frame rate, scaled against a 1080p30 baseline.
func (s *Settings) BitrateKbps(width, height int) int {
	base := map[string]int{
		QualityLow:      2500,
		QualityStandard: 6000,
		QualityHigh:     12000,
	}[s.Quality]

	pixels := width * height
	if pixels <= 0 {
		return base
	}
	kbps := base * pixels / (1920 * 1080)
	if s.FrameRate > 30 {
		kbps = kbps * s.FrameRate / 30
	}
	if kbps < 1000 {
		kbps = 1000
	}
	return kbps
}

// OutputPath returns the directory recordings are saved to, creating it if
// needed. Defaults to ~/Movies/PixelMark.
func (s *Settings) OutputPath() (string, error) {
	dir := s.OutputDir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("get home dir: %w", err)
		}
		dir = filepath.Join(home, "Movies", "PixelMark")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	return dir, nil
}

func (s *Settings) applyDefaults() {
	if s.Codec == "" {
		s.Codec = CodecH264
	}
	if s.Quality == "" {
		s.Quality = QualityStandard
	}
	if s.FrameRate == 0 {
		s.FrameRate = 30
	}
}

func configPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("get user config dir: %w", err)
	}
	return filepath.Join(dir, appName, configFileName), nil
}

func defaultSettings() *Settings {
	return &Settings{
		Codec:     CodecH264,
		Quality:   QualityStandard,
		FrameRate: 30,
	}
}
