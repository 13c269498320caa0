package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"tileshow/lib/logging"
)

const (
	DefaultProject       = "show.json"
	DefaultFrameInterval = 33 * time.Millisecond
	DefaultAutosave      = 2 * time.Second
)

type Config struct {
	ProjectPath   string
	FrameInterval time.Duration
	Autosave      time.Duration
	HTTPAddr      string
	OSCAddr       string
	XTouchPort    string
	ClockPort     string
	StreamDeck    string
}

type fileConfig struct {
	Project         string `json:"project"`
	FrameIntervalMs int    `json:"frameIntervalMs"`
	AutosaveMs      int    `json:"autosaveMs"`
	HTTPAddr        string `json:"httpAddr"`
	OSCAddr         string `json:"oscAddr"`
	XTouch          string `json:"xtouch"`
	ClockPort       string `json:"clockPort"`
	StreamDeck      string `json:"streamDeck"`
}

func init() {
	_ = godotenv.Load()
}

// Load merges environment variables over ~/.config/tileshow/config.json over
// the defaults.
func Load() Config {
	fc := loadFileConfig(filePath())

	return Config{
		ProjectPath:   firstNonEmpty(os.Getenv("TILESHOW_PROJECT"), fc.Project, DefaultProject),
		FrameInterval: firstDuration(os.Getenv("TILESHOW_FRAME_INTERVAL"), fc.FrameIntervalMs, DefaultFrameInterval),
		Autosave:      firstDuration("", fc.AutosaveMs, DefaultAutosave),
		HTTPAddr:      firstNonEmpty(os.Getenv("TILESHOW_HTTP_ADDR"), fc.HTTPAddr),
		OSCAddr:       firstNonEmpty(os.Getenv("TILESHOW_OSC_ADDR"), fc.OSCAddr),
		XTouchPort:    firstNonEmpty(os.Getenv("TILESHOW_XTOUCH"), fc.XTouch),
		ClockPort:     firstNonEmpty(os.Getenv("TILESHOW_CLOCK_PORT"), fc.ClockPort),
		StreamDeck:    firstNonEmpty(os.Getenv("TILESHOW_STREAMDECK"), fc.StreamDeck),
	}
}

func filePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "tileshow", "config.json")
}

func loadFileConfig(path string) fileConfig {
	if path == "" {
		return fileConfig{}
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return fileConfig{}
	}
	var fc fileConfig
	if err := json.Unmarshal(b, &fc); err != nil {
		logging.Warnf("config: %s: %v", path, err)
		return fileConfig{}
	}
	return fc
}

// firstDuration prefers an env value such as "25ms" or a bare millisecond
// count, then the file's millisecond value.
func firstDuration(env string, fileMs int, def time.Duration) time.Duration {
	if env != "" {
		if d, err := time.ParseDuration(env); err == nil && d > 0 {
			return d
		}
		if ms, err := strconv.Atoi(env); err == nil && ms > 0 {
			return time.Duration(ms) * time.Millisecond
		}
		logging.Warnf("config: ignoring bad duration %q", env)
	}
	if fileMs > 0 {
		return time.Duration(fileMs) * time.Millisecond
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
