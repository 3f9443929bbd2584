// Package config loads CLI settings from a YAML file with environment
// overrides.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	whisper "github.com/ieee0824/whisper-go"
)

const (
	DefaultBackend  = "accelerated"
	DefaultLanguage = "auto"
	DefaultLogLevel = "info"
	DefaultStrategy = "greedy"
	DefaultTask     = "transcribe"
)

// Config captures the settings of one CLI invocation.
type Config struct {
	Model    string `yaml:"model"`
	Backend  string `yaml:"backend"` // accelerated or reference
	Threads  int    `yaml:"threads"`
	LogLevel string `yaml:"log_level"`
	Decode   Decode `yaml:"decode"`
}

// Decode mirrors whisper.Params in file form.
type Decode struct {
	Language            string  `yaml:"language"`
	Task                string  `yaml:"task"`
	Strategy            string  `yaml:"strategy"`
	BeamWidth           int     `yaml:"beam_width"`
	LengthPenalty       float64 `yaml:"length_penalty"`
	MaxTokens           int     `yaml:"max_tokens"`
	Temperature         float64 `yaml:"temperature"`
	RepetitionPenalty   float64 `yaml:"repetition_penalty"`
	MaxInitialTimestamp string  `yaml:"max_initial_timestamp"` // Go duration, e.g. "1s"
	MaxWindows          int     `yaml:"max_windows"`
	CarryPrompt         *bool   `yaml:"carry_prompt"`
	SuppressBlank       *bool   `yaml:"suppress_blank"`
}

// Default returns a configuration with every default applied.
func Default() Config {
	d := whisper.DefaultParams()
	carry, blank := d.CarryPrompt, d.SuppressBlank
	return Config{
		Backend:  DefaultBackend,
		LogLevel: DefaultLogLevel,
		Decode: Decode{
			Language:          DefaultLanguage,
			Task:              DefaultTask,
			Strategy:          DefaultStrategy,
			BeamWidth:         d.BeamWidth,
			RepetitionPenalty: d.RepetitionPenalty,
			CarryPrompt:       &carry,
			SuppressBlank:     &blank,
		},
	}
}

// Validate applies defaults and rejects out-of-range values.
func (c *Config) Validate() error {
	def := Default()
	if c.Backend == "" {
		c.Backend = def.Backend
	}
	c.Backend = strings.ToLower(c.Backend)
	if c.Backend != "accelerated" && c.Backend != "reference" {
		return fmt.Errorf("config: unknown backend %q", c.Backend)
	}
	if c.Threads < 0 {
		return fmt.Errorf("config: threads must be >= 0, got %d", c.Threads)
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}

	d := &c.Decode
	if d.Language == "" {
		d.Language = def.Decode.Language
	}
	if d.Task == "" {
		d.Task = def.Decode.Task
	}
	if d.Strategy == "" {
		d.Strategy = def.Decode.Strategy
	}
	if d.BeamWidth == 0 {
		d.BeamWidth = def.Decode.BeamWidth
	}
	if d.RepetitionPenalty == 0 {
		d.RepetitionPenalty = def.Decode.RepetitionPenalty
	}
	if d.CarryPrompt == nil {
		d.CarryPrompt = def.Decode.CarryPrompt
	}
	if d.SuppressBlank == nil {
		d.SuppressBlank = def.Decode.SuppressBlank
	}
	if d.BeamWidth < 1 {
		return fmt.Errorf("config: beam_width must be >= 1, got %d", d.BeamWidth)
	}
	if d.MaxTokens < 0 {
		return fmt.Errorf("config: max_tokens must be >= 0, got %d", d.MaxTokens)
	}
	if d.MaxWindows < 0 {
		return fmt.Errorf("config: max_windows must be >= 0, got %d", d.MaxWindows)
	}
	if d.Temperature < 0 {
		return fmt.Errorf("config: temperature must be >= 0, got %g", d.Temperature)
	}
	_, err := c.Params()
	return err
}

// Params converts the decode section to whisper.Params.
func (c Config) Params() (whisper.Params, error) {
	d := c.Decode
	p := whisper.DefaultParams()
	p.Language = d.Language
	p.BeamWidth = d.BeamWidth
	p.LengthPenalty = d.LengthPenalty
	p.MaxTokens = d.MaxTokens
	p.Temperature = d.Temperature
	p.RepetitionPenalty = d.RepetitionPenalty
	p.MaxWindows = d.MaxWindows
	if d.CarryPrompt != nil {
		p.CarryPrompt = *d.CarryPrompt
	}
	if d.SuppressBlank != nil {
		p.SuppressBlank = *d.SuppressBlank
	}

	switch strings.ToLower(d.Task) {
	case "", "transcribe":
		p.Task = whisper.TaskTranscribe
	case "translate":
		p.Task = whisper.TaskTranslate
	default:
		return p, fmt.Errorf("config: unknown task %q", d.Task)
	}
	switch strings.ToLower(d.Strategy) {
	case "", "greedy":
		p.Strategy = whisper.Greedy
	case "beam", "beam_search":
		p.Strategy = whisper.BeamSearch
	default:
		return p, fmt.Errorf("config: unknown strategy %q", d.Strategy)
	}
	if d.MaxInitialTimestamp != "" {
		v, err := time.ParseDuration(d.MaxInitialTimestamp)
		if err != nil || v < 0 {
			return p, fmt.Errorf("config: max_initial_timestamp %q: want a non-negative duration", d.MaxInitialTimestamp)
		}
		p.MaxInitialTimestamp = v
	}
	return p, nil
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("config: unknown log level %q", level)
}
