package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	whisper "github.com/ieee0824/whisper-go"
	"github.com/ieee0824/whisper-go/internal/config"
	"github.com/ieee0824/whisper-go/tensor"
)

var (
	// Global flags
	cfgFile   string
	modelPath string
	backend   string
	threads   int
	logLevel  string
)

var rootCmd = &cobra.Command{
	Use:   "transcript",
	Short: "Speech to text with a pure Go Whisper engine",
	Long: `transcript runs Whisper-style speech recognition entirely in Go.

Settings come from an optional YAML file (--config), then WHISPER_*
environment variables, then flags.

Examples:
  # Transcribe a file with language detection
  transcript transcribe -m tiny.wggm speech.wav

  # Subtitles with beam search
  transcript transcribe -m tiny.wggm --strategy beam -f srt speech.wav`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file")
	rootCmd.PersistentFlags().StringVarP(&modelPath, "model", "m", "", "model file (overrides config)")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", "", "compute backend: accelerated or reference")
	rootCmd.PersistentFlags().IntVarP(&threads, "threads", "t", 0, "worker threads (0 = all CPUs)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")

	rootCmd.AddCommand(transcribeCmd)
	rootCmd.AddCommand(langsCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(mkmodelCmd)
}

// loadConfig merges the config file, environment and global flags.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Loader{}.Load(cfgFile)
	if err != nil {
		return config.Config{}, err
	}
	flags := cmd.Flags()
	if flags.Changed("model") {
		cfg.Model = modelPath
	}
	if flags.Changed("backend") {
		cfg.Backend = backend
	}
	if flags.Changed("threads") {
		cfg.Threads = threads
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func newLogger(level string) *slog.Logger {
	lvl, err := config.ParseLevel(level)
	if err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// openModel loads the configured model.
func openModel(cfg config.Config, log *slog.Logger) (*whisper.Model, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model path is required, use -m or set WHISPER_MODEL")
	}
	opts := []whisper.Option{whisper.WithLogger(log), whisper.WithThreads(cfg.Threads)}
	if cfg.Backend == "reference" {
		opts = append(opts, whisper.WithBackend(tensor.Reference()))
	}
	return whisper.Load(cfg.Model, opts...)
}
