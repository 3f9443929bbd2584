package commands

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	whisper "github.com/ieee0824/whisper-go"
	"github.com/ieee0824/whisper-go/audio"
)

var (
	outFormat  string
	language   string
	task       string
	strategy   string
	beamWidth  int
	maxTokens  int
	maxWindows int
	noContext  bool
	stream     bool
)

var transcribeCmd = &cobra.Command{
	Use:   "transcribe [flags] file.wav...",
	Short: "Transcribe WAV files",
	Long: `Transcribe PCM or float WAV files. Audio at other sample rates is
resampled; multichannel audio is averaged to mono.

Output formats:
  text - timestamped lines
  json - segment list as JSON
  yaml - segment list as YAML
  srt  - SubRip subtitles`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTranscribe,
}

func init() {
	f := transcribeCmd.Flags()
	f.StringVarP(&outFormat, "format", "f", "text", "output format: text, json, yaml, srt")
	f.StringVarP(&language, "language", "l", "", "spoken language code or name, or auto")
	f.StringVar(&task, "task", "", "transcribe or translate")
	f.StringVar(&strategy, "strategy", "", "greedy or beam")
	f.IntVar(&beamWidth, "beam-width", 0, "beam width for beam search")
	f.IntVar(&maxTokens, "max-tokens", 0, "token budget per window (0 = model default)")
	f.IntVar(&maxWindows, "max-windows", 0, "stop after this many windows (0 = no limit)")
	f.BoolVar(&noContext, "no-context", false, "do not carry text between windows")
	f.BoolVar(&stream, "stream", false, "print text segments as they complete")
}

func runTranscribe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("language") {
		cfg.Decode.Language = language
	}
	if flags.Changed("task") {
		cfg.Decode.Task = task
	}
	if flags.Changed("strategy") {
		cfg.Decode.Strategy = strategy
	}
	if flags.Changed("beam-width") {
		cfg.Decode.BeamWidth = beamWidth
	}
	if flags.Changed("max-tokens") {
		cfg.Decode.MaxTokens = maxTokens
	}
	if flags.Changed("max-windows") {
		cfg.Decode.MaxWindows = maxWindows
	}
	if noContext {
		carry := false
		cfg.Decode.CarryPrompt = &carry
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	params, err := cfg.Params()
	if err != nil {
		return err
	}
	w, err := newWriter(outFormat, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	log := newLogger(cfg.LogLevel)
	m, err := openModel(cfg, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	session := m.NewSession()
	for _, path := range args {
		clip, err := audio.DecodeFile(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		p := params
		if stream && outFormat == "text" {
			p.OnSegment = func(s whisper.Segment) { w.segment(s) }
		}
		segs, err := session.TranscribePCM(ctx, clip.Samples, clip.Format.SampleRate, p)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if err := w.write(path, segs, p.OnSegment != nil); err != nil {
			return err
		}
		if session.Cancelled() {
			log.Warn("interrupted", "file", path, "segments", len(segs))
			break
		}
		if err := session.Reset(); err != nil {
			return err
		}
	}
	return nil
}
