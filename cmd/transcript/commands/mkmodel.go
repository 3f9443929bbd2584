package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ieee0824/whisper-go/model"
	"github.com/ieee0824/whisper-go/vocab"
)

var (
	mkTokens  string
	mkLangs   int
	mkAudio   int
	mkState   int
	mkHeads   int
	mkLayers  int
	mkTextCtx int
	mkSeed    int64
	mkHalf    bool
)

var mkmodelCmd = &cobra.Command{
	Use:   "mkmodel [flags] out.wggm",
	Short: "Write a randomly initialised model",
	Long: `Write a model file with random weights, for exercising the pipeline
without trained weights. Without --tokens the vocabulary is the 256
single bytes.

The token file has one "id<TAB>token" line per text token; tokens starting
with a double quote are Go-quoted strings.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tokens, err := mkVocabulary()
		if err != nil {
			return err
		}
		hp := model.DefaultHParams()
		hp.NLangs = mkLangs
		hp.NAudioCtx = mkAudio
		hp.NAudioState, hp.NTextState = mkState, mkState
		hp.NAudioHead, hp.NTextHead = mkHeads, mkHeads
		hp.NAudioLayer, hp.NTextLayer = mkLayers, mkLayers
		hp.NTextCtx = mkTextCtx

		m, err := model.NewRandom(hp, tokens, mkSeed)
		if err != nil {
			return err
		}
		dt := model.Float32
		if mkHalf {
			dt = model.Float16
		}
		if err := model.Save(args[0], m, dt); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s: %d tensors, vocabulary %d, %s\n",
			args[0], m.NumTensors(), m.HParams().NVocab, dt)
		return nil
	},
}

func init() {
	def := model.DefaultHParams()
	f := mkmodelCmd.Flags()
	f.StringVar(&mkTokens, "tokens", "", "token list file")
	f.IntVar(&mkLangs, "langs", def.NLangs, "number of language tokens (0 = English only)")
	f.IntVar(&mkAudio, "audio-ctx", def.NAudioCtx, "audio context (window is 2x frames)")
	f.IntVar(&mkState, "state", def.NAudioState, "model width")
	f.IntVar(&mkHeads, "heads", def.NAudioHead, "attention heads")
	f.IntVar(&mkLayers, "layers", def.NAudioLayer, "transformer layers per stack")
	f.IntVar(&mkTextCtx, "text-ctx", def.NTextCtx, "text context")
	f.Int64Var(&mkSeed, "seed", 1, "random seed")
	f.BoolVar(&mkHalf, "f16", false, "store weights as float16")
}

func mkVocabulary() ([][]byte, error) {
	if mkTokens != "" {
		return vocab.LoadTokensFile(mkTokens)
	}
	tokens := make([][]byte, 256)
	for i := range tokens {
		tokens[i] = []byte{byte(i)}
	}
	return tokens, nil
}
