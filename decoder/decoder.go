// Package decoder generates text tokens and timestamped segments for one
// window of encoded audio.
package decoder

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/ieee0824/whisper-go/encoder"
	"github.com/ieee0824/whisper-go/internal/mathutil"
	"github.com/ieee0824/whisper-go/model"
	"github.com/ieee0824/whisper-go/tensor"
	"github.com/ieee0824/whisper-go/vocab"
)

// decoding is the per-window state shared by the search strategies.
type decoding struct {
	opts   Options
	voc    *vocab.Vocab
	run    *runner
	filter *logitFilter
	budget int
	log    *slog.Logger
}

// Decode generates the tokens of one window. Detection runs first when the
// language is AutoLanguage and the model is multilingual. Running out of
// budget is reported in the result, not as an error. A cancelled context
// ends decoding early with Result.Cancelled set and the segments completed
// so far.
func Decode(ctx context.Context, enc *encoder.Output, m *model.Model, voc *vocab.Vocab, be tensor.Backend, opts Options) (*Result, error) {
	if voc == nil || voc.NumText() == 0 {
		return nil, vocab.ErrEmptyVocabulary
	}
	hp := m.HParams()
	if voc.Size() != hp.NVocab {
		return nil, fmt.Errorf("decode: vocabulary of %d tokens, model has %d", voc.Size(), hp.NVocab)
	}
	if err := opts.Validate(voc.NumLanguages()); err != nil {
		return nil, err
	}
	for _, tok := range opts.Prompt {
		if !voc.IsText(tok) {
			return nil, fmt.Errorf("%w: prompt token %d is not text", ErrInvalidOptions, tok)
		}
	}
	run, err := newRunner(m, be, enc)
	if err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	res := &Result{Language: opts.Language, LanguageProb: 1}
	if opts.Language == AutoLanguage {
		switch {
		case voc.NumLanguages() > 1:
			if res.Language, res.LanguageProb, err = detectLanguage(run, voc); err != nil {
				return nil, err
			}
			code, _ := vocab.LangStr(res.Language)
			log.Debug("language detected", "lang", code, "prob", res.LanguageProb)
		case voc.NumLanguages() == 1:
			res.Language = 0
		}
	}

	prompt := buildPrompt(voc, opts, res.Language, hp.NTextCtx)
	budget := opts.MaxTokens
	if budget == 0 {
		budget = hp.NTextCtx / 2
	}
	budget = min(budget, hp.NTextCtx-len(prompt))
	if budget < 1 {
		return nil, fmt.Errorf("decode: prompt of %d tokens leaves no room in text context %d", len(prompt), hp.NTextCtx)
	}

	cache := run.newCache()
	logits, err := run.forward(prompt, cache)
	if err != nil {
		return nil, err
	}
	d := &decoding{
		opts:   opts,
		voc:    voc,
		run:    run,
		filter: newLogitFilter(voc, opts),
		budget: budget,
		log:    log,
	}
	if opts.Strategy == BeamSearch {
		err = d.beam(ctx, res, cache, logits, opts.BeamWidth)
	} else {
		err = d.greedy(ctx, res, cache, logits)
	}
	if err != nil {
		return nil, err
	}
	log.Debug("window decoded",
		"strategy", opts.Strategy,
		"tokens", len(res.Tokens),
		"segments", len(res.Segments),
		"budget_hit", res.BudgetHit,
		"cancelled", res.Cancelled)
	return res, nil
}

// detectLanguage runs the decoder over [SOT] and picks the most likely
// language token.
func detectLanguage(run *runner, voc *vocab.Vocab) (int, float64, error) {
	logits, err := run.forward([]int{voc.SOT()}, run.newCache())
	if err != nil {
		return 0, 0, err
	}
	first, _ := voc.LanguageToken(0)
	langs := logits[first : first+voc.NumLanguages()]
	best := mathutil.Argmax(langs)
	lp := make([]float32, len(langs))
	mathutil.LogSoftmax(lp, langs)
	return best, math.Exp(float64(lp[best])), nil
}

// buildPrompt returns [Prev prompt...] SOT [language task]. The carried
// prompt keeps its most recent n_text_ctx/2-1 tokens.
func buildPrompt(voc *vocab.Vocab, opts Options, lang, textCtx int) []int {
	var p []int
	if prev := opts.Prompt; len(prev) > 0 {
		if keep := textCtx/2 - 1; len(prev) > keep {
			prev = prev[len(prev)-keep:]
		}
		p = append(p, voc.Prev())
		p = append(p, prev...)
	}
	p = append(p, voc.SOT())
	if voc.NumLanguages() > 0 {
		if tok, ok := voc.LanguageToken(lang); ok {
			p = append(p, tok)
		}
		if opts.Task == Translate {
			p = append(p, voc.Translate())
		} else {
			p = append(p, voc.Transcribe())
		}
	}
	return p
}

// pick filters logits and returns the most likely token, lowest id on ties.
func (d *decoding) pick(logits, lp []float32, gen []int) (int, float64) {
	d.filter.apply(logits, gen)
	mathutil.LogSoftmax(lp, logits)
	tok := mathutil.Argmax(lp)
	if math.IsInf(float64(lp[tok]), -1) {
		return d.voc.EOT(), 0
	}
	return tok, float64(lp[tok])
}

func (d *decoding) greedy(ctx context.Context, res *Result, cache *KVCache, logits []float32) error {
	seg := startSegmenter(d.voc, res.Language)
	lp := make([]float32, len(logits))
	var gen []int
	for {
		if ctx.Err() != nil {
			res.Cancelled = true
			break
		}
		tok, p := d.pick(logits, lp, gen)
		gen = append(gen, tok)
		res.SumLogProb += p
		if _, err := seg.push(tok); err != nil {
			return err
		}
		if tok == d.voc.EOT() {
			break
		}
		if len(gen) >= d.budget {
			res.BudgetHit = true
			break
		}
		var err error
		if logits, err = d.run.forward([]int{tok}, cache); err != nil {
			return err
		}
	}
	res.Tokens = gen
	res.Segments = seg.finish()
	return nil
}
