package decoder

import (
	"context"
	"math"
	"slices"
	"sort"

	"github.com/ieee0824/whisper-go/internal/mathutil"
)

// hypothesis is one live or finished beam entry.
type hypothesis struct {
	tokens  []int
	logprob float64
	cache   *KVCache
	logits  []float32
}

type candidate struct {
	parent  int
	token   int
	logprob float64
}

// beam keeps the width best hypotheses by cumulative log-probability. Ties
// keep insertion order: beam index, then token rank. A hypothesis ending
// in EndOfText leaves the beam.
func (d *decoding) beam(ctx context.Context, res *Result, cache *KVCache, logits []float32, width int) error {
	eot := d.voc.EOT()
	lp := make([]float32, len(logits))
	beams := []*hypothesis{{cache: cache, logits: logits}}
	var finished []*hypothesis

	for {
		if ctx.Err() != nil {
			res.Cancelled = true
			break
		}
		var cands []candidate
		for bi, h := range beams {
			d.filter.apply(h.logits, h.tokens)
			mathutil.LogSoftmax(lp, h.logits)
			for _, tok := range mathutil.TopK(lp, width+1) {
				if math.IsInf(float64(lp[tok]), -1) {
					break
				}
				cands = append(cands, candidate{parent: bi, token: tok, logprob: h.logprob + float64(lp[tok])})
			}
		}
		sort.SliceStable(cands, func(i, j int) bool {
			return cands[i].logprob > cands[j].logprob
		})

		var next []*hypothesis
		for _, c := range cands {
			parent := beams[c.parent]
			h := &hypothesis{
				tokens:  slices.Concat(parent.tokens, []int{c.token}),
				logprob: c.logprob,
				cache:   parent.cache,
			}
			if c.token == eot {
				finished = append(finished, h)
				continue
			}
			next = append(next, h)
			if len(next) == width {
				break
			}
		}
		if len(next) == 0 {
			break
		}
		beams = next
		if len(finished) >= width {
			break
		}
		if len(beams[0].tokens) >= d.budget {
			break
		}
		for _, h := range beams {
			h.cache = h.cache.Clone()
			var err error
			if h.logits, err = d.run.forward(h.tokens[len(h.tokens)-1:], h.cache); err != nil {
				return err
			}
		}
	}

	// Too few finished hypotheses: live ones compete as they are.
	pool := finished
	for _, h := range beams {
		if len(pool) >= width {
			break
		}
		pool = append(pool, h)
	}
	var best *hypothesis
	bestScore := math.Inf(-1)
	for _, h := range pool {
		if s := d.score(h); best == nil || s > bestScore {
			best, bestScore = h, s
		}
	}
	if best == nil {
		return nil
	}
	segs, err := segmentsOf(d.voc, res.Language, best.tokens)
	if err != nil {
		return err
	}
	res.Tokens = best.tokens
	res.Segments = segs
	res.SumLogProb = best.logprob
	ended := len(best.tokens) > 0 && best.tokens[len(best.tokens)-1] == eot
	res.BudgetHit = !ended && !res.Cancelled
	return nil
}

// score normalises a cumulative log-probability by length.
func (d *decoding) score(h *hypothesis) float64 {
	n := float64(len(h.tokens))
	if n == 0 {
		return h.logprob
	}
	if d.opts.LengthPenalty <= 0 {
		return h.logprob / n
	}
	return h.logprob / math.Pow((5+n)/6, d.opts.LengthPenalty)
}
